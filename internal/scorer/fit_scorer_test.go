package scorer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/types"
)

// buildRequirements 生成n条测试要求
func buildRequirements(n int) []types.JobRequirement {
	reqs := make([]types.JobRequirement, n)
	for i := range reqs {
		reqs[i] = types.JobRequirement{
			RequirementID: uint64(i + 1),
			AnalysisID:    "analysis-1",
			Index:         i + 1,
			Text:          fmt.Sprintf("要求%d", i+1),
			Category:      types.CategoryTechnical,
		}
	}
	return reqs
}

// buildMatches 按状态分布生成匹配结果
func buildMatches(yes, partial, no int) []types.RequirementMatch {
	chunkID := uint64(100)
	matches := make([]types.RequirementMatch, 0, yes+partial+no)
	id := uint64(1)
	for i := 0; i < yes; i++ {
		matches = append(matches, types.RequirementMatch{
			RequirementID: id, ChunkID: &chunkID, SimilarityScore: 0.9,
			Evidence: "充分证据", Status: types.MatchStatusYes,
		})
		id++
	}
	for i := 0; i < partial; i++ {
		matches = append(matches, types.RequirementMatch{
			RequirementID: id, ChunkID: &chunkID, SimilarityScore: 0.5,
			Evidence: "部分证据", Status: types.MatchStatusPartial,
		})
		id++
	}
	for i := 0; i < no; i++ {
		matches = append(matches, types.RequirementMatch{
			RequirementID: id, SimilarityScore: 0,
			Evidence: types.DefaultNoMatchEvidence, Status: types.MatchStatusNo,
		})
		id++
	}
	return matches
}

func TestFitScorer_StandardScenario(t *testing.T) {
	// 6个yes + 2个partial + 2个no = 70分，等级good
	s := NewFitScorer(DefaultWeights())
	result := s.Score(buildRequirements(10), buildMatches(6, 2, 2))

	assert.Equal(t, 70, result.Score)
	assert.Equal(t, types.FitLevelGood, result.Level)
	require.Len(t, result.RequirementBreakdown, 10)
}

func TestFitScorer_Levels(t *testing.T) {
	s := NewFitScorer(DefaultWeights())
	cases := []struct {
		yes, partial int
		wantScore    int
		wantLevel    types.FitLevel
	}{
		{10, 0, 100, types.FitLevelStrong},
		{8, 0, 80, types.FitLevelStrong},
		{7, 1, 75, types.FitLevelGood},
		{6, 0, 60, types.FitLevelGood},
		{4, 0, 40, types.FitLevelPartial},
		{3, 1, 35, types.FitLevelLow},
		{0, 0, 0, types.FitLevelLow},
	}

	for _, tc := range cases {
		name := fmt.Sprintf("yes=%d,partial=%d", tc.yes, tc.partial)
		t.Run(name, func(t *testing.T) {
			no := 10 - tc.yes - tc.partial
			result := s.Score(buildRequirements(10), buildMatches(tc.yes, tc.partial, no))
			assert.Equal(t, tc.wantScore, result.Score)
			assert.Equal(t, tc.wantLevel, result.Level)
		})
	}
}

func TestFitScorer_Idempotent(t *testing.T) {
	s := NewFitScorer(DefaultWeights())
	reqs := buildRequirements(10)
	matches := buildMatches(5, 3, 2)

	first := s.Score(reqs, matches)
	second := s.Score(reqs, matches)
	assert.Equal(t, first, second)
}

func TestFitScorer_MissingMatchDefaultsToNo(t *testing.T) {
	s := NewFitScorer(DefaultWeights())
	reqs := buildRequirements(10)
	// 只有前3条要求有匹配结果
	result := s.Score(reqs, buildMatches(3, 0, 0))

	assert.Equal(t, 30, result.Score)
	require.Len(t, result.RequirementBreakdown, 10)
	for _, b := range result.RequirementBreakdown[3:] {
		assert.Equal(t, types.MatchStatusNo, b.Status)
		assert.Equal(t, types.DefaultNoMatchEvidence, b.Evidence)
	}
}

func TestFitScorer_MultipleMatchesTakeStrongest(t *testing.T) {
	s := NewFitScorer(DefaultWeights())
	reqs := buildRequirements(1)
	chunkID := uint64(7)
	matches := []types.RequirementMatch{
		{RequirementID: 1, ChunkID: &chunkID, Status: types.MatchStatusPartial, Evidence: "弱证据"},
		{RequirementID: 1, ChunkID: &chunkID, Status: types.MatchStatusYes, Evidence: "强证据"},
		{RequirementID: 1, ChunkID: &chunkID, Status: types.MatchStatusNo, Evidence: "无"},
	}

	result := s.Score(reqs, matches)
	assert.Equal(t, 10, result.Score)
	assert.Equal(t, types.MatchStatusYes, result.RequirementBreakdown[0].Status)
	assert.Equal(t, "强证据", result.RequirementBreakdown[0].Evidence)
}

func TestFitScorer_ClampAt100(t *testing.T) {
	// 自定义权重下分数可能超过100，必须截断
	s := NewFitScorer(Weights{YesWeight: 20, PartialWeight: 10})
	result := s.Score(buildRequirements(10), buildMatches(10, 0, 0))

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, types.FitLevelStrong, result.Level)
}

func TestFitScorer_CustomThresholds(t *testing.T) {
	s := NewFitScorer(Weights{StrongThreshold: 90, GoodThreshold: 70, PartialThreshold: 50})
	result := s.Score(buildRequirements(10), buildMatches(8, 0, 2))

	assert.Equal(t, 80, result.Score)
	assert.Equal(t, types.FitLevelGood, result.Level)
}
