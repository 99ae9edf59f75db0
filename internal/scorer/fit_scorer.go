package scorer

import (
	"resume-agent-go/internal/types"
)

// Weights 匹配度评分的权重与等级阈值
// 数值来自既有产品约定，保持可配置
type Weights struct {
	YesWeight        int
	PartialWeight    int
	StrongThreshold  int
	GoodThreshold    int
	PartialThreshold int
}

// DefaultWeights 默认权重: yes计10分、partial计5分，等级阈值80/60/40
func DefaultWeights() Weights {
	return Weights{
		YesWeight:        10,
		PartialWeight:    5,
		StrongThreshold:  80,
		GoodThreshold:    60,
		PartialThreshold: 40,
	}
}

// FitScorer 匹配度评分器
// 纯函数，对同一匹配集重复评分总是得到同样的结果
type FitScorer struct {
	weights Weights
}

// NewFitScorer 创建评分器，零值权重回落到默认值
func NewFitScorer(weights Weights) *FitScorer {
	d := DefaultWeights()
	if weights.YesWeight <= 0 {
		weights.YesWeight = d.YesWeight
	}
	if weights.PartialWeight <= 0 {
		weights.PartialWeight = d.PartialWeight
	}
	if weights.StrongThreshold <= 0 {
		weights.StrongThreshold = d.StrongThreshold
	}
	if weights.GoodThreshold <= 0 {
		weights.GoodThreshold = d.GoodThreshold
	}
	if weights.PartialThreshold <= 0 {
		weights.PartialThreshold = d.PartialThreshold
	}
	return &FitScorer{weights: weights}
}

// Score 由要求与匹配集推导总体匹配度
// 同一条要求有多个匹配时取其中最强的状态计分
func (s *FitScorer) Score(requirements []types.JobRequirement, matches []types.RequirementMatch) types.FitResult {
	best := make(map[uint64]types.RequirementMatch, len(requirements))
	for _, m := range matches {
		cur, ok := best[m.RequirementID]
		if !ok || statusRank(m.Status) > statusRank(cur.Status) {
			best[m.RequirementID] = m
		}
	}

	yesCount := 0
	partialCount := 0
	breakdown := make([]types.RequirementBreakdown, 0, len(requirements))
	for _, req := range requirements {
		status := types.MatchStatusNo
		evidence := types.DefaultNoMatchEvidence
		similarity := 0.0
		if m, ok := best[req.RequirementID]; ok {
			status = m.Status
			evidence = m.Evidence
			similarity = m.SimilarityScore
		}

		switch status {
		case types.MatchStatusYes:
			yesCount++
		case types.MatchStatusPartial:
			partialCount++
		}

		breakdown = append(breakdown, types.RequirementBreakdown{
			Index:      req.Index,
			Text:       req.Text,
			Category:   req.Category,
			IsCritical: req.IsCritical,
			Status:     status,
			Evidence:   evidence,
			Similarity: similarity,
		})
	}

	score := yesCount*s.weights.YesWeight + partialCount*s.weights.PartialWeight
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return types.FitResult{
		Score:                score,
		Level:                s.level(score),
		RequirementBreakdown: breakdown,
	}
}

// level 把分数映射到等级
func (s *FitScorer) level(score int) types.FitLevel {
	switch {
	case score >= s.weights.StrongThreshold:
		return types.FitLevelStrong
	case score >= s.weights.GoodThreshold:
		return types.FitLevelGood
	case score >= s.weights.PartialThreshold:
		return types.FitLevelPartial
	default:
		return types.FitLevelLow
	}
}

// statusRank 匹配状态的强弱序
func statusRank(status types.MatchStatus) int {
	switch status {
	case types.MatchStatusYes:
		return 2
	case types.MatchStatusPartial:
		return 1
	default:
		return 0
	}
}
