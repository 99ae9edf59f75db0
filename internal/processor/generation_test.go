package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/types"
)

func TestGenerationService_CoverLetter(t *testing.T) {
	store := newFakeStore()
	seedChunks(store, "owner-1", types.DocumentTypePrimary, 3)
	gen := &fakeGenerator{payloads: []string{
		`{"subject": "应聘高级Go工程师", "body": "尊敬的招聘团队：我有六年Go后端经验……", "source_chunk_indices": [0, 2]}`,
	}}

	s := NewGenerationService(gen, store)
	letter, err := s.GenerateCoverLetter(context.Background(), "owner-1", types.DocumentTypePrimary, "岗位描述")
	require.NoError(t, err)
	assert.NotEmpty(t, letter.Subject)
	assert.Contains(t, letter.Body, "Go")
	assert.Equal(t, []int{0, 2}, letter.ChunkIndices)
}

func TestGenerationService_CoverLetterEmptyBodyFails(t *testing.T) {
	store := newFakeStore()
	seedChunks(store, "owner-1", types.DocumentTypePrimary, 3)
	gen := &fakeGenerator{payloads: []string{`{"subject": "主题", "body": "  "}`}}

	s := NewGenerationService(gen, store)
	_, err := s.GenerateCoverLetter(context.Background(), "owner-1", types.DocumentTypePrimary, "岗位描述")
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerationService_InterviewQuestionsDropInvalidAnchors(t *testing.T) {
	store := newFakeStore()
	seedChunks(store, "owner-1", types.DocumentTypePrimary, 2)
	gen := &fakeGenerator{payloads: []string{
		`{"questions": [
			{"question": "如何保证订单一致性？", "rationale": "验证支付经验", "source_chunk_index": 0},
			{"question": "凭空引用的问题", "rationale": "无效锚点", "source_chunk_index": 42}
		]}`,
	}}

	s := NewGenerationService(gen, store)
	set, err := s.GenerateInterviewQuestions(context.Background(), "owner-1", types.DocumentTypePrimary, "岗位描述")
	require.NoError(t, err)
	require.Len(t, set.Questions, 1)
	assert.Equal(t, 0, set.Questions[0].ChunkIndex)
}

func TestGenerationService_NoChunksRejected(t *testing.T) {
	s := NewGenerationService(&fakeGenerator{}, newFakeStore())

	_, err := s.GenerateCoverLetter(context.Background(), "owner-1", types.DocumentTypePrimary, "岗位描述")
	assert.ErrorIs(t, err, ErrNoChunks)

	_, err = s.GenerateInterviewQuestions(context.Background(), "owner-1", types.DocumentTypePrimary, "")
	assert.ErrorIs(t, err, ErrEmptyJobDescription)
}
