package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/types"
)

// memoryChunkSource 内存分块来源
type memoryChunkSource struct {
	chunks []types.DocumentChunk
	err    error
}

func (s *memoryChunkSource) ListChunksByOwner(_ context.Context, _ string) ([]types.DocumentChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

func testChunks() []types.DocumentChunk {
	return []types.DocumentChunk{
		{
			ChunkID: 1, OwnerID: "owner-1", DocumentType: types.DocumentTypePrimary, Index: 0,
			Content: "Senior backend engineer with eight years of Go experience building payment systems on MySQL and Redis",
		},
		{
			ChunkID: 2, OwnerID: "owner-1", DocumentType: types.DocumentTypePrimary, Index: 1,
			Content: "Led a team of five engineers migrating a monolith to microservices with RabbitMQ messaging",
		},
		{
			ChunkID: 3, OwnerID: "owner-1", DocumentType: types.DocumentTypePrimary, Index: 2,
			Content: "Bachelor of Computer Science with coursework in distributed systems and databases",
		},
		{
			ChunkID: 4, OwnerID: "owner-1", DocumentType: types.DocumentTypePrimary, Index: 3,
			Content: "Hobbies include photography hiking and playing chess on weekends",
		},
	}
}

func TestHybridSearch_RanksRelevantChunksFirst(t *testing.T) {
	r := NewHybridRetriever(&memoryChunkSource{chunks: testChunks()})

	results, err := r.Search(context.Background(), "owner-1", "Go backend payment experience", SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, uint64(1), results[0].Chunk.ChunkID)
}

func TestHybridSearch_SortedDescendingAboveMinRelevance(t *testing.T) {
	r := NewHybridRetriever(&memoryChunkSource{chunks: testChunks()})

	opts := SearchOptions{MinRelevance: 0.05}
	results, err := r.Search(context.Background(), "owner-1", "engineers systems", opts)
	require.NoError(t, err)

	for i, res := range results {
		assert.GreaterOrEqual(t, res.Score, opts.MinRelevance)
		if i > 0 {
			assert.LessOrEqual(t, res.Score, results[i-1].Score)
		}
	}
}

func TestHybridSearch_LimitTruncates(t *testing.T) {
	r := NewHybridRetriever(&memoryChunkSource{chunks: testChunks()})

	results, err := r.Search(context.Background(), "owner-1", "engineer systems team", SearchOptions{Limit: 1, MinRelevance: 0.01})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 1)
}

func TestHybridSearch_RetrieverDefaultsApplied(t *testing.T) {
	// 检索器级默认参数对未指定字段生效，请求中的显式值优先
	r := NewHybridRetriever(&memoryChunkSource{chunks: testChunks()},
		WithDefaultSearchOptions(SearchOptions{Limit: 1, MinRelevance: 0.01}),
	)

	results, err := r.Search(context.Background(), "owner-1", "engineer systems team", SearchOptions{})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 1)

	results, err = r.Search(context.Background(), "owner-1", "engineer systems team", SearchOptions{Limit: 3})
	require.NoError(t, err)
	assert.Greater(t, len(results), 1)
}

func TestHybridSearch_EmptyQueryRejected(t *testing.T) {
	r := NewHybridRetriever(&memoryChunkSource{chunks: testChunks()})

	_, err := r.Search(context.Background(), "owner-1", "   ", SearchOptions{})
	assert.Error(t, err)
}

func TestHybridSearch_NoChunks(t *testing.T) {
	r := NewHybridRetriever(&memoryChunkSource{})

	results, err := r.Search(context.Background(), "owner-1", "Go", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridSearch_SourceError(t *testing.T) {
	r := NewHybridRetriever(&memoryChunkSource{err: errors.New("连接失败")})

	_, err := r.Search(context.Background(), "owner-1", "Go", SearchOptions{})
	assert.Error(t, err)
}

func TestSearchExact_ScoresByKeywordCoverage(t *testing.T) {
	r := NewHybridRetriever(&memoryChunkSource{chunks: testChunks()})

	results, err := r.SearchExact(context.Background(), "owner-1", []string{"go", "mysql", "redis"})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// 分块1同时命中三个关键词，得满分
	assert.Equal(t, uint64(1), results[0].Chunk.ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	// 不含任何关键词的分块不出现
	for _, res := range results {
		assert.NotEqual(t, uint64(4), res.Chunk.ChunkID)
	}
}

func TestSearchExact_EmptyKeywordsRejected(t *testing.T) {
	r := NewHybridRetriever(&memoryChunkSource{chunks: testChunks()})

	_, err := r.SearchExact(context.Background(), "owner-1", []string{"  ", ""})
	assert.Error(t, err)
}

func TestBuildExcerpt_PicksDensestWindow(t *testing.T) {
	// 前400字符为填充，查询词集中在后段
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("filler padding ")
	}
	b.WriteString("Go MySQL Redis Go MySQL Redis Go MySQL Redis")
	content := b.String()

	excerpt := buildExcerpt(content, []string{"go", "mysql", "redis"})
	assert.LessOrEqual(t, len([]rune(excerpt)), 200)
	assert.Contains(t, strings.ToLower(excerpt), "mysql")
}

func TestBuildExcerpt_UppercaseNonASCIIContent(t *testing.T) {
	// 非ASCII大写内容，小写化后的窗口偏移必须与原文对齐
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("İSTANBUL ARAŞTIRMA ")
	}
	b.WriteString("Go MySQL Redis deployment")
	content := b.String()

	excerpt := buildExcerpt(content, []string{"mysql", "redis"})
	assert.LessOrEqual(t, len([]rune(excerpt)), 200)
	assert.Contains(t, excerpt, "MySQL")
	assert.Contains(t, excerpt, "Redis")
}

func TestBuildExcerpt_ShortContentReturnedWhole(t *testing.T) {
	content := "short chunk content"
	assert.Equal(t, content, buildExcerpt(content, []string{"chunk"}))
}
