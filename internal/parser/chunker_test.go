package parser

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/types"
)

// buildText 生成指定词数的测试文本
func buildText(wordCount int) string {
	words := make([]string, wordCount)
	for i := range words {
		words[i] = fmt.Sprintf("word%04d", i)
	}
	return strings.Join(words, " ")
}

func TestChunker_EmptyInput(t *testing.T) {
	c := NewChunker()
	assert.Empty(t, c.Chunk(context.Background(), "owner-1", types.DocumentTypePrimary, ""))
	assert.Empty(t, c.Chunk(context.Background(), "owner-1", types.DocumentTypePrimary, "   \n\t  "))
}

func TestChunker_ContiguousZeroBasedIndices(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithOverlap(20))
	chunks := c.Chunk(context.Background(), "owner-1", types.DocumentTypePrimary, buildText(1000))
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, "owner-1", chunk.OwnerID)
		assert.Equal(t, types.DocumentTypePrimary, chunk.DocumentType)
		assert.GreaterOrEqual(t, len([]rune(strings.TrimSpace(chunk.Content))), 50)
		assert.Positive(t, chunk.TokenCount)
	}
}

func TestChunker_Deterministic(t *testing.T) {
	c := NewChunker(WithChunkSize(80), WithOverlap(10))
	text := buildText(500)

	first := c.Chunk(context.Background(), "owner-1", types.DocumentTypePrimary, text)
	second := c.Chunk(context.Background(), "owner-1", types.DocumentTypePrimary, text)
	assert.Equal(t, first, second)
}

func TestChunker_OverlapBetweenWindows(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithOverlap(20))
	chunks := c.Chunk(context.Background(), "owner-1", types.DocumentTypePrimary, buildText(400))
	require.Greater(t, len(chunks), 1)

	// 前一块的尾部若干词应出现在后一块的开头
	firstWords := strings.Fields(chunks[0].Content)
	secondWords := strings.Fields(chunks[1].Content)
	tail := firstWords[len(firstWords)-5:]
	head := strings.Join(secondWords[:30], " ")
	for _, w := range tail {
		assert.Contains(t, head, w)
	}
}

func TestChunker_ForwardProgressWithLargeOverlap(t *testing.T) {
	// 重叠不小于窗口时必须仍然前进，不能死循环
	c := NewChunker(WithChunkSize(50), WithOverlap(50))
	chunks := c.Chunk(context.Background(), "owner-1", types.DocumentTypePrimary, buildText(300))
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestChunker_ShortTrailingWindowDiscarded(t *testing.T) {
	// 构造一个尾窗不足50字符的输入: 窗口130词，尾部只剩2个短词
	c := NewChunker(WithChunkSize(100), WithOverlap(0))
	words := make([]string, 132)
	for i := 0; i < 130; i++ {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	words[130] = "ab"
	words[131] = "cd"

	chunks := c.Chunk(context.Background(), "owner-1", types.DocumentTypePrimary, strings.Join(words, " "))
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunker_TokenCountEstimate(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithOverlap(0))
	chunks := c.Chunk(context.Background(), "owner-1", types.DocumentTypePrimary, buildText(130))
	require.Len(t, chunks, 1)
	// 130词 / 1.3 = 100 token
	assert.Equal(t, 100, chunks[0].TokenCount)
}

func TestClassifyChunk(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    types.ChunkType
	}{
		{"经历线索词", "Senior engineer position at a fintech company, responsible for payments", types.ChunkTypeExperience},
		{"年份区间", "Backend developer 2019-2023, built the order system from scratch", types.ChunkTypeExperience},
		{"中文至今", "后端开发 2021至今 负责订单系统", types.ChunkTypeExperience},
		{"教育", "Bachelor of Computer Science, Zhejiang University, graduated with honors in CS", types.ChunkTypeEducation},
		{"技能", "Proficient in Go, MySQL, Redis and Kubernetes; familiar with Kafka", types.ChunkTypeSkills},
		{"成就", "Won the company innovation award for the realtime pipeline", types.ChunkTypeAchievements},
		{"兜底", "Some generic paragraph about hobbies and interests", types.ChunkTypeGeneral},
		{"经历优先于技能", "Position: platform engineer. Skills used daily: Go and Redis", types.ChunkTypeExperience},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyChunk(tc.content))
		})
	}
}
