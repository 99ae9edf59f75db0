package parser

import (
	"context"
	"math"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

// Chunker 基于滑动词窗的文档分块器
// 同样的输入与参数总是产出同样的分块序列
type Chunker struct {
	// chunkSize 目标分块大小 (token等价)
	chunkSize int
	// overlap 相邻分块重叠 (token等价)
	overlap int
}

// ChunkerOption Chunker 的配置选项
type ChunkerOption func(*Chunker)

// WithChunkSize 设置分块大小
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap 设置分块重叠
func WithOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker 创建分块器，默认500 token大小、100 token重叠
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		chunkSize: constants.DefaultChunkSize,
		overlap:   constants.DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk 把原始文档文本切成带类别标注的有序分块
// 空输入或纯空白输入返回空切片，不视为错误
func (c *Chunker) Chunk(ctx context.Context, ownerID string, docType types.DocumentType, text string) []types.DocumentChunk {
	tracer := otel.Tracer("chunker")
	_, span := tracer.Start(ctx, "chunker.chunk")
	defer span.End()

	words := strings.Fields(text)
	if len(words) == 0 {
		span.SetAttributes(attribute.Int("chunker.chunk_count", 0))
		return []types.DocumentChunk{}
	}

	// token数换算为词数，1.3为近似的词token比
	wordsPerChunk := int(float64(c.chunkSize) * constants.WordTokenRatio)
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}
	overlapWords := int(float64(c.overlap) * constants.WordTokenRatio)
	if overlapWords >= wordsPerChunk {
		overlapWords = wordsPerChunk - 1
	}

	chunks := make([]types.DocumentChunk, 0, len(words)/wordsPerChunk+1)
	index := 0
	start := 0
	for start < len(words) {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}

		content := strings.TrimSpace(strings.Join(words[start:end], " "))
		// 过短的窗口直接丢弃，索引不为其递增
		if len([]rune(content)) >= constants.MinChunkContentLength {
			windowWords := end - start
			chunks = append(chunks, types.DocumentChunk{
				OwnerID:      ownerID,
				DocumentType: docType,
				Index:        index,
				Content:      content,
				ChunkType:    classifyChunk(content),
				TokenCount:   int(math.Ceil(float64(windowWords) / constants.WordTokenRatio)),
			})
			index++
		}

		if end >= len(words) {
			break
		}

		// 下一窗口从上一窗口结尾回退overlap个词开始，但必须保证前进
		next := end - overlapWords
		if next <= start {
			next = end
		}
		start = next
	}

	logger.Ctx(ctx).Debug().
		Str("owner_id", ownerID).
		Str("document_type", string(docType)).
		Int("word_count", len(words)).
		Int("chunk_count", len(chunks)).
		Msg("文档分块完成")
	span.SetAttributes(
		attribute.Int("chunker.word_count", len(words)),
		attribute.Int("chunker.chunk_count", len(chunks)),
	)

	return chunks
}

// yearRangeRegex 匹配 "2019-2023"、"2019 - present"、"2019至今" 这类时间段
var yearRangeRegex = regexp.MustCompile(`(?i)\b(19|20)\d{2}\s*[-–—~]\s*((19|20)\d{2}|present|now)\b|(19|20)\d{2}\s*(至今|到现在)`)

// 各类别的线索词，按优先级排列，首个命中的类别生效
var (
	experienceCues = []string{
		"experience", "position", "employment", "worked", "职责", "工作经历", "项目经历", "任职",
	}
	educationCues = []string{
		"education", "degree", "university", "bachelor", "master", "phd", "学历", "教育", "毕业", "学位",
	}
	skillsCues = []string{
		"skills", "technologies", "proficient", "familiar", "技能", "熟悉", "精通", "掌握",
	}
	achievementCues = []string{
		"achievement", "award", "certification", "honor", "奖", "证书", "认证", "荣誉",
	}
)

// classifyChunk 按固定优先级对分块内容做启发式分类
// 经历 > 教育 > 技能 > 成就，均不命中时归为general
func classifyChunk(content string) types.ChunkType {
	lower := strings.ToLower(content)

	if containsAny(lower, experienceCues) || yearRangeRegex.MatchString(lower) {
		return types.ChunkTypeExperience
	}
	if containsAny(lower, educationCues) {
		return types.ChunkTypeEducation
	}
	if containsAny(lower, skillsCues) {
		return types.ChunkTypeSkills
	}
	if containsAny(lower, achievementCues) {
		return types.ChunkTypeAchievements
	}
	return types.ChunkTypeGeneral
}

func containsAny(s string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}
