package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

// ChunkSource 检索器读取候选分块的来源
type ChunkSource interface {
	// ListChunksByOwner 返回某用户的全部分块，跨文档类型，按文档类型与索引排序
	ListChunksByOwner(ctx context.Context, ownerID string) ([]types.DocumentChunk, error)
}

// SearchResult 单条检索结果
type SearchResult struct {
	Chunk types.DocumentChunk `json:"chunk"`
	// Score 两路信号合并后的综合分
	Score float64 `json:"score"`
	// Excerpt 命中密度最高的200字符内容片段
	Excerpt string `json:"excerpt"`
}

// SearchOptions 检索参数
type SearchOptions struct {
	SemanticWeight float64 // 内容密度信号权重，默认0.7
	KeywordWeight  float64 // 关键词信号权重，默认0.3
	Limit          int     // 返回条数上限，默认10
	MinRelevance   float64 // 综合分下限，默认0.1
}

// fillFrom 用检索器级默认值补齐请求未设置的参数
func (o *SearchOptions) fillFrom(d SearchOptions) {
	if o.SemanticWeight <= 0 {
		o.SemanticWeight = d.SemanticWeight
	}
	if o.KeywordWeight <= 0 {
		o.KeywordWeight = d.KeywordWeight
	}
	if o.Limit <= 0 {
		o.Limit = d.Limit
	}
	if o.MinRelevance <= 0 {
		o.MinRelevance = d.MinRelevance
	}
}

// normalize 填充仍未设置的参数
func (o *SearchOptions) normalize() {
	if o.SemanticWeight <= 0 {
		o.SemanticWeight = constants.DefaultSemanticWeight
	}
	if o.KeywordWeight <= 0 {
		o.KeywordWeight = constants.DefaultKeywordWeight
	}
	if o.Limit <= 0 {
		o.Limit = constants.DefaultSearchLimit
	}
	if o.MinRelevance <= 0 {
		o.MinRelevance = constants.DefaultMinRelevance
	}
}

// HybridRetriever 混合检索器
// 不做真实的向量检索，用关键词排名与内容密度两路词法信号近似
type HybridRetriever struct {
	source   ChunkSource
	defaults SearchOptions
}

// RetrieverOption HybridRetriever 的配置选项
type RetrieverOption func(*HybridRetriever)

// WithDefaultSearchOptions 设置检索器级默认参数，请求未指定的字段回落到这里
func WithDefaultSearchOptions(defaults SearchOptions) RetrieverOption {
	return func(r *HybridRetriever) {
		r.defaults = defaults
	}
}

// NewHybridRetriever 创建混合检索器
func NewHybridRetriever(source ChunkSource, opts ...RetrieverOption) *HybridRetriever {
	r := &HybridRetriever{source: source}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// 关键词信号内部的排名权重与词覆盖权重
const (
	keywordPositionalWeight = 0.6
	keywordTermMatchWeight  = 0.4
	densityPositionalWeight = 0.5
	densityTermWeight       = 0.5
)

// Search 对某用户的分块执行混合检索
// 结果按综合分降序，综合分低于MinRelevance的条目不返回
func (r *HybridRetriever) Search(ctx context.Context, ownerID, query string, opts SearchOptions) ([]SearchResult, error) {
	tracer := otel.Tracer("hybrid-retriever")
	ctx, span := tracer.Start(ctx, "retrieval.search")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("检索查询不能为空")
	}
	opts.fillFrom(r.defaults)
	opts.normalize()

	chunks, err := r.source.ListChunksByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("加载用户分块失败: %w", err)
	}
	if len(chunks) == 0 {
		return []SearchResult{}, nil
	}

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []SearchResult{}, nil
	}

	merged := make(map[uint64]float64)
	byID := make(map[uint64]types.DocumentChunk, len(chunks))
	for _, c := range chunks {
		byID[c.ChunkID] = c
	}

	// 信号一: 关键词排名列表
	for rank, entry := range keywordCandidates(chunks, tokens) {
		positional := positionalBaseScore(rank, entry.total)
		score := (keywordPositionalWeight*positional + keywordTermMatchWeight*entry.termMatchRatio) * opts.KeywordWeight
		merged[entry.chunkID] += score
	}

	// 信号二: 内容密度列表
	for rank, entry := range densityCandidates(chunks, tokens) {
		positional := positionalBaseScore(rank, entry.total)
		score := (densityPositionalWeight*positional + densityTermWeight*entry.termDensity) * opts.SemanticWeight
		merged[entry.chunkID] += score
	}

	results := make([]SearchResult, 0, len(merged))
	for chunkID, score := range merged {
		if score < opts.MinRelevance {
			continue
		}
		chunk := byID[chunkID]
		results = append(results, SearchResult{
			Chunk:   chunk,
			Score:   score,
			Excerpt: buildExcerpt(chunk.Content, tokens),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	logger.Ctx(ctx).Debug().
		Str("owner_id", ownerID).
		Int("candidate_count", len(merged)).
		Int("result_count", len(results)).
		Msg("混合检索完成")
	span.SetAttributes(
		attribute.Int("retrieval.chunk_count", len(chunks)),
		attribute.Int("retrieval.result_count", len(results)),
	)

	return results, nil
}

// SearchExact 纯关键词精确检索，用于硬技能查找
// 得分为关键词命中比例，不做模糊排名
func (r *HybridRetriever) SearchExact(ctx context.Context, ownerID string, keywords []string) ([]SearchResult, error) {
	tracer := otel.Tracer("hybrid-retriever")
	ctx, span := tracer.Start(ctx, "retrieval.search_exact")
	defer span.End()

	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("关键词列表不能为空")
	}

	chunks, err := r.source.ListChunksByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("加载用户分块失败: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, chunk := range chunks {
		lower := strings.ToLower(chunk.Content)
		hits := 0
		for _, kw := range cleaned {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		results = append(results, SearchResult{
			Chunk:   chunk,
			Score:   float64(hits) / float64(len(cleaned)),
			Excerpt: buildExcerpt(chunk.Content, cleaned),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	span.SetAttributes(attribute.Int("retrieval.result_count", len(results)))
	return results, nil
}

// tokenize 把查询拆成小写词元
func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]{}\"'")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// candidate 带排名信息的候选分块
type candidate struct {
	chunkID        uint64
	termMatchRatio float64
	termDensity    float64
	total          int
}

// keywordCandidates 关键词信号: 含任一查询词的分块，按命中词数降序
// termMatchRatio 只统计长度大于2的查询词
func keywordCandidates(chunks []types.DocumentChunk, tokens []string) []candidate {
	significant := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len([]rune(t)) > 2 {
			significant = append(significant, t)
		}
	}

	type ranked struct {
		cand candidate
		hits int
		idx  int
	}
	list := make([]ranked, 0)
	for _, chunk := range chunks {
		lower := strings.ToLower(chunk.Content)
		hits := 0
		for _, t := range tokens {
			if strings.Contains(lower, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}

		ratio := 0.0
		if len(significant) > 0 {
			matched := 0
			for _, t := range significant {
				if strings.Contains(lower, t) {
					matched++
				}
			}
			ratio = float64(matched) / float64(len(significant))
		}
		list = append(list, ranked{
			cand: candidate{chunkID: chunk.ChunkID, termMatchRatio: ratio},
			hits: hits,
			idx:  chunk.Index,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].hits != list[j].hits {
			return list[i].hits > list[j].hits
		}
		return list[i].idx < list[j].idx
	})

	out := make([]candidate, len(list))
	for i, r := range list {
		r.cand.total = len(list)
		out[i] = r.cand
	}
	return out
}

// densityCandidates 内容密度信号: 查询词出现次数相对分块长度的占比
func densityCandidates(chunks []types.DocumentChunk, tokens []string) []candidate {
	type ranked struct {
		cand candidate
		idx  int
	}
	list := make([]ranked, 0)
	for _, chunk := range chunks {
		lower := strings.ToLower(chunk.Content)
		occurrences := 0
		for _, t := range tokens {
			occurrences += strings.Count(lower, t)
		}
		if occurrences == 0 {
			continue
		}

		wordCount := len(strings.Fields(chunk.Content))
		if wordCount == 0 {
			continue
		}
		density := float64(occurrences) / float64(wordCount)
		if density > 1 {
			density = 1
		}
		list = append(list, ranked{
			cand: candidate{chunkID: chunk.ChunkID, termDensity: density},
			idx:  chunk.Index,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].cand.termDensity != list[j].cand.termDensity {
			return list[i].cand.termDensity > list[j].cand.termDensity
		}
		return list[i].idx < list[j].idx
	})

	out := make([]candidate, len(list))
	for i, r := range list {
		r.cand.total = len(list)
		out[i] = r.cand
	}
	return out
}

// positionalBaseScore 排名位置分，随排名线性衰减
func positionalBaseScore(rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 1 - float64(rank)/float64(total)
}

// excerpt 扫描的窗口与步长 (字符)
const (
	excerptWindow = 200
	excerptStride = 50
)

// buildExcerpt 返回查询词出现次数最多的200字符窗口，按50字符步长扫描
func buildExcerpt(content string, tokens []string) string {
	runes := []rune(content)
	if len(runes) <= excerptWindow {
		return content
	}

	// 逐字符小写，窗口偏移与原文严格一一对应
	lowerRunes := make([]rune, len(runes))
	for i, r := range runes {
		lowerRunes[i] = unicode.ToLower(r)
	}

	bestStart := 0
	bestCount := -1
	for start := 0; start < len(runes); start += excerptStride {
		end := start + excerptWindow
		if end > len(runes) {
			end = len(runes)
		}
		window := string(lowerRunes[start:end])
		count := 0
		for _, t := range tokens {
			count += strings.Count(window, t)
		}
		if count > bestCount {
			bestCount = count
			bestStart = start
		}
		if end == len(runes) {
			break
		}
	}

	end := bestStart + excerptWindow
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[bestStart:end])
}
