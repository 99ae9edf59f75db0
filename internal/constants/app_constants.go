package constants

import "time"

const (
	// RequirementCount 每次岗位分析固定提取的要求条数
	RequirementCount = 10

	// MaxChunksPerRequirement 单条要求最多引用的分块数
	MaxChunksPerRequirement = 3

	// MinChunkContentLength 分块内容去除首尾空白后的最小字符数，低于则丢弃
	MinChunkContentLength = 50

	// WordTokenRatio 词数到token数的近似换算系数
	WordTokenRatio = 1.3

	// DefaultChunkSize 默认分块大小 (token等价)
	DefaultChunkSize = 500
	// DefaultChunkOverlap 默认分块重叠 (token等价)
	DefaultChunkOverlap = 100

	// DefaultSemanticWeight 混合检索中内容密度信号的默认权重
	DefaultSemanticWeight = 0.7
	// DefaultKeywordWeight 混合检索中关键词信号的默认权重
	DefaultKeywordWeight = 0.3
	// DefaultSearchLimit 混合检索默认返回条数
	DefaultSearchLimit = 10
	// DefaultMinRelevance 混合检索默认相关度下限
	DefaultMinRelevance = 0.1

	// DefaultPipelineTimeout 单次分析请求的端到端超时
	DefaultPipelineTimeout = 45 * time.Second

	// ChunkCacheDuration 分块列表缓存过期时间
	ChunkCacheDuration = 24 * time.Hour
	// FitResultCacheDuration 匹配度结果缓存过期时间
	FitResultCacheDuration = 6 * time.Hour
)

// 分析记录的处理状态
const (
	AnalysisStatusPending    = "PENDING"
	AnalysisStatusExtracting = "EXTRACTING"
	AnalysisStatusMatching   = "MATCHING"
	AnalysisStatusScored     = "SCORED"
	AnalysisStatusFailed     = "FAILED"
)
