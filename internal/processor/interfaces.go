package processor

import (
	"context"

	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"
)

// JSONGenerator 生成服务的JSON调用入口
// 由带重试与修复的调用器实现，测试中可替换为确定性桩
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error
}

// ChunkStore 分块的持久化边界
type ChunkStore interface {
	// ReplaceChunks 原子替换某 (owner, documentType) 的全部分块，返回带ID的分块
	ReplaceChunks(ctx context.Context, ownerID string, docType types.DocumentType, chunks []types.DocumentChunk, rawTextObjectKey, rawTextMD5 string) ([]types.DocumentChunk, error)
	// GetChunks 按索引升序返回分块
	GetChunks(ctx context.Context, ownerID string, docType types.DocumentType) ([]types.DocumentChunk, error)
}

// AnalysisStore 岗位分析的持久化边界
type AnalysisStore interface {
	CreateAnalysis(ctx context.Context, analysis *models.JobAnalysis) error
	GetAnalysis(ctx context.Context, analysisID string) (*models.JobAnalysis, error)
	UpdateAnalysisStatus(ctx context.Context, analysisID, status string) error
	MarkAnalysisFailed(ctx context.Context, analysisID, reason string) error
	ReplaceRequirements(ctx context.Context, analysisID string, reqs []types.JobRequirement) ([]types.JobRequirement, error)
	GetRequirements(ctx context.Context, analysisID string) ([]types.JobRequirement, error)
	ReplaceMatches(ctx context.Context, analysisID string, matches []types.RequirementMatch) error
	GetMatches(ctx context.Context, analysisID string) ([]types.RequirementMatch, error)
	SaveFitResult(ctx context.Context, analysisID string, fit types.FitResult) error
}

// ChunkCache 分块列表缓存
type ChunkCache interface {
	CacheChunks(ctx context.Context, ownerID string, docType types.DocumentType, chunks []types.DocumentChunk) error
	GetCachedChunks(ctx context.Context, ownerID string, docType types.DocumentType) ([]types.DocumentChunk, error)
	InvalidateChunks(ctx context.Context, ownerID string, docType types.DocumentType) error
}

// FitCache 评分结果缓存
type FitCache interface {
	CacheFitResult(ctx context.Context, analysisID string, fit *types.FitResult) error
	GetCachedFitResult(ctx context.Context, analysisID string) (*types.FitResult, error)
	InvalidateFitResult(ctx context.Context, analysisID string) error
}

// TextArchiver 原始文档文本归档
type TextArchiver interface {
	ArchiveDocumentText(ctx context.Context, ownerID, documentType, text string) (string, error)
}

// EventPublisher 分析完成事件发布
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, event storage.AnalysisCompletedEvent)
}

// 接口实现检查
var (
	_ ChunkStore     = (*storage.MySQL)(nil)
	_ AnalysisStore  = (*storage.MySQL)(nil)
	_ ChunkCache     = (*storage.Redis)(nil)
	_ FitCache       = (*storage.Redis)(nil)
	_ TextArchiver   = (*storage.MinIO)(nil)
	_ EventPublisher = (*storage.RabbitMQ)(nil)
)
