package processor

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"
)

// DocumentProcessor 文档入库流程: 分块、归档、原子替换、刷新缓存
type DocumentProcessor struct {
	chunker  *parser.Chunker
	store    ChunkStore
	cache    ChunkCache
	archiver TextArchiver
}

// DocumentProcessorOption DocumentProcessor 的配置选项
type DocumentProcessorOption func(*DocumentProcessor)

// WithChunkCache 启用分块列表缓存
func WithChunkCache(cache ChunkCache) DocumentProcessorOption {
	return func(p *DocumentProcessor) {
		p.cache = cache
	}
}

// WithTextArchiver 启用原始文本归档
func WithTextArchiver(archiver TextArchiver) DocumentProcessorOption {
	return func(p *DocumentProcessor) {
		p.archiver = archiver
	}
}

// NewDocumentProcessor 创建文档入库处理器
func NewDocumentProcessor(chunker *parser.Chunker, store ChunkStore, opts ...DocumentProcessorOption) *DocumentProcessor {
	p := &DocumentProcessor{
		chunker: chunker,
		store:   store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessText 接收上游抽取好的纯文本，完成分块与持久化
// 重复上传同一 (owner, documentType) 会整体替换旧分块集
func (p *DocumentProcessor) ProcessText(ctx context.Context, ownerID string, docType types.DocumentType, text string) ([]types.DocumentChunk, error) {
	tracer := otel.Tracer("document-processor")
	ctx, span := tracer.Start(ctx, "document.process_text")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	// 归档失败不阻塞入库，分块数据才是主路径
	objectKey := ""
	if p.archiver != nil {
		key, err := p.archiver.ArchiveDocumentText(ctx, ownerID, string(docType), text)
		if err != nil {
			logger.Ctx(ctx).Warn().
				Str("owner_id", ownerID).
				Err(err).
				Msg("归档原始文本失败，继续入库")
		} else {
			objectKey = key
		}
	}

	chunks := p.chunker.Chunk(ctx, ownerID, docType, text)

	// 文本MD5随登记信息落库，调用方可据此识别内容未变化的重复上传
	textMD5 := fmt.Sprintf("%x", md5.Sum([]byte(text)))

	persisted, err := p.store.ReplaceChunks(ctx, ownerID, docType, chunks, objectKey, textMD5)
	if err != nil {
		return nil, NewPersistenceError("", "replace_chunks", err)
	}

	if p.cache != nil {
		if err := p.cache.InvalidateChunks(ctx, ownerID, docType); err != nil {
			logger.Ctx(ctx).Warn().Str("owner_id", ownerID).Err(err).Msg("失效分块缓存失败")
		}
		if err := p.cache.CacheChunks(ctx, ownerID, docType, persisted); err != nil {
			logger.Ctx(ctx).Warn().Str("owner_id", ownerID).Err(err).Msg("回填分块缓存失败")
		}
	}

	span.SetAttributes(
		attribute.String("document.owner_id", ownerID),
		attribute.String("document.type", string(docType)),
		attribute.Int("document.chunk_count", len(persisted)),
	)
	logger.Ctx(ctx).Info().
		Str("owner_id", ownerID).
		Str("document_type", string(docType)).
		Int("chunk_count", len(persisted)).
		Msg("文档入库完成")

	return persisted, nil
}

// GetChunks 读取分块列表，优先走缓存
func (p *DocumentProcessor) GetChunks(ctx context.Context, ownerID string, docType types.DocumentType) ([]types.DocumentChunk, error) {
	if p.cache != nil {
		cached, err := p.cache.GetCachedChunks(ctx, ownerID, docType)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, storage.ErrCacheMiss) {
			// 缓存故障降级走数据库
			logger.Ctx(ctx).Warn().Str("owner_id", ownerID).Err(err).Msg("读取分块缓存失败，回源数据库")
		}
	}

	chunks, err := p.store.GetChunks(ctx, ownerID, docType)
	if err != nil {
		return nil, NewPersistenceError("", "get_chunks", err)
	}

	if p.cache != nil && len(chunks) > 0 {
		if err := p.cache.CacheChunks(ctx, ownerID, docType, chunks); err != nil {
			logger.Ctx(ctx).Warn().Str("owner_id", ownerID).Err(err).Msg("回填分块缓存失败")
		}
	}
	return chunks, nil
}
