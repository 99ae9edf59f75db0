package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("缓存未命中")

// Redis 提供缓存功能
type Redis struct {
	client *redis.Client
}

// NewRedis 创建Redis客户端并注册追踪
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册Redis追踪失败: %w", err)
	}

	return &Redis{client: client}, nil
}

// Client 返回底层客户端
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.client.Close()
}

// CacheChunks 缓存某 (owner, documentType) 的分块列表
func (r *Redis) CacheChunks(ctx context.Context, ownerID string, docType types.DocumentType, chunks []types.DocumentChunk) error {
	key := fmt.Sprintf(constants.KeyChunkList, ownerID, string(docType))
	payload, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("序列化分块列表失败: %w", err)
	}
	if err := r.client.Set(ctx, key, payload, constants.ChunkCacheDuration).Err(); err != nil {
		return fmt.Errorf("写入分块缓存失败: %w", err)
	}
	return nil
}

// GetCachedChunks 读取分块列表缓存
func (r *Redis) GetCachedChunks(ctx context.Context, ownerID string, docType types.DocumentType) ([]types.DocumentChunk, error) {
	key := fmt.Sprintf(constants.KeyChunkList, ownerID, string(docType))
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("读取分块缓存失败: %w", err)
	}

	var chunks []types.DocumentChunk
	if err := json.Unmarshal(payload, &chunks); err != nil {
		// 缓存内容损坏按未命中处理，同时清掉脏数据
		logger.Ctx(ctx).Warn().Str("key", key).Err(err).Msg("分块缓存内容损坏，已删除")
		r.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}
	return chunks, nil
}

// InvalidateChunks 删除分块列表缓存，重新分块后调用
func (r *Redis) InvalidateChunks(ctx context.Context, ownerID string, docType types.DocumentType) error {
	key := fmt.Sprintf(constants.KeyChunkList, ownerID, string(docType))
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("删除分块缓存失败: %w", err)
	}
	return nil
}

// CacheFitResult 缓存分析的评分结果
func (r *Redis) CacheFitResult(ctx context.Context, analysisID string, fit *types.FitResult) error {
	key := fmt.Sprintf(constants.KeyAnalysisFit, analysisID)
	payload, err := json.Marshal(fit)
	if err != nil {
		return fmt.Errorf("序列化评分结果失败: %w", err)
	}
	if err := r.client.Set(ctx, key, payload, constants.FitResultCacheDuration).Err(); err != nil {
		return fmt.Errorf("写入评分缓存失败: %w", err)
	}
	return nil
}

// GetCachedFitResult 读取评分结果缓存
func (r *Redis) GetCachedFitResult(ctx context.Context, analysisID string) (*types.FitResult, error) {
	key := fmt.Sprintf(constants.KeyAnalysisFit, analysisID)
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("读取评分缓存失败: %w", err)
	}

	var fit types.FitResult
	if err := json.Unmarshal(payload, &fit); err != nil {
		logger.Ctx(ctx).Warn().Str("key", key).Err(err).Msg("评分缓存内容损坏，已删除")
		r.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}
	return &fit, nil
}

// InvalidateFitResult 删除评分缓存，重新分析后调用
func (r *Redis) InvalidateFitResult(ctx context.Context, analysisID string) error {
	key := fmt.Sprintf(constants.KeyAnalysisFit, analysisID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("删除评分缓存失败: %w", err)
	}
	return nil
}
