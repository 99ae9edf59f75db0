package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/logger"
)

// MinIO 提供对象存储功能，归档上传的原始文档文本
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
}

// NewMinIO 创建MinIO客户端并确保存储桶就绪
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{client: client, cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.ensureBucket(ctx, cfg.DocumentTextBucket); err != nil {
		return nil, err
	}

	return m, nil
}

// ensureBucket 确保存储桶存在，必要时设置过期策略
func (m *MinIO) ensureBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return fmt.Errorf("存储桶名称不能为空")
	}

	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 失败: %w", bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.cfg.Location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucket, err)
		}
		logger.Info().Str("bucket", bucket).Msg("已创建存储桶")
	}

	if m.cfg.DocumentTextExpireDays > 0 {
		lc := lifecycle.NewConfiguration()
		lc.Rules = []lifecycle.Rule{
			{
				ID:     "expire-document-text",
				Status: "Enabled",
				Expiration: lifecycle.Expiration{
					Days: lifecycle.ExpirationDays(m.cfg.DocumentTextExpireDays),
				},
			},
		}
		if err := m.client.SetBucketLifecycle(ctx, bucket, lc); err != nil {
			// 生命周期策略失败不阻塞启动
			logger.Warn().Str("bucket", bucket).Err(err).Msg("设置存储桶过期策略失败")
		}
	}

	return nil
}

// ArchiveDocumentText 归档一份原始文档文本，返回对象Key
// Key格式: {ownerID}/{documentType}/{uuidv7}.txt
func (m *MinIO) ArchiveDocumentText(ctx context.Context, ownerID, documentType, text string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成对象ID失败: %w", err)
	}
	objectKey := fmt.Sprintf("%s/%s/%s.txt", ownerID, documentType, id.String())

	reader := strings.NewReader(text)
	_, err = m.client.PutObject(ctx, m.cfg.DocumentTextBucket, objectKey, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("归档文档文本失败: %w", err)
	}

	logger.Ctx(ctx).Debug().
		Str("bucket", m.cfg.DocumentTextBucket).
		Str("object_key", objectKey).
		Int("size", len(text)).
		Msg("已归档文档文本")
	return objectKey, nil
}

// GetDocumentText 读取已归档的文档文本
func (m *MinIO) GetDocumentText(ctx context.Context, objectKey string) (string, error) {
	obj, err := m.client.GetObject(ctx, m.cfg.DocumentTextBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("读取归档文本失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("读取归档文本内容失败: %w", err)
	}
	return string(data), nil
}
