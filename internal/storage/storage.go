package storage

import (
	"fmt"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/logger"
)

// Storage 聚合全部存储组件
// RabbitMQ与MinIO为可选组件，未配置时相应字段为nil
type Storage struct {
	MySQL    *MySQL
	Redis    *Redis
	RabbitMQ *RabbitMQ
	MinIO    *MinIO
}

// NewStorage 按配置初始化各存储组件
// MySQL与Redis为必需组件，初始化失败直接返回错误
func NewStorage(cfg *config.Config) (*Storage, error) {
	s := &Storage{}

	mysql, err := NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}
	s.MySQL = mysql

	redis, err := NewRedis(&cfg.Redis)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化Redis失败: %w", err)
	}
	s.Redis = redis

	if cfg.RabbitMQ.URL != "" {
		rabbit, err := NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("初始化RabbitMQ失败: %w", err)
		}
		s.RabbitMQ = rabbit
	} else {
		logger.Warn().Msg("未配置RabbitMQ，分析完成事件将不会发布")
	}

	if cfg.MinIO.Endpoint != "" {
		minio, err := NewMinIO(&cfg.MinIO)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("初始化MinIO失败: %w", err)
		}
		s.MinIO = minio
	} else {
		logger.Warn().Msg("未配置MinIO，原始文档文本将不会归档")
	}

	return s, nil
}

// Close 关闭全部存储组件，逐个收集错误
func (s *Storage) Close() error {
	var firstErr error
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
