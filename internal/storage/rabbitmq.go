package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/logger"
)

// RabbitMQ 提供消息队列功能，用于向下游广播分析完成事件
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

// AnalysisCompletedEvent 分析完成事件载荷
type AnalysisCompletedEvent struct {
	AnalysisID string    `json:"analysis_id"`
	OwnerID    string    `json:"owner_id"`
	FitScore   int       `json:"fit_score"`
	FitLevel   string    `json:"fit_level"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewRabbitMQ 创建RabbitMQ客户端并声明事件交换机
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ连接地址不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接RabbitMQ失败: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建RabbitMQ通道失败: %w", err)
	}

	exchange := cfg.AnalysisEventsExchange
	if exchange == "" {
		exchange = "analysis.events"
	}
	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("声明交换机失败: %w", err)
	}

	return &RabbitMQ{conn: conn, channel: channel, cfg: cfg}, nil
}

// Close 关闭通道与连接
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return fmt.Errorf("关闭RabbitMQ通道失败: %w", err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("关闭RabbitMQ连接失败: %w", err)
		}
	}
	return nil
}

// PublishAnalysisCompleted 发布分析完成事件
// 发布失败只记日志不回传错误，事件广播不阻塞主流程
func (r *RabbitMQ) PublishAnalysisCompleted(ctx context.Context, event AnalysisCompletedEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("序列化分析完成事件失败")
		return
	}

	exchange := r.cfg.AnalysisEventsExchange
	if exchange == "" {
		exchange = "analysis.events"
	}
	routingKey := r.cfg.AnalysisCompletedRoutingKey
	if routingKey == "" {
		routingKey = "analysis.completed"
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = r.channel.PublishWithContext(publishCtx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         payload,
		},
	)
	if err != nil {
		logger.Ctx(ctx).Error().
			Err(err).
			Str("analysis_id", event.AnalysisID).
			Msg("发布分析完成事件失败")
		return
	}

	logger.Ctx(ctx).Debug().
		Str("analysis_id", event.AnalysisID).
		Str("routing_key", routingKey).
		Msg("已发布分析完成事件")
}
