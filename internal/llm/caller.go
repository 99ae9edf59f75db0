package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/tracing"
)

// RetryPolicy 重试策略
type RetryPolicy struct {
	// MaxAttempts 总尝试次数 (含首次)，默认3
	MaxAttempts int
	// BaseDelay 指数退避的基础间隔，默认1秒
	// 第n次失败后等待 BaseDelay * 2^n (n从0起)；限流响应携带建议间隔时优先使用
	BaseDelay time.Duration
}

// DefaultRetryPolicy 默认重试策略: 最多3次，1秒起步指数退避
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

// ResilientCaller 带重试与JSON修复的生成服务调用器
// 所有对生成服务的调用都应经由它发出
type ResilientCaller struct {
	chatModel model.ToolCallingChatModel
	policy    RetryPolicy
	// sleep 可注入，测试中替换为记录调用的桩
	sleep func(ctx context.Context, d time.Duration) error
}

// CallerOption ResilientCaller 的配置选项
type CallerOption func(*ResilientCaller)

// WithRetryPolicy 设置重试策略
func WithRetryPolicy(p RetryPolicy) CallerOption {
	return func(c *ResilientCaller) {
		if p.MaxAttempts > 0 {
			c.policy.MaxAttempts = p.MaxAttempts
		}
		if p.BaseDelay > 0 {
			c.policy.BaseDelay = p.BaseDelay
		}
	}
}

// WithSleepFunc 替换等待实现，仅测试使用
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) CallerOption {
	return func(c *ResilientCaller) {
		c.sleep = sleep
	}
}

// NewResilientCaller 创建调用器
func NewResilientCaller(chatModel model.ToolCallingChatModel, opts ...CallerOption) *ResilientCaller {
	c := &ResilientCaller{
		chatModel: chatModel,
		policy:    DefaultRetryPolicy(),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sleepCtx 可被上下文取消的等待
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Generate 发送一轮对话并返回原始文本，带重试
func (c *ResilientCaller) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	tracer := otel.Tracer("llm-caller")
	ctx, span := tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.Int("llm.prompt_length", len(userPrompt)),
		attribute.Int("llm.max_attempts", c.policy.MaxAttempts),
	))
	defer span.End()

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	var lastErr error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(lastErr, attempt-1)
			logger.Ctx(ctx).Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("生成服务调用失败，退避后重试")
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		resp, err := c.chatModel.Generate(ctx, messages)
		if err != nil {
			if IsFatal(err) {
				tracing.RecordError(span, err, tracing.ErrorTypeLLM)
				return "", err
			}
			lastErr = err
			continue
		}
		if resp == nil || resp.Content == "" {
			lastErr = ErrEmptyResponse
			continue
		}

		span.SetAttributes(
			attribute.Int("llm.attempts_used", attempt+1),
			attribute.String("llm.response_preview", tracing.TruncateString(resp.Content, tracing.MaxLLMResponseLength)),
		)
		return resp.Content, nil
	}

	err := fmt.Errorf("生成服务调用在 %d 次尝试后仍失败: %w", c.policy.MaxAttempts, lastErr)
	tracing.RecordError(span, err, tracing.ErrorTypeLLM)
	return "", err
}

// GenerateJSON 发送一轮对话，将响应修复为合法JSON并反序列化到out
// 解析失败同样计入重试次数，下一次尝试会重新请求生成服务
func (c *ResilientCaller) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	tracer := otel.Tracer("llm-caller")
	ctx, span := tracer.Start(ctx, "llm.generate_json")
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(lastErr, attempt-1)
			logger.Ctx(ctx).Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("生成服务JSON调用失败，退避后重试")
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}

		resp, err := c.chatModel.Generate(ctx, []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(userPrompt),
		})
		if err != nil {
			if IsFatal(err) {
				tracing.RecordError(span, err, tracing.ErrorTypeLLM)
				return err
			}
			lastErr = err
			continue
		}
		if resp == nil || resp.Content == "" {
			lastErr = ErrEmptyResponse
			continue
		}

		cleaned, err := SanitizeJSON(resp.Content)
		if err != nil {
			lastErr = c.diagnosticError(err, resp.Content)
			continue
		}
		if err := json.Unmarshal([]byte(cleaned), out); err != nil {
			lastErr = c.diagnosticError(fmt.Errorf("%w: %v", ErrMalformedResponse, err), resp.Content)
			continue
		}

		span.SetAttributes(attribute.Int("llm.attempts_used", attempt+1))
		return nil
	}

	err := fmt.Errorf("生成服务JSON调用在 %d 次尝试后仍失败: %w", c.policy.MaxAttempts, lastErr)
	tracing.RecordError(span, err, tracing.ErrorTypeLLM)
	return err
}

// backoffDelay 计算第failedAttempts次失败后的等待时间
// 限流响应携带服务端建议间隔时优先采纳
func (c *ResilientCaller) backoffDelay(err error, failedAttempts int) time.Duration {
	if d := RetryDelay(err); d > 0 {
		return d
	}
	return c.policy.BaseDelay * time.Duration(1<<uint(failedAttempts))
}

// diagnosticError 构造包含响应长度与首尾片段的解析错误，不泄露完整响应
func (c *ResilientCaller) diagnosticError(err error, raw string) error {
	head, tail := tracing.HeadTail(raw, 80)
	if tail == "" {
		return fmt.Errorf("%w (响应长度=%d, 内容=%q)", err, len(raw), head)
	}
	return fmt.Errorf("%w (响应长度=%d, 开头=%q, 结尾=%q)", err, len(raw), head, tail)
}
