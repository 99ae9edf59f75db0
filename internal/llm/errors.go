package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// 生成服务调用的哨兵错误，供上层用 errors.Is 分类
var (
	// ErrQuotaExhausted 账户配额耗尽 (HTTP 402)，重试无意义
	ErrQuotaExhausted = errors.New("生成服务配额已耗尽")

	// ErrRateLimited 触发限流 (HTTP 429)，按提示间隔重试
	ErrRateLimited = errors.New("生成服务触发限流")

	// ErrServiceUnavailable 服务端错误 (HTTP 5xx)
	ErrServiceUnavailable = errors.New("生成服务暂不可用")

	// ErrMalformedResponse 响应无法解析为期望的JSON结构
	ErrMalformedResponse = errors.New("生成服务响应格式异常")

	// ErrEmptyResponse 响应为空
	ErrEmptyResponse = errors.New("生成服务返回空响应")
)

// ServiceError 生成服务返回的非2xx错误，携带足够的重试决策信息
type ServiceError struct {
	StatusCode int
	// RetryAfter 服务端建议的重试间隔，仅限流响应携带，0表示无提示
	RetryAfter time.Duration
	// Message 响应体摘要，已截断
	Message string
}

func (e *ServiceError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("生成服务返回状态码 %d (建议 %s 后重试): %s", e.StatusCode, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("生成服务返回状态码 %d: %s", e.StatusCode, e.Message)
}

// Unwrap 将状态码映射到哨兵错误，支持 errors.Is 分类
func (e *ServiceError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusPaymentRequired:
		return ErrQuotaExhausted
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode >= 500:
		return ErrServiceUnavailable
	default:
		return nil
	}
}

// IsFatal 判断错误是否不可重试
// 只有配额耗尽 (HTTP 402) 立即失败；其余非2xx、网络错误与解析失败均退避后重试
func IsFatal(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}

// RetryDelay 返回错误对应的服务端建议重试间隔，无建议时返回0
func RetryDelay(err error) time.Duration {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}
