package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel 按脚本依次返回预设结果的测试模型
type scriptedModel struct {
	responses []scriptedResponse
	calls     int
}

type scriptedResponse struct {
	content string
	err     error
}

var _ model.ToolCallingChatModel = (*scriptedModel)(nil)

func (m *scriptedModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if m.calls >= len(m.responses) {
		return nil, errors.New("脚本已耗尽")
	}
	r := m.responses[m.calls]
	m.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &schema.Message{Role: schema.Assistant, Content: r.content}, nil
}

func (m *scriptedModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("未实现")
}

func (m *scriptedModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// recordingSleep 记录每次退避时长而不真正等待
func recordingSleep() (*[]time.Duration, func(context.Context, time.Duration) error) {
	var slept []time.Duration
	return &slept, func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
}

func TestResilientCaller_SucceedsFirstAttempt(t *testing.T) {
	m := &scriptedModel{responses: []scriptedResponse{
		{content: `{"score": 70}`},
	}}
	slept, sleep := recordingSleep()
	caller := NewResilientCaller(m, WithSleepFunc(sleep))

	var out struct {
		Score int `json:"score"`
	}
	err := caller.GenerateJSON(context.Background(), "system", "user", &out)
	require.NoError(t, err)
	assert.Equal(t, 70, out.Score)
	assert.Equal(t, 1, m.calls)
	assert.Empty(t, *slept)
}

func TestResilientCaller_RateLimitedThenSuccess(t *testing.T) {
	m := &scriptedModel{responses: []scriptedResponse{
		{err: &ServiceError{StatusCode: http.StatusTooManyRequests, RetryAfter: 2 * time.Second}},
		{err: &ServiceError{StatusCode: http.StatusTooManyRequests}},
		{content: `{"ok": true}`},
	}}
	slept, sleep := recordingSleep()
	caller := NewResilientCaller(m, WithSleepFunc(sleep))

	var out struct {
		OK bool `json:"ok"`
	}
	err := caller.GenerateJSON(context.Background(), "system", "user", &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 3, m.calls)

	// 第一次退避采纳服务端建议的2秒，第二次落回指数退避 1s*2^1
	require.Len(t, *slept, 2)
	assert.Equal(t, 2*time.Second, (*slept)[0])
	assert.Equal(t, 2*time.Second, (*slept)[1])
}

func TestResilientCaller_ExponentialBackoff(t *testing.T) {
	m := &scriptedModel{responses: []scriptedResponse{
		{err: &ServiceError{StatusCode: http.StatusInternalServerError}},
		{err: &ServiceError{StatusCode: http.StatusInternalServerError}},
		{err: &ServiceError{StatusCode: http.StatusInternalServerError}},
	}}
	slept, sleep := recordingSleep()
	caller := NewResilientCaller(m, WithSleepFunc(sleep))

	_, err := caller.Generate(context.Background(), "system", "user")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.Equal(t, 3, m.calls)

	// 无服务端建议时按 1s, 2s 指数退避
	require.Len(t, *slept, 2)
	assert.Equal(t, 1*time.Second, (*slept)[0])
	assert.Equal(t, 2*time.Second, (*slept)[1])
}

func TestResilientCaller_QuotaExhaustedIsFatal(t *testing.T) {
	m := &scriptedModel{responses: []scriptedResponse{
		{err: &ServiceError{StatusCode: http.StatusPaymentRequired}},
	}}
	slept, sleep := recordingSleep()
	caller := NewResilientCaller(m, WithSleepFunc(sleep))

	var out map[string]any
	err := caller.GenerateJSON(context.Background(), "system", "user", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExhausted))

	// 致命错误立即失败，不重试不等待
	assert.Equal(t, 1, m.calls)
	assert.Empty(t, *slept)
}

func TestResilientCaller_ClientErrorRetriedWithBackoff(t *testing.T) {
	m := &scriptedModel{responses: []scriptedResponse{
		{err: &ServiceError{StatusCode: http.StatusBadRequest}},
		{err: &ServiceError{StatusCode: http.StatusBadRequest}},
		{content: `{"ok": true}`},
	}}
	slept, sleep := recordingSleep()
	caller := NewResilientCaller(m, WithSleepFunc(sleep))

	var out struct {
		OK bool `json:"ok"`
	}
	err := caller.GenerateJSON(context.Background(), "system", "user", &out)
	require.NoError(t, err)
	assert.True(t, out.OK)

	// 非429的4xx与5xx一样走指数退避重试，第三次成功
	assert.Equal(t, 3, m.calls)
	require.Len(t, *slept, 2)
	assert.Equal(t, 1*time.Second, (*slept)[0])
	assert.Equal(t, 2*time.Second, (*slept)[1])
}

func TestResilientCaller_MalformedResponseIsRetried(t *testing.T) {
	m := &scriptedModel{responses: []scriptedResponse{
		{content: "这不是JSON"},
		{content: `{"ok": true}`},
	}}
	slept, sleep := recordingSleep()
	caller := NewResilientCaller(m, WithSleepFunc(sleep))

	var out struct {
		OK bool `json:"ok"`
	}
	err := caller.GenerateJSON(context.Background(), "system", "user", &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 2, m.calls)
	require.Len(t, *slept, 1)
}

func TestResilientCaller_AllAttemptsFail(t *testing.T) {
	m := &scriptedModel{responses: []scriptedResponse{
		{content: "非JSON 1"},
		{content: "非JSON 2"},
		{content: "非JSON 3"},
	}}
	_, sleep := recordingSleep()
	caller := NewResilientCaller(m, WithSleepFunc(sleep))

	var out map[string]any
	err := caller.GenerateJSON(context.Background(), "system", "user", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
	assert.Equal(t, 3, m.calls)
}

func TestResilientCaller_CustomPolicy(t *testing.T) {
	m := &scriptedModel{responses: []scriptedResponse{
		{err: &ServiceError{StatusCode: http.StatusBadGateway}},
		{err: &ServiceError{StatusCode: http.StatusBadGateway}},
		{err: &ServiceError{StatusCode: http.StatusBadGateway}},
		{err: &ServiceError{StatusCode: http.StatusBadGateway}},
		{content: "ok"},
	}}
	slept, sleep := recordingSleep()
	caller := NewResilientCaller(m,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond}),
		WithSleepFunc(sleep),
	)

	got, err := caller.Generate(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}, *slept)
}

func TestServiceError_Classification(t *testing.T) {
	assert.True(t, errors.Is(&ServiceError{StatusCode: 402}, ErrQuotaExhausted))
	assert.True(t, errors.Is(&ServiceError{StatusCode: 429}, ErrRateLimited))
	assert.True(t, errors.Is(&ServiceError{StatusCode: 503}, ErrServiceUnavailable))

	// 只有配额耗尽不可重试，其余状态码与网络错误均可重试
	assert.True(t, IsFatal(&ServiceError{StatusCode: 402}))
	assert.False(t, IsFatal(&ServiceError{StatusCode: 400}))
	assert.False(t, IsFatal(&ServiceError{StatusCode: 403}))
	assert.False(t, IsFatal(&ServiceError{StatusCode: 429}))
	assert.False(t, IsFatal(&ServiceError{StatusCode: 500}))
	assert.False(t, IsFatal(errors.New("连接被重置")))
}
