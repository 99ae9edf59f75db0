package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/tracing"
)

// OpenAIChatModel 通过OpenAI兼容接口调用生成服务的聊天模型
// 实现 eino 的 ToolCallingChatModel 接口
type OpenAIChatModel struct {
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
	tools      []*schema.ToolInfo
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel 创建聊天模型客户端
// apiURL 应指向 /chat/completions 端点
func NewOpenAIChatModel(apiKey, apiURL, modelName string) (*OpenAIChatModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("生成服务API密钥不能为空")
	}
	if apiURL == "" {
		return nil, fmt.Errorf("生成服务API地址不能为空")
	}
	if modelName == "" {
		return nil, fmt.Errorf("生成服务模型名不能为空")
	}

	return &OpenAIChatModel{
		apiKey: apiKey,
		apiURL: apiURL,
		model:  modelName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// chatRequest OpenAI兼容的请求体
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse OpenAI兼容的响应体
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate 发送一轮对话请求
func (m *OpenAIChatModel) Generate(ctx context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	reqBody := chatRequest{
		Model:    m.model,
		Messages: make([]chatMessage, 0, len(in)),
	}
	for _, msg := range in {
		reqBody.Messages = append(reqBody.Messages, chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求生成服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, m.serviceError(resp, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: 解析响应体失败: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	logger.Ctx(ctx).Debug().
		Str("model", m.model).
		Int("total_tokens", parsed.Usage.TotalTokens).
		Dur("elapsed", time.Since(start)).
		Msg("生成服务调用完成")

	return &schema.Message{
		Role:    schema.Assistant,
		Content: parsed.Choices[0].Message.Content,
	}, nil
}

// serviceError 把非2xx响应转换为携带重试信息的ServiceError
func (m *OpenAIChatModel) serviceError(resp *http.Response, body []byte) error {
	se := &ServiceError{
		StatusCode: resp.StatusCode,
		Message:    tracing.TruncateString(string(body), tracing.DefaultMaxLength),
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if v := resp.Header.Get("Retry-After"); v != "" {
			// Retry-After 通常是秒数，也可能是HTTP日期
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				se.RetryAfter = time.Duration(secs) * time.Second
			} else if t, err := http.ParseTime(v); err == nil {
				if d := time.Until(t); d > 0 {
					se.RetryAfter = d
				}
			}
		}
	}

	return se
}

// Stream 流式生成，当前流水线未使用流式输出
func (m *OpenAIChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer sw.Close()
		sw.Send(msg, nil)
	}()
	return sr, nil
}

// WithTools 绑定工具定义，返回携带工具的新实例
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	clone := *m
	clone.tools = tools
	return &clone, nil
}
