package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrEmptyDocument       = errors.New("文档内容为空")
	ErrEmptyJobDescription = errors.New("岗位描述为空")
	ErrEmptyQuery          = errors.New("检索查询为空")
	ErrNoChunks            = errors.New("用户没有可用的简历分块")
	ErrExtractionFailed    = errors.New("提取岗位要求失败")
	ErrMatchingFailed      = errors.New("匹配岗位要求失败")
	ErrGenerationFailed    = errors.New("生成内容失败")
	ErrPersistenceFailed   = errors.New("持久化操作失败")
)

// AnalysisError 包含详细上下文的分析流程错误
type AnalysisError struct {
	AnalysisID string
	Op         string
	BaseErr    error
	// Cause 底层原因，保留错误链以便上层分类 (限流、配额等)
	Cause error
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (操作:%s, 分析ID:%s): %s", e.BaseErr, e.Op, e.AnalysisID, e.Cause)
	}
	return fmt.Sprintf("%s (操作:%s, 分析ID:%s)", e.BaseErr, e.Op, e.AnalysisID)
}

// Unwrap 同时暴露基础错误与底层原因两条错误链
func (e *AnalysisError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.BaseErr}
	}
	return []error{e.BaseErr, e.Cause}
}

// 错误构造函数
func NewExtractionError(analysisID string, cause error) error {
	return &AnalysisError{
		AnalysisID: analysisID,
		Op:         "extract",
		BaseErr:    ErrExtractionFailed,
		Cause:      cause,
	}
}

func NewMatchingError(analysisID string, cause error) error {
	return &AnalysisError{
		AnalysisID: analysisID,
		Op:         "match",
		BaseErr:    ErrMatchingFailed,
		Cause:      cause,
	}
}

func NewPersistenceError(analysisID, op string, cause error) error {
	return &AnalysisError{
		AnalysisID: analysisID,
		Op:         op,
		BaseErr:    ErrPersistenceFailed,
		Cause:      cause,
	}
}
