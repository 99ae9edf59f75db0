package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/retrieval"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"
)

// AnalysisHandler 承接文档入库、岗位分析、检索与生成的HTTP入口
type AnalysisHandler struct {
	documents  *processor.DocumentProcessor
	pipeline   *processor.RequirementPipeline
	generation *processor.GenerationService
	retriever  *retrieval.HybridRetriever
	store      processor.AnalysisStore
}

// NewAnalysisHandler 创建处理器
func NewAnalysisHandler(
	documents *processor.DocumentProcessor,
	pipeline *processor.RequirementPipeline,
	generation *processor.GenerationService,
	retriever *retrieval.HybridRetriever,
	store processor.AnalysisStore,
) *AnalysisHandler {
	return &AnalysisHandler{
		documents:  documents,
		pipeline:   pipeline,
		generation: generation,
		retriever:  retriever,
		store:      store,
	}
}

// uploadTextRequest 文本入库请求体
type uploadTextRequest struct {
	OwnerID      string `json:"owner_id"`
	DocumentType string `json:"document_type"`
	Text         string `json:"text"`
}

// HandleUploadText POST /api/v1/document/text
// 接收上游抽取好的纯文本并完成分块入库
func (h *AnalysisHandler) HandleUploadText(c context.Context, ctx *app.RequestContext) {
	var req uploadTextRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
		return
	}
	if req.OwnerID == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "owner_id不能为空"})
		return
	}

	chunks, err := h.documents.ProcessText(c, req.OwnerID, normalizeDocType(req.DocumentType), req.Text)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"owner_id":    req.OwnerID,
		"chunk_count": len(chunks),
		"chunks":      chunks,
	})
}

// HandleGetChunks GET /api/v1/document/chunks?owner_id=&document_type=
func (h *AnalysisHandler) HandleGetChunks(c context.Context, ctx *app.RequestContext) {
	ownerID := ctx.Query("owner_id")
	if ownerID == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "owner_id不能为空"})
		return
	}

	chunks, err := h.documents.GetChunks(c, ownerID, normalizeDocType(ctx.Query("document_type")))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"chunks": chunks})
}

// analyzeRequest 岗位分析请求体
type analyzeRequest struct {
	OwnerID        string `json:"owner_id"`
	DocumentType   string `json:"document_type"`
	JobTitle       string `json:"job_title"`
	JobDescription string `json:"job_description"`
}

// HandleAnalyze POST /api/v1/analysis
// 同步执行完整的分析流水线并返回评分
func (h *AnalysisHandler) HandleAnalyze(c context.Context, ctx *app.RequestContext) {
	var req analyzeRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
		return
	}
	if req.OwnerID == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "owner_id不能为空"})
		return
	}

	analysisID, fit, err := h.pipeline.Analyze(c, req.OwnerID, normalizeDocType(req.DocumentType), req.JobTitle, req.JobDescription)
	if err != nil {
		writeAnalysisError(ctx, analysisID, err)
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"analysis_id": analysisID,
		"fit":         fit,
	})
}

// HandleGetFit GET /api/v1/analysis/:id/fit
// 读取评分结果，缓存未命中时从持久化匹配集重算
func (h *AnalysisHandler) HandleGetFit(c context.Context, ctx *app.RequestContext) {
	analysisID := ctx.Param("id")
	if analysisID == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "分析ID不能为空"})
		return
	}

	analysis, err := h.store.GetAnalysis(c, analysisID)
	if err != nil {
		writeError(ctx, err)
		return
	}

	fit, err := h.pipeline.GetFitResult(c, analysisID)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"analysis_id": analysisID,
		"status":      analysis.Status,
		"job_title":   analysis.JobTitle,
		"fit":         fit,
	})
}

// searchRequest 检索请求体
type searchRequest struct {
	OwnerID string   `json:"owner_id"`
	Query   string   `json:"query"`
	Exact   []string `json:"exact_keywords,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// HandleSearch POST /api/v1/search
// 提供混合检索与精确关键词检索两种模式
func (h *AnalysisHandler) HandleSearch(c context.Context, ctx *app.RequestContext) {
	var req searchRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
		return
	}
	if req.OwnerID == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "owner_id不能为空"})
		return
	}

	if len(req.Exact) == 0 && strings.TrimSpace(req.Query) == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": processor.ErrEmptyQuery.Error()})
		return
	}

	var results []retrieval.SearchResult
	var err error
	if len(req.Exact) > 0 {
		results, err = h.retriever.SearchExact(c, req.OwnerID, req.Exact)
	} else {
		results, err = h.retriever.Search(c, req.OwnerID, req.Query, retrieval.SearchOptions{Limit: req.Limit})
	}
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"results": results})
}

// generateRequest 生成类请求体
type generateRequest struct {
	OwnerID        string `json:"owner_id"`
	DocumentType   string `json:"document_type"`
	JobDescription string `json:"job_description"`
}

// HandleGenerateCoverLetter POST /api/v1/generate/cover-letter
func (h *AnalysisHandler) HandleGenerateCoverLetter(c context.Context, ctx *app.RequestContext) {
	var req generateRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
		return
	}

	letter, err := h.generation.GenerateCoverLetter(c, req.OwnerID, normalizeDocType(req.DocumentType), req.JobDescription)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, letter)
}

// HandleGenerateInterviewQuestions POST /api/v1/generate/interview-questions
func (h *AnalysisHandler) HandleGenerateInterviewQuestions(c context.Context, ctx *app.RequestContext) {
	var req generateRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
		return
	}

	questions, err := h.generation.GenerateInterviewQuestions(c, req.OwnerID, normalizeDocType(req.DocumentType), req.JobDescription)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, questions)
}

// normalizeDocType 空文档类型默认为主简历
func normalizeDocType(raw string) types.DocumentType {
	if raw == "" {
		return types.DocumentTypePrimary
	}
	return types.DocumentType(raw)
}

// writeAnalysisError 分析失败时附带已创建的分析ID返回
func writeAnalysisError(ctx *app.RequestContext, analysisID string, err error) {
	status, body := classifyError(err)
	if analysisID != "" {
		body["analysis_id"] = analysisID
	}
	ctx.JSON(status, body)
}

// writeError 把内部错误映射为HTTP响应
func writeError(ctx *app.RequestContext, err error) {
	status, body := classifyError(err)
	ctx.JSON(status, body)
}

// classifyError 错误到HTTP状态码的映射
// 输入类错误返回400，配额耗尽返回402，限流返回429，未找到返回404，其余500
func classifyError(err error) (int, utils.H) {
	switch {
	case errors.Is(err, processor.ErrEmptyDocument),
		errors.Is(err, processor.ErrEmptyJobDescription),
		errors.Is(err, processor.ErrEmptyQuery),
		errors.Is(err, processor.ErrNoChunks):
		return consts.StatusBadRequest, utils.H{"error": err.Error()}
	case errors.Is(err, storage.ErrNotFound):
		return consts.StatusNotFound, utils.H{"error": err.Error()}
	case errors.Is(err, llm.ErrQuotaExhausted):
		return consts.StatusPaymentRequired, utils.H{"error": "生成服务配额已耗尽，请稍后联系管理员"}
	case errors.Is(err, llm.ErrRateLimited):
		return consts.StatusTooManyRequests, utils.H{"error": "生成服务繁忙，请稍后重试"}
	default:
		return consts.StatusInternalServerError, utils.H{"error": err.Error()}
	}
}
