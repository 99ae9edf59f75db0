package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"

	"resume-agent-go/internal/api/handler"
)

// RequestIDHeader 响应中携带的请求ID头
const RequestIDHeader = "X-Request-ID"

// RegisterRoutes 注册API路由
// apiKey 非空时对 /api/v1 下除健康检查外的所有路由启用Bearer鉴权
func RegisterRoutes(h *server.Hertz, analysisHandler *handler.AnalysisHandler, apiKey string) {
	h.Use(requestIDMiddleware())

	api := h.Group("/api/v1")

	// 健康检查不走鉴权
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	protected := api.Group("/")
	if apiKey != "" {
		protected.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return key == apiKey, nil
			}),
		))
	}

	protected.POST("/document/text", analysisHandler.HandleUploadText)
	protected.GET("/document/chunks", analysisHandler.HandleGetChunks)

	protected.POST("/analysis", analysisHandler.HandleAnalyze)
	protected.GET("/analysis/:id/fit", analysisHandler.HandleGetFit)

	protected.POST("/search", analysisHandler.HandleSearch)

	protected.POST("/generate/cover-letter", analysisHandler.HandleGenerateCoverLetter)
	protected.POST("/generate/interview-questions", analysisHandler.HandleGenerateInterviewQuestions)
}

// requestIDMiddleware 为每个请求生成ID并回写到响应头
func requestIDMiddleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		requestID := string(ctx.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Response.Header.Set(RequestIDHeader, requestID)
		ctx.Next(c)
	}
}
