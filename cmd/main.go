package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/api/router"
	"resume-agent-go/internal/config"
	"resume-agent-go/internal/llm"
	appLogger "resume-agent-go/internal/logger"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/retrieval"
	"resume-agent-go/internal/scorer"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	appLogger.Init(cfg.Logger)
	glog.SetLogger(hertzadapter.From(appLogger.Logger))
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		glog.Fatalf("初始化追踪失败: %v", err)
	}

	storageManager, err := storage.NewStorage(cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	chatModel, err := llm.NewOpenAIChatModel(cfg.LLM.APIKey, cfg.LLM.APIURL, cfg.LLM.Model)
	if err != nil {
		glog.Fatalf("初始化聊天模型失败: %v", err)
	}
	caller := llm.NewResilientCaller(chatModel, llm.WithRetryPolicy(llm.RetryPolicy{
		MaxAttempts: cfg.LLM.MaxAttemptsOrDefault(),
		BaseDelay:   cfg.LLM.BaseDelayOrDefault(),
	}))
	glog.Info("生成服务调用器初始化成功")

	chunker := parser.NewChunker(
		parser.WithChunkSize(cfg.Chunker.ChunkSize),
		parser.WithOverlap(cfg.Chunker.OverlapValue()),
	)

	docOpts := []processor.DocumentProcessorOption{
		processor.WithChunkCache(storageManager.Redis),
	}
	if storageManager.MinIO != nil {
		docOpts = append(docOpts, processor.WithTextArchiver(storageManager.MinIO))
	}
	documents := processor.NewDocumentProcessor(chunker, storageManager.MySQL, docOpts...)

	pipelineOpts := []processor.PipelineOption{
		processor.WithFitCache(storageManager.Redis),
		processor.WithPipelineTimeout(cfg.LLM.PipelineTimeoutOrDefault()),
	}
	if storageManager.RabbitMQ != nil {
		pipelineOpts = append(pipelineOpts, processor.WithEventPublisher(storageManager.RabbitMQ))
	}
	pipeline := processor.NewRequirementPipeline(
		caller,
		storageManager.MySQL,
		storageManager.MySQL,
		scorer.NewFitScorer(scorer.Weights{
			YesWeight:        cfg.FitScore.YesWeight,
			PartialWeight:    cfg.FitScore.PartialWeight,
			StrongThreshold:  cfg.FitScore.StrongThreshold,
			GoodThreshold:    cfg.FitScore.GoodThreshold,
			PartialThreshold: cfg.FitScore.PartialThreshold,
		}),
		pipelineOpts...,
	)

	generation := processor.NewGenerationService(caller, storageManager.MySQL)
	retriever := retrieval.NewHybridRetriever(storageManager.MySQL,
		retrieval.WithDefaultSearchOptions(retrieval.SearchOptions{
			SemanticWeight: cfg.Retrieval.SemanticWeight,
			KeywordWeight:  cfg.Retrieval.KeywordWeight,
			Limit:          cfg.Retrieval.Limit,
			MinRelevance:   cfg.Retrieval.MinRelevance,
		}),
	)
	analysisHandler := handler.NewAnalysisHandler(documents, pipeline, generation, retriever, storageManager.MySQL)
	glog.Info("分析流水线初始化成功")

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, analysisHandler, cfg.Server.APIKey)
	glog.Info("HTTP路由注册成功")

	go func() {
		glog.Infof("HTTP服务器启动中，监听地址: %s", cfg.Server.Address)
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Errorf("关闭追踪失败: %v", err)
	}
	glog.Info("优雅退出完成")
}
