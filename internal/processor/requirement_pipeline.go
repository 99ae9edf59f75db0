package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/scorer"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"
)

// RequirementPipeline 岗位分析主流程: 提取要求、匹配分块、持久化、评分
// 整条流程是顺序阻塞调用，所有对生成服务的访问都经由带重试的调用器
type RequirementPipeline struct {
	generator  JSONGenerator
	store      AnalysisStore
	chunkStore ChunkStore
	fitScorer  *scorer.FitScorer
	fitCache   FitCache
	events     EventPublisher
	timeout    time.Duration
}

// PipelineOption RequirementPipeline 的配置选项
type PipelineOption func(*RequirementPipeline)

// WithFitCache 启用评分结果缓存
func WithFitCache(cache FitCache) PipelineOption {
	return func(p *RequirementPipeline) {
		p.fitCache = cache
	}
}

// WithEventPublisher 启用分析完成事件发布
func WithEventPublisher(events EventPublisher) PipelineOption {
	return func(p *RequirementPipeline) {
		p.events = events
	}
}

// WithPipelineTimeout 设置单次分析的端到端超时
func WithPipelineTimeout(d time.Duration) PipelineOption {
	return func(p *RequirementPipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewRequirementPipeline 创建岗位分析流水线
func NewRequirementPipeline(generator JSONGenerator, store AnalysisStore, chunkStore ChunkStore, fitScorer *scorer.FitScorer, opts ...PipelineOption) *RequirementPipeline {
	p := &RequirementPipeline{
		generator:  generator,
		store:      store,
		chunkStore: chunkStore,
		fitScorer:  fitScorer,
		timeout:    constants.DefaultPipelineTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze 对某用户的简历执行一次完整的岗位匹配分析
// 返回分析ID与评分结果；失败时分析记录会被标记为FAILED并保留原因
func (p *RequirementPipeline) Analyze(ctx context.Context, ownerID string, docType types.DocumentType, jobTitle, jobDescription string) (string, *types.FitResult, error) {
	tracer := otel.Tracer("requirement-pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.analyze")
	defer span.End()

	if strings.TrimSpace(jobDescription) == "" {
		return "", nil, ErrEmptyJobDescription
	}

	chunks, err := p.chunkStore.GetChunks(ctx, ownerID, docType)
	if err != nil {
		return "", nil, NewPersistenceError("", "get_chunks", err)
	}
	if len(chunks) == 0 {
		return "", nil, ErrNoChunks
	}

	analysisID, err := p.createAnalysis(ctx, ownerID, jobTitle, jobDescription)
	if err != nil {
		return "", nil, err
	}
	span.SetAttributes(
		attribute.String("analysis.id", analysisID),
		attribute.Int("analysis.chunk_count", len(chunks)),
	)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	fit, err := p.runAnalysis(ctx, analysisID, ownerID, jobTitle, jobDescription, chunks)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		p.markFailed(analysisID, err)
		return analysisID, nil, err
	}

	return analysisID, fit, nil
}

// runAnalysis 执行提取、匹配、评分三个阶段
func (p *RequirementPipeline) runAnalysis(ctx context.Context, analysisID, ownerID, jobTitle, jobDescription string, chunks []types.DocumentChunk) (*types.FitResult, error) {
	// 阶段一: 提取要求
	if err := p.store.UpdateAnalysisStatus(ctx, analysisID, constants.AnalysisStatusExtracting); err != nil {
		return nil, NewPersistenceError(analysisID, "update_status", err)
	}
	requirements, err := p.extractRequirements(ctx, analysisID, jobTitle, jobDescription)
	if err != nil {
		return nil, err
	}

	// 阶段二: 匹配分块
	if err := p.store.UpdateAnalysisStatus(ctx, analysisID, constants.AnalysisStatusMatching); err != nil {
		return nil, NewPersistenceError(analysisID, "update_status", err)
	}
	matches, err := p.matchRequirements(ctx, analysisID, requirements, chunks)
	if err != nil {
		return nil, err
	}

	// 阶段三: 评分并落库
	fit := p.fitScorer.Score(requirements, matches)
	if err := p.store.SaveFitResult(ctx, analysisID, fit); err != nil {
		return nil, NewPersistenceError(analysisID, "save_fit", err)
	}

	if p.fitCache != nil {
		if err := p.fitCache.CacheFitResult(ctx, analysisID, &fit); err != nil {
			logger.Ctx(ctx).Warn().Str("analysis_id", analysisID).Err(err).Msg("写入评分缓存失败")
		}
	}
	if p.events != nil {
		p.events.PublishAnalysisCompleted(ctx, storage.AnalysisCompletedEvent{
			AnalysisID: analysisID,
			OwnerID:    ownerID,
			FitScore:   fit.Score,
			FitLevel:   string(fit.Level),
		})
	}

	logger.Ctx(ctx).Info().
		Str("analysis_id", analysisID).
		Int("fit_score", fit.Score).
		Str("fit_level", string(fit.Level)).
		Msg("岗位分析完成")
	return &fit, nil
}

// createAnalysis 创建分析记录，ID使用UUIDv7保证按时间有序
func (p *RequirementPipeline) createAnalysis(ctx context.Context, ownerID, jobTitle, jobDescription string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成分析ID失败: %w", err)
	}

	analysis := &models.JobAnalysis{
		AnalysisID:     id.String(),
		OwnerID:        ownerID,
		JobTitle:       jobTitle,
		JobDescription: jobDescription,
		Status:         constants.AnalysisStatusPending,
	}
	if err := p.store.CreateAnalysis(ctx, analysis); err != nil {
		return "", NewPersistenceError(id.String(), "create_analysis", err)
	}
	return id.String(), nil
}

// extractRequirements 调用生成服务提取恰好10条要求并整体替换持久化
func (p *RequirementPipeline) extractRequirements(ctx context.Context, analysisID, jobTitle, jobDescription string) ([]types.JobRequirement, error) {
	var extraction types.RequirementExtraction
	err := p.generator.GenerateJSON(ctx, extractionSystemPrompt, buildExtractionUserPrompt(jobTitle, jobDescription), &extraction)
	if err != nil {
		return nil, NewExtractionError(analysisID, err)
	}

	normalized, err := normalizeRequirements(extraction.Requirements)
	if err != nil {
		return nil, NewExtractionError(analysisID, err)
	}

	persisted, err := p.store.ReplaceRequirements(ctx, analysisID, normalized)
	if err != nil {
		return nil, NewPersistenceError(analysisID, "replace_requirements", err)
	}
	return persisted, nil
}

// normalizeRequirements 校验并规整提取结果
// 多于10条截断，少于10条视为响应异常；序号强制重排为1..10
func normalizeRequirements(raw []types.ExtractedRequirement) ([]types.JobRequirement, error) {
	cleaned := make([]types.JobRequirement, 0, constants.RequirementCount)
	for _, r := range raw {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		cleaned = append(cleaned, types.JobRequirement{
			Index:      len(cleaned) + 1,
			Text:       text,
			Category:   normalizeCategory(r.Category),
			IsCritical: r.IsCritical,
		})
		if len(cleaned) == constants.RequirementCount {
			break
		}
	}

	if len(cleaned) < constants.RequirementCount {
		return nil, fmt.Errorf("%w: 期望%d条要求，实际有效%d条",
			llm.ErrMalformedResponse, constants.RequirementCount, len(cleaned))
	}
	return cleaned, nil
}

// normalizeCategory 规整要求类别，未知值归为technical
func normalizeCategory(raw string) types.RequirementCategory {
	switch types.RequirementCategory(strings.ToLower(strings.TrimSpace(raw))) {
	case types.CategoryTechnical:
		return types.CategoryTechnical
	case types.CategoryExperience:
		return types.CategoryExperience
	case types.CategoryLeadership:
		return types.CategoryLeadership
	case types.CategoryDomain:
		return types.CategoryDomain
	case types.CategorySoftSkills:
		return types.CategorySoftSkills
	default:
		return types.CategoryTechnical
	}
}

// matchRequirements 调用生成服务做逐条匹配，校验后整体替换持久化
func (p *RequirementPipeline) matchRequirements(ctx context.Context, analysisID string, requirements []types.JobRequirement, chunks []types.DocumentChunk) ([]types.RequirementMatch, error) {
	var matching types.RequirementMatching
	err := p.generator.GenerateJSON(ctx, matchingSystemPrompt, buildMatchingUserPrompt(requirements, chunks), &matching)
	if err != nil {
		return nil, NewMatchingError(analysisID, err)
	}

	matches := validateMatches(ctx, requirements, chunks, matching.Matches)

	if err := p.store.ReplaceMatches(ctx, analysisID, matches); err != nil {
		return nil, NewPersistenceError(analysisID, "replace_matches", err)
	}
	return matches, nil
}

// validateMatches 把生成服务的匹配结果转成可信的持久化集合
// 规则: 未知要求序号丢弃；引用不存在分块的条目丢弃；每条要求最多3个分块；
// 没有任何结果的要求兜底为 status=no
func validateMatches(ctx context.Context, requirements []types.JobRequirement, chunks []types.DocumentChunk, raw []types.ChunkMatchResult) []types.RequirementMatch {
	reqByIndex := make(map[int]types.JobRequirement, len(requirements))
	for _, r := range requirements {
		reqByIndex[r.Index] = r
	}
	chunkIDByIndex := make(map[int]uint64, len(chunks))
	for _, c := range chunks {
		chunkIDByIndex[c.Index] = c.ChunkID
	}

	matched := make(map[uint64][]types.RequirementMatch, len(requirements))
	for _, m := range raw {
		req, ok := reqByIndex[m.RequirementIndex]
		if !ok {
			logger.Ctx(ctx).Warn().Int("requirement_index", m.RequirementIndex).Msg("丢弃未知要求序号的匹配结果")
			continue
		}

		status := normalizeStatus(m.Status)
		similarity := clampSimilarity(m.SimilarityScore)
		evidence := strings.TrimSpace(m.Evidence)

		// 只保留指向真实分块的引用
		validChunkIDs := make([]uint64, 0, constants.MaxChunksPerRequirement)
		for _, idx := range m.MatchingChunkIndices {
			chunkID, ok := chunkIDByIndex[idx]
			if !ok {
				logger.Ctx(ctx).Warn().
					Int("requirement_index", m.RequirementIndex).
					Int("chunk_index", idx).
					Msg("丢弃引用不存在分块的匹配结果")
				continue
			}
			validChunkIDs = append(validChunkIDs, chunkID)
			if len(validChunkIDs) == constants.MaxChunksPerRequirement {
				break
			}
		}

		if len(validChunkIDs) == 0 {
			// 没有可信引用时不采信 yes/partial 判定
			status = types.MatchStatusNo
		}
		if status == types.MatchStatusNo {
			matched[req.RequirementID] = []types.RequirementMatch{{
				RequirementID:   req.RequirementID,
				SimilarityScore: 0,
				Evidence:        types.DefaultNoMatchEvidence,
				Status:          types.MatchStatusNo,
			}}
			continue
		}

		if evidence == "" {
			evidence = types.DefaultNoMatchEvidence
		}
		entries := make([]types.RequirementMatch, 0, len(validChunkIDs))
		for _, chunkID := range validChunkIDs {
			id := chunkID
			entries = append(entries, types.RequirementMatch{
				RequirementID:   req.RequirementID,
				ChunkID:         &id,
				SimilarityScore: similarity,
				Evidence:        evidence,
				Status:          status,
			})
		}
		matched[req.RequirementID] = entries
	}

	// 未返回结果的要求兜底为无匹配
	out := make([]types.RequirementMatch, 0, len(requirements))
	for _, req := range requirements {
		entries, ok := matched[req.RequirementID]
		if !ok {
			entries = []types.RequirementMatch{{
				RequirementID:   req.RequirementID,
				SimilarityScore: 0,
				Evidence:        types.DefaultNoMatchEvidence,
				Status:          types.MatchStatusNo,
			}}
		}
		out = append(out, entries...)
	}
	return out
}

// normalizeStatus 规整匹配状态，未知值按无证据处理
func normalizeStatus(raw string) types.MatchStatus {
	switch types.MatchStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case types.MatchStatusYes:
		return types.MatchStatusYes
	case types.MatchStatusPartial:
		return types.MatchStatusPartial
	default:
		return types.MatchStatusNo
	}
}

// clampSimilarity 把相似度钳制到[0,1]
func clampSimilarity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// markFailed 把分析标记为失败，使用独立上下文避免原请求已取消
func (p *RequirementPipeline) markFailed(analysisID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.MarkAnalysisFailed(ctx, analysisID, cause.Error()); err != nil {
		logger.Error().Str("analysis_id", analysisID).Err(err).Msg("标记分析失败状态时出错")
	}
}

// RecomputeFit 从已持久化的要求与匹配集重新计算评分
// 评分是纯函数，对同一匹配集重算结果不变
func (p *RequirementPipeline) RecomputeFit(ctx context.Context, analysisID string) (*types.FitResult, error) {
	requirements, err := p.store.GetRequirements(ctx, analysisID)
	if err != nil {
		return nil, NewPersistenceError(analysisID, "get_requirements", err)
	}
	if len(requirements) == 0 {
		return nil, fmt.Errorf("分析 %s: %w", analysisID, storage.ErrNotFound)
	}
	matches, err := p.store.GetMatches(ctx, analysisID)
	if err != nil {
		return nil, NewPersistenceError(analysisID, "get_matches", err)
	}

	fit := p.fitScorer.Score(requirements, matches)
	if err := p.store.SaveFitResult(ctx, analysisID, fit); err != nil {
		return nil, NewPersistenceError(analysisID, "save_fit", err)
	}
	if p.fitCache != nil {
		if err := p.fitCache.CacheFitResult(ctx, analysisID, &fit); err != nil {
			logger.Ctx(ctx).Warn().Str("analysis_id", analysisID).Err(err).Msg("写入评分缓存失败")
		}
	}
	return &fit, nil
}

// GetFitResult 查询评分结果，优先走缓存，未命中时从持久化匹配集重算
func (p *RequirementPipeline) GetFitResult(ctx context.Context, analysisID string) (*types.FitResult, error) {
	if p.fitCache != nil {
		fit, err := p.fitCache.GetCachedFitResult(ctx, analysisID)
		if err == nil {
			return fit, nil
		}
		if !errors.Is(err, storage.ErrCacheMiss) {
			logger.Ctx(ctx).Warn().Str("analysis_id", analysisID).Err(err).Msg("读取评分缓存失败，回源重算")
		}
	}
	return p.RecomputeFit(ctx, analysisID)
}
