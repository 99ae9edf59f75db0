package processor

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

// coverLetterSystemPrompt 求职信生成的系统提示词
const coverLetterSystemPrompt = `你是一位专业的求职顾问，擅长基于候选人的真实简历内容撰写有说服力的求职信。你的任务是对照下面提供的【岗位描述】和【简历分块列表】，生成一封针对性的求职信，并严格按照指定的JSON格式输出。

**写作规则：**
1. 信中引用的经历、技能必须来自简历分块，禁止编造。
2. source_chunk_indices 列出写作时实际引用的分块编号。
3. 正文控制在300字以内，语气专业诚恳，直接指向岗位的核心要求。

**请严格遵循以下JSON输出格式规范：**
{
  "subject": "应聘高级Go后端工程师",
  "body": "尊敬的招聘团队：...",
  "source_chunk_indices": [0, 2]
}

**JSON格式细节要求：**
- 完整输出必须是一个合法的JSON对象。
- 禁止在JSON结构之外输出任何额外文本、解释或Markdown标记。`

// interviewSystemPrompt 面试问题生成的系统提示词
const interviewSystemPrompt = `你是一位经验丰富的技术面试官。你的任务是对照下面提供的【岗位描述】和【简历分块列表】，生成5个有针对性的面试问题，帮助候选人提前准备，并严格按照指定的JSON格式输出。

**出题规则：**
1. 每个问题必须锚定简历中的一个具体分块，source_chunk_index 填该分块编号。
2. rationale 说明面试官为什么会问这个问题。
3. 问题要能暴露岗位要求与简历之间的差距或验证简历内容的真实深度。

**请严格遵循以下JSON输出格式规范：**
{
  "questions": [
    {"question": "你在支付系统中如何保证订单与扣款的一致性？", "rationale": "简历声称负责支付核心链路，岗位要求分布式事务经验", "source_chunk_index": 1}
  ]
}

**JSON格式细节要求：**
- 完整输出必须是一个合法的JSON对象，顶层只有 "questions" 一个键。
- 禁止在JSON结构之外输出任何额外文本、解释或Markdown标记。`

// GenerationService 基于简历与岗位描述的内容生成
type GenerationService struct {
	generator  JSONGenerator
	chunkStore ChunkStore
}

// NewGenerationService 创建内容生成服务
func NewGenerationService(generator JSONGenerator, chunkStore ChunkStore) *GenerationService {
	return &GenerationService{
		generator:  generator,
		chunkStore: chunkStore,
	}
}

// GenerateCoverLetter 生成针对某岗位的求职信
func (s *GenerationService) GenerateCoverLetter(ctx context.Context, ownerID string, docType types.DocumentType, jobDescription string) (*types.CoverLetter, error) {
	tracer := otel.Tracer("generation-service")
	ctx, span := tracer.Start(ctx, "generation.cover_letter")
	defer span.End()

	chunks, err := s.loadChunks(ctx, ownerID, docType, jobDescription)
	if err != nil {
		return nil, err
	}

	var letter types.CoverLetter
	if err := s.generator.GenerateJSON(ctx, coverLetterSystemPrompt, buildGenerationUserPrompt(jobDescription, chunks), &letter); err != nil {
		return nil, &AnalysisError{Op: "cover_letter", BaseErr: ErrGenerationFailed, Cause: err}
	}
	if strings.TrimSpace(letter.Body) == "" {
		return nil, &AnalysisError{Op: "cover_letter", BaseErr: ErrGenerationFailed, Cause: fmt.Errorf("正文为空")}
	}

	span.SetAttributes(attribute.Int("generation.source_chunks", len(letter.ChunkIndices)))
	logger.Ctx(ctx).Info().Str("owner_id", ownerID).Msg("求职信生成完成")
	return &letter, nil
}

// GenerateInterviewQuestions 生成面试准备问题
func (s *GenerationService) GenerateInterviewQuestions(ctx context.Context, ownerID string, docType types.DocumentType, jobDescription string) (*types.InterviewQuestionSet, error) {
	tracer := otel.Tracer("generation-service")
	ctx, span := tracer.Start(ctx, "generation.interview_questions")
	defer span.End()

	chunks, err := s.loadChunks(ctx, ownerID, docType, jobDescription)
	if err != nil {
		return nil, err
	}

	var set types.InterviewQuestionSet
	if err := s.generator.GenerateJSON(ctx, interviewSystemPrompt, buildGenerationUserPrompt(jobDescription, chunks), &set); err != nil {
		return nil, &AnalysisError{Op: "interview_questions", BaseErr: ErrGenerationFailed, Cause: err}
	}

	// 丢弃锚定到不存在分块的问题
	valid := make([]types.InterviewQuestion, 0, len(set.Questions))
	indexSet := make(map[int]bool, len(chunks))
	for _, c := range chunks {
		indexSet[c.Index] = true
	}
	for _, q := range set.Questions {
		if !indexSet[q.ChunkIndex] {
			logger.Ctx(ctx).Warn().Int("chunk_index", q.ChunkIndex).Msg("丢弃引用不存在分块的面试问题")
			continue
		}
		valid = append(valid, q)
	}
	set.Questions = valid

	if len(set.Questions) == 0 {
		return nil, &AnalysisError{Op: "interview_questions", BaseErr: ErrGenerationFailed, Cause: fmt.Errorf("没有有效问题")}
	}

	span.SetAttributes(attribute.Int("generation.question_count", len(set.Questions)))
	return &set, nil
}

// loadChunks 加载并校验生成所需的简历分块与岗位描述
func (s *GenerationService) loadChunks(ctx context.Context, ownerID string, docType types.DocumentType, jobDescription string) ([]types.DocumentChunk, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, ErrEmptyJobDescription
	}
	chunks, err := s.chunkStore.GetChunks(ctx, ownerID, docType)
	if err != nil {
		return nil, NewPersistenceError("", "get_chunks", err)
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	return chunks, nil
}

// buildGenerationUserPrompt 构造生成类请求的用户提示词
func buildGenerationUserPrompt(jobDescription string, chunks []types.DocumentChunk) string {
	var b strings.Builder
	b.WriteString("【岗位描述】\n")
	b.WriteString(jobDescription)
	b.WriteString("\n\n【简历分块列表】\n")
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "--- 分块 %d (%s) ---\n%s\n", chunk.Index, chunk.ChunkType, chunk.Content)
	}
	return b.String()
}
