package types

// ChunkType 表示简历分块的启发式类别
type ChunkType string

const (
	// ChunkTypeExperience 工作/项目经历类分块
	ChunkTypeExperience ChunkType = "experience"
	// ChunkTypeEducation 教育背景类分块
	ChunkTypeEducation ChunkType = "education"
	// ChunkTypeSkills 技能类分块
	ChunkTypeSkills ChunkType = "skills"
	// ChunkTypeAchievements 成就/奖项类分块
	ChunkTypeAchievements ChunkType = "achievements"
	// ChunkTypeGeneral 未命中任何类别时的默认分块
	ChunkTypeGeneral ChunkType = "general"
)

// DocumentType 区分同一用户持有的不同文档角色
type DocumentType string

const (
	// DocumentTypePrimary 主简历
	DocumentTypePrimary DocumentType = "primary"
	// DocumentTypeCondensed 精简版简历
	DocumentTypeCondensed DocumentType = "condensed"
)

// DocumentChunk 文档分块，检索的基本单位
// 索引在 (OwnerID, DocumentType) 内从0开始连续且唯一
type DocumentChunk struct {
	ChunkID      uint64       `json:"chunk_id"`
	OwnerID      string       `json:"owner_id"`
	DocumentType DocumentType `json:"document_type"`
	Index        int          `json:"index"`
	Content      string       `json:"content"`
	ChunkType    ChunkType    `json:"chunk_type"`
	TokenCount   int          `json:"token_count"`
}

// RequirementCategory 岗位要求的类别
type RequirementCategory string

const (
	CategoryTechnical  RequirementCategory = "technical"
	CategoryExperience RequirementCategory = "experience"
	CategoryLeadership RequirementCategory = "leadership"
	CategoryDomain     RequirementCategory = "domain"
	CategorySoftSkills RequirementCategory = "soft_skills"
)

// JobRequirement 从岗位描述中提取的一条决定性要求 (每次分析固定10条)
type JobRequirement struct {
	RequirementID uint64              `json:"requirement_id"`
	AnalysisID    string              `json:"analysis_id"`
	Index         int                 `json:"index"` // 1..10
	Text          string              `json:"text"`
	Category      RequirementCategory `json:"category"`
	IsCritical    bool                `json:"is_critical"`
}

// MatchStatus 要求与简历证据的匹配状态
type MatchStatus string

const (
	// MatchStatusYes 有充分证据
	MatchStatusYes MatchStatus = "yes"
	// MatchStatusPartial 有部分证据
	MatchStatusPartial MatchStatus = "partial"
	// MatchStatusNo 无证据
	MatchStatusNo MatchStatus = "no"
)

// DefaultNoMatchEvidence 要求未返回任何匹配结果时的兜底证据文案
const DefaultNoMatchEvidence = "No direct match found"

// RequirementMatch 一条"某分块为某要求提供证据"的断言
// ChunkID 为 nil 表示该要求没有任何可引用的分块 (status 必为 no)
type RequirementMatch struct {
	RequirementID   uint64      `json:"requirement_id"`
	ChunkID         *uint64     `json:"chunk_id,omitempty"`
	SimilarityScore float64     `json:"similarity_score"` // [0,1]
	Evidence        string      `json:"evidence"`
	Status          MatchStatus `json:"status"`
}

// FitLevel 匹配度等级
type FitLevel string

const (
	FitLevelStrong  FitLevel = "strong"
	FitLevelGood    FitLevel = "good"
	FitLevelPartial FitLevel = "partial"
	FitLevelLow     FitLevel = "low"
)

// RequirementBreakdown 单条要求的评分明细
type RequirementBreakdown struct {
	Index      int                 `json:"index"`
	Text       string              `json:"text"`
	Category   RequirementCategory `json:"category"`
	IsCritical bool                `json:"is_critical"`
	Status     MatchStatus         `json:"status"`
	Evidence   string              `json:"evidence"`
	Similarity float64             `json:"similarity"`
}

// FitResult 由匹配结果推导出的总体评分，可随时从持久化的匹配集重算
type FitResult struct {
	Score                int                    `json:"score"` // [0,100]
	Level                FitLevel               `json:"level"`
	RequirementBreakdown []RequirementBreakdown `json:"requirement_breakdown"`
}

// --- 生成服务的请求/响应契约 (协作方边界, 结构与线上格式一一对应) ---

// ExtractedRequirement 提取响应中的单条要求
type ExtractedRequirement struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Category   string `json:"category"`
	IsCritical bool   `json:"is_critical"`
}

// RequirementExtraction 提取请求的响应体，期望恰好10条
type RequirementExtraction struct {
	Requirements []ExtractedRequirement `json:"requirements"`
}

// ChunkMatchResult 匹配响应中针对单条要求的结果
type ChunkMatchResult struct {
	RequirementIndex     int     `json:"requirement_index"`
	MatchingChunkIndices []int   `json:"matching_chunk_indices"`
	SimilarityScore      float64 `json:"similarity_score"`
	Evidence             string  `json:"evidence"`
	Status               string  `json:"status"`
}

// RequirementMatching 匹配请求的响应体
type RequirementMatching struct {
	Matches []ChunkMatchResult `json:"matches"`
}

// CoverLetter 生成的求职信
type CoverLetter struct {
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	ChunkIndices []int  `json:"source_chunk_indices"`
}

// InterviewQuestion 基于简历与岗位生成的面试问题
type InterviewQuestion struct {
	Question   string `json:"question"`
	Rationale  string `json:"rationale"`
	ChunkIndex int    `json:"source_chunk_index"`
}

// InterviewQuestionSet 面试问题生成响应
type InterviewQuestionSet struct {
	Questions []InterviewQuestion `json:"questions"`
}
