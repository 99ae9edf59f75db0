package models

import (
	"time"

	"gorm.io/datatypes"
)

// ResumeDocument 用户上传的文档登记表
// 每个 (owner_id, document_type) 只保留最新一版的登记信息
type ResumeDocument struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`
	// DocumentUUID 文档的稳定对外标识，首次登记时生成，重复上传不变
	DocumentUUID string `gorm:"type:char(36);not null;uniqueIndex:idx_doc_uuid"`
	OwnerID      string `gorm:"type:varchar(36);not null;uniqueIndex:idx_owner_doctype,priority:1"`
	DocumentType string `gorm:"type:varchar(20);not null;uniqueIndex:idx_owner_doctype,priority:2"`
	// RawTextObjectKey 原始文本在对象存储中的Key，为空表示未归档
	RawTextObjectKey string `gorm:"type:varchar(255)"`
	// RawTextMD5 原始文本的MD5，用于识别内容未变化的重复上传
	RawTextMD5 string    `gorm:"type:char(32)"`
	ChunkCount int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ResumeDocument) TableName() string {
	return "resume_documents"
}

// DocumentChunkRecord 文档分块表
// chunk_index 在 (owner_id, document_type) 内从0连续递增
type DocumentChunkRecord struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	OwnerID      string `gorm:"type:varchar(36);not null;uniqueIndex:idx_chunk_key,priority:1;index:idx_chunk_owner"`
	DocumentType string `gorm:"type:varchar(20);not null;uniqueIndex:idx_chunk_key,priority:2"`
	ChunkIndex   int    `gorm:"not null;uniqueIndex:idx_chunk_key,priority:3"`
	Content      string `gorm:"type:text;not null"`
	ChunkType    string `gorm:"type:varchar(20);not null;default:'general'"`
	TokenCount   int    `gorm:"not null;default:0"`
	CreatedAt    time.Time
}

// TableName 指定表名
func (DocumentChunkRecord) TableName() string {
	return "document_chunks"
}

// JobAnalysis 岗位分析表，一次"岗位描述 vs 简历"的分析上下文
type JobAnalysis struct {
	AnalysisID     string `gorm:"type:char(36);primaryKey"`
	OwnerID        string `gorm:"type:varchar(36);not null;index:idx_analysis_owner"`
	JobTitle       string `gorm:"type:varchar(255)"`
	JobDescription string `gorm:"type:text;not null"`
	// Status 取值: PENDING EXTRACTING MATCHING SCORED FAILED
	Status string `gorm:"type:varchar(20);not null;default:'PENDING'"`
	// FitScore 为空表示尚未评分
	FitScore *int   `gorm:"type:int"`
	FitLevel string `gorm:"type:varchar(10)"`
	// Breakdown 每条要求的评分明细，JSON数组
	Breakdown datatypes.JSON `gorm:"type:json"`
	// ErrorMessage 分析失败时的原因
	ErrorMessage string    `gorm:"type:varchar(500)"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (JobAnalysis) TableName() string {
	return "job_analyses"
}

// JobRequirementRecord 岗位要求表，每次分析固定10条
type JobRequirementRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	AnalysisID string `gorm:"type:char(36);not null;uniqueIndex:idx_req_key,priority:1"`
	ReqIndex   int    `gorm:"not null;uniqueIndex:idx_req_key,priority:2"` // 1..10
	Text       string `gorm:"type:varchar(500);not null"`
	Category   string `gorm:"type:varchar(20);not null;default:'technical'"`
	IsCritical bool   `gorm:"not null;default:false"`
	CreatedAt  time.Time
}

// TableName 指定表名
func (JobRequirementRecord) TableName() string {
	return "job_requirements"
}

// RequirementMatchRecord 要求与分块的匹配结果表
// chunk_id 为空表示该要求没有任何可引用的分块
type RequirementMatchRecord struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement"`
	AnalysisID      string  `gorm:"type:char(36);not null;index:idx_match_analysis"`
	RequirementID   uint64  `gorm:"not null;index:idx_match_requirement"`
	ChunkID         *uint64 `gorm:"type:bigint unsigned"`
	SimilarityScore float64 `gorm:"not null;default:0"`
	Evidence        string  `gorm:"type:text"`
	Status          string  `gorm:"type:varchar(10);not null;default:'no'"`
	CreatedAt       time.Time
}

// TableName 指定表名
func (RequirementMatchRecord) TableName() string {
	return "requirement_matches"
}
