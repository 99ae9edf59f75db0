package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"
)

var mysqlTracer = otel.Tracer("resume-agent-go/storage/mysql")

// ErrNotFound 请求的记录不存在
var ErrNotFound = errors.New("记录不存在")

// gormSpanKey 在GORM语句上下文中传递span的Key
type gormSpanKey struct{}

// GormTracingPlugin GORM插件，为数据库操作添加OpenTelemetry追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		newCtx, span := p.tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)

		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// 未命中是正常业务分支，不记为错误
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(
					attribute.String("error.type", "database_error"),
					attribute.String("error.message", db.Error.Error()),
				)
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel gormlogger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = gormlogger.Silent
	case 2:
		logLevel = gormlogger.Error
	case 3:
		logLevel = gormlogger.Warn
	default:
		logLevel = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{db: db, cfg: cfg}

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	silentLogger := gormlogger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	return silentDB.AutoMigrate(
		&models.ResumeDocument{},
		&models.DocumentChunkRecord{},
		&models.JobAnalysis{},
		&models.JobRequirementRecord{},
		&models.RequirementMatchRecord{},
	)
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ReplaceChunks 原子替换某 (owner, documentType) 的全部分块
// 删除旧集与插入新集在同一事务内完成，读取方不会观察到中间状态
// 返回带数据库ID的分块切片
func (m *MySQL) ReplaceChunks(ctx context.Context, ownerID string, docType types.DocumentType, chunks []types.DocumentChunk, rawTextObjectKey, rawTextMD5 string) ([]types.DocumentChunk, error) {
	records := make([]models.DocumentChunkRecord, 0, len(chunks))
	for _, c := range chunks {
		records = append(records, models.DocumentChunkRecord{
			OwnerID:      ownerID,
			DocumentType: string(docType),
			ChunkIndex:   c.Index,
			Content:      c.Content,
			ChunkType:    string(c.ChunkType),
			TokenCount:   c.TokenCount,
		})
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND document_type = ?", ownerID, string(docType)).
			Delete(&models.DocumentChunkRecord{}).Error; err != nil {
			return fmt.Errorf("删除旧分块失败: %w", err)
		}
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, 100).Error; err != nil {
				return fmt.Errorf("插入新分块失败: %w", err)
			}
		}

		docUUID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("生成文档UUID失败: %w", err)
		}

		// DocumentUUID 只在首次登记时写入，重复上传保持不变
		doc := models.ResumeDocument{
			DocumentUUID:     docUUID.String(),
			OwnerID:          ownerID,
			DocumentType:     string(docType),
			RawTextObjectKey: rawTextObjectKey,
			RawTextMD5:       rawTextMD5,
			ChunkCount:       len(records),
		}
		if err := tx.Where("owner_id = ? AND document_type = ?", ownerID, string(docType)).
			Assign(map[string]interface{}{
				"chunk_count":         len(records),
				"raw_text_object_key": rawTextObjectKey,
				"raw_text_md5":        rawTextMD5,
			}).
			FirstOrCreate(&doc).Error; err != nil {
			return fmt.Errorf("更新文档登记失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.DocumentChunk, len(records))
	for i, r := range records {
		out[i] = chunkRecordToType(r)
	}
	return out, nil
}

// GetChunks 返回某 (owner, documentType) 的全部分块，按索引升序
func (m *MySQL) GetChunks(ctx context.Context, ownerID string, docType types.DocumentType) ([]types.DocumentChunk, error) {
	var records []models.DocumentChunkRecord
	if err := m.db.WithContext(ctx).
		Where("owner_id = ? AND document_type = ?", ownerID, string(docType)).
		Order("chunk_index ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询分块失败: %w", err)
	}

	out := make([]types.DocumentChunk, len(records))
	for i, r := range records {
		out[i] = chunkRecordToType(r)
	}
	return out, nil
}

// ListChunksByOwner 返回某用户的全部分块，跨文档类型
// 实现检索器的分块来源接口
func (m *MySQL) ListChunksByOwner(ctx context.Context, ownerID string) ([]types.DocumentChunk, error) {
	var records []models.DocumentChunkRecord
	if err := m.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("document_type ASC, chunk_index ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询用户分块失败: %w", err)
	}

	out := make([]types.DocumentChunk, len(records))
	for i, r := range records {
		out[i] = chunkRecordToType(r)
	}
	return out, nil
}

// CreateAnalysis 创建岗位分析记录，初始状态PENDING
func (m *MySQL) CreateAnalysis(ctx context.Context, analysis *models.JobAnalysis) error {
	if analysis.Status == "" {
		analysis.Status = constants.AnalysisStatusPending
	}
	if err := m.db.WithContext(ctx).Create(analysis).Error; err != nil {
		return fmt.Errorf("创建岗位分析失败: %w", err)
	}
	return nil
}

// GetAnalysis 按ID查询岗位分析
func (m *MySQL) GetAnalysis(ctx context.Context, analysisID string) (*models.JobAnalysis, error) {
	var analysis models.JobAnalysis
	err := m.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		First(&analysis).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("岗位分析 %s: %w", analysisID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("查询岗位分析失败: %w", err)
	}
	return &analysis, nil
}

// UpdateAnalysisStatus 更新分析状态
func (m *MySQL) UpdateAnalysisStatus(ctx context.Context, analysisID, status string) error {
	if err := m.db.WithContext(ctx).
		Model(&models.JobAnalysis{}).
		Where("analysis_id = ?", analysisID).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("更新分析状态失败: %w", err)
	}
	return nil
}

// MarkAnalysisFailed 标记分析失败并记录原因
func (m *MySQL) MarkAnalysisFailed(ctx context.Context, analysisID, reason string) error {
	if len([]rune(reason)) > 500 {
		reason = string([]rune(reason)[:500])
	}
	if err := m.db.WithContext(ctx).
		Model(&models.JobAnalysis{}).
		Where("analysis_id = ?", analysisID).
		Updates(map[string]interface{}{
			"status":        constants.AnalysisStatusFailed,
			"error_message": reason,
		}).Error; err != nil {
		return fmt.Errorf("标记分析失败状态出错: %w", err)
	}
	return nil
}

// ReplaceRequirements 原子替换某次分析的全部要求
// 级联删除旧要求的匹配结果，返回带数据库ID的要求切片
func (m *MySQL) ReplaceRequirements(ctx context.Context, analysisID string, reqs []types.JobRequirement) ([]types.JobRequirement, error) {
	records := make([]models.JobRequirementRecord, 0, len(reqs))
	for _, r := range reqs {
		records = append(records, models.JobRequirementRecord{
			AnalysisID: analysisID,
			ReqIndex:   r.Index,
			Text:       r.Text,
			Category:   string(r.Category),
			IsCritical: r.IsCritical,
		})
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("analysis_id = ?", analysisID).
			Delete(&models.RequirementMatchRecord{}).Error; err != nil {
			return fmt.Errorf("删除旧匹配结果失败: %w", err)
		}
		if err := tx.Where("analysis_id = ?", analysisID).
			Delete(&models.JobRequirementRecord{}).Error; err != nil {
			return fmt.Errorf("删除旧要求失败: %w", err)
		}
		if len(records) > 0 {
			if err := tx.Create(&records).Error; err != nil {
				return fmt.Errorf("插入新要求失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.JobRequirement, len(records))
	for i, r := range records {
		out[i] = types.JobRequirement{
			RequirementID: r.ID,
			AnalysisID:    r.AnalysisID,
			Index:         r.ReqIndex,
			Text:          r.Text,
			Category:      types.RequirementCategory(r.Category),
			IsCritical:    r.IsCritical,
		}
	}
	return out, nil
}

// GetRequirements 返回某次分析的全部要求，按序号升序
func (m *MySQL) GetRequirements(ctx context.Context, analysisID string) ([]types.JobRequirement, error) {
	var records []models.JobRequirementRecord
	if err := m.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Order("req_index ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询要求失败: %w", err)
	}

	out := make([]types.JobRequirement, len(records))
	for i, r := range records {
		out[i] = types.JobRequirement{
			RequirementID: r.ID,
			AnalysisID:    r.AnalysisID,
			Index:         r.ReqIndex,
			Text:          r.Text,
			Category:      types.RequirementCategory(r.Category),
			IsCritical:    r.IsCritical,
		}
	}
	return out, nil
}

// ReplaceMatches 原子替换某次分析的全部匹配结果
func (m *MySQL) ReplaceMatches(ctx context.Context, analysisID string, matches []types.RequirementMatch) error {
	records := make([]models.RequirementMatchRecord, 0, len(matches))
	for _, match := range matches {
		records = append(records, models.RequirementMatchRecord{
			AnalysisID:      analysisID,
			RequirementID:   match.RequirementID,
			ChunkID:         match.ChunkID,
			SimilarityScore: match.SimilarityScore,
			Evidence:        match.Evidence,
			Status:          string(match.Status),
		})
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("analysis_id = ?", analysisID).
			Delete(&models.RequirementMatchRecord{}).Error; err != nil {
			return fmt.Errorf("删除旧匹配结果失败: %w", err)
		}
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, 100).Error; err != nil {
				return fmt.Errorf("插入新匹配结果失败: %w", err)
			}
		}
		return nil
	})
}

// GetMatches 返回某次分析的全部匹配结果
func (m *MySQL) GetMatches(ctx context.Context, analysisID string) ([]types.RequirementMatch, error) {
	var records []models.RequirementMatchRecord
	if err := m.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询匹配结果失败: %w", err)
	}

	out := make([]types.RequirementMatch, len(records))
	for i, r := range records {
		out[i] = types.RequirementMatch{
			RequirementID:   r.RequirementID,
			ChunkID:         r.ChunkID,
			SimilarityScore: r.SimilarityScore,
			Evidence:        r.Evidence,
			Status:          types.MatchStatus(r.Status),
		}
	}
	return out, nil
}

// SaveFitResult 把评分结果写回分析记录并置为SCORED
func (m *MySQL) SaveFitResult(ctx context.Context, analysisID string, fit types.FitResult) error {
	breakdown, err := json.Marshal(fit.RequirementBreakdown)
	if err != nil {
		return fmt.Errorf("序列化评分明细失败: %w", err)
	}

	if err := m.db.WithContext(ctx).
		Model(&models.JobAnalysis{}).
		Where("analysis_id = ?", analysisID).
		Updates(map[string]interface{}{
			"fit_score": fit.Score,
			"fit_level": string(fit.Level),
			"breakdown": breakdown,
			"status":    constants.AnalysisStatusScored,
		}).Error; err != nil {
		return fmt.Errorf("保存评分结果失败: %w", err)
	}
	return nil
}

// chunkRecordToType 数据库记录转领域类型
func chunkRecordToType(r models.DocumentChunkRecord) types.DocumentChunk {
	return types.DocumentChunk{
		ChunkID:      r.ID,
		OwnerID:      r.OwnerID,
		DocumentType: types.DocumentType(r.DocumentType),
		Index:        r.ChunkIndex,
		Content:      r.Content,
		ChunkType:    types.ChunkType(r.ChunkType),
		TokenCount:   r.TokenCount,
	}
}
