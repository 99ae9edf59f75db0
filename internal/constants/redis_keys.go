package constants

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ChunkModulePrefix 分块模块
	ChunkModulePrefix = "chunk"
	// AnalysisModulePrefix 岗位分析模块
	AnalysisModulePrefix = "analysis"

	// EntityList 列表实体
	EntityList = "list"
	// EntityFit 匹配度结果实体
	EntityFit = "fit"

	// KeyChunkList 某用户某文档类型的分块列表缓存 (STRING, JSON序列化)
	// 格式: app:chunk:list:{ownerID}:{documentType}
	KeyChunkList = AppPrefix + ":" + ChunkModulePrefix + ":" + EntityList + ":%s:%s"

	// KeyAnalysisFit 岗位分析的匹配度结果缓存 (STRING, JSON序列化)
	// 格式: app:analysis:fit:{analysisID}
	KeyAnalysisFit = AppPrefix + ":" + AnalysisModulePrefix + ":" + EntityFit + ":%s"
)
