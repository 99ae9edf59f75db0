package processor

import (
	"fmt"
	"strings"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/types"
)

// extractionSystemPrompt 要求提取的系统提示词
const extractionSystemPrompt = `你是一位极其资深的招聘分析专家，擅长从岗位描述中识别真正决定录用与否的关键要求。你的任务是从下面提供的【岗位描述】中提取恰好10条决定性要求，并严格按照指定的JSON格式输出。

**提取规则：**
1. 必须提取恰好10条要求，不多不少。
2. 每条要求必须是岗位描述中真实存在或强烈暗示的，禁止凭空编造。
3. 通用软技能（如"沟通能力强"、"团队合作"）默认排除，除非岗位描述特别强调。
4. category 字段必须是以下之一: "technical", "experience", "leadership", "domain", "soft_skills"。
5. is_critical 为 true 表示该要求是硬性门槛（如学历、年限、必备技术栈）。
6. index 从1开始连续编号到10。

**请严格遵循以下JSON输出格式规范：**
{
  "requirements": [
    {"index": 1, "text": "5年以上Go后端开发经验", "category": "experience", "is_critical": true},
    {"index": 2, "text": "熟练使用MySQL并具备SQL调优能力", "category": "technical", "is_critical": true}
  ]
}

**JSON格式细节要求：**
- 完整输出必须是一个合法的JSON对象，顶层只有 "requirements" 一个键。
- 所有字符串必须使用双引号，内部双引号必须转义。
- 禁止在JSON结构之外输出任何额外文本、解释或Markdown标记。`

// matchingSystemPrompt 要求匹配的系统提示词
const matchingSystemPrompt = `你是一位极其严谨的简历审核专家。你的任务是对照下面提供的【岗位要求列表】和【简历分块列表】，逐条判断每条要求能否在简历分块中找到证据，并严格按照指定的JSON格式输出。

**判定规则：**
1. 每条要求输出一个结果，requirement_index 对应要求的编号。
2. matching_chunk_indices 最多填3个分块编号，必须是【简历分块列表】中真实存在的编号。
3. evidence 必须摘自或忠实转述所引用分块的内容，禁止编造分块中不存在的信息。
4. status 取值: "yes" 表示证据充分，"partial" 表示有部分证据，"no" 表示没有证据。
5. status 为 "no" 时 matching_chunk_indices 必须为空数组，evidence 填 "No direct match found"。
6. similarity_score 为0到1之间的小数，反映证据与要求的贴合程度。

**请严格遵循以下JSON输出格式规范：**
{
  "matches": [
    {"requirement_index": 1, "matching_chunk_indices": [0, 3], "similarity_score": 0.85, "evidence": "负责支付系统Go服务开发共6年", "status": "yes"},
    {"requirement_index": 2, "matching_chunk_indices": [], "similarity_score": 0, "evidence": "No direct match found", "status": "no"}
  ]
}

**JSON格式细节要求：**
- 完整输出必须是一个合法的JSON对象，顶层只有 "matches" 一个键。
- 禁止在JSON结构之外输出任何额外文本、解释或Markdown标记。`

// buildExtractionUserPrompt 构造要求提取的用户提示词
func buildExtractionUserPrompt(jobTitle, jobDescription string) string {
	var b strings.Builder
	b.WriteString("【岗位描述】\n")
	if jobTitle != "" {
		fmt.Fprintf(&b, "岗位名称: %s\n", jobTitle)
	}
	b.WriteString(jobDescription)
	fmt.Fprintf(&b, "\n\n请提取恰好%d条决定性要求并输出JSON结果。", constants.RequirementCount)
	return b.String()
}

// buildMatchingUserPrompt 构造要求匹配的用户提示词
// 分块按编号罗列，编号即分块在其文档内的索引
func buildMatchingUserPrompt(requirements []types.JobRequirement, chunks []types.DocumentChunk) string {
	var b strings.Builder

	b.WriteString("【岗位要求列表】\n")
	for _, req := range requirements {
		critical := ""
		if req.IsCritical {
			critical = " [硬性要求]"
		}
		fmt.Fprintf(&b, "%d. (%s)%s %s\n", req.Index, req.Category, critical, req.Text)
	}

	b.WriteString("\n【简历分块列表】\n")
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "--- 分块 %d (%s) ---\n%s\n", chunk.Index, chunk.ChunkType, chunk.Content)
	}

	fmt.Fprintf(&b, "\n请逐条判断以上%d条要求，每条最多引用%d个分块，输出JSON结果。",
		len(requirements), constants.MaxChunksPerRequirement)
	return b.String()
}
