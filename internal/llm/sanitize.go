package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// 生成服务虽然被要求只输出JSON，但实际响应经常混入代码围栏、
// 说明文字、尾逗号或不可见字符。这里做两轮修复:
// 第一轮保守修复，失败后第二轮做更激进的改写，仍失败才报错。

var (
	// ```json ... ``` 或 ``` ... ``` 围栏
	fencedBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

	// 对象或数组中收尾括号前的尾逗号
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)

	// 未加引号的键名，如 {index: 1} -> {"index": 1}
	bareKeyRegex = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
)

// SanitizeJSON 从生成服务的原始输出中提取并修复JSON文本
// 返回的文本保证能通过 json.Valid；两轮修复都失败时返回 ErrMalformedResponse
func SanitizeJSON(raw string) (string, error) {
	candidate := extractJSONCandidate(raw)
	if candidate == "" {
		return "", fmt.Errorf("%w: 响应中未找到JSON片段", ErrMalformedResponse)
	}

	// 第一轮: 保守修复
	cleaned := sanitizeConservative(candidate)
	if json.Valid([]byte(cleaned)) {
		return cleaned, nil
	}

	// 第二轮: 激进修复
	cleaned = sanitizeAggressive(cleaned)
	if json.Valid([]byte(cleaned)) {
		return cleaned, nil
	}

	return "", fmt.Errorf("%w: 两轮修复后仍非法", ErrMalformedResponse)
}

// extractJSONCandidate 定位响应中的JSON片段
// 优先取代码围栏内容，其次用括号配对截取最外层对象或数组
func extractJSONCandidate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if m := fencedBlockRegex.FindStringSubmatch(s); len(m) > 1 {
		s = strings.TrimSpace(m[1])
	}

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	start := objStart
	open, close := byte('{'), byte('}')
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
		open, close = '[', ']'
	}
	if start < 0 {
		return ""
	}

	// 括号计数截取，跳过字符串字面量内部的括号
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == open:
			depth++
		case !inString && c == close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	// 括号未配平，交给后续修复
	return s[start:]
}

// sanitizeConservative 第一轮修复: 规则表内的确定性清理
func sanitizeConservative(s string) string {
	// 去除BOM与零宽字符
	for _, zw := range []string{"\uFEFF", "\u200B", "\u200C", "\u200D"} {
		s = strings.ReplaceAll(s, zw, "")
	}

	// 单引号字符串改写为双引号，先做，后续清理按双引号识别字符串边界
	s = convertSingleQuotes(s)

	// 去除字符串外的控制字符，保留换行与制表符
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			b.WriteRune(r)
			continue
		}
		if inString && r == '\\' {
			escaped = true
			b.WriteRune(r)
			continue
		}
		if r == '"' {
			inString = !inString
			b.WriteRune(r)
			continue
		}
		if r < 0x20 && r != '\n' && r != '\t' {
			if inString {
				// 字符串内的裸控制字符转为转义形式
				switch r {
				case '\r':
					b.WriteString(`\r`)
				default:
					b.WriteString(fmt.Sprintf(`\u%04x`, r))
				}
			}
			continue
		}
		if inString && (r == '\n' || r == '\t') {
			// JSON字符串内不允许裸换行/制表符
			if r == '\n' {
				b.WriteString(`\n`)
			} else {
				b.WriteString(`\t`)
			}
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	// 去除尾逗号
	s = trailingCommaRegex.ReplaceAllString(s, "$1")

	return s
}

// convertSingleQuotes 单引号字符串改写为双引号
// 逐字符处理，避免误伤双引号字符串内的单引号
func convertSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inDouble := false
	inSingle := false
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			b.WriteRune(r)
			continue
		}
		switch {
		case r == '\\' && (inDouble || inSingle):
			escaped = true
			b.WriteRune(r)
		case r == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteRune(r)
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteRune('"')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// sanitizeAggressive 第二轮修复: 可能改变语义，仅在第一轮失败后使用
func sanitizeAggressive(s string) string {
	// 给裸键名补引号
	s = bareKeyRegex.ReplaceAllString(s, `$1"$2"$3`)

	// 改写后可能重新暴露尾逗号
	s = trailingCommaRegex.ReplaceAllString(s, "$1")

	return s
}
