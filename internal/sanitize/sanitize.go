// Package sanitize 提供文件名清洗工具。
//
// 所有函数都是纯函数且永不失败：任何输入（包括空串）都会得到
// 一个可以安全作为文件系统路径组成部分的结果。
package sanitize

import (
	"regexp"
	"strings"
)

// FallbackName 空输入的兜底文件名。
const FallbackName = "unnamed"

var (
	// 文件系统非法字符。邮件地址中的 @ 单独处理：含 @ 的输入
	// 视为邮箱，保留 @ 以维持可读性；其余输入中 @ 一并替换。
	illegalChars       = regexp.MustCompile(`[\\/:*?"<>|]`)
	illegalCharsWithAt = regexp.MustCompile(`[\\/:*?"<>|@]`)
	whitespaceRun      = regexp.MustCompile(`\s+`)

	// 回复/转发等邮件前缀标记
	mailPrefix = regexp.MustCompile(`(?i)^(re|fwd|fw|attachment):\s*`)

	// 文本中内嵌的文件名："非路径字符 + 2~6 位扩展名"
	embeddedFilename = regexp.MustCompile(`([^\\/:*?"<>|]+\.\w{2,6})(\s|$)`)

	// 末尾扩展名
	trailingExt = regexp.MustCompile(`\.([^.]+)$`)
)

// Name 将任意文本归一化为文件系统安全的名字。
//
// 非法字符替换为下划线，空白串折叠为单个下划线；空输入返回
// FallbackName。满足幂等性：Name(Name(s)) == Name(s)。
func Name(text string) string {
	if strings.TrimSpace(text) == "" {
		return FallbackName
	}

	re := illegalCharsWithAt
	if strings.Contains(text, "@") {
		re = illegalChars
	}

	out := re.ReplaceAllString(text, "_")
	out = whitespaceRun.ReplaceAllString(out, "_")
	return strings.TrimSpace(out)
}

// Cleanup 清洗一段疑似文件名的可见文本。
//
// 依次：去掉回复/转发前缀并修剪空白；若文本中内嵌了带扩展名的
// 文件名片段则只取该片段；否则替换非法字符、截断到 200 字符；
// 清洗后没有扩展名时补默认的 .pdf。空输入返回空串，由调用方
// 决定是否丢弃。
func Cleanup(text string) string {
	text = strings.TrimSpace(text)
	for {
		stripped := mailPrefix.ReplaceAllString(text, "")
		if stripped == text {
			break
		}
		text = strings.TrimSpace(stripped)
	}
	if text == "" {
		return ""
	}

	if m := embeddedFilename.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	text = illegalChars.ReplaceAllString(text, "_")

	// 按字符数截断，不能从多字节字符中间切开
	if runes := []rune(text); len(runes) > 200 {
		text = string(runes[:197]) + "..."
	}

	if !strings.Contains(text, ".") {
		text += ".pdf"
	}
	return text
}

// Ext 返回文件名的扩展名（不含点，小写），没有时返回空串。
func Ext(filename string) string {
	m := trailingExt.FindStringSubmatch(filename)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// 常见文档类型扩展名，重命名时只信任这些作为"真实"扩展。
var documentExts = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "xls": {}, "xlsx": {},
	"ppt": {}, "pptx": {}, "txt": {}, "jpg": {}, "jpeg": {},
	"png": {}, "gif": {},
}

// EnsureExtension 保证改名结果沿用下载事件观察到的真实扩展名。
//
// 观察到的文件带常见文档扩展且与新名字不一致时，用观察到的
// 扩展替换（或补上）；其余情况原样返回。
func EnsureExtension(newFilename, observedFilename string) string {
	observedExt := Ext(observedFilename)
	if observedExt == "" || observedExt == Ext(newFilename) {
		return newFilename
	}
	if _, ok := documentExts[observedExt]; !ok {
		return newFilename
	}
	if Ext(newFilename) != "" {
		return trailingExt.ReplaceAllString(newFilename, "."+observedExt)
	}
	return newFilename + "." + observedExt
}
