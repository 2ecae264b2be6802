// Package similarity 计算两个文件名的相似度，用于把浏览器下载
// 事件关联回邮件里的附件条目。
package similarity

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// 分数阈值。匹配逻辑统一从这里取值，便于整体调参。
const (
	// MatchThreshold 正常模糊匹配的最低分（严格大于）。
	MatchThreshold = 0.6
	// RelaxedThreshold 只有单个待命条目时放宽到的最低分。
	RelaxedThreshold = 0.2
	// genericPairScore 已知的"查看器通用名"配对的固定分。
	genericPairScore = 0.7
)

var (
	attachmentIDPattern = regexp.MustCompile(`attachment_(\d+)`)
	nonWordPattern      = regexp.MustCompile(`[^\w\s]`)
)

// AttachmentID 提取文件名中携带的附件跟踪序号，没有时返回空串。
func AttachmentID(name string) string {
	m := attachmentIDPattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsGenericViewerName 判断文件名是否是查看器生成的占位名
// （如 document.pdf、attachment_123），这类名字本身没有信息量。
func IsGenericViewerName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "pdf") ||
		strings.HasPrefix(lower, "attachment_") ||
		strings.Contains(lower, "document") ||
		strings.Contains(lower, "agreement")
}

// genericPair 识别两边都是占位名的已知组合。
func genericPair(a, b string) bool {
	aGeneric := strings.Contains(a, "agreement") && strings.Contains(b, "pdf")
	bGeneric := strings.Contains(b, "agreement") && strings.Contains(a, "pdf")
	docPairA := strings.Contains(a, "document.pdf") && strings.Contains(b, "attachment_")
	docPairB := strings.Contains(b, "document.pdf") && strings.Contains(a, "attachment_")
	return aGeneric || bGeneric || docPairA || docPairB
}

// Score 返回两个文件名的相似度，范围 [0,1]。
//
// 规则按优先级依次判定：
//  1. 两边都为空 1.0，只有一边为空 0.0；
//  2. 已知占位名配对固定 0.7；
//  3. 两边都带 attachment_<序号>：序号相同 1.0，不同 0.0；
//     只有一边带且序号出现在另一边时 0.8；
//  4. 否则归一化后按编辑距离给基础分，扩展名相同加 0.2
//     （pdf 加 0.3），封顶 1.0。
func Score(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	la, lb := strings.ToLower(a), strings.ToLower(b)

	if genericPair(la, lb) {
		return genericPairScore
	}

	idA, idB := AttachmentID(la), AttachmentID(lb)
	switch {
	case idA != "" && idB != "":
		if idA == idB {
			return 1.0
		}
		return 0.0
	case idA != "" && strings.Contains(lb, idA):
		return 0.8
	case idB != "" && strings.Contains(la, idB):
		return 0.8
	}

	na := normalize(la)
	nb := normalize(lb)

	base := 1.0
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen > 0 {
		dist := levenshtein.ComputeDistance(na, nb)
		base = 1.0 - float64(dist)/float64(maxLen)
	}

	extA, extB := ext(la), ext(lb)
	if extA != "" && extA == extB {
		if extA == "pdf" {
			base += 0.3
		} else {
			base += 0.2
		}
	}
	if base > 1.0 {
		base = 1.0
	}
	if base < 0 {
		base = 0
	}
	return base
}

func normalize(s string) string {
	return strings.TrimSpace(nonWordPattern.ReplaceAllString(s, ""))
}

func ext(s string) string {
	idx := strings.LastIndex(s, ".")
	if idx < 0 || idx == len(s)-1 {
		return ""
	}
	return s[idx+1:]
}
