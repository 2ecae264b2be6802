package domain

import "time"

// PendingDownload 表示一条等待与实际下载事件配对的重命名预期。
//
// 在扩展触发下载前登记，待浏览器报告下载事件后由解析器消费，
// 每条预期最多匹配一次。
type PendingDownload struct {
	TrackingKey      string    `json:"trackingKey"`      // 唯一追踪键
	OriginalFilename string    `json:"originalFilename"` // 预期的原始文件名
	NewFilename      string    `json:"newFilename"`      // 期望改成的文件名
	CreatedAt        time.Time `json:"createdAt"`
}

// MatchMethod 标识附件匹配命中的策略层。
type MatchMethod string

const (
	// MatchByAttachmentID 第一层：数字附件 ID 精确匹配
	MatchByAttachmentID MatchMethod = "attachment_id"
	// MatchByFilename 第二层：文件名相等或互为子串
	MatchByFilename MatchMethod = "filename"
	// MatchByFuzzy 第三层：相似度模糊匹配
	MatchByFuzzy MatchMethod = "fuzzy"
	// MatchBySinglePending 第四层：仅剩单条预期时的兜底匹配
	MatchBySinglePending MatchMethod = "single_pending"
)

// MatchResult 附件匹配成功的结果。
type MatchResult struct {
	Entry  PendingDownload `json:"entry"`
	Method MatchMethod     `json:"method"`
	Score  float64         `json:"score,omitempty"` // 仅模糊匹配时有意义
}
