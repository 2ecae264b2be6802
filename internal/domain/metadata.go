package domain

import "time"

// AttachmentCandidate 从邮件渲染内容中提取出的候选附件名。
type AttachmentCandidate struct {
	// Source 指向产生该候选的文档节点。仅作为弱引用用于与后续
	// 下载事件配对，不得在当前邮件视图之外持有。
	Source Node `json:"-"`
	// Filename 清洗后的候选文件名，非空，且带扩展名或命中文档关键词。
	Filename string `json:"filename"`
}

// EmailMetadata 表示当前展示邮件的元数据。
//
// 每次邮件视图变化（导航、预览弹窗打开）时整体重建，
// 不做增量合并。
type EmailMetadata struct {
	Sender      string                `json:"sender"`  // 原始发件人，可能是 "Name <email>"、裸地址或纯显示名
	Date        time.Time             `json:"date"`
	Subject     string                `json:"subject"`
	Attachments []AttachmentCandidate `json:"attachments"`
}

// UnknownSender 无法解析发件人时的占位值。
const UnknownSender = "unknown_sender"

// DegradedMetadata 返回提取失败时的降级元数据。
//
// 提取器承诺永不失败，任何内部错误都以该记录兜底。
func DegradedMetadata(now time.Time) EmailMetadata {
	return EmailMetadata{
		Sender:      UnknownSender,
		Date:        now,
		Subject:     "",
		Attachments: []AttachmentCandidate{},
	}
}
