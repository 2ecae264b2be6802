package domain

import (
	"strings"
	"time"
)

// 模式模板中可识别的替换标记。
const (
	TokenDate             = "YYYY-MM-DD"       // 按配置的日期格式渲染
	TokenSenderName       = "SenderName"       // 发件人显示名部分
	TokenSenderEmail      = "SenderEmail"      // 发件人邮箱地址部分
	TokenOriginalFilename = "OriginalFilename" // 解析出的原始文件名
	TokenSubject          = "Subject"          // 清洗截断后的邮件主题
)

// PatternTokens 全部可识别标记，按替换优先级排列。
var PatternTokens = []string{
	TokenDate,
	TokenOriginalFilename,
	TokenSenderEmail,
	TokenSenderName,
	TokenSubject,
}

// 默认的文件名模式与日期格式。
const (
	DefaultPattern    = "YYYY-MM-DD_SenderName_OriginalFilename"
	DefaultDateFormat = "YYYY-MM-DD"
)

// Settings 文件名生成设置。外部配置存储提供，核心只读消费。
type Settings struct {
	MachineID  string    `json:"-" gorm:"primaryKey;type:varchar(64)"`
	Pattern    string    `json:"pattern" gorm:"type:varchar(255)"`
	DateFormat string    `json:"dateFormat" gorm:"type:varchar(64)"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DefaultSettings 返回默认设置。
func DefaultSettings() *Settings {
	return &Settings{
		Pattern:    DefaultPattern,
		DateFormat: DefaultDateFormat,
		UpdatedAt:  time.Now(),
	}
}

// ValidPattern 判断模式模板是否至少包含一个可识别标记。
func ValidPattern(pattern string) bool {
	for _, token := range PatternTokens {
		if strings.Contains(pattern, token) {
			return true
		}
	}
	return false
}
