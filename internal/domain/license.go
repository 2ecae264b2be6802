package domain

import "time"

// LicenseType 许可类型。
type LicenseType string

const (
	LicenseMonthly  LicenseType = "monthly"
	LicenseLifetime LicenseType = "lifetime"
)

// License 已激活的付费许可记录。
//
// 许可键本身不落盘，只保存 bcrypt 哈希用于重复激活校验。
type License struct {
	ID          string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MachineID   string      `json:"machineId" gorm:"type:varchar(64);uniqueIndex;not null"`
	KeyHash     string      `json:"-" gorm:"type:varchar(72);not null"`
	Type        LicenseType `json:"type" gorm:"type:varchar(16)"`
	ActivatedAt time.Time   `json:"activatedAt"`
	ValidUntil  *time.Time  `json:"validUntil,omitempty"` // lifetime 许可为空
}

// Expired 判断许可在给定时间点是否已过期。
func (l *License) Expired(now time.Time) bool {
	if l.Type == LicenseLifetime || l.ValidUntil == nil {
		return false
	}
	return now.After(*l.ValidUntil)
}

// TrialUsage 某台机器某一天的试用使用量。
type TrialUsage struct {
	MachineID string `json:"machineId" gorm:"primaryKey;type:varchar(64)"`
	UsageDate string `json:"usageDate" gorm:"primaryKey;type:varchar(10)"` // YYYY-MM-DD
	Count     int    `json:"count"`
}

// LicenseStatus 许可/试用状态汇总，返回给扩展端做使用门禁。
type LicenseStatus struct {
	Valid      bool        `json:"valid"`
	Paid       bool        `json:"paid"`
	Type       LicenseType `json:"type,omitempty"`
	DaysLeft   int         `json:"daysLeft"`   // 试用剩余天数，付费许可为 0
	UsedToday  int         `json:"usedToday"`  // 今日已用的试用次数
	DailyLimit int         `json:"dailyLimit"` // 每日试用上限
}
