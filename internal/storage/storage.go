package storage

import (
	"errors"

	"attachrename/backend/internal/domain"
)

var (
	// ErrLicenseNotFound 该机器没有激活记录
	ErrLicenseNotFound = errors.New("license not found")
	// ErrLicenseExists 该机器已有激活记录
	ErrLicenseExists = errors.New("license already exists")
	// ErrSettingsNotFound 该机器没有保存过设置
	ErrSettingsNotFound = errors.New("settings not found")
)

// LicenseRepository 定义许可证数据存取操作。
type LicenseRepository interface {
	SaveLicense(license *domain.License) error
	GetLicenseByMachine(machineID string) (*domain.License, error)
	DeleteLicense(machineID string) error
}

// TrialUsageRepository 定义试用配额数据存取操作。
type TrialUsageRepository interface {
	// IncrementTrialUsage 自增并返回当天用量
	IncrementTrialUsage(machineID, usageDate string) (int, error)
	GetTrialUsage(machineID, usageDate string) (int, error)
}

// SettingsRepository 定义重命名设置数据存取操作。
type SettingsRepository interface {
	SaveSettings(machineID string, settings *domain.Settings) error
	GetSettings(machineID string) (*domain.Settings, error)
}

// Store 定义完整的存储接口。
type Store interface {
	LicenseRepository
	TrialUsageRepository
	SettingsRepository

	// 工具方法
	Close() error
	Health() error
}
