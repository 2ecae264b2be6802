package service

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"attachrename/backend/internal/cache"
	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/storage"
)

var (
	// ErrInvalidPattern 模式模板里没有任何可识别标记
	ErrInvalidPattern = errors.New("pattern contains no recognized token")
	// ErrInvalidDateFormat 日期格式不合法
	ErrInvalidDateFormat = errors.New("invalid date format")
)

// 日期格式只允许 YYYY/MM/DD 记号和少量分隔符
var dateFormatPattern = regexp.MustCompile(`^[YMD.\-_/]+$`)

// SettingsService 封装每台机器的重命名设置。
type SettingsService struct {
	store storage.Store
	local *cache.LocalCache // 每次下载都要读设置，用 L1 缓存挡住存储层
	log   *zap.Logger
}

// NewSettingsService 创建设置服务。
func NewSettingsService(store storage.Store, log *zap.Logger) *SettingsService {
	return &SettingsService{
		store: store,
		local: cache.NewLocalCache(5 * time.Minute),
		log:   log,
	}
}

// Get 返回某台机器的设置，没有保存过时返回默认值。
func (s *SettingsService) Get(machineID string) (*domain.Settings, error) {
	if cached, ok := s.local.Get(machineID); ok {
		copied := *(cached.(*domain.Settings))
		return &copied, nil
	}

	settings, err := s.store.GetSettings(machineID)
	if err != nil {
		if errors.Is(err, storage.ErrSettingsNotFound) {
			return domain.DefaultSettings(), nil
		}
		return nil, err
	}

	cached := *settings
	s.local.Set(machineID, &cached, 0)
	return settings, nil
}

// UpdateSettingsInput 更新设置输入。
type UpdateSettingsInput struct {
	Pattern    string `json:"pattern"`
	DateFormat string `json:"dateFormat"`
}

// Update 校验并保存设置，返回保存后的完整设置。
func (s *SettingsService) Update(machineID string, input UpdateSettingsInput) (*domain.Settings, error) {
	settings, err := s.Get(machineID)
	if err != nil {
		return nil, err
	}

	if input.Pattern != "" {
		if !domain.ValidPattern(input.Pattern) {
			return nil, ErrInvalidPattern
		}
		settings.Pattern = input.Pattern
	}

	if input.DateFormat != "" {
		if !validDateFormat(input.DateFormat) {
			return nil, ErrInvalidDateFormat
		}
		settings.DateFormat = input.DateFormat
	}

	settings.UpdatedAt = time.Now()
	if err := s.store.SaveSettings(machineID, settings); err != nil {
		return nil, err
	}

	cached := *settings
	s.local.Set(machineID, &cached, 0)

	s.log.Info("重命名设置已更新",
		zap.String("machineId", machineID),
		zap.String("pattern", settings.Pattern),
	)
	return settings, nil
}

// validDateFormat 要求格式里同时出现年月日记号且只含允许字符。
func validDateFormat(format string) bool {
	if !dateFormatPattern.MatchString(format) {
		return false
	}
	return strings.Contains(format, "YYYY") &&
		strings.Contains(format, "MM") &&
		strings.Contains(format, "DD")
}
