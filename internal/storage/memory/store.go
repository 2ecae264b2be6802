// Package memory 提供内存存储实现，主要用于开发验证和测试。
package memory

import (
	"sync"
	"time"

	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/storage"
)

// Store 使用内存保存许可、试用配额与设置数据。
type Store struct {
	mu       sync.RWMutex
	licenses map[string]*domain.License  // machineID -> license
	usage    map[string]int              // machineID|usageDate -> count
	settings map[string]*domain.Settings // machineID -> settings
}

// NewStore 创建内存存储。
func NewStore() *Store {
	return &Store{
		licenses: make(map[string]*domain.License),
		usage:    make(map[string]int),
		settings: make(map[string]*domain.Settings),
	}
}

// SaveLicense 保存许可记录。同一机器重复激活返回 ErrLicenseExists。
func (s *Store) SaveLicense(license *domain.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.licenses[license.MachineID]; exists {
		return storage.ErrLicenseExists
	}
	cp := *license
	s.licenses[license.MachineID] = &cp
	return nil
}

// GetLicenseByMachine 查询某台机器的许可记录。
func (s *Store) GetLicenseByMachine(machineID string) (*domain.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	license, ok := s.licenses[machineID]
	if !ok {
		return nil, storage.ErrLicenseNotFound
	}
	cp := *license
	return &cp, nil
}

// DeleteLicense 删除某台机器的许可记录。
func (s *Store) DeleteLicense(machineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.licenses[machineID]; !ok {
		return storage.ErrLicenseNotFound
	}
	delete(s.licenses, machineID)
	return nil
}

// IncrementTrialUsage 自增并返回当天用量。
func (s *Store) IncrementTrialUsage(machineID, usageDate string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usageKey(machineID, usageDate)
	s.usage[key]++
	return s.usage[key], nil
}

// GetTrialUsage 查询当天用量，没有记录时返回 0。
func (s *Store) GetTrialUsage(machineID, usageDate string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage[usageKey(machineID, usageDate)], nil
}

// SaveSettings 保存（覆盖）某台机器的重命名设置。
func (s *Store) SaveSettings(machineID string, settings *domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *settings
	cp.MachineID = machineID
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	s.settings[machineID] = &cp
	return nil
}

// GetSettings 查询某台机器的重命名设置。
func (s *Store) GetSettings(machineID string) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[machineID]
	if !ok {
		return nil, storage.ErrSettingsNotFound
	}
	cp := *settings
	return &cp, nil
}

// Close 实现 storage.Store 接口，内存存储无需清理。
func (s *Store) Close() error { return nil }

// Health 实现 storage.Store 接口。
func (s *Store) Health() error { return nil }

func usageKey(machineID, usageDate string) string {
	return machineID + "|" + usageDate
}
