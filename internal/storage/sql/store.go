// Package sql 提供 SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）。
package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/storage"
)

// Store SQL 数据库存储实现。
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string // "mysql" or "postgres"
}

// NewStore 创建SQL数据库存储。
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	// 验证驱动类型
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	// 打开数据库连接
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var gormDB *gorm.DB
	if driverName == "mysql" {
		gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: db}), gormConfig)
	} else {
		gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: db}), gormConfig)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	// 自动执行数据库迁移
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）。
func (s *Store) migrate() error {
	return s.gormDB.AutoMigrate(
		&domain.License{},
		&domain.TrialUsage{},
		&domain.Settings{},
	)
}

// SaveLicense 保存许可记录。同一机器重复激活返回 ErrLicenseExists。
func (s *Store) SaveLicense(license *domain.License) error {
	err := s.gormDB.Create(license).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return storage.ErrLicenseExists
		}
		var existing domain.License
		if lookupErr := s.gormDB.Where("machine_id = ?", license.MachineID).
			First(&existing).Error; lookupErr == nil {
			return storage.ErrLicenseExists
		}
		return fmt.Errorf("save license: %w", err)
	}
	return nil
}

// GetLicenseByMachine 查询某台机器的许可记录。
func (s *Store) GetLicenseByMachine(machineID string) (*domain.License, error) {
	var license domain.License
	err := s.gormDB.Where("machine_id = ?", machineID).First(&license).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrLicenseNotFound
		}
		return nil, fmt.Errorf("get license: %w", err)
	}
	return &license, nil
}

// DeleteLicense 删除某台机器的许可记录。
func (s *Store) DeleteLicense(machineID string) error {
	res := s.gormDB.Where("machine_id = ?", machineID).Delete(&domain.License{})
	if res.Error != nil {
		return fmt.Errorf("delete license: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrLicenseNotFound
	}
	return nil
}

// IncrementTrialUsage 自增并返回当天用量。
// 使用 upsert 保证并发自增不丢计数。
func (s *Store) IncrementTrialUsage(machineID, usageDate string) (int, error) {
	row := domain.TrialUsage{MachineID: machineID, UsageDate: usageDate, Count: 1}
	err := s.gormDB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "machine_id"}, {Name: "usage_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1")}),
	}).Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("increment trial usage: %w", err)
	}
	return s.GetTrialUsage(machineID, usageDate)
}

// GetTrialUsage 查询当天用量，没有记录时返回 0。
func (s *Store) GetTrialUsage(machineID, usageDate string) (int, error) {
	var row domain.TrialUsage
	err := s.gormDB.Where("machine_id = ? AND usage_date = ?", machineID, usageDate).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get trial usage: %w", err)
	}
	return row.Count, nil
}

// SaveSettings 保存（覆盖）某台机器的重命名设置。
func (s *Store) SaveSettings(machineID string, settings *domain.Settings) error {
	row := *settings
	row.MachineID = machineID
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	err := s.gormDB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "machine_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// GetSettings 查询某台机器的重命名设置。
func (s *Store) GetSettings(machineID string) (*domain.Settings, error) {
	var row domain.Settings
	err := s.gormDB.Where("machine_id = ?", machineID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &row, nil
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态。
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}
