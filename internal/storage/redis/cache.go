package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"attachrename/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Cache 许可状态与试用计数的 Redis 缓存。
//
// 数据库是事实来源，这里只是热路径加速：许可状态接口被扩展端
// 高频轮询，试用计数的预检也先走这里。
type Cache struct {
	client *Client
}

// NewCache 创建缓存实例。
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// ========== 许可状态缓存 ==========

// CacheLicenseStatus 缓存某台机器的许可状态。
func (c *Cache) CacheLicenseStatus(ctx context.Context, machineID string, status *domain.LicenseStatus, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, licenseStatusKey(machineID), data, ttl)
}

// GetCachedLicenseStatus 读取缓存的许可状态。
func (c *Cache) GetCachedLicenseStatus(ctx context.Context, machineID string) (*domain.LicenseStatus, error) {
	data, err := c.client.Get(ctx, licenseStatusKey(machineID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var status domain.LicenseStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// InvalidateLicenseStatus 激活或停用后清除缓存。
func (c *Cache) InvalidateLicenseStatus(ctx context.Context, machineID string) error {
	return c.client.Del(ctx, licenseStatusKey(machineID))
}

// ========== 试用计数 ==========

// IncrementTrialCounter 自增某台机器当天的试用计数并返回新值。
// 键在次日零点后自然过期。
func (c *Cache) IncrementTrialCounter(ctx context.Context, machineID, usageDate string) (int64, error) {
	key := trialCounterKey(machineID, usageDate)
	n, err := c.client.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if n == 1 {
		// 首次写入时设置过期，留 48 小时余量覆盖时区偏差
		if err := c.client.Expire(ctx, key, 48*time.Hour); err != nil {
			return n, err
		}
	}
	return n, nil
}

// GetTrialCounter 读取某台机器当天的试用计数，没有时返回 0。
func (c *Cache) GetTrialCounter(ctx context.Context, machineID, usageDate string) (int64, error) {
	data, err := c.client.Get(ctx, trialCounterKey(machineID, usageDate))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	var n int64
	if _, err := fmt.Sscanf(data, "%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}

func licenseStatusKey(machineID string) string {
	return fmt.Sprintf("license:status:%s", machineID)
}

func trialCounterKey(machineID, usageDate string) string {
	return fmt.Sprintf("trial:%s:%s", machineID, usageDate)
}
