// Package registry 维护"已准备、待观察"的下载条目。
//
// 条目按注册顺序保存并带固定 TTL，过期条目在读取时惰性清理，
// 也可由后台定时任务主动清理。
package registry

import (
	"errors"
	"sync"
	"time"

	"attachrename/backend/internal/domain"
)

// DefaultTTL 条目的默认存活时长。超过这个时间还没有观察到
// 对应下载事件的条目视为用户放弃下载。
const DefaultTTL = 5 * time.Minute

// ErrDuplicateKey 重复注册同一跟踪键。
var ErrDuplicateKey = errors.New("registry: duplicate tracking key")

// Registry 并发安全的待命下载表。
type Registry struct {
	mu    sync.Mutex
	ttl   time.Duration
	byKey map[string]*domain.PendingDownload
	order []string // 注册顺序的跟踪键
	now   func() time.Time
}

// New 创建注册表。ttl <= 0 时使用 DefaultTTL。
func New(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		ttl:   ttl,
		byKey: make(map[string]*domain.PendingDownload),
		now:   time.Now,
	}
}

// Register 登记一条待命下载。跟踪键已存在时返回 ErrDuplicateKey。
func (r *Registry) Register(entry domain.PendingDownload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[entry.TrackingKey]; exists {
		return ErrDuplicateKey
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	r.byKey[entry.TrackingKey] = &entry
	r.order = append(r.order, entry.TrackingKey)
	return nil
}

// Entries 按注册顺序返回所有未过期条目的副本。
// 读取前先惰性清理过期条目。
func (r *Registry) Entries() []domain.PendingDownload {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked(r.now())

	out := make([]domain.PendingDownload, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.byKey[key])
	}
	return out
}

// Consume 取出并移除指定跟踪键的条目。
func (r *Registry) Consume(key string) (domain.PendingDownload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byKey[key]
	if !ok {
		return domain.PendingDownload{}, false
	}
	r.removeLocked(key)
	return *entry, true
}

// PurgeExpired 清理在 now 时刻已过期的条目，返回清理数量。
func (r *Registry) PurgeExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.purgeLocked(now)
}

// Len 返回未过期条目数。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked(r.now())
	return len(r.order)
}

func (r *Registry) purgeLocked(now time.Time) int {
	removed := 0
	kept := r.order[:0]
	for _, key := range r.order {
		entry := r.byKey[key]
		if now.Sub(entry.CreatedAt) > r.ttl {
			delete(r.byKey, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	r.order = kept
	return removed
}

func (r *Registry) removeLocked(key string) {
	delete(r.byKey, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
