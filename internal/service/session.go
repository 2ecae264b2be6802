package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attachrename/backend/internal/config"
	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/extract"
	"attachrename/backend/internal/generate"
	"attachrename/backend/internal/registry"
	"attachrename/backend/internal/resolve"
	"attachrename/backend/internal/sanitize"
	"attachrename/backend/internal/security"
)

// Notifier 把重命名结果推送给订阅的扩展端。
// 实现方（WebSocket hub）必须是非阻塞的。
type Notifier interface {
	DownloadRenamed(machineID string, result *domain.MatchResult)
	DownloadUnmatched(machineID, observedFilename string)
	TrialWarning(machineID string, status domain.LicenseStatus)
}

// NopNotifier 空实现，测试和无推送部署使用。
type NopNotifier struct{}

func (NopNotifier) DownloadRenamed(string, *domain.MatchResult) {}
func (NopNotifier) DownloadUnmatched(string, string)            {}
func (NopNotifier) TrialWarning(string, domain.LicenseStatus)   {}

// session 一台机器的会话状态。
//
// 所有跨请求状态（当前邮件元数据、待命下载、命名序号）都挂在
// 这里，互不相关的机器之间完全隔离。
type session struct {
	mu        sync.Mutex
	meta      domain.EmailMetadata
	registry  *registry.Registry
	generator *generate.Generator
	lastSeen  time.Time
}

// SessionService 管理每台机器的重命名会话。
type SessionService struct {
	mu       sync.Mutex
	sessions map[string]*session

	extractor *extract.Extractor
	resolver  *resolve.Resolver
	checker   *security.FilenameSecurity
	settings  *SettingsService
	license   *LicenseService
	notifier  Notifier
	cfg       *config.RenameConfig
	log       *zap.Logger
	now       func() time.Time
}

// NewSessionService 创建会话服务。notifier 为 nil 时使用空实现。
func NewSessionService(
	settings *SettingsService,
	license *LicenseService,
	notifier Notifier,
	cfg *config.RenameConfig,
	log *zap.Logger,
) *SessionService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SessionService{
		sessions:  make(map[string]*session),
		extractor: extract.New(log),
		resolver:  resolve.NewWithThresholds(log, cfg.MatchThreshold, cfg.RelaxedThreshold),
		checker:   security.NewFilenameSecurity(),
		settings:  settings,
		license:   license,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// UpdateMetadata 用新的邮件视图快照重建会话元数据。
//
// 每次邮件视图变化都整体替换，同时重置命名序号，保证同一封
// 邮件内的兜底名从 file1 重新开始。
func (s *SessionService) UpdateMetadata(machineID string, snap domain.Snapshot) domain.EmailMetadata {
	sess := s.session(machineID)
	meta := s.extractor.Extract(snap)

	sess.mu.Lock()
	sess.meta = meta
	sess.generator.Reset()
	sess.lastSeen = s.now()
	sess.mu.Unlock()

	s.log.Debug("会话元数据已更新",
		zap.String("machineId", machineID),
		zap.String("sender", meta.Sender),
		zap.Int("attachments", len(meta.Attachments)),
	)
	return meta
}

// PrepareResult 下载准备结果。
type PrepareResult struct {
	TrackingKey string               `json:"trackingKey"`
	NewFilename string               `json:"newFilename"`
	Status      domain.LicenseStatus `json:"status"`
}

// PrepareDownload 在下载触发前生成目标文件名并登记待命条目。
//
// 先消费试用配额（付费机器直接放行），配额不足时返回
// ErrTrialExhausted / ErrTrialExpired 并附带当前状态。
func (s *SessionService) PrepareDownload(ctx context.Context, machineID, originalFilename string, installedAt time.Time) (*PrepareResult, error) {
	status, err := s.license.ConsumeTrial(ctx, machineID, installedAt)
	if err != nil {
		if status != nil && (errors.Is(err, ErrTrialExhausted) || errors.Is(err, ErrTrialExpired)) {
			s.notifier.TrialWarning(machineID, *status)
		}
		return nil, err
	}

	if safe, reason := s.checker.CheckFilename(originalFilename); !safe {
		s.log.Warn("附件文件名存在安全风险",
			zap.String("machineId", machineID),
			zap.String("filename", originalFilename),
			zap.String("reason", reason),
		)
	}

	settings, err := s.settings.Get(machineID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	sess := s.session(machineID)
	sess.mu.Lock()
	meta := sess.meta
	sess.lastSeen = s.now()
	sess.mu.Unlock()

	if meta.Sender == "" {
		meta = domain.DegradedMetadata(s.now())
	}

	newFilename := sess.generator.Generate(originalFilename, meta, *settings)

	entry := domain.PendingDownload{
		TrackingKey:      originalFilename,
		OriginalFilename: originalFilename,
		NewFilename:      newFilename,
		CreatedAt:        s.now(),
	}
	if err := sess.registry.Register(entry); err != nil {
		if !errors.Is(err, registry.ErrDuplicateKey) {
			return nil, fmt.Errorf("register download: %w", err)
		}
		// 同名附件重复下载：换一个跟踪键重新登记
		entry.TrackingKey = originalFilename + "#" + uuid.NewString()[:8]
		if err := sess.registry.Register(entry); err != nil {
			return nil, fmt.Errorf("register download: %w", err)
		}
	}

	// 试用还剩最后一次时提前提醒
	if !status.Paid && status.DailyLimit > 0 && status.UsedToday == status.DailyLimit {
		s.notifier.TrialWarning(machineID, *status)
	}

	s.log.Info("下载已准备",
		zap.String("machineId", machineID),
		zap.String("original", originalFilename),
		zap.String("renamed", newFilename),
	)

	return &PrepareResult{
		TrackingKey: entry.TrackingKey,
		NewFilename: newFilename,
		Status:      *status,
	}, nil
}

// ObserveResult 下载观察结果。
type ObserveResult struct {
	Matched     bool               `json:"matched"`
	NewFilename string             `json:"newFilename,omitempty"`
	Method      domain.MatchMethod `json:"method,omitempty"`
	Score       float64            `json:"score,omitempty"`
}

// ObserveDownload 处理浏览器上报的下载事件。
//
// 在待命条目中解析匹配，命中时沿用下载事件观察到的真实扩展名；
// 未命中时下载保持原名。两种结果都会推送给订阅端。
func (s *SessionService) ObserveDownload(machineID, observedFilename, attachmentID string) *ObserveResult {
	sess := s.session(machineID)
	sess.mu.Lock()
	sess.lastSeen = s.now()
	sess.mu.Unlock()

	result, ok := s.resolver.Resolve(observedFilename, attachmentID, sess.registry)
	if !ok {
		s.notifier.DownloadUnmatched(machineID, observedFilename)
		return &ObserveResult{Matched: false}
	}

	result.Entry.NewFilename = sanitize.EnsureExtension(result.Entry.NewFilename, observedFilename)
	s.notifier.DownloadRenamed(machineID, result)

	return &ObserveResult{
		Matched:     true,
		NewFilename: result.Entry.NewFilename,
		Method:      result.Method,
		Score:       result.Score,
	}
}

// PurgeExpired 清理所有会话中过期的待命条目，并回收空闲会话。
// 返回清理的条目数，由后台定时任务调用。
func (s *SessionService) PurgeExpired() int {
	now := s.now()
	purged := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for machineID, sess := range s.sessions {
		purged += sess.registry.PurgeExpired(now)

		sess.mu.Lock()
		idle := now.Sub(sess.lastSeen) > s.cfg.SessionTTL
		sess.mu.Unlock()
		if idle && sess.registry.Len() == 0 {
			delete(s.sessions, machineID)
		}
	}
	return purged
}

// Sessions 返回当前活跃会话数，用于监控指标。
func (s *SessionService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// session 取出或创建一台机器的会话。
func (s *SessionService) session(machineID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[machineID]
	if !ok {
		sess = &session{
			registry:  registry.New(s.cfg.RegistryTTL),
			generator: generate.New(s.log),
			lastSeen:  s.now(),
		}
		s.sessions[machineID] = sess
	}
	return sess
}
