package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"attachrename/backend/internal/auth/jwt"
	"attachrename/backend/internal/config"
	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/storage"
	redisstore "attachrename/backend/internal/storage/redis"
)

var (
	// ErrInvalidLicenseKey 许可键格式或签名不合法
	ErrInvalidLicenseKey = errors.New("invalid license key")
	// ErrMachineAlreadyActivated 该机器已激活过许可
	ErrMachineAlreadyActivated = errors.New("machine already activated")
	// ErrTrialExhausted 今日试用次数已用完
	ErrTrialExhausted = errors.New("trial quota exhausted")
	// ErrTrialExpired 试用期已结束
	ErrTrialExpired = errors.New("trial period expired")
)

// 许可键形如 GEAR-M-1718000000-a1b2c3d4e5：
// 固定前缀、类型标记（M 月付 / L 买断）、签发时间戳、
// 以及对前三段做 HMAC-SHA256 后取前 10 位十六进制的签名。
const (
	licenseKeyPrefix = "GEAR"
	licenseSigLen    = 10
	monthlyValidity  = 30 * 24 * time.Hour
)

// 许可状态缓存时长。激活和试用消费都会主动失效，短缓存只为
// 压掉扩展端的高频轮询。
const statusCacheTTL = time.Minute

// LicenseService 封装许可验证、激活与试用配额。
type LicenseService struct {
	store  storage.Store
	cache  *redisstore.Cache // 可选，nil 时直连数据库
	tokens *jwt.Manager
	cfg    *config.LicenseConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewLicenseService 创建许可服务。cache 可以为 nil。
func NewLicenseService(store storage.Store, cache *redisstore.Cache, tokens *jwt.Manager, cfg *config.LicenseConfig, log *zap.Logger) *LicenseService {
	return &LicenseService{
		store:  store,
		cache:  cache,
		tokens: tokens,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// VerifyKey 本地校验许可键的格式与签名，返回许可类型。
func (s *LicenseService) VerifyKey(key string) (domain.LicenseType, error) {
	parts := strings.Split(strings.TrimSpace(key), "-")
	if len(parts) != 4 || parts[0] != licenseKeyPrefix {
		return "", ErrInvalidLicenseKey
	}

	var licType domain.LicenseType
	switch parts[1] {
	case "M":
		licType = domain.LicenseMonthly
	case "L":
		licType = domain.LicenseLifetime
	default:
		return "", ErrInvalidLicenseKey
	}

	issuedAt, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || issuedAt <= 0 {
		return "", ErrInvalidLicenseKey
	}
	// 签发时间不允许在未来（留一点时钟偏差余量）
	if time.Unix(issuedAt, 0).After(s.now().Add(5 * time.Minute)) {
		return "", ErrInvalidLicenseKey
	}

	expected := signKeyPayload(s.cfg.Secret, strings.Join(parts[:3], "-"))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(parts[3]))) {
		return "", ErrInvalidLicenseKey
	}

	return licType, nil
}

// ActivationResult 激活成功的返回值。
type ActivationResult struct {
	Token  string               `json:"token"`
	Status domain.LicenseStatus `json:"status"`
}

// Activate 用许可键激活一台机器。
//
// 键通过签名校验后落库（只存 bcrypt 哈希），同一机器重复激活
// 返回 ErrMachineAlreadyActivated。成功时签发许可令牌。
func (s *LicenseService) Activate(ctx context.Context, machineID, key string) (*ActivationResult, error) {
	licType, err := s.VerifyKey(key)
	if err != nil {
		return nil, err
	}

	keyHash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash license key: %w", err)
	}

	now := s.now()
	license := &domain.License{
		ID:          uuid.NewString(),
		MachineID:   machineID,
		KeyHash:     string(keyHash),
		Type:        licType,
		ActivatedAt: now,
	}
	if licType == domain.LicenseMonthly {
		until := now.Add(monthlyValidity)
		license.ValidUntil = &until
	}

	if err := s.store.SaveLicense(license); err != nil {
		if errors.Is(err, storage.ErrLicenseExists) {
			return nil, ErrMachineAlreadyActivated
		}
		return nil, fmt.Errorf("save license: %w", err)
	}

	s.invalidateStatus(ctx, machineID)

	token, err := s.tokens.GenerateToken(machineID, string(licType))
	if err != nil {
		return nil, fmt.Errorf("issue license token: %w", err)
	}

	s.log.Info("许可激活成功",
		zap.String("machineId", machineID),
		zap.String("type", string(licType)),
	)

	return &ActivationResult{
		Token:  token,
		Status: s.paidStatus(license),
	}, nil
}

// Deactivate 注销一台机器的许可。
func (s *LicenseService) Deactivate(ctx context.Context, machineID string) error {
	if err := s.store.DeleteLicense(machineID); err != nil {
		return err
	}
	s.invalidateStatus(ctx, machineID)
	s.log.Info("许可已注销", zap.String("machineId", machineID))
	return nil
}

// Status 返回一台机器的许可/试用状态。
//
// installedAt 是扩展端上报的安装时间，用于计算试用剩余天数。
func (s *LicenseService) Status(ctx context.Context, machineID string, installedAt time.Time) (*domain.LicenseStatus, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetCachedLicenseStatus(ctx, machineID); err == nil {
			return cached, nil
		}
	}

	status, err := s.computeStatus(ctx, machineID, installedAt)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheLicenseStatus(ctx, machineID, status, statusCacheTTL); err != nil {
			s.log.Debug("许可状态缓存写入失败", zap.Error(err))
		}
	}
	return status, nil
}

// ConsumeTrial 消费一次试用配额。
//
// 已付费的机器不计数直接放行。试用期外返回 ErrTrialExpired，
// 当日超限返回 ErrTrialExhausted，两种情况都附带当前状态。
func (s *LicenseService) ConsumeTrial(ctx context.Context, machineID string, installedAt time.Time) (*domain.LicenseStatus, error) {
	license, err := s.store.GetLicenseByMachine(machineID)
	if err == nil && !license.Expired(s.now()) {
		status := s.paidStatus(license)
		return &status, nil
	}
	if err != nil && !errors.Is(err, storage.ErrLicenseNotFound) {
		return nil, fmt.Errorf("lookup license: %w", err)
	}

	status := s.trialStatus(machineID, installedAt, 0)
	if status.DaysLeft <= 0 {
		return status, ErrTrialExpired
	}

	usageDate := s.now().Format("2006-01-02")
	used, err := s.incrementUsage(ctx, machineID, usageDate)
	if err != nil {
		return nil, fmt.Errorf("increment trial usage: %w", err)
	}
	status.UsedToday = used
	status.Valid = used <= s.cfg.TrialDailyLimit

	s.invalidateStatus(ctx, machineID)

	if used > s.cfg.TrialDailyLimit {
		return status, ErrTrialExhausted
	}
	return status, nil
}

// ValidateToken 校验许可令牌并返回其绑定的机器标识。
func (s *LicenseService) ValidateToken(token string) (string, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.MachineID, nil
}

func (s *LicenseService) computeStatus(ctx context.Context, machineID string, installedAt time.Time) (*domain.LicenseStatus, error) {
	license, err := s.store.GetLicenseByMachine(machineID)
	if err == nil {
		if !license.Expired(s.now()) {
			status := s.paidStatus(license)
			return &status, nil
		}
		// 月付过期后回落到试用规则
	} else if !errors.Is(err, storage.ErrLicenseNotFound) {
		return nil, fmt.Errorf("lookup license: %w", err)
	}

	usageDate := s.now().Format("2006-01-02")
	used, err := s.trialUsage(ctx, machineID, usageDate)
	if err != nil {
		return nil, fmt.Errorf("get trial usage: %w", err)
	}
	return s.trialStatus(machineID, installedAt, used), nil
}

// trialUsage 读取当日试用计数，优先走 Redis 计数器，未命中
// 或读取失败时回落数据库。
func (s *LicenseService) trialUsage(ctx context.Context, machineID, usageDate string) (int, error) {
	if s.cache != nil {
		if n, err := s.cache.GetTrialCounter(ctx, machineID, usageDate); err == nil && n > 0 {
			return int(n), nil
		}
	}
	return s.store.GetTrialUsage(machineID, usageDate)
}

func (s *LicenseService) paidStatus(license *domain.License) domain.LicenseStatus {
	return domain.LicenseStatus{
		Valid:      true,
		Paid:       true,
		Type:       license.Type,
		DailyLimit: 0,
	}
}

func (s *LicenseService) trialStatus(machineID string, installedAt time.Time, usedToday int) *domain.LicenseStatus {
	daysLeft := 0
	if !installedAt.IsZero() {
		elapsed := int(s.now().Sub(installedAt).Hours() / 24)
		daysLeft = s.cfg.TrialDays - elapsed
		if daysLeft < 0 {
			daysLeft = 0
		}
	}
	return &domain.LicenseStatus{
		Valid:      daysLeft > 0 && usedToday < s.cfg.TrialDailyLimit,
		Paid:       false,
		DaysLeft:   daysLeft,
		UsedToday:  usedToday,
		DailyLimit: s.cfg.TrialDailyLimit,
	}
}

// incrementUsage 优先走 Redis 计数，同时保证数据库里有持久记录。
func (s *LicenseService) incrementUsage(ctx context.Context, machineID, usageDate string) (int, error) {
	used, err := s.store.IncrementTrialUsage(machineID, usageDate)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if _, cacheErr := s.cache.IncrementTrialCounter(ctx, machineID, usageDate); cacheErr != nil {
			s.log.Debug("试用计数缓存写入失败", zap.Error(cacheErr))
		}
	}
	return used, nil
}

func (s *LicenseService) invalidateStatus(ctx context.Context, machineID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateLicenseStatus(ctx, machineID); err != nil {
		s.log.Debug("许可状态缓存失效失败", zap.Error(err))
	}
}

// signKeyPayload 计算许可键签名段。
func signKeyPayload(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))[:licenseSigLen]
}

// MintKey 用签名密钥铸造一个许可键，供发卡工具使用。
func MintKey(secret string, licType domain.LicenseType, issuedAt time.Time) (string, error) {
	var mark string
	switch licType {
	case domain.LicenseMonthly:
		mark = "M"
	case domain.LicenseLifetime:
		mark = "L"
	default:
		return "", fmt.Errorf("unknown license type: %s", licType)
	}
	payload := fmt.Sprintf("%s-%s-%d", licenseKeyPrefix, mark, issuedAt.Unix())
	return payload + "-" + signKeyPayload(secret, payload), nil
}
