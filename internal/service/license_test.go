package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attachrename/backend/internal/auth/jwt"
	"attachrename/backend/internal/config"
	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/storage/memory"
)

const testLicenseSecret = "hmac-test-secret"

func newLicenseService(t *testing.T) *LicenseService {
	t.Helper()
	cfg := &config.LicenseConfig{
		Secret:          testLicenseSecret,
		JWTSecret:       "test-secret-key-for-development-32-chars-long",
		Issuer:          "attachrename",
		TokenExpiry:     time.Hour,
		TrialDays:       7,
		TrialDailyLimit: 3,
	}
	tokens := jwt.NewManager(cfg.JWTSecret, cfg.Issuer, cfg.TokenExpiry)
	return NewLicenseService(memory.NewStore(), nil, tokens, cfg, zap.NewNop())
}

func mintTestKey(t *testing.T, licType domain.LicenseType) string {
	t.Helper()
	key, err := MintKey(testLicenseSecret, licType, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	return key
}

func TestVerifyKey(t *testing.T) {
	s := newLicenseService(t)

	licType, err := s.VerifyKey(mintTestKey(t, domain.LicenseMonthly))
	require.NoError(t, err)
	assert.Equal(t, domain.LicenseMonthly, licType)

	licType, err = s.VerifyKey(mintTestKey(t, domain.LicenseLifetime))
	require.NoError(t, err)
	assert.Equal(t, domain.LicenseLifetime, licType)
}

func TestVerifyKeyRejectsTampering(t *testing.T) {
	s := newLicenseService(t)
	key := mintTestKey(t, domain.LicenseMonthly)

	bad := []string{
		"",
		"GEAR-M-123",
		"WRONG" + key[4:],
		key[:len(key)-1] + "x",
		// Flipping the type mark invalidates the signature.
		"GEAR-L" + key[6:],
	}
	for _, k := range bad {
		_, err := s.VerifyKey(k)
		assert.ErrorIs(t, err, ErrInvalidLicenseKey, "key %q", k)
	}
}

func TestVerifyKeyRejectsFutureTimestamp(t *testing.T) {
	s := newLicenseService(t)
	key, err := MintKey(testLicenseSecret, domain.LicenseMonthly, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = s.VerifyKey(key)
	assert.ErrorIs(t, err, ErrInvalidLicenseKey)
}

func TestActivate(t *testing.T) {
	s := newLicenseService(t)
	ctx := context.Background()

	res, err := s.Activate(ctx, "machine-a", mintTestKey(t, domain.LicenseLifetime))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.Status.Paid)
	assert.Equal(t, domain.LicenseLifetime, res.Status.Type)

	// The issued token binds the machine.
	machineID, err := s.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "machine-a", machineID)

	// Second activation for the same machine is rejected.
	_, err = s.Activate(ctx, "machine-a", mintTestKey(t, domain.LicenseLifetime))
	assert.ErrorIs(t, err, ErrMachineAlreadyActivated)
}

func TestActivateRejectsBadKey(t *testing.T) {
	s := newLicenseService(t)
	_, err := s.Activate(context.Background(), "machine-a", "GEAR-M-123-badsig")
	assert.ErrorIs(t, err, ErrInvalidLicenseKey)
}

func TestStatusForTrialMachine(t *testing.T) {
	s := newLicenseService(t)
	installedAt := time.Now().Add(-2 * 24 * time.Hour)

	status, err := s.Status(context.Background(), "machine-a", installedAt)
	require.NoError(t, err)
	assert.False(t, status.Paid)
	assert.True(t, status.Valid)
	assert.Equal(t, 5, status.DaysLeft)
	assert.Equal(t, 0, status.UsedToday)
	assert.Equal(t, 3, status.DailyLimit)
}

func TestStatusReflectsConsumedTrialUsage(t *testing.T) {
	s := newLicenseService(t)
	ctx := context.Background()
	installedAt := time.Now().Add(-24 * time.Hour)

	for i := 0; i < 2; i++ {
		_, err := s.ConsumeTrial(ctx, "machine-a", installedAt)
		require.NoError(t, err)
	}

	status, err := s.Status(ctx, "machine-a", installedAt)
	require.NoError(t, err)
	assert.Equal(t, 2, status.UsedToday)
	assert.True(t, status.Valid)
}

func TestConsumeTrialDailyLimit(t *testing.T) {
	s := newLicenseService(t)
	ctx := context.Background()
	installedAt := time.Now().Add(-24 * time.Hour)

	for i := 1; i <= 3; i++ {
		status, err := s.ConsumeTrial(ctx, "machine-a", installedAt)
		require.NoError(t, err, "use %d should be allowed", i)
		assert.Equal(t, i, status.UsedToday)
	}

	status, err := s.ConsumeTrial(ctx, "machine-a", installedAt)
	assert.ErrorIs(t, err, ErrTrialExhausted)
	assert.False(t, status.Valid)
}

func TestConsumeTrialAfterExpiry(t *testing.T) {
	s := newLicenseService(t)
	installedAt := time.Now().Add(-10 * 24 * time.Hour)

	status, err := s.ConsumeTrial(context.Background(), "machine-a", installedAt)
	assert.ErrorIs(t, err, ErrTrialExpired)
	assert.Equal(t, 0, status.DaysLeft)
}

func TestConsumeTrialPaidBypass(t *testing.T) {
	s := newLicenseService(t)
	ctx := context.Background()

	_, err := s.Activate(ctx, "machine-a", mintTestKey(t, domain.LicenseLifetime))
	require.NoError(t, err)

	// Paid machines are not counted against the trial quota.
	for i := 0; i < 10; i++ {
		status, err := s.ConsumeTrial(ctx, "machine-a", time.Time{})
		require.NoError(t, err)
		assert.True(t, status.Paid)
	}
}

func TestMonthlyLicenseExpiresToTrial(t *testing.T) {
	s := newLicenseService(t)
	ctx := context.Background()

	_, err := s.Activate(ctx, "machine-a", mintTestKey(t, domain.LicenseMonthly))
	require.NoError(t, err)

	// Jump past the monthly validity window.
	s.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }

	status, err := s.Status(ctx, "machine-a", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, status.Paid)
}
