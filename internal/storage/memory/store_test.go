package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/storage"
)

func TestLicenseLifecycle(t *testing.T) {
	s := NewStore()

	lic := &domain.License{
		ID:          "lic-1",
		MachineID:   "machine-a",
		KeyHash:     "hash",
		Type:        domain.LicenseLifetime,
		ActivatedAt: time.Now(),
	}
	require.NoError(t, s.SaveLicense(lic))

	// Duplicate activation for the same machine is rejected.
	assert.ErrorIs(t, s.SaveLicense(lic), storage.ErrLicenseExists)

	got, err := s.GetLicenseByMachine("machine-a")
	require.NoError(t, err)
	assert.Equal(t, domain.LicenseLifetime, got.Type)

	_, err = s.GetLicenseByMachine("machine-b")
	assert.ErrorIs(t, err, storage.ErrLicenseNotFound)

	require.NoError(t, s.DeleteLicense("machine-a"))
	assert.ErrorIs(t, s.DeleteLicense("machine-a"), storage.ErrLicenseNotFound)
}

func TestTrialUsage(t *testing.T) {
	s := NewStore()

	n, err := s.IncrementTrialUsage("machine-a", "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.IncrementTrialUsage("machine-a", "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Different day and different machine count separately.
	n, err = s.IncrementTrialUsage("machine-a", "2024-03-16")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.GetTrialUsage("machine-b", "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := NewStore()

	_, err := s.GetSettings("machine-a")
	assert.ErrorIs(t, err, storage.ErrSettingsNotFound)

	in := domain.DefaultSettings()
	in.Pattern = "YYYY-MM-DD_Subject"
	require.NoError(t, s.SaveSettings("machine-a", in))

	got, err := s.GetSettings("machine-a")
	require.NoError(t, err)
	assert.Equal(t, "YYYY-MM-DD_Subject", got.Pattern)
	assert.Equal(t, "machine-a", got.MachineID)

	// Saved copy is detached from the caller's struct.
	in.Pattern = "changed"
	got, err = s.GetSettings("machine-a")
	require.NoError(t, err)
	assert.Equal(t, "YYYY-MM-DD_Subject", got.Pattern)
}
