package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/storage/memory"
)

func newSettingsService() *SettingsService {
	return NewSettingsService(memory.NewStore(), zap.NewNop())
}

func TestSettingsGetDefaults(t *testing.T) {
	s := newSettingsService()

	got, err := s.Get("machine-a")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPattern, got.Pattern)
	assert.Equal(t, domain.DefaultDateFormat, got.DateFormat)
}

func TestSettingsUpdate(t *testing.T) {
	s := newSettingsService()

	got, err := s.Update("machine-a", UpdateSettingsInput{
		Pattern:    "YYYY-MM-DD_Subject",
		DateFormat: "DD.MM.YYYY",
	})
	require.NoError(t, err)
	assert.Equal(t, "YYYY-MM-DD_Subject", got.Pattern)
	assert.Equal(t, "DD.MM.YYYY", got.DateFormat)

	// Update persists across reads.
	got, err = s.Get("machine-a")
	require.NoError(t, err)
	assert.Equal(t, "YYYY-MM-DD_Subject", got.Pattern)
}

func TestSettingsUpdatePartial(t *testing.T) {
	s := newSettingsService()

	// Empty fields keep their current values.
	got, err := s.Update("machine-a", UpdateSettingsInput{DateFormat: "YYYY_MM_DD"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPattern, got.Pattern)
	assert.Equal(t, "YYYY_MM_DD", got.DateFormat)
}

func TestSettingsUpdateRejectsInvalidPattern(t *testing.T) {
	s := newSettingsService()

	_, err := s.Update("machine-a", UpdateSettingsInput{Pattern: "no-tokens-here"})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestSettingsUpdateRejectsInvalidDateFormat(t *testing.T) {
	s := newSettingsService()

	for _, format := range []string{"YYYY", "abc", "YYYY-MM-DD!"} {
		_, err := s.Update("machine-a", UpdateSettingsInput{DateFormat: format})
		assert.ErrorIs(t, err, ErrInvalidDateFormat, "format %q", format)
	}
}
