package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attachrename/backend/internal/domain"
)

func entry(key, original string) domain.PendingDownload {
	return domain.PendingDownload{
		TrackingKey:      key,
		OriginalFilename: original,
		NewFilename:      "renamed_" + original,
	}
}

func TestRegisterAndEntriesOrder(t *testing.T) {
	r := New(DefaultTTL)

	require.NoError(t, r.Register(entry("k1", "a.pdf")))
	require.NoError(t, r.Register(entry("k2", "b.pdf")))
	require.NoError(t, r.Register(entry("k3", "c.pdf")))

	entries := r.Entries()
	require.Len(t, entries, 3)
	// Entries come back in registration order.
	assert.Equal(t, "k1", entries[0].TrackingKey)
	assert.Equal(t, "k2", entries[1].TrackingKey)
	assert.Equal(t, "k3", entries[2].TrackingKey)
}

func TestRegisterDuplicateKey(t *testing.T) {
	r := New(DefaultTTL)
	require.NoError(t, r.Register(entry("k1", "a.pdf")))
	assert.ErrorIs(t, r.Register(entry("k1", "other.pdf")), ErrDuplicateKey)
	assert.Equal(t, 1, r.Len())
}

func TestConsume(t *testing.T) {
	r := New(DefaultTTL)
	require.NoError(t, r.Register(entry("k1", "a.pdf")))
	require.NoError(t, r.Register(entry("k2", "b.pdf")))

	got, ok := r.Consume("k1")
	require.True(t, ok)
	assert.Equal(t, "a.pdf", got.OriginalFilename)

	// Second consume of the same key misses.
	_, ok = r.Consume("k1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestPurgeExpired(t *testing.T) {
	r := New(time.Minute)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	require.NoError(t, r.Register(entry("old", "a.pdf")))

	r.now = func() time.Time { return base.Add(30 * time.Second) }
	require.NoError(t, r.Register(entry("fresh", "b.pdf")))

	// Only the first entry has aged past the ttl.
	removed := r.PurgeExpired(base.Add(70 * time.Second))
	assert.Equal(t, 1, removed)

	entries := r.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].TrackingKey)
}

func TestEntriesLazyPurge(t *testing.T) {
	r := New(time.Minute)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	require.NoError(t, r.Register(entry("k1", "a.pdf")))

	r.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Empty(t, r.Entries())
	assert.Equal(t, 0, r.Len())
}
