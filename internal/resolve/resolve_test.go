package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/registry"
)

func pending(key, original, renamed string) domain.PendingDownload {
	return domain.PendingDownload{
		TrackingKey:      key,
		OriginalFilename: original,
		NewFilename:      renamed,
	}
}

func newRegistry(t *testing.T, entries ...domain.PendingDownload) *registry.Registry {
	t.Helper()
	reg := registry.New(time.Minute)
	for _, e := range entries {
		require.NoError(t, reg.Register(e))
	}
	return reg
}

func TestResolveByAttachmentID(t *testing.T) {
	reg := newRegistry(t,
		pending("attachment_1111", "report.pdf", "2024_jane_report.pdf"),
		pending("attachment_2222", "invoice.pdf", "2024_jane_invoice.pdf"),
	)
	r := New(zap.NewNop())

	res, ok := r.Resolve("attachment_2222", "", reg)
	require.True(t, ok)
	assert.Equal(t, domain.MatchByAttachmentID, res.Method)
	assert.Equal(t, "2024_jane_invoice.pdf", res.Entry.NewFilename)
	// The matched entry is consumed.
	assert.Equal(t, 1, reg.Len())
}

func TestResolveByExplicitID(t *testing.T) {
	reg := newRegistry(t,
		pending("attachment_9999", "scan.tiff", "renamed_scan.tiff"),
	)
	r := New(zap.NewNop())

	res, ok := r.Resolve("document.pdf", "9999", reg)
	require.True(t, ok)
	assert.Equal(t, domain.MatchByAttachmentID, res.Method)
}

func TestResolveByEmbeddedAttachmentID(t *testing.T) {
	reg := newRegistry(t,
		pending("attachment_99", "attachment_99", "wrong.pdf"),
		pending("invoice_998877.pdf", "invoice_998877.pdf", "right.pdf"),
	)
	r := New(zap.NewNop())

	// The tracking number matches as a substring of the original
	// filename, before substring matching can reach attachment_99.
	res, ok := r.Resolve("attachment_998877", "", reg)
	require.True(t, ok)
	assert.Equal(t, domain.MatchByAttachmentID, res.Method)
	assert.Equal(t, "right.pdf", res.Entry.NewFilename)
}

func TestResolveByExactFilename(t *testing.T) {
	reg := newRegistry(t,
		pending("k1", "budget2024.xlsx", "renamed_budget.xlsx"),
		pending("k2", "notes.txt", "renamed_notes.txt"),
	)
	r := New(zap.NewNop())

	res, ok := r.Resolve("Budget2024.xlsx", "", reg)
	require.True(t, ok)
	assert.Equal(t, domain.MatchByFilename, res.Method)
	assert.Equal(t, "renamed_budget.xlsx", res.Entry.NewFilename)
}

func TestResolveBySubstring(t *testing.T) {
	reg := newRegistry(t,
		pending("k1", "report.pdf", "renamed_report.pdf"),
	)
	r := New(zap.NewNop())

	// Observed name embeds the pending filename.
	res, ok := r.Resolve("download (1) report.pdf", "", reg)
	require.True(t, ok)
	assert.Equal(t, domain.MatchByFilename, res.Method)
}

func TestResolveFuzzy(t *testing.T) {
	reg := newRegistry(t,
		pending("k1", "quarterly-report.xlsx", "renamed_q.xlsx"),
		pending("k2", "holiday_photo.png", "renamed_h.png"),
	)
	r := New(zap.NewNop())

	res, ok := r.Resolve("quarterly_report.xlsx", "", reg)
	require.True(t, ok)
	assert.Equal(t, domain.MatchByFuzzy, res.Method)
	assert.Equal(t, "renamed_q.xlsx", res.Entry.NewFilename)
	assert.Greater(t, res.Score, 0.6)
}

func TestResolveSinglePendingViewerArtifact(t *testing.T) {
	reg := newRegistry(t,
		pending("k1", "zzzzzzzzzzzzzzzz.docx", "renamed_single.docx"),
	)
	r := New(zap.NewNop())

	// A viewer placeholder name claims the sole pending entry even
	// when the similarity score is negligible.
	res, ok := r.Resolve("document.pdf", "", reg)
	require.True(t, ok)
	assert.Equal(t, domain.MatchBySinglePending, res.Method)
	assert.Equal(t, "renamed_single.docx", res.Entry.NewFilename)
}

func TestResolveSinglePendingKeepsRealNames(t *testing.T) {
	reg := newRegistry(t,
		pending("k1", "aaaaaaaaaa.doc", "renamed_single.doc"),
	)
	r := New(zap.NewNop())

	// A download with a real (non-placeholder) name must not consume
	// an unrelated entry just because it is the only one pending.
	_, ok := r.Resolve("aaaaa.txt", "", reg)
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestResolveFuzzyRelaxedForViewerArtifact(t *testing.T) {
	reg := newRegistry(t,
		pending("k1", "x.pdf", "renamed_x.pdf"),
		pending("k2", "zzzz.docx", "renamed_z.docx"),
	)
	r := New(zap.NewNop())

	// With several entries pending, a placeholder download name still
	// gets the relaxed threshold per comparison.
	res, ok := r.Resolve("document.pdf", "", reg)
	require.True(t, ok)
	assert.Equal(t, domain.MatchByFuzzy, res.Method)
	assert.Equal(t, "renamed_x.pdf", res.Entry.NewFilename)
}

func TestResolveNoMatch(t *testing.T) {
	reg := newRegistry(t,
		pending("k1", "alpha.png", "renamed_a.png"),
		pending("k2", "beta.docx", "renamed_b.docx"),
	)
	r := New(zap.NewNop())

	_, ok := r.Resolve("zzzzzzz.mp3", "", reg)
	assert.False(t, ok)
	// Nothing was consumed on a miss.
	assert.Equal(t, 2, reg.Len())
}

func TestResolveEmptyRegistry(t *testing.T) {
	r := New(zap.NewNop())
	_, ok := r.Resolve("anything.pdf", "", registry.New(time.Minute))
	assert.False(t, ok)
}

func TestResolvePrefersEarlierRegistration(t *testing.T) {
	reg := newRegistry(t,
		pending("k1", "report.pdf", "first.pdf"),
		pending("k2", "report.pdf", "second.pdf"),
	)
	r := New(zap.NewNop())

	res, ok := r.Resolve("report.pdf", "", reg)
	require.True(t, ok)
	assert.Equal(t, "first.pdf", res.Entry.NewFilename)
}
