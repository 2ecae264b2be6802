package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attachrename/backend/internal/domain"
)

// messageSnapshot builds a synthetic message view with a sender,
// a date cell, a subject heading and three attachment shapes.
func messageSnapshot() domain.Snapshot {
	root := &domain.TreeNode{
		Tag: "div",
		Nodes: []*domain.TreeNode{
			{
				Tag:   "span",
				Attrs: map[string]string{"email": "jane.doe@example.com", "class": "sender"},
				Value: "Jane Doe",
			},
			{
				Tag:   "span",
				Attrs: map[string]string{"title": "2024-03-15"},
				Value: "Mar 15",
			},
			{
				Tag:   "h2",
				Attrs: map[string]string{"role": "heading"},
				Value: "Re: Quarterly Numbers",
			},
			{
				Tag:   "div",
				Attrs: map[string]string{"class": "attachment chip"},
				Value: "budget2024.xlsx",
			},
			{
				Tag:   "a",
				Attrs: map[string]string{"download": "contract.docx"},
			},
			{
				Tag:   "div",
				Attrs: map[string]string{"role": "listitem"},
				Nodes: []*domain.TreeNode{
					{Tag: "span", Value: "summary.pdf"},
					{Tag: "span", Value: "128 KB"},
					{Tag: "button", Attrs: map[string]string{"data-tooltip": "Download attachment"}},
				},
			},
		},
	}
	return domain.NewTreeSnapshot(root)
}

func TestExtract(t *testing.T) {
	e := New(zap.NewNop())
	meta := e.Extract(messageSnapshot())

	assert.Equal(t, "jane.doe@example.com", meta.Sender)
	assert.Equal(t, "Quarterly Numbers", meta.Subject)
	assert.Equal(t, 2024, meta.Date.Year())
	assert.Equal(t, time.March, meta.Date.Month())
	assert.Equal(t, 15, meta.Date.Day())

	require.Len(t, meta.Attachments, 3)
	names := []string{
		meta.Attachments[0].Filename,
		meta.Attachments[1].Filename,
		meta.Attachments[2].Filename,
	}
	assert.Contains(t, names, "budget2024.xlsx")
	assert.Contains(t, names, "contract.docx")
	assert.Contains(t, names, "summary.pdf")
}

func TestExtractSenderFallbacks(t *testing.T) {
	e := New(zap.NewNop())

	// Angle-bracket address in the parent text wins over display name.
	snap := domain.NewTreeSnapshot(&domain.TreeNode{
		Tag:   "div",
		Value: "From John Smith <john@corp.example>",
		Nodes: []*domain.TreeNode{
			{Tag: "span", Attrs: map[string]string{"class": "sender"}, Value: "John Smith"},
		},
	})
	assert.Equal(t, "john@corp.example", e.Extract(snap).Sender)

	// Nothing sender-like at all.
	empty := domain.NewTreeSnapshot(&domain.TreeNode{Tag: "div", Value: "hello"})
	assert.Equal(t, domain.UnknownSender, e.Extract(empty).Sender)
}

func TestExtractDateFallsBackToNow(t *testing.T) {
	e := New(zap.NewNop())
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	snap := domain.NewTreeSnapshot(&domain.TreeNode{Tag: "div", Value: "no dates here"})
	assert.Equal(t, fixed, e.Extract(snap).Date)
}

func TestExtractFiltersNoise(t *testing.T) {
	e := New(zap.NewNop())
	snap := domain.NewTreeSnapshot(&domain.TreeNode{
		Tag: "div",
		Nodes: []*domain.TreeNode{
			{Tag: "div", Attrs: map[string]string{"class": "attachment"}, Value: "Inbox"},
			{Tag: "div", Attrs: map[string]string{"class": "attachment"}, Value: "2 MB"},
			{Tag: "div", Attrs: map[string]string{"class": "attachment"}, Value: "Download"},
			{Tag: "div", Attrs: map[string]string{"class": "attachment"}, Value: "invoice_march.pdf"},
		},
	})
	meta := e.Extract(snap)
	require.Len(t, meta.Attachments, 1)
	assert.Equal(t, "invoice_march.pdf", meta.Attachments[0].Filename)
}

func TestExtractKeywordOnlyCandidate(t *testing.T) {
	e := New(zap.NewNop())
	snap := domain.NewTreeSnapshot(&domain.TreeNode{
		Tag: "div",
		Nodes: []*domain.TreeNode{
			{Tag: "div", Attrs: map[string]string{"class": "attachment"}, Value: "Signed Agreement"},
		},
	})
	meta := e.Extract(snap)
	require.Len(t, meta.Attachments, 1)
	// No extension in the source text, so cleanup supplies the default.
	assert.Equal(t, "Signed Agreement.pdf", meta.Attachments[0].Filename)
}

// panicSnapshot forces the recover path in Extract.
type panicSnapshot struct{}

func (panicSnapshot) Find(func(domain.Node) bool) domain.Node      { panic("boom") }
func (panicSnapshot) FindAll(func(domain.Node) bool) []domain.Node { panic("boom") }

func TestExtractDegradesOnPanic(t *testing.T) {
	e := New(zap.NewNop())
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	meta := e.Extract(panicSnapshot{})
	assert.Equal(t, domain.UnknownSender, meta.Sender)
	assert.Equal(t, fixed, meta.Date)
	assert.Empty(t, meta.Attachments)
}
