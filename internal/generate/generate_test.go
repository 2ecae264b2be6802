package generate

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"attachrename/backend/internal/domain"
)

var testDate = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func defaultSettings() domain.Settings {
	return *domain.DefaultSettings()
}

func meta(attachments ...string) domain.EmailMetadata {
	m := domain.EmailMetadata{
		Sender: "Jane Doe <jane.doe@example.com>",
		Date:   testDate,
	}
	for _, a := range attachments {
		m.Attachments = append(m.Attachments, domain.AttachmentCandidate{Filename: a})
	}
	return m
}

func TestNeedsImprovement(t *testing.T) {
	improve := []string{
		"attachment_1700000000",
		"document.pdf",
		"file",
		"Untitled.png",
		"tempfile.pdf",
		"12345.pdf",
		"inbox_view",
		"noextension",
	}
	for _, name := range improve {
		assert.True(t, NeedsImprovement(name), "expected %q to need improvement", name)
	}

	keep := []string{
		"quarterly_report.pdf",
		"budget2024.xlsx",
		"photo_from_trip.jpg",
	}
	for _, name := range keep {
		assert.False(t, NeedsImprovement(name), "expected %q to be kept", name)
	}
}

func TestGeneratePlaceholderWithoutCandidates(t *testing.T) {
	g := New(zap.NewNop())
	got := g.Generate("attachment_1700000000", meta(), defaultSettings())
	assert.Equal(t, "2024-03-15_Jane_Doe_file1.pdf", got)
}

func TestGenerateKeepsInformativeName(t *testing.T) {
	g := New(zap.NewNop())
	got := g.Generate("report.pdf", meta(), defaultSettings())
	assert.Equal(t, "2024-03-15_Jane_Doe_report.pdf", got)
}

func TestGenerateUsesSingleCandidate(t *testing.T) {
	g := New(zap.NewNop())
	got := g.Generate("document.pdf", meta("budget2024.xlsx"), defaultSettings())
	assert.Equal(t, "2024-03-15_Jane_Doe_budget2024.xlsx", got)
}

func TestGenerateRoundRobinCandidates(t *testing.T) {
	g := New(zap.NewNop())
	m := meta("first.pdf", "second.pdf")

	got1 := g.Generate("attachment_1", m, defaultSettings())
	got2 := g.Generate("attachment_2", m, defaultSettings())

	assert.Equal(t, "2024-03-15_Jane_Doe_first.pdf", got1)
	assert.Equal(t, "2024-03-15_Jane_Doe_second.pdf", got2)
}

func TestGenerateSubjectFallback(t *testing.T) {
	g := New(zap.NewNop())
	m := meta()
	m.Subject = "Budget Review Q3"

	got := g.Generate("attachment_1", m, defaultSettings())
	assert.Equal(t, "2024-03-15_Jane_Doe_Budget_Review_Q3.pdf", got)
}

func TestGenerateSubjectTruncatesOnRuneBoundary(t *testing.T) {
	g := New(zap.NewNop())
	m := meta()
	m.Subject = strings.Repeat("报", 50)

	got := g.Generate("attachment_1", m, defaultSettings())
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, strings.Repeat("报", 30)+".pdf")
	assert.NotContains(t, got, strings.Repeat("报", 31))
}

func TestGenerateCountersIsolatedBySender(t *testing.T) {
	g := New(zap.NewNop())
	settings := defaultSettings()

	a := meta()
	b := meta()
	b.Sender = "Bob <bob@example.com>"

	// Each sender/date pair keeps its own sequence.
	assert.Contains(t, g.Generate("attachment_1", a, settings), "file1.pdf")
	assert.Contains(t, g.Generate("attachment_2", b, settings), "file1.pdf")
	assert.Contains(t, g.Generate("attachment_3", a, settings), "file2.pdf")
}

func TestGenerateCustomPattern(t *testing.T) {
	g := New(zap.NewNop())
	m := meta()
	m.Subject = "Budget Review Q3"

	settings := defaultSettings()
	settings.Pattern = "YYYY-MM-DD_Subject"

	got := g.Generate("report.pdf", m, settings)
	// Pattern drops the filename, so the extension is restored from it.
	assert.Equal(t, "2024-03-15_Budget_Review_Q3.pdf", got)
}

func TestGenerateResultIsFilesystemSafe(t *testing.T) {
	g := New(zap.NewNop())
	m := meta()
	m.Sender = `Weird "Name" <weird@example.com>`
	m.Subject = "Re: status/update?"

	got := g.Generate("attachment_1", m, defaultSettings())
	assert.NotContains(t, got, "/")
	assert.NotContains(t, got, "?")
	assert.NotContains(t, got, `"`)
}

func TestReset(t *testing.T) {
	g := New(zap.NewNop())
	m := meta()

	assert.Contains(t, g.Generate("attachment_1", m, defaultSettings()), "file1.pdf")
	g.Reset()
	assert.Contains(t, g.Generate("attachment_2", m, defaultSettings()), "file1.pdf")
}

func TestSenderParts(t *testing.T) {
	tests := []struct {
		input     string
		wantName  string
		wantEmail string
	}{
		{"Jane Doe <jane@example.com>", "Jane Doe", "jane@example.com"},
		{"<jane@example.com>", "jane", "jane@example.com"},
		{"jane@example.com", "jane", "jane@example.com"},
		{"Jane Doe", "Jane Doe", "Jane_Doe@unknown.invalid"},
		{"", domain.UnknownSender, domain.UnknownSender + "@unknown.invalid"},
		{domain.UnknownSender, domain.UnknownSender, domain.UnknownSender + "@unknown.invalid"},
	}
	for _, tt := range tests {
		name, email := SenderParts(tt.input)
		assert.Equal(t, tt.wantName, name, "input %q", tt.input)
		assert.Equal(t, tt.wantEmail, email, "input %q", tt.input)
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024-03-15", FormatDate(testDate, "YYYY-MM-DD"))
	assert.Equal(t, "15.03.2024", FormatDate(testDate, "DD.MM.YYYY"))
	assert.Equal(t, "2024-03-15", FormatDate(testDate, ""))
}
