package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreEmptyInputs(t *testing.T) {
	assert.Equal(t, 1.0, Score("", ""))
	assert.Equal(t, 0.0, Score("report.pdf", ""))
	assert.Equal(t, 0.0, Score("", "report.pdf"))
}

func TestScoreGenericPairs(t *testing.T) {
	// Known viewer placeholder combinations get a fixed mid score.
	assert.Equal(t, 0.7, Score("agreement_final", "document.pdf"))
	assert.Equal(t, 0.7, Score("document.pdf", "attachment_1700000000"))
}

func TestScoreAttachmentIDs(t *testing.T) {
	// Same tracking id is a certain match, different ids can never match.
	assert.Equal(t, 1.0, Score("attachment_42.bin", "attachment_42"))
	assert.Equal(t, 0.0, Score("attachment_42", "attachment_43"))
	// One side carries the id, the other merely contains it.
	assert.Equal(t, 0.8, Score("attachment_1234", "scan_1234.tiff"))
	assert.Equal(t, 0.8, Score("scan_1234.tiff", "attachment_1234"))
}

func TestScoreFuzzy(t *testing.T) {
	// Identical names with a shared pdf extension hit the cap.
	assert.Equal(t, 1.0, Score("report.pdf", "report.pdf"))

	// Close names with a shared extension clear the match threshold.
	got := Score("quarterly-report.xlsx", "quarterly_report.xlsx")
	assert.Greater(t, got, MatchThreshold)

	// Unrelated names stay below even the relaxed threshold bonus range.
	got = Score("holiday_photo.png", "invoice_2024.docx")
	assert.Less(t, got, MatchThreshold)
}

func TestScoreExtensionBonus(t *testing.T) {
	samePDF := Score("summary.pdf", "overview.pdf")
	sameDoc := Score("summary.docx", "overview.docx")
	// pdf pairs get a bigger extension bonus than other types.
	assert.Greater(t, samePDF, sameDoc)
}

func TestScoreBounds(t *testing.T) {
	pairs := [][2]string{
		{"a.pdf", "a.pdf"},
		{"x", "completely different name.xlsx"},
		{"attachment_1", "attachment_2"},
		{"", "x"},
	}
	for _, p := range pairs {
		s := Score(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestAttachmentID(t *testing.T) {
	assert.Equal(t, "1700000000", AttachmentID("attachment_1700000000.pdf"))
	assert.Equal(t, "", AttachmentID("report.pdf"))
}

func TestIsGenericViewerName(t *testing.T) {
	assert.True(t, IsGenericViewerName("document.pdf"))
	assert.True(t, IsGenericViewerName("attachment_99"))
	assert.True(t, IsGenericViewerName("Agreement_final"))
	assert.False(t, IsGenericViewerName("budget2024.xlsx"))
}
