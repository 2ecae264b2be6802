package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckFilenameSafe(t *testing.T) {
	fs := NewFilenameSecurity()

	for _, name := range []string{
		"budget2024.xlsx",
		"report.pdf",
		"photo.final.jpg",
		"notes",
	} {
		safe, reason := fs.CheckFilename(name)
		assert.True(t, safe, "name %q flagged: %s", name, reason)
	}
}

func TestCheckFilenameDangerousExtension(t *testing.T) {
	fs := NewFilenameSecurity()

	safe, reason := fs.CheckFilename("setup.exe")
	assert.False(t, safe)
	assert.Contains(t, reason, ".exe")
}

func TestCheckFilenameSpoofedExtension(t *testing.T) {
	fs := NewFilenameSecurity()

	safe, reason := fs.CheckFilename("invoice.pdf.exe")
	assert.False(t, safe)
	assert.Contains(t, reason, "spoofed")
}

func TestCheckFilenameReservedName(t *testing.T) {
	fs := NewFilenameSecurity()

	safe, reason := fs.CheckFilename("con.pdf")
	assert.False(t, safe)
	assert.Contains(t, reason, "reserved")
}
