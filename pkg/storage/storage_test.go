package storage

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":             "report.pdf",
		"Q3 plan v2.docx":        "Q3_plan_v2.docx",
		"../../etc/passwd":       "passwd",
		`C:\Users\ada\notes.txt`: "notes.txt",
		".hidden":                "hidden",
		"":                       "file",
		"résumé.pdf":             "rsum.pdf",
		"a\"b;c.txt":             "abc.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFileName(in), "input %q", in)
	}
}

func TestSanitizeFileName_TruncatesKeepingExtension(t *testing.T) {
	long := strings.Repeat("a", 500) + ".pdf"
	got := SanitizeFileName(long)
	assert.Len(t, got, maxFileNameLength)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestDocumentKey(t *testing.T) {
	pid := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	did := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	assert.Equal(t,
		"projects/11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222-brief.pdf",
		DocumentKey(pid, did, "../brief.pdf"))
}
