// Package storage keeps uploaded document content in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// ObjectStore is the blob store behind documents.
type ObjectStore interface {
	// Put stores size bytes read from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get opens the object under key. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	// Delete removes the object under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

const maxFileNameLength = 200

// DocumentKey returns the object key for a document upload:
// projects/{projectID}/{documentID}-{sanitized file name}.
func DocumentKey(projectID, documentID uuid.UUID, fileName string) string {
	return fmt.Sprintf("projects/%s/%s-%s", projectID, documentID, SanitizeFileName(fileName))
}

// SanitizeFileName strips directories and anything outside a conservative
// character set so the name is safe inside an object key and a
// Content-Disposition header.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > maxFileNameLength {
		out = out[len(out)-maxFileNameLength:]
	}
	return out
}
