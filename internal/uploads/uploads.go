// Package uploads stores uploaded image files and hands back their public
// URL. Two implementations: local disk (default) and MinIO object storage,
// selected once at startup like the document store backends.
package uploads

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Storage persists one uploaded file and returns its public URL.
type Storage interface {
	Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
}

// objectKey derives a collision-free storage name from the original
// filename: timestamp prefix plus a sanitized base name.
func objectKey(filename string) string {
	base := filepath.Base(filename)
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		base = "upload"
	}
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), base)
}
