package uploads

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes uploads to a public directory on disk. Files are
// staged to a temp file first and renamed into place, so a failed upload
// never leaves a partial file at a public URL.
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage ensures dir exists and returns a disk-backed storage.
// baseURL is the URL prefix the directory is served under (e.g. /uploads).
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *LocalStorage) Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	key := objectKey(filename)
	tmp, err := os.CreateTemp(l.dir, ".upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(l.dir, key)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish upload: %w", err)
	}
	return l.baseURL + "/" + key, nil
}
