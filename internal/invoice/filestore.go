package invoice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrArtifactExists is returned when a key has already been written. Invoices are immutable.
var ErrArtifactExists = errors.New("artifact already exists")

// FileStore writes artifacts into a directory that the HTTP server exposes under URLPath.
type FileStore struct {
	dir     string
	baseURL string
}

const URLPath = "/invoices/"

func NewFileStore(dir, baseURL string) *FileStore {
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Dir is the directory to serve under URLPath.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Write(ctx context.Context, key string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" || filepath.Base(key) != key || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	path := filepath.Join(s.dir, key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%s: %w", key, ErrArtifactExists)
		}
		return "", fmt.Errorf("create artifact: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close artifact: %w", err)
	}
	return s.baseURL + URLPath + key, nil
}
