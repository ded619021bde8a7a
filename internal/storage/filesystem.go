package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/spf13/afero"

	"text2image/internal/domain"
)

// FileStore persists objects onto a filesystem. It is intended for
// development and test environments where an object storage service is not
// available.
type FileStore struct {
	fs      afero.Fs
	baseURL string
}

// NewFileStore initializes a FileStore rooted at basePath on the OS filesystem.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return NewFileStoreFromFs(afero.NewBasePathFs(osFs, basePath), baseURL), nil
}

// NewFileStoreFromFs wraps an existing afero filesystem.
func NewFileStoreFromFs(fs afero.Fs, baseURL string) *FileStore {
	return &FileStore{fs: fs, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

// Put writes data at key. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	if s == nil || s.fs == nil {
		return fmt.Errorf("%w: storage: no store configured", domain.ErrStorage)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	fullPath := "/" + cleanKey
	if err := s.fs.MkdirAll(path.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("%w: storage: ensure directory: %w", domain.ErrStorage, err)
	}
	if err := afero.WriteFile(s.fs, fullPath, data, 0o644); err != nil {
		return fmt.Errorf("%w: storage: write file: %w", domain.ErrStorage, err)
	}
	return nil
}

// PublicURL joins the configured base URL and key.
func (s *FileStore) PublicURL(key string) string {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		cleanKey = key
	}
	return s.baseURL + "/" + cleanKey
}

// Handler serves stored objects read-only, for mounting under the base URL path.
func (s *FileStore) Handler() http.Handler {
	return http.FileServer(afero.NewHttpFs(afero.NewReadOnlyFs(s.fs)).Dir("/"))
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ Backend = (*FileStore)(nil)
