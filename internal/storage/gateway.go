package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"text2image/internal/domain"
	"text2image/internal/infra"
)

// Folders used inside the bucket.
const (
	FolderTextToImage  = "output_text2image"
	FolderImageToImage = "output_image2image"
	FolderReference    = "reference_images"
)

const pngContentType = "image/png"

// Backend persists a blob under a key and knows how that key is reached publicly.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// Gateway uploads generated images under freshly generated keys.
type Gateway struct {
	backend Backend
	logger  *infra.Logger
	newID   func() string
}

// NewGateway wires a backend with an optional logger.
func NewGateway(backend Backend, logger *infra.Logger) *Gateway {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Gateway{backend: backend, logger: logger, newID: uuid.NewString}
}

// Upload stores data as a PNG under folder/<uuid>.png and returns its public URL.
// Failures are not retried.
func (g *Gateway) Upload(ctx context.Context, data []byte, folder string) (string, error) {
	if g == nil || g.backend == nil {
		return "", fmt.Errorf("%w: storage: no backend configured", domain.ErrStorage)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: storage: empty payload", domain.ErrStorage)
	}
	key := ObjectKey(folder, g.newID())
	if err := g.backend.Put(ctx, key, data, pngContentType); err != nil {
		if errors.Is(err, domain.ErrStorage) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	url := g.backend.PublicURL(key)
	g.logger.Debug().Str("key", key).Int("bytes", len(data)).Str("url", url).Msg("storage: object uploaded")
	return url, nil
}

// ObjectKey builds the storage key for a PNG object inside folder.
func ObjectKey(folder, id string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return id + ".png"
	}
	return folder + "/" + id + ".png"
}
