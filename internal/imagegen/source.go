package imagegen

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"text2image/internal/domain"
)

func (g *Generator) fetchSource(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: imagegen: build source request: %w", domain.ErrFetch, err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: imagegen: download source: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: imagegen: download source: status %d", domain.ErrFetch, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, g.sourceLimit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: imagegen: read source: %w", domain.ErrFetch, err)
	}
	if int64(len(data)) > g.sourceLimit {
		return nil, fmt.Errorf("%w: imagegen: source image exceeds %d bytes", domain.ErrFetch, g.sourceLimit)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: imagegen: source image is empty", domain.ErrFetch)
	}
	return data, nil
}
