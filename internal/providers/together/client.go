package together

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"text2image/internal/domain"
	"text2image/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("together: api key is required")

const (
	defaultBaseURL = "https://api.together.xyz/v1"
	responseFormat = "b64_json"
)

// Options configures the Together AI images client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Together AI images API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// GenerateRequest captures a text-to-image call.
type GenerateRequest struct {
	Prompt string
	Model  string
	Width  int
	Height int
	Steps  int
	N      int
}

// EditRequest captures an image-conditioned call. ImageBase64 is the raw
// source image encoded with standard base64.
type EditRequest struct {
	ImageBase64 string
	Prompt      string
	Model       string
	Width       int
	Height      int
	Steps       int
	N           int
	Strength    float64
}

// Image is one item of the provider's data array.
type Image struct {
	Index   int
	B64JSON string
}

type generationPayload struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	Steps          int    `json:"steps,omitempty"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type editPayload struct {
	Model          string  `json:"model"`
	Image          string  `json:"image"`
	Prompt         string  `json:"prompt"`
	Width          int     `json:"width,omitempty"`
	Height         int     `json:"height,omitempty"`
	Steps          int     `json:"steps,omitempty"`
	N              int     `json:"n"`
	Strength       float64 `json:"strength"`
	ResponseFormat string  `json:"response_format"`
}

type imagesResponse struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Data  []struct {
		Index   int    `json:"index"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// GenerateImages calls /images/generations and returns the base64 payloads.
func (c *Client) GenerateImages(ctx context.Context, req GenerateRequest) ([]Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: together: prompt is required", domain.ErrInvalidInput)
	}
	payload := generationPayload{
		Model:          req.Model,
		Prompt:         req.Prompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		N:              max(req.N, 1),
		ResponseFormat: responseFormat,
	}
	return c.post(ctx, "/images/generations", payload, req.Model)
}

// EditImages calls /images/edits with a source image and a strength in (0, 1].
func (c *Client) EditImages(ctx context.Context, req EditRequest) ([]Image, error) {
	if strings.TrimSpace(req.ImageBase64) == "" {
		return nil, fmt.Errorf("%w: together: source image is required", domain.ErrInvalidInput)
	}
	payload := editPayload{
		Model:          req.Model,
		Image:          req.ImageBase64,
		Prompt:         req.Prompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		N:              max(req.N, 1),
		Strength:       req.Strength,
		ResponseFormat: responseFormat,
	}
	return c.post(ctx, "/images/edits", payload, req.Model)
}

func (c *Client) post(ctx context.Context, path string, payload any, model string) ([]Image, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: together: encode request: %w", domain.ErrProvider, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: together: build request: %w", domain.ErrProvider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: together: http request: %w", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: together: read response: %w", domain.ErrProvider, err)
	}
	if resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, raw)
	}

	var decoded imagesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: together: decode response: %w", domain.ErrProvider, err)
	}
	if len(decoded.Data) == 0 {
		return nil, fmt.Errorf("%w: together: empty data", domain.ErrProvider)
	}
	images := make([]Image, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		if strings.TrimSpace(item.B64JSON) == "" {
			return nil, fmt.Errorf("%w: together: image %d has no b64_json", domain.ErrProvider, item.Index)
		}
		images = append(images, Image{Index: item.Index, B64JSON: item.B64JSON})
	}
	c.logger.Debug().
		Str("model", model).
		Str("path", path).
		Str("request_id", decoded.ID).
		Int("images", len(images)).
		Dur("elapsed", time.Since(start)).
		Msg("together: images returned")
	return images, nil
}

func statusError(status int, raw []byte) error {
	message := firstNonEmpty(
		gjson.GetBytes(raw, "error.message").String(),
		gjson.GetBytes(raw, "message").String(),
		gjson.GetBytes(raw, "error").String(),
		strings.TrimSpace(string(raw)),
	)
	code := firstNonEmpty(
		gjson.GetBytes(raw, "error.code").String(),
		gjson.GetBytes(raw, "error.type").String(),
	)
	if code != "" {
		message = fmt.Sprintf("%s (%s)", message, code)
	}
	if isContentPolicy(message) {
		return fmt.Errorf("%w: %w: together: status %d: %s", domain.ErrProvider, domain.ErrContentPolicy, status, message)
	}
	return fmt.Errorf("%w: together: status %d: %s", domain.ErrProvider, status, message)
}

func isContentPolicy(message string) bool {
	msg := strings.ToLower(message)
	for _, marker := range []string{"nsfw", "content_filter", "content policy", "safety"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
