package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"text2image/internal/domain"
	"text2image/internal/infra"
	"text2image/internal/providers/together"
	"text2image/internal/storage"
)

// Options configures a Generator.
type Options struct {
	Images        ImageClient
	Uploader      Uploader
	Optimizer     PromptOptimizer
	DefaultModel  string
	MaxImageCount int
	Concurrency   int
	HTTPClient    *http.Client
	SourceLimit   int64
	Logger        *infra.Logger
}

// Generator runs the text-to-image and image-to-image flows: resolve
// parameters, optionally optimize the prompt, call the provider, upload.
type Generator struct {
	images        ImageClient
	uploader      Uploader
	optimizer     PromptOptimizer
	defaultModel  string
	maxImageCount int
	concurrency   int
	httpClient    *http.Client
	sourceLimit   int64
	logger        *infra.Logger
}

// NewGenerator validates collaborators and applies defaults.
func NewGenerator(opts Options) (*Generator, error) {
	if opts.Images == nil {
		return nil, errors.New("imagegen: image client is required")
	}
	if opts.Uploader == nil {
		return nil, errors.New("imagegen: uploader is required")
	}
	maxCount := opts.MaxImageCount
	if maxCount <= 0 {
		maxCount = DefaultMaxImageCount
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	sourceLimit := opts.SourceLimit
	if sourceLimit <= 0 {
		sourceLimit = 10 << 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Generator{
		images:        opts.Images,
		uploader:      opts.Uploader,
		optimizer:     opts.Optimizer,
		defaultModel:  strings.TrimSpace(opts.DefaultModel),
		maxImageCount: maxCount,
		concurrency:   max(opts.Concurrency, 1),
		httpClient:    httpClient,
		sourceLimit:   sourceLimit,
		logger:        logger,
	}, nil
}

// MaxImageCount reports the clamp applied to requested counts.
func (g *Generator) MaxImageCount() int {
	return g.maxImageCount
}

// Resolve fills in model, steps, size and count for a request.
func (g *Generator) Resolve(model string, steps, width, height, count int) Parameters {
	model = strings.TrimSpace(model)
	if model == "" {
		model = g.defaultModel
	}
	return Parameters{
		Model:  model,
		Steps:  ResolveSteps(model, steps),
		Width:  lo.Ternary(width > 0, width, DefaultWidth),
		Height: lo.Ternary(height > 0, height, DefaultHeight),
		Count:  g.clampCount(count),
	}
}

func (g *Generator) clampCount(count int) int {
	clamped := lo.Clamp(count, 1, g.maxImageCount)
	if count > g.maxImageCount {
		g.logger.Warn().
			Int("requested", count).
			Int("max", g.maxImageCount).
			Msg("imagegen: image count clamped")
	}
	return clamped
}

func (g *Generator) optimize(ctx context.Context, prompt string, enabled bool) string {
	if !enabled || g.optimizer == nil || strings.TrimSpace(prompt) == "" {
		return prompt
	}
	return g.optimizer.Optimize(ctx, prompt)
}

// GenerateFromText produces Count images for the prompt and returns their
// URLs in generation order. Any provider, decode or storage failure aborts
// the whole request.
func (g *Generator) GenerateFromText(ctx context.Context, req TextRequest) ([]string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: imagegen: prompt is required", domain.ErrInvalidInput)
	}
	params := g.Resolve(req.Model, req.Steps, req.Width, req.Height, req.Count)
	if params.Model == "" {
		return nil, fmt.Errorf("%w: imagegen: no model configured", domain.ErrConfiguration)
	}
	prompt := g.optimize(ctx, req.Prompt, req.Optimize)

	g.logger.Info().
		Str("model", params.Model).
		Int("steps", params.Steps).
		Int("width", params.Width).
		Int("height", params.Height).
		Int("count", params.Count).
		Str("prompt", prompt).
		Msg("imagegen: text generation started")

	urls := make([]string, params.Count)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.concurrency)
	for i := range params.Count {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			url, err := g.generateOne(gctx, prompt, params, i)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (g *Generator) generateOne(ctx context.Context, prompt string, params Parameters, index int) (string, error) {
	images, err := g.images.GenerateImages(ctx, together.GenerateRequest{
		Prompt: wrapPrompt(prompt),
		Model:  params.Model,
		Width:  params.Width,
		Height: params.Height,
		Steps:  params.Steps,
		N:      1,
	})
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("%w: imagegen: image %d: provider returned no data", domain.ErrProvider, index+1)
	}
	return g.store(ctx, images[0], storage.FolderTextToImage)
}

// GenerateFromImage downloads the source image, conditions one provider call
// on it and uploads every returned image.
func (g *Generator) GenerateFromImage(ctx context.Context, req ImageRequest) ([]string, error) {
	sourceURL := strings.TrimSpace(req.ImageURL)
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: imagegen: source image url is required", domain.ErrInvalidInput)
	}
	strength := req.Strength
	if strength == 0 {
		strength = DefaultStrength
	}
	if strength < 0 || strength > 1 {
		return nil, fmt.Errorf("%w: imagegen: strength must be in (0, 1], got %v", domain.ErrInvalidInput, strength)
	}
	model := lo.Ternary(strings.TrimSpace(req.Model) != "", req.Model, DefaultEditModel)
	params := g.Resolve(model, req.Steps, req.Width, req.Height, req.Count)

	source, err := g.fetchSource(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	prompt := strings.TrimSpace(g.optimize(ctx, req.Prompt, req.Optimize))
	if prompt != "" {
		prompt = wrapPrompt(prompt)
	}

	g.logger.Info().
		Str("model", params.Model).
		Int("steps", params.Steps).
		Int("count", params.Count).
		Float64("strength", strength).
		Str("source", sourceURL).
		Msg("imagegen: image generation started")

	images, err := g.images.EditImages(ctx, together.EditRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(source),
		Prompt:      prompt,
		Model:       params.Model,
		Width:       params.Width,
		Height:      params.Height,
		Steps:       params.Steps,
		N:           params.Count,
		Strength:    strength,
	})
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(images))
	for _, img := range images {
		url, err := g.store(ctx, img, storage.FolderImageToImage)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (g *Generator) store(ctx context.Context, img together.Image, folder string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(img.B64JSON)
	if err != nil {
		return "", fmt.Errorf("%w: imagegen: decode image %d: %w", domain.ErrProvider, img.Index, err)
	}
	return g.uploader.Upload(ctx, data, folder)
}
