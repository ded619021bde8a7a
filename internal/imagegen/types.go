package imagegen

import (
	"context"

	"text2image/internal/providers/together"
)

// Defaults applied when a request leaves a field unset.
const (
	DefaultWidth         = 1024
	DefaultHeight        = 1024
	DefaultMaxImageCount = 6
	DefaultStrength      = 0.8
	DefaultEditModel     = "black-forest-labs/FLUX.1-schnell-Free"

	schnellMarker = "FLUX.1-schnell"
	schnellSteps  = 4
	defaultSteps  = 12
)

// Parameters is the fully resolved set of values sent to the image provider.
type Parameters struct {
	Model  string
	Steps  int
	Width  int
	Height int
	Count  int
}

// TextRequest describes a text-to-image call. Zero values mean "use the default".
type TextRequest struct {
	Prompt   string
	Steps    int
	Model    string
	Width    int
	Height   int
	Count    int
	Optimize bool
}

// ImageRequest describes an image-conditioned call. Prompt may be empty.
type ImageRequest struct {
	ImageURL string
	Prompt   string
	Steps    int
	Model    string
	Width    int
	Height   int
	Count    int
	Strength float64
	Optimize bool
}

// ImageClient is the subset of the provider client used by the generator.
type ImageClient interface {
	GenerateImages(ctx context.Context, req together.GenerateRequest) ([]together.Image, error)
	EditImages(ctx context.Context, req together.EditRequest) ([]together.Image, error)
}

// Uploader stores one image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, folder string) (string, error)
}

// PromptOptimizer rewrites a prompt. It never fails.
type PromptOptimizer interface {
	Optimize(ctx context.Context, prompt string) string
}
