package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"text2image/internal/imagegen"
	"text2image/internal/infra"
)

// ImageGenerator runs the generation flows behind the HTTP endpoints.
type ImageGenerator interface {
	GenerateFromText(ctx context.Context, req imagegen.TextRequest) ([]string, error)
	GenerateFromImage(ctx context.Context, req imagegen.ImageRequest) ([]string, error)
}

// Uploader stores caller supplied reference images.
type Uploader interface {
	Upload(ctx context.Context, data []byte, folder string) (string, error)
}

// App holds the service handles shared by every handler.
type App struct {
	Config    *infra.Config
	Logger    *infra.Logger
	Generator ImageGenerator
	Uploader  Uploader

	validate *validator.Validate
	now      func() time.Time
}

func NewApp(cfg *infra.Config, logger *infra.Logger, generator ImageGenerator, uploader Uploader) *App {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &App{
		Config:    cfg,
		Logger:    logger,
		Generator: generator,
		Uploader:  uploader,
		validate:  v,
		now:       time.Now,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, detail any) {
	a.json(w, code, map[string]any{"detail": detail})
}
