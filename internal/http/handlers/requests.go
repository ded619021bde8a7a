package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var maxBodyBytes int64 = 20 << 20

type imageGenerationRequest struct {
	Prompt             string `json:"prompt" validate:"required"`
	NegativePrompt     string `json:"negativePrompt"`
	StylePrompt        string `json:"stylePrompt"`
	ColorPrompt        string `json:"colorPrompt"`
	LightPrompt        string `json:"lightPrompt"`
	CompositionPrompt  string `json:"compositionPrompt"`
	Count              int    `json:"count"`
	Width              int    `json:"width" validate:"gte=0"`
	Height             int    `json:"height" validate:"gte=0"`
	Model              string `json:"model"`
	GenerateSteps      int    `json:"generateSteps" validate:"gte=0"`
	NeedOptimizePrompt *bool  `json:"needOptimizePrompt"`
}

func (r *imageGenerationRequest) normalize() {
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Model = strings.TrimSpace(r.Model)
	r.Count = max(r.Count, 1)
	if r.NeedOptimizePrompt == nil {
		r.NeedOptimizePrompt = lo.ToPtr(true)
	}
}

type imageToImageRequest struct {
	ImageURL           string  `json:"imageUrl" validate:"omitempty,url"`
	ReferenceImage     string  `json:"referenceImage"`
	Prompt             string  `json:"prompt"`
	Count              int     `json:"count"`
	Width              int     `json:"width" validate:"gte=0"`
	Height             int     `json:"height" validate:"gte=0"`
	Model              string  `json:"model"`
	GenerateSteps      int     `json:"generateSteps" validate:"gte=0"`
	Strength           float64 `json:"strength" validate:"gte=0,lte=1"`
	NeedOptimizePrompt *bool   `json:"needOptimizePrompt"`
}

func (r *imageToImageRequest) normalize() {
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	r.ReferenceImage = strings.TrimSpace(r.ReferenceImage)
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Model = strings.TrimSpace(r.Model)
	r.Count = max(r.Count, 1)
	if r.NeedOptimizePrompt == nil {
		r.NeedOptimizePrompt = lo.ToPtr(false)
	}
}

type imageItem struct {
	ID        int    `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
}

type generationResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    []imageItem `json:"data"`
}

// fieldError mirrors the shape of a schema rejection: where, what, which rule.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// decode reads the JSON body into dst. On failure it returns the status to
// answer with and the field errors to report.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) (int, []fieldError) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, []fieldError{{
				Loc:  []string{"body"},
				Msg:  fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				Type: "body_too_large",
			}}
		}
		return http.StatusBadRequest, []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "body_read"}}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return http.StatusUnprocessableEntity, []fieldError{{
				Loc:  []string{"body", typeErr.Field},
				Msg:  fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
				Type: "type_error",
			}}
		}
		return http.StatusUnprocessableEntity, []fieldError{{Loc: []string{"body"}, Msg: "invalid JSON: " + err.Error(), Type: "json_invalid"}}
	}
	return 0, nil
}

func (a *App) check(v any) []fieldError {
	err := a.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
	return lo.Map(verrs, func(fe validator.FieldError, _ int) fieldError {
		return fieldError{
			Loc:  []string{"body", fe.Field()},
			Msg:  validationMessage(fe),
			Type: fe.Tag(),
		}
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// decodeReferenceImage accepts raw base64 or a data URL.
func decodeReferenceImage(raw string) ([]byte, error) {
	if strings.HasPrefix(raw, "data:") {
		idx := strings.Index(raw, ",")
		if idx < 0 || !strings.Contains(raw[:idx], ";base64") {
			return nil, errors.New("data URL must be base64 encoded")
		}
		raw = raw[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("reference image is empty")
	}
	return data, nil
}
