package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"

	"text2image/internal/imagegen"
	"text2image/internal/middleware"
	"text2image/internal/storage"
)

const (
	successMessage = "图像生成成功"
	failurePrefix  = "图像生成失败: "
)

// ImageGeneration composes the prompt from its fragments and returns one URL
// per generated image.
func (a *App) ImageGeneration(w http.ResponseWriter, r *http.Request) {
	var req imageGenerationRequest
	if status, errs := a.decode(w, r, &req); errs != nil {
		a.error(w, status, errs)
		return
	}
	req.normalize()
	if errs := a.check(&req); errs != nil {
		a.error(w, http.StatusUnprocessableEntity, errs)
		return
	}

	prompt := imagegen.ComposePrompt(imagegen.PromptFields{
		Prompt:      req.Prompt,
		Negative:    req.NegativePrompt,
		Style:       req.StylePrompt,
		Color:       req.ColorPrompt,
		Light:       req.LightPrompt,
		Composition: req.CompositionPrompt,
	})
	a.Logger.Info().
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("prompt", prompt).
		Int("count", req.Count).
		Bool("optimize", *req.NeedOptimizePrompt).
		Msg("image generation requested")

	urls, err := a.Generator.GenerateFromText(r.Context(), imagegen.TextRequest{
		Prompt:   prompt,
		Steps:    req.GenerateSteps,
		Model:    req.Model,
		Width:    req.Width,
		Height:   req.Height,
		Count:    req.Count,
		Optimize: *req.NeedOptimizePrompt,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.envelope(urls))
}

// ImageToImage conditions generation on a source image given either by URL or
// inline as base64, in which case it is stored first.
func (a *App) ImageToImage(w http.ResponseWriter, r *http.Request) {
	var req imageToImageRequest
	if status, errs := a.decode(w, r, &req); errs != nil {
		a.error(w, status, errs)
		return
	}
	req.normalize()
	if errs := a.check(&req); errs != nil {
		a.error(w, http.StatusUnprocessableEntity, errs)
		return
	}
	switch {
	case req.ImageURL == "" && req.ReferenceImage == "":
		a.error(w, http.StatusUnprocessableEntity, []fieldError{{
			Loc: []string{"body", "imageUrl"}, Msg: "imageUrl or referenceImage is required", Type: "required_without",
		}})
		return
	case req.ImageURL != "" && req.ReferenceImage != "":
		a.error(w, http.StatusUnprocessableEntity, []fieldError{{
			Loc: []string{"body", "referenceImage"}, Msg: "only one of imageUrl and referenceImage may be set", Type: "excluded_with",
		}})
		return
	}

	sourceURL := req.ImageURL
	if req.ReferenceImage != "" {
		data, err := decodeReferenceImage(req.ReferenceImage)
		if err != nil {
			a.error(w, http.StatusUnprocessableEntity, []fieldError{{
				Loc: []string{"body", "referenceImage"}, Msg: err.Error(), Type: "value_error",
			}})
			return
		}
		sourceURL, err = a.Uploader.Upload(r.Context(), data, storage.FolderReference)
		if err != nil {
			a.fail(w, r, err)
			return
		}
	}

	urls, err := a.Generator.GenerateFromImage(r.Context(), imagegen.ImageRequest{
		ImageURL: sourceURL,
		Prompt:   req.Prompt,
		Steps:    req.GenerateSteps,
		Model:    req.Model,
		Width:    req.Width,
		Height:   req.Height,
		Count:    req.Count,
		Strength: req.Strength,
		Optimize: *req.NeedOptimizePrompt,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.envelope(urls))
}

func (a *App) envelope(urls []string) generationResponse {
	createdAt := a.now().Format(time.RFC3339)
	return generationResponse{
		Code:    http.StatusOK,
		Message: successMessage,
		Data: lo.Map(urls, func(url string, i int) imageItem {
			return imageItem{
				ID:        i + 1,
				URL:       url,
				Title:     fmt.Sprintf("生成图片 %d", i+1),
				CreatedAt: createdAt,
			}
		}),
	}
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	a.Logger.Error().
		Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Msg("image generation failed")
	a.error(w, http.StatusInternalServerError, failurePrefix+err.Error())
}
