package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"text2image/internal/domain"
	"text2image/internal/imagegen"
	"text2image/internal/storage"
)

type stubGenerator struct {
	text    []imagegen.TextRequest
	image   []imagegen.ImageRequest
	textFn  func(req imagegen.TextRequest) ([]string, error)
	imageFn func(req imagegen.ImageRequest) ([]string, error)
}

func (s *stubGenerator) GenerateFromText(_ context.Context, req imagegen.TextRequest) ([]string, error) {
	s.text = append(s.text, req)
	if s.textFn != nil {
		return s.textFn(req)
	}
	urls := make([]string, req.Count)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://s3.example.com/bucket/output_text2image/%d.png", i+1)
	}
	return urls, nil
}

func (s *stubGenerator) GenerateFromImage(_ context.Context, req imagegen.ImageRequest) ([]string, error) {
	s.image = append(s.image, req)
	if s.imageFn != nil {
		return s.imageFn(req)
	}
	return []string{"https://s3.example.com/bucket/output_image2image/1.png"}, nil
}

type stubUploader struct {
	folder string
	data   []byte
	err    error
}

func (s *stubUploader) Upload(_ context.Context, data []byte, folder string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.folder = folder
	s.data = data
	return "https://s3.example.com/bucket/" + folder + "/ref.png", nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestApp(gen *stubGenerator, up *stubUploader) *App {
	app := NewApp(nil, nil, gen, up)
	app.now = func() time.Time { return fixedNow }
	return app
}

func doJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestImageGenerationSunset(t *testing.T) {
	gen := &stubGenerator{}
	app := newTestApp(gen, &stubUploader{})

	rec := doJSON(t, app.ImageGeneration, `{"prompt":"sunset","count":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp generationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != 200 || resp.Message != "图像生成成功" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("data len = %d, want 2", len(resp.Data))
	}
	for i, item := range resp.Data {
		if item.ID != i+1 {
			t.Fatalf("item %d id = %d", i, item.ID)
		}
		if want := fmt.Sprintf("生成图片 %d", i+1); item.Title != want {
			t.Fatalf("item %d title = %q, want %q", i, item.Title, want)
		}
		if item.CreatedAt != "2024-05-01T12:00:00Z" {
			t.Fatalf("createdAt = %q", item.CreatedAt)
		}
		if !strings.HasPrefix(item.URL, "https://s3.example.com/bucket/output_text2image/") {
			t.Fatalf("url = %q", item.URL)
		}
	}

	if len(gen.text) != 1 {
		t.Fatalf("generator calls = %d", len(gen.text))
	}
	got := gen.text[0]
	if got.Prompt != "sunset" || got.Count != 2 || !got.Optimize {
		t.Fatalf("unexpected generator request: %+v", got)
	}
}

func TestImageGenerationComposesPrompt(t *testing.T) {
	gen := &stubGenerator{}
	app := newTestApp(gen, &stubUploader{})

	body := `{"prompt":"cat","stylePrompt":"realistic","negativePrompt":"","needOptimizePrompt":false,"width":512,"height":768,"model":"m","generateSteps":8}`
	rec := doJSON(t, app.ImageGeneration, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := gen.text[0]
	if got.Prompt != "cat, 风格: realistic" {
		t.Fatalf("prompt = %q", got.Prompt)
	}
	if got.Optimize || got.Width != 512 || got.Height != 768 || got.Model != "m" || got.Steps != 8 || got.Count != 1 {
		t.Fatalf("unexpected generator request: %+v", got)
	}
}

func TestImageGenerationCountFloor(t *testing.T) {
	gen := &stubGenerator{}
	app := newTestApp(gen, &stubUploader{})

	rec := doJSON(t, app.ImageGeneration, `{"prompt":"x","count":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gen.text[0].Count != 1 {
		t.Fatalf("count = %d, want 1", gen.text[0].Count)
	}
}

func TestImageGenerationRejectsInvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		loc  string
	}{
		{name: "malformed", body: `{"prompt":`, loc: "body"},
		{name: "missing prompt", body: `{"count":1}`, loc: "prompt"},
		{name: "blank prompt", body: `{"prompt":"   "}`, loc: "prompt"},
		{name: "negative width", body: `{"prompt":"x","width":-1}`, loc: "width"},
		{name: "wrong type", body: `{"prompt":"x","count":"two"}`, loc: "count"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &stubGenerator{}
			app := newTestApp(gen, &stubUploader{})
			rec := doJSON(t, app.ImageGeneration, tc.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			var resp struct {
				Detail []fieldError `json:"detail"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(resp.Detail) == 0 {
				t.Fatalf("empty detail")
			}
			loc := resp.Detail[0].Loc
			if loc[len(loc)-1] != tc.loc {
				t.Fatalf("loc = %v, want suffix %q", loc, tc.loc)
			}
			if len(gen.text) != 0 {
				t.Fatalf("generator should not be called")
			}
		})
	}
}

func TestImageGenerationFailureDetail(t *testing.T) {
	gen := &stubGenerator{textFn: func(imagegen.TextRequest) ([]string, error) {
		return nil, fmt.Errorf("%w: together: status 401: invalid api key", domain.ErrProvider)
	}}
	app := newTestApp(gen, &stubUploader{})

	rec := doJSON(t, app.ImageGeneration, `{"prompt":"x"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := "图像生成失败: provider failure: together: status 401: invalid api key"
	if resp["detail"] != want {
		t.Fatalf("detail = %q, want %q", resp["detail"], want)
	}
}

func TestImageToImage(t *testing.T) {
	t.Run("image url", func(t *testing.T) {
		gen := &stubGenerator{}
		app := newTestApp(gen, &stubUploader{})
		rec := doJSON(t, app.ImageToImage, `{"imageUrl":"https://example.com/src.png","prompt":"watercolor","strength":0.6}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		got := gen.image[0]
		if got.ImageURL != "https://example.com/src.png" || got.Prompt != "watercolor" || got.Strength != 0.6 || got.Optimize || got.Count != 1 {
			t.Fatalf("unexpected generator request: %+v", got)
		}
	})

	t.Run("reference image data url", func(t *testing.T) {
		gen := &stubGenerator{}
		up := &stubUploader{}
		app := newTestApp(gen, up)
		payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
		rec := doJSON(t, app.ImageToImage, `{"referenceImage":"data:image/png;base64,`+payload+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if up.folder != storage.FolderReference || string(up.data) != "png-bytes" {
			t.Fatalf("unexpected upload: folder=%q data=%q", up.folder, up.data)
		}
		if gen.image[0].ImageURL != "https://s3.example.com/bucket/reference_images/ref.png" {
			t.Fatalf("source url = %q", gen.image[0].ImageURL)
		}
	})

	t.Run("requires exactly one source", func(t *testing.T) {
		for _, body := range []string{
			`{"prompt":"x"}`,
			`{"imageUrl":"https://example.com/a.png","referenceImage":"aGVsbG8="}`,
			`{"referenceImage":"%%%"}`,
			`{"imageUrl":"not a url"}`,
			`{"imageUrl":"https://example.com/a.png","strength":2}`,
		} {
			gen := &stubGenerator{}
			app := newTestApp(gen, &stubUploader{})
			rec := doJSON(t, app.ImageToImage, body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("body %s: status = %d, want 422", body, rec.Code)
			}
			if len(gen.image) != 0 {
				t.Fatalf("body %s: generator should not be called", body)
			}
		}
	})

	t.Run("upload failure", func(t *testing.T) {
		gen := &stubGenerator{}
		app := newTestApp(gen, &stubUploader{err: errors.New("storage: bucket missing")})
		rec := doJSON(t, app.ImageToImage, `{"referenceImage":"aGVsbG8="}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "图像生成失败: storage: bucket missing") {
			t.Fatalf("body = %s", rec.Body.String())
		}
	})
}

func TestDecodeReferenceImage(t *testing.T) {
	if _, err := decodeReferenceImage("data:image/png,plain"); err == nil {
		t.Fatalf("expected error for non-base64 data URL")
	}
	data, err := decodeReferenceImage("aGVsbG8=")
	if err != nil || string(data) != "hello" {
		t.Fatalf("decode = %q, %v", data, err)
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(&stubGenerator{}, &stubUploader{})
	rec := httptest.NewRecorder()
	app.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestOpenAPIDocumentIsValidJSON(t *testing.T) {
	var doc map[string]any
	if err := json.Unmarshal(openAPISpec, &doc); err != nil {
		t.Fatalf("openapi.json: %v", err)
	}
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range []string{"/image_generation", "/image_to_image", "/healthz"} {
		if _, ok := paths[p]; !ok {
			t.Fatalf("openapi.json missing path %s", p)
		}
	}
}
