package together

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"text2image/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1/", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return client
}

func TestGenerateImagesPayload(t *testing.T) {
	var captured map[string]any
	var auth, path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":   "gen-1",
			"data": []any{map[string]any{"index": 0, "b64_json": "aGVsbG8="}},
		})
	})

	images, err := client.GenerateImages(context.Background(), GenerateRequest{
		Prompt: "[a cat]",
		Model:  "black-forest-labs/FLUX.1-schnell-Free",
		Width:  1024,
		Height: 768,
		Steps:  4,
		N:      1,
	})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "aGVsbG8=", images[0].B64JSON)

	assert.Equal(t, "/v1/images/generations", path)
	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "[a cat]", captured["prompt"])
	assert.Equal(t, "b64_json", captured["response_format"])
	assert.EqualValues(t, 1, captured["n"])
	assert.EqualValues(t, 4, captured["steps"])
	assert.EqualValues(t, 1024, captured["width"])
	assert.EqualValues(t, 768, captured["height"])
}

func TestEditImagesPayload(t *testing.T) {
	var captured map[string]any
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []any{
				map[string]any{"index": 0, "b64_json": "YQ=="},
				map[string]any{"index": 1, "b64_json": "Yg=="},
			},
		})
	})

	images, err := client.EditImages(context.Background(), EditRequest{
		ImageBase64: "c291cmNl",
		Prompt:      "[watercolor]",
		Model:       "m",
		N:           2,
		Strength:    0.8,
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "/v1/images/edits", path)
	assert.Equal(t, "c291cmNl", captured["image"])
	assert.EqualValues(t, 2, captured["n"])
	assert.InDelta(t, 0.8, captured["strength"], 1e-9)
}

func TestGenerateImagesErrors(t *testing.T) {
	cases := []struct {
		name          string
		status        int
		body          string
		wantPolicy    bool
		wantSubstring string
	}{
		{name: "auth", status: http.StatusUnauthorized, body: `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`, wantSubstring: "invalid api key (invalid_request_error)"},
		{name: "nsfw", status: http.StatusUnprocessableEntity, body: `{"error":{"message":"NSFW content detected"}}`, wantPolicy: true, wantSubstring: "NSFW"},
		{name: "plain", status: http.StatusBadGateway, body: `upstream down`, wantSubstring: "upstream down"},
		{name: "empty data", status: http.StatusOK, body: `{"data":[]}`, wantSubstring: "empty data"},
		{name: "malformed", status: http.StatusOK, body: `not json`, wantSubstring: "decode response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.GenerateImages(context.Background(), GenerateRequest{Prompt: "x", Model: "m"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrProvider)
			assert.Equal(t, tc.wantPolicy, errors.Is(err, domain.ErrContentPolicy))
			assert.Contains(t, err.Error(), tc.wantSubstring)
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Options{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
