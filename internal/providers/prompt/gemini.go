package prompt

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"text2image/internal/domain"
)

// GeminiOptions configures a completer backed by the Gemini API.
type GeminiOptions struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// GeminiCompleter sends the system instruction and user message through genai.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter builds a completer for the Gemini developer API.
func NewGeminiCompleter(ctx context.Context, opts GeminiOptions) (*GeminiCompleter, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", domain.ErrConfiguration)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClientOrDefault(opts.HTTPClient),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %w", domain.ErrConfiguration, err)
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

// Complete implements Completer.
func (g *GeminiCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), geminiConfig(system))
	if err != nil {
		if isContentFilterMessage(err.Error()) {
			return "", fmt.Errorf("%w: %s: %w", domain.ErrContentPolicy, geminiProviderName, err)
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrProvider, geminiProviderName, err)
	}
	return geminiText(resp)
}

// Provider names the backend for logging.
func (g *GeminiCompleter) Provider() string {
	return geminiProviderName
}

func geminiConfig(system string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       genai.Ptr[float32](completionTemperature),
		TopP:              genai.Ptr[float32](completionTopP),
		MaxOutputTokens:   completionMaxTokens,
	}
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: %s: nil response", domain.ErrProvider, geminiProviderName)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", fmt.Errorf("%w: %s: prompt blocked (%s)", domain.ErrContentPolicy, geminiProviderName, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: %s: no candidates", domain.ErrProvider, geminiProviderName)
	}
	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return "", fmt.Errorf("%w: %s: finish reason %s", domain.ErrContentPolicy, geminiProviderName, candidate.FinishReason)
	}
	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: %s: empty response", domain.ErrProvider, geminiProviderName)
	}
	return text, nil
}

var _ Completer = (*GeminiCompleter)(nil)
