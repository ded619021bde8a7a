package prompt

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"text2image/internal/domain"
)

const openAIDefaultTimeout = 30 * time.Second

// OpenAIOptions configures a completer against the public OpenAI API or any
// compatible endpoint.
type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// AzureOptions configures a completer against an Azure OpenAI deployment.
// Requests go to {APIBase}/openai/deployments/{Deployment}/chat/completions.
type AzureOptions struct {
	APIKey     string
	APIBase    string
	APIVersion string
	Deployment string
	HTTPClient *http.Client
}

// OpenAICompleter sends chat completions through openai-go. The SDK's own
// retries are disabled; the Optimizer owns the retry budget.
type OpenAICompleter struct {
	client   openai.Client
	model    string
	provider string
}

// NewOpenAICompleter builds a completer for the OpenAI API.
func NewOpenAICompleter(opts OpenAIOptions) (*OpenAICompleter, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", domain.ErrConfiguration)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClientOrDefault(opts.HTTPClient)),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	return &OpenAICompleter{client: openai.NewClient(reqOpts...), model: model, provider: openAIProviderName}, nil
}

// NewAzureCompleter builds a completer for an Azure OpenAI deployment using
// api-key header authentication.
func NewAzureCompleter(opts AzureOptions) (*OpenAICompleter, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	base := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	deployment := strings.TrimSpace(opts.Deployment)
	if apiKey == "" || base == "" || deployment == "" {
		return nil, fmt.Errorf("%w: azure openai key, base and deployment are required", domain.ErrConfiguration)
	}
	reqOpts := []option.RequestOption{
		option.WithBaseURL(fmt.Sprintf("%s/openai/deployments/%s/", base, deployment)),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClientOrDefault(opts.HTTPClient)),
		option.WithMiddleware(func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
			req.Header.Del("Authorization")
			req.Header.Set("api-key", apiKey)
			if v := strings.TrimSpace(opts.APIVersion); v != "" {
				q := req.URL.Query()
				q.Set("api-version", v)
				req.URL.RawQuery = q.Encode()
			}
			return next(req)
		}),
	}
	return &OpenAICompleter{client: openai.NewClient(reqOpts...), model: deployment, provider: azureProviderName}, nil
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(completionTemperature),
		TopP:        openai.Float(completionTopP),
		MaxTokens:   openai.Int(completionMaxTokens),
	})
	if err != nil {
		if isContentFilterMessage(err.Error()) {
			return "", fmt.Errorf("%w: %s: %w", domain.ErrContentPolicy, c.provider, err)
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrProvider, c.provider, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: no choices", domain.ErrProvider, c.provider)
	}
	choice := completion.Choices[0]
	if isContentFilterMessage(string(choice.FinishReason)) {
		return "", fmt.Errorf("%w: %s: finish reason %s", domain.ErrContentPolicy, c.provider, choice.FinishReason)
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: %s: empty response", domain.ErrProvider, c.provider)
	}
	return text, nil
}

// Provider names the backend for logging.
func (c *OpenAICompleter) Provider() string {
	return c.provider
}

func httpClientOrDefault(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: openAIDefaultTimeout}
}

var _ Completer = (*OpenAICompleter)(nil)
