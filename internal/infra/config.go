package infra

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"text2image/internal/domain"
)

const (
	StorageDriverS3    = "s3"
	StorageDriverLocal = "local"

	PromptProviderAzure  = "azure"
	PromptProviderOpenAI = "openai"
	PromptProviderGemini = "gemini"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Host   string
	Port   string

	TogetherAPIKey  string
	TogetherModel   string
	TogetherBaseURL string
	TogetherTimeout time.Duration

	StorageDriver    string
	S3EndpointURL    string
	S3AccessKeyID    string
	S3SecretKey      string
	S3BucketName     string
	S3Region         string
	StoragePath      string
	StorageBaseURL   string
	SourceImageLimit int64

	PromptProvider        string
	PromptMaxRetries      int
	AzureOpenAIAPIKey     string
	AzureOpenAIAPIBase    string
	AzureOpenAIAPIVersion string
	AzureOpenAIModel      string
	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIBaseURL         string
	GeminiAPIKey          string
	GeminiModel           string

	MaxImageCount         int
	GenerationConcurrency int

	CORSAllowedOrigins []string
	RateLimitPerMin    int
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Every missing required variable is reported in the returned error.
func LoadConfig() (*Config, error) {
	host, port := parseServerURL(getEnv("LOCAL_SERVER_URL", "http://127.0.0.1:11002"))
	port = getEnv("PORT", port)

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Host:   host,
		Port:   port,

		TogetherAPIKey:  strings.TrimSpace(os.Getenv("TOGETHER_API_KEY")),
		TogetherModel:   strings.TrimSpace(os.Getenv("TOGETHER_MODEL")),
		TogetherBaseURL: getEnv("TOGETHER_BASE_URL", "https://api.together.xyz/v1"),
		TogetherTimeout: time.Second * time.Duration(getEnvInt("TOGETHER_TIMEOUT_SECONDS", 120)),

		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverS3)),
		S3EndpointURL:    strings.TrimRight(os.Getenv("S3_ENDPOINT_URL"), "/"),
		S3AccessKeyID:    os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:      os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3BucketName:     os.Getenv("S3_BUCKET_NAME"),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		SourceImageLimit: int64(getEnvInt("SOURCE_IMAGE_MAX_BYTES", 10*1024*1024)),

		PromptProvider:        strings.ToLower(getEnv("PROMPT_PROVIDER", PromptProviderAzure)),
		PromptMaxRetries:      getEnvInt("PROMPT_MAX_RETRIES", 5),
		AzureOpenAIAPIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		AzureOpenAIAPIBase:    strings.TrimRight(os.Getenv("AZURE_OPENAI_API_BASE"), "/"),
		AzureOpenAIAPIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
		AzureOpenAIModel:      os.Getenv("AZURE_OPENAI_MODEL"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		MaxImageCount:         getEnvInt("MAX_IMAGE_COUNT", 6),
		GenerationConcurrency: getEnvInt("GENERATION_CONCURRENCY", 1),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// PromptOptimizationEnabled reports whether credentials exist for the selected chat provider.
func (c *Config) PromptOptimizationEnabled() bool {
	switch c.PromptProvider {
	case PromptProviderAzure:
		return c.AzureOpenAIAPIKey != "" && c.AzureOpenAIAPIBase != "" && c.AzureOpenAIModel != ""
	case PromptProviderOpenAI:
		return c.OpenAIAPIKey != ""
	case PromptProviderGemini:
		return c.GeminiAPIKey != ""
	default:
		return false
	}
}

func (c *Config) validate() error {
	var result *multierror.Error
	required := map[string]string{
		"TOGETHER_API_KEY": c.TogetherAPIKey,
		"TOGETHER_MODEL":   c.TogetherModel,
	}
	order := []string{"TOGETHER_API_KEY", "TOGETHER_MODEL"}

	switch c.StorageDriver {
	case StorageDriverS3:
		s3Vars := []string{"S3_ENDPOINT_URL", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_BUCKET_NAME"}
		required["S3_ENDPOINT_URL"] = c.S3EndpointURL
		required["S3_ACCESS_KEY_ID"] = c.S3AccessKeyID
		required["S3_SECRET_ACCESS_KEY"] = c.S3SecretKey
		required["S3_BUCKET_NAME"] = c.S3BucketName
		order = append(s3Vars, order...)
	case StorageDriverLocal:
		if strings.TrimSpace(c.StoragePath) == "" {
			result = multierror.Append(result, fmt.Errorf("%w: STORAGE_PATH is required", domain.ErrConfiguration))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("%w: unsupported STORAGE_DRIVER %q", domain.ErrConfiguration, c.StorageDriver))
	}

	for _, key := range order {
		if strings.TrimSpace(required[key]) == "" {
			result = multierror.Append(result, fmt.Errorf("%w: %s is required", domain.ErrConfiguration, key))
		}
	}

	switch c.PromptProvider {
	case PromptProviderAzure, PromptProviderOpenAI, PromptProviderGemini:
	default:
		result = multierror.Append(result, fmt.Errorf("%w: unsupported PROMPT_PROVIDER %q", domain.ErrConfiguration, c.PromptProvider))
	}
	if c.MaxImageCount < 1 {
		result = multierror.Append(result, fmt.Errorf("%w: MAX_IMAGE_COUNT must be positive", domain.ErrConfiguration))
	}
	if c.GenerationConcurrency < 1 {
		c.GenerationConcurrency = 1
	}
	if c.PromptMaxRetries < 1 {
		c.PromptMaxRetries = 1
	}
	return result.ErrorOrNil()
}

func parseServerURL(raw string) (string, string) {
	host, port := "127.0.0.1", "11002"
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return host, port
	}
	if h := u.Hostname(); h != "" {
		host = h
	}
	if p := u.Port(); p != "" {
		port = p
	}
	return host, port
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
