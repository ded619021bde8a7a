package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"text2image/internal/infra"
)

func baseConfig(t *testing.T) *infra.Config {
	t.Helper()
	return &infra.Config{
		TogetherAPIKey:        "together-key",
		TogetherModel:         "black-forest-labs/FLUX.1-schnell-Free",
		TogetherBaseURL:       "https://api.together.xyz/v1",
		StorageDriver:         infra.StorageDriverLocal,
		StoragePath:           t.TempDir(),
		StorageBaseURL:        "http://localhost:11002/static",
		PromptProvider:        infra.PromptProviderAzure,
		PromptMaxRetries:      5,
		MaxImageCount:         6,
		GenerationConcurrency: 1,
	}
}

func TestBuildServicesLocalStorage(t *testing.T) {
	cfg := baseConfig(t)
	svc, err := buildServices(context.Background(), cfg, infra.DiscardLogger())
	require.NoError(t, err)
	assert.NotNil(t, svc.static)
	assert.NotNil(t, svc.generator)
	assert.False(t, svc.optimizer.Enabled())
	assert.Equal(t, "none", svc.optimizer.Provider())
	assert.Equal(t, 6, svc.generator.MaxImageCount())
}

func TestBuildServicesS3Storage(t *testing.T) {
	cfg := baseConfig(t)
	cfg.StorageDriver = infra.StorageDriverS3
	cfg.S3EndpointURL = "https://s3.example.com"
	cfg.S3AccessKeyID = "ak"
	cfg.S3SecretKey = "sk"
	cfg.S3BucketName = "images"
	cfg.S3Region = "us-east-1"

	svc, err := buildServices(context.Background(), cfg, infra.DiscardLogger())
	require.NoError(t, err)
	assert.Nil(t, svc.static)
}

func TestBuildCompleterSelectsProvider(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *infra.Config)
		enabled bool
	}{
		{name: "azure without credentials", mutate: func(cfg *infra.Config) {}, enabled: false},
		{name: "azure", mutate: func(cfg *infra.Config) {
			cfg.AzureOpenAIAPIKey = "k"
			cfg.AzureOpenAIAPIBase = "https://example.openai.azure.com"
			cfg.AzureOpenAIAPIVersion = "2024-02-01"
			cfg.AzureOpenAIModel = "gpt4o"
		}, enabled: true},
		{name: "openai", mutate: func(cfg *infra.Config) {
			cfg.PromptProvider = infra.PromptProviderOpenAI
			cfg.OpenAIAPIKey = "sk"
			cfg.OpenAIModel = "gpt-4o-mini"
		}, enabled: true},
		{name: "gemini", mutate: func(cfg *infra.Config) {
			cfg.PromptProvider = infra.PromptProviderGemini
			cfg.GeminiAPIKey = "g"
			cfg.GeminiModel = "gemini-2.0-flash"
		}, enabled: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig(t)
			tc.mutate(cfg)
			completer, err := buildCompleter(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, tc.enabled, completer != nil)
		})
	}
}

func TestBuildServicesNamesPromptProvider(t *testing.T) {
	cfg := baseConfig(t)
	cfg.PromptProvider = infra.PromptProviderOpenAI
	cfg.OpenAIAPIKey = "sk"
	cfg.OpenAIModel = "gpt-4o-mini"

	svc, err := buildServices(context.Background(), cfg, infra.DiscardLogger())
	require.NoError(t, err)
	assert.True(t, svc.optimizer.Enabled())
	assert.Equal(t, infra.PromptProviderOpenAI, svc.optimizer.Provider())
}
