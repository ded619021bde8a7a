package main

import (
	"context"
	"fmt"
	"net/http"

	"text2image/internal/domain"
	"text2image/internal/imagegen"
	"text2image/internal/infra"
	"text2image/internal/providers/prompt"
	"text2image/internal/providers/together"
	"text2image/internal/storage"
)

type services struct {
	gateway   *storage.Gateway
	generator *imagegen.Generator
	optimizer *prompt.Optimizer
	static    http.Handler
}

func buildServices(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*services, error) {
	backend, static, err := buildStorage(cfg)
	if err != nil {
		return nil, err
	}
	gateway := storage.NewGateway(backend, logger)

	images, err := together.NewClient(together.Options{
		APIKey:         cfg.TogetherAPIKey,
		BaseURL:        cfg.TogetherBaseURL,
		Logger:         logger,
		RequestTimeout: cfg.TogetherTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	completer, err := buildCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if completer == nil {
		logger.Warn().Str("provider", cfg.PromptProvider).Msg("prompt optimization disabled: provider credentials missing")
	}
	optimizer := prompt.NewOptimizer(prompt.Options{
		Completer:  completer,
		MaxRetries: cfg.PromptMaxRetries,
		Logger:     logger,
	})

	generator, err := imagegen.NewGenerator(imagegen.Options{
		Images:        images,
		Uploader:      gateway,
		Optimizer:     optimizer,
		DefaultModel:  cfg.TogetherModel,
		MaxImageCount: cfg.MaxImageCount,
		Concurrency:   cfg.GenerationConcurrency,
		SourceLimit:   cfg.SourceImageLimit,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &services{
		gateway:   gateway,
		generator: generator,
		optimizer: optimizer,
		static:    static,
	}, nil
}

func buildStorage(cfg *infra.Config) (storage.Backend, http.Handler, error) {
	switch cfg.StorageDriver {
	case infra.StorageDriverLocal:
		store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Handler(), nil
	default:
		store, err := storage.NewS3Store(storage.S3Options{
			EndpointURL: cfg.S3EndpointURL,
			AccessKey:   cfg.S3AccessKeyID,
			SecretKey:   cfg.S3SecretKey,
			Bucket:      cfg.S3BucketName,
			Region:      cfg.S3Region,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

// buildCompleter returns nil when the selected provider has no credentials.
func buildCompleter(ctx context.Context, cfg *infra.Config) (prompt.Completer, error) {
	if !cfg.PromptOptimizationEnabled() {
		return nil, nil
	}
	switch cfg.PromptProvider {
	case infra.PromptProviderOpenAI:
		return prompt.NewOpenAICompleter(prompt.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
	case infra.PromptProviderGemini:
		return prompt.NewGeminiCompleter(ctx, prompt.GeminiOptions{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
	default:
		return prompt.NewAzureCompleter(prompt.AzureOptions{
			APIKey:     cfg.AzureOpenAIAPIKey,
			APIBase:    cfg.AzureOpenAIAPIBase,
			APIVersion: cfg.AzureOpenAIAPIVersion,
			Deployment: cfg.AzureOpenAIModel,
		})
	}
}
