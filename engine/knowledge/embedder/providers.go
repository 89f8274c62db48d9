package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/embeddings/cybertron"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/compozy/docbuddy/pkg/logger"
)

func buildProviderEmbedder(
	ctx context.Context,
	cfg *Config,
	options ...embeddings.Option,
) (embeddings.Embedder, error) {
	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.Provider {
	case ProviderLocal:
		client, err = newLocalClient(cfg)
	case ProviderOllama:
		client, err = newOllamaClient(ctx, cfg)
	case ProviderOpenAI:
		client, err = newOpenAIClient(cfg)
	case ProviderMock:
		client = newHashingClient(cfg.Dimension)
	default:
		return nil, fmt.Errorf("embedder %q: provider %q is not supported", cfg.ID, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("embedder %q: failed to initialize %s client: %w", cfg.ID, cfg.Provider, err)
	}
	embedder, err := embeddings.NewEmbedder(client, options...)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: failed to construct %s embedder: %w", cfg.ID, cfg.Provider, err)
	}
	return embedder, nil
}

// newLocalClient runs a HuggingFace model in-process. The weights are
// downloaded into ModelsDir on first use.
func newLocalClient(cfg *Config) (embeddings.EmbedderClient, error) {
	opts := []cybertron.Option{cybertron.WithModel(strings.TrimSpace(cfg.Model))}
	if dir := strings.TrimSpace(cfg.ModelsDir); dir != "" {
		opts = append(opts, cybertron.WithModelsDir(dir))
	}
	return cybertron.NewCybertron(opts...)
}

func newOllamaClient(ctx context.Context, cfg *Config) (embeddings.EmbedderClient, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	if cfg.Device != "" && !strings.EqualFold(cfg.Device, DeviceCPU) {
		logger.FromContext(ctx).Debug("Device selection is delegated to the ollama server", "device", cfg.Device)
	}
	return ollama.New(opts...)
}

func newOpenAIClient(cfg *Config) (embeddings.EmbedderClient, error) {
	opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}
