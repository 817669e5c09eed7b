package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/finsight-ai/finsight/internal/config"
	"github.com/finsight-ai/finsight/internal/db"
	"github.com/finsight-ai/finsight/internal/embeddings"
	"github.com/finsight-ai/finsight/internal/extraction"
	"github.com/finsight-ai/finsight/internal/llm"
	"github.com/finsight-ai/finsight/internal/logging"
	"github.com/finsight-ai/finsight/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `finsight init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	return logging.New(verbose)
}

// openDatabase opens the SQLite database under the configured data dir.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	return db.Open(filepath.Join(cfg.DataDir, "finsight.db"))
}

func indexDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "index")
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel)), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, 768, ""), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

// createLLMProviderFromConfig creates a rate-limited LLM provider.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(provider, cfg.RequestsPerMin), nil
}

// openIndex creates the vector index and loads its persisted snapshot. A
// missing snapshot is fine (fresh workspace); a model mismatch is returned
// so callers can direct the user to rebuild.
func openIndex(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (*vectordb.ChromemIndex, error) {
	index, err := vectordb.NewChromemIndex(embedder)
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}

	err = index.Load(ctx, indexDir(cfg))
	switch {
	case err == nil:
		return index, nil
	case errors.Is(err, fs.ErrNotExist):
		return index, nil
	case errors.Is(err, vectordb.ErrModelMismatch):
		return nil, fmt.Errorf("%w\nRun `finsight ingest --reindex` to rebuild the index with %s",
			err, embedder.Name())
	default:
		return nil, fmt.Errorf("loading vector index: %w", err)
	}
}

func extractionConfig(cfg *config.Config, logger *zap.Logger) extraction.Config {
	return extraction.Config{
		Model:           cfg.Model,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		TopK:            cfg.TopK,
		MaxAttempts:     cfg.MaxAttempts,
		Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:          logger,
	}
}
