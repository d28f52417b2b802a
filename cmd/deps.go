package cmd

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/filtering"
	"github.com/spigell/cv-matcher/internal/secrets"
	"github.com/spigell/cv-matcher/internal/vectorindex"
)

const (
	providerGemini = "gemini"
	providerQdrant = "qdrant"
	providerMemory = "memory"
)

// newEmbedder builds the configured embedder, wrapped with the SQLite cache
// when a cache file is set. The returned func releases the cache.
func newEmbedder(ctx context.Context, cfg *EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, func() error, error) {
	noop := func() error { return nil }

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != providerGemini {
		return nil, noop, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, noop, fmt.Errorf("%w (set embedding.api-key-file, CV_MATCHER_GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	gemini, err := embedding.NewGemini(ctx, embedding.GeminiConfig{
		APIKey:            apiKey,
		Model:             cfg.Model,
		Dimensions:        cfg.Dimensions,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerMinute: cfg.RequestsPerMinute,
		MaxLogLength:      cfg.MaxLogLength,
	}, logger)
	if err != nil {
		return nil, noop, err
	}

	if strings.TrimSpace(cfg.CacheFile) == "" {
		return gemini, noop, nil
	}

	cached, err := embedding.NewCached(cfg.CacheFile, gemini, logger)
	if err != nil {
		return nil, noop, err
	}

	return cached, cached.Close, nil
}

// newIndex connects to the configured vector index.
func newIndex(ctx context.Context, cfg *IndexConfig, dimensions int, logger *zap.Logger) (vectorindex.Index, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case providerMemory:
		return vectorindex.NewMemory(), nil
	case "", providerQdrant:
	default:
		return nil, fmt.Errorf("unsupported index provider: %s", cfg.Provider)
	}

	var apiKey string
	if cfg.APIKeyFile != "" {
		key, err := secrets.Load(secrets.Source{Name: "qdrant api key", File: cfg.APIKeyFile})
		if err != nil {
			return nil, err
		}
		apiKey = key
	}

	dims := cfg.Dimensions
	if dims == 0 && dimensions > 0 {
		dims = uint64(dimensions)
	}

	return vectorindex.NewQdrant(ctx, vectorindex.QdrantConfig{
		Address:    qdrantAddress(cfg),
		Collection: cfg.Collection,
		Dimensions: dims,
		APIKey:     apiKey,
		TLS:        cfg.TLS,
	}, logger)
}

// qdrantAddress returns host:port, or "" to use the client default.
func qdrantAddress(cfg *IndexConfig) string {
	host := strings.TrimSpace(cfg.Host)
	if host == "" && cfg.Port == 0 {
		return ""
	}
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 6334
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

// newFilters builds the post-fetch filters. Filters named in disabled stay in
// the pipeline but are skipped.
func newFilters(config *Config, disabled []string, logger *zap.Logger) (*filtering.Pipeline, error) {
	steps := []filtering.Filter{
		filtering.NewCompanies(config.excludedCompanies(), logger),
		filtering.NewExcludeFile(config.ExcludeFile, logger),
	}

	for _, name := range disabled {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !filtering.DisableByName(steps, name, "disabled by --disable-filter") {
			return nil, fmt.Errorf("unknown filter %q: expected %s or %s", name, filtering.NameCompanies, filtering.NameExcludeFile)
		}
	}

	for _, status := range filtering.Describe(steps) {
		logger.Debug("filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	return filtering.New(steps, logger), nil
}
