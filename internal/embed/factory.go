package embed

import (
	"fmt"
	"strings"

	"github.com/ppiankov/verifact/internal/cache"
	"github.com/ppiankov/verifact/internal/model"
)

// NewProvider creates the embedding provider named in cfg, wrapped with c
// when c is non-nil.
func NewProvider(cfg model.EmbeddingConfig, c cache.Cache) (Provider, error) {
	var (
		p   Provider
		err error
	)

	switch strings.ToLower(cfg.Provider) {
	case "", "hashing":
		p = NewHashingProvider(cfg.Dimension, cfg.MaxTokens)

	case "openai":
		p, err = NewOpenAIProvider(OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})

	case "ollama":
		p, err = NewOllamaProvider(OllamaConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hashing, openai, ollama)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if c != nil {
		return NewCachedProvider(p, c), nil
	}
	return p, nil
}
