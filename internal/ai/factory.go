package ai

import (
	"fmt"
	"strings"

	"github.com/ppiankov/verifact/internal/ratelimit"
)

// NewVerifier creates the configured verifier. Multiple models get a
// ModelFallback and a positive rate gets a RateLimited wrapper.
// An empty provider returns nil: AI fallback is disabled.
func NewVerifier(config Config) (Verifier, error) {
	var (
		v   Verifier
		err error
	)

	switch strings.ToLower(config.Provider) {
	case "openai":
		v, err = NewOpenAIVerifier(config)
	case "anthropic", "claude":
		v, err = NewAnthropicVerifier(config)
	case "ollama":
		v, err = NewOllamaVerifier(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
	if err != nil {
		return nil, err
	}

	if len(config.Models) > 1 {
		v = NewModelFallback(v, config.Models)
	}
	if config.RequestsPerSecond > 0 {
		v = NewRateLimited(v, ratelimit.New(config.RequestsPerSecond, config.Burst))
	}
	return v, nil
}
