// Package ai asks an external language model to adjudicate a claim.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/verifact/internal/model"
)

// Verifier adjudicates a single claim
type Verifier interface {
	// Name returns the provider name
	Name() string

	// Verify returns the model's verdict and confidence. Any error means
	// the caller must treat the claim as unverified with confidence 0.
	Verify(ctx context.Context, req Request) (*Assessment, error)
}

// Request is one verification call
type Request struct {
	Claim    string
	Language string

	// Model overrides the provider's configured model
	Model string
}

// Assessment is the parsed model answer
type Assessment struct {
	Verdict     model.Verdict `json:"verdict"`
	Confidence  float64       `json:"confidence"`
	Explanation string        `json:"explanation,omitempty"`
	Reasoning   string        `json:"reasoning,omitempty"`
	RedFlags    []string      `json:"red_flags,omitempty"`
	Model       string        `json:"model,omitempty"`
}

// Config holds provider settings
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Models are tried in order when a model is rate limited. The first is the default.
	Models []string

	APIKey  string
	BaseURL string

	Timeout     time.Duration
	MaxTokens   int
	Temperature float32

	RequestsPerSecond float64
	Burst             int

	HTTPProxy  string
	HTTPSProxy string
}

// ConfigFromModel converts the application config
func ConfigFromModel(ai model.AIConfig, http model.HTTPConfig) Config {
	return Config{
		Provider:          ai.Provider,
		Models:            ai.Models,
		APIKey:            ai.APIKey,
		BaseURL:           ai.BaseURL,
		Timeout:           ai.Timeout,
		MaxTokens:         ai.MaxTokens,
		Temperature:       ai.Temperature,
		RequestsPerSecond: ai.RequestsPerSecond,
		Burst:             ai.Burst,
		HTTPProxy:         http.HTTPProxy,
		HTTPSProxy:        http.HTTPSProxy,
	}
}

func (c Config) defaultModel(fallback string) string {
	if len(c.Models) > 0 && c.Models[0] != "" {
		return c.Models[0]
	}
	return fallback
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 8 * time.Second
}

func (c Config) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1024
}

// APIError is a non-2xx answer from a provider
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports whether err means the model is out of quota or
// throttled, so the next model should be tried.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return true
	}
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) && oaErr.HTTPStatusCode == 429 {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit")
}
