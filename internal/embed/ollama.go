package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/verifact/internal/errs"
)

// OllamaProvider embeds text with a local Ollama model
type OllamaProvider struct {
	baseURL    string
	model      string
	dim        int
	maxTokens  int
	httpClient *http.Client
}

// OllamaConfig configures OllamaProvider
type OllamaConfig struct {
	BaseURL   string
	Model     string
	Dimension int
	MaxTokens int
	Timeout   time.Duration
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a new Ollama embedding provider
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama embedding model must be specified (e.g., nomic-embed-text)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}

	return &OllamaProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      cfg.Model,
		dim:        dim,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama:" + p.model
}

// Dimension returns D
func (p *OllamaProvider) Dimension() int {
	return p.dim
}

// Embed calls /api/embeddings
func (p *OllamaProvider) Embed(ctx context.Context, text, _ string) ([]float32, error) {
	if err := checkInput(text, p.maxTokens); err != nil {
		return nil, err
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbeddingFailure, "ollama embed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbeddingFailure, "ollama embed", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, errs.New(errs.KindEmbeddingFailure, "ollama embed", "API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, errs.New(errs.KindEmbeddingFailure, "ollama embed", "API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var out ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, errs.Wrap(errs.KindEmbeddingFailure, "ollama embed", fmt.Errorf("unmarshal response: %w", err))
	}

	vec := make([]float32, len(out.Embedding))
	for i, x := range out.Embedding {
		vec[i] = float32(x)
	}
	if err := checkDimension(p.Name(), vec, p.dim); err != nil {
		return nil, err
	}
	return normalizeL2(vec), nil
}
