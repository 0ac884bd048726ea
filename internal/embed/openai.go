package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/verifact/internal/errs"
)

// OpenAIProvider embeds text through the OpenAI embeddings API
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dim       int
	maxTokens int
	timeout   time.Duration
}

// OpenAIConfig configures OpenAIProvider
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	MaxTokens int
	Timeout   time.Duration
}

// NewOpenAIProvider creates a new OpenAI embedding provider
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		dim:       dim,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai:" + p.model
}

// Dimension returns D
func (p *OpenAIProvider) Dimension() int {
	return p.dim
}

// Embed requests a D-dimensional embedding for text
func (p *OpenAIProvider) Embed(ctx context.Context, text, _ string) ([]float32, error) {
	if err := checkInput(text, p.maxTokens); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dim,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbeddingFailure, "openai embed", fmt.Errorf("OpenAI API error: %w", err))
	}
	if len(resp.Data) == 0 {
		return nil, errs.New(errs.KindEmbeddingFailure, "openai embed", "no embedding in response")
	}

	vec := resp.Data[0].Embedding
	if err := checkDimension(p.Name(), vec, p.dim); err != nil {
		return nil, err
	}
	return normalizeL2(append([]float32(nil), vec...)), nil
}
