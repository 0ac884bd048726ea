package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/fetch"
)

// OllamaVerifier uses a local Ollama model
type OllamaVerifier struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaVerifier creates a new Ollama verifier
func NewOllamaVerifier(config Config) (*OllamaVerifier, error) {
	if config.defaultModel("") == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaVerifier{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{Proxy: fetch.ProxyFunc(config.HTTPProxy, config.HTTPSProxy)},
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (v *OllamaVerifier) Name() string {
	return "ollama"
}

// Verify asks the local model for a JSON assessment
func (v *OllamaVerifier) Verify(ctx context.Context, req Request) (*Assessment, error) {
	model := req.Model
	if model == "" {
		model = v.config.defaultModel("")
	}

	ctx, cancel := context.WithTimeout(ctx, v.config.timeout())
	defer cancel()

	resp, err := v.makeRequest(ctx, ollamaRequest{
		Model:  model,
		Prompt: BuildPrompt(req.Claim, req.Language),
		Stream: false,
		System: systemPrompt,
		Format: "json",
		Options: ollamaOptions{
			Temperature: v.config.Temperature,
			NumPredict:  v.config.maxTokens(),
		},
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindAIUnavailable, "ollama verify", err)
	}

	a, err := ParseAssessment(resp.Response)
	if err != nil {
		return nil, errs.Wrap(errs.KindAIUnavailable, "ollama verify", err)
	}
	a.Model = model
	return a, nil
}

func (v *OllamaVerifier) makeRequest(ctx context.Context, apiReq ollamaRequest) (*ollamaResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &APIError{Provider: "ollama", StatusCode: httpResp.StatusCode, Message: msg}
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}
