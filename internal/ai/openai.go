package ai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/verifact/internal/errs"
)

// OpenAIVerifier uses the OpenAI chat completions API
type OpenAIVerifier struct {
	client *openai.Client
	config Config
}

// NewOpenAIVerifier creates a new OpenAI verifier
func NewOpenAIVerifier(config Config) (*OpenAIVerifier, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIVerifier{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (v *OpenAIVerifier) Name() string {
	return "openai"
}

// Verify asks the chat model for a JSON assessment
func (v *OpenAIVerifier) Verify(ctx context.Context, req Request) (*Assessment, error) {
	model := req.Model
	if model == "" {
		model = v.config.defaultModel(openai.GPT4oMini)
	}

	ctx, cancel := context.WithTimeout(ctx, v.config.timeout())
	defer cancel()

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req.Claim, req.Language)},
		},
		MaxTokens:   v.config.maxTokens(),
		Temperature: v.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindAIUnavailable, "openai verify", fmt.Errorf("OpenAI API error: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, errs.New(errs.KindAIUnavailable, "openai verify", "no response from OpenAI")
	}

	a, err := ParseAssessment(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, errs.Wrap(errs.KindAIUnavailable, "openai verify", err)
	}
	a.Model = model
	return a, nil
}
