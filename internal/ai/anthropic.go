package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	internalerrors "github.com/olegiv/logsift-ai-go/internal/errors"
)

// AnthropicClient wraps the Anthropic Messages API as a Completer.
// Anthropic exposes no embeddings endpoint, so this client cannot serve
// as an Embedder.
type AnthropicClient struct {
	client     *anthropic.Client
	model      string
	maxTokens  int
	maxRetries int
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey         string
	Model          string // e.g., "claude-sonnet-4-5-20250929"
	ProxyURL       string
	TimeoutSeconds int
	MaxTokens      int
	MaxRetries     int
}

// NewAnthropicClient creates a new Anthropic completion client.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 120
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}

	httpClient, err := newHTTPClient(cfg.ProxyURL, cfg.TimeoutSeconds)
	if err != nil {
		return nil, err
	}

	client := anthropic.NewClient(
		cfg.APIKey,
		anthropic.WithHTTPClient(httpClient),
	)

	return &AnthropicClient{
		client:     client,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Complete performs one completion call with retry and rate-limit-aware
// backoff.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error) {
	startTime := time.Now()

	response, err := retryWithBackoff(ctx, c.maxRetries, func() (anthropic.MessagesResponse, error) {
		return c.callAPI(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		return nil, err
	}

	if len(response.Content) == 0 {
		return nil, fmt.Errorf("empty response from Anthropic")
	}

	responseText := ""
	for _, content := range response.Content {
		if content.Type == "text" && content.Text != nil {
			responseText += *content.Text
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("no text content in Anthropic response")
	}

	return &Completion{
		Text:            responseText,
		InputTokens:     response.Usage.InputTokens,
		OutputTokens:    response.Usage.OutputTokens,
		DurationSeconds: time.Since(startTime).Seconds(),
	}, nil
}

// callAPI makes the actual API call to Anthropic.
func (c *AnthropicClient) callAPI(ctx context.Context, systemPrompt, userPrompt string) (anthropic.MessagesResponse, error) {
	temperature := float32(0.1)
	request := anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(userPrompt),
				},
			},
		},
		System:      systemPrompt,
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
	}

	response, err := c.client.CreateMessages(ctx, request)
	if err != nil {
		// Keep credentials out of error messages.
		return anthropic.MessagesResponse{}, internalerrors.Wrapf(err, "API call failed")
	}

	return response, nil
}

// CompletionModel returns the configured model name.
func (c *AnthropicClient) CompletionModel() string {
	return c.model
}

// Compile-time interface check
var _ Completer = (*AnthropicClient)(nil)
