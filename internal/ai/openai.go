package ai

import (
	"context"
	"fmt"
	"time"

	internalerrors "github.com/olegiv/logsift-ai-go/internal/errors"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient wraps the OpenAI API for both embeddings and chat
// completions. It implements Embedder and Completer.
type OpenAIClient struct {
	client     *openai.Client
	embedModel string
	chatModel  string
	batchSize  int
	maxTokens  int
	maxRetries int
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // Optional override for OpenAI-compatible endpoints
	EmbedModel     string // e.g., "text-embedding-3-small"
	ChatModel      string // e.g., "gpt-4o-mini"
	ProxyURL       string
	TimeoutSeconds int
	MaxTokens      int // Max tokens in completion responses
	BatchSize      int // Max texts per embedding request
	MaxRetries     int
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if cfg.EmbedModel == "" && cfg.ChatModel == "" {
		return nil, fmt.Errorf("at least one of embed model or chat model is required")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 120
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	httpClient, err := newHTTPClient(cfg.ProxyURL, cfg.TimeoutSeconds)
	if err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = httpClient
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		batchSize:  cfg.BatchSize,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// EmbedOne embeds a single string.
func (c *OpenAIClient) EmbedOne(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in chunks of at most the configured batch size,
// one request per chunk, and concatenates results preserving input order.
// Any chunk failure aborts the whole batch.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float64, 0, len(texts))
	for _, chunk := range chunkTexts(texts, c.batchSize) {
		chunk := chunk
		resp, err := retryWithBackoff(ctx, c.maxRetries, func() (openai.EmbeddingResponse, error) {
			return c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: chunk,
				Model: openai.EmbeddingModel(c.embedModel),
			})
		})
		if err != nil {
			return nil, internalerrors.Wrapf(err, "embedding request failed")
		}
		if len(resp.Data) != len(chunk) {
			return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(chunk))
		}

		// The API documents positional alignment but also carries an
		// explicit index per item; honor it within the chunk.
		chunkVectors := make([][]float64, len(chunk))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(chunk) {
				return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
			}
			vec := make([]float64, len(item.Embedding))
			for i, v := range item.Embedding {
				vec[i] = float64(v)
			}
			chunkVectors[item.Index] = vec
		}
		vectors = append(vectors, chunkVectors...)
	}

	return vectors, nil
}

// EmbeddingModel returns the configured embedding model name.
func (c *OpenAIClient) EmbeddingModel() string {
	return c.embedModel
}

// Complete performs one chat completion call.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error) {
	startTime := time.Now()

	resp, err := retryWithBackoff(ctx, c.maxRetries, func() (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			MaxTokens:   c.maxTokens,
			Temperature: 0.1, // Low temperature for consistent, factual output
		})
	})
	if err != nil {
		return nil, internalerrors.Wrapf(err, "completion request failed")
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI (no choices)")
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	return &Completion{
		Text:            text,
		InputTokens:     resp.Usage.PromptTokens,
		OutputTokens:    resp.Usage.CompletionTokens,
		DurationSeconds: time.Since(startTime).Seconds(),
	}, nil
}

// CompletionModel returns the configured chat model name.
func (c *OpenAIClient) CompletionModel() string {
	return c.chatModel
}

// Compile-time interface checks
var (
	_ Embedder  = (*OpenAIClient)(nil)
	_ Completer = (*OpenAIClient)(nil)
)
