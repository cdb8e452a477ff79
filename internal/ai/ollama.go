package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaClient wraps the Ollama REST API for local embeddings and chat
// completions. Local inference has no monetary cost; token counts are
// still reported for comparison purposes.
type OllamaClient struct {
	baseURL    string
	chatModel  string
	embedModel string
	maxTokens  int
	batchSize  int
	maxRetries int
	httpClient *http.Client
}

// OllamaConfig holds Ollama-specific configuration.
type OllamaConfig struct {
	BaseURL        string // e.g., "http://localhost:11434"
	ChatModel      string // e.g., "llama3.3:latest"
	EmbedModel     string // e.g., "nomic-embed-text"
	TimeoutSeconds int
	MaxTokens      int
	BatchSize      int
	MaxRetries     int
}

// ollamaEmbedRequest is the request body for Ollama's /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the response from Ollama's /api/embed endpoint.
type ollamaEmbedResponse struct {
	Model           string      `json:"model"`
	Embeddings      [][]float64 `json:"embeddings"`
	TotalDuration   int64       `json:"total_duration,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
}

// ollamaChatRequest is the request body for Ollama's /api/chat endpoint.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

// ollamaOptions contains model parameters.
type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// ollamaMessage represents a chat message.
type ollamaMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ollamaChatResponse is the response from Ollama's /api/chat endpoint.
type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	TotalDuration   int64         `json:"total_duration,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.ChatModel == "" && cfg.EmbedModel == "" {
		return nil, fmt.Errorf("at least one of chat model or embed model is required")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300 // Large local models load slowly
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &OllamaClient{
		baseURL:    cfg.BaseURL,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		maxTokens:  cfg.MaxTokens,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// EmbedOne embeds a single string.
func (c *OllamaClient) EmbedOne(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in chunks, preserving input order.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if c.embedModel == "" {
		return nil, fmt.Errorf("ollama embed model is not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	url := c.baseURL + "/api/embed"
	vectors := make([][]float64, 0, len(texts))

	for _, chunk := range chunkTexts(texts, c.batchSize) {
		chunk := chunk
		resp, err := retryWithBackoff(ctx, c.maxRetries, func() (*ollamaEmbedResponse, error) {
			return doJSONPost[ollamaEmbedResponse](ctx, c.httpClient, url, ollamaEmbedRequest{
				Model: c.embedModel,
				Input: chunk,
			})
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(chunk) {
			return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Embeddings), len(chunk))
		}
		vectors = append(vectors, resp.Embeddings...)
	}

	return vectors, nil
}

// EmbeddingModel returns the configured embedding model name.
func (c *OllamaClient) EmbeddingModel() string {
	return c.embedModel
}

// Complete performs one chat completion call using the chat endpoint.
func (c *OllamaClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error) {
	if c.chatModel == "" {
		return nil, fmt.Errorf("ollama chat model is not configured")
	}

	startTime := time.Now()

	url := c.baseURL + "/api/chat"
	request := ollamaChatRequest{
		Model: c.chatModel,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		Options: ollamaOptions{
			NumPredict:  c.maxTokens,
			Temperature: 0.1, // Low temperature for consistent, factual output
			TopP:        0.9,
		},
	}

	response, err := retryWithBackoff(ctx, c.maxRetries, func() (*ollamaChatResponse, error) {
		resp, err := doJSONPost[ollamaChatResponse](ctx, c.httpClient, url, request)
		if err != nil {
			return nil, err
		}
		if !resp.Done {
			return nil, fmt.Errorf("incomplete response from Ollama")
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	if response.Message.Content == "" {
		return nil, fmt.Errorf("empty response from Ollama")
	}

	return &Completion{
		Text:            response.Message.Content,
		InputTokens:     response.PromptEvalCount,
		OutputTokens:    response.EvalCount,
		DurationSeconds: time.Since(startTime).Seconds(),
	}, nil
}

// CompletionModel returns the configured chat model name.
func (c *OllamaClient) CompletionModel() string {
	return c.chatModel
}

// Compile-time interface checks
var (
	_ Embedder  = (*OllamaClient)(nil)
	_ Completer = (*OllamaClient)(nil)
)
