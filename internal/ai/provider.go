// Package ai contains the remote embedding and completion clients used by
// the analysis pipeline. All providers are stateless aside from fixed
// configuration, so a single client is safe for concurrent requests.
package ai

import "context"

// Embedder turns text into fixed-length vectors via a remote embedding
// service. Implementations chunk large inputs to respect provider limits
// and preserve input order; any chunk failure aborts the whole call.
type Embedder interface {
	// EmbedOne embeds a single string.
	EmbedOne(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch embeds texts in order, one vector per input string.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// EmbeddingModel returns the configured embedding model name.
	EmbeddingModel() string
}

// Completer produces a natural-language completion from a system prompt
// and a user prompt.
type Completer interface {
	// Complete performs one completion call.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error)

	// CompletionModel returns the configured completion model name.
	CompletionModel() string
}

// Completion is the result of a single completion call, including the
// provider-reported token usage needed for cost accounting.
type Completion struct {
	Text            string
	InputTokens     int
	OutputTokens    int
	DurationSeconds float64
}

// ProviderType identifies a remote AI service provider.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// ValidEmbeddingProviders lists providers that expose an embeddings API.
// Anthropic has no embeddings endpoint.
func ValidEmbeddingProviders() []ProviderType {
	return []ProviderType{ProviderOpenAI, ProviderOllama}
}

// ValidCompletionProviders lists providers usable for summarization.
func ValidCompletionProviders() []ProviderType {
	return []ProviderType{ProviderOpenAI, ProviderAnthropic, ProviderOllama}
}

// IsValidEmbeddingProvider checks whether pt names an embedding provider.
func IsValidEmbeddingProvider(pt string) bool {
	for _, valid := range ValidEmbeddingProviders() {
		if string(valid) == pt {
			return true
		}
	}
	return false
}

// IsValidCompletionProvider checks whether pt names a completion provider.
func IsValidCompletionProvider(pt string) bool {
	for _, valid := range ValidCompletionProviders() {
		if string(valid) == pt {
			return true
		}
	}
	return false
}

// DefaultBatchSize is the per-request item cap used when a client is
// configured without one. Remote embedding services impose per-request
// limits; batching amortizes request overhead while respecting them.
const DefaultBatchSize = 200

// chunkTexts splits texts into consecutive chunks of at most size items.
func chunkTexts(texts []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var chunks [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		chunks = append(chunks, texts[start:end])
	}
	return chunks
}
