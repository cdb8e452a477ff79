// Package cost estimates token counts and dollar cost for embedding and
// completion calls using a static per-model price table.
package cost

import (
	"math"
	"strings"
)

// Fallback models used when a model name is missing from the table, so
// cost reporting degrades to a cheap known rate instead of failing.
const (
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultCompletionModel = "gpt-4o-mini"
)

// reportedCostDecimals is the rounding applied at the reporting boundary.
// Costs are kept unrounded internally to avoid compounding error.
const reportedCostDecimals = 6

// CompletionRate holds per-1K-token prices for a chat completion model.
type CompletionRate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Table maps model names to prices. Embedding models have a single rate;
// completion models price input and output separately.
type Table struct {
	embedding  map[string]float64
	completion map[string]CompletionRate
}

// DefaultTable returns the built-in OpenAI price table (per 1K tokens,
// September 2025 pricing).
func DefaultTable() *Table {
	return &Table{
		embedding: map[string]float64{
			"text-embedding-3-small": 0.00002,
			"text-embedding-3-large": 0.00013,
			"text-embedding-ada-002": 0.0001,
		},
		completion: map[string]CompletionRate{
			"gpt-3.5-turbo":      {InputPer1K: 0.0005, OutputPer1K: 0.0015},
			"gpt-3.5-turbo-0125": {InputPer1K: 0.0005, OutputPer1K: 0.0015},
			"gpt-4":              {InputPer1K: 0.03, OutputPer1K: 0.06},
			"gpt-4-turbo":        {InputPer1K: 0.01, OutputPer1K: 0.03},
			"gpt-4o":             {InputPer1K: 0.005, OutputPer1K: 0.015},
			"gpt-4o-mini":        {InputPer1K: 0.00015, OutputPer1K: 0.0006},
			"gpt-5":              {InputPer1K: 0.00125, OutputPer1K: 0.01},
			"gpt-5-mini":         {InputPer1K: 0.00025, OutputPer1K: 0.001},
			"o1":                 {InputPer1K: 0.015, OutputPer1K: 0.06},
			"o1-mini":            {InputPer1K: 0.0011, OutputPer1K: 0.0044},
		},
	}
}

// EstimateTokens estimates the token count of text as words / 0.75
// (roughly 1.33 tokens per word). This is a deliberate approximation for
// cost estimation only, never for enforcing request-size limits.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) / 0.75)
}

// EmbeddingCost returns the unrounded dollar cost of embedding tokens with
// the given model. Unknown models use the default embedding model's rate.
func (t *Table) EmbeddingCost(model string, tokens int) float64 {
	rate, ok := t.embedding[model]
	if !ok {
		rate = t.embedding[DefaultEmbeddingModel]
	}
	return float64(tokens) * rate / 1000
}

// CompletionCost returns the unrounded dollar cost of a completion call.
// Unknown models use the default completion model's rates.
func (t *Table) CompletionCost(model string, inputTokens, outputTokens int) float64 {
	rate, ok := t.completion[model]
	if !ok {
		rate = t.completion[DefaultCompletionModel]
	}
	inputCost := float64(inputTokens) * rate.InputPer1K / 1000
	outputCost := float64(outputTokens) * rate.OutputPer1K / 1000
	return inputCost + outputCost
}

// Round rounds a dollar amount for reporting. Apply only at the boundary
// where a cost leaves the pipeline.
func Round(usd float64) float64 {
	shift := math.Pow10(reportedCostDecimals)
	return math.Round(usd*shift) / shift
}
