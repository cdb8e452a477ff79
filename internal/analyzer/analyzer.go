// Package analyzer runs the log analysis pipeline: extract text from raw
// records, embed, rank by similarity to the incident prompt, then
// summarize the most relevant records with a completion model. Costs and
// per-stage timings are accounted along the way.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/olegiv/logsift-ai-go/internal/ai"
	"github.com/olegiv/logsift-ai-go/internal/cost"
	internalerrors "github.com/olegiv/logsift-ai-go/internal/errors"
	"github.com/olegiv/logsift-ai-go/internal/extract"
	"github.com/olegiv/logsift-ai-go/internal/rank"
)

// Record keys attached to filtered results. The leading underscore keeps
// them out of the way of real log fields.
const (
	SimilarityScoreKey = "_similarity_score"
	ExtractedTextKey   = "_extracted_text"
)

// noRelevantLogsMessage is returned as the analysis when ranking leaves
// nothing to summarize.
const noRelevantLogsMessage = "No relevant logs found for the given prompt"

var (
	// ErrEmptyBatch reports that a request contained no usable log
	// records. Callers raise it before any remote call is made.
	ErrEmptyBatch = errors.New("no valid log records to analyze")

	// ErrEmbeddingService marks an embedding failure, which is fatal for
	// the whole request: without vectors there is nothing to rank.
	ErrEmbeddingService = errors.New("embedding service failure")
)

// Defaults applied by New when an Options field is zero.
const (
	DefaultTopN               = 100
	DefaultMaxLogsForAnalysis = 100
	DefaultMaxReturnedLogs    = 20
)

// Options configures an Analyzer. Embedder and Completer are required;
// everything else has a usable default.
type Options struct {
	Embedder  ai.Embedder
	Completer ai.Completer

	// Extractor converts raw records to embedding text. Defaults to the
	// standard priority-field extractor.
	Extractor *extract.Extractor

	// Pricing resolves per-model rates. Defaults to the built-in table.
	Pricing *cost.Table

	// EmbeddingModel and CompletionModel override the client-reported
	// model names for pricing lookups. Normally left empty.
	EmbeddingModel  string
	CompletionModel string

	TopN               int // Records kept after similarity ranking
	MaxLogsForAnalysis int // Records passed to the summarizer
	MaxReturnedLogs    int // Records echoed back in the result

	Logger zerolog.Logger
}

// Timing is the per-stage wall-clock breakdown of one analysis.
type Timing struct {
	EmbeddingFilterSeconds float64 `json:"embedding_filter_seconds"`
	LLMAnalysisSeconds     float64 `json:"llm_analysis_seconds"`
}

// Result is the outcome of one analysis request.
type Result struct {
	TotalLogs         int              `json:"total_logs"`
	FilteredLogsCount int              `json:"filtered_logs_count"`
	Analysis          string           `json:"analysis"`
	LogsAnalyzed      int              `json:"logs_analyzed"`
	EmbeddingCostUSD  float64          `json:"embedding_cost_usd"`
	LLMCostUSD        float64          `json:"llm_cost_usd"`
	TotalCostUSD      float64          `json:"total_cost_usd"`
	TopFilteredLogs   []map[string]any `json:"top_filtered_logs"`
	Timing            Timing           `json:"timing_breakdown"`
}

// Analyzer orchestrates the extract, embed, rank and summarize stages.
// Safe for concurrent use.
type Analyzer struct {
	embedder  ai.Embedder
	completer ai.Completer
	extractor *extract.Extractor
	pricing   *cost.Table

	embeddingModel  string
	completionModel string

	topN               int
	maxLogsForAnalysis int
	maxReturnedLogs    int

	log zerolog.Logger
}

// New creates an Analyzer, applying defaults for unset options.
func New(opts Options) (*Analyzer, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.NewExtractor()
	}
	if opts.Pricing == nil {
		opts.Pricing = cost.DefaultTable()
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = opts.Embedder.EmbeddingModel()
	}
	if opts.CompletionModel == "" {
		opts.CompletionModel = opts.Completer.CompletionModel()
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.MaxLogsForAnalysis <= 0 {
		opts.MaxLogsForAnalysis = DefaultMaxLogsForAnalysis
	}
	if opts.MaxReturnedLogs <= 0 {
		opts.MaxReturnedLogs = DefaultMaxReturnedLogs
	}

	return &Analyzer{
		embedder:           opts.Embedder,
		completer:          opts.Completer,
		extractor:          opts.Extractor,
		pricing:            opts.Pricing,
		embeddingModel:     opts.EmbeddingModel,
		completionModel:    opts.CompletionModel,
		topN:               opts.TopN,
		maxLogsForAnalysis: opts.MaxLogsForAnalysis,
		maxReturnedLogs:    opts.MaxReturnedLogs,
		log:                opts.Logger,
	}, nil
}

// Analyze runs the full pipeline for one batch of records against one
// incident prompt.
//
// An empty batch short-circuits with a zero-cost result before any remote
// call. Embedding failures abort the request. Summarization failures
// degrade the result instead: the filtered logs and the embedding cost
// already paid are returned with an explanatory analysis string.
func (a *Analyzer) Analyze(ctx context.Context, logs []map[string]any, prompt string) (*Result, error) {
	if len(logs) == 0 {
		return &Result{
			Analysis:        noRelevantLogsMessage,
			TopFilteredLogs: []map[string]any{},
		}, nil
	}

	filterStart := time.Now()

	texts := make([]string, len(logs))
	for i, record := range logs {
		texts[i] = a.extractor.Extract(record)
	}

	embeddingTokens := cost.EstimateTokens(prompt)
	for _, text := range texts {
		embeddingTokens += cost.EstimateTokens(text)
	}
	embeddingCost := a.pricing.EmbeddingCost(a.embeddingModel, embeddingTokens)

	promptVector, err := a.embedder.EmbedOne(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingService, internalerrors.SanitizeError(err))
	}
	logVectors, err := a.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingService, internalerrors.SanitizeError(err))
	}

	scored := rank.TopN(promptVector, logVectors, a.topN)
	filtered := make([]map[string]any, 0, len(scored))
	for _, s := range scored {
		record := make(map[string]any, len(logs[s.Index])+2)
		for k, v := range logs[s.Index] {
			record[k] = v
		}
		record[SimilarityScoreKey] = s.Score
		record[ExtractedTextKey] = texts[s.Index]
		filtered = append(filtered, record)
	}

	filterSeconds := time.Since(filterStart).Seconds()

	llmStart := time.Now()
	analysis, llmCost, logsAnalyzed := a.summarize(ctx, filtered, prompt)
	llmSeconds := time.Since(llmStart).Seconds()

	embeddingCost = cost.Round(embeddingCost)
	llmCost = cost.Round(llmCost)

	returned := filtered
	if len(returned) > a.maxReturnedLogs {
		returned = returned[:a.maxReturnedLogs]
	}

	return &Result{
		TotalLogs:         len(logs),
		FilteredLogsCount: len(filtered),
		Analysis:          analysis,
		LogsAnalyzed:      logsAnalyzed,
		EmbeddingCostUSD:  embeddingCost,
		LLMCostUSD:        llmCost,
		TotalCostUSD:      cost.Round(embeddingCost + llmCost),
		TopFilteredLogs:   returned,
		Timing: Timing{
			EmbeddingFilterSeconds: roundSeconds(filterSeconds),
			LLMAnalysisSeconds:     roundSeconds(llmSeconds),
		},
	}, nil
}

// summarize runs the completion stage over the filtered records. It never
// returns an error: a summarization failure produces a degraded analysis
// string with zero completion cost.
func (a *Analyzer) summarize(ctx context.Context, filtered []map[string]any, prompt string) (analysis string, llmCost float64, logsAnalyzed int) {
	if len(filtered) == 0 {
		return noRelevantLogsMessage, 0, 0
	}

	analysisLogs := filtered
	if len(analysisLogs) > a.maxLogsForAnalysis {
		analysisLogs = analysisLogs[:a.maxLogsForAnalysis]
	}

	userPrompt := buildAnalysisPrompt(prompt, buildLogContext(analysisLogs))

	completion, err := a.completer.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		sanitized := internalerrors.SanitizeError(err)
		a.log.Warn().Err(sanitized).Msg("Summarization failed, returning filtered logs without analysis")
		return fmt.Sprintf("Analysis unavailable (summarization failed: %v). "+
			"The filtered logs below are still ranked by relevance.", sanitized), 0, 0
	}

	inputTokens := completion.InputTokens
	if inputTokens <= 0 {
		inputTokens = cost.EstimateTokens(userPrompt)
	}
	outputTokens := completion.OutputTokens
	if outputTokens <= 0 {
		outputTokens = cost.EstimateTokens(completion.Text)
	}

	return completion.Text, a.pricing.CompletionCost(a.completionModel, inputTokens, outputTokens), len(analysisLogs)
}

// roundSeconds trims stage timings to milliseconds for reporting.
func roundSeconds(s float64) float64 {
	return float64(int64(s*1000+0.5)) / 1000
}
