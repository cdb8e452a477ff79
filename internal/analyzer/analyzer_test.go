package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/olegiv/logsift-ai-go/internal/ai"
	"github.com/olegiv/logsift-ai-go/internal/cost"
	"github.com/olegiv/logsift-ai-go/internal/extract"
)

// fakeEmbedder derives vectors from text content so tests control ranking
// without a live service.
type fakeEmbedder struct {
	vectorFor  func(text string) []float64
	err        error
	batchCalls int
}

func (f *fakeEmbedder) EmbedOne(_ context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batchCalls++
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = f.vectorFor(text)
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbeddingModel() string { return "text-embedding-3-small" }

type fakeCompleter struct {
	completion *ai.Completion
	err        error
	lastSystem string
	lastUser   string
	calls      int
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (*ai.Completion, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

func (f *fakeCompleter) CompletionModel() string { return "gpt-4o-mini" }

// timeoutAwareVector separates records mentioning timeouts from the rest.
func timeoutAwareVector(text string) []float64 {
	if strings.Contains(text, "timeout") {
		return []float64{1, 0}
	}
	return []float64{0, 1}
}

func newTestAnalyzer(t *testing.T, embedder *fakeEmbedder, completer *fakeCompleter, opts Options) *Analyzer {
	t.Helper()
	opts.Embedder = embedder
	opts.Completer = completer
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNew_RequiresClients(t *testing.T) {
	if _, err := New(Options{Completer: &fakeCompleter{}}); err == nil {
		t.Error("New() without embedder should fail")
	}
	if _, err := New(Options{Embedder: &fakeEmbedder{}}); err == nil {
		t.Error("New() without completer should fail")
	}
}

func TestAnalyze_FullPipeline(t *testing.T) {
	embedder := &fakeEmbedder{vectorFor: timeoutAwareVector}
	completer := &fakeCompleter{
		completion: &ai.Completion{
			Text:         "Root cause: upstream database timeouts.",
			InputTokens:  1000,
			OutputTokens: 200,
		},
	}
	a := newTestAnalyzer(t, embedder, completer, Options{})

	logs := []map[string]any{
		{"message": "user login succeeded", "level": "info"},
		{"message": "database connection timeout", "level": "error"},
		{"message": "cache warmed", "level": "debug"},
	}

	result, err := a.Analyze(context.Background(), logs, "database timeout errors")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.TotalLogs != 3 {
		t.Errorf("TotalLogs = %d, want 3", result.TotalLogs)
	}
	if result.FilteredLogsCount != 3 {
		t.Errorf("FilteredLogsCount = %d, want 3", result.FilteredLogsCount)
	}
	if result.LogsAnalyzed != 3 {
		t.Errorf("LogsAnalyzed = %d, want 3", result.LogsAnalyzed)
	}
	if result.Analysis != "Root cause: upstream database timeouts." {
		t.Errorf("Analysis = %q", result.Analysis)
	}

	// The timeout record must rank first; its vector matches the prompt's.
	top := result.TopFilteredLogs[0]
	if top["message"] != "database connection timeout" {
		t.Errorf("top record = %v, want the timeout record first", top["message"])
	}
	score, ok := top[SimilarityScoreKey].(float64)
	if !ok || score < 0.999 {
		t.Errorf("top similarity = %v, want ~1.0", top[SimilarityScoreKey])
	}
	extracted, ok := top[ExtractedTextKey].(string)
	if !ok || !strings.Contains(extracted, "message:database connection timeout") {
		t.Errorf("extracted text = %q", extracted)
	}

	// Completion cost from provider-reported usage at gpt-4o-mini rates.
	wantLLM := cost.Round(1000*0.00015/1000 + 200*0.0006/1000)
	if result.LLMCostUSD != wantLLM {
		t.Errorf("LLMCostUSD = %v, want %v", result.LLMCostUSD, wantLLM)
	}
	if result.EmbeddingCostUSD <= 0 {
		t.Errorf("EmbeddingCostUSD = %v, want > 0", result.EmbeddingCostUSD)
	}
	if result.TotalCostUSD != cost.Round(result.EmbeddingCostUSD+result.LLMCostUSD) {
		t.Errorf("TotalCostUSD = %v, want embedding+llm", result.TotalCostUSD)
	}

	if result.Timing.EmbeddingFilterSeconds < 0 || result.Timing.LLMAnalysisSeconds < 0 {
		t.Errorf("negative stage timing: %+v", result.Timing)
	}
	if completer.lastSystem != systemPrompt {
		t.Error("summarizer did not receive the analyst system prompt")
	}
	if !strings.Contains(completer.lastUser, "database timeout errors") {
		t.Error("user prompt should embed the incident description")
	}
}

func TestAnalyze_DoesNotMutateInput(t *testing.T) {
	embedder := &fakeEmbedder{vectorFor: timeoutAwareVector}
	completer := &fakeCompleter{completion: &ai.Completion{Text: "ok"}}
	a := newTestAnalyzer(t, embedder, completer, Options{})

	logs := []map[string]any{{"message": "timeout"}}
	if _, err := a.Analyze(context.Background(), logs, "incident"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if _, polluted := logs[0][SimilarityScoreKey]; polluted {
		t.Error("input record gained a similarity score; results must be copies")
	}
	if _, polluted := logs[0][ExtractedTextKey]; polluted {
		t.Error("input record gained extracted text; results must be copies")
	}
}

func TestAnalyze_EmptyBatch(t *testing.T) {
	embedder := &fakeEmbedder{vectorFor: timeoutAwareVector}
	completer := &fakeCompleter{completion: &ai.Completion{Text: "unused"}}
	a := newTestAnalyzer(t, embedder, completer, Options{})

	result, err := a.Analyze(context.Background(), nil, "anything")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.TotalLogs != 0 || result.FilteredLogsCount != 0 || result.LogsAnalyzed != 0 {
		t.Errorf("empty batch should produce zero counts: %+v", result)
	}
	if result.TotalCostUSD != 0 {
		t.Errorf("empty batch cost = %v, want 0", result.TotalCostUSD)
	}
	if result.Analysis != "No relevant logs found for the given prompt" {
		t.Errorf("Analysis = %q", result.Analysis)
	}
	if embedder.batchCalls != 0 || completer.calls != 0 {
		t.Error("empty batch must not reach any remote service")
	}
}

func TestAnalyze_EmbeddingFailureIsFatal(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("upstream 500")}
	completer := &fakeCompleter{completion: &ai.Completion{Text: "unused"}}
	a := newTestAnalyzer(t, embedder, completer, Options{})

	result, err := a.Analyze(context.Background(), []map[string]any{{"message": "x"}}, "incident")
	if err == nil {
		t.Fatal("Analyze() should fail when embedding fails")
	}
	if !errors.Is(err, ErrEmbeddingService) {
		t.Errorf("error should wrap ErrEmbeddingService: %v", err)
	}
	if result != nil {
		t.Errorf("no partial result expected, got %+v", result)
	}
	if completer.calls != 0 {
		t.Error("summarizer must not run after an embedding failure")
	}
}

func TestAnalyze_SummarizationFailureDegrades(t *testing.T) {
	embedder := &fakeEmbedder{vectorFor: timeoutAwareVector}
	completer := &fakeCompleter{err: errors.New("model overloaded")}
	a := newTestAnalyzer(t, embedder, completer, Options{})

	logs := []map[string]any{
		{"message": "database connection timeout"},
		{"message": "disk almost full"},
	}
	result, err := a.Analyze(context.Background(), logs, "timeout incident")
	if err != nil {
		t.Fatalf("summarization failure should degrade, not error: %v", err)
	}

	if !strings.Contains(result.Analysis, "summarization failed") {
		t.Errorf("degraded analysis should explain itself: %q", result.Analysis)
	}
	if result.LLMCostUSD != 0 {
		t.Errorf("LLMCostUSD = %v, want 0 for a failed summarization", result.LLMCostUSD)
	}
	if result.LogsAnalyzed != 0 {
		t.Errorf("LogsAnalyzed = %d, want 0", result.LogsAnalyzed)
	}
	if result.EmbeddingCostUSD <= 0 {
		t.Error("embedding cost already paid must be reported")
	}
	if result.FilteredLogsCount != 2 || len(result.TopFilteredLogs) != 2 {
		t.Errorf("filtered logs should survive degradation: %+v", result)
	}
}

func TestAnalyze_Truncation(t *testing.T) {
	embedder := &fakeEmbedder{vectorFor: timeoutAwareVector}
	completer := &fakeCompleter{
		completion: &ai.Completion{Text: "summary", InputTokens: 10, OutputTokens: 5},
	}
	a := newTestAnalyzer(t, embedder, completer, Options{
		TopN:               4,
		MaxLogsForAnalysis: 3,
		MaxReturnedLogs:    2,
	})

	logs := make([]map[string]any, 6)
	for i := range logs {
		logs[i] = map[string]any{"message": "request timeout", "seq": float64(i)}
	}

	result, err := a.Analyze(context.Background(), logs, "timeouts")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.TotalLogs != 6 {
		t.Errorf("TotalLogs = %d, want 6", result.TotalLogs)
	}
	if result.FilteredLogsCount != 4 {
		t.Errorf("FilteredLogsCount = %d, want TopN=4", result.FilteredLogsCount)
	}
	if result.LogsAnalyzed != 3 {
		t.Errorf("LogsAnalyzed = %d, want MaxLogsForAnalysis=3", result.LogsAnalyzed)
	}
	if len(result.TopFilteredLogs) != 2 {
		t.Errorf("len(TopFilteredLogs) = %d, want MaxReturnedLogs=2", len(result.TopFilteredLogs))
	}
}

func TestAnalyze_CustomExtractorAndPricing(t *testing.T) {
	embedder := &fakeEmbedder{vectorFor: timeoutAwareVector}
	completer := &fakeCompleter{completion: &ai.Completion{Text: "summary"}}
	a := newTestAnalyzer(t, embedder, completer, Options{
		Extractor: extract.NewExtractorWithFields([]string{"payload"}, nil),
		Pricing:   cost.DefaultTable(),
	})

	logs := []map[string]any{{"payload": "gateway timeout storm"}}
	result, err := a.Analyze(context.Background(), logs, "timeout")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	extracted := result.TopFilteredLogs[0][ExtractedTextKey].(string)
	if !strings.Contains(extracted, "payload:gateway timeout storm") {
		t.Errorf("custom extractor not applied: %q", extracted)
	}
}
