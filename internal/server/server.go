// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/logsift-ai-go/internal/analyzer"
	internalerrors "github.com/olegiv/logsift-ai-go/internal/errors"
	"github.com/olegiv/logsift-ai-go/internal/ingest"
	"github.com/olegiv/logsift-ai-go/internal/logging"
	"github.com/olegiv/logsift-ai-go/internal/storage"
)

// Analyzer is the pipeline entry point consumed by the HTTP layer.
type Analyzer interface {
	Analyze(ctx context.Context, logs []map[string]any, prompt string) (*analyzer.Result, error)
}

// Reporter delivers an analysis result out of band. Delivery failures are
// logged, never surfaced to the API caller.
type Reporter interface {
	SendAnalysisReport(prompt string, result *analyzer.Result) error
}

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// Server handles analysis requests over HTTP.
type Server struct {
	analyzer Analyzer
	store    *storage.Storage // optional analysis history
	reporter Reporter         // optional report delivery
	log      *logging.SecureLogger

	maxUploadBytes int64
	httpServer     *http.Server
}

// New creates a Server. store and reporter may be nil.
func New(cfg Config, a Analyzer, store *storage.Storage, reporter Reporter, log *logging.SecureLogger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		analyzer:       a,
		store:          store,
		reporter:       reporter,
		log:            log,
		maxUploadBytes: cfg.MaxUploadBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/v1/history", s.handleHistory)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthResponse is the body of GET /api/v1/health.
type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorResponse is the body of any non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// analyzeResponse wraps the pipeline result with request echo fields.
type analyzeResponse struct {
	Prompt  string `json:"prompt"`
	Success bool   `json:"success"`
	*analyzer.Result
}

// analyzeRequest is the JSON request body alternative to multipart upload.
type analyzeRequest struct {
	Prompt string           `json:"prompt"`
	Logs   []map[string]any `json:"logs"`
}

// historyResponse is the body of GET /api/v1/history.
type historyResponse struct {
	Analyses     []*storage.Analysis `json:"analyses"`
	TotalCostUSD float64             `json:"total_cost_usd"`
	Days         int                 `json:"days"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Message: "API is running"})
}

// handleHistory returns recent persisted analyses with their summed cost.
// Query parameters: days (default 30), limit (default 50).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "analysis history is disabled"})
		return
	}

	days := queryInt(r, "days", 30)
	limit := queryInt(r, "limit", 50)

	analyses, err := s.store.GetRecentAnalyses(days, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load analysis history")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load analysis history"})
		return
	}
	totalCost, err := s.store.TotalCostSince(days)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to sum analysis costs")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load analysis history"})
		return
	}

	if analyses == nil {
		analyses = []*storage.Analysis{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Analyses:     analyses,
		TotalCostUSD: totalCost,
		Days:         days,
	})
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// handleAnalyze accepts either a multipart form (file + prompt fields) or
// a JSON body ({"prompt": ..., "logs": [...]}) and runs the pipeline.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	prompt, records, skipped, err := s.parseRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(prompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "prompt is required"})
		return
	}
	if len(records) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no valid log entries found"})
		return
	}

	if len(skipped) > 0 {
		s.log.Warn().
			Int("skipped", len(skipped)).
			Int("parsed", len(records)).
			Msg("Some log lines could not be parsed")
	}

	result, err := s.analyzer.Analyze(r.Context(), records, prompt)
	if err != nil {
		sanitized := internalerrors.SanitizeError(err)
		s.log.Error().Err(sanitized).Msg("Analysis failed")

		status := http.StatusInternalServerError
		if errors.Is(err, analyzer.ErrEmbeddingService) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Error: sanitized.Error()})
		return
	}

	s.persistAndReport(prompt, result, time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, analyzeResponse{Prompt: prompt, Success: true, Result: result})
}

// parseRequest extracts the prompt and log records from either supported
// request encoding.
func (s *Server) parseRequest(r *http.Request) (string, []map[string]any, []ingest.Skipped, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		var req analyzeRequest
		decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, s.maxUploadBytes))
		if err := decoder.Decode(&req); err != nil {
			return "", nil, nil, fmt.Errorf("invalid JSON body: %v", err)
		}
		return req.Prompt, req.Logs, nil, nil
	}

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return "", nil, nil, fmt.Errorf("invalid multipart form: %v", err)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return "", nil, nil, fmt.Errorf("log file is required (field 'file')")
	}
	defer func() { _ = file.Close() }()

	batch, err := ingest.Parse(file, s.maxUploadBytes)
	if err != nil {
		return "", nil, nil, err
	}

	return r.FormValue("prompt"), batch.Records, batch.Skipped, nil
}

// persistAndReport stores the result and sends the optional report.
// Both are best effort; a history or delivery failure never fails the
// request that produced the result.
func (s *Server) persistAndReport(prompt string, result *analyzer.Result, durationSeconds float64) {
	if s.store != nil {
		record := &storage.Analysis{
			Prompt:            prompt,
			TotalLogs:         result.TotalLogs,
			FilteredLogsCount: result.FilteredLogsCount,
			LogsAnalyzed:      result.LogsAnalyzed,
			Analysis:          result.Analysis,
			EmbeddingCostUSD:  result.EmbeddingCostUSD,
			LLMCostUSD:        result.LLMCostUSD,
			TotalCostUSD:      result.TotalCostUSD,
			DurationSeconds:   durationSeconds,
		}
		if err := s.store.SaveAnalysis(record); err != nil {
			s.log.Error().Err(err).Msg("Failed to save analysis history")
		}
	}

	if s.reporter != nil {
		if err := s.reporter.SendAnalysisReport(prompt, result); err != nil {
			s.log.Error().Err(err).Msg("Failed to deliver analysis report")
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
