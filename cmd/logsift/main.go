package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olegiv/logsift-ai-go/internal/ai"
	"github.com/olegiv/logsift-ai-go/internal/analyzer"
	"github.com/olegiv/logsift-ai-go/internal/config"
	"github.com/olegiv/logsift-ai-go/internal/ingest"
	"github.com/olegiv/logsift-ai-go/internal/logging"
	"github.com/olegiv/logsift-ai-go/internal/notification"
	"github.com/olegiv/logsift-ai-go/internal/server"
	"github.com/olegiv/logsift-ai-go/internal/storage"
	"github.com/olegiv/logsift-ai-go/pkg/logger"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// historyRetentionDays bounds how long analysis history is kept.
const historyRetentionDays = 90

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli := config.ParseCLI()

	if cli.ShowHelp {
		config.PrintUsage()
		return exitSuccess
	}

	if cli.ShowVersion {
		fmt.Printf("logsift %s\n", version)
		if gitCommit != "unknown" {
			fmt.Printf("  commit: %s\n", gitCommit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
		return exitSuccess
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	cfg, err := config.LoadWithCLI(cli)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	baseLog := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		LogDir:     "./logs",
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    cli.Serve, // One-shot mode keeps stdout for the result
	})
	log := logging.NewSecure(baseLog)
	defer func() {
		if err := log.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	log.Info().
		Str("embedding_provider", cfg.EmbeddingProvider).
		Str("llm_provider", cfg.LLMProvider).
		Str("embedding_model", cfg.GetEmbeddingModel()).
		Str("llm_model", cfg.GetLLMModel()).
		Msg("Starting LogSift AI")

	switch {
	case cli.Serve:
		if err := runServer(ctx, cfg, log); err != nil {
			log.Error().Err(err).Msg("Server failed")
			return exitFailure
		}
	case cli.LogsPath != "" || cli.Prompt != "":
		if cli.LogsPath == "" || cli.Prompt == "" {
			_, _ = fmt.Fprintln(os.Stderr, "Both -logs and -prompt are required for one-shot analysis")
			return exitFailure
		}
		if err := runOneShot(ctx, cfg, log, cli.LogsPath, cli.Prompt); err != nil {
			log.Error().Err(err).Msg("Analysis failed")
			_, _ = fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
			return exitFailure
		}
	default:
		config.PrintUsage()
		return exitFailure
	}

	return exitSuccess
}

// buildAnalyzer wires the configured providers into the pipeline.
func buildAnalyzer(cfg *config.Config, log *logging.SecureLogger) (*analyzer.Analyzer, error) {
	embedder, completer, err := buildClients(cfg)
	if err != nil {
		return nil, err
	}

	return analyzer.New(analyzer.Options{
		Embedder:           embedder,
		Completer:          completer,
		TopN:               cfg.TopNSimilarLogs,
		MaxLogsForAnalysis: cfg.MaxLogsForAnalysis,
		MaxReturnedLogs:    cfg.MaxReturnedLogs,
		Logger:             log.Zerolog(),
	})
}

// buildClients creates the embedding and completion clients selected by
// configuration. A single OpenAI or Ollama client serves both roles when
// both providers match.
func buildClients(cfg *config.Config) (ai.Embedder, ai.Completer, error) {
	var openaiClient *ai.OpenAIClient
	var ollamaClient *ai.OllamaClient
	var err error

	if cfg.NeedsOpenAI() {
		openaiCfg := ai.OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey,
			ProxyURL:       cfg.GetProxyURL(true),
			TimeoutSeconds: cfg.AITimeoutSeconds,
			MaxTokens:      cfg.AIMaxTokens,
			BatchSize:      cfg.EmbeddingBatchSize,
		}
		if cfg.EmbeddingProvider == string(ai.ProviderOpenAI) {
			openaiCfg.EmbedModel = cfg.EmbeddingModel
		}
		if cfg.LLMProvider == string(ai.ProviderOpenAI) {
			openaiCfg.ChatModel = cfg.AnalysisModel
		}
		openaiClient, err = ai.NewOpenAIClient(openaiCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
	}

	if cfg.EmbeddingProvider == string(ai.ProviderOllama) || cfg.LLMProvider == string(ai.ProviderOllama) {
		ollamaCfg := ai.OllamaConfig{
			BaseURL:        cfg.OllamaBaseURL,
			TimeoutSeconds: cfg.AITimeoutSeconds,
			MaxTokens:      cfg.AIMaxTokens,
			BatchSize:      cfg.EmbeddingBatchSize,
		}
		if cfg.EmbeddingProvider == string(ai.ProviderOllama) {
			ollamaCfg.EmbedModel = cfg.OllamaEmbedModel
		}
		if cfg.LLMProvider == string(ai.ProviderOllama) {
			ollamaCfg.ChatModel = cfg.OllamaModel
		}
		ollamaClient, err = ai.NewOllamaClient(ollamaCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	}

	var embedder ai.Embedder
	switch cfg.EmbeddingProvider {
	case string(ai.ProviderOllama):
		embedder = ollamaClient
	default:
		embedder = openaiClient
	}

	var completer ai.Completer
	switch cfg.LLMProvider {
	case string(ai.ProviderAnthropic):
		completer, err = ai.NewAnthropicClient(ai.AnthropicConfig{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.ClaudeModel,
			ProxyURL:       cfg.GetProxyURL(true),
			TimeoutSeconds: cfg.AITimeoutSeconds,
			MaxTokens:      cfg.AIMaxTokens,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Anthropic client: %w", err)
		}
	case string(ai.ProviderOllama):
		completer = ollamaClient
	default:
		completer = openaiClient
	}

	return embedder, completer, nil
}

// openStorage returns the analysis history store, or nil when disabled.
func openStorage(cfg *config.Config, log *logging.SecureLogger) *storage.Storage {
	if !cfg.EnableDatabase {
		return nil
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Warn().Err(err).Msg("Analysis history disabled: storage failed to initialize")
		return nil
	}
	log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")

	if deleted, err := store.CleanupOldAnalyses(historyRetentionDays); err != nil {
		log.Warn().Err(err).Msg("Failed to clean up old analyses")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("Cleaned up old analyses")
	}

	return store
}

// openReporter returns the Telegram reporter, or nil when not configured.
func openReporter(cfg *config.Config, log *logging.SecureLogger) *notification.TelegramClient {
	if !cfg.HasTelegram() {
		return nil
	}

	client, err := notification.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram reports disabled: client failed to initialize")
		return nil
	}
	return client
}

// runServer runs the HTTP API until the context is canceled.
func runServer(ctx context.Context, cfg *config.Config, log *logging.SecureLogger) error {
	pipeline, err := buildAnalyzer(cfg, log)
	if err != nil {
		return err
	}

	store := openStorage(cfg, log)
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database")
			}
		}()
	}

	var reporter server.Reporter
	if tg := openReporter(cfg, log); tg != nil {
		defer func() { _ = tg.Close() }()
		reporter = tg
	}

	srv := server.New(server.Config{
		Addr:           cfg.ListenAddr,
		MaxUploadBytes: cfg.MaxLogSizeBytes(),
	}, pipeline, store, reporter, log)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// runOneShot analyzes a single log file and prints the result as JSON.
func runOneShot(ctx context.Context, cfg *config.Config, log *logging.SecureLogger, logsPath, prompt string) error {
	pipeline, err := buildAnalyzer(cfg, log)
	if err != nil {
		return err
	}

	file, err := os.Open(logsPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	batch, err := ingest.Parse(file, cfg.MaxLogSizeBytes())
	if err != nil {
		return err
	}
	if len(batch.Skipped) > 0 {
		log.Warn().
			Int("skipped", len(batch.Skipped)).
			Int("parsed", len(batch.Records)).
			Msg("Some log lines could not be parsed")
	}
	if len(batch.Records) == 0 {
		return analyzer.ErrEmptyBatch
	}

	startTime := time.Now()
	result, err := pipeline.Analyze(ctx, batch.Records, prompt)
	if err != nil {
		return err
	}

	log.Info().
		Int("total_logs", result.TotalLogs).
		Int("filtered", result.FilteredLogsCount).
		Int("analyzed", result.LogsAnalyzed).
		Float64("total_cost_usd", result.TotalCostUSD).
		Dur("duration_seconds", time.Since(startTime).Seconds()).
		Msg("Analysis completed")

	if store := openStorage(cfg, log); store != nil {
		record := &storage.Analysis{
			Prompt:            prompt,
			TotalLogs:         result.TotalLogs,
			FilteredLogsCount: result.FilteredLogsCount,
			LogsAnalyzed:      result.LogsAnalyzed,
			Analysis:          result.Analysis,
			EmbeddingCostUSD:  result.EmbeddingCostUSD,
			LLMCostUSD:        result.LLMCostUSD,
			TotalCostUSD:      result.TotalCostUSD,
			DurationSeconds:   time.Since(startTime).Seconds(),
		}
		if err := store.SaveAnalysis(record); err != nil {
			log.Warn().Err(err).Msg("Failed to save analysis history")
		}
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}

	if reporter := openReporter(cfg, log); reporter != nil {
		if err := reporter.SendAnalysisReport(prompt, result); err != nil {
			log.Warn().Err(err).Msg("Failed to deliver analysis report")
		}
		_ = reporter.Close()
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(output))

	return nil
}
