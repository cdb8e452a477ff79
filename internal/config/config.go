// Package config loads application configuration from the environment,
// an optional .env file, and command-line flags.
package config

import (
	"crypto/subtle"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/olegiv/logsift-ai-go/internal/ai"
)

// CLIOptions holds command-line argument overrides.
type CLIOptions struct {
	LogsPath    string // -logs: path to a JSONL log file (one-shot mode)
	Prompt      string // -prompt: incident description (one-shot mode)
	Serve       bool   // -serve: run the HTTP API server
	ListenAddr  string // -addr: HTTP listen address (overrides LISTEN_ADDR)
	ShowHelp    bool   // -help: show usage
	ShowVersion bool   // -version: show version
}

// ParseCLI parses command-line arguments and returns CLIOptions.
func ParseCLI() *CLIOptions {
	opts := &CLIOptions{}

	flag.StringVar(&opts.LogsPath, "logs", "", "Path to JSONL log file to analyze (one-shot mode)")
	flag.StringVar(&opts.Prompt, "prompt", "", "Incident description or query (one-shot mode)")
	flag.BoolVar(&opts.Serve, "serve", false, "Run the HTTP API server")
	flag.StringVar(&opts.ListenAddr, "addr", "", "HTTP listen address (overrides LISTEN_ADDR)")
	flag.BoolVar(&opts.ShowHelp, "help", false, "Show usage information")
	flag.BoolVar(&opts.ShowVersion, "version", false, "Show version information")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "LogSift AI - Semantic log filtering and incident analysis\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nExamples:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  %s -logs app.jsonl -prompt \"database timeouts since the deploy\"\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "  %s -serve -addr :8080\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment variables can be set in a .env file or exported directly.\n")
		_, _ = fmt.Fprintf(os.Stderr, "CLI arguments override environment variables.\n")
	}

	flag.Parse()

	return opts
}

// PrintUsage prints the command-line usage information.
func PrintUsage() {
	flag.Usage()
}

// Config holds all application configuration.
type Config struct {
	// Provider selection
	EmbeddingProvider string // "openai" or "ollama"
	LLMProvider       string // "openai", "anthropic", or "ollama"

	// OpenAI settings
	OpenAIAPIKey   string
	EmbeddingModel string // e.g., "text-embedding-3-small"
	AnalysisModel  string // e.g., "gpt-4o-mini"

	// Anthropic settings (used when LLMProvider = "anthropic")
	AnthropicAPIKey string
	ClaudeModel     string

	// Ollama settings
	OllamaBaseURL    string // e.g., "http://localhost:11434"
	OllamaModel      string // chat model, e.g., "llama3.3:latest"
	OllamaEmbedModel string // e.g., "nomic-embed-text"

	// Pipeline limits
	EmbeddingBatchSize int
	TopNSimilarLogs    int
	MaxLogsForAnalysis int
	MaxReturnedLogs    int
	MaxLogSizeMB       int

	// Application
	LogLevel       string
	EnableDatabase bool
	DatabasePath   string
	ListenAddr     string

	// Telegram (optional report delivery)
	TelegramBotToken string
	TelegramChatID   int64

	// Proxy
	HTTPProxy  string
	HTTPSProxy string

	// AI settings
	AITimeoutSeconds int
	AIMaxTokens      int
}

// Load loads configuration from a .env file and environment variables.
// For CLI overrides, use LoadWithCLI instead.
func Load() (*Config, error) {
	return LoadWithCLI(nil)
}

// LoadWithCLI loads configuration with CLI argument overrides.
// Priority: CLI args > .env file > OS environment variables > defaults.
func LoadWithCLI(cli *CLIOptions) (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// godotenv sets OS env vars from .env, which viper then reads.
	_ = godotenv.Load()

	setDefaults()

	config := &Config{
		EmbeddingProvider: viper.GetString("EMBEDDING_PROVIDER"),
		LLMProvider:       viper.GetString("LLM_PROVIDER"),

		OpenAIAPIKey:   viper.GetString("OPENAI_API_KEY"),
		EmbeddingModel: viper.GetString("EMBEDDING_MODEL"),
		AnalysisModel:  viper.GetString("ANALYSIS_MODEL"),

		AnthropicAPIKey: viper.GetString("ANTHROPIC_API_KEY"),
		ClaudeModel:     viper.GetString("CLAUDE_MODEL"),

		OllamaBaseURL:    viper.GetString("OLLAMA_BASE_URL"),
		OllamaModel:      viper.GetString("OLLAMA_MODEL"),
		OllamaEmbedModel: viper.GetString("OLLAMA_EMBED_MODEL"),

		EmbeddingBatchSize: viper.GetInt("EMBEDDING_BATCH_SIZE"),
		TopNSimilarLogs:    viper.GetInt("TOP_N_SIMILAR_LOGS"),
		MaxLogsForAnalysis: viper.GetInt("MAX_LOGS_FOR_ANALYSIS"),
		MaxReturnedLogs:    viper.GetInt("MAX_RETURNED_LOGS"),
		MaxLogSizeMB:       viper.GetInt("MAX_LOG_SIZE_MB"),

		LogLevel:       viper.GetString("LOG_LEVEL"),
		EnableDatabase: viper.GetBool("ENABLE_DATABASE"),
		DatabasePath:   viper.GetString("DATABASE_PATH"),
		ListenAddr:     viper.GetString("LISTEN_ADDR"),

		TelegramBotToken: viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   viper.GetInt64("TELEGRAM_CHAT_ID"),

		HTTPProxy:  viper.GetString("HTTP_PROXY"),
		HTTPSProxy: viper.GetString("HTTPS_PROXY"),

		AITimeoutSeconds: viper.GetInt("AI_TIMEOUT_SECONDS"),
		AIMaxTokens:      viper.GetInt("AI_MAX_TOKENS"),
	}

	if cli != nil && cli.ListenAddr != "" {
		config.ListenAddr = cli.ListenAddr
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("EMBEDDING_PROVIDER", "openai")
	viper.SetDefault("LLM_PROVIDER", "openai")

	viper.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	viper.SetDefault("ANALYSIS_MODEL", "gpt-4o-mini")
	viper.SetDefault("CLAUDE_MODEL", "claude-sonnet-4-5-20250929")

	viper.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434")
	viper.SetDefault("OLLAMA_MODEL", "llama3.3:latest")
	viper.SetDefault("OLLAMA_EMBED_MODEL", "nomic-embed-text")

	viper.SetDefault("EMBEDDING_BATCH_SIZE", 200)
	viper.SetDefault("TOP_N_SIMILAR_LOGS", 100)
	viper.SetDefault("MAX_LOGS_FOR_ANALYSIS", 100)
	viper.SetDefault("MAX_RETURNED_LOGS", 20)
	viper.SetDefault("MAX_LOG_SIZE_MB", 10)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ENABLE_DATABASE", true)
	viper.SetDefault("DATABASE_PATH", "./data/analyses.db")
	viper.SetDefault("LISTEN_ADDR", ":8080")

	viper.SetDefault("AI_TIMEOUT_SECONDS", 120)
	viper.SetDefault("AI_MAX_TOKENS", 1000)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}

	if c.EmbeddingBatchSize < 1 || c.EmbeddingBatchSize > 2048 {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be between 1 and 2048")
	}
	if c.TopNSimilarLogs < 1 {
		return fmt.Errorf("TOP_N_SIMILAR_LOGS must be at least 1")
	}
	if c.MaxLogsForAnalysis < 1 {
		return fmt.Errorf("MAX_LOGS_FOR_ANALYSIS must be at least 1")
	}
	if c.MaxReturnedLogs < 1 {
		return fmt.Errorf("MAX_RETURNED_LOGS must be at least 1")
	}
	if c.MaxLogSizeMB < 1 || c.MaxLogSizeMB > 100 {
		return fmt.Errorf("MAX_LOG_SIZE_MB must be between 1 and 100")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if c.AITimeoutSeconds < 30 || c.AITimeoutSeconds > 600 {
		return fmt.Errorf("AI_TIMEOUT_SECONDS must be between 30 and 600")
	}
	if c.AIMaxTokens < 100 || c.AIMaxTokens > 16000 {
		return fmt.Errorf("AI_MAX_TOKENS must be between 100 and 16000")
	}

	if err := c.validateTelegram(); err != nil {
		return err
	}

	return nil
}

// validateProviders validates provider selection and provider-specific
// credentials.
func (c *Config) validateProviders() error {
	if !ai.IsValidEmbeddingProvider(c.EmbeddingProvider) {
		return fmt.Errorf("EMBEDDING_PROVIDER must be 'openai' or 'ollama' (got: %s)", c.EmbeddingProvider)
	}
	if !ai.IsValidCompletionProvider(c.LLMProvider) {
		return fmt.Errorf("LLM_PROVIDER must be 'openai', 'anthropic', or 'ollama' (got: %s)", c.LLMProvider)
	}

	if c.NeedsOpenAI() {
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when an OpenAI provider is selected")
		}
		// Constant-time comparison keeps key content out of timing side
		// channels.
		if !constantTimePrefixMatch(c.OpenAIAPIKey, "sk-") {
			return fmt.Errorf("OPENAI_API_KEY must start with 'sk-'")
		}
	}

	if c.EmbeddingProvider == string(ai.ProviderOpenAI) && c.EmbeddingModel == "" {
		return fmt.Errorf("EMBEDDING_MODEL is required when EMBEDDING_PROVIDER=openai")
	}

	switch c.LLMProvider {
	case string(ai.ProviderOpenAI):
		if c.AnalysisModel == "" {
			return fmt.Errorf("ANALYSIS_MODEL is required when LLM_PROVIDER=openai")
		}
	case string(ai.ProviderAnthropic):
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
		if !constantTimePrefixMatch(c.AnthropicAPIKey, "sk-ant-") {
			return fmt.Errorf("ANTHROPIC_API_KEY must start with 'sk-ant-'")
		}
		if c.ClaudeModel == "" {
			return fmt.Errorf("CLAUDE_MODEL is required when LLM_PROVIDER=anthropic")
		}
	}

	usesOllama := c.EmbeddingProvider == string(ai.ProviderOllama) || c.LLMProvider == string(ai.ProviderOllama)
	if usesOllama {
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("OLLAMA_BASE_URL is required when an Ollama provider is selected")
		}
		if !strings.HasPrefix(c.OllamaBaseURL, "http://") && !strings.HasPrefix(c.OllamaBaseURL, "https://") {
			return fmt.Errorf("OLLAMA_BASE_URL must start with 'http://' or 'https://'")
		}
		if c.EmbeddingProvider == string(ai.ProviderOllama) && c.OllamaEmbedModel == "" {
			return fmt.Errorf("OLLAMA_EMBED_MODEL is required when EMBEDDING_PROVIDER=ollama")
		}
		if c.LLMProvider == string(ai.ProviderOllama) && c.OllamaModel == "" {
			return fmt.Errorf("OLLAMA_MODEL is required when LLM_PROVIDER=ollama")
		}
	}

	return nil
}

// validateTelegram validates the optional Telegram report settings.
func (c *Config) validateTelegram() error {
	if c.TelegramBotToken == "" {
		return nil
	}

	telegramTokenRegex := regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
	}
	if c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	return nil
}

// NeedsOpenAI reports whether any selected provider talks to OpenAI.
func (c *Config) NeedsOpenAI() bool {
	return c.EmbeddingProvider == string(ai.ProviderOpenAI) || c.LLMProvider == string(ai.ProviderOpenAI)
}

// HasTelegram reports whether Telegram report delivery is configured.
func (c *Config) HasTelegram() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// GetProxyURL returns the appropriate proxy URL for HTTP/HTTPS requests.
func (c *Config) GetProxyURL(isHTTPS bool) string {
	if isHTTPS && c.HTTPSProxy != "" {
		return c.HTTPSProxy
	}
	if c.HTTPProxy != "" {
		return c.HTTPProxy
	}
	return ""
}

// MaxLogSizeBytes converts the configured upload cap to bytes.
func (c *Config) MaxLogSizeBytes() int64 {
	return int64(c.MaxLogSizeMB) * 1024 * 1024
}

// GetLLMModel returns the model name for the selected completion provider.
func (c *Config) GetLLMModel() string {
	switch c.LLMProvider {
	case string(ai.ProviderAnthropic):
		return c.ClaudeModel
	case string(ai.ProviderOllama):
		return c.OllamaModel
	default:
		return c.AnalysisModel
	}
}

// GetEmbeddingModel returns the model name for the selected embedding
// provider.
func (c *Config) GetEmbeddingModel() string {
	if c.EmbeddingProvider == string(ai.ProviderOllama) {
		return c.OllamaEmbedModel
	}
	return c.EmbeddingModel
}

// constantTimePrefixMatch checks if s starts with prefix using
// constant-time comparison. Returns false if s is shorter than prefix.
func constantTimePrefixMatch(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s[:len(prefix)]), []byte(prefix)) == 1
}
