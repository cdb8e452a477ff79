package config

import (
	"strings"
	"testing"
)

// checkError is a helper to verify error expectations in tests
func checkError(t *testing.T, err error, expectError bool, errorContains string) {
	t.Helper()
	if expectError {
		if err == nil {
			t.Error("Expected an error but got none")
			return
		}
		if errorContains != "" && !strings.Contains(err.Error(), errorContains) {
			t.Errorf("Expected error to contain '%s', got '%s'", errorContains, err.Error())
		}
	} else {
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}
}

// validOpenAIConfig returns a config that passes validation with the
// default OpenAI providers. Tests mutate single fields from this base.
func validOpenAIConfig() *Config {
	return &Config{
		EmbeddingProvider:  "openai",
		LLMProvider:        "openai",
		OpenAIAPIKey:       "sk-test-key-1234567890",
		EmbeddingModel:     "text-embedding-3-small",
		AnalysisModel:      "gpt-4o-mini",
		EmbeddingBatchSize: 200,
		TopNSimilarLogs:    100,
		MaxLogsForAnalysis: 100,
		MaxReturnedLogs:    20,
		MaxLogSizeMB:       10,
		LogLevel:           "info",
		AITimeoutSeconds:   120,
		AIMaxTokens:        1000,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		expectError   bool
		errorContains string
	}{
		{
			name:        "Valid OpenAI config",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name: "Missing OpenAI API key",
			mutate: func(c *Config) {
				c.OpenAIAPIKey = ""
			},
			expectError:   true,
			errorContains: "OPENAI_API_KEY is required",
		},
		{
			name: "Invalid OpenAI API key format",
			mutate: func(c *Config) {
				c.OpenAIAPIKey = "invalid-key"
			},
			expectError:   true,
			errorContains: "must start with 'sk-'",
		},
		{
			name: "Invalid embedding provider",
			mutate: func(c *Config) {
				c.EmbeddingProvider = "anthropic"
			},
			expectError:   true,
			errorContains: "EMBEDDING_PROVIDER",
		},
		{
			name: "Invalid LLM provider",
			mutate: func(c *Config) {
				c.LLMProvider = "gemini"
			},
			expectError:   true,
			errorContains: "LLM_PROVIDER",
		},
		{
			name: "Anthropic completion without key",
			mutate: func(c *Config) {
				c.LLMProvider = "anthropic"
				c.ClaudeModel = "claude-sonnet-4-5-20250929"
			},
			expectError:   true,
			errorContains: "ANTHROPIC_API_KEY is required",
		},
		{
			name: "Anthropic key with wrong prefix",
			mutate: func(c *Config) {
				c.LLMProvider = "anthropic"
				c.ClaudeModel = "claude-sonnet-4-5-20250929"
				c.AnthropicAPIKey = "sk-wrong-prefix"
			},
			expectError:   true,
			errorContains: "must start with 'sk-ant-'",
		},
		{
			name: "Valid Anthropic completion",
			mutate: func(c *Config) {
				c.LLMProvider = "anthropic"
				c.ClaudeModel = "claude-sonnet-4-5-20250929"
				c.AnthropicAPIKey = "sk-ant-test-key-1234567890"
			},
			expectError: false,
		},
		{
			name: "Ollama embedding without base URL",
			mutate: func(c *Config) {
				c.EmbeddingProvider = "ollama"
				c.OllamaEmbedModel = "nomic-embed-text"
			},
			expectError:   true,
			errorContains: "OLLAMA_BASE_URL is required",
		},
		{
			name: "Ollama base URL without scheme",
			mutate: func(c *Config) {
				c.EmbeddingProvider = "ollama"
				c.OllamaBaseURL = "localhost:11434"
				c.OllamaEmbedModel = "nomic-embed-text"
			},
			expectError:   true,
			errorContains: "must start with 'http://' or 'https://'",
		},
		{
			name: "Ollama embedding without embed model",
			mutate: func(c *Config) {
				c.EmbeddingProvider = "ollama"
				c.OllamaBaseURL = "http://localhost:11434"
			},
			expectError:   true,
			errorContains: "OLLAMA_EMBED_MODEL is required",
		},
		{
			name: "Valid all-Ollama config without OpenAI key",
			mutate: func(c *Config) {
				c.EmbeddingProvider = "ollama"
				c.LLMProvider = "ollama"
				c.OpenAIAPIKey = ""
				c.OllamaBaseURL = "http://localhost:11434"
				c.OllamaModel = "llama3.3:latest"
				c.OllamaEmbedModel = "nomic-embed-text"
			},
			expectError: false,
		},
		{
			name: "Batch size out of range",
			mutate: func(c *Config) {
				c.EmbeddingBatchSize = 0
			},
			expectError:   true,
			errorContains: "EMBEDDING_BATCH_SIZE",
		},
		{
			name: "TopN out of range",
			mutate: func(c *Config) {
				c.TopNSimilarLogs = 0
			},
			expectError:   true,
			errorContains: "TOP_N_SIMILAR_LOGS",
		},
		{
			name: "Max log size out of range",
			mutate: func(c *Config) {
				c.MaxLogSizeMB = 500
			},
			expectError:   true,
			errorContains: "MAX_LOG_SIZE_MB",
		},
		{
			name: "Invalid log level",
			mutate: func(c *Config) {
				c.LogLevel = "verbose"
			},
			expectError:   true,
			errorContains: "LOG_LEVEL",
		},
		{
			name: "AI timeout out of range",
			mutate: func(c *Config) {
				c.AITimeoutSeconds = 5
			},
			expectError:   true,
			errorContains: "AI_TIMEOUT_SECONDS",
		},
		{
			name: "AI max tokens out of range",
			mutate: func(c *Config) {
				c.AIMaxTokens = 50
			},
			expectError:   true,
			errorContains: "AI_MAX_TOKENS",
		},
		{
			name: "Telegram token with bad format",
			mutate: func(c *Config) {
				c.TelegramBotToken = "not-a-token"
				c.TelegramChatID = -1001234567890
			},
			expectError:   true,
			errorContains: "TELEGRAM_BOT_TOKEN has invalid format",
		},
		{
			name: "Telegram token without chat ID",
			mutate: func(c *Config) {
				c.TelegramBotToken = "123456789:ABCdefGHIjklMNOpqrsTUVwxyz"
			},
			expectError:   true,
			errorContains: "TELEGRAM_CHAT_ID is required",
		},
		{
			name: "Valid Telegram settings",
			mutate: func(c *Config) {
				c.TelegramBotToken = "123456789:ABCdefGHIjklMNOpqrsTUVwxyz"
				c.TelegramChatID = -1001234567890
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validOpenAIConfig()
			tt.mutate(cfg)
			checkError(t, cfg.Validate(), tt.expectError, tt.errorContains)
		})
	}
}

func TestGetProxyURL(t *testing.T) {
	cfg := &Config{HTTPProxy: "http://proxy:3128", HTTPSProxy: "http://sproxy:3128"}

	if got := cfg.GetProxyURL(true); got != "http://sproxy:3128" {
		t.Errorf("GetProxyURL(true) = %q", got)
	}
	if got := cfg.GetProxyURL(false); got != "http://proxy:3128" {
		t.Errorf("GetProxyURL(false) = %q", got)
	}

	cfg.HTTPSProxy = ""
	if got := cfg.GetProxyURL(true); got != "http://proxy:3128" {
		t.Errorf("GetProxyURL(true) without HTTPS proxy = %q", got)
	}

	empty := &Config{}
	if got := empty.GetProxyURL(true); got != "" {
		t.Errorf("GetProxyURL on empty config = %q", got)
	}
}

func TestGetLLMModel(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "gpt-4o-mini"},
		{"anthropic", "claude-sonnet-4-5-20250929"},
		{"ollama", "llama3.3:latest"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := &Config{
				LLMProvider:   tt.provider,
				AnalysisModel: "gpt-4o-mini",
				ClaudeModel:   "claude-sonnet-4-5-20250929",
				OllamaModel:   "llama3.3:latest",
			}
			if got := cfg.GetLLMModel(); got != tt.want {
				t.Errorf("GetLLMModel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetEmbeddingModel(t *testing.T) {
	cfg := &Config{
		EmbeddingProvider: "openai",
		EmbeddingModel:    "text-embedding-3-small",
		OllamaEmbedModel:  "nomic-embed-text",
	}
	if got := cfg.GetEmbeddingModel(); got != "text-embedding-3-small" {
		t.Errorf("GetEmbeddingModel() = %q", got)
	}

	cfg.EmbeddingProvider = "ollama"
	if got := cfg.GetEmbeddingModel(); got != "nomic-embed-text" {
		t.Errorf("GetEmbeddingModel() for ollama = %q", got)
	}
}

func TestMaxLogSizeBytes(t *testing.T) {
	cfg := &Config{MaxLogSizeMB: 10}
	if got := cfg.MaxLogSizeBytes(); got != 10*1024*1024 {
		t.Errorf("MaxLogSizeBytes() = %d", got)
	}
}

func TestConstantTimePrefixMatch(t *testing.T) {
	tests := []struct {
		s      string
		prefix string
		want   bool
	}{
		{"sk-ant-key", "sk-ant-", true},
		{"sk-key", "sk-ant-", false},
		{"sk", "sk-ant-", false},
		{"", "sk-", false},
		{"sk-", "sk-", true},
	}

	for _, tt := range tests {
		if got := constantTimePrefixMatch(tt.s, tt.prefix); got != tt.want {
			t.Errorf("constantTimePrefixMatch(%q, %q) = %v, want %v", tt.s, tt.prefix, got, tt.want)
		}
	}
}
