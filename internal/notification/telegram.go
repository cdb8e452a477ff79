// Package notification delivers analysis reports to Telegram. Delivery is
// optional and never blocks the analysis pipeline.
package notification

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/olegiv/logsift-ai-go/internal/analyzer"
	internalerrors "github.com/olegiv/logsift-ai-go/internal/errors"
)

const (
	maxMessageLength = 4096
	// minMessageInterval is the minimum time between messages to the same
	// chat to stay under Telegram rate limits.
	minMessageInterval = 1 * time.Second
	// maxRetries is the maximum number of retry attempts for sending.
	maxRetries = 3
	// baseRetryDelay is the initial delay between retries (doubles each
	// attempt).
	baseRetryDelay = 2 * time.Second
	// maxAnalysisChars caps how much of the analysis text goes into one
	// report.
	maxAnalysisChars = 3000
)

// TelegramClient sends analysis reports to a Telegram chat. Safe for
// concurrent use; sends from concurrent requests are paced through a
// shared schedule.
type TelegramClient struct {
	bot      *tgbotapi.BotAPI
	chatID   int64
	hostname string

	mu           sync.Mutex
	nextSendTime time.Time // earliest time the next message may be sent
}

// NewTelegramClient creates a Telegram client for the given bot token and
// chat.
func NewTelegramClient(botToken string, chatID int64) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		// The token is embedded in API URLs; keep it out of the error.
		return nil, internalerrors.Wrapf(err, "failed to create Telegram bot")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &TelegramClient{
		bot:      bot,
		chatID:   chatID,
		hostname: hostname,
	}, nil
}

// SendAnalysisReport formats and delivers one analysis result.
func (t *TelegramClient) SendAnalysisReport(prompt string, result *analyzer.Result) error {
	message := formatReport(t.hostname, prompt, result, time.Now())

	if err := t.sendToChat(message); err != nil {
		return fmt.Errorf("failed to send analysis report: %w", err)
	}
	return nil
}

// formatReport renders an analysis result as a MarkdownV2 message.
func formatReport(hostname, prompt string, result *analyzer.Result, now time.Time) string {
	var msg strings.Builder

	msg.WriteString("🔍 *Log Analysis Report*\n")
	msg.WriteString(fmt.Sprintf("🖥 Host\\: %s\n", escapeMarkdown(hostname)))
	msg.WriteString(fmt.Sprintf("📅 Date\\: %s\n", escapeMarkdown(now.Format("2006-01-02 15:04:05"))))
	msg.WriteString(fmt.Sprintf("❓ Prompt\\: %s\n\n", escapeMarkdown(prompt)))

	msg.WriteString("📋 *Pipeline Stats*\n")
	msg.WriteString(fmt.Sprintf("• Total Logs\\: %d\n", result.TotalLogs))
	msg.WriteString(fmt.Sprintf("• Filtered\\: %d\n", result.FilteredLogsCount))
	msg.WriteString(fmt.Sprintf("• Analyzed\\: %d\n", result.LogsAnalyzed))
	msg.WriteString(fmt.Sprintf("• Cost\\: %s\n", escapeMarkdown(fmt.Sprintf("$%.6f", result.TotalCostUSD))))
	msg.WriteString(fmt.Sprintf("• Filter Time\\: %s\n", escapeMarkdown(fmt.Sprintf("%.2fs", result.Timing.EmbeddingFilterSeconds))))
	msg.WriteString(fmt.Sprintf("• Analysis Time\\: %s\n\n", escapeMarkdown(fmt.Sprintf("%.2fs", result.Timing.LLMAnalysisSeconds))))

	msg.WriteString("📊 *Analysis*\n")
	analysis := result.Analysis
	if len(analysis) > maxAnalysisChars {
		analysis = analysis[:maxAnalysisChars] + "…"
	}
	msg.WriteString(escapeMarkdown(analysis))
	msg.WriteString("\n")

	return msg.String()
}

// sendToChat sends a message with rate limiting, splitting it when it
// exceeds Telegram's length limit.
func (t *TelegramClient) sendToChat(message string) error {
	for _, msg := range splitMessage(message) {
		t.waitForRateLimit()

		msgConfig := tgbotapi.NewMessage(t.chatID, msg)
		msgConfig.ParseMode = "MarkdownV2"

		if err := t.sendWithRetry(msgConfig); err != nil {
			return err
		}
	}

	return nil
}

// reserveSendSlot claims the next send time on the shared schedule,
// spacing slots by minMessageInterval. Concurrent callers each get their
// own slot.
func (t *TelegramClient) reserveSendSlot() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := t.nextSendTime
	if now := time.Now(); slot.Before(now) {
		slot = now
	}
	t.nextSendTime = slot.Add(minMessageInterval)
	return slot
}

// waitForRateLimit blocks until this caller's reserved send slot.
func (t *TelegramClient) waitForRateLimit() {
	time.Sleep(time.Until(t.reserveSendSlot()))
}

// sendWithRetry sends a message with exponential backoff retry.
func (t *TelegramClient) sendWithRetry(msgConfig tgbotapi.MessageConfig) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := t.bot.Send(msgConfig)
		if err == nil {
			return nil
		}

		lastErr = err

		if isRateLimitError(err) {
			if retryAfter := extractRetryAfter(err); retryAfter > 0 {
				time.Sleep(time.Duration(retryAfter) * time.Second)
				continue
			}
		}

		if attempt < maxRetries {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1)) // 2s, 4s, 8s...
			time.Sleep(delay)
		}
	}

	return internalerrors.Wrapf(lastErr, "failed to send message after %d retries", maxRetries)
}

// isRateLimitError checks if the error is a Telegram rate limit error.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests")
}

// extractRetryAfter extracts the retry_after value from a rate limit
// error, e.g. "Too Many Requests: retry after 30".
func extractRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	errStr := err.Error()
	if idx := strings.Index(strings.ToLower(errStr), "retry after "); idx != -1 {
		remaining := errStr[idx+len("retry after "):]
		var seconds int
		if _, err := fmt.Sscanf(remaining, "%d", &seconds); err == nil {
			return seconds
		}
	}

	// Conservative wait when the value cannot be extracted.
	return 30
}

// splitMessage splits a long message into chunks under Telegram's limit.
func splitMessage(message string) []string {
	if len(message) <= maxMessageLength {
		return []string{message}
	}

	var messages []string
	lines := strings.Split(message, "\n")
	var currentMsg strings.Builder

	for _, line := range lines {
		if currentMsg.Len()+len(line)+1 > maxMessageLength {
			if currentMsg.Len() > 0 {
				messages = append(messages, currentMsg.String())
				currentMsg.Reset()
			}

			// A single oversized line is split mid-line.
			if len(line) > maxMessageLength {
				for i := 0; i < len(line); i += maxMessageLength {
					end := i + maxMessageLength
					if end > len(line) {
						end = len(line)
					}
					messages = append(messages, line[i:end])
				}
				continue
			}
		}

		currentMsg.WriteString(line)
		currentMsg.WriteString("\n")
	}

	if currentMsg.Len() > 0 {
		messages = append(messages, currentMsg.String())
	}

	return messages
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
// See: https://core.telegram.org/bots/api#markdownv2-style
func escapeMarkdown(text string) string {
	specialChars := []string{
		"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!", ":",
	}

	result := text
	for _, char := range specialChars {
		result = strings.ReplaceAll(result, char, "\\"+char)
	}

	return result
}

// Close closes the Telegram client.
func (t *TelegramClient) Close() error {
	t.bot.StopReceivingUpdates()
	return nil
}
