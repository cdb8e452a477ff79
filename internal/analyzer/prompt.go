package analyzer

import (
	"fmt"
	"sort"
	"strings"
)

// systemPrompt frames the completion model as an incident investigator.
const systemPrompt = "You are an expert log analyzer helping with incident investigation. " +
	"Provide concise, actionable insights."

// timestampFields are checked in order when rendering a record for the
// summarizer.
var timestampFields = []string{"timestamp", "time", "@timestamp", "date", "datetime", "created_at"}

// messageFields are checked in order for a record's main content.
var messageFields = []string{"message", "msg", "log", "content", "description"}

// contextExcludedFields never appear in the key=value fallback summary.
var contextExcludedFields = map[string]bool{
	SimilarityScoreKey: true,
	ExtractedTextKey:   true,
	"timestamp":        true,
	"@timestamp":       true,
	"time":             true,
}

// maxFallbackFieldLen caps individual values in the key=value fallback.
const maxFallbackFieldLen = 100

// maxFallbackFields caps how many key=value pairs the fallback includes.
const maxFallbackFields = 5

// buildLogContext renders ranked records as numbered lines for the
// summarization prompt.
func buildLogContext(logs []map[string]any) string {
	lines := make([]string, 0, len(logs))
	for i, record := range logs {
		similarity, _ := record[SimilarityScoreKey].(float64)

		line := fmt.Sprintf("Log %d (similarity: %.3f):", i+1, similarity)
		if ts := extractTimestamp(record); ts != "" {
			line += fmt.Sprintf(" [%s]", ts)
		}
		line += " " + extractMainContent(record)

		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// extractTimestamp returns the first truthy timestamp-like field.
func extractTimestamp(record map[string]any) string {
	for _, field := range timestampFields {
		if value, ok := record[field]; ok && isTruthy(value) {
			return fmt.Sprintf("%v", value)
		}
	}
	return ""
}

// extractMainContent returns the record's message field, or a short
// key=value summary when no message field is present. Keys are sorted so
// the fallback is deterministic.
func extractMainContent(record map[string]any) string {
	for _, field := range messageFields {
		if value, ok := record[field]; ok && isTruthy(value) {
			return fmt.Sprintf("%v", value)
		}
	}

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, maxFallbackFields)
	for _, key := range keys {
		if len(parts) == maxFallbackFields {
			break
		}
		value := record[key]
		if contextExcludedFields[key] || !isTruthy(value) {
			continue
		}
		rendered := fmt.Sprintf("%v", value)
		if len(rendered) >= maxFallbackFieldLen {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", key, rendered))
	}

	return strings.Join(parts, "; ")
}

// buildAnalysisPrompt assembles the user prompt for the summarizer.
func buildAnalysisPrompt(userPrompt, logContext string) string {
	return fmt.Sprintf(`Analyze the following logs for the incident: %q

Logs (ordered by semantic relevance to the incident):
%s

Please provide:
1. **Summary**: What's happening based on these logs?
2. **Root Cause**: Most likely cause of the incident
3. **Critical Logs**: Which specific log entries are most important?
4. **Recommended Actions**: What should be done to resolve this?

Be concise and focus on actionable insights. The logs are already filtered for relevance.`,
		userPrompt, logContext)
}

// isTruthy mirrors the falsy rules used during extraction: nil, empty
// string, false, numeric zero and empty collections are falsy.
func isTruthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
