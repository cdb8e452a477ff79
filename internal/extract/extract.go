package extract

import (
	"encoding/json"
	"strings"
)

// tokenDelimiter joins emitted "key:value" tokens.
const tokenDelimiter = " | "

// DefaultPriorityFields are key-name substrings that mark a field as
// semantically useful for incident matching. Order matters for relevance.
func DefaultPriorityFields() []string {
	return []string{
		"message", "msg", "log", "content", "description",
		"error", "exception", "stacktrace", "stack_trace",
		"level", "severity", "priority",
		"service", "component", "module", "source",
		"containerName", "container_name", "pod", "podName",
		"namespace", "cluster", "host", "hostname",
		"stream", "logger", "category", "body",
	}
}

// DefaultIdentifierIndicators are key-name substrings that mark a field as
// an identifier or timestamp, which carries little semantic signal.
func DefaultIdentifierIndicators() []string {
	return []string{"id", "uid", "guid", "uuid", "hash", "time", "stamp", "date"}
}

// Extractor builds embedding text from log records. The priority and
// identifier lists are injected so deployments can tune field selection
// without touching the algorithm.
type Extractor struct {
	priorityFields       []string
	identifierIndicators []string
}

// NewExtractor creates an Extractor with the default field heuristics.
func NewExtractor() *Extractor {
	return &Extractor{
		priorityFields:       DefaultPriorityFields(),
		identifierIndicators: DefaultIdentifierIndicators(),
	}
}

// NewExtractorWithFields creates an Extractor with custom heuristics.
// Empty slices fall back to the defaults.
func NewExtractorWithFields(priorityFields, identifierIndicators []string) *Extractor {
	e := NewExtractor()
	if len(priorityFields) > 0 {
		e.priorityFields = priorityFields
	}
	if len(identifierIndicators) > 0 {
		e.identifierIndicators = identifierIndicators
	}
	return e
}

// Extract flattens the record and emits "key:value" tokens in two passes:
// first every field whose key contains a priority substring (scalar values
// only), then the remaining fields except identifier/timestamp-like keys
// and falsy values. Tokens are joined with " | ". If nothing qualifies the
// whole flattened record is rendered instead, so the result is never empty
// and never errors for any JSON-like input.
func (e *Extractor) Extract(record map[string]any) string {
	fields := Flatten(record)

	var tokens []string
	included := make(map[string]bool, len(fields))

	// Priority pass. Substring match against the key, not exact field
	// names, so "error.message" matches both "error" and "message".
	for _, f := range fields {
		if included[f.Path] {
			continue
		}
		if e.matchesPriority(f.Path) && isScalar(f.Value) {
			tokens = append(tokens, f.Path+":"+stringifyValue(f.Value))
			included[f.Path] = true
		}
	}

	// Secondary pass: everything else except low-value fields.
	for _, f := range fields {
		if included[f.Path] {
			continue
		}
		if e.IsIdentifierField(f.Path) || isFalsy(f.Value) {
			continue
		}
		tokens = append(tokens, f.Path+":"+stringifyValue(f.Value))
		included[f.Path] = true
	}

	if len(tokens) == 0 {
		return renderFields(fields)
	}
	return strings.Join(tokens, tokenDelimiter)
}

// IsIdentifierField reports whether the key looks like an identifier or
// timestamp field (case-insensitive substring match).
func (e *Extractor) IsIdentifierField(key string) bool {
	lower := strings.ToLower(key)
	for _, indicator := range e.identifierIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func (e *Extractor) matchesPriority(key string) bool {
	for _, field := range e.priorityFields {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}

// isScalar reports whether v is a string, number, or boolean. JSON decoding
// into map[string]any yields float64 for all numbers; json.Number is
// accepted for callers using Decoder.UseNumber.
func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, int, int64, bool, json.Number:
		return true
	default:
		return false
	}
}

// isFalsy reports whether v is nil, an empty string, zero, false, or an
// empty collection.
func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	case int:
		return val == 0
	case int64:
		return val == 0
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
