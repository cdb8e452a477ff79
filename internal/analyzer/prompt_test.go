package analyzer

import (
	"strings"
	"testing"
)

func TestBuildLogContext(t *testing.T) {
	logs := []map[string]any{
		{
			"message":          "connection refused",
			"timestamp":        "2026-08-01T10:00:00Z",
			SimilarityScoreKey: 0.9137,
		},
		{
			"message":          "retrying request",
			SimilarityScoreKey: 0.5,
		},
	}

	context := buildLogContext(logs)
	lines := strings.Split(context, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), context)
	}

	if lines[0] != "Log 1 (similarity: 0.914): [2026-08-01T10:00:00Z] connection refused" {
		t.Errorf("line 1 = %q", lines[0])
	}
	if lines[1] != "Log 2 (similarity: 0.500): retrying request" {
		t.Errorf("line 2 = %q", lines[1])
	}
}

func TestExtractTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{
			name:   "timestamp field",
			record: map[string]any{"timestamp": "2026-08-01T10:00:00Z"},
			want:   "2026-08-01T10:00:00Z",
		},
		{
			name:   "at-timestamp field",
			record: map[string]any{"@timestamp": "2026-08-01"},
			want:   "2026-08-01",
		},
		{
			name:   "timestamp beats created_at",
			record: map[string]any{"created_at": "later", "timestamp": "first"},
			want:   "first",
		},
		{
			name:   "empty timestamp skipped",
			record: map[string]any{"timestamp": "", "date": "2026-08-01"},
			want:   "2026-08-01",
		},
		{
			name:   "no timestamp",
			record: map[string]any{"message": "hello"},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTimestamp(tt.record); got != tt.want {
				t.Errorf("extractTimestamp() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractMainContent(t *testing.T) {
	t.Run("message field wins", func(t *testing.T) {
		record := map[string]any{"message": "disk full", "host": "web-1"}
		if got := extractMainContent(record); got != "disk full" {
			t.Errorf("extractMainContent() = %q", got)
		}
	})

	t.Run("msg over later fields", func(t *testing.T) {
		record := map[string]any{"msg": "short", "log": "longer text"}
		if got := extractMainContent(record); got != "short" {
			t.Errorf("extractMainContent() = %q", got)
		}
	})

	t.Run("key=value fallback is sorted and capped", func(t *testing.T) {
		record := map[string]any{
			"zeta":             "z",
			"alpha":            "a",
			"beta":             "b",
			"gamma":            "g",
			"delta":            "d",
			"epsilon":          "e",
			SimilarityScoreKey: 0.5,
		}
		got := extractMainContent(record)
		if got != "alpha=a; beta=b; delta=d; epsilon=e; gamma=g" {
			t.Errorf("extractMainContent() = %q", got)
		}
	})

	t.Run("long values skipped in fallback", func(t *testing.T) {
		record := map[string]any{
			"blob": strings.Repeat("x", 200),
			"code": float64(503),
		}
		if got := extractMainContent(record); got != "code=503" {
			t.Errorf("extractMainContent() = %q", got)
		}
	})

	t.Run("internal keys excluded from fallback", func(t *testing.T) {
		record := map[string]any{
			SimilarityScoreKey: 0.7,
			ExtractedTextKey:   "ignored",
			"status":           "down",
		}
		if got := extractMainContent(record); got != "status=down" {
			t.Errorf("extractMainContent() = %q", got)
		}
	})
}

func TestBuildAnalysisPrompt(t *testing.T) {
	prompt := buildAnalysisPrompt("payment failures", "Log 1 (similarity: 0.900): declined")

	for _, want := range []string{
		`"payment failures"`,
		"Log 1 (similarity: 0.900): declined",
		"**Summary**",
		"**Root Cause**",
		"**Critical Logs**",
		"**Recommended Actions**",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("analysis prompt missing %q", want)
		}
	}
}
