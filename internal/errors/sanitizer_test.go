package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		redacted bool
	}{
		{
			name:     "OpenAI API key",
			input:    "request failed with key sk-proj1234567890abcdefghij",
			redacted: true,
		},
		{
			name:     "Anthropic API key",
			input:    "auth error: sk-ant-REDACTED",
			redacted: true,
		},
		{
			name:     "Telegram bot token",
			input:    "bot 123456789:ABCdefGHIjklMNOpqrsTUVwxyz1234567 rejected",
			redacted: true,
		},
		{
			name:     "Bearer token",
			input:    "header Bearer abc.def.ghi was invalid",
			redacted: true,
		},
		{
			name:     "Clean message",
			input:    "connection timed out after 30s",
			redacted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeString(tt.input)

			if tt.redacted {
				if !strings.Contains(result, "[REDACTED]") {
					t.Errorf("Expected redaction in %q", result)
				}
			} else if result != tt.input {
				t.Errorf("Clean string was modified: %q -> %q", tt.input, result)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	if SanitizeError(nil) != nil {
		t.Error("SanitizeError(nil) should return nil")
	}

	clean := errors.New("plain failure")
	if SanitizeError(clean) != clean {
		t.Error("Clean errors should be returned unchanged to preserve the chain")
	}

	dirty := errors.New("denied for sk-ant-REDACTED")
	sanitized := SanitizeError(dirty)
	if strings.Contains(sanitized.Error(), "secretsecret") {
		t.Errorf("Credential survived sanitization: %q", sanitized.Error())
	}
	if !errors.Is(sanitized, dirty) {
		t.Error("Sanitized error should unwrap to the original")
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "context") != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	base := errors.New("boom with sk-proj1234567890abcdefghij")
	wrapped := Wrapf(base, "call %d failed", 2)

	if !strings.HasPrefix(wrapped.Error(), "call 2 failed: ") {
		t.Errorf("Unexpected wrap format: %q", wrapped.Error())
	}
	if strings.Contains(wrapped.Error(), "sk-proj") {
		t.Errorf("Credential survived wrapping: %q", wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("Wrapped error should unwrap to the original")
	}
}

func TestContainsCredentials(t *testing.T) {
	if !ContainsCredentials(fmt.Sprintf("key=%s", "sk-ant-REDACTED")) {
		t.Error("Expected credential detection")
	}
	if ContainsCredentials("nothing to see here") {
		t.Error("False positive credential detection")
	}
}
