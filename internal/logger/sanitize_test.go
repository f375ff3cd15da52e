package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{name: "empty", input: "", maxLength: 10, want: ""},
		{name: "strips control characters", input: "ran\x1b[31m 5k", maxLength: 50, want: "ran[31m 5k"},
		{name: "keeps newlines", input: "a\nb", maxLength: 50, want: "a\nb"},
		{name: "truncates", input: "abcdefghij", maxLength: 4, want: "abcd..."},
		{name: "repairs invalid utf8", input: "ok\xffok", maxLength: 50, want: "okok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeString(tt.input, tt.maxLength); got != tt.want {
				t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.input, tt.maxLength, got, tt.want)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if got := SanitizeError(nil); got != "" {
		t.Errorf("SanitizeError(nil) = %q, want empty", got)
	}
	long := errors.New(strings.Repeat("x", MaxErrorMessageLength+10))
	if got := SanitizeError(long); len(got) != MaxErrorMessageLength+3 {
		t.Errorf("SanitizeError length = %d, want %d", len(got), MaxErrorMessageLength+3)
	}
}
