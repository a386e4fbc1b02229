package ttylog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNewlines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"no newline", "abc", "abc"},
		{"bare lf", "a\nb", "a\r\nb"},
		{"trailing lf", "ls\n", "ls\r\n"},
		{"consecutive", "\n\n", "\r\n\r\n"},
		{"lone cr untouched", "a\rb", "a\rb"},
		// Existing CRLF gains a second CR. Kept for compatibility.
		{"crlf doubled cr", "a\r\nb", "a\r\r\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(NormalizeNewlines([]byte(tt.input))))
		})
	}
}

func TestNormalizeNewlinesDoesNotAlias(t *testing.T) {
	in := []byte("abc")
	out := NormalizeNewlines(in)
	out[0] = 'x'
	assert.Equal(t, "abc", string(in))
}
