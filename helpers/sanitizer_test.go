package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Clean ASCII untouched",
			input:    "2012-02-13 14:39:22 delivery line",
			expected: "2012-02-13 14:39:22 delivery line",
		},
		{
			name:     "NULL bytes stripped",
			input:    "before\x00after",
			expected: "beforeafter",
		},
		{
			name:     "Invalid UTF-8 byte stripped",
			input:    "abc\xffdef",
			expected: "abcdef",
		},
		{
			name:     "Valid multibyte preserved",
			input:    "почта exim",
			expected: "почта exim",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeUTF8(tt.input))
		})
	}
}
