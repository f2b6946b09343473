package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple words", "reset your password", []string{"reset", "your", "password"}},
		{"punctuation stripped", "what's the on-call rotation?", []string{"what", "the", "on", "call", "rotation"}},
		{"case folded", "Kubernetes POD restart", []string{"kubernetes", "pod", "restart"}},
		{"digits kept", "error 503 in v2", []string{"error", "503", "in", "v2"}},
		{"single letters dropped", "a b c plan", []string{"plan"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "how do i reset", NormalizeText("  How   do I\treset\n"))
	assert.Equal(t, NormalizeText("Reset Password"), NormalizeText("reset   password"))
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap(DefaultStopWords)
	got := FilterStopWords([]string{"the", "password", "is", "expired"}, stop)
	assert.Equal(t, []string{"password", "expired"}, got)
}
