package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	assert.Equal(t, 0, tc.CountTokens(""))
	assert.Greater(t, tc.CountTokens("Hello, I want to sell my house in Lekki."), 5)
}

func TestCountTokensNilFallback(t *testing.T) {
	var tc *TokenCounter
	// 4 chars per token estimation when no codec is available.
	assert.Equal(t, 5, tc.CountTokens(strings.Repeat("a", 20)))
}

func TestWithinTokenLimit(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	assert.True(t, tc.WithinTokenLimit("short", 10))
	assert.False(t, tc.WithinTokenLimit(strings.Repeat("word ", 500), 10))
}

func TestTruncateToTokenLimit(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	short := "stays as is"
	assert.Equal(t, short, tc.TruncateToTokenLimit(short, 100))

	long := strings.Repeat("the quick brown fox ", 200)
	truncated := tc.TruncateToTokenLimit(long, 50)
	assert.Less(t, len(truncated), len(long))
	assert.True(t, strings.HasSuffix(truncated, "..."))
	assert.LessOrEqual(t, tc.CountTokens(truncated), 60)
}
