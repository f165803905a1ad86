package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncateBytesLeavesShortContentAlone(t *testing.T) {
	s, truncated := TruncateBytes("short content")
	require.False(t, truncated)
	require.Equal(t, "short content", s)
}

func TestTruncateBytesCutsOversizedContent(t *testing.T) {
	big := strings.Repeat("a", rowSizeGuardBytes+100)
	s, truncated := TruncateBytes(big)
	require.True(t, truncated)
	require.LessOrEqual(t, len(s), rowSizeGuardBytes)
	require.Contains(t, s, "[truncated]")
}

func TestTruncateTokensLeavesShortContentAlone(t *testing.T) {
	s, truncated := TruncateTokens("hello world", 100)
	require.False(t, truncated)
	require.Equal(t, "hello world", s)
}

func TestTruncateTokensCutsLongContent(t *testing.T) {
	big := strings.Repeat("hello world ", 2000)
	s, truncated := TruncateTokens(big, 10)
	require.True(t, truncated)
	require.Contains(t, s, "[truncated]")
	require.Less(t, len(s), len(big))
}

func TestCountTokensPositiveForNonEmptyText(t *testing.T) {
	require.GreaterOrEqual(t, CountTokens("some text to count"), 1)
}
