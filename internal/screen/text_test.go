package screen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short", 10))
	require.Equal(t, "abc…", Truncate("abcdefgh", 4))
	require.Equal(t, "жж…", Truncate("жжжжж", 3))
}

func TestSplit_PrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	require.Equal(t, []string{strings.Repeat("a", 6), strings.Repeat("b", 6)}, Split(text, 10))
}

func TestSplit_RuneSafe(t *testing.T) {
	chunks := Split(strings.Repeat("ж", 25), 10)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		require.LessOrEqual(t, len([]rune(c)), 10)
	}
	require.Equal(t, strings.Repeat("ж", 25), strings.Join(chunks, ""))
}

func TestSplit_Short(t *testing.T) {
	require.Equal(t, []string{"hello"}, Split("hello", 0))
	require.Empty(t, Split("", 10))
}
