package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	require.Equal(t, "hello world", NormalizeText("  Hello \t\n  WORLD  "))
	// NFC: decomposed é (e + combining acute) equals the precomposed form.
	require.Equal(t, NormalizeText("café"), NormalizeText("café"))
}

func TestTextHash(t *testing.T) {
	// Whitespace and case variations fingerprint identically.
	require.Equal(t, TextHash("The  Quick\nBrown Fox"), TextHash("the quick brown fox"))
	require.NotEqual(t, TextHash("alpha"), TextHash("beta"))
	require.Len(t, TextHash("x"), 64)
}

func TestNormalizeTitle(t *testing.T) {
	require.Equal(t, "breaking: markets rally", NormalizeTitle("  Breaking:   Markets\tRally "))
}

func TestCollapseBlankRuns(t *testing.T) {
	in := "  line one  \n\n\n\n line two \n\n line three \n\n\n"
	require.Equal(t, "line one\n\nline two\n\nline three", collapseBlankRuns(in))
}
