package trends

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("The quick, BROWN fox; jumps over the lazy dog!")
	require.NotContains(t, tokens, "the")
	require.Contains(t, tokens, "quick")
	require.Contains(t, tokens, "brown")
	require.Contains(t, tokens, "fox")
}

func TestClusterKeywords_PrefersClusterSpecificTerms(t *testing.T) {
	clusters := map[int]string{
		0: strings.Repeat("interest rates. ", 10),
		1: strings.Repeat("penalty shootout. ", 10),
	}
	kw0 := ClusterKeywords(clusters, 0, 6)
	require.NotEmpty(t, kw0)
	joined := strings.Join(kw0, " ")
	require.Contains(t, joined, "rates")
	require.NotContains(t, joined, "shootout")

	kw1 := ClusterKeywords(clusters, 1, 6)
	require.Contains(t, strings.Join(kw1, " "), "penalty")
}

func TestClusterKeywords_IncludesBigrams(t *testing.T) {
	clusters := map[int]string{
		0: strings.Repeat("interest rates interest rates interest rates ", 5),
		1: strings.Repeat("unrelated filler text about weather patterns ", 5),
	}
	kws := ClusterKeywords(clusters, 0, 6)
	var hasBigram bool
	for _, k := range kws {
		if strings.Contains(k, " ") {
			hasBigram = true
		}
	}
	require.True(t, hasBigram, "expected a bigram among %v", kws)
}

func TestClusterKeywords_MissingCluster(t *testing.T) {
	require.Nil(t, ClusterKeywords(map[int]string{0: "some text here"}, 9, 6))
}

func TestLabel(t *testing.T) {
	require.Equal(t, "", Label(nil))
	require.Equal(t, "rates", Label([]string{"rates"}))
	require.Equal(t, "rates / inflation", Label([]string{"rates", "inflation", "bank"}))
}
