package trends

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// stopwords filtered from keyword candidates.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "he": true, "her": true, "his": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true, "said": true,
	"she": true, "that": true, "the": true, "their": true, "they": true,
	"this": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "after": true, "also": true, "been": true, "more": true,
	"new": true, "not": true, "one": true, "other": true, "than": true,
	"who": true, "would": true, "about": true, "into": true, "over": true,
}

// Tokenize lowercases, strips punctuation, and filters stopwords and
// single-character tokens.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = nonWordRe.ReplaceAllString(text, " ")
	words := strings.Fields(text)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 || stopwords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// terms emits unigrams and bigrams for one document.
func terms(text string) []string {
	tokens := Tokenize(text)
	out := make([]string, 0, len(tokens)*2)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// ClusterKeywords ranks terms of one cluster against the whole corpus with
// class-TF-IDF: tf(term, cluster) · log(1 + avgTermsPerCluster / corpusFreq).
// clusters maps cluster id to its concatenated text; the return value holds
// the top k terms for the requested cluster.
func ClusterKeywords(clusters map[int]string, clusterID, k int) []string {
	corpusFreq := make(map[string]float64)
	totalTerms := 0.0
	perCluster := make(map[int]map[string]float64, len(clusters))
	for id, text := range clusters {
		counts := make(map[string]float64)
		for _, t := range terms(text) {
			counts[t]++
			corpusFreq[t]++
			totalTerms++
		}
		perCluster[id] = counts
	}
	counts := perCluster[clusterID]
	if len(counts) == 0 || len(clusters) == 0 {
		return nil
	}

	clusterTotal := 0.0
	for _, c := range counts {
		clusterTotal += c
	}
	avgPerCluster := totalTerms / float64(len(clusters))

	type scored struct {
		term  string
		score float64
	}
	ranked := make([]scored, 0, len(counts))
	for term, c := range counts {
		tf := c / clusterTotal
		idf := math.Log(1 + avgPerCluster/corpusFreq[term])
		ranked = append(ranked, scored{term: term, score: tf * idf})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].term < ranked[j].term
	})
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].term
	}
	return out
}

// Label joins the top two keywords into a human-readable cluster label.
func Label(keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	if len(keywords) == 1 {
		return keywords[0]
	}
	return keywords[0] + " / " + keywords[1]
}
