package chunking

import (
	"regexp"
	"strings"
)

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// ParagraphChunks is the deterministic fallback when the model response
// cannot be parsed: split the clean text on blank lines into body chunks
// with no topic. Paragraphs that readability glued together stay together.
func ParagraphChunks(cleanText string) []Raw {
	var raws []Raw
	for _, para := range blankLineRe.Split(cleanText, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		raws = append(raws, Raw{Text: para, Type: "body"})
	}
	if len(raws) == 0 && strings.TrimSpace(cleanText) != "" {
		raws = append(raws, Raw{Text: strings.TrimSpace(cleanText), Type: "body"})
	}
	return raws
}
