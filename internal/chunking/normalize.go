package chunking

import (
	"strings"

	"newswire/internal/store"
)

// MaxChunkChars caps the length of a single chunk; longer chunks are
// soft-split at a sentence boundary.
const MaxChunkChars = 4000

// sentence terminators considered for soft splits.
var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// Normalize turns raw model output into the persisted chunk stream: text
// trimmed, empties dropped, over-long chunks split at sentence boundaries,
// indices reassigned densely, and type clamped to the enum.
func Normalize(raws []Raw) []store.Chunk {
	var out []store.Chunk
	for _, r := range raws {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		topic := r.Topic
		if topic != nil && strings.TrimSpace(*topic) == "" {
			topic = nil
		}
		ctype := clampType(r.Type)
		for _, part := range splitLong(text, MaxChunkChars) {
			out = append(out, store.Chunk{
				Index:         len(out),
				Text:          part,
				Topic:         topic,
				Type:          ctype,
				TokenEstimate: approxTokens(part),
			})
		}
	}
	return out
}

func clampType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case store.ChunkIntro:
		return store.ChunkIntro
	case store.ChunkBody:
		return store.ChunkBody
	case store.ChunkConclusion:
		return store.ChunkConclusion
	default:
		return store.ChunkOther
	}
}

// splitLong cuts text into pieces of at most max characters, preferring the
// last sentence boundary in each window and falling back to the last space.
func splitLong(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}
	var parts []string
	for len(text) > max {
		window := text[:max]
		cut := lastSentenceEnd(window)
		if cut <= 0 {
			if i := strings.LastIndexByte(window, ' '); i > max/2 {
				cut = i
			} else {
				cut = max
			}
		}
		piece := strings.TrimSpace(text[:cut])
		if piece != "" {
			parts = append(parts, piece)
		}
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// lastSentenceEnd returns the index just past the last sentence terminator
// in the window, or -1.
func lastSentenceEnd(window string) int {
	best := -1
	for _, end := range sentenceEnders {
		if i := strings.LastIndex(window, end); i >= 0 && i+1 > best {
			best = i + 1
		}
	}
	return best
}

// approxTokens uses a rough 4 char/token heuristic.
func approxTokens(s string) int { return (len(s) + 3) / 4 }
