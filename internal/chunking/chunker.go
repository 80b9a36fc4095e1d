package chunking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"newswire/internal/store"
)

// Generator issues one prompt to the external model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result carries the normalized chunk stream plus how it was obtained, so
// the service layer can record a parse_error diagnostic on fallback.
type Result struct {
	Chunks   []store.Chunk
	Fallback bool
	ParseErr error
}

// Chunker segments article bodies via the LLM, with a deterministic
// paragraph fallback for protocol violations.
type Chunker struct {
	gen Generator
}

// New builds a chunker over a generate client.
func New(gen Generator) *Chunker {
	return &Chunker{gen: gen}
}

const promptTemplate = `Split the article below into semantically coherent chunks.
Respond with ONLY a JSON array; each element is an object with fields:
  "text"  — the chunk text, verbatim from the article
  "topic" — a short topic label, or null
  "type"  — one of "intro", "body", "conclusion"
Do not add commentary before or after the JSON.

Title: %s

Article:
%s`

// Chunk segments one article. A transport failure (endpoint down, breaker
// open) is returned as an error so the claim can retry later; only a
// response that parses as none of the accepted shapes takes the paragraph
// fallback.
func (c *Chunker) Chunk(ctx context.Context, title, cleanText string) (Result, error) {
	prompt := fmt.Sprintf(promptTemplate, title, cleanText)
	response, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{}, fmt.Errorf("llm unavailable: %w", err)
		}
		return Result{}, fmt.Errorf("llm generate: %w", err)
	}

	raws, parseErr := ParseResponse(response)
	if parseErr != nil {
		log.Debug().Err(parseErr).Str("head", head(response, 120)).Msg("chunk response unparseable, using paragraph fallback")
		raws = ParagraphChunks(cleanText)
		return Result{Chunks: Normalize(raws), Fallback: true, ParseErr: parseErr}, nil
	}

	chunks := Normalize(raws)
	if len(chunks) == 0 {
		// Parsed but empty after normalization; treat like a violation.
		raws = ParagraphChunks(cleanText)
		return Result{Chunks: Normalize(raws), Fallback: true, ParseErr: fmt.Errorf("parsed payload normalized to zero chunks")}, nil
	}
	return Result{Chunks: chunks}, nil
}

func head(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n] + "…"
	}
	return s
}
