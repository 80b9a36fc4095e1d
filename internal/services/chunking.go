package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"newswire/internal/chunking"
	"newswire/internal/store"
)

// ChunkingStore is the storage slice the chunking service needs.
type ChunkingStore interface {
	ClaimUnchunked(ctx context.Context, worker string, batch int, lease time.Duration) ([]store.Article, error)
	ReplaceChunks(ctx context.Context, articleID int64, chunks []store.Chunk) error
	MarkChunkingError(ctx context.Context, articleID int64) error
	Diag(ctx context.Context, level, component, message string, details map[string]any)
}

// supportedLanguages the chunking model handles; empty language means the
// feed did not say and is treated as supported.
var supportedLanguages = map[string]bool{"": true, "en": true, "en-us": true, "en-gb": true, "english": true}

// Chunking claims unchunked articles and persists their chunk streams.
type Chunking struct {
	store   ChunkingStore
	chunker *chunking.Chunker
	batch   int
	lease   time.Duration
	id      string
}

// NewChunking builds the chunking service.
func NewChunking(s ChunkingStore, c *chunking.Chunker, batch int, lease time.Duration) *Chunking {
	return &Chunking{store: s, chunker: c, batch: batch, lease: lease, id: "chunk-" + uuid.NewString()[:8]}
}

func (c *Chunking) Name() string { return "chunking" }

// Tick claims one batch. Per-article failures advance that article to
// chunking error and never stop the batch; an unreachable LLM releases the
// claim back via lease expiry instead.
func (c *Chunking) Tick(ctx context.Context) (int, error) {
	articles, err := c.store.ClaimUnchunked(ctx, c.id, c.batch, c.lease)
	if err != nil {
		return 0, fmt.Errorf("claim articles: %w", err)
	}
	processed := 0
	for _, article := range articles {
		if !supportedLanguages[normalizeLang(article.Language)] {
			if err := c.store.MarkChunkingError(ctx, article.ID); err != nil {
				log.Error().Err(err).Int64("article_id", article.ID).Msg("mark unsupported language")
			}
			c.store.Diag(ctx, store.DiagWarn, "chunking", "unsupported language", map[string]any{
				"article_id": article.ID, "language": article.Language,
			})
			continue
		}

		result, err := c.chunker.Chunk(ctx, article.Title, article.CleanText)
		if err != nil {
			// Transient: leave the claim to expire so another tick retries.
			log.Warn().Err(err).Int64("article_id", article.ID).Msg("chunking deferred")
			continue
		}
		if result.Fallback {
			c.store.Diag(ctx, store.DiagWarn, "chunking", "parse_error", map[string]any{
				"article_id": article.ID, "error": result.ParseErr.Error(), "chunks": len(result.Chunks),
			})
		}
		if err := c.store.ReplaceChunks(ctx, article.ID, result.Chunks); err != nil {
			log.Error().Err(err).Int64("article_id", article.ID).Msg("persist chunks")
			if err := c.store.MarkChunkingError(ctx, article.ID); err != nil {
				log.Error().Err(err).Int64("article_id", article.ID).Msg("mark chunking error")
			}
			c.store.Diag(ctx, store.DiagError, "chunking", "persist failed", map[string]any{
				"article_id": article.ID, "error": err.Error(),
			})
			continue
		}
		processed++
	}
	return processed, nil
}

func normalizeLang(lang string) string {
	out := make([]byte, 0, len(lang))
	for i := 0; i < len(lang); i++ {
		ch := lang[i]
		if ch >= 'A' && ch <= 'Z' {
			ch += 'a' - 'A'
		}
		if ch == '_' {
			ch = '-'
		}
		out = append(out, ch)
	}
	return string(out)
}
