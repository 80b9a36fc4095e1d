package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"newswire/internal/embedding"
	"newswire/internal/store"
)

// EmbeddingStore is the storage slice the embedding service needs.
type EmbeddingStore interface {
	ClaimUnembedded(ctx context.Context, worker string, batch int, lease time.Duration) ([]store.Chunk, error)
	WriteEmbedding(ctx context.Context, chunkID int64, vec []float32) error
	RequeueEmbedding(ctx context.Context, chunkID int64, maxAttempts int) error
	Diag(ctx context.Context, level, component, message string, details map[string]any)
}

// Embedding claims chunks without vectors, batch-embeds them, and writes the
// vectors back.
type Embedding struct {
	store       EmbeddingStore
	embedder    embedding.Embedder
	batch       int
	lease       time.Duration
	maxAttempts int
	id          string
}

// NewEmbedding builds the embedding service.
func NewEmbedding(s EmbeddingStore, e embedding.Embedder, batch int, lease time.Duration, maxAttempts int) *Embedding {
	return &Embedding{
		store: s, embedder: e, batch: batch, lease: lease,
		maxAttempts: maxAttempts, id: "embed-" + uuid.NewString()[:8],
	}
}

func (e *Embedding) Name() string { return "embedding" }

// Tick claims one batch and writes vectors. On partial failure the good
// vectors are kept; each failed chunk is requeued with an attempt bump and
// becomes terminal after maxAttempts.
func (e *Embedding) Tick(ctx context.Context) (int, error) {
	chunks, err := e.store.ClaimUnembedded(ctx, e.id, e.batch, e.lease)
	if err != nil {
		return 0, fmt.Errorf("claim chunks: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		// The whole call failed (or failed part-way): requeue everything the
		// API did not answer for, keep whatever arrived.
		log.Warn().Err(err).Int("chunks", len(chunks)).Msg("embedding batch failed")
		for i := len(vecs); i < len(chunks); i++ {
			if rerr := e.store.RequeueEmbedding(ctx, chunks[i].ID, e.maxAttempts); rerr != nil {
				log.Error().Err(rerr).Int64("chunk_id", chunks[i].ID).Msg("requeue after batch failure")
			}
		}
	}

	written := 0
	for i, vec := range vecs {
		chunk := chunks[i]
		werr := e.store.WriteEmbedding(ctx, chunk.ID, vec)
		if werr == nil {
			written++
			continue
		}
		if errors.Is(werr, store.ErrDimensionMismatch) {
			e.store.Diag(ctx, store.DiagError, "embedding", "dimension_mismatch", map[string]any{
				"chunk_id": chunk.ID, "article_id": chunk.ArticleID,
				"got": len(vec), "want": e.embedder.Dimension(),
			})
		} else {
			log.Error().Err(werr).Int64("chunk_id", chunk.ID).Msg("write embedding")
		}
		if rerr := e.store.RequeueEmbedding(ctx, chunk.ID, e.maxAttempts); rerr != nil {
			log.Error().Err(rerr).Int64("chunk_id", chunk.ID).Msg("requeue embedding")
		}
	}
	return written, nil
}
