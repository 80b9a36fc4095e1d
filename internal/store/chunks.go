package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
)

// ErrDimensionMismatch is returned when a vector of the wrong length would be
// written. The chunk is never persisted with a bad vector.
var ErrDimensionMismatch = fmt.Errorf("embedding dimension mismatch")

// ClaimUnembedded claims chunks whose embedding is still NULL and whose
// embedding has not failed terminally.
func (s *Store) ClaimUnembedded(ctx context.Context, worker string, batch int, lease time.Duration) ([]Chunk, error) {
	rows, err := s.Pool.Query(ctx, `
		UPDATE article_chunks SET claimed_at = now(), claimed_by = $1
		WHERE chunk_id IN (
			SELECT chunk_id FROM article_chunks
			WHERE embedding IS NULL AND embedding_status = 'pending'
			  AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $2))
			ORDER BY chunk_id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING chunk_id, article_id, chunk_index, text, topic, type, token_estimate`,
		worker, lease.Seconds(), batch)
	if err != nil {
		return nil, fmt.Errorf("claim unembedded chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.Index, &c.Text, &c.Topic,
			&c.Type, &c.TokenEstimate); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// WriteEmbedding persists a chunk's vector and releases the claim. A vector
// whose length differs from the configured dimension is refused.
func (s *Store) WriteEmbedding(ctx context.Context, chunkID int64, vec []float32) error {
	if len(vec) != s.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.dim)
	}
	_, err := s.Pool.Exec(ctx, `
		UPDATE article_chunks SET embedding = $2, embedding_status = 'done',
			claimed_at = NULL, claimed_by = NULL
		WHERE chunk_id = $1`, chunkID, pgvector.NewVector(vec))
	return err
}

// RequeueEmbedding returns a chunk to the embedding queue with an incremented
// attempt count, or terminates it once maxAttempts is reached.
func (s *Store) RequeueEmbedding(ctx context.Context, chunkID int64, maxAttempts int) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE article_chunks SET
			embedding_attempt_count = embedding_attempt_count + 1,
			embedding_status = CASE WHEN embedding_attempt_count + 1 >= $2 THEN 'error' ELSE 'pending' END,
			claimed_at = NULL, claimed_by = NULL
		WHERE chunk_id = $1`, chunkID, maxAttempts)
	return err
}

// PopulateFTS fills fts_vector for up to batch chunks, choosing the
// text-search configuration from the article's language where it maps to an
// installed regconfig and falling back to the configured default otherwise.
// Returns the number of chunks indexed.
func (s *Store) PopulateFTS(ctx context.Context, defaultConfig string, batch int) (int64, error) {
	// regconfig whitelist; anything else falls through to the default.
	tag, err := s.Pool.Exec(ctx, `
		UPDATE article_chunks c SET fts_vector = to_tsvector(
			CASE lower(a.language)
				WHEN 'en' THEN 'english'::regconfig
				WHEN 'english' THEN 'english'::regconfig
				WHEN 'de' THEN 'german'::regconfig
				WHEN 'fr' THEN 'french'::regconfig
				WHEN 'es' THEN 'spanish'::regconfig
				WHEN 'ru' THEN 'russian'::regconfig
				ELSE $1::regconfig
			END, c.text)
		FROM articles_index a
		WHERE a.article_id = c.article_id AND c.chunk_id IN (
			SELECT chunk_id FROM article_chunks
			WHERE fts_vector IS NULL
			ORDER BY chunk_id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, defaultConfig, batch)
	if err != nil {
		return 0, fmt.Errorf("populate fts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ChunkTextsByArticle returns the concatenated chunk text per article id,
// used by the trends service for keyword extraction.
func (s *Store) ChunkTextsByArticle(ctx context.Context, articleIDs []int64) (map[int64]string, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT article_id, string_agg(text, ' ' ORDER BY chunk_index)
		FROM article_chunks
		WHERE article_id = ANY($1)
		GROUP BY article_id`, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("select chunk texts: %w", err)
	}
	defer rows.Close()

	texts := make(map[int64]string, len(articleIDs))
	for rows.Next() {
		var id int64
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}
		texts[id] = text
	}
	return texts, rows.Err()
}

// ChunkCounts returns totals for reporting: all chunks, embedded chunks, and
// FTS-indexed chunks.
func (s *Store) ChunkCounts(ctx context.Context) (total, embedded, indexed int64, err error) {
	err = s.Pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE embedding IS NOT NULL),
		       count(*) FILTER (WHERE fts_vector IS NOT NULL)
		FROM article_chunks`).Scan(&total, &embedded, &indexed)
	return total, embedded, indexed, err
}
