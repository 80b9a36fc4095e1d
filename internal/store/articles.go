package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// FindCanonicalByTextHash returns the canonical article id for a content
// fingerprint, or nil when the content has not been seen.
func (s *Store) FindCanonicalByTextHash(ctx context.Context, textHash string) (*int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
		SELECT article_id FROM articles_index
		WHERE text_hash = $1 AND is_canonical`, textHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// InsertArticle creates a new canonical articles_index row and returns its id.
// clean_text and title_norm are immutable after this point.
func (s *Store) InsertArticle(ctx context.Context, a Article) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO articles_index
			(url, canonical_url, source, domain, title, title_norm, clean_text,
			 text_hash, published_at, language, is_canonical)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
		RETURNING article_id`,
		a.URL, a.CanonicalURL, a.Source, a.Domain, a.Title, a.TitleNorm,
		a.CleanText, a.TextHash, a.PublishedAt, a.Language).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return id, nil
}

// ClaimUnchunked claims canonical articles that have no chunks yet and whose
// chunking has not already failed terminally.
func (s *Store) ClaimUnchunked(ctx context.Context, worker string, batch int, lease time.Duration) ([]Article, error) {
	rows, err := s.Pool.Query(ctx, `
		UPDATE articles_index SET claimed_at = now(), claimed_by = $1
		WHERE article_id IN (
			SELECT article_id FROM articles_index
			WHERE is_canonical AND chunking_status = 'pending'
			  AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $2))
			ORDER BY published_at DESC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING article_id, url, canonical_url, source, domain, title, title_norm,
		          clean_text, text_hash, published_at, language, is_canonical`,
		worker, lease.Seconds(), batch)
	if err != nil {
		return nil, fmt.Errorf("claim unchunked articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.URL, &a.CanonicalURL, &a.Source, &a.Domain,
			&a.Title, &a.TitleNorm, &a.CleanText, &a.TextHash, &a.PublishedAt,
			&a.Language, &a.IsCanonical); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// ReplaceChunks deletes any pre-existing chunks for the article and inserts
// the new set in one transaction, then advances chunking_status and releases
// the claim. Readers never observe the article with zero chunks mid-swap.
func (s *Store) ReplaceChunks(ctx context.Context, articleID int64, chunks []Chunk) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace chunks: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM article_chunks WHERE article_id = $1`, articleID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	for _, c := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO article_chunks (article_id, chunk_index, text, topic, type, token_estimate)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			articleID, c.Index, c.Text, c.Topic, c.Type, c.TokenEstimate); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE articles_index SET chunking_status = 'done', claimed_at = NULL, claimed_by = NULL
		WHERE article_id = $1`, articleID); err != nil {
		return fmt.Errorf("advance chunking status: %w", err)
	}
	return tx.Commit(ctx)
}

// MarkChunkingError excludes an article from future chunking claims.
func (s *Store) MarkChunkingError(ctx context.Context, articleID int64) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE articles_index SET chunking_status = 'error', claimed_at = NULL, claimed_by = NULL
		WHERE article_id = $1`, articleID)
	return err
}

// RecentTrendPoints joins canonical articles published within the window with
// their first chunk's embedding, newest first, capped at limit.
func (s *Store) RecentTrendPoints(ctx context.Context, since time.Time, limit int) ([]TrendPoint, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT a.article_id, a.title, a.domain, a.published_at, c.embedding
		FROM articles_index a
		JOIN article_chunks c ON c.article_id = a.article_id AND c.chunk_index = 0
		WHERE a.is_canonical AND a.published_at >= $1 AND c.embedding IS NOT NULL
		ORDER BY a.published_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("select trend points: %w", err)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		var vec pgvector.Vector
		if err := rows.Scan(&p.ArticleID, &p.Title, &p.Domain, &p.PublishedAt, &vec); err != nil {
			return nil, err
		}
		p.Embedding = vec.Slice()
		points = append(points, p)
	}
	return points, rows.Err()
}

// ArticleCounts returns the canonical row count and the total row count of
// articles_index for reporting.
func (s *Store) ArticleCounts(ctx context.Context) (canonical, total int64, err error) {
	err = s.Pool.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE is_canonical), count(*) FROM articles_index`).
		Scan(&canonical, &total)
	return canonical, total, err
}
