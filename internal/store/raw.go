package store

import (
	"context"
	"fmt"
	"time"
)

// InsertRaw enqueues a freshly seen feed entry with status 'pending'. A
// unique violation on url_hash means the entry was already seen; that is the
// normal dedup path and reports inserted=false.
func (s *Store) InsertRaw(ctx context.Context, r RawArticle) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO raw_articles
			(feed_id, url, url_hash, guid, source_domain, title, summary, language, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (url_hash) DO NOTHING`,
		r.FeedID, r.URL, r.URLHash, r.GUID, r.SourceDomain, r.Title, r.Summary, r.Language, r.PublishedAt)
	if err != nil {
		return false, fmt.Errorf("insert raw article: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimRaw claims up to batch pending raw rows for worker, advancing them to
// 'fetching'. Rows whose lease expired are reclaimable; SKIP LOCKED keeps
// concurrent replicas from colliding.
func (s *Store) ClaimRaw(ctx context.Context, worker string, batch int, lease time.Duration) ([]RawArticle, error) {
	rows, err := s.Pool.Query(ctx, `
		UPDATE raw_articles SET status = 'fetching', claimed_at = now(), claimed_by = $1
		WHERE id IN (
			SELECT id FROM raw_articles
			WHERE status = 'pending' AND next_attempt_at <= now()
			  AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $2))
			ORDER BY fetched_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, feed_id, url, url_hash, guid, source_domain, title, summary,
		          language, published_at, fetched_at, status, attempt_count, last_error`,
		worker, lease.Seconds(), batch)
	if err != nil {
		return nil, fmt.Errorf("claim raw articles: %w", err)
	}
	defer rows.Close()

	var claimed []RawArticle
	for rows.Next() {
		var r RawArticle
		var feedID *int64
		if err := rows.Scan(&r.ID, &feedID, &r.URL, &r.URLHash, &r.GUID, &r.SourceDomain,
			&r.Title, &r.Summary, &r.Language, &r.PublishedAt, &r.FetchedAt,
			&r.Status, &r.AttemptCount, &r.LastError); err != nil {
			return nil, err
		}
		if feedID != nil {
			r.FeedID = *feedID
		}
		claimed = append(claimed, r)
	}
	return claimed, rows.Err()
}

// MarkRawStored finishes a raw row as the origin of a new canonical article.
func (s *Store) MarkRawStored(ctx context.Context, id, articleID int64) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE raw_articles SET status = 'stored', canonical_article_id = $2,
			claimed_at = NULL, claimed_by = NULL
		WHERE id = $1`, id, articleID)
	return err
}

// MarkRawDuplicate finishes a raw row as a duplicate pointing at the
// canonical article.
func (s *Store) MarkRawDuplicate(ctx context.Context, id, canonicalID int64) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE raw_articles SET status = 'duplicate', canonical_article_id = $2,
			claimed_at = NULL, claimed_by = NULL
		WHERE id = $1`, id, canonicalID)
	return err
}

// RequeueRaw returns a failed row to 'pending' with an incremented attempt
// count and a back-off deadline.
func (s *Store) RequeueRaw(ctx context.Context, id int64, lastError string, nextAttempt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE raw_articles SET status = 'pending', attempt_count = attempt_count + 1,
			last_error = $2, next_attempt_at = $3, claimed_at = NULL, claimed_by = NULL
		WHERE id = $1`, id, lastError, nextAttempt)
	return err
}

// MarkRawError terminates a raw row after its attempts are exhausted.
func (s *Store) MarkRawError(ctx context.Context, id int64, lastError string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE raw_articles SET status = 'error', attempt_count = attempt_count + 1,
			last_error = $2, claimed_at = NULL, claimed_by = NULL
		WHERE id = $1`, id, lastError)
	return err
}

// CountRawByStatus returns row counts per status for reporting.
func (s *Store) CountRawByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.Pool.Query(ctx, `SELECT status, count(*) FROM raw_articles GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
