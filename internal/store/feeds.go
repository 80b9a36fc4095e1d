package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// InsertFeed registers a feed URL as active. Inserting an already known URL
// is a no-op and returns false.
func (s *Store) InsertFeed(ctx context.Context, url string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO feeds (url) VALUES ($1)
		ON CONFLICT (url) DO NOTHING`, url)
	if err != nil {
		return false, fmt.Errorf("insert feed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DueFeeds returns active feeds whose next_poll_at has passed, ordered by
// next_poll_at. Disabled and errored feeds are never returned.
func (s *Store) DueFeeds(ctx context.Context, now time.Time, limit int) ([]Feed, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, url, status, last_fetched_at, last_etag, last_modified,
		       consecutive_failures, next_poll_at
		FROM feeds
		WHERE status = 'active' AND next_poll_at <= $1
		ORDER BY next_poll_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select due feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var f Feed
		if err := rows.Scan(&f.ID, &f.URL, &f.Status, &f.LastFetchedAt,
			&f.LastETag, &f.LastModified, &f.ConsecutiveFailures, &f.NextPollAt); err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// FeedByURL looks up a single feed.
func (s *Store) FeedByURL(ctx context.Context, url string) (*Feed, error) {
	var f Feed
	err := s.Pool.QueryRow(ctx, `
		SELECT id, url, status, last_fetched_at, last_etag, last_modified,
		       consecutive_failures, next_poll_at
		FROM feeds WHERE url = $1`, url).
		Scan(&f.ID, &f.URL, &f.Status, &f.LastFetchedAt, &f.LastETag,
			&f.LastModified, &f.ConsecutiveFailures, &f.NextPollAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// MarkFeedFetched records a successful poll: caching validators, a reset
// failure counter, and the next poll time.
func (s *Store) MarkFeedFetched(ctx context.Context, id int64, etag, lastModified string, now, nextPoll time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE feeds SET last_fetched_at = $2, last_etag = $3, last_modified = $4,
			consecutive_failures = 0, next_poll_at = $5
		WHERE id = $1`, id, now, etag, lastModified, nextPoll)
	return err
}

// MarkFeedNotModified records a 304: the fetch time advances and the failure
// counter resets, validators stay as they are.
func (s *Store) MarkFeedNotModified(ctx context.Context, id int64, now, nextPoll time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE feeds SET last_fetched_at = $2, consecutive_failures = 0, next_poll_at = $3
		WHERE id = $1`, id, now, nextPoll)
	return err
}

// MarkFeedFailure increments the failure counter and pushes next_poll_at out.
// At maxFailures the feed flips to status 'error' and leaves the rotation.
func (s *Store) MarkFeedFailure(ctx context.Context, id int64, nextPoll time.Time, maxFailures int) (int, error) {
	var failures int
	err := s.Pool.QueryRow(ctx, `
		UPDATE feeds SET
			consecutive_failures = consecutive_failures + 1,
			next_poll_at = $2,
			status = CASE WHEN consecutive_failures + 1 >= $3 THEN 'error' ELSE status END
		WHERE id = $1
		RETURNING consecutive_failures`, id, nextPoll, maxFailures).Scan(&failures)
	if err != nil {
		return 0, fmt.Errorf("mark feed failure: %w", err)
	}
	return failures, nil
}
