package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"newswire/internal/config"
	"newswire/internal/extract"
	"newswire/internal/feeds"
	"newswire/internal/store"
)

// Store is the slice of the storage layer the article worker needs.
type Store interface {
	ClaimRaw(ctx context.Context, worker string, batch int, lease time.Duration) ([]store.RawArticle, error)
	FindCanonicalByTextHash(ctx context.Context, textHash string) (*int64, error)
	InsertArticle(ctx context.Context, a store.Article) (int64, error)
	MarkRawStored(ctx context.Context, id, articleID int64) error
	MarkRawDuplicate(ctx context.Context, id, canonicalID int64) error
	RequeueRaw(ctx context.Context, id int64, lastError string, nextAttempt time.Time) error
	MarkRawError(ctx context.Context, id int64, lastError string) error
	Diag(ctx context.Context, level, component, message string, details map[string]any)
}

// Extractor fetches and extracts one article body.
type Extractor interface {
	Extract(ctx context.Context, url string) (*extract.Result, error)
}

// Stats counts claimed raw rows by terminal outcome.
type Stats struct {
	Claimed    int64
	Stored     int64
	Duplicates int64
	Requeued   int64
	Errors     int64
}

// Worker promotes raw articles into the canonical index.
type Worker struct {
	store     Store
	extractor Extractor
	cfg       config.WorkerConfig
	lease     time.Duration
	id        string
}

// New builds a worker with a unique claim identity.
func New(s Store, e Extractor, cfg config.WorkerConfig, lease time.Duration) *Worker {
	return &Worker{
		store:     s,
		extractor: e,
		cfg:       cfg,
		lease:     lease,
		id:        "worker-" + uuid.NewString()[:8],
	}
}

// Work runs one pass: claim up to batch raw rows and drive each to a
// terminal state. Per-row failures never abort the pass.
func (w *Worker) Work(ctx context.Context, batch int) (Stats, error) {
	var stats Stats
	if batch <= 0 {
		batch = w.cfg.BatchSize
	}
	claimed, err := w.store.ClaimRaw(ctx, w.id, batch, w.lease)
	if err != nil {
		return stats, fmt.Errorf("claim raw: %w", err)
	}
	stats.Claimed = int64(len(claimed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Workers)
	for _, raw := range claimed {
		raw := raw
		g.Go(func() error {
			w.process(gctx, raw, &stats)
			return nil
		})
	}
	_ = g.Wait()
	return stats, nil
}

func (w *Worker) process(ctx context.Context, raw store.RawArticle, stats *Stats) {
	res, err := w.extractor.Extract(ctx, raw.URL)
	if err != nil {
		w.handleFailure(ctx, raw, err, stats)
		return
	}

	textHash := extract.TextHash(res.CleanText)
	existing, err := w.store.FindCanonicalByTextHash(ctx, textHash)
	if err != nil {
		w.handleFailure(ctx, raw, fmt.Errorf("dedup lookup: %w", err), stats)
		return
	}
	if existing != nil {
		// Same content under a different URL: record the pointer, keep the
		// one canonical row.
		if err := w.store.MarkRawDuplicate(ctx, raw.ID, *existing); err != nil {
			log.Error().Err(err).Int64("raw_id", raw.ID).Msg("mark duplicate")
			return
		}
		atomic.AddInt64(&stats.Duplicates, 1)
		return
	}

	title := raw.Title
	if title == "" {
		title = res.Title
	}
	published := time.Now().UTC()
	if raw.PublishedAt != nil {
		published = *raw.PublishedAt
	}
	article := store.Article{
		URL:          raw.URL,
		CanonicalURL: res.FinalURL,
		Source:       raw.SourceDomain,
		Domain:       feeds.Domain(res.FinalURL),
		Title:        title,
		TitleNorm:    extract.NormalizeTitle(title),
		CleanText:    res.CleanText,
		TextHash:     textHash,
		PublishedAt:  published,
		Language:     raw.Language,
	}
	articleID, err := w.store.InsertArticle(ctx, article)
	if err != nil {
		w.handleFailure(ctx, raw, fmt.Errorf("insert article: %w", err), stats)
		return
	}
	if err := w.store.MarkRawStored(ctx, raw.ID, articleID); err != nil {
		log.Error().Err(err).Int64("raw_id", raw.ID).Msg("mark stored")
		return
	}
	atomic.AddInt64(&stats.Stored, 1)
}

// handleFailure requeues with back-off below the attempt cap; too-short
// extractions are terminal immediately, there is nothing to retry.
func (w *Worker) handleFailure(ctx context.Context, raw store.RawArticle, cause error, stats *Stats) {
	reason := cause.Error()
	terminal := errors.Is(cause, extract.ErrTooShort) ||
		errors.Is(cause, extract.ErrUnsupportedContentType) ||
		raw.AttemptCount+1 >= w.cfg.MaxAttempts
	if errors.Is(cause, extract.ErrTooShort) {
		reason = "too_short"
	}

	if terminal {
		if err := w.store.MarkRawError(ctx, raw.ID, reason); err != nil {
			log.Error().Err(err).Int64("raw_id", raw.ID).Msg("mark error")
			return
		}
		w.store.Diag(ctx, store.DiagError, "worker", "raw article failed", map[string]any{
			"raw_id": raw.ID, "url": raw.URL, "kind": "permanent_io", "error": reason,
		})
		atomic.AddInt64(&stats.Errors, 1)
		return
	}

	backoff := time.Duration(raw.AttemptCount+1) * time.Minute
	if err := w.store.RequeueRaw(ctx, raw.ID, reason, time.Now().UTC().Add(backoff)); err != nil {
		log.Error().Err(err).Int64("raw_id", raw.ID).Msg("requeue")
		return
	}
	atomic.AddInt64(&stats.Requeued, 1)
	log.Debug().Str("url", raw.URL).Err(cause).Msg("raw article requeued")
}
