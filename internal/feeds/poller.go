package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"newswire/internal/config"
	"newswire/internal/observability"
	"newswire/internal/store"
)

// Store is the slice of the storage layer the poller needs.
type Store interface {
	DueFeeds(ctx context.Context, now time.Time, limit int) ([]store.Feed, error)
	InsertRaw(ctx context.Context, r store.RawArticle) (bool, error)
	MarkFeedFetched(ctx context.Context, id int64, etag, lastModified string, now, nextPoll time.Time) error
	MarkFeedNotModified(ctx context.Context, id int64, now, nextPoll time.Time) error
	MarkFeedFailure(ctx context.Context, id int64, nextPoll time.Time, maxFailures int) (int, error)
	Diag(ctx context.Context, level, component, message string, details map[string]any)
}

// Stats summarizes one polling pass.
type Stats struct {
	FeedsPolled     int64
	EntriesSeen     int64
	EntriesEnqueued int64
	Failures        int64
}

// Poller fetches due feeds, parses entries, and enqueues raw articles.
type Poller struct {
	store   Store
	cfg     config.PollerConfig
	client  *http.Client
	parser  *gofeed.Parser
	journal *Journal
}

// NewPoller wires a poller with its own feed-fetch HTTP client.
func NewPoller(s Store, cfg config.PollerConfig, journal *Journal) *Poller {
	return &Poller{
		store:   s,
		cfg:     cfg,
		client:  observability.NewHTTPClient(20 * time.Second),
		parser:  gofeed.NewParser(),
		journal: journal,
	}
}

// Poll runs one polling pass over all due feeds. Per-feed failures are
// recorded against the feed and never abort the pass.
func (p *Poller) Poll(ctx context.Context, now time.Time) (Stats, error) {
	var stats Stats

	if err := p.replay(ctx); err != nil {
		// Replay failure is not fatal for the pass; entries stay on disk.
		log.Warn().Err(err).Msg("journal replay failed")
	}

	due, err := p.store.DueFeeds(ctx, now, p.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("list due feeds: %w", err)
	}
	if len(due) == 0 {
		return stats, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, feed := range due {
		feed := feed
		g.Go(func() error {
			p.pollFeed(gctx, feed, now, &stats)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	log.Info().Int64("feeds", stats.FeedsPolled).Int64("enqueued", stats.EntriesEnqueued).
		Int64("failures", stats.Failures).Msg("poll pass complete")
	return stats, nil
}

func (p *Poller) pollFeed(ctx context.Context, f store.Feed, now time.Time, stats *Stats) {
	atomic.AddInt64(&stats.FeedsPolled, 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		p.fail(ctx, f, fmt.Errorf("build request: %w", err), stats)
		return
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	if f.LastETag != "" {
		req.Header.Set("If-None-Match", f.LastETag)
	}
	if f.LastModified != "" {
		req.Header.Set("If-Modified-Since", f.LastModified)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.fail(ctx, f, err, stats)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if err := p.store.MarkFeedNotModified(ctx, f.ID, now, now.Add(p.cfg.BackoffBase)); err != nil {
			log.Error().Err(err).Str("feed", f.URL).Msg("mark not modified")
		}
		return
	case resp.StatusCode/100 != 2:
		p.fail(ctx, f, fmt.Errorf("status %d", resp.StatusCode), stats)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16*1000*1000))
	if err != nil {
		p.fail(ctx, f, fmt.Errorf("read body: %w", err), stats)
		return
	}
	parsed, err := p.parser.ParseString(string(body))
	if err != nil {
		p.fail(ctx, f, fmt.Errorf("parse feed: %w", err), stats)
		return
	}

	entries := p.collect(f, parsed, now)
	atomic.AddInt64(&stats.EntriesSeen, int64(len(entries)))

	batch, err := p.journal.Write(entries)
	if err != nil {
		p.fail(ctx, f, fmt.Errorf("journal: %w", err), stats)
		return
	}
	enqueued, err := p.insert(ctx, entries)
	if err != nil {
		// Entries stay journaled; the next pass replays them.
		p.fail(ctx, f, fmt.Errorf("enqueue: %w", err), stats)
		return
	}
	if err := p.journal.Remove(batch); err != nil {
		log.Warn().Err(err).Str("batch", batch).Msg("journal cleanup failed")
	}
	atomic.AddInt64(&stats.EntriesEnqueued, enqueued)

	if err := p.store.MarkFeedFetched(ctx, f.ID, resp.Header.Get("ETag"),
		resp.Header.Get("Last-Modified"), now, now.Add(p.cfg.BackoffBase)); err != nil {
		log.Error().Err(err).Str("feed", f.URL).Msg("mark fetched")
	}
}

// collect turns parsed feed items into journal entries, canonicalizing URLs
// and salvaging dates gofeed could not parse.
func (p *Poller) collect(f store.Feed, parsed *gofeed.Feed, now time.Time) []journalEntry {
	entries := make([]journalEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		canon, err := Canonicalize(item.Link, p.cfg.TrackingDenylist)
		if err != nil {
			log.Debug().Err(err).Str("link", item.Link).Msg("skip entry with bad url")
			continue
		}
		published := now
		switch {
		case item.PublishedParsed != nil:
			published = item.PublishedParsed.UTC()
		case item.Published != "":
			if t, err := dateparse.ParseAny(item.Published); err == nil {
				published = t.UTC()
			}
		}
		entries = append(entries, journalEntry{
			FeedID:      f.ID,
			URL:         canon,
			URLHash:     URLHash(canon),
			GUID:        item.GUID,
			Domain:      Domain(canon),
			Title:       item.Title,
			Summary:     item.Description,
			Language:    parsed.Language,
			PublishedAt: published.Format(time.RFC3339),
		})
	}
	return entries
}

func (p *Poller) insert(ctx context.Context, entries []journalEntry) (int64, error) {
	var enqueued int64
	for _, e := range entries {
		raw := store.RawArticle{
			FeedID:       e.FeedID,
			URL:          e.URL,
			URLHash:      e.URLHash,
			GUID:         e.GUID,
			SourceDomain: e.Domain,
			Title:        e.Title,
			Summary:      e.Summary,
			Language:     e.Language,
		}
		if e.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, e.PublishedAt); err == nil {
				raw.PublishedAt = &t
			}
		}
		inserted, err := p.store.InsertRaw(ctx, raw)
		if err != nil {
			return enqueued, err
		}
		if inserted {
			enqueued++
		}
	}
	return enqueued, nil
}

// replay re-inserts journal batches left by a crashed run. Inserts are
// idempotent, so a batch that half-committed is safe to repeat.
func (p *Poller) replay(ctx context.Context) error {
	pending, err := p.journal.Pending()
	if err != nil {
		return err
	}
	for _, name := range pending {
		entries, err := p.journal.Load(name)
		if err != nil {
			log.Warn().Err(err).Str("batch", name).Msg("drop unreadable journal batch")
			_ = p.journal.Remove(name)
			continue
		}
		if _, err := p.insert(ctx, entries); err != nil {
			return fmt.Errorf("replay %s: %w", name, err)
		}
		if err := p.journal.Remove(name); err != nil {
			return err
		}
		log.Info().Str("batch", name).Int("entries", len(entries)).Msg("replayed journal batch")
	}
	return nil
}

func (p *Poller) fail(ctx context.Context, f store.Feed, cause error, stats *Stats) {
	atomic.AddInt64(&stats.Failures, 1)
	failures, err := p.store.MarkFeedFailure(ctx, f.ID,
		time.Now().UTC().Add(NextBackoff(f.ConsecutiveFailures+1, p.cfg.BackoffBase, p.cfg.BackoffCap)),
		p.cfg.MaxFailures)
	if err != nil {
		log.Error().Err(err).Str("feed", f.URL).Msg("record feed failure")
		return
	}
	p.store.Diag(ctx, store.DiagWarn, "poller", "feed poll failed", map[string]any{
		"feed_url": f.URL, "failures": failures, "error": cause.Error(),
	})
	log.Warn().Err(cause).Str("feed", f.URL).Int("failures", failures).Msg("feed poll failed")
}
