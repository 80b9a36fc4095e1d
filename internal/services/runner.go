package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"newswire/internal/chunking"
	"newswire/internal/config"
	"newswire/internal/embedding"
	"newswire/internal/extract"
	"newswire/internal/feeds"
	"newswire/internal/llm"
	"newswire/internal/store"
	"newswire/internal/worker"
)

// Runner multiplexes any subset of the continuous services in one process.
// Each service is constructed only when selected, so starting fts alone
// needs nothing but PG_DSN.
type Runner struct {
	cfg config.Config
	st  *store.Store
}

// NewRunner wires a runner over the shared store.
func NewRunner(cfg config.Config, st *store.Store) *Runner {
	return &Runner{cfg: cfg, st: st}
}

// knownServices in start order.
var knownServices = []string{"poll", "work", "chunk", "embed", "fts"}

// ServiceModeNames maps SERVICE_MODE values to service names.
var ServiceModeNames = map[string]string{
	"fts-continuous":   "fts",
	"chunk-continuous": "chunk",
	"embed-continuous": "embed",
}

// Start runs the named services until ctx is cancelled. Unknown names are a
// configuration error.
func (r *Runner) Start(ctx context.Context, names []string) error {
	selected := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		known := false
		for _, k := range knownServices {
			if k == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown service %q (known: %s)", name, strings.Join(knownServices, ", "))
		}
		selected[name] = true
	}
	if len(selected) == 0 {
		return fmt.Errorf("no services selected")
	}

	g, gctx := errgroup.WithContext(ctx)

	if selected["poll"] {
		journal, err := feeds.NewJournal(r.cfg.QueueDir)
		if err != nil {
			return err
		}
		poller := feeds.NewPoller(r.st, r.cfg.Poller, journal)
		g.Go(func() error { return r.runPollCron(gctx, poller) })
	}
	if selected["work"] {
		extractor := extract.NewExtractor(extract.Options{
			Timeout:       r.cfg.Worker.FetchTimeout,
			MaxBytes:      r.cfg.Worker.MaxFetchBytes,
			MinTextLength: r.cfg.Worker.MinTextLength,
			UserAgent:     r.cfg.Poller.UserAgent,
		})
		w := worker.New(r.st, extractor, r.cfg.Worker, r.cfg.LeaseFor)
		g.Go(func() error {
			Loop(gctx, &workerService{w: w, batch: r.cfg.Worker.BatchSize},
				15*time.Second, r.cfg.Worker.BatchSize, r.cfg.GraceFor)
			return nil
		})
	}
	if selected["chunk"] {
		chunker := chunking.New(llm.NewClient(r.cfg.LLM))
		svc := NewChunking(r.st, chunker, r.cfg.Chunking.Batch, r.cfg.LeaseFor)
		g.Go(func() error {
			Loop(gctx, svc, r.cfg.Chunking.Interval, r.cfg.Chunking.Batch, r.cfg.GraceFor)
			return nil
		})
	}
	if selected["embed"] {
		client := embedding.NewClient(r.cfg.Embedding)
		svc := NewEmbedding(r.st, client, r.cfg.Embed.Batch, r.cfg.LeaseFor, r.cfg.Worker.MaxAttempts)
		g.Go(func() error {
			Loop(gctx, svc, r.cfg.Embed.Interval, r.cfg.Embed.Batch, r.cfg.GraceFor)
			return nil
		})
	}
	if selected["fts"] {
		svc := NewFTS(r.st, r.cfg.FTSConfig, r.cfg.FTS.Batch)
		g.Go(func() error {
			Loop(gctx, svc, r.cfg.FTS.Interval, r.cfg.FTS.Batch, r.cfg.GraceFor)
			return nil
		})
	}

	return g.Wait()
}

// runPollCron drives polling passes on the configured cron schedule, with an
// immediate pass at startup.
func (r *Runner) runPollCron(ctx context.Context, poller *feeds.Poller) error {
	run := func() {
		if _, err := poller.Poll(ctx, time.Now().UTC()); err != nil {
			log.Error().Err(err).Msg("poll pass failed")
		}
	}
	run()

	c := cron.New()
	if _, err := c.AddFunc(r.cfg.Poller.Cron, run); err != nil {
		return fmt.Errorf("bad POLL_CRON %q: %w", r.cfg.Poller.Cron, err)
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(r.cfg.GraceFor):
	}
	return nil
}

// workerService adapts the one-pass article worker to the Loop contract.
type workerService struct {
	w     *worker.Worker
	batch int
}

func (ws *workerService) Name() string { return "worker" }

func (ws *workerService) Tick(ctx context.Context) (int, error) {
	stats, err := ws.w.Work(ctx, ws.batch)
	if err != nil {
		return 0, err
	}
	return int(stats.Stored + stats.Duplicates + stats.Errors), nil
}
