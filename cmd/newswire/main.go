package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"newswire/internal/config"
	"newswire/internal/embedding"
	"newswire/internal/extract"
	"newswire/internal/feeds"
	"newswire/internal/observability"
	"newswire/internal/rag"
	"newswire/internal/report"
	"newswire/internal/services"
	"newswire/internal/store"
	"newswire/internal/trends"
	"newswire/internal/worker"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: newswire <command> [flags]

commands:
  ensure                          create/verify the database schema
  discovery --feed <url>          register a feed
  poll [--batch-size N] [--workers N]
                                  run one polling pass
  work [--batch-size N]           run one article worker pass
  services start --services <list>
                                  run continuous services (poll,work,chunk,embed,fts)
  trends [--window H] [--limit N] [--top N]
                                  print ranked trends as JSON
  rag <query>                     ad-hoc hybrid search
  report [--send-telegram]        print a pipeline summary`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitConfig)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(exitConfig)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.Database.DSN, cfg.Embedding.Dimension)
	if err != nil {
		log.Error().Err(err).Msg("database unavailable")
		os.Exit(exitRuntime)
	}
	defer st.Close()

	code := run(ctx, cfg, st, os.Args[1], os.Args[2:])
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, st *store.Store, cmd string, args []string) int {
	switch cmd {
	case "ensure":
		return cmdEnsure(ctx, st)
	case "discovery":
		return cmdDiscovery(ctx, cfg, st, args)
	case "poll":
		return cmdPoll(ctx, cfg, st, args)
	case "work":
		return cmdWork(ctx, cfg, st, args)
	case "services":
		return cmdServices(ctx, cfg, st, args)
	case "trends":
		return cmdTrends(ctx, cfg, st, args)
	case "rag":
		return cmdRag(ctx, cfg, st, args)
	case "report":
		return cmdReport(ctx, cfg, st, args)
	default:
		usage()
		return exitConfig
	}
}

func cmdEnsure(ctx context.Context, st *store.Store) int {
	if err := st.EnsureSchema(ctx); err != nil {
		log.Error().Err(err).Msg("ensure schema failed")
		return exitRuntime
	}
	fmt.Println("schema ok")
	return exitOK
}

func cmdDiscovery(ctx context.Context, cfg config.Config, st *store.Store, args []string) int {
	fs := flag.NewFlagSet("discovery", flag.ExitOnError)
	feedURL := fs.String("feed", "", "feed URL to register")
	_ = fs.Parse(args)
	if *feedURL == "" {
		fmt.Fprintln(os.Stderr, "discovery: --feed is required")
		return exitConfig
	}
	canon, err := feeds.Canonicalize(*feedURL, cfg.Poller.TrackingDenylist)
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovery: %v\n", err)
		return exitConfig
	}
	inserted, err := st.InsertFeed(ctx, canon)
	if err != nil {
		log.Error().Err(err).Msg("insert feed failed")
		return exitRuntime
	}
	if inserted {
		fmt.Printf("registered %s\n", canon)
	} else {
		fmt.Printf("already registered: %s\n", canon)
	}
	return exitOK
}

func cmdPoll(ctx context.Context, cfg config.Config, st *store.Store, args []string) int {
	fs := flag.NewFlagSet("poll", flag.ExitOnError)
	batch := fs.Int("batch-size", cfg.Poller.BatchSize, "max feeds per pass")
	workers := fs.Int("workers", cfg.Poller.Workers, "parallel feed fetches")
	_ = fs.Parse(args)

	pcfg := cfg.Poller
	pcfg.BatchSize = *batch
	pcfg.Workers = *workers

	journal, err := feeds.NewJournal(cfg.QueueDir)
	if err != nil {
		log.Error().Err(err).Msg("open queue dir")
		return exitRuntime
	}
	stats, err := feeds.NewPoller(st, pcfg, journal).Poll(ctx, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("poll failed")
		return exitRuntime
	}
	fmt.Printf("feeds_polled=%d entries_seen=%d entries_enqueued=%d failures=%d\n",
		stats.FeedsPolled, stats.EntriesSeen, stats.EntriesEnqueued, stats.Failures)
	return exitOK
}

func cmdWork(ctx context.Context, cfg config.Config, st *store.Store, args []string) int {
	fs := flag.NewFlagSet("work", flag.ExitOnError)
	batch := fs.Int("batch-size", cfg.Worker.BatchSize, "max raw articles per pass")
	_ = fs.Parse(args)

	extractor := extract.NewExtractor(extract.Options{
		Timeout:       cfg.Worker.FetchTimeout,
		MaxBytes:      cfg.Worker.MaxFetchBytes,
		MinTextLength: cfg.Worker.MinTextLength,
		UserAgent:     cfg.Poller.UserAgent,
	})
	stats, err := worker.New(st, extractor, cfg.Worker, cfg.LeaseFor).Work(ctx, *batch)
	if err != nil {
		log.Error().Err(err).Msg("work pass failed")
		return exitRuntime
	}
	fmt.Printf("claimed=%d stored=%d duplicate=%d requeued=%d error=%d\n",
		stats.Claimed, stats.Stored, stats.Duplicates, stats.Requeued, stats.Errors)
	return exitOK
}

func cmdServices(ctx context.Context, cfg config.Config, st *store.Store, args []string) int {
	if len(args) < 1 || args[0] != "start" {
		fmt.Fprintln(os.Stderr, "services: expected 'start'")
		return exitConfig
	}
	fs := flag.NewFlagSet("services start", flag.ExitOnError)
	list := fs.String("services", "", "comma-separated services (poll,work,chunk,embed,fts)")
	_ = fs.Parse(args[1:])

	names := strings.Split(*list, ",")
	if *list == "" {
		if cfg.ServiceMode == "" {
			fmt.Fprintln(os.Stderr, "services start: --services or SERVICE_MODE required")
			return exitConfig
		}
		names = []string{services.ServiceModeNames[cfg.ServiceMode]}
	}

	if err := services.NewRunner(cfg, st).Start(ctx, names); err != nil {
		if ctx.Err() != nil {
			return exitOK
		}
		log.Error().Err(err).Msg("services failed")
		return exitRuntime
	}
	return exitOK
}

func cmdTrends(ctx context.Context, cfg config.Config, st *store.Store, args []string) int {
	fs := flag.NewFlagSet("trends", flag.ExitOnError)
	window := fs.Int("window", cfg.Trends.WindowHours, "window in hours")
	limit := fs.Int("limit", cfg.Trends.Limit, "max articles considered")
	top := fs.Int("top", cfg.Trends.TopN, "trends returned")
	_ = fs.Parse(args)

	svc := trends.New(st, trends.NewCache(cfg.Redis, cfg.Trends.TTL), cfg.Trends)
	payload, err := svc.BuildJSON(ctx, *window, *limit, *top)
	if err != nil {
		log.Error().Err(err).Msg("trends failed")
		return exitRuntime
	}
	fmt.Println(string(payload))
	return exitOK
}

func cmdRag(ctx context.Context, cfg config.Config, st *store.Store, args []string) int {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(os.Stderr, "rag: query required")
		return exitConfig
	}
	query := strings.Join(args, " ")
	searcher := rag.NewSearcher(st, embedding.NewClient(cfg.Embedding), cfg.FTSConfig)
	hits, err := searcher.Search(ctx, query, 10)
	if err != nil {
		log.Error().Err(err).Msg("search failed")
		return exitRuntime
	}
	for _, h := range hits {
		text := h.Text
		if len(text) > 240 {
			text = text[:240] + "…"
		}
		fmt.Printf("[%d] %s\n    %s\n    %s\n\n", h.ChunkID, h.Title, h.URL, text)
	}
	return exitOK
}

func cmdReport(ctx context.Context, cfg config.Config, st *store.Store, args []string) int {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	sendTelegram := fs.Bool("send-telegram", false, "deliver the summary via Telegram")
	_ = fs.Parse(args)

	summary, err := report.Build(ctx, st, diagAdapter{st})
	if err != nil {
		log.Error().Err(err).Msg("report failed")
		return exitRuntime
	}
	rendered := summary.Render()
	fmt.Print(rendered)

	if *sendTelegram {
		if err := report.NewTelegram(cfg.Telegram, "").Send(ctx, rendered); err != nil {
			log.Error().Err(err).Msg("telegram delivery failed")
			return exitRuntime
		}
	}
	return exitOK
}

// diagAdapter renders recent diagnostics rows as one-line strings.
type diagAdapter struct {
	st *store.Store
}

func (d diagAdapter) RecentErrors(ctx context.Context, since time.Time, limit int) ([]string, error) {
	rows, err := d.st.RecentDiagnostics(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, fmt.Sprintf("%s %s: %s", r.OccurredAt.Format(time.RFC3339), r.Component, r.Message))
	}
	return out, nil
}
