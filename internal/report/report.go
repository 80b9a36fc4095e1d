package report

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is the storage slice the reporter needs.
type Store interface {
	CountRawByStatus(ctx context.Context) (map[string]int64, error)
	ArticleCounts(ctx context.Context) (canonical, total int64, err error)
	ChunkCounts(ctx context.Context) (total, embedded, indexed int64, err error)
}

// DiagnosticSource surfaces recent error events for the summary.
type DiagnosticSource interface {
	RecentErrors(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// Summary is the pipeline state at report time.
type Summary struct {
	GeneratedAt   time.Time
	RawByStatus   map[string]int64
	Canonical     int64
	ArticlesTotal int64
	Chunks        int64
	Embedded      int64
	FTSIndexed    int64
	RecentErrors  []string
}

// Build gathers counts across the pipeline.
func Build(ctx context.Context, s Store, diags DiagnosticSource) (*Summary, error) {
	raw, err := s.CountRawByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("raw counts: %w", err)
	}
	canonical, total, err := s.ArticleCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("article counts: %w", err)
	}
	chunks, embedded, indexed, err := s.ChunkCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("chunk counts: %w", err)
	}
	summary := &Summary{
		GeneratedAt:   time.Now().UTC(),
		RawByStatus:   raw,
		Canonical:     canonical,
		ArticlesTotal: total,
		Chunks:        chunks,
		Embedded:      embedded,
		FTSIndexed:    indexed,
	}
	if diags != nil {
		errorsSince := summary.GeneratedAt.Add(-24 * time.Hour)
		recent, err := diags.RecentErrors(ctx, errorsSince, 10)
		if err != nil {
			return nil, fmt.Errorf("recent diagnostics: %w", err)
		}
		summary.RecentErrors = recent
	}
	return summary, nil
}

// Render formats the summary as plain text, fit for the terminal and for
// Telegram alike.
func (s *Summary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "newswire report — %s\n\n", s.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "raw articles:\n")
	for _, status := range []string{"pending", "fetching", "stored", "duplicate", "error"} {
		if n, ok := s.RawByStatus[status]; ok {
			fmt.Fprintf(&b, "  %-10s %d\n", status, n)
		}
	}
	fmt.Fprintf(&b, "articles: %d canonical / %d total\n", s.Canonical, s.ArticlesTotal)
	fmt.Fprintf(&b, "chunks: %d (%d embedded, %d fts-indexed)\n", s.Chunks, s.Embedded, s.FTSIndexed)
	if len(s.RecentErrors) > 0 {
		fmt.Fprintf(&b, "\nrecent errors (24h):\n")
		for _, e := range s.RecentErrors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}
