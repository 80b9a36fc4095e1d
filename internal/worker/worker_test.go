package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newswire/internal/config"
	"newswire/internal/extract"
	"newswire/internal/store"
)

type fakeWorkStore struct {
	mu        sync.Mutex
	claimable []store.RawArticle
	byHash    map[string]int64
	nextID    int64

	stored     map[int64]int64
	duplicates map[int64]int64
	requeued   map[int64]string
	errored    map[int64]string
	diags      []string
}

func newFakeWorkStore(raw ...store.RawArticle) *fakeWorkStore {
	return &fakeWorkStore{
		claimable:  raw,
		byHash:     map[string]int64{},
		stored:     map[int64]int64{},
		duplicates: map[int64]int64{},
		requeued:   map[int64]string{},
		errored:    map[int64]string{},
	}
}

func (f *fakeWorkStore) ClaimRaw(_ context.Context, _ string, batch int, _ time.Duration) ([]store.RawArticle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if batch > len(f.claimable) {
		batch = len(f.claimable)
	}
	claimed := f.claimable[:batch]
	f.claimable = f.claimable[batch:]
	return claimed, nil
}

func (f *fakeWorkStore) FindCanonicalByTextHash(_ context.Context, hash string) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byHash[hash]; ok {
		return &id, nil
	}
	return nil, nil
}

func (f *fakeWorkStore) InsertArticle(_ context.Context, a store.Article) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.byHash[a.TextHash] = f.nextID
	return f.nextID, nil
}

func (f *fakeWorkStore) MarkRawStored(_ context.Context, id, articleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[id] = articleID
	return nil
}

func (f *fakeWorkStore) MarkRawDuplicate(_ context.Context, id, canonicalID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.duplicates[id] = canonicalID
	return nil
}

func (f *fakeWorkStore) RequeueRaw(_ context.Context, id int64, lastError string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued[id] = lastError
	return nil
}

func (f *fakeWorkStore) MarkRawError(_ context.Context, id int64, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errored[id] = lastError
	return nil
}

func (f *fakeWorkStore) Diag(_ context.Context, _, _, message string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diags = append(f.diags, message)
}

type fakeExtractor struct {
	texts map[string]string // url -> clean text
	errs  map[string]error
}

func (f fakeExtractor) Extract(_ context.Context, url string) (*extract.Result, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	text, ok := f.texts[url]
	if !ok {
		return nil, fmt.Errorf("unexpected url %s", url)
	}
	return &extract.Result{FinalURL: url, Title: "Title", CleanText: text, FetchedAt: time.Now()}, nil
}

func workerConfig() config.WorkerConfig {
	return config.WorkerConfig{BatchSize: 10, Workers: 2, MaxAttempts: 3, MinTextLength: 200}
}

func longText(seed string) string {
	out := seed
	for len(out) < 400 {
		out += " body sentence with plenty of content to pass the minimum length."
	}
	return out
}

func TestWorker_StoresNewArticle(t *testing.T) {
	fs := newFakeWorkStore(store.RawArticle{ID: 1, URL: "https://example.com/a", Title: "A"})
	ex := fakeExtractor{texts: map[string]string{"https://example.com/a": longText("alpha")}}

	stats, err := New(fs, ex, workerConfig(), time.Minute).Work(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Claimed)
	require.Equal(t, int64(1), stats.Stored)
	require.Equal(t, int64(1), fs.stored[1])
}

func TestWorker_DedupByContent(t *testing.T) {
	// Two URLs, identical content: one canonical row, second raw marked
	// duplicate pointing at the first.
	text := longText("same content")
	fs := newFakeWorkStore(
		store.RawArticle{ID: 1, URL: "https://a.example.com/x"},
		store.RawArticle{ID: 2, URL: "https://b.example.com/y"},
	)
	ex := fakeExtractor{texts: map[string]string{
		"https://a.example.com/x": text,
		"https://b.example.com/y": text,
	}}

	cfg := workerConfig()
	cfg.Workers = 1 // deterministic processing order
	stats, err := New(fs, ex, cfg, time.Minute).Work(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Stored)
	require.Equal(t, int64(1), stats.Duplicates)
	require.Len(t, fs.byHash, 1)
	require.Equal(t, fs.stored[1], fs.duplicates[2])
}

func TestWorker_DifferentContentSameDomain(t *testing.T) {
	fs := newFakeWorkStore(
		store.RawArticle{ID: 1, URL: "https://example.com/x"},
		store.RawArticle{ID: 2, URL: "https://example.com/y"},
	)
	ex := fakeExtractor{texts: map[string]string{
		"https://example.com/x": longText("first"),
		"https://example.com/y": longText("second"),
	}}

	stats, err := New(fs, ex, workerConfig(), time.Minute).Work(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Stored)
	require.Len(t, fs.byHash, 2)
}

func TestWorker_TooShortIsTerminal(t *testing.T) {
	fs := newFakeWorkStore(store.RawArticle{ID: 5, URL: "https://example.com/short"})
	ex := fakeExtractor{errs: map[string]error{
		"https://example.com/short": fmt.Errorf("%w: 12 chars", extract.ErrTooShort),
	}}

	stats, err := New(fs, ex, workerConfig(), time.Minute).Work(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Errors)
	require.Equal(t, "too_short", fs.errored[5])
	require.Len(t, fs.diags, 1)
}

func TestWorker_TransientFailureRequeues(t *testing.T) {
	fs := newFakeWorkStore(store.RawArticle{ID: 9, URL: "https://example.com/down", AttemptCount: 0})
	ex := fakeExtractor{errs: map[string]error{
		"https://example.com/down": fmt.Errorf("connect: connection refused"),
	}}

	stats, err := New(fs, ex, workerConfig(), time.Minute).Work(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Requeued)
	require.Contains(t, fs.requeued[9], "refused")
}

func TestWorker_ExhaustedAttemptsAreTerminal(t *testing.T) {
	fs := newFakeWorkStore(store.RawArticle{ID: 9, URL: "https://example.com/down", AttemptCount: 2})
	ex := fakeExtractor{errs: map[string]error{
		"https://example.com/down": fmt.Errorf("connect: connection refused"),
	}}

	stats, err := New(fs, ex, workerConfig(), time.Minute).Work(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Errors)
	require.Contains(t, fs.errored[9], "refused")
}
