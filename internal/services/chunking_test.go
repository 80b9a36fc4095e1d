package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newswire/internal/chunking"
	"newswire/internal/store"
)

type fakeChunkStore struct {
	articles  []store.Article
	persisted map[int64][]store.Chunk
	errored   map[int64]bool
	diags     []string
}

func newFakeChunkStore(articles ...store.Article) *fakeChunkStore {
	return &fakeChunkStore{articles: articles, persisted: map[int64][]store.Chunk{}, errored: map[int64]bool{}}
}

func (f *fakeChunkStore) ClaimUnchunked(context.Context, string, int, time.Duration) ([]store.Article, error) {
	claimed := f.articles
	f.articles = nil
	return claimed, nil
}

func (f *fakeChunkStore) ReplaceChunks(_ context.Context, articleID int64, chunks []store.Chunk) error {
	f.persisted[articleID] = chunks
	return nil
}

func (f *fakeChunkStore) MarkChunkingError(_ context.Context, articleID int64) error {
	f.errored[articleID] = true
	return nil
}

func (f *fakeChunkStore) Diag(_ context.Context, _, _, message string, _ map[string]any) {
	f.diags = append(f.diags, message)
}

type scriptedGen struct {
	responses map[string]string // matched by substring of the prompt
	err       error
}

func (g scriptedGen) Generate(_ context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	for needle, response := range g.responses {
		if needle == "" || strings.Contains(prompt, needle) {
			return response, nil
		}
	}
	return "", errors.New("no scripted response")
}

func TestChunkingService_PersistsChunks(t *testing.T) {
	fs := newFakeChunkStore(store.Article{ID: 1, Title: "A", CleanText: "body", Language: "en"})
	chunker := chunking.New(scriptedGen{responses: map[string]string{
		"": `[{"text":"A","topic":"T1","type":"intro"},{"text":"B","topic":"T2","type":"body"}]`,
	}})
	svc := NewChunking(fs, chunker, 10, time.Minute)

	n, err := svc.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, fs.persisted[1], 2)
	require.Empty(t, fs.diags)
}

func TestChunkingService_FallbackRecordsParseError(t *testing.T) {
	fs := newFakeChunkStore(store.Article{ID: 2, Title: "B", CleanText: "Para one.\n\nPara two.", Language: "en"})
	chunker := chunking.New(scriptedGen{responses: map[string]string{"": "sorry, I cannot"}})
	svc := NewChunking(fs, chunker, 10, time.Minute)

	n, err := svc.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, fs.persisted[2], 2)
	require.Equal(t, []string{"parse_error"}, fs.diags)
}

func TestChunkingService_TransientLLMFailureLeavesClaim(t *testing.T) {
	fs := newFakeChunkStore(store.Article{ID: 3, Title: "C", CleanText: "body", Language: "en"})
	chunker := chunking.New(scriptedGen{err: errors.New("connection refused")})
	svc := NewChunking(fs, chunker, 10, time.Minute)

	n, err := svc.Tick(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, fs.persisted)
	require.False(t, fs.errored[3]) // lease expiry retries it, not terminal
}

func TestChunkingService_UnsupportedLanguage(t *testing.T) {
	fs := newFakeChunkStore(store.Article{ID: 4, Title: "D", CleanText: "texte", Language: "fr"})
	chunker := chunking.New(scriptedGen{responses: map[string]string{"": `[{"text":"x"}]`}})
	svc := NewChunking(fs, chunker, 10, time.Minute)

	_, err := svc.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, fs.errored[4])
	require.Empty(t, fs.persisted)
}
