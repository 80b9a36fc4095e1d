package trends

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newswire/internal/config"
	"newswire/internal/store"
)

type fakeTrendStore struct {
	points []store.TrendPoint
	texts  map[int64]string
	calls  int
}

func (f *fakeTrendStore) RecentTrendPoints(_ context.Context, _ time.Time, limit int) ([]store.TrendPoint, error) {
	f.calls++
	if len(f.points) > limit {
		return f.points[:limit], nil
	}
	return f.points, nil
}

func (f *fakeTrendStore) ChunkTextsByArticle(_ context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	for _, id := range ids {
		if t, ok := f.texts[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func trendsConfig() config.TrendsConfig {
	return config.TrendsConfig{
		WindowHours: 24, Limit: 600, TopN: 10,
		Eps: 0.30, MinSamples: 5, Keywords: 6, TTL: 10 * time.Minute,
	}
}

func clusterPoints(startID int64, dim, mainAxis, n int, text string, texts map[int64]string, when time.Time) []store.TrendPoint {
	points := make([]store.TrendPoint, n)
	for i := 0; i < n; i++ {
		wobble := float32(i) * 0.02
		points[i] = store.TrendPoint{
			ArticleID:   startID + int64(i),
			Title:       text,
			PublishedAt: when.Add(time.Duration(i) * time.Minute),
			Embedding:   axis(dim, mainAxis, wobble),
		}
		texts[startID+int64(i)] = text
	}
	return points
}

func TestService_BuildsRankedTrends(t *testing.T) {
	now := time.Now().UTC()
	texts := map[int64]string{}
	fs := &fakeTrendStore{texts: texts}
	fs.points = append(fs.points,
		clusterPoints(100, 8, 0, 6, "central bank raises interest rates", texts, now.Add(-2*time.Hour))...)
	fs.points = append(fs.points,
		clusterPoints(200, 8, 3, 5, "championship final penalty shootout", texts, now.Add(-20*time.Hour))...)

	svc := New(fs, newMemoryCache(10*time.Minute), trendsConfig())
	payload, err := svc.BuildJSON(context.Background(), 24, 600, 10)
	require.NoError(t, err)

	var trends []Trend
	require.NoError(t, json.Unmarshal(payload, &trends))
	require.Len(t, trends, 2)

	// The recent, denser cluster must outrank the older one.
	require.GreaterOrEqual(t, trends[0].Score, trends[1].Score)
	require.Equal(t, 11, trends[0].Volume+trends[1].Volume)
	for _, tr := range trends {
		require.NotEmpty(t, tr.Label)
		require.NotEmpty(t, tr.Keywords)
		require.NotEmpty(t, tr.ArticleIDs)
	}
	recent := trends[0]
	require.Contains(t, strings.Join(recent.Keywords, " "), "rates")
}

func TestService_EmptyWindow(t *testing.T) {
	fs := &fakeTrendStore{texts: map[int64]string{}}
	svc := New(fs, newMemoryCache(time.Minute), trendsConfig())
	payload, err := svc.BuildJSON(context.Background(), 24, 600, 10)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(payload))
}

func TestService_BelowMinSamplesIsEmpty(t *testing.T) {
	now := time.Now().UTC()
	texts := map[int64]string{}
	fs := &fakeTrendStore{texts: texts, points: clusterPoints(1, 8, 0, 4, "too few", texts, now.Add(-time.Hour))}
	svc := New(fs, newMemoryCache(time.Minute), trendsConfig())
	payload, err := svc.BuildJSON(context.Background(), 24, 600, 10)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(payload))
}

func TestService_CacheIsByteIdentical(t *testing.T) {
	now := time.Now().UTC()
	texts := map[int64]string{}
	fs := &fakeTrendStore{texts: texts, points: clusterPoints(1, 8, 0, 6, "breaking news cluster", texts, now.Add(-time.Hour))}
	svc := New(fs, newMemoryCache(10*time.Minute), trendsConfig())

	first, err := svc.BuildJSON(context.Background(), 24, 600, 10)
	require.NoError(t, err)
	second, err := svc.BuildJSON(context.Background(), 24, 600, 10)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, fs.calls, "second call must come from cache")

	// Different parameters miss the cache.
	_, err = svc.BuildJSON(context.Background(), 12, 600, 10)
	require.NoError(t, err)
	require.Equal(t, 2, fs.calls)
}
