package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"newswire/internal/config"
	"newswire/internal/store"
)

// Store is the storage slice the trends service needs.
type Store interface {
	RecentTrendPoints(ctx context.Context, since time.Time, limit int) ([]store.TrendPoint, error)
	ChunkTextsByArticle(ctx context.Context, articleIDs []int64) (map[int64]string, error)
}

// Trend is one ranked topic cluster.
type Trend struct {
	Label          string   `json:"label"`
	Keywords       []string `json:"keywords"`
	Volume         int      `json:"volume"`
	Momentum       float64  `json:"momentum"`
	BurstIntensity float64  `json:"burst_intensity"`
	Score          float64  `json:"score"`
	ArticleIDs     []int64  `json:"article_ids"`
}

// Service clusters recent article embeddings into ranked trends.
type Service struct {
	store Store
	cache Cache
	cfg   config.TrendsConfig
}

// New builds the trends service.
func New(s Store, cache Cache, cfg config.TrendsConfig) *Service {
	return &Service{store: s, cache: cache, cfg: cfg}
}

// BuildJSON returns the ranked trend list for the parameters as canonical
// JSON. Results are cached for the TTL under the parameter key, so repeat
// calls within the TTL are byte-identical.
func (s *Service) BuildJSON(ctx context.Context, windowHours, limit, topN int) ([]byte, error) {
	if windowHours <= 0 {
		windowHours = s.cfg.WindowHours
	}
	if limit <= 0 {
		limit = s.cfg.Limit
	}
	if topN <= 0 {
		topN = s.cfg.TopN
	}
	key := fmt.Sprintf("trends:%d:%d:%d", windowHours, limit, topN)
	if cached, ok := s.cache.Get(ctx, key); ok {
		return cached, nil
	}

	trends, err := s.build(ctx, windowHours, limit, topN)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(trends)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, payload)
	return payload, nil
}

func (s *Service) build(ctx context.Context, windowHours, limit, topN int) ([]Trend, error) {
	windowEnd := time.Now().UTC().Truncate(time.Hour).Add(time.Hour)
	windowStart := windowEnd.Add(-time.Duration(windowHours) * time.Hour)

	points, err := s.store.RecentTrendPoints(ctx, windowStart, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch trend points: %w", err)
	}
	if len(points) < s.cfg.MinSamples {
		return []Trend{}, nil
	}

	vectors := make([][]float32, len(points))
	for i, p := range points {
		vectors[i] = UnitNormalize(p.Embedding)
	}
	labels := DBSCAN(vectors, s.cfg.Eps, s.cfg.MinSamples)

	// Group members per cluster; noise is discarded.
	members := map[int][]int{}
	for i, label := range labels {
		if label == Noise {
			continue
		}
		members[label] = append(members[label], i)
	}
	if len(members) == 0 {
		return []Trend{}, nil
	}

	clusterText, err := s.clusterTexts(ctx, points, members)
	if err != nil {
		return nil, err
	}

	trends := make([]Trend, 0, len(members))
	clusterIDs := make([]int, 0, len(members))
	for id := range members {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Ints(clusterIDs)
	for _, id := range clusterIDs {
		idxs := members[id]
		times := make([]time.Time, len(idxs))
		articleIDs := make([]int64, len(idxs))
		for i, idx := range idxs {
			times[i] = points[idx].PublishedAt.UTC()
			articleIDs[i] = points[idx].ArticleID
		}
		sort.Slice(articleIDs, func(i, j int) bool { return articleIDs[i] < articleIDs[j] })

		keywords := ClusterKeywords(clusterText, id, s.cfg.Keywords)
		dyn := ComputeDynamics(times, windowStart, windowEnd)
		trends = append(trends, Trend{
			Label:          Label(keywords),
			Keywords:       keywords,
			Volume:         dyn.Volume,
			Momentum:       dyn.Momentum,
			BurstIntensity: dyn.BurstIntensity,
			ArticleIDs:     articleIDs,
		})
	}

	scoreTrends(trends)
	sort.SliceStable(trends, func(i, j int) bool {
		if trends[i].Score != trends[j].Score {
			return trends[i].Score > trends[j].Score
		}
		if trends[i].Volume != trends[j].Volume {
			return trends[i].Volume > trends[j].Volume
		}
		return trends[i].Label < trends[j].Label
	})
	if len(trends) > topN {
		trends = trends[:topN]
	}
	return trends, nil
}

// clusterTexts concatenates the chunk text of each cluster's members for
// keyword extraction.
func (s *Service) clusterTexts(ctx context.Context, points []store.TrendPoint, members map[int][]int) (map[int]string, error) {
	var ids []int64
	for _, idxs := range members {
		for _, idx := range idxs {
			ids = append(ids, points[idx].ArticleID)
		}
	}
	texts, err := s.store.ChunkTextsByArticle(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch cluster texts: %w", err)
	}
	out := make(map[int]string, len(members))
	for id, idxs := range members {
		var joined []byte
		for _, idx := range idxs {
			p := points[idx]
			text, ok := texts[p.ArticleID]
			if !ok {
				// Title is better than nothing when chunks are not yet
				// persisted for a member.
				text = p.Title
				log.Debug().Int64("article_id", p.ArticleID).Msg("no chunk text for cluster member")
			}
			if len(joined) > 0 {
				joined = append(joined, ' ')
			}
			joined = append(joined, text...)
		}
		out[id] = string(joined)
	}
	return out, nil
}

// scoreTrends normalizes burst, momentum, and volume to [0,1] across the
// clusters in this call and combines them 0.5/0.3/0.2.
func scoreTrends(trends []Trend) {
	if len(trends) == 0 {
		return
	}
	var maxBurst, maxMomentum, maxVolume float64
	for _, t := range trends {
		if t.BurstIntensity > maxBurst {
			maxBurst = t.BurstIntensity
		}
		if t.Momentum > maxMomentum {
			maxMomentum = t.Momentum
		}
		if v := float64(t.Volume); v > maxVolume {
			maxVolume = v
		}
	}
	for i := range trends {
		var burstN, momentumN, volumeN float64
		if maxBurst > 0 {
			burstN = trends[i].BurstIntensity / maxBurst
		}
		if maxMomentum > 0 {
			momentumN = trends[i].Momentum / maxMomentum
			if momentumN < 0 {
				momentumN = 0
			}
		}
		if maxVolume > 0 {
			volumeN = float64(trends[i].Volume) / maxVolume
		}
		trends[i].Score = 0.5*burstN + 0.3*momentumN + 0.2*volumeN
	}
}
