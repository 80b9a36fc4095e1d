package rag

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"newswire/internal/embedding"
	"newswire/internal/store"
)

// Hit is one retrieved chunk with its article context.
type Hit struct {
	ChunkID   int64
	ArticleID int64
	Title     string
	URL       string
	Text      string
}

// Searcher answers ad-hoc queries by merging vector similarity with
// full-text rank over the chunk store.
type Searcher struct {
	store    *store.Store
	embedder embedding.Embedder
	ftsCfg   string
}

// NewSearcher builds the hybrid searcher.
func NewSearcher(s *store.Store, e embedding.Embedder, ftsConfig string) *Searcher {
	return &Searcher{store: s, embedder: e, ftsCfg: ftsConfig}
}

// Search embeds the query, collects chunk ids from vector KNN and from the
// FTS index, merges them (union, vector hits first), and returns the chunks.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	vecs, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: empty response")
	}

	var ordered []int64
	seen := map[int64]bool{}

	rows, err := s.store.Pool.Query(ctx, `
		SELECT chunk_id FROM article_chunks
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`, pgvector.NewVector(vecs[0]), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.store.Pool.Query(ctx, `
		SELECT chunk_id FROM article_chunks
		WHERE fts_vector @@ plainto_tsquery($1::regconfig, $2)
		ORDER BY ts_rank(fts_vector, plainto_tsquery($1::regconfig, $2)) DESC
		LIMIT $3`, s.ftsCfg, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	if len(ordered) == 0 {
		return []Hit{}, nil
	}
	return s.fetch(ctx, ordered)
}

func (s *Searcher) fetch(ctx context.Context, ids []int64) ([]Hit, error) {
	rows, err := s.store.Pool.Query(ctx, `
		SELECT c.chunk_id, c.article_id, a.title, a.canonical_url, c.text
		FROM article_chunks c
		JOIN articles_index a ON a.article_id = c.article_id
		WHERE c.chunk_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch hits: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]Hit, len(ids))
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ChunkID, &h.ArticleID, &h.Title, &h.URL, &h.Text); err != nil {
			return nil, err
		}
		byID[h.ChunkID] = h
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Preserve merge order.
	hits := make([]Hit, 0, len(ids))
	for _, id := range ids {
		if h, ok := byID[id]; ok {
			hits = append(hits, h)
		}
	}
	return hits, nil
}
