package store

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables and indexes if they do not exist. The
// embedding column dimension is fixed at creation time; a deployment that
// changes EMBEDDING_DIM must migrate the column explicitly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS feeds (
			id BIGSERIAL PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'active',
			last_fetched_at TIMESTAMPTZ,
			last_etag TEXT NOT NULL DEFAULT '',
			last_modified TEXT NOT NULL DEFAULT '',
			consecutive_failures INT NOT NULL DEFAULT 0,
			next_poll_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS raw_articles (
			id BIGSERIAL PRIMARY KEY,
			feed_id BIGINT REFERENCES feeds(id),
			url TEXT NOT NULL,
			url_hash TEXT NOT NULL UNIQUE,
			guid TEXT NOT NULL DEFAULT '',
			source_domain TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			published_at TIMESTAMPTZ,
			fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			status TEXT NOT NULL DEFAULT 'pending',
			attempt_count INT NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			canonical_article_id BIGINT,
			next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			claimed_at TIMESTAMPTZ,
			claimed_by TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS raw_articles_status_idx
			ON raw_articles (status, next_attempt_at)`,

		`CREATE TABLE IF NOT EXISTS articles_index (
			article_id BIGSERIAL PRIMARY KEY,
			url TEXT NOT NULL,
			canonical_url TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			domain TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			title_norm TEXT NOT NULL DEFAULT '',
			clean_text TEXT NOT NULL,
			text_hash TEXT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			is_canonical BOOLEAN NOT NULL DEFAULT TRUE,
			canonical_article_id BIGINT,
			chunking_status TEXT NOT NULL DEFAULT 'pending',
			claimed_at TIMESTAMPTZ,
			claimed_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS articles_index_text_hash_idx
			ON articles_index (text_hash) WHERE is_canonical`,
		`CREATE INDEX IF NOT EXISTS articles_index_published_idx
			ON articles_index (published_at DESC)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS article_chunks (
			chunk_id BIGSERIAL PRIMARY KEY,
			article_id BIGINT NOT NULL REFERENCES articles_index(article_id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			text TEXT NOT NULL,
			topic TEXT,
			type TEXT NOT NULL DEFAULT 'body',
			token_estimate INT NOT NULL DEFAULT 0,
			embedding vector(%d),
			fts_vector TSVECTOR,
			embedding_status TEXT NOT NULL DEFAULT 'pending',
			embedding_attempt_count INT NOT NULL DEFAULT 0,
			claimed_at TIMESTAMPTZ,
			claimed_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (article_id, chunk_index)
		)`, s.dim),
		`CREATE INDEX IF NOT EXISTS article_chunks_fts_idx
			ON article_chunks USING gin (fts_vector)`,
		`CREATE INDEX IF NOT EXISTS article_chunks_embedding_idx
			ON article_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,

		`CREATE TABLE IF NOT EXISTS diagnostics (
			id BIGSERIAL PRIMARY KEY,
			level TEXT NOT NULL,
			component TEXT NOT NULL,
			message TEXT NOT NULL,
			details JSONB,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS config_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if err := s.execWithRetry(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
