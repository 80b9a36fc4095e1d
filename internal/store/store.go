package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/rs/zerolog/log"
)

// Store is the typed access layer over the relational schema. All durable
// state is owned here; services hold only claim leases.
type Store struct {
	Pool *pgxpool.Pool
	dim  int
}

// New connects a pgx pool and registers the pgvector types on every
// connection. dim is the configured embedding dimension enforced by the
// schema and by WriteEmbedding.
func New(ctx context.Context, dsn string, dim int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse PG_DSN: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{Pool: pool, dim: dim}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.Pool.Close() }

// execWithRetry executes a DB command with retries, for DDL and other
// statements where a transient failure should not bubble up immediately.
func (s *Store) execWithRetry(ctx context.Context, sqlQuery string, args ...any) error {
	var err error
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		_, err = s.Pool.Exec(ctx, sqlQuery, args...)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("db exec failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}
	return fmt.Errorf("db exec failed after retries: %w", err)
}
