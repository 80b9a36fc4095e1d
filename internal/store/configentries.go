package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// GetConfigEntry reads a runtime-tunable parameter. Missing keys return
// ok=false rather than an error.
func (s *Store) GetConfigEntry(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.Pool.QueryRow(ctx, `SELECT value FROM config_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetConfigEntry writes a runtime-tunable parameter, last writer wins.
func (s *Store) SetConfigEntry(ctx context.Context, key, value string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO config_entries (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	return err
}
