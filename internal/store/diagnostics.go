package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// Diagnostic levels.
const (
	DiagInfo  = "info"
	DiagWarn  = "warn"
	DiagError = "error"
)

// Diagnostic is one append-only event row.
type Diagnostic struct {
	Level      string
	Component  string
	Message    string
	Details    map[string]any
	OccurredAt time.Time
}

// Diag appends an event to the diagnostics log. The log is best-effort: a
// failure to record a diagnostic must never fail the caller's path, so errors
// are only logged.
func (s *Store) Diag(ctx context.Context, level, component, message string, details map[string]any) {
	var payload []byte
	if details != nil {
		payload, _ = json.Marshal(details)
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO diagnostics (level, component, message, details)
		VALUES ($1, $2, $3, $4)`, level, component, message, payload)
	if err != nil {
		log.Error().Err(err).Str("component", component).Str("message", message).
			Msg("failed to record diagnostic")
	}
}

// RecentDiagnostics returns the newest error-level events for reporting.
func (s *Store) RecentDiagnostics(ctx context.Context, since time.Time, limit int) ([]Diagnostic, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT level, component, message, COALESCE(details, 'null'::jsonb), occurred_at
		FROM diagnostics
		WHERE occurred_at >= $1 AND level = 'error'
		ORDER BY occurred_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var d Diagnostic
		var payload []byte
		if err := rows.Scan(&d.Level, &d.Component, &d.Message, &payload, &d.OccurredAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(payload, &d.Details)
		out = append(out, d)
	}
	return out, rows.Err()
}
