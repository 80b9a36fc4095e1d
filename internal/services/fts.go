package services

import (
	"context"
	"fmt"
)

// FTSStore is the storage slice the FTS service needs.
type FTSStore interface {
	PopulateFTS(ctx context.Context, defaultConfig string, batch int) (int64, error)
}

// FTS fills fts_vector for new chunks. It has no external dependencies and
// must be startable with nothing but a database.
type FTS struct {
	store         FTSStore
	defaultConfig string
	batch         int
}

// NewFTS builds the FTS service.
func NewFTS(s FTSStore, defaultConfig string, batch int) *FTS {
	return &FTS{store: s, defaultConfig: defaultConfig, batch: batch}
}

func (f *FTS) Name() string { return "fts" }

func (f *FTS) Tick(ctx context.Context) (int, error) {
	n, err := f.store.PopulateFTS(ctx, f.defaultConfig, f.batch)
	if err != nil {
		return 0, fmt.Errorf("populate fts: %w", err)
	}
	return int(n), nil
}
