package provider

import (
	"context"
	"time"

	"trading-backtestv1/internal/model"
)

// Store serves bars from a model.BarReader such as the SQLite store.
type Store struct {
	reader model.BarReader
}

// NewStore wraps r.
func NewStore(r model.BarReader) *Store { return &Store{reader: r} }

func (s *Store) Name() string { return "sqlite" }

func (s *Store) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	return s.reader.ReadBars(ctx, symbol, start, end)
}
