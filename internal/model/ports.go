package model

import (
	"context"
	"time"
)

// ── Price Port Interfaces ──
// These interfaces decouple the backtest pipeline from concrete price sources
// (Yahoo, CSV, SQLite, Redis cache).

// PriceProvider supplies ordered daily bars for a symbol over [start, end).
// An empty slice with a nil error means the source has no data.
type PriceProvider interface {
	// Name returns the provider name for logs and metrics.
	Name() string

	// FetchBars returns bars sorted by date ascending.
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// BarReader reads stored daily bars.
type BarReader interface {
	// ReadBars reads bars for symbol over [start, end), ordered by date.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)

	// Close releases underlying resources.
	Close() error
}

// BarWriter persists daily bars.
type BarWriter interface {
	// WriteBars upserts bars in a single transaction.
	WriteBars(ctx context.Context, bars []Bar) error

	// Close releases underlying resources.
	Close() error
}
