package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"trading-backtestv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the daily bar table.
type Reader struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars reads bars for symbol with day in [start, end), ordered by day.
// A zero end is unbounded.
func (r *Reader) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	endDay := int64(1<<62 - 1)
	if !end.IsZero() {
		endDay = model.Day(end).Unix()
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, day, open, high, low, close, volume
		FROM bars_daily
		WHERE symbol = ? AND day >= ? AND day < ?
		ORDER BY day ASC
	`, strings.ToUpper(symbol), model.Day(start).Unix(), endDay)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars_daily: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var day int64
		if err := rows.Scan(&b.Symbol, &day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars_daily: %w", err)
		}
		b.Date = time.Unix(day, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// SymbolRange is the stored coverage of one symbol.
type SymbolRange struct {
	Symbol string    `json:"symbol"`
	First  time.Time `json:"first"`
	Last   time.Time `json:"last"`
	Bars   int       `json:"bars"`
}

// Symbols lists stored symbols with their first and last day.
func (r *Reader) Symbols(ctx context.Context) ([]SymbolRange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, MIN(day), MAX(day), COUNT(*)
		FROM bars_daily
		GROUP BY symbol
		ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []SymbolRange
	for rows.Next() {
		var s SymbolRange
		var first, last int64
		if err := rows.Scan(&s.Symbol, &first, &last, &s.Bars); err != nil {
			return nil, fmt.Errorf("sqlite scan symbols: %w", err)
		}
		s.First = time.Unix(first, 0).UTC()
		s.Last = time.Unix(last, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
