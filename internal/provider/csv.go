package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trading-backtestv1/internal/model"
)

// CSV reads bars from "<dir>/<SYMBOL>.csv" files with a
// Date,Open,High,Low,Close[,Volume] header.
type CSV struct {
	dir string
}

// NewCSV creates a CSV provider rooted at dir.
func NewCSV(dir string) *CSV { return &CSV{dir: dir} }

func (c *CSV) Name() string { return "csv" }

// FetchBars reads the symbol's file and keeps bars in [start, end).
// A missing file yields no bars.
func (c *CSV) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	f, err := os.Open(filepath.Join(c.dir, fileName(symbol)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("csv open %s: %w", symbol, err)
	}
	defer f.Close()

	all, err := ParseCSV(f, symbol)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, b := range all {
		if b.Date.Before(model.Day(start)) || (!end.IsZero() && !b.Date.Before(model.Day(end))) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// fileName strips characters that cannot appear in a file name, so
// "^VIX" reads VIX.csv.
func fileName(symbol string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '^', '/', '\\', ':':
			return -1
		}
		return r
	}, strings.ToUpper(symbol))
	return s + ".csv"
}

var csvDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "01/02/2006"}

// ParseCSV decodes a Date,Open,High,Low,Close[,Volume] file. Columns are
// located by header name, case-insensitively; "Adj Close" is ignored.
func ParseCSV(r io.Reader, symbol string) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("csv header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, need := range []string{"date", "close"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("csv: missing %q column", need)
		}
	}

	num := func(rec []string, name string) (float64, error) {
		i, ok := col[name]
		if !ok || i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
			return 0, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	}

	var bars []model.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		if i := col["date"]; i >= len(rec) {
			return nil, fmt.Errorf("csv line %d: %d fields, date is column %d", line, len(rec), i+1)
		}
		d, err := parseDate(rec[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		b := model.Bar{Symbol: strings.ToUpper(symbol), Date: d}
		for name, dst := range map[string]*float64{"open": &b.Open, "high": &b.High, "low": &b.Low, "close": &b.Close} {
			v, err := num(rec, name)
			if err != nil {
				return nil, fmt.Errorf("csv line %d %s: %w", line, name, err)
			}
			*dst = v
		}
		if vol, err := num(rec, "volume"); err == nil {
			b.Volume = int64(vol)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
