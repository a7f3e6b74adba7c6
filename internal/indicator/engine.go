package indicator

import (
	"fmt"
	"strings"
)

// Indicator types understood by New.
const (
	TypeSMA = "SMA"
	TypeEMA = "EMA"
	TypeRSI = "RSI"
)

// IndicatorConfig specifies a single indicator to compute.
type IndicatorConfig struct {
	Type   string // "SMA", "EMA", "RSI"
	Period int
}

// Name returns the column name the config produces, e.g. "SMA_20".
func (c IndicatorConfig) Name() string {
	return strings.ToUpper(c.Type) + "_" + itoa(c.Period)
}

// New creates a fresh indicator instance for cfg.
func New(cfg IndicatorConfig) (Indicator, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("%w: %s period %d", ErrInvalidPeriod, cfg.Type, cfg.Period)
	}
	switch strings.ToUpper(cfg.Type) {
	case TypeSMA:
		return NewSMA(cfg.Period), nil
	case TypeEMA:
		return NewEMA(cfg.Period), nil
	case TypeRSI:
		return NewRSI(cfg.Period), nil
	default:
		return nil, fmt.Errorf("indicator: unknown type %q", cfg.Type)
	}
}

// Warmup returns the most bars any of configs consumes before its first
// defined value.
func Warmup(configs ...IndicatorConfig) (int, error) {
	n := 0
	for _, cfg := range configs {
		ind, err := New(cfg)
		if err != nil {
			return 0, err
		}
		n = max(n, ind.Warmup())
	}
	return n, nil
}

// Column is a named indicator series aligned with the close series.
type Column struct {
	Name   string
	Values []float64
}

// Compute builds one column per config over closes.
func Compute(closes []float64, configs ...IndicatorConfig) ([]Column, error) {
	if len(closes) == 0 {
		return nil, ErrEmptyInput
	}
	cols := make([]Column, 0, len(configs))
	for _, cfg := range configs {
		ind, err := New(cfg)
		if err != nil {
			return nil, err
		}
		cols = append(cols, Column{Name: ind.Name(), Values: Series(ind, closes)})
	}
	return cols, nil
}

// itoa converts int to string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
