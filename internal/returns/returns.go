// Package returns converts a position sequence and its closes into market
// and strategy return series and their compounded growth curves.
package returns

import (
	"errors"
	"fmt"
	"math"

	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/signal"
)

// ErrLengthMismatch is returned when closes and positions differ in length.
var ErrLengthMismatch = errors.New("returns: closes and positions differ in length")

// Series holds per-bar returns and growth indexes, all aligned with the
// input closes. Index 0 has NaN returns (no prior close) and 1.0 growth.
type Series struct {
	MarketReturn       []float64
	StrategyReturn     []float64
	CumulativeMarket   []float64
	CumulativeStrategy []float64
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.MarketReturn) }

// Compute derives the return series. The strategy return at bar i applies
// the position decided at bar i-1, so an entry never earns its own bar.
func Compute(closes []float64, positions []model.Position) (Series, error) {
	if len(closes) != len(positions) {
		return Series{}, fmt.Errorf("%w: %d closes, %d positions", ErrLengthMismatch, len(closes), len(positions))
	}
	n := len(closes)
	s := Series{
		MarketReturn:       make([]float64, n),
		StrategyReturn:     make([]float64, n),
		CumulativeMarket:   make([]float64, n),
		CumulativeStrategy: make([]float64, n),
	}
	if n == 0 {
		return s, nil
	}

	s.MarketReturn[0] = math.NaN()
	s.StrategyReturn[0] = math.NaN()
	s.CumulativeMarket[0] = 1.0
	s.CumulativeStrategy[0] = 1.0

	for i := 1; i < n; i++ {
		mr := closes[i]/closes[i-1] - 1
		sr := mr * positions[i-1].Float()
		s.MarketReturn[i] = mr
		s.StrategyReturn[i] = sr
		s.CumulativeMarket[i] = s.CumulativeMarket[i-1] * (1 + mr)
		s.CumulativeStrategy[i] = s.CumulativeStrategy[i-1] * (1 + sr)
	}
	return s, nil
}

// Summary rolls up one run's performance.
type Summary struct {
	StrategyReturn float64 `json:"strategy_return"` // final growth - 1
	MarketReturn   float64 `json:"market_return"`   // buy-and-hold growth - 1
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	WinRate        float64 `json:"win_rate"`     // wins / trades
	MaxDrawdown    float64 `json:"max_drawdown"` // largest peak-to-trough drop of the strategy curve
	Exposure       float64 `json:"exposure"`     // fraction of bars holding a position
}

// Summarize computes a Summary from a run's outputs.
func Summarize(s Series, positions []model.Position, trades []signal.Trade) Summary {
	var sum Summary
	n := s.Len()
	if n == 0 {
		return sum
	}
	sum.StrategyReturn = s.CumulativeStrategy[n-1] - 1
	sum.MarketReturn = s.CumulativeMarket[n-1] - 1

	sum.Trades = len(trades)
	for _, t := range trades {
		if t.Return > 0 {
			sum.Wins++
		}
	}
	if sum.Trades > 0 {
		sum.WinRate = float64(sum.Wins) / float64(sum.Trades)
	}

	sum.MaxDrawdown = MaxDrawdown(s.CumulativeStrategy)

	held := 0
	for _, p := range positions {
		if p != model.Flat {
			held++
		}
	}
	if len(positions) > 0 {
		sum.Exposure = float64(held) / float64(len(positions))
	}
	return sum
}

// MaxDrawdown returns the largest fractional drop from a running peak.
func MaxDrawdown(curve []float64) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
