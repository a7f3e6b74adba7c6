package returns

import (
	"errors"
	"math"
	"testing"

	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/signal"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.8f, want %.8f", label, got, want)
	}
}

func TestCompute_MarketCompounding(t *testing.T) {
	closes := []float64{10, 11, 12, 11, 9, 8}
	s, err := Compute(closes, make([]model.Position, len(closes)))
	if err != nil {
		t.Fatal(err)
	}

	// Recompute Π(1+pct_change) in the same order; must match exactly.
	want := 1.0
	for i := 1; i < len(closes); i++ {
		want *= 1 + (closes[i]/closes[i-1] - 1)
	}
	if got := s.CumulativeMarket[len(closes)-1]; got != want {
		t.Errorf("cumulative market = %v, want exactly %v", got, want)
	}
	assertClose(t, "growth ≈ last/first", s.CumulativeMarket[5], 0.8, 1e-12)
}

func TestCompute_FirstBar(t *testing.T) {
	s, _ := Compute([]float64{100, 101}, []model.Position{model.Long, model.Long})
	if !math.IsNaN(s.MarketReturn[0]) || !math.IsNaN(s.StrategyReturn[0]) {
		t.Error("first-bar returns must be undefined")
	}
	if s.CumulativeMarket[0] != 1 || s.CumulativeStrategy[0] != 1 {
		t.Error("growth must start at 1.0")
	}
}

func TestCompute_OneBarLag(t *testing.T) {
	// Enter on bar 1: bar 1's return is not captured, bar 2's is.
	closes := []float64{100, 110, 121, 121}
	pos := []model.Position{0, 1, 1, 0}
	s, _ := Compute(closes, pos)

	if s.StrategyReturn[1] != 0 {
		t.Errorf("bar 1 strategy return = %v, want 0", s.StrategyReturn[1])
	}
	assertClose(t, "bar 2", s.StrategyReturn[2], 0.1, 1e-12)
	assertClose(t, "bar 3", s.StrategyReturn[3], 0.0, 1e-12)
	assertClose(t, "cum strategy", s.CumulativeStrategy[3], 1.1, 1e-12)
	assertClose(t, "cum market", s.CumulativeMarket[3], 1.21, 1e-12)
}

func TestCompute_ShortInvertsReturn(t *testing.T) {
	s, _ := Compute([]float64{100, 90}, []model.Position{model.Short, model.Short})
	assertClose(t, "short return", s.StrategyReturn[1], 0.1, 1e-12)
}

func TestCompute_AllFlatIsFlatCurve(t *testing.T) {
	s, _ := Compute([]float64{5, 7, 3, 9}, make([]model.Position, 4))
	for i, v := range s.CumulativeStrategy {
		if v != 1 {
			t.Errorf("bar %d: flat strategy growth = %v, want 1", i, v)
		}
	}
}

func TestCompute_Errors(t *testing.T) {
	if _, err := Compute([]float64{1, 2}, []model.Position{0}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	s, err := Compute(nil, nil)
	if err != nil || s.Len() != 0 {
		t.Errorf("empty input should give empty series, got %v / %d", err, s.Len())
	}
}

func TestMaxDrawdown(t *testing.T) {
	// peak 1.2, trough 0.9 → 25%
	assertClose(t, "dd", MaxDrawdown([]float64{1, 1.2, 1.0, 0.9, 1.1}), 0.25, 1e-12)
	if MaxDrawdown([]float64{1, 1.1, 1.2}) != 0 {
		t.Error("rising curve has no drawdown")
	}
}

func TestSummarize(t *testing.T) {
	closes := []float64{100, 110, 121, 121}
	pos := []model.Position{0, 1, 1, 0}
	s, _ := Compute(closes, pos)
	trades := []signal.Trade{
		{Side: model.Long, EntryIndex: 1, ExitIndex: 3, Return: 0.1, Reason: signal.ExitTrend},
	}
	sum := Summarize(s, pos, trades)

	assertClose(t, "strategy", sum.StrategyReturn, 0.1, 1e-12)
	assertClose(t, "market", sum.MarketReturn, 0.21, 1e-12)
	if sum.Trades != 1 || sum.Wins != 1 || sum.WinRate != 1 {
		t.Errorf("unexpected trade stats %+v", sum)
	}
	assertClose(t, "exposure", sum.Exposure, 0.5, 1e-12)
}
