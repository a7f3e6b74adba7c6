package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/signal"
	"trading-backtestv1/internal/strategy"
)

// fakeProvider serves fixed closes on consecutive days from 2024-01-01.
type fakeProvider struct {
	closes []float64
	err    error
	calls  atomic.Int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchBars(_ context.Context, symbol string, _, _ time.Time) ([]model.Bar, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return barsFrom(symbol, f.closes), nil
}

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func barsFrom(symbol string, closes []float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Symbol: symbol, Date: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func baseRequest(specs ...strategy.Spec) Request {
	return Request{
		Symbol:     "TEST",
		Start:      "2024-01-01",
		End:        "2024-03-01",
		TakeProfit: 0.20,
		StopLoss:   0.05,
		Strategies: specs,
	}
}

func assertClose(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("%s: got %v, want %v", label, got, want)
	}
}

func positionsOf(r Result) []model.Position { return r.Positions() }

func assertPositions(t *testing.T, got []model.Position, want ...model.Position) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("positions len=%d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("positions[%d]=%v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestRun_SMAScenarioStopLoss(t *testing.T) {
	// SMA2: -, 10.5, 11.5, 11.5, 10, 8.5
	// SMA3: -, -, 11, 11.33, 10.67, 9.33
	// Trimmed closes 12, 11, 9, 8. Enter at 12 (11.5 > 11); next bar
	// 11/12-1 = -8.3% <= -5% exits on stop loss while the trend is still up.
	p := &fakeProvider{closes: []float64{10, 11, 12, 11, 9, 8}}
	r := NewRunner(p, nil)

	rep, err := r.Run(context.Background(), baseRequest(strategy.Spec{Type: "sma", Short: strategy.Int(2), Long: strategy.Int(3)}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Bars != 6 {
		t.Errorf("bars=%d, want 6", rep.Bars)
	}
	res := rep.Results[0]
	if res.Err != nil {
		t.Fatalf("result err: %v", res.Err)
	}
	if res.Strategy != "SMA(2/3)" {
		t.Errorf("strategy=%q", res.Strategy)
	}
	assertPositions(t, positionsOf(res), model.Long, model.Flat, model.Flat, model.Flat)

	if !res.Rows[0].Date.Equal(day0.AddDate(0, 0, 2)) {
		t.Errorf("first row date=%v, want 2024-01-03", res.Rows[0].Date)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("trades=%d, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.EntryIndex != 0 || tr.ExitIndex != 1 || tr.Reason != signal.ExitStopLoss {
		t.Errorf("trade=%+v", tr.Trade)
	}
	if !tr.ExitDate.Equal(day0.AddDate(0, 0, 3)) {
		t.Errorf("exit date=%v", tr.ExitDate)
	}

	if !math.IsNaN(res.Rows[0].MarketReturn) || !math.IsNaN(res.Rows[0].StrategyReturn) {
		t.Error("first row returns must be undefined")
	}
	assertClose(t, "strategy[1]", res.Rows[1].StrategyReturn, 11.0/12.0-1)
	assertClose(t, "strategy[2]", res.Rows[2].StrategyReturn, 0)
	assertClose(t, "cum strategy", res.Rows[3].CumulativeStrategy, 11.0/12.0)
	assertClose(t, "cum market", res.Rows[3].CumulativeMarket, 8.0/12.0)
	assertClose(t, "sma2 column", res.Rows[0].Indicators["SMA_2"], 11.5)
}

func TestRun_RSICrossings(t *testing.T) {
	// RSI(3) by original bar: 3-5 -> 0, 6 -> 33.3, 8 -> 70.4, 12 -> 94.1,
	// 13 -> 62.8, 15 -> 27.9. Trimmed index = original - 3.
	// Entry on the cross up through 30 (bar 6), exit on the cross down
	// through 70 (bar 13); touching 70 on the way up at bar 8 is no exit.
	closes := []float64{20, 19, 18, 17, 16, 15, 16, 17, 18, 19, 20, 21, 22, 21, 20, 19, 18, 17}
	p := &fakeProvider{closes: closes}
	req := baseRequest(strategy.Spec{Type: "rsi", Period: strategy.Int(3), Overbought: strategy.Float(70), Oversold: strategy.Float(30)})
	req.TakeProfit, req.StopLoss = 0, 0.5

	rep, err := NewRunner(p, nil).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := rep.Results[0]
	if len(res.Rows) != len(closes)-3 {
		t.Fatalf("rows=%d, want %d", len(res.Rows), len(closes)-3)
	}
	assertClose(t, "rsi at floor", res.Rows[0].Indicators["RSI_3"], 0)

	F, L := model.Flat, model.Long
	assertPositions(t, positionsOf(res), F, F, F, L, L, L, L, L, L, L, F, F, F, F, F)

	if len(res.Trades) != 1 {
		t.Fatalf("trades=%d, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.EntryIndex != 3 || tr.ExitIndex != 10 || tr.Reason != signal.ExitTrend {
		t.Errorf("trade=%+v", tr.Trade)
	}
	assertClose(t, "trade return", tr.Return, (21.0-16.0)/16.0)
}

func TestRun_NeverTradesIsValidAllFlat(t *testing.T) {
	// Falling closes: SMA short stays below long.
	p := &fakeProvider{closes: []float64{10, 9, 8, 7, 6, 5}}
	rep, err := NewRunner(p, nil).Run(context.Background(), baseRequest(strategy.Spec{Type: "sma", Short: strategy.Int(2), Long: strategy.Int(3)}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := rep.Results[0]
	if res.Err != nil || res.Empty() {
		t.Fatalf("expected populated result, err=%v rows=%d", res.Err, len(res.Rows))
	}
	for i, row := range res.Rows {
		if row.Position != model.Flat {
			t.Errorf("row %d position=%v", i, row.Position)
		}
		if row.CumulativeStrategy != 1 {
			t.Errorf("row %d cumulative strategy=%v, want 1", i, row.CumulativeStrategy)
		}
	}
	if res.Summary.Trades != 0 || res.Summary.StrategyReturn != 0 {
		t.Errorf("summary=%+v", res.Summary)
	}
}

func TestRun_InsufficientHistory(t *testing.T) {
	p := &fakeProvider{closes: []float64{10, 11, 12}}
	rep, err := NewRunner(p, nil).Run(context.Background(), baseRequest(
		strategy.Spec{Type: "sma", Short: strategy.Int(5), Long: strategy.Int(10)},
		strategy.Spec{Type: "ema", Short: strategy.Int(2), Long: strategy.Int(3)},
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(rep.Results[0].Err, ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory, got %v", rep.Results[0].Err)
	}
	if !rep.Results[0].Empty() || rep.Results[0].Error == "" {
		t.Error("insufficient history must yield an empty result with an error message")
	}
	if msg := rep.Results[0].Error; !strings.Contains(msg, "needs 10 bars, got 3") {
		t.Errorf("error message %q should name the warm-up length", msg)
	}
	// EMA is defined from the first bar.
	if rep.Results[1].Err != nil || len(rep.Results[1].Rows) != 3 {
		t.Errorf("ema result: err=%v rows=%d", rep.Results[1].Err, len(rep.Results[1].Rows))
	}
}

func TestRun_NoData(t *testing.T) {
	empty := &fakeProvider{}
	_, err := NewRunner(empty, nil).Run(context.Background(), baseRequest(strategy.Spec{Type: "sma"}))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("empty series: expected ErrNoData, got %v", err)
	}

	failing := &fakeProvider{err: fmt.Errorf("connection refused")}
	_, err = NewRunner(failing, nil).Run(context.Background(), baseRequest(strategy.Spec{Type: "sma"}))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("provider failure: expected ErrNoData, got %v", err)
	}
}

func TestRun_InvalidRequestSkipsProvider(t *testing.T) {
	p := &fakeProvider{closes: []float64{1, 2, 3}}
	req := baseRequest(strategy.Spec{Type: "sma", Short: strategy.Int(50), Long: strategy.Int(20)})

	_, err := NewRunner(p, nil).Run(context.Background(), req)
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if p.calls.Load() != 0 {
		t.Error("provider must not be called for an invalid request")
	}
}

func TestRun_CombinedAND(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 12, 11, 10, 11, 12, 13}
	p := &fakeProvider{closes: closes}
	req := baseRequest(
		strategy.Spec{Type: "sma", Short: strategy.Int(2), Long: strategy.Int(3)},
		strategy.Spec{Type: "ema", Short: strategy.Int(2), Long: strategy.Int(3)},
	)
	req.TakeProfit, req.StopLoss = 0.5, 0
	req.Combine = true

	rep, err := NewRunner(p, nil).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	c := rep.Combined
	if c == nil {
		t.Fatal("expected combined result")
	}
	if len(c.Rows) != len(closes) {
		t.Fatalf("combined rows=%d, want %d", len(c.Rows), len(closes))
	}

	sma := map[time.Time]model.Position{}
	for _, row := range rep.Results[0].Rows {
		sma[row.Date] = row.Position
	}
	ema := map[time.Time]model.Position{}
	for _, row := range rep.Results[1].Rows {
		ema[row.Date] = row.Position
	}
	for i, row := range c.Rows {
		want := model.Flat
		if sma[row.Date] == model.Long && ema[row.Date] == model.Long {
			want = model.Long
		}
		if row.Position != want {
			t.Errorf("combined[%d]=%v, want %v", i, row.Position, want)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	closes := []float64{10, 11, 12, 11, 9, 8, 9, 10, 12, 13, 12, 10}
	req := baseRequest(
		strategy.Spec{Type: "sma", Short: strategy.Int(2), Long: strategy.Int(4)},
		strategy.Spec{Type: "rsi", Period: strategy.Int(3)},
	)
	a, err := NewRunner(&fakeProvider{closes: closes}, nil).Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewRunner(&fakeProvider{closes: closes}, nil).Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	for k := range a.Results {
		ra, rb := a.Results[k], b.Results[k]
		if len(ra.Rows) != len(rb.Rows) {
			t.Fatalf("result %d: row count differs", k)
		}
		for i := range ra.Rows {
			x, y := ra.Rows[i], rb.Rows[i]
			if x.Position != y.Position || x.CumulativeStrategy != y.CumulativeStrategy {
				t.Errorf("result %d row %d differs: %+v vs %+v", k, i, x, y)
			}
		}
	}
}

func TestRunAll_Concurrent(t *testing.T) {
	p := &fakeProvider{closes: []float64{10, 11, 12, 11, 9, 8}}
	r := NewRunner(p, nil)

	reqs := make([]Request, 8)
	for i := range reqs {
		reqs[i] = baseRequest(strategy.Spec{Type: "sma", Short: strategy.Int(2), Long: strategy.Int(3)})
	}
	reqs[3].Strategies = nil // invalid

	out := r.RunAll(context.Background(), reqs, 3)
	if len(out) != len(reqs) {
		t.Fatalf("results=%d, want %d", len(out), len(reqs))
	}
	for i, o := range out {
		if i == 3 {
			if !errors.Is(o.Err, ErrInvalidParameter) {
				t.Errorf("request 3: expected invalid parameter, got %v", o.Err)
			}
			continue
		}
		if o.Err != nil {
			t.Fatalf("request %d: %v", i, o.Err)
		}
		assertPositions(t, o.Report.Results[0].Positions(), model.Long, model.Flat, model.Flat, model.Flat)
	}
}

func TestRunAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{closes: []float64{1, 2, 3}}
	out := NewRunner(p, nil).RunAll(ctx, []Request{baseRequest(strategy.Spec{Type: "ema", Short: strategy.Int(1), Long: strategy.Int(2)})}, 2)
	if !errors.Is(out[0].Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", out[0].Err)
	}
}

func TestSanitize(t *testing.T) {
	d := func(n int) time.Time { return day0.AddDate(0, 0, n) }
	// Bar 1 is unusable, the second day-2 bar replaces the first, day 5
	// is at the exclusive end and the last bar has no date.
	bars := []model.Bar{
		{Date: d(2), Close: 12},
		{Date: d(0), Close: 10},
		{Date: d(1), Close: 0},
		{Date: d(2).Add(15 * time.Hour), Close: 13},
		{Date: d(5), Close: 15},
		{Close: 9},
	}
	out := Sanitize(bars, d(0), d(5))
	if len(out) != 2 {
		t.Fatalf("len=%d, want 2 (%v)", len(out), out)
	}
	if out[0].Close != 10 || out[1].Close != 13 {
		t.Errorf("got closes %v, %v", out[0].Close, out[1].Close)
	}
	if !out[1].Date.Equal(d(2)) {
		t.Errorf("date not truncated: %v", out[1].Date)
	}
}
