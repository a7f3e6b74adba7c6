// Package backtest wires the indicator engine, the position state machine,
// the return accountant and the signal combiner into one run over a
// single instrument's daily closes.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"trading-backtestv1/internal/combine"
	"trading-backtestv1/internal/indicator"
	"trading-backtestv1/internal/logger"
	"trading-backtestv1/internal/metrics"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/provider"
	"trading-backtestv1/internal/returns"
	"trading-backtestv1/internal/signal"
	"trading-backtestv1/internal/strategy"
)

// Re-exported so callers only need this package to classify failures.
var (
	ErrNoData              = model.ErrNoData
	ErrInsufficientHistory = model.ErrInsufficientHistory
	ErrInvalidParameter    = model.ErrInvalidParameter
)

// InvalidParameterError is the typed configuration failure.
type InvalidParameterError = model.InvalidParameterError

// CombinedName labels the combined result.
const CombinedName = "Combined"

// Trade is a signal.Trade with its bar dates resolved.
type Trade struct {
	signal.Trade
	EntryDate time.Time `json:"entry_date"`
	ExitDate  time.Time `json:"exit_date"`
}

// Result is one strategy's results table. An empty Result (no rows) carries
// the reason in Err; a strategy that never trades has rows and a nil Err.
type Result struct {
	Strategy string          `json:"strategy"`
	Rows     []model.Row     `json:"rows"`
	Trades   []Trade         `json:"trades"`
	Summary  returns.Summary `json:"summary"`
	Err      error           `json:"-"`
	Error    string          `json:"error,omitempty"`
}

// Empty reports whether the result has no usable rows.
func (r *Result) Empty() bool { return len(r.Rows) == 0 }

// Positions returns the position column.
func (r *Result) Positions() []model.Position {
	out := make([]model.Position, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Position
	}
	return out
}

func (r *Result) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}

// Report bundles every result of one run.
type Report struct {
	RunID    string    `json:"run_id"`
	Symbol   string    `json:"symbol"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Bars     int       `json:"bars"`
	Results  []Result  `json:"results"`
	Combined *Result   `json:"combined,omitempty"`
}

// Runner executes backtests against a price provider. A Runner holds no
// per-run state and is safe for concurrent use.
type Runner struct {
	provider model.PriceProvider
	metrics  *metrics.Metrics
}

// NewRunner creates a Runner. m may be nil.
func NewRunner(p model.PriceProvider, m *metrics.Metrics) *Runner {
	return &Runner{provider: p, metrics: m}
}

// Run validates req, fetches its bars and evaluates every strategy.
//
// Invalid requests fail with an error matching ErrInvalidParameter before
// the provider is called. A provider failure or an empty series fails with
// ErrNoData. Per-strategy warm-up shortfalls do not fail the run; they are
// reported on the affected Result.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	started := time.Now()
	done := r.metrics.RunStarted()
	defer done()

	p, err := req.plan()
	if err != nil {
		r.metrics.ObserveRun("invalid", time.Since(started), 0)
		return nil, err
	}
	p.symbol = provider.ResolveTicker(p.symbol)

	runID := logger.GenerateRunID(p.symbol, started)
	ctx = logger.WithRunID(ctx, runID)
	log := slog.With(logger.LogWithRun(ctx)...)

	fetchStart := time.Now()
	bars, err := r.provider.FetchBars(ctx, p.symbol, p.start, p.end)
	r.metrics.ObserveFetch(r.provider.Name(), time.Since(fetchStart))
	if err != nil {
		log.Warn("price fetch failed", "symbol", p.symbol, "provider", r.provider.Name(), "error", err)
		r.metrics.ObserveRun("no_data", time.Since(started), 0)
		return nil, fmt.Errorf("%w: %s: %w", ErrNoData, p.symbol, err)
	}
	bars = Sanitize(bars, p.start, p.end)
	if len(bars) == 0 {
		log.Warn("no usable bars", "symbol", p.symbol, "start", req.Start, "end", req.End)
		r.metrics.ObserveRun("no_data", time.Since(started), 0)
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData, p.symbol, req.Start, req.End)
	}

	rep := &Report{
		RunID:  runID,
		Symbol: p.symbol,
		Start:  p.start,
		End:    p.end,
		Bars:   len(bars),
	}
	for _, s := range p.strategies {
		res := Evaluate(s, bars, p.params)
		r.observe(&res)
		if res.Err != nil {
			log.Info("strategy produced no rows", "strategy", res.Strategy, "error", res.Err)
		}
		rep.Results = append(rep.Results, res)
	}
	if p.combine {
		combined, err := Combined(bars, rep.Results)
		if err != nil {
			r.metrics.ObserveRun("error", time.Since(started), len(bars))
			return nil, err
		}
		rep.Combined = combined
	}

	r.metrics.ObserveRun("ok", time.Since(started), len(bars))
	log.Info("backtest complete",
		"symbol", p.symbol,
		"bars", len(bars),
		"strategies", len(rep.Results),
		"duration", time.Since(started).String(),
	)
	return rep, nil
}

func (r *Runner) observe(res *Result) {
	status := "ok"
	if errors.Is(res.Err, ErrInsufficientHistory) {
		status = "insufficient_history"
	}
	reasons := make([]string, len(res.Trades))
	for i, t := range res.Trades {
		reasons[i] = string(t.Reason)
	}
	r.metrics.ObserveResult(status, reasons)
}

// Sanitize drops unusable bars, sorts by date, keeps the last bar for a
// duplicated date and filters to [start, end). Zero bounds are open.
func Sanitize(bars []model.Bar, start, end time.Time) []model.Bar {
	out := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Usable() {
			continue
		}
		b.Date = model.Day(b.Date)
		if !start.IsZero() && b.Date.Before(start) {
			continue
		}
		if !end.IsZero() && !b.Date.Before(end) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	deduped := out[:0]
	for _, b := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(b.Date) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}
	return deduped
}

// Evaluate runs one strategy over bars, which must already be sanitized.
// Bars where any of the strategy's indicators is undefined are excluded
// from the positions and every downstream series.
func Evaluate(s strategy.Strategy, bars []model.Bar, p signal.Params) Result {
	res := Result{Strategy: s.Name()}
	if len(bars) == 0 {
		res.fail(ErrNoData)
		return res
	}

	closes := model.Closes(bars)
	cols, err := indicator.Compute(closes, s.Indicators()...)
	if err != nil {
		res.fail(err)
		return res
	}
	values := make([][]float64, len(cols))
	for i, c := range cols {
		values[i] = c.Values
	}
	mask := indicator.Defined(len(closes), values...)

	keep := make([]int, 0, len(closes))
	for i, ok := range mask {
		if ok {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		need, _ := indicator.Warmup(s.Indicators()...)
		res.fail(fmt.Errorf("%w: %s needs %d bars, got %d", ErrInsufficientHistory, s.Name(), need, len(bars)))
		return res
	}

	tBars := make([]model.Bar, len(keep))
	tCols := make([]indicator.Column, len(cols))
	for j := range cols {
		tCols[j] = indicator.Column{Name: cols[j].Name, Values: make([]float64, len(keep))}
	}
	for k, i := range keep {
		tBars[k] = bars[i]
		for j := range cols {
			tCols[j].Values[k] = cols[j].Values[i]
		}
	}
	tCloses := model.Closes(tBars)

	out, err := signal.Run(tCloses, s.Conditions(tCols), p)
	if err != nil {
		res.fail(err)
		return res
	}
	if err := fill(&res, tBars, tCols, out.Positions, out.Trades); err != nil {
		res.fail(err)
	}
	return res
}

// Combined merges the non-empty results' positions over the full bar index
// and accounts the merged sequence like any single strategy.
func Combined(bars []model.Bar, results []Result) (*Result, error) {
	index := model.Dates(bars)
	seqs := make([]combine.Sequence, 0, len(results))
	for i := range results {
		r := &results[i]
		dates := make([]time.Time, len(r.Rows))
		for k, row := range r.Rows {
			dates[k] = row.Date
		}
		seqs = append(seqs, combine.Sequence{Name: r.Strategy, Dates: dates, Positions: r.Positions()})
	}
	positions, err := combine.Combine(index, seqs...)
	if err != nil {
		return nil, err
	}

	closes := model.Closes(bars)
	trades, err := signal.TradesFromPositions(closes, positions)
	if err != nil {
		return nil, err
	}
	res := &Result{Strategy: CombinedName}
	if err := fill(res, bars, nil, positions, trades); err != nil {
		return nil, err
	}
	return res, nil
}

// fill accounts positions over bars and populates rows, trades and summary.
func fill(res *Result, bars []model.Bar, cols []indicator.Column, positions []model.Position, trades []signal.Trade) error {
	closes := model.Closes(bars)
	series, err := returns.Compute(closes, positions)
	if err != nil {
		return err
	}

	res.Rows = make([]model.Row, len(bars))
	for i, b := range bars {
		row := model.Row{
			Date:               b.Date,
			Close:              b.Close,
			Position:           positions[i],
			MarketReturn:       series.MarketReturn[i],
			StrategyReturn:     series.StrategyReturn[i],
			CumulativeMarket:   series.CumulativeMarket[i],
			CumulativeStrategy: series.CumulativeStrategy[i],
		}
		if len(cols) > 0 {
			row.Indicators = make(map[string]float64, len(cols))
			for _, c := range cols {
				row.Indicators[c.Name] = c.Values[i]
			}
		}
		res.Rows[i] = row
	}

	res.Trades = make([]Trade, len(trades))
	for i, t := range trades {
		res.Trades[i] = Trade{Trade: t, EntryDate: bars[t.EntryIndex].Date, ExitDate: bars[t.ExitIndex].Date}
	}
	res.Summary = returns.Summarize(series, positions, trades)
	return nil
}

// BatchResult pairs one request's report with its failure.
type BatchResult struct {
	Request Request `json:"request"`
	Report  *Report `json:"report,omitempty"`
	Err     error   `json:"-"`
	Error   string  `json:"error,omitempty"`
}

// RunAll runs reqs with at most workers in flight. Results keep the order
// of reqs. Each run owns its state, so no run observes another.
func (r *Runner) RunAll(ctx context.Context, reqs []Request, workers int) []BatchResult {
	if workers <= 0 {
		workers = 1
	}
	out := make([]BatchResult, len(reqs))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, req := range reqs {
		out[i].Request = req
		if err := ctx.Err(); err != nil {
			out[i].Err = err
			out[i].Error = err.Error()
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			out[i].Err = ctx.Err()
			out[i].Error = ctx.Err().Error()
			continue
		}
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			defer func() { <-sem }()
			rep, err := r.Run(ctx, req)
			out[i].Report = rep
			if err != nil {
				out[i].Err = err
				out[i].Error = err.Error()
			}
		}(i, req)
	}
	wg.Wait()
	return out
}
