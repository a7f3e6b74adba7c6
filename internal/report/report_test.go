package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"strings"
	"testing"
	"time"

	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/returns"
	"trading-backtestv1/internal/signal"
)

func TestPercent(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.1234, "+12.34%"},
		{-0.05, "-5.00%"},
		{0, "+0.00%"},
		{0.00004, "+0.00%"},
		{-0.00004, "+0.00%"},
		{0.123456, "+12.35%"},
		{1.5, "+150.00%"},
		{math.NaN(), ""},
	}
	for _, c := range cases {
		if got := Percent(c.in); got != c.want {
			t.Errorf("Percent(%v)=%q, want %q", c.in, got, c.want)
		}
	}
	if got := Growth(1.05); got != "+5.00%" {
		t.Errorf("Growth(1.05)=%q", got)
	}
}

func sampleResult() *backtest.Result {
	d := func(n int) time.Time { return time.Date(2024, 1, 1+n, 0, 0, 0, 0, time.UTC) }
	return &backtest.Result{
		Strategy: "SMA(2/3)",
		Rows: []model.Row{
			{Date: d(0), Close: 12, Indicators: map[string]float64{"SMA_3": 11, "SMA_2": 11.5}, Position: model.Long,
				MarketReturn: math.NaN(), StrategyReturn: math.NaN(), CumulativeMarket: 1, CumulativeStrategy: 1},
			{Date: d(1), Close: 11, Indicators: map[string]float64{"SMA_3": 11.333333, "SMA_2": 11.5}, Position: model.Flat,
				MarketReturn: -1.0 / 12, StrategyReturn: -1.0 / 12, CumulativeMarket: 11.0 / 12, CumulativeStrategy: 11.0 / 12},
		},
		Trades: []backtest.Trade{{
			Trade:     signal.Trade{Side: model.Long, EntryIndex: 0, ExitIndex: 1, EntryPrice: 12, ExitPrice: 11, Return: -1.0 / 12, Reason: signal.ExitStopLoss},
			EntryDate: d(0), ExitDate: d(1),
		}},
		Summary: returns.Summary{StrategyReturn: -1.0 / 12, MarketReturn: -1.0 / 12, Trades: 1},
	}
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := Markdown(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"### SMA(2/3)",
		"| Date | Close | SMA_2 | SMA_3 | Position |",
		"| 2024-01-01 | 12.00 | 11.50 | 11.00 | 1 |  |  | +0.00% | +0.00% |",
		"| 2024-01-02 | 11.00 | 11.50 | 11.33 | 0 | -8.33% | -8.33% | -8.33% | -8.33% |",
		"stop_loss",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q\n%s", want, out)
		}
	}
}

func TestMarkdown_EmptyResult(t *testing.T) {
	var buf bytes.Buffer
	res := &backtest.Result{Strategy: "RSI(14 30/70)", Error: "insufficient history for indicator warm-up"}
	if err := Markdown(&buf, res); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "_No result: insufficient history") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("records=%d, want 3", len(recs))
	}
	if strings.Join(recs[0], ",") != "date,close,SMA_2,SMA_3,position,market_return,strategy_return,cumulative_market_return,cumulative_strategy_return" {
		t.Errorf("header=%v", recs[0])
	}
	if recs[1][5] != "" || recs[1][6] != "" {
		t.Errorf("first-row returns must be empty cells, got %q %q", recs[1][5], recs[1][6])
	}
	if recs[2][4] != "0" || recs[1][4] != "1" {
		t.Errorf("positions %q %q", recs[1][4], recs[2][4])
	}
}

func TestWriteTradesCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTradesCSV(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[1], ",stop_loss") {
		t.Errorf("trades csv=%q", buf.String())
	}
}

func TestComparison(t *testing.T) {
	rep := &backtest.Report{
		Results:  []backtest.Result{*sampleResult(), {Strategy: "EMA(5/10)"}},
		Combined: sampleResult(),
	}
	rep.Combined.Strategy = backtest.CombinedName
	var buf bytes.Buffer
	if err := Comparison(&buf, rep); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "| EMA(5/10) | - |") || !strings.Contains(out, "| Combined | -8.33% |") {
		t.Errorf("comparison=%s", out)
	}
}
