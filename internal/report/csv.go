package report

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"trading-backtestv1/internal/backtest"
)

// WriteCSV writes the results table with exact ratios. Undefined values
// are empty cells.
func WriteCSV(w io.Writer, res *backtest.Result) error {
	cw := csv.NewWriter(w)

	names := indicatorNames(res.Rows)
	header := []string{"date", "close"}
	header = append(header, names...)
	header = append(header,
		"position", "market_return", "strategy_return",
		"cumulative_market_return", "cumulative_strategy_return",
	)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range res.Rows {
		rec := []string{r.Date.Format(dateLayout), formatF(r.Close)}
		for _, n := range names {
			v, ok := r.Indicators[n]
			if !ok {
				v = math.NaN()
			}
			rec = append(rec, formatF(v))
		}
		rec = append(rec,
			strconv.Itoa(int(r.Position)),
			formatF(r.MarketReturn), formatF(r.StrategyReturn),
			formatF(r.CumulativeMarket), formatF(r.CumulativeStrategy),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes a result's trade log.
func WriteTradesCSV(w io.Writer, res *backtest.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"side", "entry_date", "exit_date", "entry", "exit", "return", "reason"}); err != nil {
		return err
	}
	for _, t := range res.Trades {
		if err := cw.Write([]string{
			t.Side.String(), t.EntryDate.Format(dateLayout), t.ExitDate.Format(dateLayout),
			formatF(t.EntryPrice), formatF(t.ExitPrice), formatF(t.Return), string(t.Reason),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
