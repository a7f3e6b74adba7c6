// Package report renders backtest results for people: signed percentages,
// markdown tables and CSV export.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/model"
)

const dateLayout = "2006-01-02"

// Percent formats a ratio as a signed percentage rounded to two places,
// e.g. 0.1234 -> "+12.34%". Undefined values render as "".
func Percent(ratio float64) string {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return ""
	}
	d := decimal.NewFromFloat(ratio).Shift(2).Round(2)
	sign := "+"
	if d.IsNegative() {
		sign = ""
	}
	return sign + d.StringFixed(2) + "%"
}

// Growth formats a growth index as the signed return it implies,
// e.g. 1.05 -> "+5.00%".
func Growth(index float64) string { return Percent(index - 1) }

// Price formats a close to two decimal places.
func Price(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func indicatorNames(rows []model.Row) []string {
	seen := map[string]bool{}
	for _, r := range rows {
		for k := range r.Indicators {
			seen[k] = true
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Markdown writes one result as a markdown section: a heading, the summary
// line, the trade log and the results table. An empty result writes its
// reason instead of a table.
func Markdown(w io.Writer, res *backtest.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", res.Strategy)
	if res.Empty() {
		reason := res.Error
		if reason == "" {
			reason = "no usable bars"
		}
		fmt.Fprintf(&b, "_No result: %s._\n\n", reason)
		_, err := io.WriteString(w, b.String())
		return err
	}

	s := res.Summary
	fmt.Fprintf(&b, "Strategy %s vs buy-and-hold %s | trades %d | win rate %s | max drawdown %s | exposure %s\n\n",
		Percent(s.StrategyReturn), Percent(s.MarketReturn), s.Trades,
		Percent(s.WinRate), Percent(-s.MaxDrawdown), Percent(s.Exposure))

	if len(res.Trades) > 0 {
		b.WriteString("| Side | Entry | Exit | Entry Px | Exit Px | Return | Reason |\n")
		b.WriteString("|---|---|---|---:|---:|---:|---|\n")
		for _, t := range res.Trades {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				t.Side, t.EntryDate.Format(dateLayout), t.ExitDate.Format(dateLayout),
				Price(t.EntryPrice), Price(t.ExitPrice), Percent(t.Return), t.Reason)
		}
		b.WriteString("\n")
	}

	names := indicatorNames(res.Rows)
	b.WriteString("| Date | Close |")
	for _, n := range names {
		b.WriteString(" " + n + " |")
	}
	b.WriteString(" Position | Market | Strategy | Cum. Market | Cum. Strategy |\n|---|---:|")
	for range names {
		b.WriteString("---:|")
	}
	b.WriteString("---:|---:|---:|---:|---:|\n")

	for _, r := range res.Rows {
		fmt.Fprintf(&b, "| %s | %s |", r.Date.Format(dateLayout), Price(r.Close))
		for _, n := range names {
			v, ok := r.Indicators[n]
			if !ok {
				v = math.NaN()
			}
			b.WriteString(" " + Price(v) + " |")
		}
		fmt.Fprintf(&b, " %d | %s | %s | %s | %s |\n",
			r.Position, Percent(r.MarketReturn), Percent(r.StrategyReturn),
			Growth(r.CumulativeMarket), Growth(r.CumulativeStrategy))
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteMarkdown writes the whole report: a header, every strategy and the
// combined view when present.
func WriteMarkdown(w io.Writer, rep *backtest.Report) error {
	if _, err := fmt.Fprintf(w, "## %s %s to %s (%d bars)\n\n",
		rep.Symbol, rep.Start.Format(dateLayout), rep.End.Format(dateLayout), rep.Bars); err != nil {
		return err
	}
	for i := range rep.Results {
		if err := Markdown(w, &rep.Results[i]); err != nil {
			return err
		}
	}
	if rep.Combined != nil {
		return Markdown(w, rep.Combined)
	}
	return nil
}

// Comparison writes one summary line per result, combined last.
func Comparison(w io.Writer, rep *backtest.Report) error {
	var b strings.Builder
	b.WriteString("| Strategy | Return | Buy & Hold | Trades | Win Rate | Max DD |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	rows := append([]backtest.Result(nil), rep.Results...)
	if rep.Combined != nil {
		rows = append(rows, *rep.Combined)
	}
	for _, r := range rows {
		if r.Empty() {
			fmt.Fprintf(&b, "| %s | - | - | - | - | - |\n", r.Strategy)
			continue
		}
		s := r.Summary
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %s | %s |\n",
			r.Strategy, Percent(s.StrategyReturn), Percent(s.MarketReturn),
			s.Trades, Percent(s.WinRate), Percent(-s.MaxDrawdown))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
