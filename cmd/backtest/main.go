// cmd/backtest runs one or more backtests from flags or a YAML request file
// and prints a markdown report with a strategy comparison table.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=sp500 --start=2015-01-01 --end=2024-01-01 \
//	    --strategies=sma:20:50,rsi:14:70:30 --tp=0.2 --sl=0.05 --combine
//	go run ./cmd/backtest --config=runs.yaml --csv-out=out/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"trading-backtestv1/config"
	"trading-backtestv1/internal/app"
	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/logger"
	"trading-backtestv1/internal/report"
	sig "trading-backtestv1/internal/signal"
	"trading-backtestv1/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	cfgPath := flag.String("config", "", "YAML request file (single request or a requests: list)")
	symbol := flag.String("symbol", "", "Ticker or alias, e.g. AAPL or sp500")
	start := flag.String("start", "", "First date, YYYY-MM-DD (inclusive)")
	end := flag.String("end", "", "Last date, YYYY-MM-DD (exclusive)")
	tp := flag.Float64("tp", 0.20, "Take-profit threshold (0 disables)")
	sl := flag.Float64("sl", 0.05, "Stop-loss threshold (0 disables)")
	direction := flag.String("direction", string(sig.LongOnly), "long_only or long_short")
	strategies := flag.String("strategies", "sma:20:50,ema:12:26,rsi:14:70:30", "Strategy specs: sma:SHORT:LONG, ema:SHORT:LONG, rsi:PERIOD:OB:OS")
	combine := flag.Bool("combine", false, "Add the combined signal")
	format := flag.String("format", "markdown", "Output format: markdown or json")
	csvOut := flag.String("csv-out", "", "Directory to write per-strategy CSV tables")
	workers := flag.Int("workers", 0, "Parallel runs for a batch file (default BATCH_WORKERS)")
	flag.Parse()

	cfg := config.Load()
	logger.Init("backtest", logger.ParseLevel(cfg.LogLevel))

	var reqs []backtest.Request
	if *cfgPath != "" {
		file, err := config.LoadRequests(*cfgPath)
		if err != nil {
			log.Fatalf("[backtest] %v", err)
		}
		reqs = file.Requests
		if *workers == 0 && file.Workers > 0 {
			*workers = file.Workers
		}
	} else {
		specs, err := parseStrategies(*strategies)
		if err != nil {
			log.Fatalf("[backtest] %v", err)
		}
		reqs = []backtest.Request{{
			Symbol:     *symbol,
			Start:      *start,
			End:        *end,
			TakeProfit: *tp,
			StopLoss:   *sl,
			Direction:  sig.Direction(*direction),
			Strategies: specs,
			Combine:    *combine,
		}}
	}
	if *workers <= 0 {
		*workers = cfg.BatchWorkers
	}

	deps, err := app.Build(cfg, nil)
	if err != nil {
		log.Fatalf("[backtest] provider setup failed: %v", err)
	}
	defer deps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runner := backtest.NewRunner(deps.Provider, nil)
	results := runner.RunAll(ctx, reqs, *workers)

	failed := 0
	for _, br := range results {
		if br.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", br.Request.Symbol, br.Err)
			continue
		}
		if err := emit(os.Stdout, br.Report, *format); err != nil {
			log.Fatalf("[backtest] write report: %v", err)
		}
		if *csvOut != "" {
			if err := writeCSVs(*csvOut, br.Report); err != nil {
				log.Fatalf("[backtest] write csv: %v", err)
			}
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func emit(w io.Writer, rep *backtest.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	if err := report.WriteMarkdown(w, rep); err != nil {
		return err
	}
	return report.Comparison(w, rep)
}

// writeCSVs writes SYMBOL_<strategy>.csv and SYMBOL_<strategy>_trades.csv
// for every non-empty result.
func writeCSVs(dir string, rep *backtest.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	all := rep.Results
	if rep.Combined != nil {
		all = append(append([]backtest.Result(nil), all...), *rep.Combined)
	}
	for i := range all {
		res := &all[i]
		if res.Empty() {
			continue
		}
		base := filepath.Join(dir, fileStem(rep.Symbol+"_"+res.Strategy))
		if err := writeFile(base+".csv", func(w io.Writer) error { return report.WriteCSV(w, res) }); err != nil {
			return err
		}
		if err := writeFile(base+"_trades.csv", func(w io.Writer) error { return report.WriteTradesCSV(w, res) }); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// fileStem turns "^GSPC_SMA(20/50)" into "GSPC_SMA_20_50".
func fileStem(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '^':
			return -1
		case '(', ')', '/', '\\', ':', ' ', ',':
			return '_'
		}
		return r
	}, s)
	return strings.Trim(strings.ReplaceAll(s, "__", "_"), "_")
}

// parseStrategies reads "sma:20:50,rsi:14:70:30". Omitted numbers take the
// family defaults. Windows and periods must be integers.
func parseStrategies(s string) ([]strategy.Spec, error) {
	var specs []strategy.Spec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens := strings.Split(part, ":")
		spec := strategy.Spec{Type: strings.ToLower(tokens[0])}
		args := tokens[1:]

		intArg := func(i int) (*int, error) {
			n, err := strconv.Atoi(strings.TrimSpace(args[i]))
			if err != nil {
				return nil, fmt.Errorf("strategy %q: window %q is not an integer", part, args[i])
			}
			return &n, nil
		}
		floatArg := func(i int) (*float64, error) {
			v, err := strconv.ParseFloat(strings.TrimSpace(args[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("strategy %q: bad threshold %q", part, args[i])
			}
			return &v, nil
		}

		var err error
		switch spec.Type {
		case strategy.FamilyRSI:
			if len(args) > 3 {
				return nil, fmt.Errorf("strategy %q: want rsi:PERIOD:OB:OS", part)
			}
			if len(args) > 0 {
				if spec.Period, err = intArg(0); err != nil {
					return nil, err
				}
			}
			if len(args) > 1 {
				if spec.Overbought, err = floatArg(1); err != nil {
					return nil, err
				}
			}
			if len(args) > 2 {
				if spec.Oversold, err = floatArg(2); err != nil {
					return nil, err
				}
			}
		default:
			if len(args) > 2 {
				return nil, fmt.Errorf("strategy %q: want %s:SHORT:LONG", part, spec.Type)
			}
			if len(args) > 0 {
				if spec.Short, err = intArg(0); err != nil {
					return nil, err
				}
			}
			if len(args) > 1 {
				if spec.Long, err = intArg(1); err != nil {
					return nil, err
				}
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
