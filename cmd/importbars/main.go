// cmd/importbars loads daily bars into the SQLite store so backtests can
// run offline with PROVIDER=sqlite. Bars come from a CSV file or from the
// Yahoo chart endpoint. When REDIS_ADDR is set, cached ranges of every
// imported symbol are invalidated so PROVIDER=sqlite serves the new bars.
//
// Usage:
//
//	go run ./cmd/importbars --csv=data/AAPL.csv --symbol=AAPL
//	go run ./cmd/importbars --yahoo=sp500,AAPL --start=2010-01-01 --end=2024-01-01
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trading-backtestv1/config"
	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/provider"
	redisstore "trading-backtestv1/internal/store/redis"
	sqlitestore "trading-backtestv1/internal/store/sqlite"
	"trading-backtestv1/pkg/yahoo"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()

	csvPath := flag.String("csv", "", "CSV file to import")
	symbol := flag.String("symbol", "", "Symbol for the CSV file (default: file name)")
	yahooSyms := flag.String("yahoo", "", "Comma-separated tickers or aliases to download")
	start := flag.String("start", "2000-01-01", "First date for downloads, YYYY-MM-DD")
	end := flag.String("end", time.Now().Format(backtest.DateLayout), "End date for downloads (exclusive)")
	dbPath := flag.String("db", cfg.SQLitePath, "Path to SQLite database")
	flag.Parse()

	if (*csvPath == "") == (*yahooSyms == "") {
		log.Fatal("[importbars] set exactly one of --csv or --yahoo")
	}

	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[importbars] %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	barCh := make(chan model.Bar, 1000)
	imported := make(map[string]bool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(barCh)
		var err error
		if *csvPath != "" {
			err = importCSV(ctx, *csvPath, *symbol, barCh, imported)
		} else {
			err = importYahoo(ctx, cfg, *yahooSyms, *start, *end, barCh, imported)
		}
		if err != nil {
			log.Printf("[importbars] %v", err)
		}
	}()

	n := w.Run(ctx, barCh)
	<-done
	fmt.Printf("imported %d bars into %s\n", n, *dbPath)

	if cfg.RedisAddr != "" && len(imported) > 0 {
		cache, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Printf("[importbars] WARNING: cached ranges not invalidated: %v", err)
			return
		}
		defer cache.Close()
		invalidate(context.Background(), cache, imported)
	}
}

// invalidator drops cached bar ranges for a symbol.
type invalidator interface {
	Invalidate(ctx context.Context, symbol string) (int, error)
}

// invalidate clears the cache for every imported symbol. Failures are
// logged; the import itself has already committed. It returns the number
// of symbols cleared.
func invalidate(ctx context.Context, c invalidator, symbols map[string]bool) int {
	cleared := 0
	for sym := range symbols {
		n, err := c.Invalidate(ctx, sym)
		if err != nil {
			log.Printf("[importbars] invalidate %s: %v", sym, err)
			continue
		}
		log.Printf("[importbars] %s: dropped %d cached ranges", sym, n)
		cleared++
	}
	return cleared
}

func importCSV(ctx context.Context, path, symbol string, out chan<- model.Bar, seen map[string]bool) error {
	if symbol == "" {
		base := path[strings.LastIndexAny(path, `/\`)+1:]
		symbol = strings.TrimSuffix(base, ".csv")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bars, err := provider.ParseCSV(f, provider.ResolveTicker(symbol))
	if err != nil {
		return err
	}
	return send(ctx, bars, out, seen)
}

func importYahoo(ctx context.Context, cfg *config.Config, symbols, startStr, endStr string, out chan<- model.Bar, seen map[string]bool) error {
	start, err := time.Parse(backtest.DateLayout, startStr)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end, err := time.Parse(backtest.DateLayout, endStr)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}

	src := provider.NewYahoo(yahoo.NewClient(yahoo.Config{RootURL: cfg.YahooBaseURL}), cfg.YahooAdjusted)
	for _, s := range strings.Split(symbols, ",") {
		sym := provider.ResolveTicker(s)
		if sym == "" {
			continue
		}
		bars, err := src.FetchBars(ctx, sym, start, end)
		if err != nil {
			log.Printf("[importbars] %s: %v", sym, err)
			continue
		}
		log.Printf("[importbars] %s: %d bars", sym, len(bars))
		if err := send(ctx, bars, out, seen); err != nil {
			return err
		}
	}
	return nil
}

// send forwards usable bars to out and records their symbols in seen.
func send(ctx context.Context, bars []model.Bar, out chan<- model.Bar, seen map[string]bool) error {
	for _, b := range bars {
		if !b.Usable() {
			continue
		}
		select {
		case out <- b:
			seen[strings.ToUpper(b.Symbol)] = true
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
