// Package app assembles a price provider and its backing stores from
// Config. The commands share it so they wire sources the same way.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-backtestv1/config"
	"trading-backtestv1/internal/metrics"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/provider"
	redisstore "trading-backtestv1/internal/store/redis"
	sqlitestore "trading-backtestv1/internal/store/sqlite"
	"trading-backtestv1/pkg/yahoo"
)

const (
	breakerFailures = 3
	breakerCoolDown = 30 * time.Second
	maxPendingSets  = 128
)

// Deps is a wired price provider plus the handles health checks need.
type Deps struct {
	Provider model.PriceProvider
	Redis    *goredis.Client // nil when the cache is disabled
	SQLite   *sql.DB         // nil unless the sqlite provider is active

	closers []func() error
}

// Build creates the provider named by cfg.Provider. When cfg.RedisAddr is
// set the provider is fronted by a circuit-broken Redis cache. m may be nil.
func Build(cfg *config.Config, m *metrics.Metrics) (*Deps, error) {
	d := &Deps{}

	base, err := d.base(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Provider = base

	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The breaker keeps fetches working until Redis comes back.
			log.Printf("[app] WARNING: redis %s unreachable: %v", cfg.RedisAddr, err)
		} else {
			log.Printf("[app] redis connected at %s", cfg.RedisAddr)
		}
		cancel()

		cb := redisstore.NewCircuitBreaker(breakerFailures, breakerCoolDown)
		cb.OnStateChange = func(_, to redisstore.State) { m.BreakerChanged(int(to)) }
		guarded := redisstore.NewGuardedCache(redisstore.NewWithClient(rdb, cfg.RedisCacheTTL), cb, maxPendingSets)
		guarded.OnFlush = func(n int) { log.Printf("[app] replayed %d deferred cache writes", n) }

		d.Redis = rdb
		d.closers = append(d.closers, guarded.Close)
		d.Provider = provider.NewCached(base, guarded, redisstore.Key, m)
	}
	return d, nil
}

func (d *Deps) base(cfg *config.Config) (model.PriceProvider, error) {
	switch cfg.Provider {
	case config.ProviderYahoo:
		client := yahoo.NewClient(yahoo.Config{RootURL: cfg.YahooBaseURL})
		return provider.NewYahoo(client, cfg.YahooAdjusted), nil
	case config.ProviderCSV:
		return provider.NewCSV(cfg.CSVDir), nil
	case config.ProviderSQLite:
		reader, err := sqlitestore.NewReader(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		d.SQLite = reader.DB()
		d.closers = append(d.closers, reader.Close)
		return provider.NewStore(reader), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want yahoo, csv or sqlite)", cfg.Provider)
	}
}

// Close releases every opened store.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
