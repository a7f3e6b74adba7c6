package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"trading-backtestv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultTTL    = 12 * time.Hour
	keyPrefix     = "bars:1d:"
	keyDateLayout = "2006-01-02"
)

// Config configures the Redis bar cache.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // entry lifetime; default 12h
}

// Cache stores fetched daily bar series as JSON strings keyed by symbol and
// date range.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// New creates a Cache and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return NewWithClient(client, cfg.TTL), nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *goredis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Key builds the cache key for a symbol and [start, end) range.
func Key(symbol string, start, end time.Time) string {
	return keyPrefix + strings.ToUpper(symbol) + ":" + start.Format(keyDateLayout) + ":" + end.Format(keyDateLayout)
}

// GetBars returns the cached series for key. ok is false on a miss.
func (c *Cache) GetBars(ctx context.Context, key string) (bars []model.Bar, ok bool, err error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, false, fmt.Errorf("unmarshal bars %s: %w", key, err)
	}
	return bars, true, nil
}

// SetBars stores bars under key with the cache TTL.
func (c *Cache) SetBars(ctx context.Context, key string, bars []model.Bar) error {
	data, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("marshal bars: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes every cached range for symbol and returns how many
// keys were removed.
func (c *Cache) Invalidate(ctx context.Context, symbol string) (int, error) {
	pattern := keyPrefix + strings.ToUpper(symbol) + ":*"
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("redis del: %w", err)
			}
			deleted += int(n)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return deleted, nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
