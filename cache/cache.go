// Package cache stores backtest reports in redis so repeated optimizer
// sweeps over the same data skip combinations they have already scored.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/market"
	"github.com/rustyeddy/stratlab/metrics"
)

const DefaultPrefix = "stratlab:report:"

type Config struct {
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"` // 0 keeps entries forever
	Prefix   string        `json:"prefix" yaml:"prefix"`
}

func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		TTL:    24 * time.Hour,
		Prefix: DefaultPrefix,
	}
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("cache: addr is required")
	}
	if c.TTL < 0 {
		return fmt.Errorf("cache: ttl must be >= 0")
	}
	return nil
}

type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

type Option func(*Cache)

func WithTTL(d time.Duration) Option { return func(c *Cache) { c.ttl = d } }
func WithPrefix(p string) Option { return func(c *Cache) { c.prefix = p } }
func WithLogger(l zerolog.Logger) Option { return func(c *Cache) { c.log = l } }

// New wraps an existing client.
func New(client redis.Cmdable, opts ...Option) *Cache {
	c := &Cache{client: client, prefix: DefaultPrefix, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to redis and pings it.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Cache, *redis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("cache: redis ping %s: %w", cfg.Addr, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	all := append([]Option{WithTTL(cfg.TTL), WithPrefix(prefix)}, opts...)
	return New(rdb, all...), rdb, nil
}

type keyInput struct {
	Dataset  string          `json:"dataset"`
	Strategy string          `json:"strategy"`
	Params   backtest.Params `json:"params"`
	Config   backtest.Config `json:"config"`
}

// Key hashes everything a report depends on. encoding/json writes map keys
// in sorted order so equal params give equal keys.
func (c *Cache) Key(fingerprint, strategy string, params backtest.Params, cfg backtest.Config) (string, error) {
	b, err := json.Marshal(keyInput{fingerprint, strategy, params, cfg})
	if err != nil {
		return "", fmt.Errorf("cache: encode key: %w", err)
	}
	sum := sha256.Sum256(b)
	return c.prefix + hex.EncodeToString(sum[:]), nil
}

// Get returns the cached report. A miss is (zero, false, nil).
func (c *Cache) Get(ctx context.Context, key string) (metrics.Report, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return metrics.Report{}, false, nil
		}
		return metrics.Report{}, false, fmt.Errorf("cache: redis get: %w", err)
	}
	var r metrics.Report
	if err := json.Unmarshal(val, &r); err != nil {
		return metrics.Report{}, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return r, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, r metrics.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("cache: encode report: %w", err)
	}
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// For scopes the cache to one dataset and engine configuration. The result
// plugs into the optimizer.
func (c *Cache) For(s *market.Series, cfg backtest.Config) *Scoped {
	return &Scoped{c: c, fingerprint: s.Fingerprint(), cfg: cfg}
}

// Scoped treats redis failures as misses and logs them; a sweep never
// fails because the cache is down.
type Scoped struct {
	c           *Cache
	fingerprint string
	cfg         backtest.Config
}

func (s *Scoped) Lookup(ctx context.Context, strategy string, params backtest.Params) (metrics.Report, bool) {
	key, err := s.c.Key(s.fingerprint, strategy, params, s.cfg)
	if err != nil {
		s.c.log.Warn().Err(err).Str("strategy", strategy).Msg("cache key")
		return metrics.Report{}, false
	}
	r, ok, err := s.c.Get(ctx, key)
	if err != nil {
		s.c.log.Warn().Err(err).Str("key", key).Msg("cache lookup")
		return metrics.Report{}, false
	}
	return r, ok
}

func (s *Scoped) Store(ctx context.Context, strategy string, params backtest.Params, r metrics.Report) {
	key, err := s.c.Key(s.fingerprint, strategy, params, s.cfg)
	if err != nil {
		s.c.log.Warn().Err(err).Str("strategy", strategy).Msg("cache key")
		return
	}
	if err := s.c.Set(ctx, key, r); err != nil {
		s.c.log.Warn().Err(err).Str("key", key).Msg("cache store")
	}
}
