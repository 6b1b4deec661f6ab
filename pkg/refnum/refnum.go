// Package refnum provides sequential reference-number generation for
// transfers and import jobs. Pattern: PREFIX-YEAR-XXXXX (e.g. TRF-2026-00042).
package refnum

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPSERT ... RETURNING for every number.
	// Guarantees sequential numbers without gaps.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Much faster, but may produce gaps if the process restarts.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy

	// RangeSize is the number of values to allocate at once in Cached
	// strategy. Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g. "TRF", "IMP")
	Prefix string

	// IncludeYear adds the period year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns sensible defaults for a prefix.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

type cachedRange struct {
	current int64
	max     int64
}

// Generator issues reference numbers backed by a sys_sequences table.
type Generator struct {
	querier Querier

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// New creates a generator over the given querier (pool or transaction).
func New(querier Querier) *Generator {
	return &Generator{
		querier: querier,
		ranges:  make(map[string]*cachedRange),
	}
}

// Next generates the next reference number for the period.
func (g *Generator) Next(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error) {
	if g == nil {
		return "", fmt.Errorf("refnum generator is not initialized")
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	key := g.buildKey(cfg, period)

	var num int64
	var err error
	switch opts.Strategy {
	case StrategyCached:
		num, err = g.nextCached(ctx, key, opts)
	default:
		num, err = g.nextStrict(ctx, key)
	}
	if err != nil {
		return "", err
	}

	return g.formatNumber(cfg, period, num), nil
}

// nextStrict fetches the next number from the DB using UPSERT + RETURNING.
func (g *Generator) nextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	err := g.querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (key, current_val)
        VALUES ($1, 1)
        ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
        RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}
	return num, nil
}

// nextCached serves numbers from an in-memory range, refilling from the DB
// when the range is exhausted.
func (g *Generator) nextCached(ctx context.Context, key string, opts *Options) (int64, error) {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()

	rng, exists := g.ranges[key]
	if !exists {
		rng = &cachedRange{}
		g.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}

		// current_val tracks the last allocated number; bumping by size
		// reserves (newMax-size, newMax].
		var newMax int64
		err := g.querier.QueryRow(ctx, `
            INSERT INTO sys_sequences (key, current_val)
            VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
            RETURNING current_val
		`, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("cached refill: %w", err)
		}

		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// buildKey derives the sequence key from config and period.
func (g *Generator) buildKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%d_%02d", cfg.Prefix, period.Year(), period.Month())
	case "never":
		return cfg.Prefix
	default:
		return fmt.Sprintf("%s_%d", cfg.Prefix, period.Year())
	}
}

func (g *Generator) formatNumber(cfg Config, period time.Time, num int64) string {
	pad := cfg.PadWidth
	if pad <= 0 {
		pad = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%d-%0*d", cfg.Prefix, period.Year(), pad, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, pad, num)
}
