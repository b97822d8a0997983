// Package oracle supplies price multipliers for dynamic minimum balances.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultFallback is substituted when the oracle cannot be read.
var DefaultFallback = decimal.NewFromInt(2)

var (
	// ErrNoOracle is recorded when a dynamic threshold is resolved without an oracle.
	ErrNoOracle = errors.New("no price oracle configured")
	// ErrInvalidPrice is returned for zero, negative or missing prices.
	ErrInvalidPrice = errors.New("invalid price")
)

// PriceOracle reads the current multiplier of an asset.
type PriceOracle interface {
	PriceMultiplier(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Cache reads each symbol at most once and remembers the value for the rest
// of the run. Failed reads resolve to the fallback. One Cache per run; not
// safe for concurrent use.
type Cache struct {
	oracle   PriceOracle
	fallback decimal.Decimal
	logger   *zap.Logger
	values   map[string]decimal.Decimal
	failures map[string]error
}

// NewCache wraps o. A non-positive fallback is replaced with DefaultFallback.
func NewCache(o PriceOracle, fallback decimal.Decimal, logger *zap.Logger) *Cache {
	if !fallback.IsPositive() {
		fallback = DefaultFallback
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		oracle:   o,
		fallback: fallback,
		logger:   logger,
		values:   make(map[string]decimal.Decimal),
		failures: make(map[string]error),
	}
}

// Multiplier returns the cached multiplier for symbol, reading the oracle on first use.
func (c *Cache) Multiplier(ctx context.Context, symbol string) decimal.Decimal {
	if v, ok := c.values[symbol]; ok {
		return v
	}

	v, err := c.read(ctx, symbol)
	if err != nil {
		c.logger.Warn("price oracle unavailable, using fallback",
			zap.String("symbol", symbol),
			zap.String("fallback", c.fallback.String()),
			zap.Error(err))
		c.failures[symbol] = err
		v = c.fallback
	}
	c.values[symbol] = v
	return v
}

// Degraded returns the symbols resolved to the fallback, sorted.
func (c *Cache) Degraded() []string {
	out := make([]string, 0, len(c.failures))
	for s := range c.failures {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (c *Cache) read(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if c.oracle == nil {
		return decimal.Zero, ErrNoOracle
	}
	v, err := c.oracle.PriceMultiplier(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s for %s", ErrInvalidPrice, v, symbol)
	}
	return v, nil
}

// Static is a fixed-price oracle.
type Static map[string]decimal.Decimal

// PriceMultiplier returns the configured price.
func (s Static) PriceMultiplier(_ context.Context, symbol string) (decimal.Decimal, error) {
	v, ok := s[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", ErrInvalidPrice, symbol)
	}
	return v, nil
}
