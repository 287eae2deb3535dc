package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const lastPriceKeyPrefix = "price:last:"

// LastPriceCache stores the last good quote per symbol in Redis so execution
// can fall back to a recent price when the provider is down. Entries expire
// rather than serving arbitrarily stale prices forever.
type LastPriceCache struct {
	Rdb *redis.Client
	TTL time.Duration
}

func NewLastPriceCache(rdb *redis.Client, ttl time.Duration) *LastPriceCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &LastPriceCache{Rdb: rdb, TTL: ttl}
}

func lastPriceKey(symbol string) string {
	return lastPriceKeyPrefix + strings.ToUpper(symbol)
}

// Get returns the cached price for symbol, or ErrUnavailable on miss.
func (c *LastPriceCache) Get(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if c == nil || c.Rdb == nil {
		return decimal.Zero, ErrUnavailable
	}
	val, err := c.Rdb.Get(ctx, lastPriceKey(symbol)).Result()
	if err == redis.Nil {
		return decimal.Zero, ErrUnavailable
	}
	if err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(val)
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrUnavailable
	}
	return price, nil
}

// Put records a fresh quote. Cache write failures are not fatal to the quote
// path, so the error is returned for logging only.
func (c *LastPriceCache) Put(ctx context.Context, symbol string, price decimal.Decimal) error {
	if c == nil || c.Rdb == nil {
		return nil
	}
	return c.Rdb.Set(ctx, lastPriceKey(symbol), price.String(), c.TTL).Err()
}
