package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Service composes a Provider with the last-known-price cache. Resolution
// order: provider (bounded timeout) → cache → ErrUnavailable. Every good
// provider quote refreshes the cache.
type Service struct {
	Provider Provider
	Cache    *LastPriceCache
	Timeout  time.Duration
}

func NewService(provider Provider, cache *LastPriceCache, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{Provider: provider, Cache: cache, Timeout: timeout}
}

func (s *Service) GetPrice(ctx context.Context, symbol string, forceFresh bool) (decimal.Decimal, error) {
	if !forceFresh {
		if price, err := s.Cache.Get(ctx, symbol); err == nil {
			return price, nil
		}
	}

	if s.Provider != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		price, err := s.Provider.FetchPrice(fetchCtx, symbol)
		cancel()
		if err == nil && price.GreaterThan(decimal.Zero) {
			if cacheErr := s.Cache.Put(ctx, symbol, price); cacheErr != nil {
				log.Warn().Err(cacheErr).Str("symbol", symbol).Msg("last-price cache write failed")
			}
			return price, nil
		}
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("provider quote failed, trying last-known price")
		}
	}

	// Provider down or returned garbage: a cached quote is still better than
	// trading on a fabricated price.
	if price, err := s.Cache.Get(ctx, symbol); err == nil {
		return price, nil
	}
	return decimal.Zero, ErrUnavailable
}
