package marketdata

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// StaticProvider serves prices from an in-memory table. Used in development
// and tests; prices are set explicitly, never invented per symbol.
type StaticProvider struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStaticProvider(prices map[string]decimal.Decimal) *StaticProvider {
	p := &StaticProvider{prices: map[string]decimal.Decimal{}}
	for sym, price := range prices {
		p.prices[strings.ToUpper(sym)] = price
	}
	return p
}

func (p *StaticProvider) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.prices[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Zero, ErrUnavailable
	}
	return price, nil
}

// SetPrice updates (or adds) a symbol's price.
func (p *StaticProvider) SetPrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[strings.ToUpper(symbol)] = price
}

// Remove drops a symbol so fetches report unavailability.
func (p *StaticProvider) Remove(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.prices, strings.ToUpper(symbol))
}
