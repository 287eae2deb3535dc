// Package marketdata is the price-quote collaborator for the trading engine.
// Its only contract with the core is GetPrice: a possibly stale, possibly
// absent reference price per symbol. Provider fan-out, rate limiting and
// caching stay on this side of the boundary.
package marketdata

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnavailable means no price could be obtained from the provider or the
// last-known cache. Callers must treat this as a frequent, first-class
// condition rather than an exception path.
var ErrUnavailable = errors.New("marketdata: no price available")

// Quoter is the narrow interface the trading core consumes.
// forceFresh bypasses the last-known cache and hits the provider directly.
type Quoter interface {
	GetPrice(ctx context.Context, symbol string, forceFresh bool) (decimal.Decimal, error)
}

// Provider is an upstream price source (exchange feed, vendor API, simulator).
// Implementations must respect the context deadline.
type Provider interface {
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
