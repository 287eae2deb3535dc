package trading

import "errors"

// Failure classes surfaced to callers. Handlers map these onto the standard
// error envelope; everything else is an internal fault.
var (
	ErrInvalidOrder       = errors.New("invalid order")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoPriceAvailable   = errors.New("no price available")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotActive     = errors.New("order not active")
	ErrPortfolioNotFound  = errors.New("portfolio not found")
)

// Rejection reasons stored on the order row.
const (
	ReasonNoPrice            = "NO_PRICE_AVAILABLE"
	ReasonInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ReasonInsufficientShares = "INSUFFICIENT_SHARES"
)
