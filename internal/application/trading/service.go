// Package trading implements the order lifecycle and portfolio reservation
// engine: order creation, cash/share reservation under row locks, execution
// against quoted prices, cancellation and the conditional-order monitor.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/marketdata"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config carries the simulated-market parameters. All values are decimal so
// fills reproduce exactly across runs.
type Config struct {
	FeeRate         decimal.Decimal // proportional fee on trade value
	MinFee          decimal.Decimal // floor per fill
	SlippageRate    decimal.Decimal // deterministic, applied against the trader
	StartingBalance decimal.Decimal // cash granted at signup
}

// DefaultConfig mirrors the simulator defaults: 0.05% fee with a $0.50
// minimum, 0.1% slippage, $10,000 starting cash.
func DefaultConfig() Config {
	return Config{
		FeeRate:         decimal.RequireFromString("0.0005"),
		MinFee:          decimal.RequireFromString("0.50"),
		SlippageRate:    decimal.RequireFromString("0.001"),
		StartingBalance: decimal.NewFromInt(10000),
	}
}

type Service struct {
	DB     *gorm.DB
	Quotes marketdata.Quoter
	Cfg    Config
}

func NewService(db *gorm.DB, quotes marketdata.Quoter, cfg Config) *Service {
	return &Service{DB: db, Quotes: quotes, Cfg: cfg}
}

// CreateOrderRequest is the accepted order submission, already decoded from
// the transport layer.
type CreateOrderRequest struct {
	Symbol         string
	Side           models.OrderSide
	OrderType      models.OrderType
	Quantity       decimal.Decimal
	Price          *decimal.Decimal
	StopPrice      *decimal.Decimal
	TimeInForce    models.TimeInForce
	IdempotencyKey *string
}

// ListOrdersFilter narrows ListOrders. Zero values mean "no filter".
type ListOrdersFilter struct {
	Status    models.OrderStatus
	Symbol    string
	Side      models.OrderSide
	OrderType models.OrderType
	Limit     int
	Offset    int
}

// forUpdate applies a pessimistic row lock. SQLite (tests) has no FOR UPDATE
// and serializes writers anyway, so the clause is skipped there.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func roundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
func roundQty(d decimal.Decimal) decimal.Decimal   { return d.Round(8) }

// Fee is max(value×rate, minimum), in cents.
func (s *Service) Fee(tradeValue decimal.Decimal) decimal.Decimal {
	fee := tradeValue.Mul(s.Cfg.FeeRate)
	if fee.LessThan(s.Cfg.MinFee) {
		fee = s.Cfg.MinFee
	}
	return roundMoney(fee)
}

// executionPrice applies directional slippage: price is pushed up for buys
// and down for sells, deterministically.
func (s *Service) executionPrice(reference decimal.Decimal, side models.OrderSide) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == models.OrderSideBuy {
		return roundQty(reference.Mul(one.Add(s.Cfg.SlippageRate)))
	}
	return roundQty(reference.Mul(one.Sub(s.Cfg.SlippageRate)))
}

func validateRequest(req *CreateOrderRequest) error {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if req.Side != models.OrderSideBuy && req.Side != models.OrderSideSell {
		return fmt.Errorf("%w: side must be BUY or SELL", ErrInvalidOrder)
	}
	switch req.OrderType {
	case models.OrderTypeMarket, models.OrderTypeLimit, models.OrderTypeStop,
		models.OrderTypeStopLimit, models.OrderTypeTakeProfit:
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, req.OrderType)
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if req.Quantity.Exponent() < -8 {
		return fmt.Errorf("%w: quantity supports at most 8 fractional digits", ErrInvalidOrder)
	}
	switch req.OrderType {
	case models.OrderTypeLimit, models.OrderTypeStopLimit, models.OrderTypeTakeProfit:
		if req.Price == nil || req.Price.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: price is required for %s orders", ErrInvalidOrder, req.OrderType)
		}
	}
	switch req.OrderType {
	case models.OrderTypeStop, models.OrderTypeStopLimit:
		if req.StopPrice == nil || req.StopPrice.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: stop_price is required for %s orders", ErrInvalidOrder, req.OrderType)
		}
	}
	if req.TimeInForce == "" {
		req.TimeInForce = models.TimeInForceGTC
	}
	switch req.TimeInForce {
	case models.TimeInForceGTC, models.TimeInForceIOC, models.TimeInForceFOK, models.TimeInForceDay:
	default:
		return fmt.Errorf("%w: unknown time_in_force %q", ErrInvalidOrder, req.TimeInForce)
	}
	return nil
}

// referencePrice picks the price used for cost estimation: the trader's own
// limit/stop price for conditional orders, a live quote for market orders.
func (s *Service) referencePrice(ctx context.Context, req *CreateOrderRequest) (decimal.Decimal, error) {
	switch req.OrderType {
	case models.OrderTypeLimit, models.OrderTypeStopLimit, models.OrderTypeTakeProfit:
		return *req.Price, nil
	case models.OrderTypeStop:
		return *req.StopPrice, nil
	}
	price, err := s.Quotes.GetPrice(ctx, req.Symbol, false)
	if err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

// estimatedCost is what a BUY must be able to afford: trade value at the
// slipped execution price, plus fee.
func (s *Service) estimatedCost(req *CreateOrderRequest, reference decimal.Decimal) decimal.Decimal {
	price := reference
	if req.OrderType == models.OrderTypeMarket {
		price = s.executionPrice(reference, req.Side)
	}
	value := roundMoney(req.Quantity.Mul(price))
	return value.Add(s.Fee(value))
}

// dayExpiry is the next 16:00 UTC close after submission.
func dayExpiry(now time.Time) time.Time {
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 16, 0, 0, 0, time.UTC)
	if !cutoff.After(now) {
		cutoff = cutoff.AddDate(0, 0, 1)
	}
	return cutoff
}

// CreateOrder validates, reserves and persists an order, executing market
// orders (and already-triggered limit orders) immediately. A repeated
// idempotency key returns the original order with replayed=true and no new
// row.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*models.Order, bool, error) {
	if err := validateRequest(&req); err != nil {
		return nil, false, err
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		var existing models.Order
		err := s.DB.WithContext(ctx).
			Where("idempotency_key = ?", *req.IdempotencyKey).
			First(&existing).Error
		if err == nil {
			return &existing, true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	} else {
		req.IdempotencyKey = nil
	}

	reference, priceErr := s.referencePrice(ctx, &req)
	if priceErr != nil && req.OrderType == models.OrderTypeMarket {
		// No live or cached price: a market order has nothing to fill
		// against and is rejected rather than priced out of thin air.
		order, err := s.persistRejected(ctx, userID, req, ReasonNoPrice)
		if err != nil {
			return nil, false, err
		}
		return order, false, nil
	}

	var order *models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		portfolio, err := s.portfolioLocked(tx, userID)
		if err != nil {
			return err
		}

		o := &models.Order{
			UserID:         userID,
			Symbol:         req.Symbol,
			OrderType:      req.OrderType,
			Side:           req.Side,
			Status:         models.OrderStatusPending,
			Quantity:       req.Quantity,
			Price:          req.Price,
			StopPrice:      req.StopPrice,
			TimeInForce:    req.TimeInForce,
			IdempotencyKey: req.IdempotencyKey,
		}
		if req.TimeInForce == models.TimeInForceDay {
			exp := dayExpiry(time.Now().UTC())
			o.ExpiresAt = &exp
		}

		holding, err := s.reserve(tx, portfolio, o, reference, req)
		if err != nil {
			return err
		}

		if err := tx.Create(o).Error; err != nil {
			return err
		}
		s.recordEvent(tx, o.ID, models.OrderEventCreated, map[string]interface{}{
			"symbol": o.Symbol, "side": o.Side, "type": o.OrderType,
			"quantity": o.Quantity, "reserved_amount": o.ReservedAmount,
		})

		if s.shouldExecuteImmediately(ctx, o) {
			// Savepoint: a failed fill rolls back to the resting order
			// instead of losing it; the monitor retries on the next tick.
			execErr := tx.Transaction(func(inner *gorm.DB) error {
				return s.executeLocked(ctx, inner, o, portfolio, holding)
			})
			if execErr != nil {
				log.Error().Err(execErr).Uint("order_id", o.ID).
					Msg("immediate execution failed, order left pending")
			}
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, false, nil
}

// shouldExecuteImmediately: market orders always; limit orders when the
// submission-time market sample already satisfies the trigger. Other
// conditional types rest until the monitor picks them up.
func (s *Service) shouldExecuteImmediately(ctx context.Context, o *models.Order) bool {
	if o.OrderType == models.OrderTypeMarket {
		return true
	}
	if o.OrderType != models.OrderTypeLimit {
		return false
	}
	price, err := s.Quotes.GetPrice(ctx, o.Symbol, false)
	if err != nil {
		return false
	}
	return ShouldTrigger(o, price)
}

// persistRejected writes an order straight to REJECTED with a reason and an
// audit event, reserving nothing.
func (s *Service) persistRejected(ctx context.Context, userID uuid.UUID, req CreateOrderRequest, reason string) (*models.Order, error) {
	now := time.Now().UTC()
	o := &models.Order{
		UserID:          userID,
		Symbol:          req.Symbol,
		OrderType:       req.OrderType,
		Side:            req.Side,
		Status:          models.OrderStatusRejected,
		Quantity:        req.Quantity,
		Price:           req.Price,
		StopPrice:       req.StopPrice,
		TimeInForce:     req.TimeInForce,
		IdempotencyKey:  req.IdempotencyKey,
		RejectionReason: &reason,
		UpdatedAt:       now,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		s.recordEvent(tx, o.ID, models.OrderEventRejected, map[string]interface{}{"reason": reason})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) portfolioLocked(tx *gorm.DB, userID uuid.UUID) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	err := forUpdate(tx).Where("user_id = ?", userID).First(&portfolio).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPortfolioNotFound
	}
	if err != nil {
		return nil, err
	}
	return &portfolio, nil
}

func (s *Service) holdingLocked(tx *gorm.DB, portfolioID uint, symbol string) (*models.Holding, error) {
	var holding models.Holding
	err := forUpdate(tx).
		Where("portfolio_id = ? AND symbol = ?", portfolioID, symbol).
		First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &holding, nil
}

// reserve ring-fences cash (BUY) or shares (SELL) for the order. The
// portfolio row is already locked; the holding lock is acquired here, always
// after the portfolio lock so concurrent reservers and executors cannot
// deadlock. Market orders that cannot be covered are rejected outright;
// resting orders are accepted unreserved and re-checked at fill time.
func (s *Service) reserve(tx *gorm.DB, portfolio *models.Portfolio, o *models.Order, reference decimal.Decimal, req CreateOrderRequest) (*models.Holding, error) {
	if o.Side == models.OrderSideBuy {
		cost := s.estimatedCost(&req, reference)
		o.EstimatedCost = &cost
		if portfolio.AvailableCash().LessThan(cost) {
			if o.OrderType == models.OrderTypeMarket {
				return nil, ErrInsufficientFunds
			}
			log.Warn().Str("user_id", o.UserID.String()).Str("symbol", o.Symbol).
				Msg("resting buy accepted without reservation: insufficient available cash")
			return nil, nil
		}
		portfolio.ReservedCash = roundMoney(portfolio.ReservedCash.Add(cost))
		o.ReservedAmount = cost
		return nil, tx.Save(portfolio).Error
	}

	holding, err := s.holdingLocked(tx, portfolio.ID, o.Symbol)
	if err != nil {
		return nil, err
	}
	if holding == nil || holding.AvailableQuantity().LessThan(o.Quantity) {
		if o.OrderType == models.OrderTypeMarket {
			return nil, ErrInsufficientShares
		}
		log.Warn().Str("user_id", o.UserID.String()).Str("symbol", o.Symbol).
			Msg("resting sell accepted without reservation: insufficient available shares")
		return holding, nil
	}
	holding.ReservedQuantity = roundQty(holding.ReservedQuantity.Add(o.Quantity))
	o.ReservedQuantity = o.Quantity
	return holding, tx.Save(holding).Error
}

// releaseLocked returns the order's outstanding reservation to the account.
// Both rows are already locked. Zeroing the order-side counters makes a
// second release a no-op instead of an invariant breach.
func (s *Service) releaseLocked(tx *gorm.DB, o *models.Order, portfolio *models.Portfolio) error {
	if o.Side == models.OrderSideBuy {
		if o.ReservedAmount.IsZero() {
			return nil
		}
		newReserved := portfolio.ReservedCash.Sub(o.ReservedAmount)
		if newReserved.IsNegative() {
			return fmt.Errorf("release of %s exceeds reserved cash %s on portfolio %d",
				o.ReservedAmount, portfolio.ReservedCash, portfolio.ID)
		}
		portfolio.ReservedCash = newReserved
		o.ReservedAmount = decimal.Zero
		return tx.Save(portfolio).Error
	}

	if o.ReservedQuantity.IsZero() {
		return nil
	}
	holding, err := s.holdingLocked(tx, portfolio.ID, o.Symbol)
	if err != nil {
		return err
	}
	if holding == nil {
		return fmt.Errorf("release for order %d: holding %s missing", o.ID, o.Symbol)
	}
	newReserved := holding.ReservedQuantity.Sub(o.ReservedQuantity)
	if newReserved.IsNegative() {
		return fmt.Errorf("release of %s exceeds reserved quantity %s on holding %d",
			o.ReservedQuantity, holding.ReservedQuantity, holding.ID)
	}
	holding.ReservedQuantity = newReserved
	o.ReservedQuantity = decimal.Zero
	return tx.Save(holding).Error
}

// CancelOrder releases the unfilled reservation and moves the order to
// CANCELED. It takes the same locks in the same order as reservation, so a
// cancel racing the monitor waits and then observes a terminal state.
func (s *Service) CancelOrder(ctx context.Context, userID uuid.UUID, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := forUpdate(tx).
			Where("id = ? AND user_id = ?", orderID, userID).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if !order.IsActive() {
			return ErrOrderNotActive
		}

		portfolio, err := s.portfolioLocked(tx, userID)
		if err != nil {
			return err
		}
		if err := s.releaseLocked(tx, &order, portfolio); err != nil {
			return err
		}

		now := time.Now().UTC()
		order.Status = models.OrderStatusCanceled
		order.CanceledAt = &now
		if err := tx.Save(&order).Error; err != nil {
			return err
		}
		s.recordEvent(tx, order.ID, models.OrderEventCanceled, map[string]interface{}{
			"canceled_at": now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder returns one order owned by the user.
func (s *Service) GetOrder(ctx context.Context, userID uuid.UUID, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID, f ListOrdersFilter) ([]models.Order, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Symbol != "" {
		q = q.Where("symbol = ?", strings.ToUpper(f.Symbol))
	}
	if f.Side != "" {
		q = q.Where("side = ?", f.Side)
	}
	if f.OrderType != "" {
		q = q.Where("order_type = ?", f.OrderType)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var orders []models.Order
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(f.Offset).Find(&orders).Error
	return orders, err
}

// ListActiveOrders returns every order still eligible for the monitor.
func (s *Service) ListActiveOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Where("status IN ?", []models.OrderStatus{models.OrderStatusPending, models.OrderStatusPartiallyFilled}).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

// ShouldTrigger evaluates an order's trigger condition against a price
// sample. Market orders are always executable (a resting one means an
// earlier immediate fill failed and should be retried).
func ShouldTrigger(o *models.Order, price decimal.Decimal) bool {
	switch o.OrderType {
	case models.OrderTypeMarket:
		return true

	case models.OrderTypeLimit:
		if o.Side == models.OrderSideBuy {
			return price.LessThanOrEqual(*o.Price)
		}
		return price.GreaterThanOrEqual(*o.Price)

	case models.OrderTypeStop:
		if o.Side == models.OrderSideSell {
			return price.LessThanOrEqual(*o.StopPrice)
		}
		return price.GreaterThanOrEqual(*o.StopPrice)

	case models.OrderTypeStopLimit:
		// Stop first, then the limit check against the same sample.
		if o.Side == models.OrderSideSell {
			if price.GreaterThan(*o.StopPrice) {
				return false
			}
			return price.GreaterThanOrEqual(*o.Price)
		}
		if price.LessThan(*o.StopPrice) {
			return false
		}
		return price.LessThanOrEqual(*o.Price)

	case models.OrderTypeTakeProfit:
		if o.Side == models.OrderSideSell {
			return price.GreaterThanOrEqual(*o.Price)
		}
		return price.LessThanOrEqual(*o.Price)
	}
	return false
}
