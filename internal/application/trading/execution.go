package trading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/marketdata"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// executeLocked turns a reserved order into one full fill. The portfolio row
// (and holding row for sells) must already be locked by the caller; all
// mutations happen inside the caller's transaction, so a returned error
// leaves no partial fill behind.
func (s *Service) executeLocked(ctx context.Context, tx *gorm.DB, o *models.Order, portfolio *models.Portfolio, holding *models.Holding) error {
	reference, err := s.Quotes.GetPrice(ctx, o.Symbol, true)
	if err != nil {
		if errors.Is(err, marketdata.ErrUnavailable) {
			// Deferred, not failed: the order stays active and the monitor
			// retries once a price shows up again.
			return ErrNoPriceAvailable
		}
		return err
	}

	// Buys don't lock the holding during reservation; take it now (portfolio
	// lock is already held, preserving the lock order) so the snapshot and
	// cost-basis math see the current position.
	if o.Side == models.OrderSideBuy && holding == nil {
		holding, err = s.holdingLocked(tx, portfolio.ID, o.Symbol)
		if err != nil {
			return err
		}
	}

	execPrice := s.executionPrice(reference, o.Side)
	quantity := o.Quantity
	tradeValue := roundMoney(quantity.Mul(execPrice))
	fee := s.Fee(tradeValue)

	var netAmount decimal.Decimal
	if o.Side == models.OrderSideBuy {
		netAmount = tradeValue.Add(fee)
	} else {
		netAmount = tradeValue.Sub(fee)
	}

	cashBefore := portfolio.CashBalance
	sharesBefore := decimal.Zero
	if holding != nil {
		sharesBefore = holding.Quantity
	}

	if o.Side == models.OrderSideBuy {
		holding, err = s.applyBuy(tx, o, portfolio, holding, execPrice, netAmount)
	} else {
		err = s.applySell(tx, o, portfolio, holding, netAmount)
	}
	if err != nil {
		var rej *rejectionError
		if errors.As(err, &rej) {
			return s.rejectLocked(tx, o, portfolio, rej.reason)
		}
		return err
	}

	sharesAfter := decimal.Zero
	if o.Side == models.OrderSideBuy {
		sharesAfter = holding.Quantity
	} else if holding != nil {
		sharesAfter = holding.Quantity
	}

	txType := models.TransactionTypeBuy
	if o.Side == models.OrderSideSell {
		txType = models.TransactionTypeSell
	}
	now := time.Now().UTC()
	record := &models.Transaction{
		UserID:          o.UserID,
		OrderID:         &o.ID,
		Symbol:          o.Symbol,
		TransactionType: txType,
		Quantity:        quantity,
		Price:           execPrice,
		TotalAmount:     tradeValue,
		Fee:             fee,
		NetAmount:       netAmount,
		CashBefore:      cashBefore,
		CashAfter:       portfolio.CashBalance,
		SharesBefore:    sharesBefore,
		SharesAfter:     sharesAfter,
		ExecutionVenue:  "SIMULATED",
		ExecutedAt:      now,
	}
	if err := tx.Create(record).Error; err != nil {
		return err
	}

	o.FilledQuantity = quantity
	o.AverageFillPrice = &execPrice
	o.TotalFees = fee
	o.Status = models.OrderStatusFilled
	o.ExecutedAt = &now
	if err := tx.Save(o).Error; err != nil {
		return err
	}
	s.recordEvent(tx, o.ID, models.OrderEventFilled, map[string]interface{}{
		"price": execPrice, "quantity": quantity, "fee": fee, "net_amount": netAmount,
	})

	log.Info().Uint("order_id", o.ID).Str("symbol", o.Symbol).
		Str("side", string(o.Side)).Str("price", execPrice.String()).
		Str("net", netAmount.String()).Msg("order filled")
	return nil
}

// rejectionError marks a business rejection inside the fill path, as opposed
// to a storage fault that must abort the transaction.
type rejectionError struct{ reason string }

func (e *rejectionError) Error() string { return e.reason }

// applyBuy releases the order's cash reservation, debits the net amount and
// folds the purchase into the holding's weighted-average cost basis. The
// holding is already locked by the caller (nil when the position is new).
func (s *Service) applyBuy(tx *gorm.DB, o *models.Order, portfolio *models.Portfolio, holding *models.Holding, execPrice, netAmount decimal.Decimal) (*models.Holding, error) {
	// Affordability is re-checked at fill time: the order's own reservation
	// plus free cash must cover the net amount. Orders accepted unreserved
	// fail here if the account is still short.
	spendable := portfolio.AvailableCash().Add(o.ReservedAmount)
	if spendable.LessThan(netAmount) {
		return nil, &rejectionError{reason: ReasonInsufficientFunds}
	}

	if err := s.releaseLocked(tx, o, portfolio); err != nil {
		return nil, err
	}
	portfolio.CashBalance = roundMoney(portfolio.CashBalance.Sub(netAmount))
	if portfolio.CashBalance.IsNegative() {
		return nil, fmt.Errorf("buy fill drove portfolio %d cash negative", portfolio.ID)
	}
	if err := tx.Save(portfolio).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if holding == nil {
		holding = &models.Holding{
			PortfolioID:     portfolio.ID,
			Symbol:          o.Symbol,
			Quantity:        o.Quantity,
			AverageBuyPrice: execPrice,
			CurrentPrice:    execPrice,
			LastPriceUpdate: &now,
		}
		return holding, tx.Create(holding).Error
	}

	totalCost := holding.Quantity.Mul(holding.AverageBuyPrice).Add(o.Quantity.Mul(execPrice))
	newQuantity := roundQty(holding.Quantity.Add(o.Quantity))
	holding.Quantity = newQuantity
	holding.AverageBuyPrice = totalCost.DivRound(newQuantity, 8)
	holding.CurrentPrice = execPrice
	holding.LastPriceUpdate = &now
	return holding, tx.Save(holding).Error
}

// applySell releases the share reservation, removes the sold quantity and
// credits the proceeds. The holding row is deleted once empty.
func (s *Service) applySell(tx *gorm.DB, o *models.Order, portfolio *models.Portfolio, holding *models.Holding, netAmount decimal.Decimal) error {
	if holding == nil {
		return &rejectionError{reason: ReasonInsufficientShares}
	}
	sellable := holding.AvailableQuantity().Add(o.ReservedQuantity)
	if sellable.LessThan(o.Quantity) {
		return &rejectionError{reason: ReasonInsufficientShares}
	}

	if err := s.releaseLocked(tx, o, portfolio); err != nil {
		return err
	}
	holding.Quantity = roundQty(holding.Quantity.Sub(o.Quantity))
	if holding.Quantity.IsNegative() {
		return fmt.Errorf("sell fill drove holding %d quantity negative", holding.ID)
	}

	portfolio.CashBalance = roundMoney(portfolio.CashBalance.Add(netAmount))
	if err := tx.Save(portfolio).Error; err != nil {
		return err
	}

	if holding.Quantity.IsZero() {
		return tx.Delete(holding).Error
	}
	return tx.Save(holding).Error
}

// rejectLocked releases any remaining reservation and parks the order in
// REJECTED with a reason. Called under the same locks as execution.
func (s *Service) rejectLocked(tx *gorm.DB, o *models.Order, portfolio *models.Portfolio, reason string) error {
	if err := s.releaseLocked(tx, o, portfolio); err != nil {
		return err
	}
	o.Status = models.OrderStatusRejected
	o.RejectionReason = &reason
	if err := tx.Save(o).Error; err != nil {
		return err
	}
	s.recordEvent(tx, o.ID, models.OrderEventRejected, map[string]interface{}{"reason": reason})
	log.Warn().Uint("order_id", o.ID).Str("reason", reason).Msg("order rejected")
	return nil
}

// ExecuteTriggered fills one resting order whose trigger condition was met.
// It re-acquires everything under lock and re-checks the order is still
// active, so a concurrent cancel wins or loses atomically, never both.
func (s *Service) ExecuteTriggered(ctx context.Context, orderID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := forUpdate(tx).Where("id = ?", orderID).First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if !order.IsActive() {
			return ErrOrderNotActive
		}

		portfolio, err := s.portfolioLocked(tx, order.UserID)
		if err != nil {
			return err
		}
		var holding *models.Holding
		if order.Side == models.OrderSideSell {
			holding, err = s.holdingLocked(tx, portfolio.ID, order.Symbol)
			if err != nil {
				return err
			}
		}
		return s.executeLocked(ctx, tx, &order, portfolio, holding)
	})
}

// ExpireDueOrders cancels every active order whose expires_at has passed,
// releasing its reservation exactly like a user cancel. Failures are
// isolated per order. Returns how many orders were expired.
func (s *Service) ExpireDueOrders(ctx context.Context, now time.Time) (int, error) {
	var due []models.Order
	err := s.DB.WithContext(ctx).
		Where("status IN ?", []models.OrderStatus{models.OrderStatusPending, models.OrderStatusPartiallyFilled}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range due {
		id := due[i].ID
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var order models.Order
			if err := forUpdate(tx).Where("id = ?", id).First(&order).Error; err != nil {
				return err
			}
			if !order.IsActive() {
				return nil
			}
			portfolio, err := s.portfolioLocked(tx, order.UserID)
			if err != nil {
				return err
			}
			if err := s.releaseLocked(tx, &order, portfolio); err != nil {
				return err
			}
			ts := time.Now().UTC()
			order.Status = models.OrderStatusExpired
			order.CanceledAt = &ts
			if err := tx.Save(&order).Error; err != nil {
				return err
			}
			s.recordEvent(tx, order.ID, models.OrderEventExpired, map[string]interface{}{
				"expired_at": ts,
			})
			expired++
			return nil
		})
		if err != nil {
			log.Error().Err(err).Uint("order_id", id).Msg("failed to expire order")
		}
	}
	return expired, nil
}

// recordEvent appends a lifecycle audit row. Best effort inside the caller's
// transaction; a marshal failure is logged, not fatal.
func (s *Service) recordEvent(tx *gorm.DB, orderID uint, eventType models.OrderEventType, data map[string]interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Uint("order_id", orderID).Msg("order event marshal failed")
		payload = []byte("{}")
	}
	event := &models.OrderEvent{
		OrderID:   orderID,
		EventType: eventType,
		EventData: datatypes.JSON(payload),
	}
	if err := tx.Create(event).Error; err != nil {
		log.Error().Err(err).Uint("order_id", orderID).Msg("order event write failed")
	}
}
