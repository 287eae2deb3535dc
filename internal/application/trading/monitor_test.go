package trading

import (
	"context"
	"testing"
	"time"

	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorFillsTriggeredLimitSell(t *testing.T) {
	svc, provider, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "1000")
	seedHolding(t, db, userID, "AAPL", "10", "95")

	limit := dec("150")
	order, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideSell,
		OrderType: models.OrderTypeLimit,
		Quantity:  dec("10"),
		Price:     &limit,
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, order.Status)

	monitor := NewMonitor(svc, time.Second, 5*time.Minute)

	// Below the limit: nothing happens.
	monitor.Tick(context.Background())
	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, got.Status)

	provider.SetPrice("AAPL", dec("155"))
	monitor.Tick(context.Background())

	require.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, models.OrderStatusFilled, got.Status)
	require.NotNil(t, got.AverageFillPrice)
	assert.True(t, got.AverageFillPrice.Equal(dec("154.845")), "fill price %s", got.AverageFillPrice)

	// 10 × 154.845 = 1548.45, fee 0.77, net 1547.68.
	p := getPortfolio(t, db, userID)
	assert.True(t, p.CashBalance.Equal(dec("2548.68")), "cash %s", p.CashBalance)

	var holdings int64
	require.NoError(t, db.Model(&models.Holding{}).Count(&holdings).Error)
	assert.Zero(t, holdings)
}

func TestMonitorFillsStopSellOnDrop(t *testing.T) {
	svc, provider, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "1000")
	seedHolding(t, db, userID, "AAPL", "10", "95")

	stop := dec("90")
	order, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideSell,
		OrderType: models.OrderTypeStop,
		Quantity:  dec("10"),
		StopPrice: &stop,
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, order.Status)

	monitor := NewMonitor(svc, time.Second, 5*time.Minute)
	provider.SetPrice("AAPL", dec("89"))
	monitor.Tick(context.Background())

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, models.OrderStatusFilled, got.Status)
}

func TestMonitorSkipsSymbolWithoutPrice(t *testing.T) {
	svc, provider, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "10000")

	limit := dec("90")
	order, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeLimit,
		Quantity:  dec("10"),
		Price:     &limit,
	})
	require.NoError(t, err)

	provider.Remove("AAPL")
	monitor := NewMonitor(svc, time.Second, 5*time.Minute)
	monitor.Tick(context.Background())

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestMonitorTickExpiresDueOrders(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "10000")

	limit := dec("90")
	order, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:      "AAPL",
		Side:        models.OrderSideBuy,
		OrderType:   models.OrderTypeLimit,
		Quantity:    dec("10"),
		Price:       &limit,
		TimeInForce: models.TimeInForceDay,
	})
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("expires_at", past).Error)

	// First tick always runs the expiry sweep.
	monitor := NewMonitor(svc, time.Second, 5*time.Minute)
	monitor.Tick(context.Background())

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, models.OrderStatusExpired, got.Status)

	p := getPortfolio(t, db, userID)
	assert.True(t, p.ReservedCash.IsZero())
}
