package trading

import (
	"context"
	"testing"
	"time"

	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/marketdata"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupTradingTest(t *testing.T) (*Service, *marketdata.StaticProvider, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A second pool connection would open a second empty in-memory DB.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Portfolio{}, &models.Holding{},
		&models.Order{}, &models.Transaction{}, &models.OrderEvent{},
	))

	provider := marketdata.NewStaticProvider(map[string]decimal.Decimal{
		"AAPL": dec("100"),
	})
	quotes := marketdata.NewService(provider, marketdata.NewLastPriceCache(nil, 0), time.Second)
	svc := NewService(db, quotes, DefaultConfig())
	return svc, provider, db
}

func seedPortfolio(t *testing.T, db *gorm.DB, cash string) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	p := &models.Portfolio{
		UserID:         userID,
		CashBalance:    dec(cash),
		InitialBalance: dec(cash),
	}
	require.NoError(t, db.Create(p).Error)
	return userID
}

func seedHolding(t *testing.T, db *gorm.DB, userID uuid.UUID, symbol, qty, avg string) {
	t.Helper()
	var p models.Portfolio
	require.NoError(t, db.Where("user_id = ?", userID).First(&p).Error)
	require.NoError(t, db.Create(&models.Holding{
		PortfolioID:     p.ID,
		Symbol:          symbol,
		Quantity:        dec(qty),
		AverageBuyPrice: dec(avg),
	}).Error)
}

func getPortfolio(t *testing.T, db *gorm.DB, userID uuid.UUID) models.Portfolio {
	t.Helper()
	var p models.Portfolio
	require.NoError(t, db.Where("user_id = ?", userID).First(&p).Error)
	return p
}

// Market buy of 10 units at reference $100: execution price 100.10 after
// 0.1% slippage, trade value $1001.00, fee $0.50, net $1001.50.
func TestMarketBuyFillsImmediately(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "10000")

	order, replayed, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeMarket,
		Quantity:  dec("10"),
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, models.OrderStatusFilled, order.Status)
	require.NotNil(t, order.AverageFillPrice)
	assert.True(t, order.AverageFillPrice.Equal(dec("100.1")), "fill price %s", order.AverageFillPrice)
	assert.True(t, order.FilledQuantity.Equal(dec("10")))
	assert.True(t, order.TotalFees.Equal(dec("0.50")))

	p := getPortfolio(t, db, userID)
	assert.True(t, p.CashBalance.Equal(dec("8998.50")), "cash %s", p.CashBalance)
	assert.True(t, p.ReservedCash.IsZero(), "reserved %s", p.ReservedCash)

	var holding models.Holding
	require.NoError(t, db.Where("portfolio_id = ? AND symbol = ?", p.ID, "AAPL").First(&holding).Error)
	assert.True(t, holding.Quantity.Equal(dec("10")))
	assert.True(t, holding.AverageBuyPrice.Equal(dec("100.1")), "avg %s", holding.AverageBuyPrice)

	var tx models.Transaction
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&tx).Error)
	assert.True(t, tx.CashBefore.Equal(dec("10000")))
	assert.True(t, tx.CashAfter.Equal(dec("8998.50")))
	assert.True(t, tx.SharesBefore.IsZero())
	assert.True(t, tx.SharesAfter.Equal(dec("10")))
	assert.True(t, tx.NetAmount.Equal(dec("1001.50")))
}

func TestMarketBuyInsufficientFundsRejected(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "100")

	_, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeMarket,
		Quantity:  dec("10"),
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing persisted, nothing reserved.
	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	p := getPortfolio(t, db, userID)
	assert.True(t, p.ReservedCash.IsZero())
}

// Two buys each costing ~60% of cash: the second must not also succeed.
func TestSecondOverdrawingBuyRejected(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "10000")

	req := CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeMarket,
		Quantity:  dec("59"),
	}
	first, _, err := svc.CreateOrder(context.Background(), userID, req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFilled, first.Status)

	_, _, err = svc.CreateOrder(context.Background(), userID, req)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	p := getPortfolio(t, db, userID)
	assert.False(t, p.CashBalance.IsNegative())
	assert.True(t, p.ReservedCash.LessThanOrEqual(p.CashBalance))
}

func TestMarketBuyNoPriceRejected(t *testing.T) {
	svc, provider, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "10000")
	provider.Remove("AAPL")

	order, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeMarket,
		Quantity:  dec("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRejected, order.Status)
	require.NotNil(t, order.RejectionReason)
	assert.Equal(t, ReasonNoPrice, *order.RejectionReason)

	p := getPortfolio(t, db, userID)
	assert.True(t, p.CashBalance.Equal(dec("10000")))
	assert.True(t, p.ReservedCash.IsZero())
}

func TestIdempotencyKeyReplaysOriginalOrder(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "10000")

	key := "client-req-42"
	req := CreateOrderRequest{
		Symbol:         "AAPL",
		Side:           models.OrderSideBuy,
		OrderType:      models.OrderTypeMarket,
		Quantity:       dec("1"),
		IdempotencyKey: &key,
	}
	first, replayed, err := svc.CreateOrder(context.Background(), userID, req)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := svc.CreateOrder(context.Background(), userID, req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// Only one fill happened.
	p := getPortfolio(t, db, userID)
	assert.True(t, p.CashBalance.Equal(dec("9899.40")), "cash %s", p.CashBalance)
}

func TestLimitBuyRestsAndReservesCash(t *testing.T) {
	svc, _, db := setupTradingTest(t)
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
	assert.Equal(t, models.OrderStatusPending, order.Status)

	// Reserved at the limit price: 10×90 = 900 plus 0.50 min fee.
	p := getPortfolio(t, db, userID)
	assert.True(t, p.ReservedCash.Equal(dec("900.50")), "reserved %s", p.ReservedCash)
	assert.True(t, order.ReservedAmount.Equal(dec("900.50")))
}

func TestLimitBuyAlreadyTriggeredFillsOnSubmit(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "10000")

	limit := dec("120") // market is 100, buy limit already satisfied
	order, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeLimit,
		Quantity:  dec("5"),
		Price:     &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFilled, order.Status)
}

func TestLimitSellReservesShares(t *testing.T) {
	svc, _, db := setupTradingTest(t)
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
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.ReservedQuantity.Equal(dec("10")))

	var holding models.Holding
	require.NoError(t, db.Where("symbol = ?", "AAPL").First(&holding).Error)
	assert.True(t, holding.ReservedQuantity.Equal(dec("10")))
	assert.True(t, holding.ReservedQuantity.LessThanOrEqual(holding.Quantity))
}

func TestCancelPendingRestoresReservation(t *testing.T) {
	svc, _, db := setupTradingTest(t)
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

	canceled, err := svc.CancelOrder(context.Background(), userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.CanceledAt)

	p := getPortfolio(t, db, userID)
	assert.True(t, p.ReservedCash.IsZero(), "reserved %s", p.ReservedCash)
	assert.True(t, p.CashBalance.Equal(dec("10000")))

	// No fill ever happened.
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCancelFilledOrderFails(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "10000")

	order, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeMarket,
		Quantity:  dec("1"),
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFilled, order.Status)

	_, err = svc.CancelOrder(context.Background(), userID, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotActive)
}

func TestCancelForeignOrderNotFound(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	owner := seedPortfolio(t, db, "10000")
	other := seedPortfolio(t, db, "10000")

	limit := dec("90")
	order, _, err := svc.CreateOrder(context.Background(), owner, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeLimit,
		Quantity:  dec("1"),
		Price:     &limit,
	})
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), other, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestSellFillDeletesEmptyHolding(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "1000")
	seedHolding(t, db, userID, "AAPL", "10", "95")

	order, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideSell,
		OrderType: models.OrderTypeMarket,
		Quantity:  dec("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFilled, order.Status)

	// 10 × 99.9 = 999.00, fee 0.50, net 998.50 credited.
	p := getPortfolio(t, db, userID)
	assert.True(t, p.CashBalance.Equal(dec("1998.50")), "cash %s", p.CashBalance)

	var count int64
	require.NoError(t, db.Model(&models.Holding{}).Count(&count).Error)
	assert.Zero(t, count, "holding should be deleted at zero quantity")
}

func TestSellInsufficientSharesRejected(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "1000")
	seedHolding(t, db, userID, "AAPL", "5", "95")

	_, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideSell,
		OrderType: models.OrderTypeMarket,
		Quantity:  dec("10"),
	})
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestBuyFillBlendsAverageCost(t *testing.T) {
	svc, provider, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "100000")

	_, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeMarket,
		Quantity:  dec("10"),
	})
	require.NoError(t, err)

	provider.SetPrice("AAPL", dec("200"))
	_, _, err = svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeMarket,
		Quantity:  dec("10"),
	})
	require.NoError(t, err)

	// (10×100.1 + 10×200.2) / 20 = 150.15
	var holding models.Holding
	require.NoError(t, db.Where("symbol = ?", "AAPL").First(&holding).Error)
	assert.True(t, holding.Quantity.Equal(dec("20")))
	assert.True(t, holding.AverageBuyPrice.Equal(dec("150.15")), "avg %s", holding.AverageBuyPrice)
}

func TestRestingBuyWithoutFundsAcceptedUnreserved(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "100")

	limit := dec("90")
	order, _, err := svc.CreateOrder(context.Background(), userID, CreateOrderRequest{
		Symbol:    "AAPL",
		Side:      models.OrderSideBuy,
		OrderType: models.OrderTypeLimit,
		Quantity:  dec("10"),
		Price:     &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.ReservedAmount.IsZero())

	p := getPortfolio(t, db, userID)
	assert.True(t, p.ReservedCash.IsZero())
	assert.True(t, p.ReservedCash.LessThanOrEqual(p.CashBalance))
}

func TestExpireDueOrdersReleasesReservation(t *testing.T) {
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
	require.NotNil(t, order.ExpiresAt)

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("expires_at", past).Error)

	n, err := svc.ExpireDueOrders(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, models.OrderStatusExpired, got.Status)

	p := getPortfolio(t, db, userID)
	assert.True(t, p.ReservedCash.IsZero())
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _, db := setupTradingTest(t)
	userID := seedPortfolio(t, db, "10000")
	limit := dec("100")

	cases := []struct {
		name string
		req  CreateOrderRequest
	}{
		{"missing symbol", CreateOrderRequest{
			Side: models.OrderSideBuy, OrderType: models.OrderTypeMarket, Quantity: dec("1"),
		}},
		{"zero quantity", CreateOrderRequest{
			Symbol: "AAPL", Side: models.OrderSideBuy, OrderType: models.OrderTypeMarket, Quantity: dec("0"),
		}},
		{"too many quantity decimals", CreateOrderRequest{
			Symbol: "AAPL", Side: models.OrderSideBuy, OrderType: models.OrderTypeMarket,
			Quantity: dec("0.123456789"),
		}},
		{"limit without price", CreateOrderRequest{
			Symbol: "AAPL", Side: models.OrderSideBuy, OrderType: models.OrderTypeLimit, Quantity: dec("1"),
		}},
		{"stop without stop price", CreateOrderRequest{
			Symbol: "AAPL", Side: models.OrderSideSell, OrderType: models.OrderTypeStop, Quantity: dec("1"),
		}},
		{"stop limit without stop price", CreateOrderRequest{
			Symbol: "AAPL", Side: models.OrderSideSell, OrderType: models.OrderTypeStopLimit,
			Quantity: dec("1"), Price: &limit,
		}},
		{"bad side", CreateOrderRequest{
			Symbol: "AAPL", Side: "HOLD", OrderType: models.OrderTypeMarket, Quantity: dec("1"),
		}},
		{"bad time in force", CreateOrderRequest{
			Symbol: "AAPL", Side: models.OrderSideBuy, OrderType: models.OrderTypeMarket,
			Quantity: dec("1"), TimeInForce: "XYZ",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.CreateOrder(context.Background(), userID, tc.req)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestShouldTrigger(t *testing.T) {
	limit := dec("100")
	stop := dec("95")
	stopLimitBand := dec("90")

	mk := func(typ models.OrderType, side models.OrderSide, price, stopPrice *decimal.Decimal) *models.Order {
		return &models.Order{OrderType: typ, Side: side, Price: price, StopPrice: stopPrice}
	}

	cases := []struct {
		name  string
		order *models.Order
		price string
		want  bool
	}{
		{"limit buy at limit", mk(models.OrderTypeLimit, models.OrderSideBuy, &limit, nil), "100", true},
		{"limit buy above limit", mk(models.OrderTypeLimit, models.OrderSideBuy, &limit, nil), "100.01", false},
		{"limit sell below limit", mk(models.OrderTypeLimit, models.OrderSideSell, &limit, nil), "99", false},
		{"limit sell above limit", mk(models.OrderTypeLimit, models.OrderSideSell, &limit, nil), "101", true},
		{"stop sell hit", mk(models.OrderTypeStop, models.OrderSideSell, nil, &stop), "94", true},
		{"stop sell not hit", mk(models.OrderTypeStop, models.OrderSideSell, nil, &stop), "96", false},
		{"stop buy breakout", mk(models.OrderTypeStop, models.OrderSideBuy, nil, &stop), "96", true},
		{"stop limit sell in band", mk(models.OrderTypeStopLimit, models.OrderSideSell, &stopLimitBand, &stop), "93", true},
		{"stop limit sell below limit", mk(models.OrderTypeStopLimit, models.OrderSideSell, &stopLimitBand, &stop), "89", false},
		{"take profit sell hit", mk(models.OrderTypeTakeProfit, models.OrderSideSell, &limit, nil), "101", true},
		{"take profit sell not hit", mk(models.OrderTypeTakeProfit, models.OrderSideSell, &limit, nil), "99", false},
		{"take profit buy hit", mk(models.OrderTypeTakeProfit, models.OrderSideBuy, &limit, nil), "99", true},
		{"market always", mk(models.OrderTypeMarket, models.OrderSideBuy, nil, nil), "1", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldTrigger(tc.order, dec(tc.price)))
		})
	}
}
