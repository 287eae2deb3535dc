package trading

import (
	"context"
	"errors"
	"time"

	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/models"

	"github.com/rs/zerolog/log"
)

// Monitor is the single background loop that re-evaluates resting orders
// against fresh prices and expires orders past their time-in-force deadline.
// Run exactly one instance; horizontal scaling needs per-order coordination
// this loop does not provide.
type Monitor struct {
	Svc            *Service
	ScanInterval   time.Duration
	ExpiryInterval time.Duration

	lastExpiry time.Time
}

func NewMonitor(svc *Service, scanInterval, expiryInterval time.Duration) *Monitor {
	if scanInterval <= 0 {
		scanInterval = time.Second
	}
	if expiryInterval <= 0 {
		expiryInterval = 5 * time.Minute
	}
	return &Monitor{Svc: svc, ScanInterval: scanInterval, ExpiryInterval: expiryInterval}
}

// Run blocks until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	log.Info().Dur("scan_interval", m.ScanInterval).Msg("order monitor started")
	ticker := time.NewTicker(m.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("order monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one monitor pass: trigger evaluation for all active orders,
// plus an expiry sweep on the slower cadence. Exported so tests can drive
// the monitor without the timer.
func (m *Monitor) Tick(ctx context.Context) {
	if err := m.processActiveOrders(ctx); err != nil {
		log.Error().Err(err).Msg("monitor pass failed")
	}
	if time.Since(m.lastExpiry) >= m.ExpiryInterval {
		if n, err := m.Svc.ExpireDueOrders(ctx, time.Now().UTC()); err != nil {
			log.Error().Err(err).Msg("expiry sweep failed")
		} else if n > 0 {
			log.Info().Int("count", n).Msg("expired stale orders")
		}
		m.lastExpiry = time.Now()
	}
}

// processActiveOrders groups active orders by symbol so each tick fetches
// one quote per symbol, then executes every triggered order. One bad order
// never stops the rest of the batch.
func (m *Monitor) processActiveOrders(ctx context.Context) error {
	orders, err := m.Svc.ListActiveOrders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	bySymbol := map[string][]models.Order{}
	for _, o := range orders {
		bySymbol[o.Symbol] = append(bySymbol[o.Symbol], o)
	}

	for symbol, group := range bySymbol {
		price, err := m.Svc.Quotes.GetPrice(ctx, symbol, false)
		if err != nil {
			// No price, no trigger decision. The orders stay active.
			log.Debug().Str("symbol", symbol).Msg("no price for symbol, skipping")
			continue
		}
		for i := range group {
			o := group[i]
			if !ShouldTrigger(&o, price) {
				continue
			}
			if err := m.Svc.ExecuteTriggered(ctx, o.ID); err != nil {
				// Lost races (canceled meanwhile) and deferred fills are
				// normal; anything else is worth a loud log line.
				switch {
				case errors.Is(err, ErrOrderNotActive), errors.Is(err, ErrOrderNotFound):
				case errors.Is(err, ErrNoPriceAvailable):
				default:
					log.Error().Err(err).Uint("order_id", o.ID).Str("symbol", symbol).
						Msg("triggered order execution failed")
				}
			}
		}
	}
	return nil
}
