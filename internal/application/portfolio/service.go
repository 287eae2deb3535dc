// Package portfolio provides the read-only portfolio and trade-history
// views. All mutation goes through the trading service.
package portfolio

import (
	"context"
	"errors"

	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrPortfolioNotFound = errors.New("portfolio not found")

type Service struct {
	DB *gorm.DB
}

// Summary is the portfolio view: cash, reservations and open positions.
type Summary struct {
	PortfolioID    uint             `json:"portfolio_id"`
	UserID         uuid.UUID        `json:"user_id"`
	CashBalance    decimal.Decimal  `json:"cash_balance"`
	ReservedCash   decimal.Decimal  `json:"reserved_cash"`
	AvailableCash  decimal.Decimal  `json:"available_cash"`
	InitialBalance decimal.Decimal  `json:"initial_balance"`
	Holdings       []models.Holding `json:"holdings"`
}

func (s *Service) GetSummary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	var p models.Portfolio
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPortfolioNotFound
	}
	if err != nil {
		return nil, err
	}

	var holdings []models.Holding
	if err := s.DB.WithContext(ctx).
		Where("portfolio_id = ?", p.ID).
		Order("symbol ASC").
		Find(&holdings).Error; err != nil {
		return nil, err
	}

	return &Summary{
		PortfolioID:    p.ID,
		UserID:         p.UserID,
		CashBalance:    p.CashBalance,
		ReservedCash:   p.ReservedCash,
		AvailableCash:  p.AvailableCash(),
		InitialBalance: p.InitialBalance,
		Holdings:       holdings,
	}, nil
}

// ListTransactions returns the user's fill history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txs []models.Transaction
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("executed_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&txs).Error
	return txs, err
}
