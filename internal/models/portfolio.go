package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Portfolio holds one user's virtual cash. ReservedCash is the slice of
// CashBalance earmarked for open buy orders; available cash is always
// CashBalance - ReservedCash. Mutated only by the trading service under a
// row lock, never deleted while the user exists.
type Portfolio struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`
	CashBalance    decimal.Decimal `gorm:"column:cash_balance;type:decimal(20,2);not null;default:0" json:"cash_balance"`
	ReservedCash   decimal.Decimal `gorm:"column:reserved_cash;type:decimal(20,2);not null;default:0" json:"reserved_cash"`
	InitialBalance decimal.Decimal `gorm:"column:initial_balance;type:decimal(20,2);not null;default:0" json:"initial_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

// AvailableCash is the spendable remainder after reservations.
func (p *Portfolio) AvailableCash() decimal.Decimal {
	return p.CashBalance.Sub(p.ReservedCash)
}

// Holding is one position: one row per (portfolio, symbol).
// ReservedQuantity is earmarked for open sell orders and never exceeds
// Quantity. The row is created on first buy fill and deleted once the
// position is fully sold.
type Holding struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	PortfolioID      uint            `gorm:"column:portfolio_id;not null;uniqueIndex:idx_portfolio_symbol,priority:1" json:"portfolio_id"`
	Symbol           string          `gorm:"column:symbol;size:10;not null;uniqueIndex:idx_portfolio_symbol,priority:2" json:"symbol"`
	Quantity         decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);not null;default:0" json:"quantity"`
	ReservedQuantity decimal.Decimal `gorm:"column:reserved_quantity;type:decimal(20,8);not null;default:0" json:"reserved_quantity"`
	AverageBuyPrice  decimal.Decimal `gorm:"column:average_buy_price;type:decimal(20,8);not null;default:0" json:"average_buy_price"`
	CurrentPrice     decimal.Decimal `gorm:"column:current_price;type:decimal(20,8);not null;default:0" json:"current_price"`
	LastPriceUpdate  *time.Time      `gorm:"column:last_price_update" json:"last_price_update"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Holding) TableName() string {
	return "holdings"
}

// AvailableQuantity is what can still be sold or reserved.
func (h *Holding) AvailableQuantity() decimal.Decimal {
	return h.Quantity.Sub(h.ReservedQuantity)
}
