package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// Transaction is one executed fill. Rows are append-only: once written they
// are never updated, making them the audit trail independent of the Order's
// mutable summary fields. Before/after balances are captured at execution
// time under the same lock that applied them.
type Transaction struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_user_executed,priority:1" json:"user_id"`
	OrderID *uint     `gorm:"column:order_id;index" json:"order_id"`
	Symbol  string    `gorm:"column:symbol;size:10;not null" json:"symbol"`

	TransactionType TransactionType `gorm:"column:transaction_type;size:4;not null" json:"transaction_type"`
	Quantity        decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);not null" json:"quantity"`
	Price           decimal.Decimal `gorm:"column:price;type:decimal(20,8);not null" json:"price"`

	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:decimal(20,2);not null" json:"total_amount"`
	Fee         decimal.Decimal `gorm:"column:fee;type:decimal(20,8);not null;default:0" json:"fee"`
	NetAmount   decimal.Decimal `gorm:"column:net_amount;type:decimal(20,2);not null" json:"net_amount"`

	CashBefore   decimal.Decimal `gorm:"column:cash_before;type:decimal(20,2);not null" json:"cash_before"`
	CashAfter    decimal.Decimal `gorm:"column:cash_after;type:decimal(20,2);not null" json:"cash_after"`
	SharesBefore decimal.Decimal `gorm:"column:shares_before;type:decimal(20,8);not null;default:0" json:"shares_before"`
	SharesAfter  decimal.Decimal `gorm:"column:shares_after;type:decimal(20,8);not null" json:"shares_after"`

	ExecutionVenue string `gorm:"column:execution_venue;size:50;default:SIMULATED" json:"execution_venue"`

	ExecutedAt time.Time `gorm:"column:executed_at;not null;index:idx_user_executed,priority:2" json:"executed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Transaction) TableName() string {
	return "stock_transactions"
}

// CashChange is the signed cash delta this fill produced.
func (t *Transaction) CashChange() decimal.Decimal {
	return t.CashAfter.Sub(t.CashBefore)
}
