package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStop       OrderType = "STOP"
	OrderTypeStopLimit  OrderType = "STOP_LIMIT"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForceDay TimeInForce = "DAY"
)

// Order is the unit of trading intent. Only the trading service mutates it:
// the reservation step sets ReservedAmount, fills/cancellation/expiry move it
// through the status machine. Rows are never physically deleted.
type Order struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_user_status_created,priority:1" json:"user_id"`
	Symbol string    `gorm:"column:symbol;size:10;not null;index:idx_symbol_status,priority:1" json:"symbol"`

	OrderType OrderType   `gorm:"column:order_type;size:20;not null" json:"order_type"`
	Side      OrderSide   `gorm:"column:side;size:4;not null" json:"side"`
	Status    OrderStatus `gorm:"column:status;size:20;not null;default:PENDING;index:idx_user_status_created,priority:2;index:idx_symbol_status,priority:2;index:idx_status_created,priority:1" json:"status"`

	Quantity       decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);not null" json:"quantity"`
	FilledQuantity decimal.Decimal `gorm:"column:filled_quantity;type:decimal(20,8);not null;default:0" json:"filled_quantity"`

	// Price is the limit price (LIMIT/STOP_LIMIT/TAKE_PROFIT), StopPrice the
	// stop trigger (STOP/STOP_LIMIT).
	Price            *decimal.Decimal `gorm:"column:price;type:decimal(20,8)" json:"price"`
	StopPrice        *decimal.Decimal `gorm:"column:stop_price;type:decimal(20,8)" json:"stop_price"`
	AverageFillPrice *decimal.Decimal `gorm:"column:average_fill_price;type:decimal(20,8)" json:"average_fill_price"`

	TimeInForce TimeInForce `gorm:"column:time_in_force;size:4;not null;default:GTC" json:"time_in_force"`

	// ReservedAmount is cash ring-fenced for a BUY, ReservedQuantity shares
	// ring-fenced for a SELL. Zeroed when the reservation is released.
	ReservedAmount   decimal.Decimal  `gorm:"column:reserved_amount;type:decimal(20,2);not null;default:0" json:"reserved_amount"`
	ReservedQuantity decimal.Decimal  `gorm:"column:reserved_quantity;type:decimal(20,8);not null;default:0" json:"reserved_quantity"`
	EstimatedCost    *decimal.Decimal `gorm:"column:estimated_cost;type:decimal(20,2)" json:"estimated_cost"`
	TotalFees        decimal.Decimal  `gorm:"column:total_fees;type:decimal(20,8);not null;default:0" json:"total_fees"`

	IdempotencyKey *string `gorm:"column:idempotency_key;size:100;uniqueIndex" json:"idempotency_key,omitempty"`
	RelatedOrderID *uint   `gorm:"column:related_order_id" json:"related_order_id,omitempty"`
	ParentOrderID  *uint   `gorm:"column:parent_order_id" json:"parent_order_id,omitempty"`

	RejectionReason *string `gorm:"column:rejection_reason;size:500" json:"rejection_reason,omitempty"`

	CreatedAt  time.Time  `gorm:"index:idx_user_status_created,priority:3;index:idx_status_created,priority:2" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExecutedAt *time.Time `gorm:"column:executed_at" json:"executed_at,omitempty"`
	CanceledAt *time.Time `gorm:"column:canceled_at" json:"canceled_at,omitempty"`
	ExpiresAt  *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// IsActive reports whether the order can still fill or be canceled.
func (o *Order) IsActive() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPartiallyFilled
}

// RemainingQuantity is the unfilled part of the order.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsConditional reports whether the order rests until a price trigger.
func (o *Order) IsConditional() bool {
	return o.OrderType != OrderTypeMarket
}
