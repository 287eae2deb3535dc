package models

import (
	"time"

	"gorm.io/datatypes"
)

type OrderEventType string

const (
	OrderEventCreated  OrderEventType = "CREATED"
	OrderEventFilled   OrderEventType = "FILLED"
	OrderEventCanceled OrderEventType = "CANCELED"
	OrderEventExpired  OrderEventType = "EXPIRED"
	OrderEventRejected OrderEventType = "REJECTED"
)

// OrderEvent records one lifecycle transition of an order, append-only.
// EventData carries the transition detail (price, fee, reason) as JSON.
type OrderEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OrderID   uint           `gorm:"column:order_id;not null;index" json:"order_id"`
	EventType OrderEventType `gorm:"column:event_type;size:20;not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;type:json" json:"event_data"`
	CreatedAt time.Time      `json:"created_at"`
}

func (OrderEvent) TableName() string {
	return "order_events"
}
