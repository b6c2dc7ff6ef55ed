package notify

import (
	"encoding/json"
	"time"
)

const (
	TopicOrderEvents = "order.events"
	TopicStockEvents = "stock.events"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventOrderPaid        = "OrderPaid"
	EventOrderUnpaid      = "OrderUnpaid"
	EventOrderCanceled    = "OrderCanceled"
	EventOrderShipped     = "OrderShipped"
	EventStockReplenished = "StockReplenished"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_no or variant id
	Payload       json.RawMessage `json:"payload"`
}

// OrderEvent describes a committed order transition.
type OrderEvent struct {
	Type           string    `json:"-"`
	OrderNo        string    `json:"order_no"`
	UserID         int64     `json:"user_id"`
	Email          string    `json:"email,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	AmountDue      string    `json:"amount_due"`
	AmountPaid     string    `json:"amount_paid,omitempty"`
	CancelReason   string    `json:"cancel_reason,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	At             time.Time `json:"at"`
}

// StockEvent describes a committed stock-in.
type StockEvent struct {
	ProductID      int64     `json:"product_id"`
	VariantID      int64     `json:"variant_id"`
	VariantLocalID int       `json:"variant_local_id"`
	Quantity       int       `json:"quantity"`
	StockAfter     int       `json:"stock_after"`
	At             time.Time `json:"at"`
}
