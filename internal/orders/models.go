package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID             int64           `json:"id"`
	OrderNo        string          `json:"order_no"`
	UserID         int64           `json:"user_id"`
	Email          string          `json:"email,omitempty"`
	Status         Status          `json:"status"` // see status.go
	IsPaid         bool            `json:"is_paid"`
	AmountItems    decimal.Decimal `json:"amount_items"`
	AmountShipping decimal.Decimal `json:"amount_shipping"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	CreatedAt      time.Time       `json:"created_at"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CanceledAt     *time.Time      `json:"canceled_at,omitempty"`
	CancelReason   *string         `json:"cancel_reason,omitempty"`
	TrackingNumber *string         `json:"tracking_number,omitempty"`
	ShippedAt      *time.Time      `json:"shipped_at,omitempty"`
	Items          []OrderItem     `json:"items"`
}

// OrderItem is frozen at checkout. ProductID and VariantID become nil when
// the catalog entry is deleted; the snapshot fields stay authoritative.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   *int64          `json:"product_id,omitempty"`
	VariantID   *int64          `json:"variant_id,omitempty"`
	Name        string          `json:"name"`
	VariantName *string         `json:"variant_name,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Qty         int             `json:"qty"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Qty)))
}

func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Qty
	}
	return n
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
