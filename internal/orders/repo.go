package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.TxBeginner }

const orderColumns = `o.id, o.order_no, o.user_id, COALESCE(u.email, ''), o.status, o.is_paid,
	o.amount_items, o.amount_shipping, o.amount_due, o.amount_paid, o.created_at,
	o.paid_at, o.completed_at, o.canceled_at, o.cancel_reason, o.tracking_number, o.shipped_at`

const orderFrom = ` FROM orders o LEFT JOIN users u ON u.id = o.user_id`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNo, &o.UserID, &o.Email, &o.Status, &o.IsPaid,
		&o.AmountItems, &o.AmountShipping, &o.AmountDue, &o.AmountPaid, &o.CreatedAt,
		&o.PaidAt, &o.CompletedAt, &o.CanceledAt, &o.CancelReason, &o.TrackingNumber, &o.ShippedAt)
	if err == nil && !o.Status.Valid() {
		err = fmt.Errorf("order %s has unknown status %q", o.OrderNo, o.Status)
	}
	return o, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Get returns the order with its items. Customers only see their own orders;
// anything else is reported as missing.
func (r *Repo) Get(ctx context.Context, p auth.Principal, orderNo string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+orderFrom+` WHERE o.order_no=$1`, orderNo))
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && p.IsCustomer() && o.UserID != p.ID) {
		return nil, apperr.NotFound("order %s does not exist", orderNo)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if err := attachItems(ctx, r.DB, []*Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns a customer's orders, newest first, with items.
func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+orderFrom+`
		WHERE o.user_id=$1 ORDER BY o.created_at DESC, o.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}
	return out, attachItems(ctx, r.DB, ptrs(out))
}

type Expirable struct {
	ID        int64
	OrderNo   string
	CreatedAt time.Time
}

// ListExpirable returns unpaid pending orders created before cutoff, oldest first.
func (r *Repo) ListExpirable(ctx context.Context, cutoff time.Time) ([]Expirable, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_no, created_at FROM orders
		WHERE status = 'pending' AND NOT is_paid AND created_at < $1
		ORDER BY created_at, id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expirable orders: %w", err)
	}
	defer rows.Close()

	var out []Expirable
	for rows.Next() {
		var e Expirable
		if err := rows.Scan(&e.ID, &e.OrderNo, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func ptrs(list []Order) []*Order {
	out := make([]*Order, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out
}

// attachItems loads the items of every given order with a single query.
func attachItems(ctx context.Context, q postgres.DBTX, list []*Order) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[int64]*Order, len(list))
	ids := make([]int64, 0, len(list))
	for _, o := range list {
		o.Items = []OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, name, variant_name, unit_price, unit_cost, qty
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Name,
			&it.VariantName, &it.UnitPrice, &it.UnitCost, &it.Qty); err != nil {
			return err
		}
		if o := byID[it.OrderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}
