package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine turns cart lines into orders.
type Engine struct {
	DB     postgres.TxBeginner
	IDs    *snowflake.Node
	Notify notify.Notifier
	Log    *zap.Logger
}

type cartLine struct {
	id        int64
	variantID *int64
	qty       int
	product   catalog.Product
	variant   *catalog.Variant // post-decrement row, set for variant lines
}

// Checkout converts the given cart lines of userID into one pending order.
// Stock is decremented with a conditional update, so a line that asks for
// more than is left fails the whole checkout with a conflict and nothing is
// written.
func (e *Engine) Checkout(ctx context.Context, userID int64, itemIDs []int64) (*Order, error) {
	ids := uniqueIDs(itemIDs)
	if len(ids) == 0 {
		return nil, apperr.Validation("no cart items selected")
	}

	var o *Order
	err := postgres.WithTx(ctx, e.DB, func(tx pgx.Tx) error {
		lines, err := loadCartLines(ctx, tx, userID, ids)
		if err != nil {
			return err
		}
		if err := checkOnSale(lines); err != nil {
			return err
		}
		if err := decrementStock(ctx, tx, lines); err != nil {
			return err
		}
		o, err = e.insertOrder(ctx, tx, userID, lines)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1) AND user_id = $2`, ids, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return tx.QueryRow(ctx, `SELECT COALESCE((SELECT email FROM users WHERE id=$1), '')`, userID).Scan(&o.Email)
	})
	if err != nil {
		return nil, err
	}

	e.Log.Info("order created", zap.String("order_no", o.OrderNo), zap.Int64("user_id", userID),
		zap.String("amount_due", o.AmountDue.StringFixed(2)))
	e.Notify.OrderEvent(ctx, notify.OrderEvent{
		Type:      notify.EventOrderCreated,
		OrderNo:   o.OrderNo,
		UserID:    o.UserID,
		Email:     o.Email,
		Status:    string(o.Status),
		AmountDue: o.AmountDue.StringFixed(2),
		At:        o.CreatedAt,
	})
	return o, nil
}

func uniqueIDs(in []int64) []int64 {
	seen := make(map[int64]bool, len(in))
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func loadCartLines(ctx context.Context, tx pgx.Tx, userID int64, ids []int64) ([]cartLine, error) {
	rows, err := tx.Query(ctx, `
		SELECT c.id, c.product_id, c.variant_id, c.qty, p.title, p.status, p.price, p.cost
		FROM cart_items c JOIN products p ON p.id = c.product_id
		WHERE c.id = ANY($1) AND c.user_id = $2
		ORDER BY c.id
		FOR UPDATE OF c`, ids, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	defer rows.Close()

	var lines []cartLine
	for rows.Next() {
		var l cartLine
		if err := rows.Scan(&l.id, &l.product.ID, &l.variantID, &l.qty,
			&l.product.Title, &l.product.Status, &l.product.Price, &l.product.Cost); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(lines) != len(ids) {
		found := make(map[int64]bool, len(lines))
		for _, l := range lines {
			found[l.id] = true
		}
		var missing []string
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, fmt.Sprint(id))
			}
		}
		return nil, apperr.NotFound("cart items not found: %s", strings.Join(missing, ", "))
	}
	return lines, nil
}

func checkOnSale(lines []cartLine) error {
	var off []string
	seen := map[int64]bool{}
	for _, l := range lines {
		if l.product.Status != catalog.StatusUp && !seen[l.product.ID] {
			seen[l.product.ID] = true
			off = append(off, l.product.Title)
		}
	}
	if len(off) > 0 {
		return apperr.Validation("no longer on sale: %s", strings.Join(off, ", "))
	}
	return nil
}

type variantDemand struct {
	productID int64
	title     string
	qty       int
}

// decrementStock takes the summed quantity per variant off its stock, in
// ascending variant id order so concurrent checkouts lock rows in the same
// order. Product-level lines carry no stock and are not touched.
func decrementStock(ctx context.Context, tx pgx.Tx, lines []cartLine) error {
	demand := map[int64]*variantDemand{}
	var vids []int64
	for _, l := range lines {
		if l.variantID == nil {
			continue
		}
		d, ok := demand[*l.variantID]
		if !ok {
			d = &variantDemand{productID: l.product.ID, title: l.product.Title}
			demand[*l.variantID] = d
			vids = append(vids, *l.variantID)
		}
		d.qty += l.qty
	}
	sort.Slice(vids, func(i, j int) bool { return vids[i] < vids[j] })

	snaps := make(map[int64]*catalog.Variant, len(vids))
	for _, vid := range vids {
		d := demand[vid]
		v := &catalog.Variant{ID: vid, ProductID: d.productID}
		err := tx.QueryRow(ctx, `
			UPDATE product_variants SET stock = stock - $3
			WHERE id = $1 AND product_id = $2 AND stock >= $3
			RETURNING local_id, name, price, cost, stock`, vid, d.productID, d.qty).
			Scan(&v.LocalID, &v.Name, &v.Price, &v.Cost, &v.Stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return shortfall(ctx, tx, vid, d)
		}
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		snaps[vid] = v
	}

	for i := range lines {
		if lines[i].variantID == nil {
			continue
		}
		lines[i].variant = snaps[*lines[i].variantID]
	}
	return nil
}

// shortfall explains why a conditional decrement matched no row.
func shortfall(ctx context.Context, tx pgx.Tx, variantID int64, d *variantDemand) error {
	var productID int64
	var name string
	var stock int
	err := tx.QueryRow(ctx, `SELECT product_id, name, stock FROM product_variants WHERE id=$1`, variantID).
		Scan(&productID, &name, &stock)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.NotFound("variant id=%d of %s no longer exists", variantID, d.title)
	case err != nil:
		return fmt.Errorf("load variant: %w", err)
	case productID != d.productID:
		return apperr.Validation("variant id=%d does not belong to %s", variantID, d.title)
	default:
		return apperr.Conflict("insufficient stock for %s (%s): %d left, %d requested", d.title, name, stock, d.qty)
	}
}

func (e *Engine) insertOrder(ctx context.Context, tx pgx.Tx, userID int64, lines []cartLine) (*Order, error) {
	o := &Order{
		OrderNo:        e.IDs.Generate().String(),
		UserID:         userID,
		Status:         StatusPending,
		AmountItems:    decimal.Zero,
		AmountShipping: decimal.Zero,
		AmountPaid:     decimal.Zero,
	}
	for _, l := range lines {
		l := l
		price, cost := catalog.EffectivePrice(&l.product, l.variant)
		it := OrderItem{
			ProductID: &l.product.ID,
			VariantID: l.variantID,
			Name:      l.product.Title,
			UnitPrice: price,
			UnitCost:  cost,
			Qty:       l.qty,
		}
		if l.variant != nil {
			name := l.variant.Name
			it.VariantName = &name
		}
		o.Items = append(o.Items, it)
		o.AmountItems = o.AmountItems.Add(it.Subtotal())
	}
	o.AmountDue = o.AmountItems.Add(o.AmountShipping)

	err := tx.QueryRow(ctx, `
		INSERT INTO orders(order_no, user_id, status, amount_items, amount_shipping, amount_due)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		o.OrderNo, o.UserID, o.Status, o.AmountItems, o.AmountShipping, o.AmountDue).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	b := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		b.Queue(`
			INSERT INTO order_items(order_id, product_id, variant_id, name, variant_name, unit_price, unit_cost, qty)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			o.ID, it.ProductID, it.VariantID, it.Name, it.VariantName, it.UnitPrice, it.UnitCost, it.Qty,
		).QueryRow(func(row pgx.Row) error { return row.Scan(&it.ID) })
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return nil, fmt.Errorf("insert order items: %w", err)
	}
	return o, nil
}
