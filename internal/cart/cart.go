package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const MaxQty = 999

type Line struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	VariantID   *int64          `json:"variant_id,omitempty"`
	Title       string          `json:"title"`
	VariantName string          `json:"variant_name,omitempty"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Stock       *int            `json:"stock,omitempty"` // nil for product-level lines
	Available   bool            `json:"available"`
}

type Cart struct {
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// Manager holds per-user cart lines. Stock checks here are advisory only:
// nothing is reserved until checkout.
type Manager struct{ DB postgres.TxBeginner }

func clampQty(q int) int {
	if q < 1 {
		return 1
	}
	if q > MaxQty {
		return MaxQty
	}
	return q
}

// Add puts qty of a product (or one of its variants) into the user's cart,
// merging with an existing line for the same selection.
func (m *Manager) Add(ctx context.Context, userID, productID int64, variantID *int64, qty int) (int64, error) {
	qty = clampQty(qty)
	var lineID int64
	err := postgres.WithTx(ctx, m.DB, func(tx pgx.Tx) error {
		p, err := catalog.GetProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if p.Status != catalog.StatusUp {
			return apperr.Validation("%s is not on sale", p.Title)
		}
		v, err := selectVariant(p, variantID)
		if err != nil {
			return err
		}

		var existing int
		err = tx.QueryRow(ctx, `
			SELECT id, qty FROM cart_items
			WHERE user_id=$1 AND product_id=$2 AND variant_id IS NOT DISTINCT FROM $3
			FOR UPDATE`, userID, productID, variantID).Scan(&lineID, &existing)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("load cart line: %w", err)
		}
		total := existing + qty
		if total > MaxQty {
			total = MaxQty
		}
		if v != nil && v.Stock < total {
			return apperr.Conflict("only %d left of %s (%s)", v.Stock, p.Title, v.Name)
		}

		if existing > 0 {
			_, err = tx.Exec(ctx, `UPDATE cart_items SET qty=$2 WHERE id=$1`, lineID, total)
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO cart_items(user_id, product_id, variant_id, qty)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			userID, productID, variantID, total).Scan(&lineID)
	})
	return lineID, err
}

func selectVariant(p *catalog.Product, variantID *int64) (*catalog.Variant, error) {
	if len(p.Variants) == 0 {
		if variantID != nil {
			return nil, apperr.Validation("%s has no variants", p.Title)
		}
		return nil, nil
	}
	if variantID == nil {
		return nil, apperr.Validation("choose a variant of %s", p.Title)
	}
	v := p.VariantByID(*variantID)
	if v == nil {
		return nil, apperr.Validation("variant id=%d does not belong to %s", *variantID, p.Title)
	}
	return v, nil
}

// Update sets the quantity of a line. A quantity of zero or less removes it.
func (m *Manager) Update(ctx context.Context, userID, itemID int64, qty int) error {
	if qty <= 0 {
		return m.Remove(ctx, userID, itemID)
	}
	if qty > MaxQty {
		qty = MaxQty
	}
	tag, err := m.DB.Exec(ctx, `UPDATE cart_items SET qty=$3 WHERE id=$1 AND user_id=$2`, itemID, userID, qty)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("cart item id=%d does not exist", itemID)
	}
	return nil
}

func (m *Manager) Remove(ctx context.Context, userID, itemID int64) error {
	tag, err := m.DB.Exec(ctx, `DELETE FROM cart_items WHERE id=$1 AND user_id=$2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("cart item id=%d does not exist", itemID)
	}
	return nil
}

// List returns the user's lines priced at current catalog values.
func (m *Manager) List(ctx context.Context, userID int64) (*Cart, error) {
	rows, err := m.DB.Query(ctx, `
		SELECT c.id, c.product_id, c.variant_id, c.qty,
		       p.title, p.status, p.price,
		       v.name, v.price, v.stock
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		LEFT JOIN product_variants v ON v.id = c.variant_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	out := &Cart{Lines: []Line{}, Total: decimal.Zero}
	for rows.Next() {
		var (
			l            Line
			p            catalog.Product
			variantName  *string
			variantPrice decimal.NullDecimal
		)
		if err := rows.Scan(&l.ID, &l.ProductID, &l.VariantID, &l.Qty,
			&l.Title, &p.Status, &p.Price,
			&variantName, &variantPrice, &l.Stock); err != nil {
			return nil, err
		}
		var v *catalog.Variant
		if variantName != nil && variantPrice.Valid {
			v = &catalog.Variant{Name: *variantName, Price: variantPrice.Decimal}
			l.VariantName = v.Name
		}
		l.UnitPrice, _ = catalog.EffectivePrice(&p, v)
		l.Subtotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
		l.Available = p.Status == catalog.StatusUp && (l.Stock == nil || *l.Stock >= l.Qty)
		out.Lines = append(out.Lines, l)
		out.Total = out.Total.Add(l.Subtotal)
	}
	return out, rows.Err()
}
