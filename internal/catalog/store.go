package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Store struct{ DB postgres.TxBeginner }

const productColumns = `id, title, price, cost, status, pinned, note, created_at, updated_at`
const variantColumns = `id, product_id, local_id, name, price, cost, sort_order, stock`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Title, &p.Price, &p.Cost, &p.Status, &p.Pinned, &p.Note, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanVariant(row pgx.Row) (Variant, error) {
	var v Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.LocalID, &v.Name, &v.Price, &v.Cost, &v.SortOrder, &v.Stock)
	return v, err
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return GetProduct(ctx, s.DB, id)
}

// GetProduct loads a product and all of its variants with two queries.
func GetProduct(ctx context.Context, q postgres.DBTX, id int64) (*Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("product id=%d does not exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	vs, err := variantsOf(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	p.withVariants(vs[id])
	return &p, nil
}

// ListProducts returns listed products first, pinned ones ahead, newest edits first.
func (s *Store) ListProducts(ctx context.Context, onlyUp bool) ([]Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products`
	if onlyUp {
		sql += ` WHERE status = 'up'`
	}
	sql += ` ORDER BY (status = 'down'), pinned DESC, updated_at DESC, id`

	rows, err := s.DB.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	var ids []int64
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Product{}, nil
	}

	vs, err := variantsOf(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].withVariants(vs[out[i].ID])
	}
	return out, nil
}

func variantsOf(ctx context.Context, q postgres.DBTX, productIDs []int64) (map[int64][]Variant, error) {
	rows, err := q.Query(ctx, `SELECT `+variantColumns+` FROM product_variants
		WHERE product_id = ANY($1) ORDER BY product_id, sort_order, id`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]Variant, len(productIDs))
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out[v.ProductID] = append(out[v.ProductID], v)
	}
	return out, rows.Err()
}

// LockVariantByID reads a variant and holds its row lock until tx ends.
// A missing variant is (nil, nil).
func LockVariantByID(ctx context.Context, tx pgx.Tx, id int64) (*Variant, error) {
	return lockVariant(ctx, tx, `id=$1`, id)
}

// LockVariantByLocalID is LockVariantByID addressed by the per-product number.
func LockVariantByLocalID(ctx context.Context, tx pgx.Tx, productID int64, localID int) (*Variant, error) {
	return lockVariant(ctx, tx, `product_id=$1 AND local_id=$2`, productID, localID)
}

func lockVariant(ctx context.Context, tx pgx.Tx, where string, args ...any) (*Variant, error) {
	v, err := scanVariant(tx.QueryRow(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE `+where+` FOR UPDATE`, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load variant: %w", err)
	}
	return &v, nil
}

const sqlstateOutOfRange = "22003"

// AddStock applies an additive delta and returns the resulting stock.
// A delta that would drive stock negative fails on the column check.
func AddStock(ctx context.Context, tx pgx.Tx, variantID int64, delta int) (int, error) {
	var stock int
	err := tx.QueryRow(ctx, `UPDATE product_variants SET stock = stock + $2 WHERE id=$1 RETURNING stock`,
		variantID, delta).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("variant id=%d does not exist", variantID)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlstateOutOfRange {
		return 0, apperr.Validation("stock of variant id=%d would exceed the maximum", variantID)
	}
	return stock, err
}
