package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	maxTitleLen       = 60
	maxVariantNameLen = 100
	maxNoteLen        = 200
)

type VariantInput struct {
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
	SortOrder int             `json:"sort_order"`
	Stock     int             `json:"stock"`
}

func (in *VariantInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("variant name is required")
	}
	return checkVariant(in.Name, in.Price, in.Cost, in.Stock)
}

func checkVariant(name string, price, cost decimal.Decimal, stock int) error {
	switch {
	case len([]rune(name)) > maxVariantNameLen:
		return apperr.Validation("variant name longer than %d characters", maxVariantNameLen)
	case price.IsNegative() || cost.IsNegative():
		return apperr.Validation("variant %q: price and cost must not be negative", name)
	case stock < 0 || stock > math.MaxInt32:
		return apperr.Validation("variant %q: stock must be between 0 and %d", name, math.MaxInt32)
	}
	return nil
}

// VariantPatch carries the fields of a partial variant update. Nil fields
// keep their stored value.
type VariantPatch struct {
	Name      *string          `json:"name"`
	Price     *decimal.Decimal `json:"price"`
	Cost      *decimal.Decimal `json:"cost"`
	SortOrder *int             `json:"sort_order"`
	Stock     *int             `json:"stock"`
}

func (p *VariantPatch) normalize() error {
	if p.Name == nil && p.Price == nil && p.Cost == nil && p.SortOrder == nil && p.Stock == nil {
		return apperr.Validation("nothing to update")
	}
	name := "variant"
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		if trimmed == "" {
			return apperr.Validation("variant name must not be empty")
		}
		p.Name, name = &trimmed, trimmed
	}
	// zero stands in for absent fields, which are always valid
	var price, cost decimal.Decimal
	var stock int
	if p.Price != nil {
		price = *p.Price
	}
	if p.Cost != nil {
		cost = *p.Cost
	}
	if p.Stock != nil {
		stock = *p.Stock
	}
	return checkVariant(name, price, cost, stock)
}

type ProductInput struct {
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Status   Status          `json:"status"`
	Pinned   bool            `json:"pinned"`
	Note     string          `json:"note"`
	Variants []VariantInput  `json:"variants"`
}

// basePrices returns the product-level price and cost. With variants present
// they are the minimum variant values, otherwise the input values.
func (in *ProductInput) basePrices() (price, cost decimal.Decimal) {
	if len(in.Variants) == 0 {
		return in.Price, in.Cost
	}
	price, cost = in.Variants[0].Price, in.Variants[0].Cost
	for _, v := range in.Variants[1:] {
		price = decimal.Min(price, v.Price)
		cost = decimal.Min(cost, v.Cost)
	}
	return price, cost
}

func (in *ProductInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Note = strings.TrimSpace(in.Note)
	if in.Status == "" {
		in.Status = StatusUp
	}
	switch {
	case in.Title == "":
		return apperr.Validation("title is required")
	case len([]rune(in.Title)) > maxTitleLen:
		return apperr.Validation("title longer than %d characters", maxTitleLen)
	case len([]rune(in.Note)) > maxNoteLen:
		return apperr.Validation("note longer than %d characters", maxNoteLen)
	case !in.Status.Valid():
		return apperr.Validation("unknown status %q", in.Status)
	case in.Price.IsNegative() || in.Cost.IsNegative():
		return apperr.Validation("price and cost must not be negative")
	}
	for i := range in.Variants {
		if err := in.Variants[i].normalize(); err != nil {
			return err
		}
	}
	return nil
}

// CreateProduct inserts a product together with its initial variants, which
// receive local ids 1..n in input order.
func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	price, cost := in.basePrices()

	var id int64
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO products(title, price, cost, status, pinned, note)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			in.Title, price, cost, in.Status, in.Pinned, in.Note).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		for _, v := range in.Variants {
			if _, err := insertVariant(ctx, tx, id, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

// nextLocalID hands out the product's next variant number. The counter only
// grows, so numbers of deleted variants are never handed out again.
func nextLocalID(ctx context.Context, tx pgx.Tx, productID int64) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		UPDATE products SET next_local_id = next_local_id + 1, updated_at = now()
		WHERE id = $1 RETURNING next_local_id - 1`, productID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("product id=%d does not exist", productID)
	}
	return n, err
}

func insertVariant(ctx context.Context, tx pgx.Tx, productID int64, in VariantInput) (*Variant, error) {
	localID, err := nextLocalID(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	v, err := scanVariant(tx.QueryRow(ctx, `
		INSERT INTO product_variants(product_id, local_id, name, price, cost, sort_order, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+variantColumns,
		productID, localID, in.Name, in.Price, in.Cost, in.SortOrder, in.Stock))
	if err != nil {
		return nil, fmt.Errorf("insert variant: %w", err)
	}
	return &v, nil
}

func (s *Store) AddVariant(ctx context.Context, productID int64, in VariantInput) (*Variant, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var out *Variant
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		v, err := insertVariant(ctx, tx, productID, in)
		out = v
		return err
	})
	return out, err
}

// UpdateVariant applies the supplied fields of a variant. LocalID and
// ProductID never change.
func (s *Store) UpdateVariant(ctx context.Context, id int64, patch VariantPatch) (*Variant, error) {
	if err := patch.normalize(); err != nil {
		return nil, err
	}
	var out *Variant
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		v, err := scanVariant(tx.QueryRow(ctx, `
			UPDATE product_variants SET
				name = COALESCE($2, name),
				price = COALESCE($3, price),
				cost = COALESCE($4, cost),
				sort_order = COALESCE($5, sort_order),
				stock = COALESCE($6, stock)
			WHERE id=$1 RETURNING `+variantColumns,
			id, patch.Name, patch.Price, patch.Cost, patch.SortOrder, patch.Stock))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("variant id=%d does not exist", id)
		}
		if err != nil {
			return fmt.Errorf("update variant: %w", err)
		}
		if err := touch(ctx, tx, v.ProductID); err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

// DeleteVariant removes the variant and every cart line pointing at it.
// Order items keep their snapshot with a null variant reference.
func (s *Store) DeleteVariant(ctx context.Context, id int64) error {
	return postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		var productID int64
		err := tx.QueryRow(ctx, `DELETE FROM product_variants WHERE id=$1 RETURNING product_id`, id).Scan(&productID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("variant id=%d does not exist", id)
		}
		if err != nil {
			return fmt.Errorf("delete variant: %w", err)
		}
		return touch(ctx, tx, productID)
	})
}

func (s *Store) SetStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return apperr.Validation("unknown status %q", status)
	}
	return s.updateProduct(ctx, id, `status=$2`, status)
}

func (s *Store) SetPinned(ctx context.Context, id int64, pinned bool) error {
	return s.updateProduct(ctx, id, `pinned=$2`, pinned)
}

func (s *Store) updateProduct(ctx context.Context, id int64, set string, arg any) error {
	tag, err := s.DB.Exec(ctx, `UPDATE products SET `+set+`, updated_at=now() WHERE id=$1`, id, arg)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("product id=%d does not exist", id)
	}
	return nil
}

// DeleteProduct removes the product, its variants and cart lines. Order items
// survive with null product and variant references.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("product id=%d does not exist", id)
	}
	return nil
}

func touch(ctx context.Context, tx pgx.Tx, productID int64) error {
	_, err := tx.Exec(ctx, `UPDATE products SET updated_at=now() WHERE id=$1`, productID)
	return err
}
