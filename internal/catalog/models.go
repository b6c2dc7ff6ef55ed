package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

func (s Status) Valid() bool { return s == StatusUp || s == StatusDown }

type Product struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
	Status    Status          `json:"status"`
	Pinned    bool            `json:"pinned"`
	Note      string          `json:"note"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	FromPrice decimal.Decimal `json:"from_price"`
	Variants  []Variant       `json:"variants"`
}

// Variant is a sellable option of a product. LocalID is assigned once, in
// creation order starting at 1, and is the reference external devices use.
type Variant struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	LocalID   int             `json:"local_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
	SortOrder int             `json:"sort_order"`
	Stock     int             `json:"stock"`
}

func (p *Product) VariantByID(id int64) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// MinDisplayPrice is the lowest price a customer can pay for this product.
func (p *Product) MinDisplayPrice() decimal.Decimal {
	if len(p.Variants) == 0 {
		return p.Price
	}
	min := p.Variants[0].Price
	for _, v := range p.Variants[1:] {
		if v.Price.LessThan(min) {
			min = v.Price
		}
	}
	return min
}

// withVariants attaches vs and derives the display price from them.
func (p *Product) withVariants(vs []Variant) {
	p.Variants = vs
	if p.Variants == nil {
		p.Variants = []Variant{}
	}
	p.FromPrice = p.MinDisplayPrice()
}

// EffectivePrice returns the unit price and cost for a line: the variant's
// values when one is selected, otherwise the product's base values.
func EffectivePrice(p *Product, v *Variant) (price, cost decimal.Decimal) {
	if v != nil {
		return v.Price, v.Cost
	}
	return p.Price, p.Cost
}
