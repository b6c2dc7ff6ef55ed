package replenish

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

// Command is one parsed stock-in report: "<productId>;<variantRef>;<quantity>".
// variantRef is either a global variant id or "L:<n>", the product's n-th variant.
type Command struct {
	ProductID int64
	VariantID int64 // set when ByLocalID is false
	LocalID   int   // set when ByLocalID is true
	ByLocalID bool
	Quantity  int
}

func ParseCommand(raw string) (Command, error) {
	parts := strings.Split(strings.TrimSpace(raw), ";")
	if len(parts) != 3 {
		return Command{}, apperr.Validation(
			"command must be productId;variantId;quantity or productId;L:n;quantity, got %d fields", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var c Command
	var err error
	if c.ProductID, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return Command{}, apperr.Validation("product id must be an integer")
	}
	if c.Quantity, err = int32Field(parts[2], "quantity"); err != nil {
		return Command{}, err
	}
	if c.Quantity < 0 {
		return Command{}, apperr.Validation("quantity must not be negative")
	}

	ref := parts[1]
	if len(ref) >= 2 && strings.EqualFold(ref[:2], "L:") {
		c.ByLocalID = true
		if c.LocalID, err = int32Field(strings.TrimSpace(ref[2:]), "local variant number"); err != nil {
			return Command{}, err
		}
		return c, nil
	}
	if c.VariantID, err = strconv.ParseInt(ref, 10, 64); err != nil {
		return Command{}, apperr.Validation("variant id must be an integer")
	}
	return c, nil
}

// int32Field parses a field stored in an integer column.
func int32Field(s, name string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if errors.Is(err, strconv.ErrRange) {
		return 0, apperr.Validation("%s %s is out of range", name, s)
	}
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	return int(n), nil
}
