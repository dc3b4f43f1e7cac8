package backend

import (
	"errors"
	"fmt"

	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/validation"
)

// ErrMalformedPayload reports backend data that cannot be priced.
var ErrMalformedPayload = errors.New("backend: malformed payload")

// Upper bounds keep price times quantity well inside Money for any
// realistic cart.
type lineInput struct {
	UnitPrice           int64 `json:"unitPrice" validate:"min=0,max=100000000000"`
	UnitDiscountedPrice int64 `json:"unitDiscountedPrice" validate:"min=0,max=100000000000"`
	Quantity            int   `json:"quantity" validate:"min=0,max=100000"`
}

// LineItem converts one backend line into a pricing.LineItem. Absent numeric
// fields count as zero; negative or oversized values are rejected.
func LineItem(l Line) (pricing.LineItem, error) {
	in := lineInput{}
	if l.Product != nil {
		var err error
		if l.Product.Price.Valid {
			if in.UnitPrice, err = pricing.FromDecimal(l.Product.Price.Decimal); err != nil {
				return pricing.LineItem{}, fmt.Errorf("%w: line %q: %w", ErrMalformedPayload, l.Key(), err)
			}
		}
		if l.Product.DiscountedPrice.Valid {
			if in.UnitDiscountedPrice, err = pricing.FromDecimal(l.Product.DiscountedPrice.Decimal); err != nil {
				return pricing.LineItem{}, fmt.Errorf("%w: line %q: %w", ErrMalformedPayload, l.Key(), err)
			}
		}
	}
	if l.Quantity != nil {
		in.Quantity = *l.Quantity
	}
	if err := validation.Struct(in); err != nil {
		return pricing.LineItem{}, fmt.Errorf("%w: line %q: %w", ErrMalformedPayload, l.Key(), err)
	}
	return pricing.LineItem{
		UnitPrice:           in.UnitPrice,
		UnitDiscountedPrice: in.UnitDiscountedPrice,
		Quantity:            in.Quantity,
	}, nil
}

// LineItems converts every line, failing on the first malformed one.
func LineItems(lines []Line) ([]pricing.LineItem, error) {
	out := make([]pricing.LineItem, 0, len(lines))
	for _, l := range lines {
		item, err := LineItem(l)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
