package pricing

// AnomalyKind classifies suspicious line item data.
type AnomalyKind string

const (
	// AnomalyInvertedDiscount marks a discounted unit price above the unit price.
	AnomalyInvertedDiscount AnomalyKind = "inverted_discount"
	// AnomalyNegativePrice marks a negative unit or discounted unit price.
	AnomalyNegativePrice AnomalyKind = "negative_price"
	// AnomalyNonPositiveQuantity marks a zero or negative quantity.
	AnomalyNonPositiveQuantity AnomalyKind = "non_positive_quantity"
)

// Anomaly points at a line whose values Compute will accept but which likely
// indicate inconsistent upstream data.
type Anomaly struct {
	Index int
	Kind  AnomalyKind
}

// Inspect reports anomalies in items without altering them. Callers decide
// whether to log, count or reject; Compute itself never does.
func Inspect(items []LineItem) []Anomaly {
	var out []Anomaly
	for i, it := range items {
		if it.UnitPrice < 0 || it.UnitDiscountedPrice < 0 {
			out = append(out, Anomaly{Index: i, Kind: AnomalyNegativePrice})
		}
		if it.UnitDiscountedPrice > it.UnitPrice {
			out = append(out, Anomaly{Index: i, Kind: AnomalyInvertedDiscount})
		}
		if it.Quantity <= 0 {
			out = append(out, Anomaly{Index: i, Kind: AnomalyNonPositiveQuantity})
		}
	}
	return out
}
