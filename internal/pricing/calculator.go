package pricing

// LineItem is one purchasable line of a cart or order.
type LineItem struct {
	UnitPrice           Money
	UnitDiscountedPrice Money
	Quantity            int
}

// DeliveryPolicy decides when delivery is free and what it costs otherwise.
type DeliveryPolicy struct {
	FreeDeliveryThreshold  Money
	StandardDeliveryCharge Money
}

// DefaultDeliveryPolicy returns the storefront policy: free delivery from 499,
// otherwise a flat 49.
func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		FreeDeliveryThreshold:  FromMajor(499),
		StandardDeliveryCharge: FromMajor(49),
	}
}

// Summary aggregates the derived pricing of a set of line items.
type Summary struct {
	TotalItems           int
	TotalPrice           Money
	TotalDiscountedPrice Money
	Discount             Money
	IsFreeDelivery       bool
	DeliveryCharge       Money
	FinalAmount          Money
	AmountToFreeDelivery Money
}

// Compute derives the cart or order summary for items under policy.
//
// Compute holds no state and never modifies items, so it is safe to call from
// any number of goroutines. Values are not validated: zero or negative prices
// and quantities contribute to the sums as they are.
func Compute(items []LineItem, policy DeliveryPolicy) Summary {
	var s Summary
	for _, it := range items {
		qty := Money(it.Quantity)
		s.TotalItems += it.Quantity
		s.TotalPrice += it.UnitPrice * qty
		s.TotalDiscountedPrice += it.UnitDiscountedPrice * qty
	}

	s.Discount = max(0, s.TotalPrice-s.TotalDiscountedPrice)

	// free delivery, the charge and the remaining gap all derive from the same
	// discounted total so they can never disagree.
	s.IsFreeDelivery = s.TotalDiscountedPrice >= policy.FreeDeliveryThreshold
	if !s.IsFreeDelivery {
		s.DeliveryCharge = policy.StandardDeliveryCharge
	}
	s.FinalAmount = s.TotalDiscountedPrice + s.DeliveryCharge
	s.AmountToFreeDelivery = max(0, policy.FreeDeliveryThreshold-s.TotalDiscountedPrice)
	return s
}

// DiscountPercent returns the whole-percent markdown from price to discounted,
// rounded down. It is 0 when there is no markdown to show.
func DiscountPercent(price, discounted Money) int {
	if price <= 0 || discounted >= price {
		return 0
	}
	if discounted < 0 {
		discounted = 0
	}
	return int((price - discounted) * 100 / price)
}
