package pricing

// SummaryResponse is the wire form of a Summary. Amounts are decimal strings
// in major units so clients never round binary floats.
type SummaryResponse struct {
	Currency             string `json:"currency"`
	TotalItems           int    `json:"total_items"`
	TotalPrice           string `json:"total_price"`
	TotalDiscountedPrice string `json:"total_discounted_price"`
	Discount             string `json:"discount"`
	DiscountPercent      int    `json:"discount_percent"`
	IsFreeDelivery       bool   `json:"is_free_delivery"`
	DeliveryCharge       string `json:"delivery_charge"`
	FinalAmount          string `json:"final_amount"`
	AmountToFreeDelivery string `json:"amount_to_free_delivery"`
}

// NewSummaryResponse renders s for API responses.
func NewSummaryResponse(s Summary, currency string) SummaryResponse {
	return SummaryResponse{
		Currency:             currency,
		TotalItems:           s.TotalItems,
		TotalPrice:           Format(s.TotalPrice),
		TotalDiscountedPrice: Format(s.TotalDiscountedPrice),
		Discount:             Format(s.Discount),
		DiscountPercent:      DiscountPercent(s.TotalPrice, s.TotalDiscountedPrice),
		IsFreeDelivery:       s.IsFreeDelivery,
		DeliveryCharge:       Format(s.DeliveryCharge),
		FinalAmount:          Format(s.FinalAmount),
		AmountToFreeDelivery: Format(s.AmountToFreeDelivery),
	}
}
