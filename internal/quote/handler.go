// Package quote serves the stateless pricing calculator over HTTP.
package quote

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/validation"
)

// Line is one posted line. Amounts are decimal major units and may be sent
// as JSON strings or numbers. The bounds keep a full request inside Money.
type Line struct {
	UnitPrice           decimal.Decimal `json:"unit_price" validate:"min=0,max=1000000000"`
	UnitDiscountedPrice decimal.Decimal `json:"unit_discounted_price" validate:"min=0,max=1000000000"`
	Quantity            int             `json:"quantity" validate:"min=1,max=9999"`
}

// Request is the quote request body.
type Request struct {
	Lines []Line `json:"lines" validate:"max=500,dive"`
}

// Warning flags a line that was priced as posted but looks wrong.
type Warning struct {
	Line int    `json:"line"`
	Kind string `json:"kind"`
}

// Response is the quote result.
type Response struct {
	Summary  pricing.SummaryResponse `json:"summary"`
	Warnings []Warning               `json:"warnings"`
}

// Handler prices arbitrary line sets with the configured delivery policy.
type Handler struct {
	Policy   pricing.DeliveryPolicy
	Currency string
}

// Quote computes a summary for the posted lines.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := validation.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	items, err := lineItems(req.Lines)
	if err != nil {
		common.WriteError(w, common.InvalidInput("amount out of range", nil))
		return
	}
	warnings := []Warning{}
	for _, a := range pricing.Inspect(items) {
		obs.IncCounter(obs.PricingLineAnomalies, string(a.Kind))
		warnings = append(warnings, Warning{Line: a.Index, Kind: string(a.Kind)})
	}
	if len(warnings) > 0 {
		zerolog.Ctx(r.Context()).Warn().Int("count", len(warnings)).Msg("quote_line_anomalies")
	}
	summary := pricing.Compute(items, h.Policy)
	obs.IncCounter(obs.PricingSummaries, "quote")
	common.Data(w, http.StatusOK, Response{
		Summary:  pricing.NewSummaryResponse(summary, h.Currency),
		Warnings: warnings,
	})
}

func lineItems(lines []Line) ([]pricing.LineItem, error) {
	items := make([]pricing.LineItem, len(lines))
	for i, l := range lines {
		price, err := pricing.FromDecimal(l.UnitPrice)
		if err != nil {
			return nil, err
		}
		discounted, err := pricing.FromDecimal(l.UnitDiscountedPrice)
		if err != nil {
			return nil, err
		}
		items[i] = pricing.LineItem{UnitPrice: price, UnitDiscountedPrice: discounted, Quantity: l.Quantity}
	}
	return items, nil
}
