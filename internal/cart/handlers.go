package cart

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/validation"
)

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc      *Service
	Currency string
}

type lineResponse struct {
	ID                  string `json:"id"`
	ProductID           string `json:"product_id,omitempty"`
	Title               string `json:"title,omitempty"`
	Brand               string `json:"brand,omitempty"`
	Size                string `json:"size,omitempty"`
	ImageURL            string `json:"image_url,omitempty"`
	Quantity            int    `json:"quantity"`
	UnitPrice           string `json:"unit_price"`
	UnitDiscountedPrice string `json:"unit_discounted_price"`
	DiscountPercent     int    `json:"discount_percent"`
	Pending             bool   `json:"pending,omitempty"`
}

type cartResponse struct {
	Items   []lineResponse          `json:"items"`
	Summary pricing.SummaryResponse `json:"summary"`
	Pending bool                    `json:"pending"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=1,max=99"`
}

// Get returns the cart lines together with their pricing summary.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Refresh(r.Context(), session)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.render(view))
}

// Summary returns only the pricing summary of the effective cart.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Current(r.Context(), session)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, pricing.NewSummaryResponse(view.Summary, h.Currency))
}

// AddItem adds a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req backend.AddItemRequest
	if err := validation.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	view, err := h.Svc.AddItem(r.Context(), session, req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, h.render(view))
}

// UpdateItem changes the quantity of a cart line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req updateQuantityRequest
	if err := validation.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Svc.UpdateQuantity(r.Context(), session, chi.URLParam(r, "itemId"), req.Quantity)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.render(view))
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.RemoveItem(r.Context(), session, chi.URLParam(r, "itemId"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.render(view))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	session, ok := common.Session(r.Context())
	if !ok || session == "" {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "authentication required", nil)
		return "", false
	}
	return session, true
}

func (h *Handler) render(v View) cartResponse {
	items := make([]lineResponse, 0, len(v.Lines))
	for _, l := range v.Lines {
		items = append(items, lineResponse{
			ID:                  l.ID,
			ProductID:           l.ProductID,
			Title:               l.Title,
			Brand:               l.Brand,
			Size:                l.Size,
			ImageURL:            l.ImageURL,
			Quantity:            l.Quantity,
			UnitPrice:           pricing.Format(l.UnitPrice),
			UnitDiscountedPrice: pricing.Format(l.UnitDiscounted),
			DiscountPercent:     l.DiscountPercent,
			Pending:             l.Pending,
		})
	}
	return cartResponse{
		Items:   items,
		Summary: pricing.NewSummaryResponse(v.Summary, h.Currency),
		Pending: v.Pending,
	}
}
