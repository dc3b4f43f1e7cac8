package order

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/validation"
)

// Handler exposes order endpoints.
type Handler struct {
	Svc      *Service
	Currency string
}

type itemResponse struct {
	ID                  string `json:"id"`
	ProductID           string `json:"product_id,omitempty"`
	Title               string `json:"title,omitempty"`
	Size                string `json:"size,omitempty"`
	Quantity            int    `json:"quantity"`
	UnitPrice           string `json:"unit_price"`
	UnitDiscountedPrice string `json:"unit_discounted_price"`
}

type orderResponse struct {
	ID              string                  `json:"id"`
	Status          string                  `json:"status,omitempty"`
	OrderDate       string                  `json:"order_date,omitempty"`
	DeliveryDate    string                  `json:"delivery_date,omitempty"`
	ShippingAddress *backend.Address        `json:"shipping_address,omitempty"`
	Items           []itemResponse          `json:"items"`
	Summary         pricing.SummaryResponse `json:"summary"`
}

// List returns the caller's orders, paginated with ?page= and ?limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 10, 50)
	orders, total, err := h.Svc.History(r.Context(), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	response := make([]orderResponse, 0, len(orders))
	for _, p := range orders {
		response = append(response, h.render(p))
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": response,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: total,
		},
	})
}

// Summary returns one order with its pricing summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidInput, "order id is required", nil)
		return
	}
	p, err := h.Svc.Summary(r.Context(), session, orderID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.render(p))
}

// Create places an order shipped to the posted delivery address.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var addr backend.Address
	if err := validation.DecodeJSONBody(w, r, &addr); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.Svc.Create(r.Context(), session, addr)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, h.render(p))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	session, ok := common.Session(r.Context())
	if !ok || session == "" {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "authentication required", nil)
		return "", false
	}
	return session, true
}

func (h *Handler) render(p Priced) orderResponse {
	items := make([]itemResponse, 0, len(p.Order.OrderItems))
	for _, l := range p.Order.OrderItems {
		// Lines were already validated when the order was priced.
		item, _ := backend.LineItem(l)
		resp := itemResponse{
			ID:                  l.Key(),
			Size:                l.Size,
			Quantity:            item.Quantity,
			UnitPrice:           pricing.Format(item.UnitPrice),
			UnitDiscountedPrice: pricing.Format(item.UnitDiscountedPrice),
		}
		if l.Product != nil {
			resp.ProductID = l.Product.Key()
			resp.Title = l.Product.Title
		}
		items = append(items, resp)
	}
	return orderResponse{
		ID:              p.Order.Key(),
		Status:          p.Order.OrderStatus,
		OrderDate:       p.Order.OrderDate,
		DeliveryDate:    p.Order.DeliveryDate,
		ShippingAddress: p.Order.ShippingAddress,
		Items:           items,
		Summary:         pricing.NewSummaryResponse(p.Summary, h.Currency),
	}
}
