package cart_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/common"
)

func newRouter(h *cart.Handler, session string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if session != "" {
				req = req.WithContext(common.WithSession(req.Context(), session, "token"))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/cart", h.Get)
	r.Get("/cart/summary", h.Summary)
	r.Post("/cart/items", h.AddItem)
	r.Patch("/cart/items/{itemId}", h.UpdateItem)
	r.Delete("/cart/items/{itemId}", h.RemoveItem)
	return r
}

type envelope struct {
	Data  json.RawMessage   `json:"data"`
	Error *common.ErrorBody `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHandlerGetRendersCart(t *testing.T) {
	h := &cart.Handler{Svc: newService(newFakeBackend()), Currency: "INR"}
	rec := httptest.NewRecorder()
	newRouter(h, "s1").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []struct {
			ID                  string `json:"id"`
			UnitPrice           string `json:"unit_price"`
			UnitDiscountedPrice string `json:"unit_discounted_price"`
			DiscountPercent     int    `json:"discount_percent"`
		} `json:"items"`
		Summary map[string]any `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	require.Len(t, body.Items, 2)
	require.Equal(t, "1799.00", body.Items[0].UnitPrice)
	require.Equal(t, "494.00", body.Items[0].UnitDiscountedPrice)
	require.Equal(t, 72, body.Items[0].DiscountPercent)
	require.Equal(t, "INR", body.Summary["currency"])
	require.Equal(t, "794.00", body.Summary["final_amount"])
	require.Equal(t, true, body.Summary["is_free_delivery"])
}

func TestHandlerSummary(t *testing.T) {
	h := &cart.Handler{Svc: newService(newFakeBackend()), Currency: "INR"}
	rec := httptest.NewRecorder()
	newRouter(h, "s1").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &summary))
	require.Equal(t, "2199.00", summary["total_price"])
	require.Equal(t, "1405.00", summary["discount"])
	require.Equal(t, float64(63), summary["discount_percent"])
}

func TestHandlerRequiresSession(t *testing.T) {
	h := &cart.Handler{Svc: newService(newFakeBackend()), Currency: "INR"}
	rec := httptest.NewRecorder()
	newRouter(h, "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, common.CodeUnauthorized, decode(t, rec).Error.Code)
}

func TestHandlerUpdateValidatesQuantity(t *testing.T) {
	h := &cart.Handler{Svc: newService(newFakeBackend()), Currency: "INR"}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/cart/items/12", strings.NewReader(`{"quantity":0}`))
	newRouter(h, "s1").ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, common.CodeInvalidInput, decode(t, rec).Error.Code)
}

func TestHandlerUpdateAndRemove(t *testing.T) {
	fb := newFakeBackend()
	h := &cart.Handler{Svc: newService(fb), Currency: "INR"}
	router := newRouter(h, "s1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/cart/items/12", strings.NewReader(`{"quantity":3}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cart/items/11", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	view, err := h.Svc.Current(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, 3, view.Lines[0].Quantity)
}

func TestHandlerAddItemRejectsUnknownFields(t *testing.T) {
	h := &cart.Handler{Svc: newService(newFakeBackend()), Currency: "INR"}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"productId":"p9","quantity":1,"price":1}`))
	newRouter(h, "s1").ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"productId":"p9","size":"L","quantity":1}`))
	newRouter(h, "s1").ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}
