package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/resilience"
)

func newClient(t *testing.T, h http.Handler) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return backend.New(backend.Options{
		BaseURL:             srv.URL + "/",
		Timeout:             time.Second,
		MaxAttempts:         2,
		BreakerMinRequests:  50,
		BreakerFailureRatio: 0.9,
		BreakerOpenFor:      time.Second,
		Logger:              zerolog.Nop(),
	})
}

func authed() context.Context {
	return common.WithSession(context.Background(), "user-1", "secret-token")
}

func TestGetCartUnwrapsEnvelopeAndForwardsToken(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/cart", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"data":{"id":7,"cartItems":[
			{"id":11,"size":"L","quantity":1,"product":{"id":"p1","title":"Men Slim Mid Rise Black Jeans","price":1799,"discountedPrice":494}},
			{"_id":"abc","quantity":null,"product":{"price":"300.50"}}
		]}}`)
	})
	client := newClient(t, r)

	cart, err := client.GetCart(authed())
	require.NoError(t, err)
	require.Equal(t, backend.ID("7"), cart.ID)
	require.Len(t, cart.CartItems, 2)
	require.Equal(t, "11", cart.CartItems[0].Key())
	require.Equal(t, "abc", cart.CartItems[1].Key())
	require.Nil(t, cart.CartItems[1].Quantity)

	items, err := backend.LineItems(cart.CartItems)
	require.NoError(t, err)
	require.Equal(t, int64(179900), items[0].UnitPrice)
	require.Equal(t, int64(49400), items[0].UnitDiscountedPrice)
	require.Equal(t, 1, items[0].Quantity)
	require.Equal(t, int64(30050), items[1].UnitPrice)
	require.Zero(t, items[1].UnitDiscountedPrice)
	require.Zero(t, items[1].Quantity)
}

func TestBareOrderHistoryPayload(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/orders/user", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"orderStatus":"PLACED","orderItems":[]},{"_id":"x2","orderStatus":"SHIPPED"}]`)
	})
	client := newClient(t, r)

	orders, err := client.OrderHistory(authed())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, "1", orders[0].Key())
	require.Equal(t, "x2", orders[1].Key())
}

func TestListProductsForwardsFilters(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/products", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "black,blue", r.URL.Query().Get("color"))
		require.Equal(t, "1", r.URL.Query().Get("pageNumber"))
		_, _ = io.WriteString(w, `{"content":[{"id":3,"title":"Shirt","price":999,"discountedPrice":499,
			"sizes":[{"name":"S","quantity":2},{"name":"M","quantity":0}]}],"number":1,"totalPages":4,"totalElements":31}`)
	})
	r.Get("/api/products/id/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "3" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"id":3,"title":"Shirt","sizes":"S,M"}`)
	})
	client := newClient(t, r)

	page, err := client.ListProducts(context.Background(), map[string][]string{"color": {"black,blue"}, "pageNumber": {"1"}})
	require.NoError(t, err)
	require.Equal(t, 1, page.Page())
	require.Equal(t, int64(31), page.TotalElements)
	require.Len(t, page.Content, 1)
	require.Equal(t, "3", page.Content[0].Key())
	require.Equal(t, backend.SizeList{{Name: "S", Quantity: 2}, {Name: "M"}}, page.Content[0].Sizes)

	product, err := client.GetProduct(context.Background(), "3")
	require.NoError(t, err)
	require.Equal(t, "Shirt", product.Title)
	require.Empty(t, product.Sizes)

	_, err = client.GetProduct(context.Background(), "9")
	require.ErrorIs(t, err, backend.ErrNotFound)
}

func TestUpdateCartItemSendsQuantity(t *testing.T) {
	r := chi.NewRouter()
	r.Put("/api/cart-items/{id}", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "42", chi.URLParam(r, "id"))
		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, 3, body["quantity"])
		w.WriteHeader(http.StatusOK)
	})
	client := newClient(t, r)
	require.NoError(t, client.UpdateCartItem(authed(), "42", 3))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status   int
		body     string
		sentinel error
		code     string
		message  string
	}{
		{http.StatusUnauthorized, `{"message":"jwt expired"}`, backend.ErrUnauthorized, common.CodeUnauthorized, "jwt expired"},
		{http.StatusNotFound, `{}`, backend.ErrNotFound, common.CodeNotFound, "not found"},
		{http.StatusBadRequest, `{"error":"size unavailable"}`, nil, common.CodeInvalidInput, "size unavailable"},
		{http.StatusInternalServerError, `boom`, backend.ErrUnavailable, common.CodeUpstreamUnavail, "commerce backend unavailable"},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			_, err := client.GetOrder(authed(), "9")
			require.Error(t, err)
			if tc.sentinel != nil {
				require.True(t, errors.Is(err, tc.sentinel))
			}
			appErr, ok := common.AsAppError(err)
			require.True(t, ok)
			require.Equal(t, tc.code, appErr.Code)
			require.Equal(t, tc.message, appErr.Message)
		})
	}
}

func TestMalformedPayload(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"cartItems":"nope"}}`)
	}))
	_, err := client.GetCart(authed())
	require.ErrorIs(t, err, backend.ErrMalformedPayload)
}

func TestLineItemRejectsNegativeValues(t *testing.T) {
	qty := -2
	_, err := backend.LineItems([]backend.Line{{ID: "1", Quantity: &qty}})
	require.ErrorIs(t, err, backend.ErrMalformedPayload)
}

func TestLineItemRejectsOversizedValues(t *testing.T) {
	qty := 1
	huge := backend.Product{Price: decimal.NewNullDecimal(decimal.RequireFromString("1e30"))}
	_, err := backend.LineItem(backend.Line{ID: "1", Quantity: &qty, Product: &huge})
	require.ErrorIs(t, err, backend.ErrMalformedPayload)
	require.ErrorIs(t, err, pricing.ErrAmountOutOfRange)

	big := backend.Product{Price: decimal.NewNullDecimal(decimal.RequireFromString("1000000001"))}
	_, err = backend.LineItem(backend.Line{ID: "2", Quantity: &qty, Product: &big})
	require.ErrorIs(t, err, backend.ErrMalformedPayload)

	many := 100001
	_, err = backend.LineItem(backend.Line{ID: "3", Quantity: &many})
	require.ErrorIs(t, err, backend.ErrMalformedPayload)
}

func TestPingFailsFastWhenBreakerOpen(t *testing.T) {
	var hits atomic.Int32
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	require.NoError(t, client.Ping(context.Background(), time.Second))
	require.EqualValues(t, 1, hits.Load())

	client.HTTP.Breaker = resilience.NewBreaker(1, 0.5, time.Minute)
	client.HTTP.Breaker.Report(context.Background(), false)
	require.ErrorIs(t, client.Ping(context.Background(), time.Second), resilience.ErrOpenCircuit)
	require.EqualValues(t, 1, hits.Load())
}

func TestAddItemIsSentOnceEvenWhenItTimesOut(t *testing.T) {
	var adds atomic.Int32
	r := chi.NewRouter()
	r.Put("/api/cart/add", func(w http.ResponseWriter, r *http.Request) {
		if adds.Add(1) == 1 {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-r.Context().Done():
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	client := backend.New(backend.Options{
		BaseURL:             srv.URL,
		Timeout:             100 * time.Millisecond,
		MaxAttempts:         3,
		BreakerMinRequests:  50,
		BreakerFailureRatio: 0.9,
		BreakerOpenFor:      time.Second,
		Logger:              zerolog.Nop(),
	})

	err := client.AddItem(authed(), backend.AddItemRequest{ProductID: "p1", Size: "M", Quantity: 1})
	require.ErrorIs(t, err, backend.ErrUnavailable)
	require.EqualValues(t, 1, adds.Load(), "a timed-out add must not be replayed")
}
