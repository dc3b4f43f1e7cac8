// Package backend is the HTTP client for the remote Commerce Backend API that
// owns carts, orders and authentication.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/resilience"
)

var (
	// ErrUnauthorized indicates the backend rejected the forwarded credentials.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrNotFound indicates the requested resource does not exist upstream.
	ErrNotFound = errors.New("backend: not found")
	// ErrUnavailable indicates the backend could not be reached or failed.
	ErrUnavailable = errors.New("backend: unavailable")
)

// maxResponseBytes bounds how much of a backend response is read.
const maxResponseBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL             string
	Timeout             time.Duration
	MaxAttempts         int
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
	Logger              zerolog.Logger
}

// Client talks to the Commerce Backend API on behalf of the caller whose
// bearer token is carried on the context.
type Client struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Logger  zerolog.Logger
}

// New builds a Client with tracing transport, retries and a circuit breaker.
func New(opts Options) *Client {
	breaker := resilience.NewBreaker(opts.BreakerMinRequests, opts.BreakerFailureRatio, opts.BreakerOpenFor).
		WithTarget("commerce-backend").
		WithLogger(opts.Logger)
	return &Client{
		BaseURL: strings.TrimRight(opts.BaseURL, "/"),
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			BaseBackoff: 100 * time.Millisecond,
			MaxAttempts: opts.MaxAttempts,
			Jitter:      0.2,
			Timeout:     opts.Timeout,
		},
		Logger: opts.Logger,
	}
}

// GetCart fetches the caller's cart.
func (c *Client) GetCart(ctx context.Context) (Cart, error) {
	var cart Cart
	err := c.do(ctx, "get_cart", http.MethodGet, "api/cart", nil, &cart)
	return cart, err
}

// AddItem adds a product to the caller's cart. The backend increments the
// line on every call, so a timed-out attempt is never repeated.
func (c *Client) AddItem(ctx context.Context, req AddItemRequest) error {
	return c.do(resilience.NoRetry(ctx), "add_item", http.MethodPut, "api/cart/add", req, nil)
}

// UpdateCartItem sets the quantity of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, itemID string, qty int) error {
	return c.do(ctx, "update_item", http.MethodPut, "api/cart-items/"+url.PathEscape(itemID), updateItemRequest{Quantity: qty}, nil)
}

// RemoveCartItem deletes a cart line.
func (c *Client) RemoveCartItem(ctx context.Context, itemID string) error {
	return c.do(ctx, "remove_item", http.MethodDelete, "api/cart-items/"+url.PathEscape(itemID), nil, nil)
}

// CreateOrder places an order for the current cart, shipped to addr.
func (c *Client) CreateOrder(ctx context.Context, addr Address) (Order, error) {
	var order Order
	err := c.do(ctx, "create_order", http.MethodPost, "api/orders", addr, &order)
	return order, err
}

// GetOrder fetches one of the caller's orders.
func (c *Client) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var order Order
	err := c.do(ctx, "get_order", http.MethodGet, "api/orders/"+url.PathEscape(orderID), nil, &order)
	return order, err
}

// OrderHistory lists the caller's orders.
func (c *Client) OrderHistory(ctx context.Context) ([]Order, error) {
	var orders []Order
	err := c.do(ctx, "order_history", http.MethodGet, "api/orders/user", nil, &orders)
	return orders, err
}

// ListProducts fetches one page of the product listing. query carries the
// backend's filter and paging parameters as is.
func (c *Client) ListProducts(ctx context.Context, query url.Values) (ProductPage, error) {
	path := "api/products"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var page ProductPage
	err := c.do(ctx, "list_products", http.MethodGet, path, nil, &page)
	return page, err
}

// GetProduct fetches one product.
func (c *Client) GetProduct(ctx context.Context, productID string) (Product, error) {
	var product Product
	err := c.do(ctx, "get_product", http.MethodGet, "api/products/id/"+url.PathEscape(productID), nil, &product)
	return product, err
}

// Ping checks the backend answers at all; any non-5xx status counts as up.
// An open breaker reports the backend down without dialing it.
func (c *Client) Ping(ctx context.Context, timeout time.Duration) error {
	if b := c.HTTP.Breaker; b != nil && b.State() == resilience.Open {
		return resilience.ErrOpenCircuit
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("backend status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, in, out)
	obs.Observe(obs.BackendLatency, obs.DurationMillis(time.Since(start)), op)
	obs.IncCounter(obs.BackendRequests, op, resultLabel(err))
	if err != nil {
		c.loggerFor(ctx).Warn().Err(err).Str("op", op).Str("method", method).Str("path", path).Msg("backend_request_failed")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/"+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := common.BearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return common.NewAppError(common.CodeUpstreamUnavail, "commerce backend unavailable", http.StatusServiceUnavailable, fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return common.NewAppError(common.CodeUpstreamUnavail, "commerce backend unavailable", http.StatusServiceUnavailable, fmt.Errorf("%w: read body: %w", ErrUnavailable, err))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		return common.NewAppError(common.CodeBadUpstream, "unexpected response from commerce backend", http.StatusBadGateway, fmt.Errorf("%w: %w", ErrMalformedPayload, err))
	}
	return nil
}

// unwrapData returns the "data" member of an enveloped response, or the
// payload itself when it is not enveloped.
func unwrapData(raw []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if trimmed := bytes.TrimSpace(envelope.Data); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			return trimmed
		}
	}
	return raw
}

func statusError(status int, raw []byte) error {
	msg := upstreamMessage(raw)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return common.NewAppError(common.CodeUnauthorized, valueOr(msg, "not authorised"), http.StatusUnauthorized, ErrUnauthorized)
	case status == http.StatusNotFound:
		return common.NewAppError(common.CodeNotFound, valueOr(msg, "not found"), http.StatusNotFound, ErrNotFound)
	case status == http.StatusConflict:
		return common.NewAppError(common.CodeConflict, valueOr(msg, "conflict"), http.StatusConflict, fmt.Errorf("backend status %d", status))
	case status < http.StatusInternalServerError:
		return common.NewAppError(common.CodeInvalidInput, valueOr(msg, "request rejected"), http.StatusBadRequest, fmt.Errorf("backend status %d", status))
	default:
		return common.NewAppError(common.CodeUpstreamUnavail, "commerce backend unavailable", http.StatusServiceUnavailable, fmt.Errorf("%w: status %d", ErrUnavailable, status))
	}
}

func upstreamMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	if s, ok := body.Error.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "rejected"
	}
}

func (c *Client) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.Logger
}
