// Package order prices placed orders and proxies order creation to the
// commerce backend.
package order

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/validation"
)

// Backend is the subset of the commerce backend client orders need.
type Backend interface {
	GetOrder(ctx context.Context, orderID string) (backend.Order, error)
	OrderHistory(ctx context.Context) ([]backend.Order, error)
	CreateOrder(ctx context.Context, addr backend.Address) (backend.Order, error)
}

// Priced is an order together with the summary computed from its lines.
type Priced struct {
	Order   backend.Order
	Summary pricing.Summary
}

// Service prices orders, caching fetched orders per session.
type Service struct {
	Backend Backend
	Cache   *cache.JSON
	Policy  pricing.DeliveryPolicy
	Logger  zerolog.Logger
}

// Summary returns the order and its pricing summary.
func (s *Service) Summary(ctx context.Context, session, orderID string) (Priced, error) {
	ord, err := s.load(ctx, session, orderID)
	if err != nil {
		return Priced{}, err
	}
	return s.price(ctx, ord)
}

// History returns one page of the caller's orders, newest first as the
// backend lists them, with the total count.
func (s *Service) History(ctx context.Context, page, perPage int) ([]Priced, int, error) {
	orders, err := s.Backend.OrderHistory(ctx)
	if err != nil {
		return nil, 0, err
	}
	start, end := common.PageBounds(page, perPage, len(orders))
	out := make([]Priced, 0, end-start)
	for _, ord := range orders[start:end] {
		p, err := s.price(ctx, ord)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, len(orders), nil
}

// Create validates addr and places an order for the caller's current cart.
func (s *Service) Create(ctx context.Context, session string, addr backend.Address) (Priced, error) {
	if err := validation.Struct(addr); err != nil {
		return Priced{}, err
	}
	ord, err := s.Backend.CreateOrder(ctx, addr)
	if err != nil {
		return Priced{}, err
	}
	if err := s.Cache.Set(ctx, cache.KeyOrder(session, ord.Key()), ord); err != nil {
		s.loggerFor(ctx).Warn().Err(err).Str("order_id", ord.Key()).Msg("order_cache_store_failed")
	}
	s.loggerFor(ctx).Info().Str("order_id", ord.Key()).Msg("order_created")
	return s.price(ctx, ord)
}

func (s *Service) load(ctx context.Context, session, orderID string) (backend.Order, error) {
	key := cache.KeyOrder(session, orderID)
	if s.Cache.Enabled() {
		var cached backend.Order
		found, err := s.Cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			obs.IncCounter(obs.OrderCacheLookups, "error")
			s.loggerFor(ctx).Warn().Err(err).Str("order_id", orderID).Msg("order_cache_lookup_failed")
		case found:
			obs.IncCounter(obs.OrderCacheLookups, "hit")
			return cached, nil
		default:
			obs.IncCounter(obs.OrderCacheLookups, "miss")
		}
	}
	ord, err := s.Backend.GetOrder(ctx, orderID)
	if err != nil {
		return backend.Order{}, err
	}
	if err := s.Cache.Set(ctx, key, ord); err != nil {
		s.loggerFor(ctx).Warn().Err(err).Str("order_id", orderID).Msg("order_cache_store_failed")
	}
	return ord, nil
}

func (s *Service) price(ctx context.Context, ord backend.Order) (Priced, error) {
	items, err := backend.LineItems(ord.OrderItems)
	if err != nil {
		s.loggerFor(ctx).Error().Err(err).Str("order_id", ord.Key()).Msg("order_payload_rejected")
		return Priced{}, common.NewAppError(common.CodeBadUpstream, "unexpected order data from commerce backend", http.StatusBadGateway,
			fmt.Errorf("order %s: %w", ord.Key(), err))
	}
	for _, a := range pricing.Inspect(items) {
		obs.IncCounter(obs.PricingLineAnomalies, string(a.Kind))
		s.loggerFor(ctx).Warn().Str("order_id", ord.Key()).Int("line", a.Index).Str("kind", string(a.Kind)).Msg("order_line_anomaly")
	}
	obs.IncCounter(obs.PricingSummaries, "order")
	return Priced{Order: ord, Summary: pricing.Compute(items, s.Policy)}, nil
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}
