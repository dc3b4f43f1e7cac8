package cart

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Backend is the subset of the commerce backend client the cart needs.
type Backend interface {
	GetCart(ctx context.Context) (backend.Cart, error)
	AddItem(ctx context.Context, req backend.AddItemRequest) error
	UpdateCartItem(ctx context.Context, itemID string, qty int) error
	RemoveCartItem(ctx context.Context, itemID string) error
}

// Service coordinates the backend cart with the per-session optimistic state.
type Service struct {
	Backend  Backend
	Sessions *Registry
	Logger   zerolog.Logger
}

// NewService wires a cart service.
func NewService(b Backend, sessions *Registry, logger zerolog.Logger) *Service {
	return &Service{Backend: b, Sessions: sessions, Logger: logger}
}

// Refresh fetches the cart from the backend and installs it as authoritative.
// A response overtaken by a newer fetch is discarded and the current view is
// returned instead.
func (s *Service) Refresh(ctx context.Context, session string) (View, error) {
	store := s.Sessions.Get(session)
	seq := store.BeginFetch()
	lines, err := s.fetch(ctx)
	if err != nil {
		return View{}, err
	}
	if !store.Apply(seq, lines) {
		s.loggerFor(ctx).Debug().Uint64("seq", seq).Msg("cart_fetch_superseded")
	}
	return s.view(store), nil
}

// Current returns the session's cart, loading it first when necessary.
func (s *Service) Current(ctx context.Context, session string) (View, error) {
	store := s.Sessions.Get(session)
	if v := store.View(); v.Loaded {
		obs.IncCounter(obs.PricingSummaries, "cart")
		return v, nil
	}
	return s.Refresh(ctx, session)
}

// AddItem adds a product to the cart. New lines have no identifier until the
// backend assigns one, so the change is not applied optimistically.
func (s *Service) AddItem(ctx context.Context, session string, req backend.AddItemRequest) (View, error) {
	if err := s.Backend.AddItem(ctx, req); err != nil {
		obs.IncCounter(obs.CartMutations, "add", "failed")
		return View{}, err
	}
	obs.IncCounter(obs.CartMutations, "add", "committed")
	return s.Refresh(ctx, session)
}

// UpdateQuantity sets the quantity of an existing line. The new quantity is
// shown immediately and rolled back if the backend rejects it.
func (s *Service) UpdateQuantity(ctx context.Context, session, itemID string, qty int) (View, error) {
	if qty < 1 {
		return View{}, common.InvalidInput("quantity must be at least 1", map[string]string{"quantity": "must be at least 1"})
	}
	return s.mutate(ctx, session, "update", itemID, qty, false, func(ctx context.Context) error {
		return s.Backend.UpdateCartItem(ctx, itemID, qty)
	})
}

// RemoveItem deletes a line, hiding it immediately and restoring it if the
// backend rejects the removal.
func (s *Service) RemoveItem(ctx context.Context, session, itemID string) (View, error) {
	return s.mutate(ctx, session, "remove", itemID, 0, true, func(ctx context.Context) error {
		return s.Backend.RemoveCartItem(ctx, itemID)
	})
}

func (s *Service) mutate(ctx context.Context, session, op, itemID string, qty int, remove bool, call func(context.Context) error) (View, error) {
	store := s.Sessions.Get(session)
	if !store.View().Loaded {
		if _, err := s.Refresh(ctx, session); err != nil {
			return View{}, err
		}
	}
	m, err := store.Begin(itemID, qty, remove)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return View{}, common.NewAppError(common.CodeNotFound, "cart item not found", http.StatusNotFound, err)
		}
		return View{}, err
	}
	log := s.loggerFor(ctx).With().Str("op", op).Str("item_id", itemID).Str("mutation", m.Token).Logger()

	if err := call(ctx); err != nil {
		store.Rollback(m)
		obs.IncCounter(obs.CartMutations, op, "rolled_back")
		log.Warn().Err(err).Msg("cart_mutation_rolled_back")
		return View{}, err
	}

	seq := store.BeginFetch()
	lines, err := s.fetch(ctx)
	if err != nil {
		store.Confirm(m)
		obs.IncCounter(obs.CartMutations, op, "confirmed")
		log.Warn().Err(err).Msg("cart_refetch_failed_after_mutation")
		return s.view(store), nil
	}
	store.Commit(m, seq, lines)
	obs.IncCounter(obs.CartMutations, op, "committed")
	return s.view(store), nil
}

func (s *Service) fetch(ctx context.Context) ([]Line, error) {
	cart, err := s.Backend.GetCart(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := LinesFromBackend(cart)
	if err != nil {
		s.loggerFor(ctx).Error().Err(err).Msg("cart_payload_rejected")
		return nil, common.NewAppError(common.CodeBadUpstream, "unexpected cart data from commerce backend", http.StatusBadGateway, err)
	}
	s.reportAnomalies(ctx, lines)
	return lines, nil
}

func (s *Service) reportAnomalies(ctx context.Context, lines []Line) {
	items := make([]pricing.LineItem, len(lines))
	for i, l := range lines {
		items[i] = l.item()
	}
	for _, a := range pricing.Inspect(items) {
		obs.IncCounter(obs.PricingLineAnomalies, string(a.Kind))
		s.loggerFor(ctx).Warn().Str("item_id", lines[a.Index].ID).Str("kind", string(a.Kind)).Msg("cart_line_anomaly")
	}
}

func (s *Service) view(store *Store) View {
	obs.IncCounter(obs.PricingSummaries, "cart")
	return store.View()
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}

// LinesFromBackend converts a backend cart into priced storefront lines.
func LinesFromBackend(c backend.Cart) ([]Line, error) {
	lines := make([]Line, 0, len(c.CartItems))
	for _, raw := range c.CartItems {
		item, err := backend.LineItem(raw)
		if err != nil {
			return nil, err
		}
		l := Line{
			ID:             raw.Key(),
			Size:           raw.Size,
			UnitPrice:      item.UnitPrice,
			UnitDiscounted: item.UnitDiscountedPrice,
			Quantity:       item.Quantity,
		}
		if p := raw.Product; p != nil {
			l.ProductID = p.Key()
			l.Title = p.Title
			l.Brand = p.Brand
			l.ImageURL = p.ImageURL
		}
		l.DiscountPercent = pricing.DiscountPercent(l.UnitPrice, l.UnitDiscounted)
		lines = append(lines, l)
	}
	return lines, nil
}
