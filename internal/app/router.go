package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/quote"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/security"
)

// NewRouter builds the HTTP surface of the storefront.
func NewRouter(d *Dependencies) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Options.Tracing {
		r.Use(obs.Tracing)
	}
	if d.Options.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.Options.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production", TrustForwardedProto: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(corsOptions(cfg.CORSAllowedOrigins)))

	if d.Options.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:        health.Probes{Backend: d.Backend, Redis: d.Redis},
		BackendTimeout: 2 * time.Second,
		RedisTimeout:   300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	limited := func(scope string) func(http.Handler) http.Handler {
		return ratelimit.Handler{
			Limiter: d.Limiter,
			Config:  ratelimit.Config{Scope: scope, Key: common.ClientKey, Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
			OnError: func(err error) { d.Logger.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable") },
		}.Middleware
	}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}

	quoteHandler := &quote.Handler{Policy: cfg.Delivery, Currency: cfg.CurrencyCode}
	cartHandler := &cart.Handler{Svc: d.Cart, Currency: cfg.CurrencyCode}
	orderHandler := &order.Handler{Svc: d.Orders, Currency: cfg.CurrencyCode}
	catalogHandler := &catalog.Handler{Svc: d.Catalog}

	r.Route("/api/v1", func(v chi.Router) {
		v.With(limited("quote")).Post("/pricing/quote", quoteHandler.Quote)

		v.Route("/products", func(c chi.Router) {
			c.Use(limited("catalog"))
			c.Get("/", catalogHandler.Products)
			c.Get("/{productId}", catalogHandler.Product)
		})

		v.Group(func(p chi.Router) {
			p.Use(d.Auth.RequireAuth)

			p.Route("/cart", func(c chi.Router) {
				c.Get("/", cartHandler.Get)
				c.Get("/summary", cartHandler.Summary)
				c.With(limited("cart")).Post("/items", cartHandler.AddItem)
				c.With(limited("cart")).Patch("/items/{itemId}", cartHandler.UpdateItem)
				c.With(limited("cart")).Delete("/items/{itemId}", cartHandler.RemoveItem)
			})

			p.Route("/orders", func(o chi.Router) {
				o.Get("/", orderHandler.List)
				o.With(limited("orders"), idem.Middleware).Post("/", orderHandler.Create)
				o.Get("/{orderId}/summary", orderHandler.Summary)
			})
		})
	})

	return r
}

// corsOptions allows credentialed requests only from configured origins.
// Without a list any origin may call the API, but never with credentials.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count", "X-RateLimit-Remaining", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return opts
}
