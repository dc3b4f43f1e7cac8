// Package app assembles the storefront's shared dependencies and HTTP router.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
)

// Options toggles the optional observability pieces.
type Options struct {
	Tracing     bool
	RedisMetric bool
	HTTPMetrics *obs.HTTPMetrics
}

// Dependencies enumerates the services shared across handlers.
type Dependencies struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Options  Options
	Redis    *redis.Client
	Backend  *backend.Client
	Sessions *cart.Registry
	Cart     *cart.Service
	Orders   *order.Service
	Catalog  *catalog.Service
	Auth     auth.Middleware
	Limiter  ratelimit.Limiter
}

// New wires every dependency from cfg. The returned close function releases
// the Redis connection when one was opened.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, func(), error) {
	rdb, err := newRedis(ctx, cfg, logger, opts.RedisMetric)
	if err != nil {
		return nil, func() {}, err
	}
	closeFn := func() {
		if rdb == nil {
			return
		}
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}

	client := backend.New(backend.Options{
		BaseURL:             cfg.BackendBaseURL,
		Timeout:             cfg.BackendTimeout,
		MaxAttempts:         cfg.BackendMaxAttempts,
		BreakerMinRequests:  cfg.BackendBreakerMinRequests,
		BreakerFailureRatio: cfg.BackendBreakerFailureRatio,
		BreakerOpenFor:      cfg.BackendBreakerOpenFor,
		Logger:              logger.With().Str("component", "backend").Logger(),
	})
	sessions := cart.NewRegistry(cfg.Delivery)

	var limiter ratelimit.Limiter = ratelimit.NewMemory("storefront")
	if rdb != nil {
		limiter = ratelimit.SlidingRedis{Client: rdb, Prefix: "ratelimit:"}
	}

	return &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Options:  opts,
		Redis:    rdb,
		Backend:  client,
		Sessions: sessions,
		Cart:     cart.NewService(client, sessions, logger.With().Str("component", "cart").Logger()),
		Orders: &order.Service{
			Backend: client,
			Cache:   cache.NewJSON(rdb, cfg.OrderCacheTTL),
			Policy:  cfg.Delivery,
			Logger:  logger.With().Str("component", "order").Logger(),
		},
		Catalog: &catalog.Service{
			Backend:      client,
			Cache:        cache.NewJSON(rdb, cfg.CatalogCacheTTL),
			DefaultLimit: 10,
			MaxLimit:     50,
			Logger:       logger.With().Str("component", "catalog").Logger(),
		},
		Auth:    auth.Middleware{Resolver: auth.NewResolver(cfg.JWTSecret)},
		Limiter: limiter,
	}, closeFn, nil
}

func newRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger, withMetrics bool) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set: order and catalog caches and idempotency disabled, in-memory rate limiting")
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if withMetrics {
		if err := redisotel.InstrumentMetrics(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
