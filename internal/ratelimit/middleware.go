// Package ratelimit throttles mutating storefront routes per caller.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

// Limiter decides whether one more event for key fits within max per window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Config describes one budget. Scope separates budgets of different route
// groups sharing a limiter; Key identifies the caller within a scope.
type Config struct {
	Scope  string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

func (c Config) key(r *http.Request) string {
	if c.Scope == "" {
		return c.Key(r)
	}
	return c.Scope + "|" + c.Key(r)
}

// Handler enforces a Config in front of the next handler.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware implements chi middleware. A failing limiter lets the request
// through; the storefront prefers serving carts over strict throttling.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil {
		return next
	}
	scope := h.Config.Scope
	if scope == "" {
		scope = "default"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			obs.IncCounter(obs.RateLimitDecisions, scope, "error")
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if allowed {
			obs.IncCounter(obs.RateLimitDecisions, scope, "allowed")
			next.ServeHTTP(w, r)
			return
		}

		obs.IncCounter(obs.RateLimitDecisions, scope, "limited")
		headers.Set("Retry-After", strconv.Itoa(retryAfter(resetAt)))
		common.WriteError(w, common.NewAppError(common.CodeRateLimited, "too many requests, slow down", http.StatusTooManyRequests, nil))
	})
}

// retryAfter rounds the wait up to whole seconds so clients never retry early.
func retryAfter(resetAt time.Time) int {
	wait := time.Until(resetAt).Seconds()
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait))
}
