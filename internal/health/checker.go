package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// BackendPinger probes the commerce backend.
type BackendPinger interface {
	Ping(ctx context.Context, timeout time.Duration) error
}

// Probes implements Checker over the real dependencies. Redis may be nil.
type Probes struct {
	Backend BackendPinger
	Redis   *redis.Client
}

// PingBackend checks that the commerce backend answers.
func (p Probes) PingBackend(ctx context.Context, timeout time.Duration) error {
	if p.Backend == nil {
		return ErrDisabled
	}
	return p.Backend.Ping(ctx, timeout)
}

// PingRedis checks the Redis connection when one is configured.
func (p Probes) PingRedis(ctx context.Context, timeout time.Duration) error {
	if p.Redis == nil {
		return ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}
