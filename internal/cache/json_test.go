package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cache"
)

type payload struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewJSON(client, time.Minute)
	ctx := context.Background()

	var got payload
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Set(ctx, "k", payload{ID: "a", Count: 2}))
	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, payload{ID: "a", Count: 2}, got)

	mr.FastForward(2 * time.Minute)
	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestJSONWithoutClientIsNoop(t *testing.T) {
	c := cache.NewJSON(nil, time.Minute)
	require.False(t, c.Enabled())
	require.NoError(t, c.Set(context.Background(), "k", 1))
	var v int
	found, err := c.Get(context.Background(), "k", &v)
	require.NoError(t, err)
	require.False(t, found)
}

func TestKeyOrderScopesBySession(t *testing.T) {
	a := cache.KeyOrder("alice", "9")
	b := cache.KeyOrder("bob", "9")
	require.NotEqual(t, a, b)
	require.NotContains(t, a, "alice")
	require.Empty(t, cache.KeyOrder("", "9"))
}
