package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/health"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context, time.Duration) error { return s.err }

func ready(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	return rr.Code, status
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	code, status := ready(t, health.Handler{Checker: health.Probes{Backend: stubPinger{}, Redis: client}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]string{"backend": "ok", "redis": "ok"}, status)
}

func TestReadyWithoutRedis(t *testing.T) {
	code, status := ready(t, health.Handler{Checker: health.Probes{Backend: stubPinger{}}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "disabled", status["redis"])
}

func TestReadyBackendDown(t *testing.T) {
	code, status := ready(t, health.Handler{
		Checker:        health.Probes{Backend: stubPinger{err: errors.New("backend status 503")}},
		BackendTimeout: 10 * time.Millisecond,
	})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "backend status 503", status["backend"])
}
