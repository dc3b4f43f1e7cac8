package auth_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/common"
)

func TestRequireAuthAttachesSession(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	mw := auth.Middleware{Resolver: auth.NewResolver("")}

	var gotSession, gotToken string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession, _ = common.Session(r.Context())
		gotToken = common.BearerToken(r.Context())
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer opaque")
	req = req.WithContext(logger.WithContext(req.Context()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, common.Digest("opaque"), gotSession)
	require.Equal(t, "opaque", gotToken)
	require.Contains(t, buf.String(), `"session":"`+gotSession+`"`)
}

func TestRequireAuthRejectsMissingOrInvalidToken(t *testing.T) {
	mw := auth.Middleware{Resolver: auth.NewResolver("secret")}
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
