package common_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/common"
)

func TestWriteErrorUsesWrappedAppError(t *testing.T) {
	inner := common.NewAppError(common.CodeNotFound, "order not found", http.StatusNotFound, errors.New("backend: not found"))
	rr := httptest.NewRecorder()
	common.WriteError(rr, fmt.Errorf("summary: %w", inner.WithDetails(map[string]string{"order_id": "9"})))

	require.Equal(t, http.StatusNotFound, rr.Code)
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, common.CodeNotFound, body.Error.Code)
	require.Equal(t, "order not found", body.Error.Message)
	require.Equal(t, map[string]any{"order_id": "9"}, body.Error.Details)
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, errors.New("dial tcp 10.0.0.3:5432: connection refused"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "10.0.0.3")
}

func TestJSONRejectsUnencodableValue(t *testing.T) {
	rr := httptest.NewRecorder()
	common.JSON(rr, http.StatusOK, map[string]any{"ch": make(chan int)})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), common.CodeInternal)
}

func TestDigestSeparatesParts(t *testing.T) {
	require.Len(t, common.Digest("x"), 64)
	require.NotEqual(t, common.Digest("ab", "c"), common.Digest("a", "bc"))
	require.Equal(t, common.Digest("a", "b"), common.Digest("a", "b"))
}

func TestClientKeyPrefersSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:4000"
	require.Equal(t, "ip:192.0.2.4", common.ClientKey(req))

	req = req.WithContext(common.WithSession(context.Background(), "user-3", "tok"))
	require.Equal(t, "session:user-3", common.ClientKey(req))
	require.Equal(t, "tok", common.BearerToken(req.Context()))
}

func TestParsePaginationAndBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?page=3&limit=500", nil)
	page, perPage := common.ParsePagination(req, 10, 50)
	require.Equal(t, 3, page)
	require.Equal(t, 50, perPage)

	page, perPage = common.ParsePagination(httptest.NewRequest(http.MethodGet, "/?page=-1&limit=x", nil), 10, 50)
	require.Equal(t, 1, page)
	require.Equal(t, 10, perPage)

	start, end := common.PageBounds(2, 10, 15)
	require.Equal(t, 10, start)
	require.Equal(t, 15, end)
	start, end = common.PageBounds(4, 10, 15)
	require.Equal(t, 15, start)
	require.Equal(t, 15, end)
}

func TestPageBoundsNeverOverflow(t *testing.T) {
	cases := []struct {
		page, perPage, total int
		start, end           int
	}{
		{math.MaxInt, 10, 25, 25, 25},
		{math.MaxInt / 10, 11, 25, 25, 25},
		{1, math.MaxInt, 25, 0, 25},
		{2, math.MaxInt, 25, 25, 25},
		{3, 10, 25, 20, 25},
		{1, 10, 0, 0, 0},
	}
	for _, tc := range cases {
		start, end := common.PageBounds(tc.page, tc.perPage, tc.total)
		require.Equal(t, tc.start, start, "page=%d perPage=%d", tc.page, tc.perPage)
		require.Equal(t, tc.end, end, "page=%d perPage=%d", tc.page, tc.perPage)
	}
}
