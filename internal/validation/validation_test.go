package validation_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/validation"
)

type line struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

type payload struct {
	Name  string `json:"name" validate:"required"`
	Lines []line `json:"lines" validate:"required,min=1,dive"`
}

func decode(body string) (payload, error) {
	var p payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := validation.DecodeJSONBody(httptest.NewRecorder(), req, &p)
	return p, err
}

func TestDecodeJSONBodyValid(t *testing.T) {
	p, err := decode(`{"name":"cart","lines":[{"quantity":2}]}`)
	require.NoError(t, err)
	require.Equal(t, 2, p.Lines[0].Quantity)
}

func TestDecodeJSONBodyFieldErrors(t *testing.T) {
	_, err := decode(`{"lines":[{"quantity":0}]}`)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["name"])
	require.Equal(t, "must be at least 1", details["lines[0].quantity"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	_, err := decode(`{"name":"cart","lines":[{"quantity":1}],"extra":true}`)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeInvalidInput, appErr.Code)
}

type priced struct {
	Price decimal.Decimal `json:"price" validate:"min=0"`
}

func TestStructValidatesDecimalFields(t *testing.T) {
	require.NoError(t, validation.Struct(priced{Price: decimal.RequireFromString("12.50")}))

	err := validation.Struct(priced{Price: decimal.RequireFromString("-0.01")})
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, map[string]string{"price": "must be at least 0"}, appErr.Details)
}
