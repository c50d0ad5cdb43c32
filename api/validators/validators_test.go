package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
)

type address struct {
	City    string `json:"city" validate:"required,max=5"`
	Country string `json:"country,omitempty" validate:"omitempty,len=2"`
}

type confirmBody struct {
	ClientSecret    string   `json:"client_secret,omitempty" validate:"required_without=PaymentIntentID"`
	PaymentIntentID string   `json:"payment_intent_id,omitempty"`
	Method          string   `json:"payment_method_id" validate:"required"`
	IDs             []string `json:"ids,omitempty" validate:"max=2"`
	Address         address  `json:"shipping_address"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	d, _ := typed.Details().(map[string]string)
	return d
}

func TestDecodeJSONBodyAcceptsValidInput(t *testing.T) {
	var dst confirmBody
	err := DecodeJSONBody(post(`{"payment_intent_id":"pi_1","payment_method_id":"pm_1","shipping_address":{"city":"Sofia"}}`), &dst)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", dst.PaymentIntentID)
}

func TestDecodeJSONBodyFieldDetails(t *testing.T) {
	var dst confirmBody
	err := DecodeJSONBody(post(`{"ids":["a","b","c"],"shipping_address":{"city":"Plovdiv","country":"BGR"}}`), &dst)
	assert.Equal(t, map[string]string{
		"client_secret":            "is required when payment_intent_id is absent",
		"payment_method_id":        "is required",
		"ids":                      "must be at most 2 items",
		"shipping_address.city":    "must be at most 5 characters",
		"shipping_address.country": "must be exactly 2 characters",
	}, details(t, err))
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"":                                   "request body is required",
		`{"payment_method_id":`:              "request body is not valid JSON",
		`{"payment_method_id":1}`:            "request body has a field of the wrong type",
		`{"unexpected":true}`:                "request body has an unknown field",
		`{"payment_method_id":"pm"} {"x":1}`: "request body must contain a single JSON object",
	}
	for body, want := range cases {
		var dst confirmBody
		err := DecodeJSONBody(post(body), &dst)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, body)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code(), body)
		assert.Equal(t, want, typed.Message(), body)
	}
}

func TestDecodeJSONBodyEnforcesSizeLimit(t *testing.T) {
	var dst confirmBody
	huge := `{"payment_method_id":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	err := DecodeJSONBody(post(huge), &dst)
	require.Error(t, err)
	assert.Contains(t, pkgerrors.As(err).Message(), "exceeds")
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x&big=500", nil)

	n, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = ParseQueryInt(req, "missing", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, err = ParseQueryInt(req, "bad", 20, 1, 100)
	assert.Equal(t, map[string]string{"bad": "must be an integer between 1 and 100"}, details(t, err))
	_, err = ParseQueryInt(req, "big", 20, 1, 100)
	assert.Error(t, err)
}
