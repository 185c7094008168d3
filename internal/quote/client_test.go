package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		ChainID:    10143,
		BuyToken:   "0xe4A4d64C4A5cbf6fbFfC0658C1e2a0b64e4fa17c",
		SellToken:  NativeToken,
		SellAmount: "1000",
	}
}

func TestClientPriceSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pricePath, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("0x-api-key"))
		assert.Equal(t, "v2", r.Header.Get("0x-version"))
		assert.Equal(t, "10143", r.URL.Query().Get("chainId"))
		assert.Equal(t, "1000", r.URL.Query().Get("sellAmount"))
		assert.Empty(t, r.URL.Query().Get("taker"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price":"0.9","estimatedGas":21000,"buyAmount":"900","sellAmount":"1000","sources":[{"name":"Uniswap","proportion":"1"}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "secret", RateLimit: 100, Burst: 1}, nil)
	price, err := c.Price(context.Background(), testParams())
	require.NoError(t, err)
	require.Equal(t, "0.9", price.Price)
	require.Equal(t, "900", price.BuyAmount)
	require.Equal(t, "21000", price.EstimatedGas.String())
	require.Len(t, price.Sources, 1)
}

func TestClientQuoteRequiresTaker(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.Quote(context.Background(), testParams())
	require.True(t, errors.Is(err, ErrTakerRequired))

	_, err = c.Price(context.Background(), Params{ChainID: 1})
	require.True(t, errors.Is(err, ErrMissingParams))
}

func TestClientQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, quotePath, r.URL.Path)
		assert.Equal(t, "0x2222222222222222222222222222222222222222", r.URL.Query().Get("taker"))
		_, _ = w.Write([]byte(`{"price":"0.9","buyAmount":"900","sellAmount":"1000","to":"0xdef1","data":"0xabcdef","value":"1000","gasPrice":"7"}`))
	}))
	defer srv.Close()

	p := testParams()
	p.Taker = "0x2222222222222222222222222222222222222222"
	q, err := NewClient(ClientConfig{BaseURL: srv.URL}, nil).Quote(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, "0xdef1", q.To)
	require.Equal(t, "0xabcdef", q.Data)
	require.Equal(t, "1000", q.Value)
	require.Equal(t, "900", q.BuyAmount)
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"INSUFFICIENT_LIQUIDITY"}`))
	}))
	defer srv.Close()

	_, err := NewClient(ClientConfig{BaseURL: srv.URL}, nil).Price(context.Background(), testParams())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "INSUFFICIENT_LIQUIDITY", apiErr.Message)
}

func TestClientAPIErrorPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("no key"))
	}))
	defer srv.Close()

	_, err := NewClient(ClientConfig{BaseURL: srv.URL}, nil).Price(context.Background(), testParams())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "Unauthorized", apiErr.Message)
	require.Equal(t, "no key", apiErr.Body)
}
