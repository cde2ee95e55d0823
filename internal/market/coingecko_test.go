package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
	"github.com/nicekwell/easyweb3-sentiment/internal/cache"
)

func newCoinGeckoServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/api/v3/simple/price" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("vs_currencies") != "usd" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestTokenData(t *testing.T) {
	srv, _ := newCoinGeckoServer(t, http.StatusOK,
		`{"bitcoin":{"usd":64000.5,"usd_market_cap":1.2e12,"usd_24h_vol":3.1e10,"usd_24h_change":-1.5}}`)
	c := CoinGecko{BaseURL: srv.URL + "/api/v3", IDs: map[string]string{"btc": "bitcoin"}}

	d, err := c.TokenData(context.Background(), "BTC")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 64000.5, d.CurrentPrice)
	assert.Equal(t, 1.2e12, d.MarketCap)
	assert.Equal(t, 3.1e10, d.Volume24h)
	assert.Equal(t, -1.5, d.PriceChangePct24h)

	p, err := c.Price(context.Background(), "btc")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 64000.5, *p)
}

func TestTokenDataAbsent(t *testing.T) {
	srv, _ := newCoinGeckoServer(t, http.StatusOK, `{}`)
	c := CoinGecko{BaseURL: srv.URL + "/api/v3"}

	d, err := c.TokenData(context.Background(), "unknowncoin")
	require.NoError(t, err)
	assert.Nil(t, d)

	p, err := c.Price(context.Background(), "unknowncoin")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestTokenDataHTTPErrorCarriesStatus(t *testing.T) {
	srv, _ := newCoinGeckoServer(t, http.StatusTooManyRequests, `{"status":{"error_code":429}}`)
	c := CoinGecko{BaseURL: srv.URL + "/api/v3"}

	_, err := c.TokenData(context.Background(), "bitcoin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUpstream))
	assert.Equal(t, http.StatusTooManyRequests, apperr.StatusOf(err))
}

func TestTokenDataUsesResponseCache(t *testing.T) {
	srv, hits := newCoinGeckoServer(t, http.StatusOK, `{"sui":{"usd":1.25}}`)
	c := CoinGecko{BaseURL: srv.URL + "/api/v3", Cache: cache.NewMemoryStore(), TTL: time.Minute}

	for i := 0; i < 3; i++ {
		d, err := c.TokenData(context.Background(), "SUI")
		require.NoError(t, err)
		assert.Equal(t, 1.25, d.CurrentPrice)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestCacheKeyIsDeterministic(t *testing.T) {
	k := cacheKey("coingecko", "simple_price", map[string]string{"id": "bitcoin", "b": "2"})
	assert.Equal(t, "int:coingecko:simple_price:b=2:id=bitcoin", k)
}
