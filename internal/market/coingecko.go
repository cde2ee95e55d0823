package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Data is a market snapshot for one token, in USD.
type Data struct {
	CurrentPrice      float64 `json:"current_price"`
	Volume24h         float64 `json:"total_volume"`
	MarketCap         float64 `json:"market_cap"`
	PriceChangePct24h float64 `json:"price_change_percentage_24h"`
}

type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CoinGecko reads /simple/price. Symbols are mapped to CoinGecko ids through IDs;
// unmapped subjects are used as ids directly.
type CoinGecko struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Cache   cacheStore
	TTL     time.Duration
	IDs     map[string]string
}

type simplePrice struct {
	USD       *float64 `json:"usd"`
	MarketCap float64  `json:"usd_market_cap"`
	Volume    float64  `json:"usd_24h_vol"`
	Change    float64  `json:"usd_24h_change"`
}

// TokenData returns nil, nil when CoinGecko has no price for subject.
func (c CoinGecko) TokenData(ctx context.Context, subject string) (*Data, error) {
	id := c.coinID(subject)
	if id == "" {
		return nil, apperr.Validation("coingecko", "token id required")
	}
	u, err := c.buildURL("/simple/price", map[string]string{
		"ids":                 id,
		"vs_currencies":       "usd",
		"include_market_cap":  "true",
		"include_24hr_vol":    "true",
		"include_24hr_change": "true",
	})
	if err != nil {
		return nil, apperr.Upstream("coingecko", "build url", err)
	}
	b, err := c.get(ctx, cacheKey("coingecko", "simple_price", map[string]string{"id": id}), u)
	if err != nil {
		return nil, err
	}

	var parsed map[string]simplePrice
	if err := json.Unmarshal(b, &parsed); err != nil {
		return nil, apperr.Upstream("coingecko", "decode response", err)
	}
	p, ok := parsed[id]
	if !ok || p.USD == nil {
		return nil, nil
	}
	return &Data{
		CurrentPrice:      *p.USD,
		Volume24h:         p.Volume,
		MarketCap:         p.MarketCap,
		PriceChangePct24h: p.Change,
	}, nil
}

// Price returns the current USD price, or nil when unknown.
func (c CoinGecko) Price(ctx context.Context, subject string) (*float64, error) {
	d, err := c.TokenData(ctx, subject)
	if err != nil || d == nil {
		return nil, err
	}
	p := d.CurrentPrice
	return &p, nil
}

func (c CoinGecko) coinID(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))
	if id, ok := c.IDs[s]; ok && id != "" {
		return id
	}
	return s
}

func (c CoinGecko) buildURL(path string, query map[string]string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c CoinGecko) get(ctx context.Context, key string, u string) ([]byte, error) {
	if c.Cache != nil && key != "" && c.TTL > 0 {
		if b, found, err := c.Cache.Get(ctx, key); err == nil && found && json.Valid(b) {
			return b, nil
		}
	}

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperr.Upstream("coingecko", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if k := strings.TrimSpace(c.APIKey); k != "" {
		req.Header.Set("x-cg-demo-api-key", k)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.Upstream("coingecko", "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, apperr.Upstream("coingecko", "read body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.UpstreamStatus("coingecko", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(b))))
	}

	if c.Cache != nil && key != "" && c.TTL > 0 && json.Valid(b) {
		_ = c.Cache.Set(ctx, key, b, c.TTL)
	}
	return b, nil
}

func cacheKey(provider, method string, parts map[string]string) string {
	// Example: int:coingecko:simple_price:id=bitcoin
	sb := strings.Builder{}
	sb.WriteString("int:")
	sb.WriteString(provider)
	sb.WriteString(":")
	sb.WriteString(method)
	if len(parts) > 0 {
		keys := make([]string, 0, len(parts))
		for k := range parts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(":")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(parts[k])
		}
	}
	return sb.String()
}
