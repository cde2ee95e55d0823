package audit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
)

const defaultGoPlusURL = "https://api.gopluslabs.io"

type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Contract identifies a token contract on an EVM chain.
type Contract struct {
	ChainID string
	Address string
}

// ParseContracts reads "<chain_id>:<address>" values keyed by symbol.
// Malformed values are skipped.
func ParseContracts(m map[string]string) map[string]Contract {
	out := make(map[string]Contract, len(m))
	for sym, v := range m {
		chain, addr, ok := strings.Cut(strings.TrimSpace(v), ":")
		chain, addr = strings.TrimSpace(chain), strings.TrimSpace(addr)
		if !ok || chain == "" || addr == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(sym))] = Contract{ChainID: chain, Address: strings.ToLower(addr)}
	}
	return out
}

// GoPlus reads the token_security report.
type GoPlus struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Cache   cacheStore
	TTL     time.Duration
}

// Flags that mark functions only the owner can call.
var ownerOnlyFlags = []string{
	"owner_change_balance",
	"hidden_owner",
	"can_take_back_ownership",
	"transfer_pausable",
	"is_blacklisted",
	"slippage_modifiable",
	"personal_slippage_modifiable",
}

var suspiciousFlags = []struct{ flag, pattern string }{
	{"is_honeypot", PatternHoneypot},
	{"cannot_sell_all", "cannot_sell_all"},
	{"selfdestruct", "selfdestruct"},
	{"external_call", "external_call"},
	{"is_proxy", "proxy_contract"},
	{"trading_cooldown", "trading_cooldown"},
	{"is_airdrop_scam", "airdrop_scam"},
}

// TokenSecurity returns nil, nil when GoPlus has no report for the contract.
func (g GoPlus) TokenSecurity(ctx context.Context, c Contract) (*Risks, error) {
	chain := strings.TrimSpace(c.ChainID)
	addr := strings.ToLower(strings.TrimSpace(c.Address))
	if chain == "" || addr == "" {
		return nil, apperr.Validation("goplus", "chain id and contract address are required")
	}
	u, err := g.buildURL("/api/v1/token_security/"+url.PathEscape(chain), map[string]string{"contract_addresses": addr})
	if err != nil {
		return nil, apperr.Upstream("goplus", "build url", err)
	}
	key := fmt.Sprintf("int:goplus:token_security:chain_id=%s:contract_addresses=%s", chain, addr)
	b, err := g.get(ctx, key, u)
	if err != nil {
		return nil, err
	}
	return parseTokenSecurity(b, addr)
}

func parseTokenSecurity(b []byte, addr string) (*Risks, error) {
	if !gjson.ValidBytes(b) {
		return nil, apperr.InvalidResponse("goplus", "response is not json", nil)
	}
	doc := gjson.ParseBytes(b)
	if code := doc.Get("code"); code.Exists() && code.Int() != 1 {
		return nil, apperr.Upstream("goplus", fmt.Sprintf("code %d: %s", code.Int(), doc.Get("message").String()), nil)
	}

	var report gjson.Result
	doc.Get("result").ForEach(func(k, v gjson.Result) bool {
		if strings.EqualFold(k.String(), addr) {
			report = v
			return false
		}
		return true
	})
	if !report.Exists() {
		return nil, nil
	}

	r := &Risks{
		IsMintable:         flagSet(report, "is_mintable"),
		SuspiciousPatterns: []string{},
	}
	for _, f := range ownerOnlyFlags {
		if flagSet(report, f) {
			r.HasOwnerOnlyFunctions = true
			break
		}
	}
	for _, f := range suspiciousFlags {
		if flagSet(report, f.flag) {
			r.SuspiciousPatterns = append(r.SuspiciousPatterns, f.pattern)
		}
	}
	return r, nil
}

// GoPlus encodes booleans as "0"/"1" strings.
func flagSet(report gjson.Result, name string) bool {
	return report.Get(name).String() == "1"
}

func (g GoPlus) buildURL(path string, query map[string]string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	if base == "" {
		base = defaultGoPlusURL
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
	if k := strings.TrimSpace(g.APIKey); k != "" {
		q.Set("api_key", k)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (g GoPlus) get(ctx context.Context, key string, u string) ([]byte, error) {
	if g.Cache != nil && key != "" && g.TTL > 0 {
		if b, found, err := g.Cache.Get(ctx, key); err == nil && found && gjson.ValidBytes(b) {
			return b, nil
		}
	}

	client := g.HTTP
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperr.Upstream("goplus", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.Upstream("goplus", "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, apperr.Upstream("goplus", "read body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.UpstreamStatus("goplus", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(b))))
	}

	// Only successful reports are cached.
	if g.Cache != nil && key != "" && g.TTL > 0 && gjson.ValidBytes(b) && gjson.GetBytes(b, "code").Int() == 1 {
		_ = g.Cache.Set(ctx, key, b, g.TTL)
	}
	return b, nil
}
