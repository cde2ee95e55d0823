package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
	"github.com/nicekwell/easyweb3-sentiment/internal/audit"
	"github.com/nicekwell/easyweb3-sentiment/internal/auth"
	"github.com/nicekwell/easyweb3-sentiment/internal/cache"
	"github.com/nicekwell/easyweb3-sentiment/internal/meme"
	"github.com/nicekwell/easyweb3-sentiment/internal/metrics"
	"github.com/nicekwell/easyweb3-sentiment/internal/ratelimit"
	"github.com/nicekwell/easyweb3-sentiment/internal/sentiment"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	rec   *sentiment.Record
	stats *sentiment.CacheCounters
	err   error
	got   string
}

func (f *fakeService) Classify(ctx context.Context, subject string) (*sentiment.Record, error) {
	f.got = subject
	return f.rec, f.err
}

func (f *fakeService) Stats(ctx context.Context, subject string) (*sentiment.CacheCounters, error) {
	f.got = subject
	return f.stats, f.err
}

type fakeMemes struct {
	got meme.Request
	err error
}

func (f *fakeMemes) Generate(ctx context.Context, req meme.Request) (*meme.Meme, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &meme.Meme{URL: "https://img/x.jpg", Text: "gm", Sentiment: req.Label}, nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(context.Context) error { return f.err }

var testJWT = auth.JWT{Secret: []byte("test-secret"), TokenTTL: time.Hour}

func newTestEngine(svc *fakeService, memes *fakeMemes, opts ...func(*EngineOptions)) *gin.Engine {
	o := EngineOptions{
		Metrics:   metrics.NewManager(),
		JWT:       testJWT,
		Policy:    auth.Policy{AdminEmails: []string{"ops@example.com"}},
		Health:    &HealthHandler{Store: fakeHealth{}},
		Sentiment: &SentimentHandler{Service: svc},
		Admin:     &AdminHandler{Service: svc},
		Meme:      &MemeHandler{Generator: memes},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return NewEngine(o)
}

func do(t *testing.T, e *gin.Engine, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func adminToken(t *testing.T, c auth.Claims) string {
	t.Helper()
	tok, _, err := testJWT.Sign(c)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestClassifyRoute(t *testing.T) {
	price := 100.0
	svc := &fakeService{rec: &sentiment.Record{
		Subject:        "btc",
		Label:          sentiment.Positive,
		Score:          0.8,
		ChannelScores:  map[sentiment.Channel]float64{sentiment.Twitter: 0.9, sentiment.Reddit: 0.7, sentiment.Telegram: 0.8},
		ReferencePrice: &price,
	}}
	e := newTestEngine(svc, &fakeMemes{})

	w, resp := do(t, e, http.MethodPost, "/api/v1/sentiment", `{"token_symbol":"BTC"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "BTC", svc.got)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	data := resp.Data.(map[string]any)
	assert.Equal(t, "positive", data["sentiment"])
	assert.Equal(t, 0.7, data["sources"].(map[string]any)["reddit"])
	assert.Equal(t, 100.0, data["reference_price"])
}

func TestClassifyRouteErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing symbol", `{}`, nil, http.StatusBadRequest},
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"storage down", `{"token_symbol":"BTC"}`, apperr.StorageUnavailable("cache get", errors.New("dial")), http.StatusServiceUnavailable},
		{"oracle rate limited", `{"token_symbol":"BTC"}`, apperr.RateLimited("oracle", nil), http.StatusTooManyRequests},
		{"invalid response", `{"token_symbol":"BTC"}`, apperr.InvalidResponse("parse", "missing platform data: reddit", nil), http.StatusUnprocessableEntity},
		{"market status", `{"token_symbol":"BTC"}`, apperr.UpstreamStatus("coingecko", http.StatusBadGateway, nil), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(&fakeService{err: tt.err}, &fakeMemes{})
			w, resp := do(t, e, http.MethodPost, "/api/v1/sentiment", tt.body, map[string]string{requestIDHeader: "req-1"})
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.want, resp.Code)
			assert.Equal(t, "req-1", resp.Meta["request_id"])
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	e := newTestEngine(&fakeService{err: errors.New("secret dsn")}, &fakeMemes{})
	w, resp := do(t, e, http.MethodPost, "/api/v1/sentiment", `{"token_symbol":"BTC"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", resp.Message)
}

func TestCacheStatsRequiresAdmin(t *testing.T) {
	svc := &fakeService{stats: &sentiment.CacheCounters{Hits: 3, Misses: 1}}
	e := newTestEngine(svc, &fakeMemes{})

	w, _ := do(t, e, http.MethodGet, "/api/v1/admin/cache-stats?token=BTC", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, e, http.MethodGet, "/api/v1/admin/cache-stats?token=BTC", "",
		map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, e, http.MethodGet, "/api/v1/admin/cache-stats?token=BTC", "",
		map[string]string{"Authorization": adminToken(t, auth.Claims{Email: "user@example.com", Role: "viewer"})})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp := do(t, e, http.MethodGet, "/api/v1/admin/cache-stats?token=BTC", "",
		map[string]string{"Authorization": adminToken(t, auth.Claims{Email: "ops@example.com"})})
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, 3.0, data["hits"])
	assert.Equal(t, 1.0, data["misses"])
	assert.Equal(t, "btc", resp.Meta["token"])
}

func TestCacheStatsNotFound(t *testing.T) {
	e := newTestEngine(&fakeService{}, &fakeMemes{})
	hdr := map[string]string{"Authorization": adminToken(t, auth.Claims{Role: auth.RoleAdmin})}

	w, _ := do(t, e, http.MethodGet, "/api/v1/admin/cache-stats?token=NOPE", "", hdr)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, e, http.MethodGet, "/api/v1/admin/cache-stats", "", hdr)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemeRoute(t *testing.T) {
	memes := &fakeMemes{}
	e := newTestEngine(&fakeService{}, memes)

	w, resp := do(t, e, http.MethodPost, "/api/v1/meme", `{"token_symbol":"ETH","sentiment":"negative","theme":"wojak"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, meme.Request{Subject: "ETH", Label: sentiment.Negative, Theme: "wojak"}, memes.got)
	assert.Equal(t, "gm", resp.Data.(map[string]any)["text"])

	memes.err = apperr.Validation("generate meme", "sentiment must be positive, negative or neutral")
	w, _ = do(t, e, http.MethodPost, "/api/v1/meme", `{"token_symbol":"ETH","sentiment":"meh"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemeRouteClassifiesWhenSentimentMissing(t *testing.T) {
	svc := &fakeService{rec: &sentiment.Record{Subject: "sui", Label: sentiment.Positive}}
	memes := &fakeMemes{}
	e := newTestEngine(svc, memes, func(o *EngineOptions) {
		o.Meme = &MemeHandler{Generator: memes, Classifier: svc}
	})

	w, resp := do(t, e, http.MethodPost, "/api/v1/meme", `{"token_symbol":"SUI"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUI", svc.got)
	assert.Equal(t, meme.Request{Subject: "SUI", Label: sentiment.Positive}, memes.got)
	assert.Equal(t, "positive", resp.Data.(map[string]any)["sentiment"])

	svc.got = ""
	w, _ = do(t, e, http.MethodPost, "/api/v1/meme", `{"token_symbol":"SUI","sentiment":"negative"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, svc.got, "explicit sentiment skips classification")
	assert.Equal(t, sentiment.Negative, memes.got.Label)

	svc.err = apperr.RateLimited("oracle", nil)
	w, _ = do(t, e, http.MethodPost, "/api/v1/meme", `{"token_symbol":"SUI"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

type fakeAuditor struct {
	res *audit.Result
	err error
	got string
}

func (f *fakeAuditor) Audit(ctx context.Context, subject string) (*audit.Result, error) {
	f.got = subject
	return f.res, f.err
}

func TestAuditRoute(t *testing.T) {
	a := &fakeAuditor{res: &audit.Result{
		Token:    "PEPE",
		Analysis: audit.Analysis{RiskLevel: audit.RiskMedium, Findings: []string{"token supply is mintable"}},
		Risks:    audit.Risks{IsMintable: true, SuspiciousPatterns: []string{}},
	}}
	e := newTestEngine(&fakeService{}, &fakeMemes{}, func(o *EngineOptions) {
		o.Audit = &AuditHandler{Auditor: a}
	})

	w, resp := do(t, e, http.MethodPost, "/api/v1/audit", `{"token_symbol":"PEPE"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PEPE", a.got)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "MEDIUM", data["analysis"].(map[string]any)["riskLevel"])
	assert.Equal(t, true, data["risks"].(map[string]any)["isMintable"])

	w, _ = do(t, e, http.MethodPost, "/api/v1/audit", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a.err = apperr.UpstreamStatus("goplus", http.StatusBadGateway, nil)
	w, _ = do(t, e, http.MethodPost, "/api/v1/audit", `{"token_symbol":"PEPE"}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAuditRouteIsRateLimited(t *testing.T) {
	limiter := ratelimit.New(cache.NewMemoryStore(), 1, time.Minute)
	e := newTestEngine(&fakeService{}, &fakeMemes{}, func(o *EngineOptions) {
		o.Limiter = limiter
		o.Audit = &AuditHandler{Auditor: &fakeAuditor{res: &audit.Result{Token: "BTC"}}}
	})
	w, _ := do(t, e, http.MethodPost, "/api/v1/audit", `{"token_symbol":"BTC"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, e, http.MethodPost, "/api/v1/audit", `{"token_symbol":"BTC"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAdminRoutesAbsentWithoutHandler(t *testing.T) {
	e := newTestEngine(&fakeService{}, &fakeMemes{}, func(o *EngineOptions) { o.Admin = nil })
	tok := adminToken(t, auth.Claims{Role: auth.RoleAdmin})
	w, _ := do(t, e, http.MethodGet, "/api/v1/admin/cache-stats?token=BTC", "", map[string]string{"Authorization": tok})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSwaggerRoute(t *testing.T) {
	e := newTestEngine(&fakeService{}, &fakeMemes{})
	w, _ := do(t, e, http.MethodGet, "/swagger/index.html", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "not mounted by default")

	e = newTestEngine(&fakeService{}, &fakeMemes{}, func(o *EngineOptions) { o.Swagger = true })
	w, _ = do(t, e, http.MethodGet, "/swagger/index.html", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger")
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(cache.NewMemoryStore(), 2, time.Minute)
	e := newTestEngine(&fakeService{rec: &sentiment.Record{Label: sentiment.Neutral}}, &fakeMemes{},
		func(o *EngineOptions) { o.Limiter = limiter })

	hdr := map[string]string{"X-Forwarded-For": "203.0.113.7"}
	for i := 0; i < 2; i++ {
		w, _ := do(t, e, http.MethodPost, "/api/v1/sentiment", `{"token_symbol":"SUI"}`, hdr)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, resp := do(t, e, http.MethodPost, "/api/v1/sentiment", `{"token_symbol":"SUI"}`, hdr)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "too many requests", resp.Message)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	w, _ = do(t, e, http.MethodGet, "/healthz", "", hdr)
	assert.Equal(t, http.StatusOK, w.Code, "health is not rate limited")
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := ratelimit.New(brokenCounter{}, 1, time.Minute)
	e := newTestEngine(&fakeService{rec: &sentiment.Record{Label: sentiment.Neutral}}, &fakeMemes{},
		func(o *EngineOptions) { o.Limiter = limiter })
	for i := 0; i < 3; i++ {
		w, _ := do(t, e, http.MethodPost, "/api/v1/sentiment", `{"token_symbol":"SUI"}`, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestHealthRoutes(t *testing.T) {
	e := newTestEngine(&fakeService{}, &fakeMemes{})
	w, _ := do(t, e, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	e = newTestEngine(&fakeService{}, &fakeMemes{}, func(o *EngineOptions) {
		o.Health = &HealthHandler{Store: fakeHealth{err: apperr.StorageUnavailable("ping", nil)}}
	})
	w, _ = do(t, e, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "store_unreachable")
}

func TestMetricsRoute(t *testing.T) {
	e := newTestEngine(&fakeService{}, &fakeMemes{})
	_, _ = do(t, e, http.MethodGet, "/healthz", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `easyweb3_http_requests_total{method="GET",route="/healthz",status_code="200"} 1`)
}

type brokenCounter struct{}

func (brokenCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}
