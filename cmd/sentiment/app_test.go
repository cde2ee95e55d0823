package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nicekwell/easyweb3-sentiment/internal/auth"
	"github.com/nicekwell/easyweb3-sentiment/internal/cache"
	"github.com/nicekwell/easyweb3-sentiment/internal/config"
	"github.com/nicekwell/easyweb3-sentiment/internal/oracle"
	"github.com/nicekwell/easyweb3-sentiment/internal/sentiment"
	"github.com/nicekwell/easyweb3-sentiment/internal/social"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	c, err := config.Load("", true)
	require.NoError(t, err)
	return c
}

func TestNewBackendFallsBackToMemory(t *testing.T) {
	c := testConfig(t)

	c.Cache.Backend = "redis"
	c.Redis.Addr = ""
	_, ok := newBackend(c, zap.NewNop()).(*cache.MemoryStore)
	assert.True(t, ok)

	c.Cache.Backend = "memcached"
	_, ok = newBackend(c, zap.NewNop()).(*cache.MemoryStore)
	assert.True(t, ok)

	mr := miniredis.RunT(t)
	c.Cache.Backend = "redis"
	c.Redis.Addr = mr.Addr()
	b := newBackend(c, zap.NewNop())
	rs, ok := b.(*cache.RedisStore)
	require.True(t, ok)
	t.Cleanup(func() { _ = rs.Close() })
	require.NoError(t, b.Ping(context.Background()))
}

func TestNewSocialSelection(t *testing.T) {
	_, ok := newSocial(config.SocialConfig{Provider: "stub"}, zap.NewNop()).(social.Stub)
	assert.True(t, ok)
	_, ok = newSocial(config.SocialConfig{Provider: "http"}, zap.NewNop()).(social.Stub)
	assert.True(t, ok, "http without base url")
	_, ok = newSocial(config.SocialConfig{Provider: "http", BaseURL: "http://social.local"}, zap.NewNop()).(social.HTTPProvider)
	assert.True(t, ok)
}

func TestNewOracleSelection(t *testing.T) {
	_, ok := newOracle(config.OracleConfig{Provider: "anthropic", APIKey: "k"}, zap.NewNop()).(*oracle.Anthropic)
	assert.True(t, ok)
	_, ok = newOracle(config.OracleConfig{Provider: "openai", APIKey: "k"}, zap.NewNop()).(*oracle.OpenAI)
	assert.True(t, ok)
}

func TestNewAppWiresDefaults(t *testing.T) {
	c := testConfig(t)
	c.RateLimit.Enabled = true
	c.Metrics.Enabled = true
	a := newApp(c, zap.NewNop())
	t.Cleanup(a.Close)

	assert.NotNil(t, a.limiter)
	assert.NotNil(t, a.metrics)
	require.NoError(t, a.checkStore(context.Background()))
	assert.Equal(t, sentiment.DefaultWatchList, a.watchList(nil))
	assert.Equal(t, []sentiment.WatchListEntry{{Subject: "PEPE"}}, a.watchList([]string{"PEPE"}))

	stats, err := a.service.Stats(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestAdminAllowed(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		secret string
		want   bool
	}{
		{"dev with default secret", "dev", config.DefaultJWTSecret, true},
		{"prod with default secret", "prod", config.DefaultJWTSecret, false},
		{"prod with own secret", "prod", "s3cr3t-from-vault", true},
		{"empty secret", "dev", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig(t)
			c.App.Env = tt.env
			c.Auth.JWTSecret = tt.secret
			assert.Equal(t, tt.want, adminAllowed(c))
		})
	}
}

func TestEngineOptionsDropsAdminWithDefaultSecretOutsideDev(t *testing.T) {
	c := testConfig(t)
	a := newApp(c, zap.NewNop())
	t.Cleanup(a.Close)

	opts := engineOptions(c, a, zap.NewNop())
	assert.NotNil(t, opts.Admin)
	require.NotNil(t, opts.Audit)
	assert.NotNil(t, opts.Meme.Classifier)
	assert.True(t, opts.Swagger)

	c.App.Env = "prod"
	opts = engineOptions(c, a, zap.NewNop())
	assert.Nil(t, opts.Admin)

	c.Auth.JWTSecret = "rotated-secret"
	opts = engineOptions(c, a, zap.NewNop())
	assert.NotNil(t, opts.Admin)
}

func TestNewAuditorDisabled(t *testing.T) {
	c := testConfig(t)
	c.Audit.Enabled = false
	a := newApp(c, zap.NewNop())
	t.Cleanup(a.Close)
	assert.Nil(t, a.auditor)
	assert.Nil(t, engineOptions(c, a, zap.NewNop()).Audit)
}

func TestPrintWarmupReport(t *testing.T) {
	list := []sentiment.WatchListEntry{{Subject: "BTC", ExpectedLabel: sentiment.Positive}, {Subject: "XYZ"}}
	err := printWarmupReport(list, sentiment.WarmupReport{
		Attempted: 2,
		Succeeded: 1,
		Failures:  []sentiment.Failure{{Subject: "XYZ", Err: errors.New("boom")}},
	})
	assert.NoError(t, err)
}

func TestTokenCommand(t *testing.T) {
	cfg = testConfig(t)
	cfg.Auth.JWTSecret = "cli-secret"
	tokenEmail, tokenRole, tokenTTL = "ops@example.com", auth.RoleAdmin, time.Hour

	var out bytes.Buffer
	tokenCmd.SetOut(&out)
	require.NoError(t, tokenCmd.RunE(tokenCmd, nil))

	tok := strings.SplitN(out.String(), "\n", 2)[0]
	claims, err := auth.JWT{Secret: []byte("cli-secret")}.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}
