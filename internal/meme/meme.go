// Package meme produces captioned meme descriptors for a token and sentiment.
package meme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
	"github.com/nicekwell/easyweb3-sentiment/internal/cache"
	"github.com/nicekwell/easyweb3-sentiment/internal/oracle"
	"github.com/nicekwell/easyweb3-sentiment/internal/sentiment"
)

const (
	DefaultTTL          = 24 * time.Hour
	DefaultTheme        = "crypto"
	DefaultImageBaseURL = "https://api.defidetector.com/memes"

	keyPrefix = "meme:"
)

// PopularPairs are pre-generated by Warm.
var PopularPairs = []Request{
	{Subject: "BTC", Label: sentiment.Positive},
	{Subject: "ETH", Label: sentiment.Positive},
	{Subject: "SUI", Label: sentiment.Positive},
	{Subject: "BTC", Label: sentiment.Negative},
	{Subject: "ETH", Label: sentiment.Negative},
}

type Request struct {
	Subject string
	Label   sentiment.Label
	Theme   string
}

type Meme struct {
	URL       string          `json:"url"`
	Text      string          `json:"text"`
	Sentiment sentiment.Label `json:"sentiment"`
}

type Options struct {
	TTL          time.Duration
	ImageBaseURL string
	DefaultTheme string
	Logger       *zap.Logger
}

type Generator struct {
	store  cache.Store
	oracle oracle.Client
	opts   Options
	now    func() time.Time
}

func NewGenerator(store cache.Store, o oracle.Client, opts Options) *Generator {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if strings.TrimSpace(opts.ImageBaseURL) == "" {
		opts.ImageBaseURL = DefaultImageBaseURL
	}
	if strings.TrimSpace(opts.DefaultTheme) == "" {
		opts.DefaultTheme = DefaultTheme
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Generator{store: store, oracle: o, opts: opts, now: time.Now}
}

// Generate returns the cached meme for (subject, label) or asks the oracle for a caption.
func (g *Generator) Generate(ctx context.Context, req Request) (*Meme, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, apperr.Validation("generate meme", "token symbol is required")
	}
	label := sentiment.Label(strings.ToLower(strings.TrimSpace(string(req.Label))))
	if !label.Valid() {
		return nil, apperr.Validation("generate meme", "sentiment must be positive, negative or neutral")
	}
	theme := strings.TrimSpace(req.Theme)
	if theme == "" {
		theme = g.opts.DefaultTheme
	}

	key := cacheKey(subject, label)
	var cached Meme
	if found, err := cache.GetJSON(ctx, g.store, key, &cached); err == nil && found {
		g.opts.Logger.Debug("meme cache hit", zap.String("key", key))
		return &cached, nil
	} else if errors.Is(err, apperr.ErrStorageUnavailable) {
		return nil, err
	}

	user, err := json.Marshal(map[string]string{
		"token":     subject,
		"sentiment": string(label),
		"theme":     theme,
		"style":     "viral, humorous, crypto-native",
	})
	if err != nil {
		return nil, apperr.Upstream("generate meme", "build prompt", err)
	}
	content, err := g.oracle.Complete(ctx, oracle.Prompt{
		System: fmt.Sprintf("You are a crypto meme generator. Create a viral meme about %s with %s sentiment. "+
			`Respond with a JSON object {"caption": "<meme text>"} and nothing else.`, subject, label),
		User: string(user),
	})
	if err != nil {
		return nil, err
	}
	caption, err := parseCaption(content)
	if err != nil {
		return nil, err
	}

	m := &Meme{
		URL:       fmt.Sprintf("%s/%s-%d.jpg", strings.TrimRight(g.opts.ImageBaseURL, "/"), strings.ToLower(subject), g.now().UnixMilli()),
		Text:      caption,
		Sentiment: label,
	}
	if err := cache.SetJSON(ctx, g.store, key, m, g.opts.TTL); err != nil {
		return nil, err
	}
	return m, nil
}

// Warm generates any missing popular pair. Failures are logged and skipped.
func (g *Generator) Warm(ctx context.Context, pairs []Request) int {
	generated := 0
	for _, p := range pairs {
		if ctx.Err() != nil {
			break
		}
		if _, found, err := g.store.Get(ctx, cacheKey(p.Subject, p.Label)); err == nil && found {
			continue
		}
		if _, err := g.Generate(ctx, p); err != nil {
			g.opts.Logger.Warn("meme warmup failed",
				zap.String("subject", p.Subject),
				zap.String("sentiment", string(p.Label)),
				zap.Error(err),
			)
			continue
		}
		generated++
	}
	return generated
}

func cacheKey(subject string, label sentiment.Label) string {
	return keyPrefix + sentiment.Canonical(subject) + ":" + string(label)
}

func parseCaption(content string) (string, error) {
	s := strings.TrimSpace(content)
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		s = s[i : j+1]
	}
	if !gjson.Valid(s) {
		return "", apperr.InvalidResponse("generate meme", "response is not a JSON object", nil)
	}
	c := gjson.Get(s, "caption")
	if c.Type != gjson.String || strings.TrimSpace(c.Str) == "" {
		return "", apperr.InvalidResponse("generate meme", "missing caption", nil)
	}
	return c.Str, nil
}
