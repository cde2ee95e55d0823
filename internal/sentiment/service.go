// Package sentiment classifies tokens and keeps the results in a price-aware cache.
package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
	"github.com/nicekwell/easyweb3-sentiment/internal/market"
	"github.com/nicekwell/easyweb3-sentiment/internal/metrics"
	"github.com/nicekwell/easyweb3-sentiment/internal/oracle"
	"github.com/nicekwell/easyweb3-sentiment/internal/social"
)

const DefaultCallTimeout = 20 * time.Second

// sharedBudget bounds a shared computation in call timeouts: market and social
// run in parallel, then the oracle, then the store write.
const sharedBudget = 3

const systemPrompt = `You are a DeFi sentiment analyzer. Analyze the following token data and provide sentiment analysis.
Respond with a single JSON object and nothing else:
{"sentiment": "positive" | "negative" | "neutral", "score": <number between 0 and 1>, "platforms": {"twitter": <number>, "reddit": <number>, "telegram": <number>}}`

// MarketSource is the market data dependency. Both methods return nil, nil
// when the subject is unknown.
type MarketSource interface {
	TokenData(ctx context.Context, subject string) (*market.Data, error)
	Price(ctx context.Context, subject string) (*float64, error)
}

type Options struct {
	// CallTimeout bounds each external call.
	CallTimeout time.Duration
	// DedupeInflight collapses concurrent misses for one subject into one computation.
	DedupeInflight bool
	Logger         *zap.Logger
	Metrics        *metrics.Manager
}

type Service struct {
	cache   *VolatileCache
	market  MarketSource
	social  social.Provider
	oracle  oracle.Client
	logger  *zap.Logger
	metrics *metrics.Manager

	callTimeout time.Duration
	dedupe      bool
	group       singleflight.Group
}

func NewService(c *VolatileCache, m MarketSource, s social.Provider, o oracle.Client, opts Options) *Service {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		cache:       c,
		market:      m,
		social:      s,
		oracle:      o,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		callTimeout: opts.CallTimeout,
		dedupe:      opts.DedupeInflight,
	}
}

// Classify returns a fresh record for subject, from cache when the cached
// record is still within the price drift threshold, otherwise recomputed.
func (s *Service) Classify(ctx context.Context, subject string) (*Record, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, apperr.Validation("classify", "token symbol is required")
	}

	rec, err := s.cache.Lookup(ctx, subject)
	if err != nil {
		s.metrics.RecordClassification("error")
		return nil, err
	}
	if rec != nil {
		price := s.currentPrice(ctx, subject)
		if s.cache.EvaluateStaleness(*rec, price) == Fresh {
			s.metrics.RecordClassification("cached")
			return rec, nil
		}
		drift, _ := Drift(rec.ReferencePrice, price)
		s.logger.Info("sentiment stale, invalidating",
			zap.String("subject", Canonical(subject)),
			zap.String("drift", drift.StringFixed(4)),
		)
		if err := s.cache.Invalidate(ctx, subject); err != nil {
			s.metrics.RecordClassification("error")
			return nil, err
		}
	}

	rec, err = s.computeShared(ctx, subject)
	if err != nil {
		s.metrics.RecordClassification("error")
		return nil, err
	}
	s.metrics.RecordClassification("computed")
	return rec, nil
}

// Stats returns the cache counters for subject, or nil when there are none.
func (s *Service) Stats(ctx context.Context, subject string) (*CacheCounters, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, apperr.Validation("cache stats", "token is required")
	}
	st := s.cache.Stats()
	if st == nil {
		return nil, nil
	}
	return st.GetStats(ctx, subject)
}

func (s *Service) computeShared(ctx context.Context, subject string) (*Record, error) {
	if !s.dedupe {
		return s.compute(ctx, subject)
	}
	ch := s.group.DoChan(Canonical(subject), func() (any, error) {
		// Detached from the first caller: each waiter stops on its own context.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedBudget*s.callTimeout)
		defer cancel()
		return s.compute(sctx, subject)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("shared in-flight classification", zap.String("subject", Canonical(subject)))
		}
		return res.Val.(*Record).Clone(), nil
	}
}

func (s *Service) compute(ctx context.Context, subject string) (*Record, error) {
	var (
		md *market.Data
		sd *social.Data
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, s.callTimeout)
		defer cancel()
		d, err := s.market.TokenData(cctx, subject)
		if err != nil {
			return apperr.WrapUpstream("classify", "market data", err)
		}
		md = d
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, s.callTimeout)
		defer cancel()
		d, err := s.social.Fetch(cctx, subject)
		if err != nil {
			return apperr.WrapUpstream("classify", "social data", err)
		}
		sd = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prompt, err := buildPrompt(subject, md, sd)
	if err != nil {
		return nil, apperr.Upstream("classify", "build prompt", err)
	}

	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	content, err := s.oracle.Complete(cctx, prompt)
	cancel()
	if err != nil {
		s.metrics.ObserveOracle("error", time.Since(start))
		return nil, oracleError(err)
	}

	a, err := ParseAnalysis(content)
	if err != nil {
		s.metrics.ObserveOracle("invalid", time.Since(start))
		s.logger.Warn("invalid oracle response", zap.String("subject", Canonical(subject)), zap.Error(err))
		return nil, err
	}
	s.metrics.ObserveOracle("ok", time.Since(start))

	rec := Record{
		Subject:       Canonical(subject),
		Label:         a.Label,
		Score:         a.Score,
		ChannelScores: a.Channels,
		ComputedAt:    time.Now().UTC(),
	}
	if md != nil {
		p := md.CurrentPrice
		rec.ReferencePrice = &p
	}
	if err := s.cache.Store(ctx, subject, rec); err != nil {
		return nil, err
	}
	s.logger.Info("sentiment computed",
		zap.String("subject", rec.Subject),
		zap.String("sentiment", string(rec.Label)),
		zap.Float64("score", rec.Score),
	)
	return &rec, nil
}

// currentPrice is best effort: a failed lookup counts as an unknown price.
func (s *Service) currentPrice(ctx context.Context, subject string) *float64 {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	p, err := s.market.Price(cctx, subject)
	if err != nil {
		s.logger.Debug("price lookup failed", zap.String("subject", Canonical(subject)), zap.Error(err))
		return nil
	}
	return p
}

type promptInput struct {
	Token      string       `json:"token"`
	MarketData *market.Data `json:"marketData"`
	SocialData *social.Data `json:"socialData"`
}

func buildPrompt(subject string, md *market.Data, sd *social.Data) (oracle.Prompt, error) {
	b, err := json.Marshal(promptInput{Token: subject, MarketData: md, SocialData: sd})
	if err != nil {
		return oracle.Prompt{}, err
	}
	return oracle.Prompt{System: systemPrompt, User: string(b)}, nil
}

func oracleError(err error) error {
	switch {
	case errors.Is(err, apperr.ErrRateLimited),
		errors.Is(err, apperr.ErrUnavailable),
		errors.Is(err, apperr.ErrUpstream):
		return err
	default:
		return apperr.Upstream("classify", "oracle request failed", err)
	}
}
