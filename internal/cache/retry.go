package cache

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 50 * time.Millisecond
	defaultMaxDelay  = time.Second
)

// RetryOptions bounds the retry budget of a RetryStore.
type RetryOptions struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// RetryStore is the KeyStore seen by the rest of the service: it retries transient
// backend failures with a capped linear backoff and reports exhaustion as
// apperr.ErrStorageUnavailable.
type RetryStore struct {
	inner  Store
	opts   RetryOptions
	logger *zap.Logger
}

func NewRetryStore(inner Store, opts RetryOptions, logger *zap.Logger) *RetryStore {
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryStore{inner: inner, opts: opts, logger: logger}
}

// Inner returns the wrapped backend.
func (s *RetryStore) Inner() Store { return s.inner }

type getResult struct {
	value []byte
	found bool
}

func (s *RetryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := retry(ctx, s, "cache get", key, func() (getResult, error) {
		v, found, err := s.inner.Get(ctx, key)
		return getResult{value: v, found: found}, err
	})
	if err != nil {
		return nil, false, err
	}
	return res.value, res.found, nil
}

func (s *RetryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := retry(ctx, s, "cache set", key, func() (struct{}, error) {
		return struct{}{}, s.inner.Set(ctx, key, value, ttl)
	})
	return err
}

func (s *RetryStore) Delete(ctx context.Context, key string) error {
	_, err := retry(ctx, s, "cache delete", key, func() (struct{}, error) {
		return struct{}{}, s.inner.Delete(ctx, key)
	})
	return err
}

// HealthCheck pings the backend once, without retries.
func (s *RetryStore) HealthCheck(ctx context.Context) error {
	p, ok := s.inner.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return apperr.StorageUnavailable("cache ping", err)
	}
	return nil
}

func retry[T any](ctx context.Context, s *RetryStore, op, key string, fn func() (T, error)) (T, error) {
	out, err := backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(&linearBackOff{base: s.opts.BaseDelay, max: s.opts.MaxDelay}),
		backoff.WithMaxTries(uint(s.opts.Attempts)),
		backoff.WithNotify(func(err error, d time.Duration) {
			s.logger.Debug("cache operation retry",
				zap.String("op", op),
				zap.String("key", key),
				zap.Duration("delay", d),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		s.logger.Warn("cache operation failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
		var zero T
		return zero, apperr.StorageUnavailable(op, err)
	}
	return out, nil
}

// linearBackOff yields min(n*base, max) for the n-th retry.
type linearBackOff struct {
	base    time.Duration
	max     time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	d := time.Duration(b.attempt) * b.base
	if d > b.max {
		return b.max
	}
	return d
}

func (b *linearBackOff) Reset() { b.attempt = 0 }
