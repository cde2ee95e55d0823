// Package ratelimit implements a fixed-window request limiter over a shared counter.
package ratelimit

import (
	"context"
	"time"

	"github.com/nicekwell/easyweb3-sentiment/internal/cache"
)

const (
	DefaultLimit  = 10
	DefaultWindow = 60 * time.Second

	keyPrefix = "rate-limit:"
)

type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	// Count is the number of requests seen in the current window, this one included.
	Count int64
}

type Limiter struct {
	counter cache.Counter
	limit   int64
	window  time.Duration
}

func New(counter cache.Counter, limit int64, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{counter: counter, limit: limit, window: window}
}

// Allow counts one request for id. Every request re-arms the window, so the
// count only resets after a full window of silence.
func (l *Limiter) Allow(ctx context.Context, id string) (Result, error) {
	n, err := l.counter.Incr(ctx, keyPrefix+id, l.window)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:   n <= l.limit,
		Limit:     l.limit,
		Remaining: max(l.limit-n, 0),
		Count:     n,
	}, nil
}

func (l *Limiter) Window() time.Duration { return l.window }
