package cache

import (
	"context"
	"time"
)

// Store is a key-value substrate with per-entry expiry. ttl <= 0 disables expiry.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter is a fixed-window counter: Incr bumps key and (re)arms its expiry.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}
