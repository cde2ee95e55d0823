package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nicekwell/easyweb3-sentiment/internal/cache"
	"github.com/nicekwell/easyweb3-sentiment/internal/metrics"
)

type Event string

const (
	EventHit          Event = "hit"
	EventMiss         Event = "miss"
	EventInvalidation Event = "invalidation"
)

// CacheCounters are the advisory per-subject cache counters.
type CacheCounters struct {
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	Invalidations int64     `json:"invalidations"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// StatsTracker keeps CacheCounters under stats:sentiment:<subject> without expiry.
// The read-modify-write takes no lock, so concurrent writers may lose
// increments. The counters are advisory.
type StatsTracker struct {
	store   cache.Store
	metrics *metrics.Manager
	now     func() time.Time
}

func NewStatsTracker(store cache.Store, m *metrics.Manager) *StatsTracker {
	return &StatsTracker{store: store, metrics: m, now: time.Now}
}

func (t *StatsTracker) RecordEvent(ctx context.Context, subject string, ev Event) error {
	t.metrics.RecordCacheEvent(string(ev))

	key := statsKey(subject)
	c, err := t.read(ctx, key)
	if err != nil {
		return err
	}
	switch ev {
	case EventHit:
		c.Hits++
	case EventMiss:
		c.Misses++
	case EventInvalidation:
		c.Invalidations++
	default:
		return fmt.Errorf("unknown cache event %q", ev)
	}
	c.LastUpdated = t.now().UTC()
	return cache.SetJSON(ctx, t.store, key, c, 0)
}

// GetStats returns nil, nil when subject has never been looked up.
func (t *StatsTracker) GetStats(ctx context.Context, subject string) (*CacheCounters, error) {
	b, found, err := t.store.Get(ctx, statsKey(subject))
	if err != nil || !found {
		return nil, err
	}
	var c CacheCounters
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, nil
	}
	return &c, nil
}

// read treats an undecodable counter blob as zero so it heals on the next write.
func (t *StatsTracker) read(ctx context.Context, key string) (CacheCounters, error) {
	var c CacheCounters
	b, found, err := t.store.Get(ctx, key)
	if err != nil || !found {
		return c, err
	}
	if json.Unmarshal(b, &c) != nil {
		return CacheCounters{}, nil
	}
	return c, nil
}
