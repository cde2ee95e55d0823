package sentiment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
	"github.com/nicekwell/easyweb3-sentiment/internal/cache"
)

const (
	DefaultTTL       = 15 * time.Minute
	DefaultThreshold = 0.05
)

type Freshness int

const (
	Fresh Freshness = iota
	Stale
)

func (f Freshness) String() string {
	if f == Stale {
		return "stale"
	}
	return "fresh"
}

type CacheOptions struct {
	TTL time.Duration
	// Threshold is the relative price drift above which a record is stale.
	Threshold float64
}

// VolatileCache stores records under sentiment:<subject> and decides freshness
// from reference price drift.
type VolatileCache struct {
	store     cache.Store
	stats     *StatsTracker
	ttl       time.Duration
	threshold decimal.Decimal
	logger    *zap.Logger
}

func NewVolatileCache(store cache.Store, stats *StatsTracker, opts CacheOptions, logger *zap.Logger) *VolatileCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VolatileCache{
		store:     store,
		stats:     stats,
		ttl:       opts.TTL,
		threshold: decimal.NewFromFloat(opts.Threshold),
		logger:    logger,
	}
}

func (c *VolatileCache) Stats() *StatsTracker { return c.stats }

// Lookup returns nil, nil on a miss. An entry that does not decode is a miss.
func (c *VolatileCache) Lookup(ctx context.Context, subject string) (*Record, error) {
	b, found, err := c.store.Get(ctx, recordKey(subject))
	if err != nil {
		return nil, err
	}
	if found {
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			c.logger.Warn("corrupt sentiment entry", zap.String("subject", Canonical(subject)), zap.Error(err))
		} else {
			c.record(ctx, subject, EventHit)
			return &rec, nil
		}
	}
	c.record(ctx, subject, EventMiss)
	return nil, nil
}

// EvaluateStaleness is Stale iff |current-reference|/reference exceeds the
// threshold. Unknown prices, on either side, are Fresh.
func (c *VolatileCache) EvaluateStaleness(rec Record, currentPrice *float64) Freshness {
	drift, ok := Drift(rec.ReferencePrice, currentPrice)
	if !ok || !drift.GreaterThan(c.threshold) {
		return Fresh
	}
	return Stale
}

// Drift is |current-reference|/reference. ok is false when it cannot be computed.
func Drift(reference, current *float64) (decimal.Decimal, bool) {
	if reference == nil || current == nil || *reference <= 0 {
		return decimal.Zero, false
	}
	ref := decimal.NewFromFloat(*reference)
	cur := decimal.NewFromFloat(*current)
	return cur.Sub(ref).Abs().Div(ref), true
}

// Invalidate deletes the record. Deleting an absent record is not an error.
func (c *VolatileCache) Invalidate(ctx context.Context, subject string) error {
	if err := c.store.Delete(ctx, recordKey(subject)); err != nil {
		return err
	}
	c.record(ctx, subject, EventInvalidation)
	return nil
}

func (c *VolatileCache) Store(ctx context.Context, subject string, rec Record) error {
	if err := rec.Validate(); err != nil {
		return apperr.Validation("store sentiment", err.Error())
	}
	return cache.SetJSON(ctx, c.store, recordKey(subject), rec, c.ttl)
}

// record updates advisory counters; failures are logged and never fail the caller.
func (c *VolatileCache) record(ctx context.Context, subject string, ev Event) {
	if c.stats == nil {
		return
	}
	if err := c.stats.RecordEvent(ctx, subject, ev); err != nil {
		c.logger.Warn("record cache event",
			zap.String("subject", Canonical(subject)),
			zap.String("event", string(ev)),
			zap.Error(err),
		)
	}
}
