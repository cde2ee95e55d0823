package sentiment

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nicekwell/easyweb3-sentiment/internal/metrics"
)

const DefaultBatchSize = 10

// DefaultWatchList is warmed when no tokens are configured.
var DefaultWatchList = []WatchListEntry{
	{Subject: "BTC", ExpectedLabel: Positive},
	{Subject: "ETH", ExpectedLabel: Positive},
	{Subject: "SUI", ExpectedLabel: Positive},
	{Subject: "SOL", ExpectedLabel: Positive},
	{Subject: "USDT", ExpectedLabel: Neutral},
}

// Classifier is the part of Service warmup drives.
type Classifier interface {
	Classify(ctx context.Context, subject string) (*Record, error)
}

type Failure struct {
	Subject string
	Err     error
}

type WarmupReport struct {
	Attempted int
	Succeeded int
	Failures  []Failure
}

type Warmer struct {
	classifier Classifier
	batchSize  int
	logger     *zap.Logger
	metrics    *metrics.Manager
}

func NewWarmer(c Classifier, batchSize int, logger *zap.Logger, m *metrics.Manager) *Warmer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{classifier: c, batchSize: batchSize, logger: logger, metrics: m}
}

// Warmup classifies every entry, at most batchSize at a time. A failed entry
// never stops the others; failures come back in watch-list order.
func (w *Warmer) Warmup(ctx context.Context, list []WatchListEntry) WarmupReport {
	report := WarmupReport{Attempted: len(list)}
	errs := make([]error, len(list))

	for start := 0; start < len(list); start += w.batchSize {
		end := min(start+w.batchSize, len(list))
		if err := ctx.Err(); err != nil {
			for i := start; i < len(list); i++ {
				errs[i] = err
			}
			break
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				e := list[i]
				rec, err := w.classifier.Classify(ctx, e.Subject)
				if err != nil {
					errs[i] = err
					return nil
				}
				if e.ExpectedLabel != "" && rec.Label != e.ExpectedLabel {
					w.logger.Info("warmup label differs from expectation",
						zap.String("subject", e.Subject),
						zap.String("expected", string(e.ExpectedLabel)),
						zap.String("actual", string(rec.Label)),
					)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, err := range errs {
		if err == nil {
			report.Succeeded++
			continue
		}
		w.metrics.RecordWarmupFailure()
		w.logger.Warn("warmup failed", zap.String("subject", list[i].Subject), zap.Error(err))
		report.Failures = append(report.Failures, Failure{Subject: list[i].Subject, Err: err})
	}
	w.logger.Info("warmup complete",
		zap.Int("attempted", report.Attempted),
		zap.Int("failed", len(report.Failures)),
	)
	return report
}
