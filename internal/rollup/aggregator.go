package rollup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/septivank/telemetry-insight-worker/internal/db"
	"go.uber.org/zap"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Result describes one aggregation run.
type Result struct {
	Status       string        `json:"status"`
	AffectedRows int64         `json:"affected_rows"`
	Duration     time.Duration `json:"duration"`
	Mode         string        `json:"mode"`
}

// Txn is one open aggregation transaction. All reads and writes of a run
// happen inside it; a failed run rolls the whole transaction back so no
// partial buckets are ever visible.
type Txn interface {
	CandidateReadings(ctx context.Context, since time.Time) ([]CandidateReading, error)
	ExistingKeys(ctx context.Context, since time.Time) (map[BucketRef]struct{}, error)
	InsertBuckets(ctx context.Context, buckets []db.AggregatedBucket) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens aggregation transactions.
type Store interface {
	BeginAggregation(ctx context.Context) (Txn, error)
}

// Aggregator summarizes raw readings into hourly buckets, idempotently.
// Runs are single-flight: a second invocation while one is in progress
// is skipped rather than racing the existence check.
type Aggregator struct {
	store          Store
	recentLookback time.Duration
	logger         *zap.Logger
	mu             sync.Mutex
}

// NewAggregator creates an aggregator. recentLookback is the window for
// a normal scheduled tick (historical runs use a day count instead).
func NewAggregator(store Store, recentLookback time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, recentLookback: recentLookback, logger: logger}
}

// Run executes one aggregation pass. With historical set, the lookback
// spans lookbackDays days; otherwise it spans the recent lookback
// window. Groups whose (field, date, hour) bucket already exists are
// excluded, which makes repeated runs idempotent.
func (a *Aggregator) Run(ctx context.Context, historical bool, lookbackDays int) (Result, error) {
	mode := "recent"
	if historical {
		mode = "historical"
	}

	if !a.mu.TryLock() {
		a.logger.Warn("aggregation already in progress, skipping run", zap.String("mode", mode))
		return Result{Status: StatusSkipped, Mode: mode}, nil
	}
	defer a.mu.Unlock()

	start := time.Now()
	since := start.Add(-a.recentLookback)
	if historical {
		since = start.AddDate(0, 0, -lookbackDays)
	}

	a.logger.Info("starting hourly aggregation",
		zap.String("mode", mode),
		zap.Time("since", since))

	affected, err := a.runLocked(ctx, since)
	duration := time.Since(start)
	if err != nil {
		a.logger.Error("aggregation run failed, rolled back", zap.Error(err), zap.String("mode", mode))
		return Result{Status: StatusError, Duration: duration, Mode: mode}, err
	}

	a.logger.Info("aggregation completed",
		zap.String("mode", mode),
		zap.Int64("affected_rows", affected),
		zap.Duration("duration", duration))
	return Result{Status: StatusSuccess, AffectedRows: affected, Duration: duration, Mode: mode}, nil
}

func (a *Aggregator) runLocked(ctx context.Context, since time.Time) (int64, error) {
	txn, err := a.store.BeginAggregation(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin aggregation transaction: %w", err)
	}
	defer txn.Rollback(ctx)

	candidates, err := txn.CandidateReadings(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to select candidate readings: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	existing, err := txn.ExistingKeys(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to read existing bucket keys: %w", err)
	}

	buckets := SummarizeHourly(candidates)
	fresh := buckets[:0]
	for _, b := range buckets {
		if _, taken := existing[refOf(b)]; !taken {
			fresh = append(fresh, b)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	affected, err := txn.InsertBuckets(ctx, fresh)
	if err != nil {
		return 0, fmt.Errorf("failed to insert buckets: %w", err)
	}
	if err := txn.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit aggregation: %w", err)
	}
	return affected, nil
}
