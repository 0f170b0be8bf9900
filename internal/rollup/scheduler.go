package rollup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/telemetry-insight-worker/internal/logging"
	"go.uber.org/zap"
)

// EventPublisher fans out rollup completion events. A nil publisher
// disables publishing.
type EventPublisher interface {
	PublishRollupEvent(ctx context.Context, runID string, result Result) error
}

// SchedulerConfig holds scheduler settings.
type SchedulerConfig struct {
	Interval        time.Duration
	BackfillDays    int
	BackfillOnStart bool
}

// Scheduler is the supervised background worker driving the aggregator:
// an optional one-shot historical backfill on start, then periodic
// ticks. Tick failures are logged and retried on the next tick.
type Scheduler struct {
	agg       *Aggregator
	cfg       SchedulerConfig
	publisher EventPublisher
	logger    *zap.Logger
	stop      chan struct{}
	done      chan struct{}
}

// NewScheduler creates a scheduler around agg.
func NewScheduler(agg *Aggregator, cfg SchedulerConfig, publisher EventPublisher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		agg:       agg,
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the scheduling loop. ctx cancellation and Stop both
// terminate it.
func (s *Scheduler) Start(ctx context.Context) error {
	go s.loop(ctx)
	s.logger.Info("rollup scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Bool("backfill_on_start", s.cfg.BackfillOnStart))
	return nil
}

// Stop terminates the loop and waits for any in-flight run to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
		s.logger.Info("rollup scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if s.cfg.BackfillOnStart {
		s.execute(ctx, true)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, false)
		}
	}
}

// Trigger runs one on-demand aggregation pass outside the schedule. It
// shares the aggregator's run-lock, so a trigger firing during a
// scheduled tick is skipped instead of interleaving.
func (s *Scheduler) Trigger(ctx context.Context, historical bool) (Result, error) {
	return s.runAndPublish(ctx, historical)
}

func (s *Scheduler) execute(ctx context.Context, historical bool) {
	// Errors are already logged by the aggregator; the next tick retries.
	_, _ = s.runAndPublish(ctx, historical)
}

func (s *Scheduler) runAndPublish(ctx context.Context, historical bool) (Result, error) {
	runID := uuid.New().String()
	runLogger := logging.WithRunID(s.logger, runID)

	result, err := s.agg.Run(ctx, historical, s.cfg.BackfillDays)
	if err != nil {
		return result, err
	}

	if s.publisher != nil && result.Status == StatusSuccess {
		if pubErr := s.publisher.PublishRollupEvent(ctx, runID, result); pubErr != nil {
			runLogger.Error("failed to publish rollup event", zap.Error(pubErr))
		}
	}
	return result, nil
}
