package main

import (
	"context"

	"github.com/septivank/telemetry-insight-worker/internal/anomaly"
	"github.com/septivank/telemetry-insight-worker/internal/config"
	"github.com/septivank/telemetry-insight-worker/internal/db"
	"github.com/septivank/telemetry-insight-worker/internal/mq"
	"github.com/septivank/telemetry-insight-worker/internal/repository"
	"github.com/septivank/telemetry-insight-worker/internal/rollup"
	"github.com/septivank/telemetry-insight-worker/internal/service"
	"github.com/septivank/telemetry-insight-worker/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// startWorker supervises the rollup scheduler: one-shot historical
// backfill on start (when enabled), then periodic ticks. The insight
// service is constructed here so embedding callers get the same wiring.
func startWorker(
	lc fx.Lifecycle,
	cfg *config.Config,
	logger *zap.Logger,
	aggregator *rollup.Aggregator,
	publisher *mq.Publisher,
	insight *service.InsightService,
) (*rollup.Scheduler, error) {
	var events rollup.EventPublisher
	if publisher != nil {
		events = publisher
	}

	scheduler := rollup.NewScheduler(aggregator, rollup.SchedulerConfig{
		Interval:        cfg.Rollup.Interval,
		BackfillDays:    cfg.Rollup.BackfillDays,
		BackfillOnStart: cfg.Rollup.BackfillOnStart,
	}, events, logger)

	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting rollup scheduler",
				zap.Duration("interval", cfg.Rollup.Interval),
				zap.Int("backfill_days", cfg.Rollup.BackfillDays))
			return scheduler.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := scheduler.Stop(stopCtx); err != nil {
				logger.Error("failed to stop scheduler", zap.Error(err))
				return err
			}
			logger.Info("worker stopped gracefully")
			return nil
		},
	})

	return scheduler, nil
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideDetector creates the anomaly detector with configured comfort
// ranges.
func ProvideDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.MinSamples, anomaly.ComfortConfig{
		TempMin: cfg.Anomaly.TempMin,
		TempMax: cfg.Anomaly.TempMax,
		HumMin:  cfg.Anomaly.HumMin,
		HumMax:  cfg.Anomaly.HumMax,
	})
}

// ProvideValidator creates the query validator.
func ProvideValidator() *validator.Validator {
	return validator.NewValidator(0)
}

// ProvideAggregator creates the rollup aggregator.
func ProvideAggregator(repo *repository.Repository, cfg *config.Config, logger *zap.Logger) *rollup.Aggregator {
	return rollup.NewAggregator(repo, cfg.Rollup.RecentLookback, logger)
}

// ProvideInsightService creates the query/detection service instance.
func ProvideInsightService(
	repo *repository.Repository,
	detector *anomaly.Detector,
	v *validator.Validator,
	publisher *mq.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *service.InsightService {
	var events service.EventPublisher
	if publisher != nil {
		events = publisher
	}
	return service.NewInsightService(repo, detector, v, events, cfg, logger)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL, int32(cfg.Database.MaxConns))
}

// ProvideMQConnection creates the RabbitMQ connection. Event publishing
// is optional: with no RABBITMQ_URL the worker runs without it.
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	if cfg.RabbitMQ.URL == "" {
		logger.Info("RABBITMQ_URL not set, event publishing disabled")
		return nil, nil
	}
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the event publisher when messaging is
// configured.
func ProvidePublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	if conn == nil {
		return nil, nil
	}
	return mq.NewPublisher(conn, mq.PublisherConfig{
		Exchange:          cfg.RabbitMQ.EventsExchange,
		AnomalyRoutingKey: cfg.RabbitMQ.AnomalyRoutingKey,
		RollupRoutingKey:  cfg.RabbitMQ.RollupRoutingKey,
	}, logger)
}
