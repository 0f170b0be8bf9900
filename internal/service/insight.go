package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/telemetry-insight-worker/internal/anomaly"
	"github.com/septivank/telemetry-insight-worker/internal/config"
	"github.com/septivank/telemetry-insight-worker/internal/db"
	"github.com/septivank/telemetry-insight-worker/internal/fieldkind"
	"github.com/septivank/telemetry-insight-worker/internal/logging"
	"github.com/septivank/telemetry-insight-worker/internal/repository"
	"github.com/septivank/telemetry-insight-worker/internal/rollup"
	"github.com/septivank/telemetry-insight-worker/internal/validator"
	"go.uber.org/zap"
)

// Resolution selects the access path for historical queries.
type Resolution string

const (
	ResolutionRaw        Resolution = "raw"
	ResolutionAggregated Resolution = "aggregated"
)

// Store is the read surface the service needs. *repository.Repository
// implements it.
type Store interface {
	Field(ctx context.Context, fieldID uuid.UUID) (*db.SensorField, error)
	LatestValue(ctx context.Context, fieldID uuid.UUID) (*db.LatestValueEntry, error)
	ReadingsBetween(ctx context.Context, fieldID uuid.UUID, from, to time.Time, limit int) ([]db.RawReading, error)
	RawHistory(ctx context.Context, fieldID uuid.UUID, start, end time.Time) ([]db.RawReading, error)
	MinuteDensity(ctx context.Context, fieldID uuid.UUID, start, end time.Time) ([]db.SeriesPoint, error)
	Buckets(ctx context.Context, fieldID uuid.UUID, startDate, endDate time.Time) ([]db.AggregatedBucket, error)
	RecentValues(ctx context.Context, fieldID uuid.UUID, limit int) ([]float64, error)
	DataRange(ctx context.Context, fieldID uuid.UUID) (time.Time, time.Time, error)
}

// EventPublisher fans out detected anomalies. A nil publisher disables
// publishing.
type EventPublisher interface {
	PublishAnomalyEvent(ctx context.Context, fieldID uuid.UUID, value float64, ts time.Time, message string) error
}

// LatestValue is the annotated most-recent reading of a field.
type LatestValue struct {
	FieldID   uuid.UUID `json:"field_id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Anomalous bool      `json:"anomalous"`
	Message   string    `json:"message,omitempty"`
}

// InsightService is the query and detection surface of the engine:
// latest value, anchored windows, resolution-aware history, all
// optionally annotated by the anomaly detector.
type InsightService struct {
	store     Store
	detector  *anomaly.Detector
	validator *validator.Validator
	publisher EventPublisher
	cfg       *config.Config
	logger    *zap.Logger
}

// NewInsightService creates the service. publisher may be nil.
func NewInsightService(
	store Store,
	detector *anomaly.Detector,
	v *validator.Validator,
	publisher EventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *InsightService {
	return &InsightService{
		store:     store,
		detector:  detector,
		validator: v,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// GetLatestValue returns the newest reading for a field. With analysis
// enabled it is scored against the recent sample context; any detection
// failure degrades to not anomalous rather than erroring.
func (s *InsightService) GetLatestValue(ctx context.Context, fieldID uuid.UUID, analysisEnabled bool) (*LatestValue, error) {
	entry, err := s.store.LatestValue(ctx, fieldID)
	if err != nil {
		return nil, err
	}

	latest := &LatestValue{
		FieldID:   entry.FieldID,
		Value:     entry.Value,
		Timestamp: entry.ReadingTimestamp,
	}
	if !analysisEnabled {
		return latest, nil
	}

	fieldLogger := logging.WithField(s.logger, fieldID)
	field, err := s.store.Field(ctx, fieldID)
	if err != nil {
		fieldLogger.Warn("failed to load field metadata for analysis", zap.Error(err))
		return latest, nil
	}
	samples, err := s.store.RecentValues(ctx, fieldID, s.cfg.Anomaly.ContextSamples)
	if err != nil {
		fieldLogger.Warn("failed to load detection context", zap.Error(err))
		return latest, nil
	}

	latest.Anomalous, latest.Message = s.detector.DetectSingle(field, samples)
	if latest.Anomalous {
		fieldLogger.Debug("anomaly detected",
			zap.Float64("value", latest.Value),
			zap.String("message", latest.Message))
		s.publishAnomaly(ctx, fieldID, latest.Value, latest.Timestamp, latest.Message)
	}
	return latest, nil
}

// GetWindow returns the raw readings of the last N minutes, anchored at
// the latest known reading rather than wall-clock now, so ingestion
// delay never produces a spuriously empty window.
func (s *InsightService) GetWindow(ctx context.Context, fieldID uuid.UUID, minutes int, analysisEnabled bool) ([]anomaly.Point, error) {
	if err := s.validator.ValidateWindowMinutes(minutes); err != nil {
		return nil, err
	}

	entry, err := s.store.LatestValue(ctx, fieldID)
	if err != nil {
		if errors.Is(err, repository.ErrNoReadings) {
			return []anomaly.Point{}, nil
		}
		return nil, err
	}

	anchor := entry.ReadingTimestamp
	readings, err := s.store.ReadingsBetween(ctx, fieldID,
		anchor.Add(-time.Duration(minutes)*time.Minute), anchor, s.cfg.Query.WindowRowCap)
	if err != nil {
		return nil, err
	}

	points := readingsToPoints(readings)
	if analysisEnabled {
		points = s.annotate(ctx, fieldID, points, nil)
	}
	return points, nil
}

// GetHistory returns readings for [start, end] at the requested
// resolution. Aggregated resolution prefers precomputed buckets and
// falls back to computing the same hourly grouping on the fly, without
// persisting it: the rollup aggregator stays the sole bucket writer.
func (s *InsightService) GetHistory(
	ctx context.Context,
	fieldID uuid.UUID,
	start, end time.Time,
	resolution Resolution,
	analysisEnabled bool,
	comfort *anomaly.ComfortConfig,
) ([]anomaly.Point, error) {
	if err := s.validator.ValidateHistoryRange(start, end); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateResolution(string(resolution)); err != nil {
		return nil, err
	}
	if comfort != nil {
		if err := s.validator.ValidateComfort(*comfort); err != nil {
			return nil, err
		}
	}

	field, err := s.store.Field(ctx, fieldID)
	if err != nil {
		return nil, err
	}

	var points []anomaly.Point
	switch resolution {
	case ResolutionRaw:
		points, err = s.rawHistory(ctx, field, start, end)
	default:
		points, err = s.aggregatedHistory(ctx, field, start, end)
	}
	if err != nil {
		return nil, err
	}

	if analysisEnabled {
		points = s.detector.DetectBatch(field, points, comfort)
	}
	return points, nil
}

// DateRange returns the earliest and latest data known for a field.
func (s *InsightService) DateRange(ctx context.Context, fieldID uuid.UUID) (time.Time, time.Time, error) {
	return s.store.DataRange(ctx, fieldID)
}

// rawHistory serves raw resolution. Counter fields come back as
// per-minute density instead of individual pulse events.
func (s *InsightService) rawHistory(ctx context.Context, field *db.SensorField, start, end time.Time) ([]anomaly.Point, error) {
	if field.Kind == fieldkind.Counter {
		series, err := s.store.MinuteDensity(ctx, field.ID, start, end)
		if err != nil {
			return nil, err
		}
		return seriesToPoints(series), nil
	}

	readings, err := s.store.RawHistory(ctx, field.ID, start, end)
	if err != nil {
		return nil, err
	}
	return readingsToPoints(readings), nil
}

// aggregatedHistory serves aggregated resolution: stored buckets first,
// on-the-fly hourly grouping when the rollup never covered the range.
func (s *InsightService) aggregatedHistory(ctx context.Context, field *db.SensorField, start, end time.Time) ([]anomaly.Point, error) {
	buckets, err := s.store.Buckets(ctx, field.ID, start, end)
	if err != nil {
		return nil, err
	}
	if len(buckets) > 0 {
		return bucketsToPoints(buckets), nil
	}

	logging.WithField(s.logger, field.ID).Debug("no precomputed buckets, aggregating on the fly",
		zap.Time("start", start), zap.Time("end", end))

	readings, err := s.store.RawHistory(ctx, field.ID, start, end)
	if err != nil {
		return nil, err
	}
	candidates := make([]rollup.CandidateReading, len(readings))
	for i, r := range readings {
		candidates[i] = rollup.CandidateReading{
			FieldID:          r.FieldID,
			Kind:             field.Kind,
			Value:            r.Value,
			ReadingTimestamp: r.ReadingTimestamp,
		}
	}
	return bucketsToPoints(rollup.SummarizeHourly(candidates)), nil
}

func (s *InsightService) annotate(ctx context.Context, fieldID uuid.UUID, points []anomaly.Point, comfort *anomaly.ComfortConfig) []anomaly.Point {
	field, err := s.store.Field(ctx, fieldID)
	if err != nil {
		// Fail-safe: unannotated data beats no data.
		logging.WithField(s.logger, fieldID).Warn("failed to load field metadata for batch analysis", zap.Error(err))
		return points
	}
	return s.detector.DetectBatch(field, points, comfort)
}

func (s *InsightService) publishAnomaly(ctx context.Context, fieldID uuid.UUID, value float64, ts time.Time, message string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAnomalyEvent(ctx, fieldID, value, ts, message); err != nil {
		logging.WithField(s.logger, fieldID).Error("failed to publish anomaly event", zap.Error(err))
	}
}

func readingsToPoints(readings []db.RawReading) []anomaly.Point {
	points := make([]anomaly.Point, len(readings))
	for i, r := range readings {
		points[i] = anomaly.Point{Timestamp: r.ReadingTimestamp, Value: r.Value}
	}
	return points
}

func seriesToPoints(series []db.SeriesPoint) []anomaly.Point {
	points := make([]anomaly.Point, len(series))
	for i, sp := range series {
		points[i] = anomaly.Point{Timestamp: sp.Timestamp, Value: sp.Value}
	}
	return points
}

// bucketsToPoints projects buckets onto the point shape: sum for
// counter buckets, avg for the rest.
func bucketsToPoints(buckets []db.AggregatedBucket) []anomaly.Point {
	points := make([]anomaly.Point, len(buckets))
	for i, b := range buckets {
		value := 0.0
		switch {
		case b.ValueSum != nil:
			value = *b.ValueSum
		case b.ValueAvg != nil:
			value = *b.ValueAvg
		}
		ts := b.BucketDate.Add(time.Duration(b.BucketHour) * time.Hour)
		points[i] = anomaly.Point{Timestamp: ts, Value: value}
	}
	return points
}

var _ Store = (*repository.Repository)(nil)
