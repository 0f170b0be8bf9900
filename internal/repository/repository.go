package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/telemetry-insight-worker/internal/db"
	"github.com/septivank/telemetry-insight-worker/internal/fieldkind"
	"github.com/septivank/telemetry-insight-worker/internal/rollup"
	"github.com/septivank/telemetry-insight-worker/tools/timebucket"
)

// ErrFieldNotFound reports an unknown field id.
var ErrFieldNotFound = errors.New("sensor field not found")

// ErrNoReadings reports a field with no ingested data yet.
var ErrNoReadings = errors.New("no readings for field")

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Field loads field metadata, including the stored kind.
func (r *Repository) Field(ctx context.Context, fieldID uuid.UUID) (*db.SensorField, error) {
	query := `
		SELECT id, name, unit, kind, created_at
		FROM sensor_fields
		WHERE id = $1
	`

	var field db.SensorField
	var kind string
	err := r.pool.QueryRow(ctx, query, fieldID).Scan(
		&field.ID,
		&field.Name,
		&field.Unit,
		&kind,
		&field.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFieldNotFound
		}
		return nil, fmt.Errorf("failed to query field: %w", err)
	}
	field.Kind = fieldkind.Parse(kind)
	return &field, nil
}

// LatestValue returns the most recent reading for a field from the
// latest-value cache, falling back to a scan of the raw log when the
// cache has no entry yet (first-ingestion race, or cache not populated).
func (r *Repository) LatestValue(ctx context.Context, fieldID uuid.UUID) (*db.LatestValueEntry, error) {
	query := `
		SELECT field_id, value, reading_timestamp, ingest_timestamp
		FROM latest_values
		WHERE field_id = $1
	`

	var entry db.LatestValueEntry
	err := r.pool.QueryRow(ctx, query, fieldID).Scan(
		&entry.FieldID,
		&entry.Value,
		&entry.ReadingTimestamp,
		&entry.IngestTimestamp,
	)
	if err == nil {
		return &entry, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to query latest value: %w", err)
	}

	fallback := `
		SELECT field_id, value, reading_timestamp, ingest_timestamp
		FROM sensor_readings_raw
		WHERE field_id = $1
		ORDER BY ingest_timestamp DESC
		LIMIT 1
	`
	err = r.pool.QueryRow(ctx, fallback, fieldID).Scan(
		&entry.FieldID,
		&entry.Value,
		&entry.ReadingTimestamp,
		&entry.IngestTimestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, ferr := r.Field(ctx, fieldID); ferr != nil {
				return nil, ferr
			}
			return nil, ErrNoReadings
		}
		return nil, fmt.Errorf("failed to query raw log for latest value: %w", err)
	}
	return &entry, nil
}

// ReadingsBetween returns raw readings within [from, to] in ascending
// time order. The fetch runs descending with a row cap so a huge window
// keeps the newest rows, then reverses.
func (r *Repository) ReadingsBetween(ctx context.Context, fieldID uuid.UUID, from, to time.Time, limit int) ([]db.RawReading, error) {
	query := `
		SELECT field_id, value, reading_timestamp, ingest_timestamp
		FROM sensor_readings_raw
		WHERE field_id = $1
		  AND reading_timestamp >= $2
		  AND reading_timestamp <= $3
		ORDER BY reading_timestamp DESC
		LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query, fieldID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings window: %w", err)
	}
	defer rows.Close()

	readings, err := scanReadings(rows)
	if err != nil {
		return nil, err
	}
	reverse(readings)
	return readings, nil
}

// RawHistory returns all raw readings within [start, end] ascending.
func (r *Repository) RawHistory(ctx context.Context, fieldID uuid.UUID, start, end time.Time) ([]db.RawReading, error) {
	query := `
		SELECT field_id, value, reading_timestamp, ingest_timestamp
		FROM sensor_readings_raw
		WHERE field_id = $1
		  AND reading_timestamp BETWEEN $2 AND $3
		ORDER BY reading_timestamp ASC
	`

	rows, err := r.pool.Query(ctx, query, fieldID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw history: %w", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// MinuteDensity returns per-minute summed event counts for a counter
// field. Individual pulses are too numerous to chart; only their density
// is meaningful.
func (r *Repository) MinuteDensity(ctx context.Context, fieldID uuid.UUID, start, end time.Time) ([]db.SeriesPoint, error) {
	query := `
		SELECT date_trunc('minute', reading_timestamp AT TIME ZONE 'UTC') AS minute,
		       SUM(value) AS value
		FROM sensor_readings_raw
		WHERE field_id = $1
		  AND reading_timestamp BETWEEN $2 AND $3
		GROUP BY minute
		ORDER BY minute ASC
	`

	rows, err := r.pool.Query(ctx, query, fieldID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query minute density: %w", err)
	}
	defer rows.Close()

	var points []db.SeriesPoint
	for rows.Next() {
		var p db.SeriesPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan density row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return points, nil
}

// Buckets returns aggregated bucket rows whose date falls within
// [startDate, endDate], ordered by date then hour.
func (r *Repository) Buckets(ctx context.Context, fieldID uuid.UUID, startDate, endDate time.Time) ([]db.AggregatedBucket, error) {
	query := `
		SELECT field_id, bucket_date, bucket_hour,
		       value_min, value_max, value_avg, value_sum, sample_count
		FROM aggregated_values
		WHERE field_id = $1
		  AND bucket_date BETWEEN $2::date AND $3::date
		ORDER BY bucket_date ASC, bucket_hour ASC
	`

	rows, err := r.pool.Query(ctx, query, fieldID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregated buckets: %w", err)
	}
	defer rows.Close()

	var buckets []db.AggregatedBucket
	for rows.Next() {
		var b db.AggregatedBucket
		if err := rows.Scan(
			&b.FieldID,
			&b.BucketDate,
			&b.BucketHour,
			&b.ValueMin,
			&b.ValueMax,
			&b.ValueAvg,
			&b.ValueSum,
			&b.SampleCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return buckets, nil
}

// RecentValues returns the newest values for a field, newest first, as
// detection context.
func (r *Repository) RecentValues(ctx context.Context, fieldID uuid.UUID, limit int) ([]float64, error) {
	query := `
		SELECT value
		FROM sensor_readings_raw
		WHERE field_id = $1
		ORDER BY reading_timestamp DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, fieldID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent values: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var value float64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return values, nil
}

// DataRange returns the earliest and latest known data timestamps for a
// field, preferring bucket coverage and falling back to the raw log.
func (r *Repository) DataRange(ctx context.Context, fieldID uuid.UUID) (time.Time, time.Time, error) {
	var minDate, maxDate *time.Time
	query := `
		SELECT MIN(bucket_date), MAX(bucket_date)
		FROM aggregated_values
		WHERE field_id = $1
	`
	if err := r.pool.QueryRow(ctx, query, fieldID).Scan(&minDate, &maxDate); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to query bucket range: %w", err)
	}
	if minDate != nil && maxDate != nil {
		return *minDate, *maxDate, nil
	}

	fallback := `
		SELECT MIN(reading_timestamp), MAX(reading_timestamp)
		FROM sensor_readings_raw
		WHERE field_id = $1
	`
	if err := r.pool.QueryRow(ctx, fallback, fieldID).Scan(&minDate, &maxDate); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to query raw range: %w", err)
	}
	if minDate == nil || maxDate == nil {
		return time.Time{}, time.Time{}, ErrNoReadings
	}
	return *minDate, *maxDate, nil
}

// BeginAggregation opens the transaction one rollup run executes in.
func (r *Repository) BeginAggregation(ctx context.Context) (rollup.Txn, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &aggregationTx{tx: tx}, nil
}

type aggregationTx struct {
	tx pgx.Tx
}

func (a *aggregationTx) CandidateReadings(ctx context.Context, since time.Time) ([]rollup.CandidateReading, error) {
	query := `
		SELECT r.field_id, f.kind, r.value, r.reading_timestamp
		FROM sensor_readings_raw r
		JOIN sensor_fields f ON f.id = r.field_id
		WHERE r.reading_timestamp >= $1
	`

	rows, err := a.tx.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate readings: %w", err)
	}
	defer rows.Close()

	var candidates []rollup.CandidateReading
	for rows.Next() {
		var c rollup.CandidateReading
		var kind string
		if err := rows.Scan(&c.FieldID, &kind, &c.Value, &c.ReadingTimestamp); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		c.Kind = fieldkind.Parse(kind)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return candidates, nil
}

func (a *aggregationTx) ExistingKeys(ctx context.Context, since time.Time) (map[rollup.BucketRef]struct{}, error) {
	query := `
		SELECT field_id, bucket_date, bucket_hour
		FROM aggregated_values
		WHERE bucket_date >= $1::date
	`

	// Derive the cutoff date in UTC here; casting the timestamp in SQL
	// would resolve it against the session timezone and could disagree
	// with the UTC-derived bucket keys.
	rows, err := a.tx.Query(ctx, query, timebucket.Of(since).Date)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing bucket keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[rollup.BucketRef]struct{})
	for rows.Next() {
		var fieldID uuid.UUID
		var date time.Time
		var hour int
		if err := rows.Scan(&fieldID, &date, &hour); err != nil {
			return nil, fmt.Errorf("failed to scan bucket key: %w", err)
		}
		keys[rollup.BucketRef{
			FieldID: fieldID,
			Key:     timebucket.Key{Date: date.UTC().Format("2006-01-02"), Hour: hour},
		}] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return keys, nil
}

func (a *aggregationTx) InsertBuckets(ctx context.Context, buckets []db.AggregatedBucket) (int64, error) {
	query := `
		INSERT INTO aggregated_values
			(field_id, bucket_date, bucket_hour, value_min, value_max, value_avg, value_sum, sample_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var inserted int64
	for _, b := range buckets {
		tag, err := a.tx.Exec(ctx, query,
			b.FieldID,
			b.BucketDate,
			b.BucketHour,
			b.ValueMin,
			b.ValueMax,
			b.ValueAvg,
			b.ValueSum,
			b.SampleCount,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert bucket: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func (a *aggregationTx) Commit(ctx context.Context) error {
	return a.tx.Commit(ctx)
}

func (a *aggregationTx) Rollback(ctx context.Context) error {
	return a.tx.Rollback(ctx)
}

func scanReadings(rows pgx.Rows) ([]db.RawReading, error) {
	var readings []db.RawReading
	for rows.Next() {
		var reading db.RawReading
		if err := rows.Scan(
			&reading.FieldID,
			&reading.Value,
			&reading.ReadingTimestamp,
			&reading.IngestTimestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return readings, nil
}

func reverse(readings []db.RawReading) {
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
}
