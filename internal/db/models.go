package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/septivank/telemetry-insight-worker/internal/fieldkind"
)

// SensorField is the field metadata row. Kind is resolved once at
// creation/import time (fieldkind.Classify) and stored here.
type SensorField struct {
	ID        uuid.UUID
	Name      string
	Unit      string
	Kind      fieldkind.Kind
	CreatedAt time.Time
}

// RawReading is one measurement in the append-only raw log. Readings are
// written by the ingestion subsystem and never mutated here.
type RawReading struct {
	FieldID          uuid.UUID
	Value            float64
	ReadingTimestamp time.Time
	IngestTimestamp  time.Time
}

// AggregatedBucket is one hour's precomputed summary for one field.
// Exactly one of ValueAvg and ValueSum is populated: sum for counter
// fields, avg for everything else.
type AggregatedBucket struct {
	FieldID     uuid.UUID
	BucketDate  time.Time
	BucketHour  int
	ValueMin    float64
	ValueMax    float64
	ValueAvg    *float64
	ValueSum    *float64
	SampleCount int
}

// LatestValueEntry caches the most recently ingested reading per field.
// Upserted by the ingestion path; this engine only reads it.
type LatestValueEntry struct {
	FieldID          uuid.UUID
	Value            float64
	ReadingTimestamp time.Time
	IngestTimestamp  time.Time
}

// SeriesPoint is one (timestamp, value) row of a computed series, such
// as per-minute counter density.
type SeriesPoint struct {
	Timestamp time.Time
	Value     float64
}
