package rollup_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/telemetry-insight-worker/internal/fieldkind"
	"github.com/septivank/telemetry-insight-worker/internal/rollup"
)

func TestSummarizeHourly_CounterUsesSum(t *testing.T) {
	fieldID := uuid.New()
	base := time.Date(2026, 1, 10, 14, 0, 0, 0, time.UTC)

	var candidates []rollup.CandidateReading
	for i := 0; i < 12; i++ {
		candidates = append(candidates, rollup.CandidateReading{
			FieldID:          fieldID,
			Kind:             fieldkind.Counter,
			Value:            1.0,
			ReadingTimestamp: base.Add(time.Duration(i) * 5 * time.Minute),
		})
	}

	buckets := rollup.SummarizeHourly(candidates)

	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	b := buckets[0]
	if b.ValueSum == nil || *b.ValueSum != 12.0 {
		t.Errorf("expected sum 12, got %v", b.ValueSum)
	}
	if b.ValueAvg != nil {
		t.Errorf("counter bucket must have a null avg, got %v", *b.ValueAvg)
	}
	if b.SampleCount != 12 {
		t.Errorf("expected sample count 12, got %d", b.SampleCount)
	}
	if b.BucketHour != 14 {
		t.Errorf("expected hour 14, got %d", b.BucketHour)
	}
}

func TestSummarizeHourly_NonCounterUsesAvg(t *testing.T) {
	fieldID := uuid.New()
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	candidates := []rollup.CandidateReading{
		{FieldID: fieldID, Kind: fieldkind.ContinuousMetric, Value: 10, ReadingTimestamp: base},
		{FieldID: fieldID, Kind: fieldkind.ContinuousMetric, Value: 20, ReadingTimestamp: base.Add(10 * time.Minute)},
		{FieldID: fieldID, Kind: fieldkind.ContinuousMetric, Value: 30, ReadingTimestamp: base.Add(20 * time.Minute)},
	}

	buckets := rollup.SummarizeHourly(candidates)

	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	b := buckets[0]
	if b.ValueAvg == nil || *b.ValueAvg != 20.0 {
		t.Errorf("expected avg 20, got %v", b.ValueAvg)
	}
	if b.ValueSum != nil {
		t.Errorf("non-counter bucket must have a null sum, got %v", *b.ValueSum)
	}
	if b.ValueMin != 10 || b.ValueMax != 30 {
		t.Errorf("expected min 10 max 30, got %v/%v", b.ValueMin, b.ValueMax)
	}
}

func TestSummarizeHourly_SplitsAcrossHours(t *testing.T) {
	fieldID := uuid.New()

	candidates := []rollup.CandidateReading{
		{FieldID: fieldID, Kind: fieldkind.Generic, Value: 1, ReadingTimestamp: time.Date(2026, 1, 10, 9, 59, 0, 0, time.UTC)},
		{FieldID: fieldID, Kind: fieldkind.Generic, Value: 2, ReadingTimestamp: time.Date(2026, 1, 10, 10, 1, 0, 0, time.UTC)},
	}

	buckets := rollup.SummarizeHourly(candidates)

	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].BucketHour != 9 || buckets[1].BucketHour != 10 {
		t.Errorf("expected hours 9 and 10 in order, got %d and %d", buckets[0].BucketHour, buckets[1].BucketHour)
	}
}

func TestSummarizeHourly_Empty(t *testing.T) {
	if buckets := rollup.SummarizeHourly(nil); len(buckets) != 0 {
		t.Errorf("expected no buckets for empty input, got %d", len(buckets))
	}
}
