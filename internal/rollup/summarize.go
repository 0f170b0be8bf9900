package rollup

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/telemetry-insight-worker/internal/db"
	"github.com/septivank/telemetry-insight-worker/internal/fieldkind"
	"github.com/septivank/telemetry-insight-worker/tools/timebucket"
)

// CandidateReading is one raw reading joined with its field kind, as
// selected by the aggregation transaction.
type CandidateReading struct {
	FieldID          uuid.UUID
	Kind             fieldkind.Kind
	Value            float64
	ReadingTimestamp time.Time
}

// BucketRef identifies one (field, date, hour) bucket key.
type BucketRef struct {
	FieldID uuid.UUID
	Key     timebucket.Key
}

// SummarizeHourly groups candidate readings into hourly buckets. Counter
// fields get a sum and a null avg; every other kind gets an avg and a
// null sum. Min, max and count are always computed. Output order is
// deterministic: by field id, then date, then hour.
func SummarizeHourly(candidates []CandidateReading) []db.AggregatedBucket {
	type accumulator struct {
		kind  fieldkind.Kind
		min   float64
		max   float64
		total float64
		count int
	}

	groups := make(map[BucketRef]*accumulator)
	for _, c := range candidates {
		ref := BucketRef{FieldID: c.FieldID, Key: timebucket.Of(c.ReadingTimestamp)}
		acc, ok := groups[ref]
		if !ok {
			acc = &accumulator{kind: c.Kind, min: c.Value, max: c.Value}
			groups[ref] = acc
		}
		if c.Value < acc.min {
			acc.min = c.Value
		}
		if c.Value > acc.max {
			acc.max = c.Value
		}
		acc.total += c.Value
		acc.count++
	}

	buckets := make([]db.AggregatedBucket, 0, len(groups))
	for ref, acc := range groups {
		bucket := db.AggregatedBucket{
			FieldID:     ref.FieldID,
			BucketDate:  ref.Key.DayStart(),
			BucketHour:  ref.Key.Hour,
			ValueMin:    acc.min,
			ValueMax:    acc.max,
			SampleCount: acc.count,
		}
		if acc.kind == fieldkind.Counter {
			total := acc.total
			bucket.ValueSum = &total
		} else {
			avg := acc.total / float64(acc.count)
			bucket.ValueAvg = &avg
		}
		buckets = append(buckets, bucket)
	}

	sort.Slice(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		if a.FieldID != b.FieldID {
			return a.FieldID.String() < b.FieldID.String()
		}
		if !a.BucketDate.Equal(b.BucketDate) {
			return a.BucketDate.Before(b.BucketDate)
		}
		return a.BucketHour < b.BucketHour
	})
	return buckets
}

// refOf rebuilds the bucket key for an existing bucket row.
func refOf(b db.AggregatedBucket) BucketRef {
	return BucketRef{
		FieldID: b.FieldID,
		Key:     timebucket.Key{Date: b.BucketDate.UTC().Format("2006-01-02"), Hour: b.BucketHour},
	}
}
