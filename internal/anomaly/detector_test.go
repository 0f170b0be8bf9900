package anomaly_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/septivank/telemetry-insight-worker/internal/anomaly"
	"github.com/septivank/telemetry-insight-worker/internal/db"
	"github.com/septivank/telemetry-insight-worker/internal/fieldkind"
)

func newField(name, unit string, kind fieldkind.Kind) *db.SensorField {
	return &db.SensorField{
		ID:   uuid.New(),
		Name: name,
		Unit: unit,
		Kind: kind,
	}
}

// repeated builds a newest-first sample slice of n copies of v.
func repeated(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDetectSingle_InsufficientContext(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Temperature", "°C", fieldkind.BoundedComfort)

	// 0.0 would normally be flagged, but with too little history the
	// detector stays quiet.
	samples := repeated(0.0, 10)

	anomalous, _ := d.DetectSingle(field, samples)
	if anomalous {
		t.Error("expected no anomaly with fewer than minSamples of context")
	}
}

func TestDetectSingle_ComfortZeroIsSensorFault(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Temperature", "°C", fieldkind.BoundedComfort)

	samples := repeated(23.0, 30)
	samples[0] = 0.0

	anomalous, msg := d.DetectSingle(field, samples)
	if !anomalous {
		t.Fatal("expected 0.0 reading to be flagged")
	}
	if !strings.Contains(msg, "sensor fault") {
		t.Errorf("expected sensor fault message, got %q", msg)
	}
}

func TestDetectSingle_ComfortInRange(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Temperature", "°C", fieldkind.BoundedComfort)

	samples := repeated(23.0, 30)

	anomalous, msg := d.DetectSingle(field, samples)
	if anomalous {
		t.Errorf("23.0°C is inside the comfort range, got flagged: %q", msg)
	}
}

func TestDetectSingle_ComfortHighTemperature(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Temperature", "°C", fieldkind.BoundedComfort)

	samples := repeated(23.0, 30)
	samples[0] = 28.0

	anomalous, msg := d.DetectSingle(field, samples)
	if !anomalous {
		t.Fatal("expected 28.0°C to be flagged above the comfort range")
	}
	if !strings.Contains(msg, "high") {
		t.Errorf("expected high-range message, got %q", msg)
	}
}

func TestDetectSingle_ComfortLowHumidity(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Humidity", "%RH", fieldkind.BoundedComfort)

	samples := repeated(45.0, 30)
	samples[0] = 20.0

	anomalous, msg := d.DetectSingle(field, samples)
	if !anomalous {
		t.Fatal("expected 20%% humidity to be flagged below the comfort range")
	}
	if !strings.Contains(msg, "low") {
		t.Errorf("expected low-range message, got %q", msg)
	}
}

func TestDetectSingle_CounterBurstOnQuietBaseline(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Motion", "bool", fieldkind.Counter)

	// Newest minute has 12 events, everything before is silent.
	samples := append(repeated(1.0, 12), repeated(0.0, 288)...)

	anomalous, msg := d.DetectSingle(field, samples)
	if !anomalous {
		t.Fatal("expected a burst against a quiet baseline to be flagged")
	}
	if !strings.Contains(msg, "unusual activity") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestDetectSingle_CounterQuietStaysQuiet(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Motion", "bool", fieldkind.Counter)

	samples := repeated(0.0, 300)

	anomalous, _ := d.DetectSingle(field, samples)
	if anomalous {
		t.Error("an all-quiet counter series must not be flagged")
	}
}

func TestDetectSingle_CounterSilenceOnBusyBaseline(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Motion", "bool", fieldkind.Counter)

	// Newest minute is dead silent while every prior minute saw 12
	// events.
	samples := append(repeated(0.0, 12), repeated(1.0, 288)...)

	anomalous, msg := d.DetectSingle(field, samples)
	if !anomalous {
		t.Fatal("expected sudden silence on a busy baseline to be flagged")
	}
	if !strings.Contains(msg, "dropped to zero") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestDetectSingle_CounterSteadyBusyBaseline(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Motion", "bool", fieldkind.Counter)

	samples := repeated(1.0, 300)

	anomalous, _ := d.DetectSingle(field, samples)
	if anomalous {
		t.Error("a steady busy counter series must not be flagged")
	}
}

func TestDetectSingle_ZScoreSpikeHigh(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Power", "W", fieldkind.ContinuousMetric)

	samples := append(repeated(100.0, 3), repeated(10.0, 57)...)

	anomalous, msg := d.DetectSingle(field, samples)
	if !anomalous {
		t.Fatal("expected a 10x spike on a flat series to be flagged")
	}
	if !strings.Contains(msg, "HIGH") {
		t.Errorf("expected HIGH direction, got %q", msg)
	}
}

func TestDetectSingle_ZScoreSpikeLow(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Power", "W", fieldkind.ContinuousMetric)

	samples := append(repeated(0.5, 3), repeated(10.0, 57)...)

	anomalous, msg := d.DetectSingle(field, samples)
	if !anomalous {
		t.Fatal("expected a sharp drop on a flat series to be flagged")
	}
	if !strings.Contains(msg, "LOW") {
		t.Errorf("expected LOW direction, got %q", msg)
	}
}

func TestDetectSingle_ZScoreFlatSeries(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())
	field := newField("Power", "W", fieldkind.ContinuousMetric)

	samples := repeated(10.0, 60)

	anomalous, _ := d.DetectSingle(field, samples)
	if anomalous {
		t.Error("a flat continuous series must not be flagged")
	}
}

func TestDetectSingle_CounterContextShorterThanMinute(t *testing.T) {
	// A configured minimum below one minute block must degrade to not
	// anomalous, not blow up on the block slice.
	d := anomaly.NewDetector(5, anomaly.DefaultComfortConfig())
	field := newField("Motion", "bool", fieldkind.Counter)

	anomalous, _ := d.DetectSingle(field, repeated(1.0, 6))
	if anomalous {
		t.Error("counter context shorter than a minute must not be flagged")
	}
}

func TestDetectSingle_TinyContinuousContext(t *testing.T) {
	d := anomaly.NewDetector(2, anomaly.DefaultComfortConfig())
	field := newField("Power", "W", fieldkind.ContinuousMetric)

	anomalous, _ := d.DetectSingle(field, []float64{500, 10})
	if anomalous {
		t.Error("two samples are no baseline to score against")
	}
}

func TestDetectSingle_NilField(t *testing.T) {
	d := anomaly.NewDetector(20, anomaly.DefaultComfortConfig())

	anomalous, _ := d.DetectSingle(nil, repeated(10.0, 60))
	if anomalous {
		t.Error("nil field must not produce an anomaly")
	}
}
