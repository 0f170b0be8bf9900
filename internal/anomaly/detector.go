package anomaly

import (
	"fmt"
	"math"
	"time"

	"github.com/septivank/telemetry-insight-worker/internal/db"
	"github.com/septivank/telemetry-insight-worker/internal/fieldkind"
)

const (
	// samplesPerMinute assumes the ~5s ingest cadence of the live feed,
	// so 12 samples cover one minute of counter pulses.
	samplesPerMinute = 12
	// zWindow bounds the single-sample z-score context to roughly the
	// last five minutes so the baseline stays sensitive.
	zWindow = 60
	// zThreshold is the single-sample z-score cutoff.
	zThreshold = 3.0
	// stdDevFloor avoids divide-by-zero and over-sensitivity on flat
	// signals.
	stdDevFloor = 0.1
)

// ComfortConfig holds the acceptable ranges for bounded-comfort fields.
type ComfortConfig struct {
	TempMin float64
	TempMax float64
	HumMin  float64
	HumMax  float64
}

// DefaultComfortConfig returns the stock indoor comfort ranges.
func DefaultComfortConfig() ComfortConfig {
	return ComfortConfig{TempMin: 20.0, TempMax: 26.0, HumMin: 30.0, HumMax: 60.0}
}

// Point is one annotated reading returned by the query surface.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Anomalous bool      `json:"anomalous"`
	Message   string    `json:"message,omitempty"`
}

// Detector classifies readings per field kind. It is pure: callers fetch
// the historical context and pass it in, so one detector instance is safe
// to share across fields.
type Detector struct {
	minSamples int
	comfort    ComfortConfig
}

// NewDetector creates a detector. minSamples is the minimum historical
// context required before single-sample detection engages.
func NewDetector(minSamples int, comfort ComfortConfig) *Detector {
	if minSamples <= 0 {
		minSamples = 20
	}
	return &Detector{minSamples: minSamples, comfort: comfort}
}

// DetectSingle classifies the newest reading of a field against its
// recent history. samples must be ordered newest first and include the
// reading under test as samples[0]. With fewer than minSamples of
// context it reports not anomalous.
func (d *Detector) DetectSingle(field *db.SensorField, samples []float64) (bool, string) {
	if field == nil || len(samples) < d.minSamples {
		return false, ""
	}

	switch field.Kind {
	case fieldkind.Counter:
		return d.detectCounterSingle(samples)
	case fieldkind.BoundedComfort:
		return d.detectComfort(field, samples[0], d.comfort)
	default:
		return d.detectZScoreSingle(samples)
	}
}

// detectCounterSingle compares the last minute's event density against
// the per-minute baseline of the preceding history. Thresholds adapt to
// how busy the place normally is.
func (d *Detector) detectCounterSingle(samples []float64) (bool, string) {
	// minSamples is configurable and may sit below one minute block.
	if len(samples) < samplesPerMinute {
		return false, ""
	}
	current := sum(samples[:samplesPerMinute])

	var blockSums []float64
	base := samples[samplesPerMinute:]
	for i := 0; i < len(base); i += samplesPerMinute {
		end := i + samplesPerMinute
		if end > len(base) {
			end = len(base)
		}
		blockSums = append(blockSums, sum(base[i:end]))
	}
	baseline := 0.0
	if len(blockSums) > 0 {
		baseline = sum(blockSums) / float64(len(blockSums))
	}

	switch {
	case baseline < 2:
		// Quiet place: any burst is suspicious.
		if current >= 5 {
			return true, fmt.Sprintf("unusual activity (%d events/min against quiet baseline)", int(current))
		}
	case baseline > 10:
		// Busy place: needs a real surge, or sudden silence.
		if current > baseline*2.5 {
			return true, fmt.Sprintf("traffic spike (%d events/min vs mean %d)", int(current), int(baseline))
		}
		if current == 0 {
			return true, "activity dropped to zero on a busy baseline"
		}
	default:
		if current > math.Max(baseline, 2)*3 {
			return true, fmt.Sprintf("high activity (%d events/min)", int(current))
		}
	}
	return false, ""
}

// detectComfort applies the fixed comfort-range rule. An exact 0.0 is
// always flagged as a probable sensor fault, range aside.
func (d *Detector) detectComfort(field *db.SensorField, value float64, cfg ComfortConfig) (bool, string) {
	min, max, unit := cfg.TempMin, cfg.TempMax, "°C"
	if fieldkind.IsHumidity(field.Name, field.Unit) {
		min, max, unit = cfg.HumMin, cfg.HumMax, "%"
	}

	if value == 0.0 {
		return true, "probable sensor fault (0.0 reading)"
	}
	if value > max {
		return true, fmt.Sprintf("high: %.1f%s (limit %.1f%s)", value, unit, max, unit)
	}
	if value < min {
		return true, fmt.Sprintf("low: %.1f%s (limit %.1f%s)", value, unit, min, unit)
	}
	return false, ""
}

// detectZScoreSingle smooths the newest three samples and scores them
// against the mean/stddev of the older context.
func (d *Detector) detectZScoreSingle(samples []float64) (bool, string) {
	window := samples
	if len(window) > zWindow {
		window = window[:zWindow]
	}
	if len(window) < 3 {
		return false, ""
	}

	smoothed := sum(window[:3]) / 3
	base := window[3:]
	if len(base) == 0 {
		return false, ""
	}

	baseMean := sum(base) / float64(len(base))
	dev := stdDev(base, baseMean)
	if dev < stdDevFloor {
		dev = stdDevFloor
	}

	z := (smoothed - baseMean) / dev
	if math.Abs(z) > zThreshold {
		direction := "HIGH"
		if z < 0 {
			direction = "LOW"
		}
		return true, fmt.Sprintf("anomalous %s spike (%.1f)", direction, smoothed)
	}
	return false, ""
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}
