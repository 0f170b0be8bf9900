package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/septivank/telemetry-insight-worker/internal/db"
	"github.com/septivank/telemetry-insight-worker/internal/fieldkind"
)

const (
	// batchMinPoints is the minimum batch size worth annotating.
	batchMinPoints = 5
	// localRadius is the neighborhood half-width for the local outlier
	// check on continuous metrics.
	localRadius = 2
	// noiseFraction of the batch median becomes the scale floor, which
	// keeps sensitivity relative whether values sit near 1 or 10,000.
	noiseFraction = 0.10
	// genericZThreshold is the global z-score cutoff for the fallback.
	genericZThreshold = 3.5
)

// DetectBatch annotates an ordered batch of points in place and returns
// it. Classification happens once from the field kind. comfort overrides
// the detector's configured ranges when non-nil. Batches shorter than
// five points are returned unchanged.
func (d *Detector) DetectBatch(field *db.SensorField, points []Point, comfort *ComfortConfig) []Point {
	if field == nil || len(points) < batchMinPoints {
		return points
	}
	cfg := d.comfort
	if comfort != nil {
		cfg = *comfort
	}

	switch field.Kind {
	case fieldkind.Counter:
		d.annotateCounterBatch(points)
	case fieldkind.BoundedComfort:
		for i := range points {
			points[i].Anomalous, points[i].Message = d.detectComfort(field, points[i].Value, cfg)
		}
	case fieldkind.ContinuousMetric:
		d.annotateLocalOutliers(points)
	default:
		d.annotateGlobalZScore(points)
	}
	return points
}

// annotateCounterBatch flags density points above an adaptive threshold
// learned from the batch itself.
func (d *Detector) annotateCounterBatch(points []Point) {
	mean := batchMean(points)
	threshold := math.Max(5, mean*2.5)

	for i := range points {
		points[i].Anomalous = false
		points[i].Message = ""
		if points[i].Value > threshold {
			points[i].Anomalous = true
			points[i].Message = fmt.Sprintf("activity burst (%d events)", int(points[i].Value))
		}
	}
}

// annotateLocalOutliers runs the robust local z-score for continuous
// metrics: each point is compared against its immediate neighbors, with
// the scale floored at a noise level learned from the batch median.
func (d *Detector) annotateLocalOutliers(points []Point) {
	values := make([]float64, len(points))
	for i := range points {
		values[i] = points[i].Value
	}

	noiseFloor := stdDevFloor
	if m := median(values); m != 0 {
		noiseFloor = math.Abs(m) * noiseFraction
	}

	for i := range points {
		points[i].Anomalous = false
		points[i].Message = ""

		neighbors := neighborhood(values, i, localRadius)
		if len(neighbors) == 0 {
			continue
		}
		localMean := sum(neighbors) / float64(len(neighbors))
		scale := math.Max(stdDev(neighbors, localMean), noiseFloor)

		z := (values[i] - localMean) / scale
		if math.Abs(z) <= zThreshold {
			continue
		}
		if values[i] > localMean {
			points[i].Anomalous = true
			points[i].Message = fmt.Sprintf("spike: %.2f (ref %.2f)", values[i], localMean)
		} else if values[i] < localMean*0.5 {
			// Gentle decreases stay unflagged; only real drops count.
			points[i].Anomalous = true
			points[i].Message = fmt.Sprintf("drop: %.2f (ref %.2f)", values[i], localMean)
		}
	}
}

// annotateGlobalZScore is the generic fallback: one global mean/stddev
// for the whole batch.
func (d *Detector) annotateGlobalZScore(points []Point) {
	mean := batchMean(points)
	values := make([]float64, len(points))
	for i := range points {
		values[i] = points[i].Value
	}
	dev := stdDev(values, mean)
	if dev < stdDevFloor {
		dev = stdDevFloor
	}

	for i := range points {
		points[i].Anomalous = false
		points[i].Message = ""
		z := (points[i].Value - mean) / dev
		if math.Abs(z) > genericZThreshold {
			points[i].Anomalous = true
			points[i].Message = fmt.Sprintf("outlier value: %.2f", points[i].Value)
		}
	}
}

// neighborhood returns the values within radius of index i, excluding
// the value at i itself.
func neighborhood(values []float64, i, radius int) []float64 {
	start := i - radius
	if start < 0 {
		start = 0
	}
	end := i + radius + 1
	if end > len(values) {
		end = len(values)
	}
	out := make([]float64, 0, end-start-1)
	for j := start; j < end; j++ {
		if j != i {
			out = append(out, values[j])
		}
	}
	return out
}

func batchMean(points []Point) float64 {
	total := 0.0
	for i := range points {
		total += points[i].Value
	}
	return total / float64(len(points))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
