package fieldkind

import "strings"

// Kind is the semantic class of a sensor field. It is resolved once when
// the field metadata is created or imported and stored alongside the
// field; queries read the stored kind and never re-derive it.
type Kind string

const (
	// Counter fields carry discrete event pulses (motion, door state).
	// Density and sums matter, averages do not.
	Counter Kind = "counter"
	// BoundedComfort fields have a known acceptable range (temperature,
	// humidity).
	BoundedComfort Kind = "bounded_comfort"
	// ContinuousMetric fields are continuously varying physical or
	// electrical quantities (power, current, energy, illuminance).
	ContinuousMetric Kind = "continuous_metric"
	// Generic is the fallback for everything else.
	Generic Kind = "generic"
)

// Parse maps a stored kind string back to a Kind. Unknown values fall
// back to Generic rather than failing the read.
func Parse(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Counter:
		return Counter
	case BoundedComfort:
		return BoundedComfort
	case ContinuousMetric:
		return ContinuousMetric
	default:
		return Generic
	}
}

// Classify infers the kind from field display name and unit metadata.
// This runs once at field creation/import time.
func Classify(name, unit string) Kind {
	n := strings.ToLower(name)
	u := strings.ToLower(unit)

	switch {
	case containsAny(n, "motion", "movement", "state", "door", "presence") ||
		containsAny(u, "bool", "pulse"):
		return Counter
	case containsAny(n, "temperature", "humidity") ||
		containsAny(u, "temp", "cel", "°c", "hum", "%rh"):
		return BoundedComfort
	case containsAny(n, "current", "power", "energy", "illuminance", "light", "consumption") ||
		containsAny(u, "amp", "watt", "kwh", "lux"):
		return ContinuousMetric
	default:
		return Generic
	}
}

// IsHumidity distinguishes humidity from temperature within the
// BoundedComfort kind so the right comfort range applies.
func IsHumidity(name, unit string) bool {
	n := strings.ToLower(name)
	u := strings.ToLower(unit)
	return containsAny(n, "humidity") || containsAny(u, "hum", "%rh", "%")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
