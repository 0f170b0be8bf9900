package validator

import (
	"errors"
	"fmt"
	"time"

	"github.com/septivank/telemetry-insight-worker/internal/anomaly"
)

// ErrInvalidQuery marks caller input rejected before any store access.
var ErrInvalidQuery = errors.New("invalid query")

// Validator checks query parameters with configurable bounds.
type Validator struct {
	maxWindowMinutes int
}

// NewValidator creates a validator. maxWindowMinutes caps window
// queries; zero or negative disables the cap.
func NewValidator(maxWindowMinutes int) *Validator {
	return &Validator{maxWindowMinutes: maxWindowMinutes}
}

// ValidateWindowMinutes checks the window length of a recent-window
// query.
func (v *Validator) ValidateWindowMinutes(minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: window minutes must be positive, got %d", ErrInvalidQuery, minutes)
	}
	if v.maxWindowMinutes > 0 && minutes > v.maxWindowMinutes {
		return fmt.Errorf("%w: window minutes %d exceeds maximum %d", ErrInvalidQuery, minutes, v.maxWindowMinutes)
	}
	return nil
}

// ValidateHistoryRange checks a historical query range.
func (v *Validator) ValidateHistoryRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidQuery)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidQuery,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

// ValidateResolution checks a resolution hint.
func (v *Validator) ValidateResolution(resolution string) error {
	switch resolution {
	case "raw", "aggregated":
		return nil
	default:
		return fmt.Errorf("%w: unknown resolution %q", ErrInvalidQuery, resolution)
	}
}

// ValidateComfort checks that comfort range bounds are ordered.
func (v *Validator) ValidateComfort(c anomaly.ComfortConfig) error {
	if c.TempMin >= c.TempMax {
		return fmt.Errorf("%w: temperature range [%.1f, %.1f] is not ordered", ErrInvalidQuery, c.TempMin, c.TempMax)
	}
	if c.HumMin >= c.HumMax {
		return fmt.Errorf("%w: humidity range [%.1f, %.1f] is not ordered", ErrInvalidQuery, c.HumMin, c.HumMax)
	}
	return nil
}
