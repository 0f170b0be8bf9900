package validator_test

import (
	"errors"
	"testing"
	"time"

	"github.com/septivank/telemetry-insight-worker/internal/anomaly"
	"github.com/septivank/telemetry-insight-worker/internal/validator"
)

func TestValidateWindowMinutes(t *testing.T) {
	v := validator.NewValidator(1440)

	if err := v.ValidateWindowMinutes(60); err != nil {
		t.Errorf("60 minutes should be valid: %v", err)
	}
	if err := v.ValidateWindowMinutes(0); !errors.Is(err, validator.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for zero minutes, got %v", err)
	}
	if err := v.ValidateWindowMinutes(-5); !errors.Is(err, validator.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for negative minutes, got %v", err)
	}
	if err := v.ValidateWindowMinutes(2000); !errors.Is(err, validator.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery above the cap, got %v", err)
	}
}

func TestValidateWindowMinutes_NoCap(t *testing.T) {
	v := validator.NewValidator(0)

	if err := v.ValidateWindowMinutes(100000); err != nil {
		t.Errorf("uncapped validator should accept any positive value: %v", err)
	}
}

func TestValidateHistoryRange(t *testing.T) {
	v := validator.NewValidator(0)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	if err := v.ValidateHistoryRange(start, end); err != nil {
		t.Errorf("ordered range should be valid: %v", err)
	}
	if err := v.ValidateHistoryRange(end, start); !errors.Is(err, validator.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for inverted range, got %v", err)
	}
	if err := v.ValidateHistoryRange(start, start); !errors.Is(err, validator.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for empty range, got %v", err)
	}
	if err := v.ValidateHistoryRange(time.Time{}, end); !errors.Is(err, validator.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for zero start, got %v", err)
	}
}

func TestValidateResolution(t *testing.T) {
	v := validator.NewValidator(0)

	for _, ok := range []string{"raw", "aggregated"} {
		if err := v.ValidateResolution(ok); err != nil {
			t.Errorf("resolution %q should be valid: %v", ok, err)
		}
	}
	if err := v.ValidateResolution("hourly"); !errors.Is(err, validator.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for unknown resolution, got %v", err)
	}
}

func TestValidateComfort(t *testing.T) {
	v := validator.NewValidator(0)

	if err := v.ValidateComfort(anomaly.DefaultComfortConfig()); err != nil {
		t.Errorf("default comfort ranges should be valid: %v", err)
	}

	bad := anomaly.ComfortConfig{TempMin: 26, TempMax: 20, HumMin: 30, HumMax: 60}
	if err := v.ValidateComfort(bad); !errors.Is(err, validator.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for inverted temperature range, got %v", err)
	}

	bad = anomaly.ComfortConfig{TempMin: 20, TempMax: 26, HumMin: 60, HumMax: 30}
	if err := v.ValidateComfort(bad); !errors.Is(err, validator.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for inverted humidity range, got %v", err)
	}
}
