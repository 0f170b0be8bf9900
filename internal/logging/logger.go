package logging

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewLogger creates a new structured logger
func NewLogger(serviceName string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithField returns a logger scoped to one sensor field.
func WithField(logger *zap.Logger, fieldID uuid.UUID) *zap.Logger {
	return logger.With(zap.String("field_id", fieldID.String()))
}

// WithRunID returns a logger scoped to one rollup run.
func WithRunID(logger *zap.Logger, runID string) *zap.Logger {
	return logger.With(zap.String("run_id", runID))
}
