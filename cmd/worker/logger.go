package main

import (
	"github.com/septivank/telemetry-insight-worker/internal/config"
	"github.com/septivank/telemetry-insight-worker/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
