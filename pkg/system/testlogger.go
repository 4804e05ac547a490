package system

import (
	"go.uber.org/zap"
)

// NewTestLogger returns a sugared development logger without automatic
// stacktraces, for use in tests.
func NewTestLogger() *zap.SugaredLogger {
	return NewTestZapLogger().Sugar()
}

// NewTestZapLogger returns the non-sugared form of NewTestLogger.
func NewTestZapLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	logger, _ := cfg.Build()
	return logger
}
