// Package logging builds the application logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates the application logger. Development environments get
// console-friendly output, everything else structured JSON.
func NewLogger(level, environment string) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if isDevelopment(environment) {
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

func isDevelopment(environment string) bool {
	switch strings.ToLower(environment) {
	case "dev", "development", "local":
		return true
	}
	return false
}
