// internal/utils/logger.go

package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig selects the logger's level and output format
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`       // debug, info, warn, error
	Format      string `yaml:"format" json:"format"`     // json or console
	Development bool   `yaml:"development" json:"development"`
}

// DefaultLoggingConfig returns info-level JSON logging
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info", Format: "json"}
}

// ParseLevel converts a level name to a zap level
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if strings.TrimSpace(level) == "" {
		return zapcore.InfoLevel, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

// NewLogger builds a zap logger from the configuration
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		zc.Encoding = "json"
	case "console":
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
