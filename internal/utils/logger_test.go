// internal/utils/logger_test.go
package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q): expected error=%v, got %v", tt.in, tt.wantErr, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "console"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected debug level to be enabled")
	}

	if _, err := NewLogger(LoggingConfig{Format: "xml"}); err == nil {
		t.Error("Expected error for unknown format")
	}
}
