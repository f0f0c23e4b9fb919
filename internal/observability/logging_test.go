package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/fieldops/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zapcore.Level
	}{
		{name: "debug", level: "DEBUG", want: zapcore.DebugLevel},
		{name: "warn", level: "warn", want: zapcore.WarnLevel},
		{name: "unknown falls back to info", level: "chatty", want: zapcore.InfoLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := NewLogger(config.LoggerConfig{Level: tc.level}, config.AppConfig{Name: "fieldops", Env: "test"})
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			if !logger.Core().Enabled(tc.want) {
				t.Fatalf("level %s not enabled", tc.want)
			}
			if tc.want > zapcore.DebugLevel && logger.Core().Enabled(tc.want-1) {
				t.Fatalf("level below %s enabled", tc.want)
			}
		})
	}
}
