package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/LavaJover/shvark-settlement-service/internal/config"
)

// New builds the application logger from the log section of the config.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var zapConfig zap.Config
	switch strings.ToLower(cfg.LogFormat) {
	case "console", "text":
		zapConfig = zap.NewDevelopmentConfig()
	default:
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	if out := cfg.LogOutput; out != "" {
		zapConfig.OutputPaths = []string{out}
	}

	return zapConfig.Build()
}
