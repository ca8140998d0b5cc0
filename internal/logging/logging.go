// Package logging builds the ambient zap.Logger every HydraMCP
// component logs through. Grounded on cmd/agentflow/main.go's
// initLogger in the teacher repo, trimmed to a single JSON encoder
// (no console/dev format switch) and pinned to stderr: stdout carries
// the JSON-RPC stream (§6), so nothing may ever write a log line
// there.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JustHereToHelp/HydraMCP/config"
)

// New builds a zap.Logger at the level named in cfg (debug/info/warn/
// error, defaulting to info), writing structured JSON to stderr.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level := parseLevel(cfg.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return zap.NewNop(), err
	}
	return logger, nil
}

func parseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
