// Package logger builds the zap loggers used across the bot and holds shared field helpers.
package logger

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "telegramdrive"

var levels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// NewLogger builds a logger for level. "json" gives production output with
// ISO8601 timestamps; anything else gives colored console output.
func NewLogger(level, format string) (*zap.Logger, error) {
	zapLevel, ok := levels[level]
	if !ok {
		return nil, fmt.Errorf("invalid log level: %q", level)
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.InitialFields = map[string]any{"service": serviceName}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log, nil
}

// NewDevelopmentLogger logs everything to the console
func NewDevelopmentLogger() (*zap.Logger, error) {
	return NewLogger("debug", "console")
}

// NewProductionLogger logs info and above as JSON
func NewProductionLogger() (*zap.Logger, error) {
	return NewLogger("info", "json")
}

// UserID is the field every per-user log line carries
func UserID(id int64) zap.Field {
	return zap.String("user_id", strconv.FormatInt(id, 10))
}

// Component names the subsystem emitting the log line
func Component(name string) zap.Field {
	return zap.String("component", name)
}
