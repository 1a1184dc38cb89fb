// Package main is the entry point for the Source Registry API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newsnow-ops/source-registry-server/cmd/source-registry-api/app"
	"github.com/newsnow-ops/source-registry-server/internal/config"
)

// getLogLevel parses the SOURCE_REGISTRY_LOG_LEVEL environment variable and returns the corresponding slog.Level.
// Falls back to LOG_LEVEL for backward compatibility.
// Defaults to slog.LevelInfo if neither is set or if the value is invalid.
func getLogLevel() slog.Level {
	// Create a Viper instance for application-level config
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")

	// Fall back to LOG_LEVEL without prefix for backward compatibility
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

// zapLevel converts an slog level to the zap level zapr compares it against.
// zapr maps slog levels below Info to negative zap levels one for one, and logr
// checks Warn records against the Info level, so the zap core never filters above
// Info; traceHandler applies the configured minimum instead.
func zapLevel(level slog.Level) zapcore.Level {
	if level >= slog.LevelInfo {
		return zapcore.InfoLevel
	}
	return zapcore.Level(level)
}

// newZapLogger builds a JSON logger writing to stderr, keeping stdout clean for
// commands that output data (e.g., version --format json)
func newZapLogger(level slog.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// traceHandler wraps an slog.Handler to automatically inject OpenTelemetry
// trace_id and span_id into every log record, enabling log-trace correlation.
type traceHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.level != nil && level < h.level.Level() {
		return false
	}
	return h.Handler.Enabled(ctx, level)
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

func main() {
	level := getLogLevel()
	zapLogger, err := newZapLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	handler := &traceHandler{
		Handler: logr.ToSlogHandler(zapr.NewLogger(zapLogger)),
		level:   level,
	}
	slog.SetDefault(slog.New(handler))

	// OpenTelemetry reports exporter errors through the same handler
	otel.SetLogger(logr.FromSlogHandler(handler))

	err = app.NewRootCmd().Execute()
	_ = zapLogger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
