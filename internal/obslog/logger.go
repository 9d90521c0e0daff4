// Package obslog provides structured logging for the session/changeset core
// using slog. Callers thread session/backend/operation fields through
// context.Context rather than passing a logger handle around; Init chooses
// the sink (file under baseDir/logs, or stderr as a fallback).
//
//	ctx = obslog.WithSession(ctx, record.Session)
//	ctx = obslog.WithOperation(ctx, "merge")
//	obslog.Info(ctx, "merge succeeded", slog.String("commit", hash))
package obslog

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LevelEnvVar is the environment variable that controls log level.
const LevelEnvVar = "SESSIONCTL_LOG_LEVEL"

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// Init installs a JSON logger writing to w at the level named by the
// SESSIONCTL_LOG_LEVEL environment variable (default INFO). Pass nil to
// reset to the stderr default.
func Init(w *os.File) {
	mu.Lock()
	defer mu.Unlock()

	level := parseLevel(os.Getenv(LevelEnvVar))
	sink := os.Stderr
	if w != nil {
		sink = w
	}
	logger = slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level}))
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs at DEBUG level with context values automatically extracted.
func Debug(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelDebug, msg, attrs...) }

// Info logs at INFO level with context values automatically extracted.
func Info(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelInfo, msg, attrs...) }

// Warn logs at WARN level with context values automatically extracted.
// Storage-backend corruption and other locally-recovered conditions are
// logged at this level.
func Warn(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelWarn, msg, attrs...) }

// Error logs at ERROR level with context values automatically extracted.
func Error(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelError, msg, attrs...) }

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := getLogger()

	var allAttrs []any
	if s := SessionFromContext(ctx); s != "" {
		allAttrs = append(allAttrs, slog.String("session", s))
	}
	if b := BackendFromContext(ctx); b != "" {
		allAttrs = append(allAttrs, slog.String("backend", b))
	}
	if op := OperationFromContext(ctx); op != "" {
		allAttrs = append(allAttrs, slog.String("operation", op))
	}
	allAttrs = append(allAttrs, attrs...)

	l.Log(ctx, level, msg, allAttrs...)
}
