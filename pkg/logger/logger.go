// Package logger provides the application's structured logger built on
// log/slog.
//
// Handlers log through the request-scoped logger so every line carries the
// request ID:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("order placed", "order_id", id)
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/shashiranjanraj/leppupy/config"
)

var (
	L    *slog.Logger
	sink *MongoHandler
)

func init() {
	L = slog.New(consoleHandler())
	slog.SetDefault(L)
}

func consoleHandler() slog.Handler {
	switch config.AppEnv() {
	case "production", "prod":
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	case "test":
		return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})
	default:
		return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

// EnableMongoSink fans every record out to the console and to the "logs"
// collection of the configured database. Safe to call once at boot; a
// failed connection leaves the console logger in place.
func EnableMongoSink(uri string) error {
	h, err := NewMongoHandler(uri, config.DatabaseName(), "logs")
	if err != nil {
		return err
	}
	sink = h
	L = slog.New(NewMultiHandler(consoleHandler(), h))
	slog.SetDefault(L)
	return nil
}

// Close flushes the Mongo sink if one is enabled.
func Close() {
	if sink != nil {
		sink.Close()
		sink = nil
	}
}

type ctxKey struct{}

// WithCtx returns the logger injected by the request logging middleware, or
// the base logger when ctx carries none.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores log in ctx for WithCtx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
