package http

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/example/club-registration/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.Resolve(context.Background(), logger)
}

// handlerLogger tags the request logger with the handler, operation and the
// matched chi route pattern.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := logging.Resolve(ctx, fallback).With("handler", handlerName, "operation", operation)
	if rctx := chi.RouteContext(ctx); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			logger = logger.With("route", pattern)
		}
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return logger
}
