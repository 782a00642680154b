// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
)

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
	logger    *slog.Logger
	enabled   bool
}

// NewRepoLogger creates a new RepoLogger for the given table. A nil logger
// disables it.
func NewRepoLogger(tableName string, logger *slog.Logger) *RepoLogger {
	return &RepoLogger{
		tableName: tableName,
		logger:    logger,
		enabled:   logger != nil,
	}
}

func (l *RepoLogger) log(ctx context.Context, operation string, fields map[string]any) {
	if !l.enabled {
		return
	}
	attrs := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "repository "+operation, attrs...)
}

// LogCreate logs a repository create operation.
func (l *RepoLogger) LogCreate(ctx context.Context, fields map[string]any) {
	l.log(ctx, "create", fields)
}

// LogUpdate logs a repository update operation.
func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]any) {
	l.log(ctx, "update", fields)
}

// LogDelete logs a repository delete operation.
func (l *RepoLogger) LogDelete(ctx context.Context, fields map[string]any) {
	l.log(ctx, "delete", fields)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	if !l.enabled {
		return
	}
	l.logger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
