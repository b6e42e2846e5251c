package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging across trawl.
const (
	FieldRunID      = "run_id"
	FieldComponent  = "component"
	FieldModule     = "module"
	FieldUnit       = "unit"
	FieldDataSource = "data_source"

	FieldFile         = "file"
	FieldPath         = "path"
	FieldArtifactType = "artifact_type"
	FieldArtifactID   = "artifact_id"

	FieldCount      = "count"
	FieldTotalCount = "total_count"
	FieldDurationMS = "duration_ms"

	FieldError = "error"
	FieldState = "state"
)

type contextKey string

const (
	runIDKey     contextKey = "logger_run_id"
	componentKey contextKey = "logger_component"
)

// WithRunID adds a pipeline run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context as key-value pairs.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, FieldRunID, runID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns base (or the global logger when base is nil)
// decorated with the fields carried by ctx.
func LoggerFromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
//
//	m := &Module{logger: logger.ComponentLogger("recentactivity")}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
