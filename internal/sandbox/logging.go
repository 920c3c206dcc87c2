package sandbox

import (
	"context"
	"log/slog"
)

// componentLogger provides consistently-shaped log records for the sandbox
// subsystem.
type componentLogger struct {
	baseFields []slog.Attr
}

func newComponentLogger() *componentLogger {
	return &componentLogger{
		baseFields: []slog.Attr{
			slog.String("component", "sandbox"),
		},
	}
}

// logExecution logs run lifecycle events with consistent structure.
func (cl *componentLogger) logExecution(level slog.Level, message, executionID, sessionID string, additionalFields ...slog.Attr) {
	fields := make([]slog.Attr, 0, len(cl.baseFields)+3+len(additionalFields))
	fields = append(fields, cl.baseFields...)
	fields = append(fields,
		slog.String("execution_id", executionID),
		slog.String("session_id", sessionID),
		slog.String("event_type", "execution"),
	)
	fields = append(fields, additionalFields...)

	slog.LogAttrs(context.TODO(), level, message, fields...)
}

// logPerformance logs run metrics. Failed runs are logged at warning level
// so they stand out in monitoring.
func (cl *componentLogger) logPerformance(executionID string, metrics Metrics) {
	fields := make([]slog.Attr, 0, len(cl.baseFields)+6)
	fields = append(fields, cl.baseFields...)
	fields = append(fields,
		slog.String("execution_id", executionID),
		slog.String("event_type", "performance"),
		slog.Duration("compilation_time", metrics.CompilationTime),
		slog.Duration("execution_time", metrics.ExecutionTime),
		slog.Int64("commands_executed", metrics.CommandsExecuted),
		slog.Int64("memory_used", metrics.MemoryUsedBytes),
		slog.Bool("success", metrics.Success),
	)
	if metrics.ErrorKind != "" {
		fields = append(fields, slog.String("error_kind", string(metrics.ErrorKind)))
	}

	level := slog.LevelDebug
	if !metrics.Success {
		level = slog.LevelWarn
	}
	slog.LogAttrs(context.TODO(), level, "Execution metrics", fields...)
}

var sandboxLogger = newComponentLogger()
