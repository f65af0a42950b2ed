package telemetry

import (
	"context"
	"log/slog"

	"github.com/hazaarlabs/dbi/internal/debug"
)

// LogTelemetry writes every event to the debug logger. Events are only visible when
// debug logging is enabled.
type LogTelemetry struct {
	logger func() *slog.Logger
}

var _ Telemetry = (*LogTelemetry)(nil)

// NewLogTelemetry creates a telemetry adapter that logs through internal/debug.
func NewLogTelemetry() *LogTelemetry {
	return &LogTelemetry{logger: func() *slog.Logger { return debug.With("telemetry", "log") }}
}

func (l *LogTelemetry) RecordQuery(ctx context.Context, info QueryInfo) {
	l.logger().DebugContext(ctx, "query",
		"dialect", info.Dialect,
		"statement", info.Statement,
		"duration", info.Duration,
		"success", info.Success,
		"rows", info.RowsAffected)
}

func (l *LogTelemetry) RecordError(ctx context.Context, info ErrorInfo) {
	l.logger().DebugContext(ctx, "error",
		"dialect", info.Dialect,
		"statement", info.Statement,
		"query", info.Query,
		"error", info.Error)
}

func (l *LogTelemetry) RecordConnection(ctx context.Context, info ConnectionInfo) {
	l.logger().DebugContext(ctx, "connection",
		"event", info.Event,
		"dialect", info.Dialect,
		"duration", info.Duration,
		"success", info.Success,
		"active", info.ActiveConnections)
}

func (l *LogTelemetry) RecordCompile(ctx context.Context, info CompileInfo) {
	l.logger().DebugContext(ctx, "compile",
		"dialect", info.Dialect,
		"statement", info.Statement,
		"duration", info.Duration,
		"success", info.Success,
		"bound", info.Bound)
}

func (l *LogTelemetry) Flush(context.Context) error { return nil }
func (l *LogTelemetry) Close(context.Context) error { return nil }
