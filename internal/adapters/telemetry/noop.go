package telemetry

import "context"

// NoopTelemetry discards every event. It is the default when no telemetry type is
// configured.
type NoopTelemetry struct{}

var _ Telemetry = (*NoopTelemetry)(nil)

// NewNoopTelemetry creates a new no-op telemetry adapter.
func NewNoopTelemetry() *NoopTelemetry {
	return &NoopTelemetry{}
}

func (*NoopTelemetry) RecordQuery(context.Context, QueryInfo)           {}
func (*NoopTelemetry) RecordError(context.Context, ErrorInfo)           {}
func (*NoopTelemetry) RecordConnection(context.Context, ConnectionInfo) {}
func (*NoopTelemetry) RecordCompile(context.Context, CompileInfo)       {}
func (*NoopTelemetry) Flush(context.Context) error                      { return nil }
func (*NoopTelemetry) Close(context.Context) error                      { return nil }
