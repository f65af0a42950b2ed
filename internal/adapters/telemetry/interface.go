// Package telemetry provides telemetry adapter interfaces.
package telemetry

import (
	"context"
	"time"
)

// Telemetry defines the telemetry adapter interface.
type Telemetry interface {
	// RecordQuery records a statement execution.
	RecordQuery(ctx context.Context, info QueryInfo)

	// RecordError records an error.
	RecordError(ctx context.Context, info ErrorInfo)

	// RecordConnection records a connection event.
	RecordConnection(ctx context.Context, info ConnectionInfo)

	// RecordCompile records a statement compilation.
	RecordCompile(ctx context.Context, info CompileInfo)

	// Flush flushes any buffered telemetry data.
	Flush(ctx context.Context) error

	// Close closes the telemetry adapter.
	Close(ctx context.Context) error
}

// QueryInfo contains information about an executed statement.
type QueryInfo struct {
	// Dialect is the SQL dialect of the connection.
	Dialect string

	// Statement is the statement kind (select, insert, update, delete, truncate).
	Statement string

	// Duration is how long the statement took.
	Duration time.Duration

	// Success indicates if the statement succeeded.
	Success bool

	// RowsAffected is the number of rows returned or affected.
	RowsAffected int64
}

// ErrorInfo contains information about an error.
type ErrorInfo struct {
	Error     error
	Dialect   string
	Statement string
	// Query is the SQL text, if any.
	Query string
}

// ConnectionInfo contains information about a connection event.
type ConnectionInfo struct {
	// Event is the event type (connect, disconnect, error).
	Event string

	Dialect  string
	Duration time.Duration
	Success  bool

	// ActiveConnections is the number of open connections.
	ActiveConnections int
}

// CompileInfo contains information about a statement compilation.
type CompileInfo struct {
	Dialect   string
	Statement string
	Duration  time.Duration
	Success   bool
	// Bound is the number of bound parameters.
	Bound int
}

// Config holds telemetry configuration.
type Config struct {
	// Type is the telemetry type (noop, prometheus).
	Type string

	// Namespace prefixes every metric name. Defaults to "dbi".
	Namespace string
}
