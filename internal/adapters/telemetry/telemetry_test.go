package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazaarlabs/dbi/internal/debug"
)

func TestNoopTelemetry(t *testing.T) {
	ctx := context.Background()
	telemetry := NewNoopTelemetry()

	telemetry.RecordQuery(ctx, QueryInfo{Dialect: "postgres", Statement: "select", Duration: time.Millisecond, Success: true})
	telemetry.RecordError(ctx, ErrorInfo{Error: errors.New("test error"), Statement: "insert"})
	telemetry.RecordConnection(ctx, ConnectionInfo{Event: "connect", Success: true})
	telemetry.RecordCompile(ctx, CompileInfo{Statement: "select", Success: true})

	assert.NoError(t, telemetry.Flush(ctx))
	assert.NoError(t, telemetry.Close(ctx))
}

func TestPrometheusTelemetry(t *testing.T) {
	ctx := context.Background()
	telemetry := NewPrometheusTelemetry(&Config{Type: "prometheus"})

	telemetry.RecordQuery(ctx, QueryInfo{Dialect: "postgres", Statement: "select", Duration: 100 * time.Millisecond, Success: true, RowsAffected: 3})
	telemetry.RecordQuery(ctx, QueryInfo{Dialect: "postgres", Statement: "select", Duration: 50 * time.Millisecond, Success: true, RowsAffected: 2})
	telemetry.RecordQuery(ctx, QueryInfo{Dialect: "postgres", Statement: "update", Duration: 10 * time.Millisecond, Success: false})
	telemetry.RecordError(ctx, ErrorInfo{Error: errors.New("boom"), Dialect: "postgres", Statement: "update"})
	telemetry.RecordConnection(ctx, ConnectionInfo{Event: "connect", Dialect: "postgres", Success: true, ActiveConnections: 4})
	telemetry.RecordCompile(ctx, CompileInfo{Dialect: "postgres", Statement: "select", Success: true, Bound: 2})

	assert.Equal(t, 2.0, testutil.ToFloat64(telemetry.queryTotal.WithLabelValues("postgres", "select", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.queryTotal.WithLabelValues("postgres", "update", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(telemetry.rowsTotal.WithLabelValues("postgres", "select")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.errorTotal.WithLabelValues("postgres", "update")))
	assert.Equal(t, 4.0, testutil.ToFloat64(telemetry.connections.WithLabelValues("postgres")))

	families, err := telemetry.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "dbi_query_duration_seconds")
	assert.Contains(t, names, "dbi_compile_bound_parameters")

	assert.NoError(t, telemetry.Flush(ctx))
	assert.NoError(t, telemetry.Close(ctx))
}

func TestNewTelemetry(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		want    any
		wantErr bool
	}{
		{name: "nil config", config: nil, want: &NoopTelemetry{}},
		{name: "empty type", config: &Config{}, want: &NoopTelemetry{}},
		{name: "log", config: &Config{Type: "LOG"}, want: &LogTelemetry{}},
		{name: "prometheus", config: &Config{Type: "prometheus", Namespace: "test"}, want: &PrometheusTelemetry{}},
		{name: "unknown", config: &Config{Type: "statsd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTelemetry(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestLogTelemetry(t *testing.T) {
	defer debug.Init(false)

	var buf bytes.Buffer
	debug.InitWithWriter(&buf, debug.FormatJSON, true)

	l := NewLogTelemetry()
	l.RecordCompile(context.Background(), CompileInfo{Dialect: "mysql", Statement: "update", Success: true, Bound: 3})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "compile", entry["msg"])
	assert.Equal(t, "log", entry["telemetry"])
	assert.Equal(t, "mysql", entry["dialect"])
	assert.Equal(t, 3.0, entry["bound"])
	assert.NoError(t, l.Flush(context.Background()))
}
