package telemetry

import (
	"fmt"
	"slices"
	"strings"
)

// TelemetryType names a telemetry adapter.
type TelemetryType string

const (
	TypeNoop       TelemetryType = "noop"
	TypeLog        TelemetryType = "log"
	TypePrometheus TelemetryType = "prometheus"
)

// Types lists the accepted telemetry types.
var Types = []TelemetryType{TypeNoop, TypeLog, TypePrometheus}

// ParseType resolves a case-insensitive type name. An empty name is TypeNoop.
func ParseType(name string) (TelemetryType, error) {
	t := TelemetryType(strings.ToLower(name))
	if t == "" {
		return TypeNoop, nil
	}
	if !slices.Contains(Types, t) {
		return "", fmt.Errorf("unknown telemetry type %q (want one of %v)", name, Types)
	}
	return t, nil
}

// NewTelemetry creates the adapter named by config.Type. A nil config yields the no-op
// adapter.
func NewTelemetry(config *Config) (Telemetry, error) {
	if config == nil {
		return NewNoopTelemetry(), nil
	}

	t, err := ParseType(config.Type)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeLog:
		return NewLogTelemetry(), nil
	case TypePrometheus:
		return NewPrometheusTelemetry(config), nil
	}
	return NewNoopTelemetry(), nil
}
