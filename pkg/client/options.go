// Package client provides client configuration options.
package client

import (
	"time"
)

// Config contains all client configuration options.
type Config struct {
	// Dialect selects the adapter: postgres, mysql or sqlite, plus their common aliases.
	// Default: postgres
	Dialect string

	// DatabaseURL is the database connection string.
	DatabaseURL string

	// Schema prefixes unqualified table names.
	Schema string

	// ServerVersion skips the version probe on Connect when set.
	ServerVersion string

	// MaxOpenConnections is the maximum number of open connections.
	// Default: 10
	MaxOpenConnections int

	// ConnectTimeout bounds the initial ping.
	// Default: 10 seconds
	ConnectTimeout time.Duration

	// QueryTimeout is the default timeout for statements. Zero disables it.
	QueryTimeout time.Duration

	// BindValues compiles values as named parameters instead of inline literals.
	BindValues bool

	// Telemetry is the telemetry type (noop, prometheus).
	// Default: noop
	Telemetry string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Dialect:            "postgres",
		MaxOpenConnections: 10,
		ConnectTimeout:     10 * time.Second,
		Telemetry:          "noop",
	}
}

// Option is a function that configures the client.
type Option func(*Config)

// WithDialect sets the dialect.
func WithDialect(dialect string) Option {
	return func(c *Config) {
		c.Dialect = dialect
	}
}

// WithDatabaseURL sets the database URL.
func WithDatabaseURL(url string) Option {
	return func(c *Config) {
		c.DatabaseURL = url
	}
}

// WithSchema sets the default schema.
func WithSchema(schema string) Option {
	return func(c *Config) {
		c.Schema = schema
	}
}

// WithServerVersion pins the server version.
func WithServerVersion(version string) Option {
	return func(c *Config) {
		c.ServerVersion = version
	}
}

// WithMaxOpenConnections sets the maximum open connections.
func WithMaxOpenConnections(n int) Option {
	return func(c *Config) {
		c.MaxOpenConnections = n
	}
}

// WithConnectTimeout sets the connect timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ConnectTimeout = d
	}
}

// WithQueryTimeout sets the query timeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.QueryTimeout = d
	}
}

// WithBindValues enables bound parameters.
func WithBindValues(enabled bool) Option {
	return func(c *Config) {
		c.BindValues = enabled
	}
}

// WithTelemetry sets the telemetry type.
func WithTelemetry(kind string) Option {
	return func(c *Config) {
		c.Telemetry = kind
	}
}

// ApplyOptions applies options to a config.
func ApplyOptions(config *Config, opts ...Option) {
	for _, opt := range opts {
		opt(config)
	}
}
