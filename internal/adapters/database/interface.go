// Package database defines database adapter interfaces.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hazaarlabs/dbi/internal/core/query/builder"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

// Adapter defines the database adapter interface.
type Adapter interface {
	// Connect establishes a database connection and probes the server version.
	Connect(ctx context.Context) error

	// Disconnect closes the database connection.
	Disconnect(ctx context.Context) error

	// DB returns the pooled connection, nil before Connect.
	DB() *sqlx.DB

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Dialect returns the SQL dialect.
	Dialect() domain.Dialect

	// ServerVersion returns the version reported by the server.
	ServerVersion(ctx context.Context) (string, error)

	// Features returns the clauses supported by the connected server.
	Features() domain.Features

	// ReservedWords returns the identifiers that must be quoted.
	ReservedWords() []string

	// Builder returns a statement builder configured for the adapter.
	Builder(opts ...builder.Option) *builder.Builder
}

// Config holds database connection configuration.
type Config struct {
	Provider       string
	URL            string
	Schema         string
	ServerVersion  string // skips the version probe when set
	MaxConnections int
	MaxIdleTime    int // seconds
	ConnectTimeout int // seconds
	BindValues     bool
}

// Open opens a pooled connection with the configured pool settings and verifies it.
// maxOpen overrides MaxConnections when positive.
func Open(ctx context.Context, driver, dsn string, config Config, maxOpen int) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxOpen <= 0 {
		maxOpen = config.MaxConnections
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(max(1, maxOpen/2))
	}
	db.SetConnMaxIdleTime(time.Duration(config.MaxIdleTime) * time.Second)

	timeout := time.Duration(config.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// BuilderOptions returns the builder options matching an adapter configuration. Extra
// options are applied last.
func BuilderOptions(a Adapter, config Config, extra ...builder.Option) []builder.Option {
	opts := []builder.Option{
		builder.WithDialect(a.Dialect()),
		builder.WithFeatures(a.Features()),
		builder.WithReservedWords(a.ReservedWords()),
	}
	if config.Schema != "" {
		opts = append(opts, builder.WithSchema(config.Schema))
	}
	if config.BindValues {
		opts = append(opts, builder.WithBindValues())
	}
	return append(opts, extra...)
}
