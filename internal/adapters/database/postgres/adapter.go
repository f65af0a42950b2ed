// Package postgres implements PostgreSQL database adapter.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hazaarlabs/dbi/internal/adapters/database"
	"github.com/hazaarlabs/dbi/internal/core/query/builder"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

// PostgresAdapter implements the database.Adapter interface for PostgreSQL.
type PostgresAdapter struct {
	db       *sqlx.DB
	config   database.Config
	features domain.Features
}

// NewPostgresAdapter creates a new PostgreSQL adapter.
func NewPostgresAdapter(config database.Config) (*PostgresAdapter, error) {
	features, err := database.FeaturesFor(domain.PostgreSQL, config.ServerVersion)
	if err != nil {
		return nil, err
	}
	return &PostgresAdapter{
		config:   config,
		features: features,
	}, nil
}

// Connect establishes a connection to the PostgreSQL database.
func (a *PostgresAdapter) Connect(ctx context.Context) error {
	db, err := database.Open(ctx, "postgres", a.config.URL, a.config, 0)
	if err != nil {
		return err
	}
	a.db = db

	if a.config.ServerVersion == "" {
		v, err := a.ServerVersion(ctx)
		if err != nil {
			return err
		}
		if a.features, err = database.FeaturesFor(domain.PostgreSQL, v); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect closes the database connection.
func (a *PostgresAdapter) Disconnect(ctx context.Context) error {
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// DB returns the pooled connection.
func (a *PostgresAdapter) DB() *sqlx.DB {
	return a.db
}

// Ping checks if the database connection is alive.
func (a *PostgresAdapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("database not connected")
	}
	return a.db.PingContext(ctx)
}

// Dialect returns the SQL dialect.
func (a *PostgresAdapter) Dialect() domain.Dialect {
	return domain.PostgreSQL
}

// ServerVersion returns the server_version setting.
func (a *PostgresAdapter) ServerVersion(ctx context.Context) (string, error) {
	if a.db == nil {
		return "", fmt.Errorf("database not connected")
	}
	var v string
	if err := a.db.GetContext(ctx, &v, "SHOW server_version"); err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	return v, nil
}

// Features returns the clauses supported by the server.
func (a *PostgresAdapter) Features() domain.Features {
	return a.features
}

// ReservedWords returns the PostgreSQL reserved key words.
func (a *PostgresAdapter) ReservedWords() []string {
	return ReservedWords
}

// Builder returns a statement builder for PostgreSQL.
func (a *PostgresAdapter) Builder(opts ...builder.Option) *builder.Builder {
	return builder.New(database.BuilderOptions(a, a.config, opts...)...)
}

// Ensure PostgresAdapter implements Adapter interface.
var _ database.Adapter = (*PostgresAdapter)(nil)
