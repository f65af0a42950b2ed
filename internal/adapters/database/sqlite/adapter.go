// Package sqlite implements SQLite database adapter.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/hazaarlabs/dbi/internal/adapters/database"
	"github.com/hazaarlabs/dbi/internal/core/query/builder"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

// SQLiteAdapter implements the database.Adapter interface for SQLite.
type SQLiteAdapter struct {
	db       *sqlx.DB
	config   database.Config
	features domain.Features
}

// NewSQLiteAdapter creates a new SQLite adapter.
func NewSQLiteAdapter(config database.Config) (*SQLiteAdapter, error) {
	features, err := database.FeaturesFor(domain.SQLite, config.ServerVersion)
	if err != nil {
		return nil, err
	}
	return &SQLiteAdapter{
		config:   config,
		features: features,
	}, nil
}

// Path strips a "sqlite://" or "sqlite3://" scheme from a connection URL.
func Path(raw string) string {
	for _, scheme := range []string{"sqlite3://", "sqlite://"} {
		if strings.HasPrefix(raw, scheme) {
			return strings.TrimPrefix(raw, scheme)
		}
	}
	return raw
}

// Connect establishes a connection to the SQLite database.
func (a *SQLiteAdapter) Connect(ctx context.Context) error {
	// A single connection keeps writes serialized and in-memory databases alive.
	db, err := database.Open(ctx, "sqlite3", Path(a.config.URL), a.config, 1)
	if err != nil {
		return err
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	a.db = db

	if a.config.ServerVersion == "" {
		v, err := a.ServerVersion(ctx)
		if err != nil {
			return err
		}
		if a.features, err = database.FeaturesFor(domain.SQLite, v); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect closes the database connection.
func (a *SQLiteAdapter) Disconnect(ctx context.Context) error {
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// DB returns the pooled connection.
func (a *SQLiteAdapter) DB() *sqlx.DB {
	return a.db
}

// Ping checks if the database connection is alive.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("database not connected")
	}
	return a.db.PingContext(ctx)
}

// Dialect returns the SQL dialect.
func (a *SQLiteAdapter) Dialect() domain.Dialect {
	return domain.SQLite
}

// ServerVersion returns the linked SQLite library version.
func (a *SQLiteAdapter) ServerVersion(ctx context.Context) (string, error) {
	if a.db == nil {
		return "", fmt.Errorf("database not connected")
	}
	var v string
	if err := a.db.GetContext(ctx, &v, "SELECT sqlite_version()"); err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	return v, nil
}

// Features returns the clauses supported by the linked library.
func (a *SQLiteAdapter) Features() domain.Features {
	return a.features
}

// ReservedWords returns the SQLite keywords.
func (a *SQLiteAdapter) ReservedWords() []string {
	return ReservedWords
}

// Builder returns a statement builder for SQLite.
func (a *SQLiteAdapter) Builder(opts ...builder.Option) *builder.Builder {
	return builder.New(database.BuilderOptions(a, a.config, opts...)...)
}

// Ensure SQLiteAdapter implements Adapter interface.
var _ database.Adapter = (*SQLiteAdapter)(nil)
