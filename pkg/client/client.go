// Package client provides the public dbi client API.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hazaarlabs/dbi/internal/adapters/database"
	"github.com/hazaarlabs/dbi/internal/adapters/database/mysql"
	"github.com/hazaarlabs/dbi/internal/adapters/database/postgres"
	"github.com/hazaarlabs/dbi/internal/adapters/database/sqlite"
	"github.com/hazaarlabs/dbi/internal/adapters/telemetry"
	"github.com/hazaarlabs/dbi/internal/core/query/builder"
	"github.com/hazaarlabs/dbi/internal/core/query/document"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
	"github.com/hazaarlabs/dbi/internal/core/query/dsl"
	"github.com/hazaarlabs/dbi/internal/core/query/executor"
	"github.com/hazaarlabs/dbi/internal/debug"
)

type (
	// Builder assembles SQL statements.
	Builder = builder.Builder
	// BuilderOption configures a Builder.
	BuilderOption = builder.Option
	// M is an ordered mapping used for criteria, field data and select groups.
	M = domain.M
	// SQL is a compiled statement.
	SQL = domain.SQL
	// Result is the outcome of running a statement.
	Result = executor.Result
	// ValidationError is returned for statements that cannot be compiled.
	ValidationError = domain.ValidationError
)

// Client connects a dialect adapter to the statement builder and executor.
type Client struct {
	config    *Config
	adapter   database.Adapter
	telemetry telemetry.Telemetry
	executor  *executor.QueryExecutor
}

// New creates a client. The connection is opened by Connect.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	ApplyOptions(cfg, opts...)

	adapter, err := NewAdapter(cfg)
	if err != nil {
		return nil, err
	}

	t, err := telemetry.NewTelemetry(&telemetry.Config{Type: cfg.Telemetry})
	if err != nil {
		return nil, err
	}

	return &Client{
		config:    cfg,
		adapter:   adapter,
		telemetry: t,
	}, nil
}

// NewAdapter creates the database adapter for the configured dialect.
func NewAdapter(cfg *Config) (database.Adapter, error) {
	dialect, ok := domain.ParseDialect(cfg.Dialect)
	if !ok {
		return nil, fmt.Errorf("unsupported database provider: %s", cfg.Dialect)
	}

	dbConfig := database.Config{
		Provider:       string(dialect),
		URL:            cfg.DatabaseURL,
		Schema:         cfg.Schema,
		ServerVersion:  cfg.ServerVersion,
		MaxConnections: cfg.MaxOpenConnections,
		ConnectTimeout: int(cfg.ConnectTimeout / time.Second),
		BindValues:     cfg.BindValues,
	}

	var (
		adapter database.Adapter
		err     error
	)
	switch dialect {
	case domain.PostgreSQL:
		adapter, err = postgres.NewPostgresAdapter(dbConfig)
	case domain.MySQL:
		adapter, err = mysql.NewMySQLAdapter(dbConfig)
	case domain.SQLite:
		adapter, err = sqlite.NewSQLiteAdapter(dbConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}
	return adapter, nil
}

// Connect opens the connection and probes the server features.
func (c *Client) Connect(ctx context.Context) error {
	start := time.Now()
	err := c.adapter.Connect(ctx)

	info := telemetry.ConnectionInfo{
		Event:    "connect",
		Dialect:  string(c.adapter.Dialect()),
		Duration: time.Since(start),
		Success:  err == nil,
	}
	if err != nil {
		info.Event = "error"
		c.telemetry.RecordConnection(ctx, info)
		return err
	}
	info.ActiveConnections = c.adapter.DB().Stats().OpenConnections
	c.telemetry.RecordConnection(ctx, info)

	c.executor = executor.NewQueryExecutor(c.adapter.DB(), executor.WithTelemetry(c.telemetry))
	debug.Info("connected", "dialect", c.adapter.Dialect(), "features", c.adapter.Features())
	return nil
}

// Disconnect closes the connection and flushes telemetry.
func (c *Client) Disconnect(ctx context.Context) error {
	c.executor = nil
	err := c.adapter.Disconnect(ctx)
	c.telemetry.RecordConnection(ctx, telemetry.ConnectionInfo{
		Event:   "disconnect",
		Dialect: string(c.adapter.Dialect()),
		Success: err == nil,
	})
	if flushErr := c.telemetry.Flush(ctx); err == nil {
		err = flushErr
	}
	return err
}

// Adapter returns the database adapter.
func (c *Client) Adapter() database.Adapter {
	return c.adapter
}

// Telemetry returns the telemetry adapter.
func (c *Client) Telemetry() telemetry.Telemetry {
	return c.telemetry
}

// Builder returns a statement builder for the connected server. Before Connect the
// features are those of the configured server version, or the dialect defaults.
func (c *Client) Builder(opts ...BuilderOption) *Builder {
	return c.adapter.Builder(opts...)
}

// Table returns a builder selecting from table.
func (c *Client) Table(table string) *Builder {
	return c.Builder().From(table)
}

func (c *Client) exec() (*executor.QueryExecutor, error) {
	if c.executor == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return c.executor, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.QueryTimeout > 0 {
		return context.WithTimeout(ctx, c.config.QueryTimeout)
	}
	return ctx, func() {}
}

// Run compiles and executes b.
func (c *Client) Run(ctx context.Context, b *Builder) (Result, error) {
	e, err := c.exec()
	if err != nil {
		return Result{}, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return e.Run(ctx, b)
}

// Query executes a compiled statement that returns rows.
func (c *Client) Query(ctx context.Context, query SQL) ([]map[string]any, error) {
	e, err := c.exec()
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return e.Query(ctx, query)
}

// QueryInto executes b and maps the rows onto dest, a pointer to a slice of structs.
func (c *Client) QueryInto(ctx context.Context, b *Builder, dest any) error {
	e, err := c.exec()
	if err != nil {
		return err
	}
	query, err := b.Compile()
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return e.QueryInto(ctx, query, dest)
}

// Exec executes a compiled statement and returns the rows affected.
func (c *Client) Exec(ctx context.Context, query SQL) (int64, error) {
	e, err := c.exec()
	if err != nil {
		return 0, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return e.Exec(ctx, query)
}

// Document builds the statement described by a JSON or YAML query document.
func (c *Client) Document(data []byte, format dsl.Format) (*Builder, error) {
	doc, err := document.Parse(data, format)
	if err != nil {
		return nil, err
	}
	b := c.Builder()
	if err := doc.Apply(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Tx runs statements inside a transaction.
type Tx struct {
	client   *Client
	executor *executor.QueryExecutor
}

// Builder returns a statement builder for the connected server.
func (tx *Tx) Builder(opts ...BuilderOption) *Builder {
	return tx.client.Builder(opts...)
}

// Run compiles and executes b inside the transaction.
func (tx *Tx) Run(ctx context.Context, b *Builder) (Result, error) {
	ctx, cancel := tx.client.withTimeout(ctx)
	defer cancel()
	return tx.executor.Run(ctx, b)
}

// Query executes a compiled statement inside the transaction.
func (tx *Tx) Query(ctx context.Context, query SQL) ([]map[string]any, error) {
	ctx, cancel := tx.client.withTimeout(ctx)
	defer cancel()
	return tx.executor.Query(ctx, query)
}

// Exec executes a compiled statement inside the transaction.
func (tx *Tx) Exec(ctx context.Context, query SQL) (int64, error) {
	ctx, cancel := tx.client.withTimeout(ctx)
	defer cancel()
	return tx.executor.Exec(ctx, query)
}

// Transaction executes fn within a transaction. If fn returns an error or panics the
// transaction is rolled back; otherwise it is committed.
func (c *Client) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	db := c.adapter.DB()
	if db == nil || c.executor == nil {
		return fmt.Errorf("database not connected")
	}

	sqlTx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(c.newTx(sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			debug.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *Client) newTx(sqlTx *sqlx.Tx) *Tx {
	return &Tx{
		client:   c,
		executor: executor.NewQueryExecutor(sqlTx, executor.WithTelemetry(c.telemetry)),
	}
}
