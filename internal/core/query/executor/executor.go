// Package executor implements statement execution.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hazaarlabs/dbi/internal/adapters/telemetry"
	"github.com/hazaarlabs/dbi/internal/core/query/builder"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
	"github.com/hazaarlabs/dbi/internal/core/query/mapper"
	"github.com/hazaarlabs/dbi/internal/debug"
)

// Result is the outcome of running a statement.
type Result struct {
	// Rows holds the regrouped rows of a SELECT or RETURNING statement.
	Rows []map[string]any

	// RowsAffected is the number of rows returned or changed.
	RowsAffected int64
}

// QueryExecutor runs compiled statements on a sqlx connection or transaction.
type QueryExecutor struct {
	db        sqlx.ExtContext
	mapper    *mapper.ResultMapper
	telemetry telemetry.Telemetry
}

// Option configures a QueryExecutor.
type Option func(*QueryExecutor)

// WithTelemetry records executions on t.
func WithTelemetry(t telemetry.Telemetry) Option {
	return func(e *QueryExecutor) {
		e.telemetry = t
	}
}

// NewQueryExecutor creates a new query executor.
func NewQueryExecutor(db sqlx.ExtContext, opts ...Option) *QueryExecutor {
	e := &QueryExecutor{
		db:        db,
		mapper:    mapper.NewResultMapper(),
		telemetry: telemetry.NewNoopTelemetry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query runs a statement that returns rows. The named placeholders of bound statements
// are sent as the driver's positional parameters. Rows are decoded by column type and regrouped through the select groups.
func (e *QueryExecutor) Query(ctx context.Context, query domain.SQL) ([]map[string]any, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	start := time.Now()
	rows, err := e.queryRows(ctx, query)
	if err != nil {
		e.record(ctx, query, start, 0, err)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	results, err := e.scan(rows, query.Groups)
	e.record(ctx, query, start, int64(len(results)), err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (e *QueryExecutor) queryRows(ctx context.Context, query domain.SQL) (*sqlx.Rows, error) {
	text, args := e.bind(query)
	return e.db.QueryxContext(ctx, text, args...)
}

// bind converts the named placeholders of a bound statement to the driver's bindvars.
func (e *QueryExecutor) bind(query domain.SQL) (string, []any) {
	if !query.Bound() {
		return query.Query, nil
	}
	return positional(query, sqlx.BindType(e.db.DriverName()))
}

func (e *QueryExecutor) scan(rows *sqlx.Rows, groups map[string]string) ([]map[string]any, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}
	typeNames := make(map[string]string, len(types))
	for _, ct := range types {
		typeNames[ct.Name()] = ct.DatabaseTypeName()
	}

	var results []map[string]any
	for rows.Next() {
		row := make(map[string]any, len(types))
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for col, value := range row {
			decoded, err := e.mapper.Decode(value, typeNames[col])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			row[col] = decoded
		}
		results = append(results, e.mapper.Regroup(row, groups))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

// QueryInto runs a statement and maps the rows onto dest, a pointer to a slice of structs.
func (e *QueryExecutor) QueryInto(ctx context.Context, query domain.SQL, dest any) error {
	rows, err := e.Query(ctx, query)
	if err != nil {
		return err
	}
	return e.mapper.MapToStructSlice(rows, dest)
}

// Exec runs a statement that does not return rows and returns the rows affected.
func (e *QueryExecutor) Exec(ctx context.Context, query domain.SQL) (int64, error) {
	if e.db == nil {
		return 0, fmt.Errorf("database not connected")
	}

	start := time.Now()
	var affected int64
	text, args := e.bind(query)
	res, err := e.db.ExecContext(ctx, text, args...)
	if err == nil {
		affected, err = res.RowsAffected()
	}
	e.record(ctx, query, start, affected, err)
	if err != nil {
		return 0, fmt.Errorf("failed to execute statement: %w", err)
	}
	return affected, nil
}

// Run compiles b and executes it. SELECT statements and statements with a RETURNING
// clause return rows; everything else reports the rows affected.
func (e *QueryExecutor) Run(ctx context.Context, b *builder.Builder) (Result, error) {
	start := time.Now()
	query, err := b.Compile()
	e.telemetry.RecordCompile(ctx, telemetry.CompileInfo{
		Dialect:   string(b.Dialect()),
		Statement: string(b.Kind()),
		Duration:  time.Since(start),
		Success:   err == nil,
		Bound:     len(query.Args),
	})
	if err != nil {
		return Result{}, err
	}

	if b.Returns() {
		rows, err := e.Query(ctx, query)
		if err != nil {
			return Result{}, err
		}
		return Result{Rows: rows, RowsAffected: int64(len(rows))}, nil
	}

	affected, err := e.Exec(ctx, query)
	if err != nil {
		return Result{}, err
	}
	return Result{RowsAffected: affected}, nil
}

func (e *QueryExecutor) record(ctx context.Context, query domain.SQL, start time.Time, rows int64, err error) {
	kind := statementKind(query.Query)
	duration := time.Since(start)

	e.telemetry.RecordQuery(ctx, telemetry.QueryInfo{
		Dialect:      string(query.Dialect),
		Statement:    kind,
		Duration:     duration,
		Success:      err == nil,
		RowsAffected: rows,
	})
	if err != nil {
		e.telemetry.RecordError(ctx, telemetry.ErrorInfo{
			Error:     err,
			Dialect:   string(query.Dialect),
			Statement: kind,
			Query:     query.Query,
		})
		debug.Warn("statement failed", "statement", kind, "error", err)
		return
	}
	debug.Debug("statement executed", "statement", kind, "rows", rows, "duration", duration)
}

// statementKind returns the lowercased leading keyword of a statement.
func statementKind(sql string) string {
	keyword, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	return strings.ToLower(keyword)
}
