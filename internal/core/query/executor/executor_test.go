package executor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazaarlabs/dbi/internal/adapters/telemetry"
	"github.com/hazaarlabs/dbi/internal/core/query/builder"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
	"github.com/hazaarlabs/dbi/internal/core/query/executor"
)

type recorder struct {
	mu       sync.Mutex
	queries  []telemetry.QueryInfo
	errors   []telemetry.ErrorInfo
	compiles []telemetry.CompileInfo
}

func (r *recorder) RecordQuery(_ context.Context, info telemetry.QueryInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, info)
}

func (r *recorder) RecordError(_ context.Context, info telemetry.ErrorInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, info)
}

func (r *recorder) RecordConnection(context.Context, telemetry.ConnectionInfo) {}

func (r *recorder) RecordCompile(_ context.Context, info telemetry.CompileInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compiles = append(r.compiles, info)
}

func (r *recorder) Flush(context.Context) error { return nil }
func (r *recorder) Close(context.Context) error { return nil }

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestQueryExecutor_QueryRegroups(t *testing.T) {
	db, mock := newMock(t)
	e := executor.NewQueryExecutor(db)

	b := builder.New().
		Select("id", "meta", domain.M{{Key: "profile", Value: domain.M{{Key: "bio", Value: "bio"}}}}).
		From("users")
	compiled, err := b.Compile()
	require.NoError(t, err)
	require.Len(t, compiled.Groups, 1)

	var lookup string
	for alias := range compiled.Groups {
		lookup = alias
	}

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("INT8", int64(0)),
		sqlmock.NewColumn("meta").OfType("JSONB", []byte{}),
		sqlmock.NewColumn(lookup).OfType("TEXT", ""),
	).AddRow(int64(1), []byte(`{"tags":["a"]}`), "hello")
	mock.ExpectQuery(`SELECT id, meta, bio AS ` + lookup + ` FROM "users"`).WillReturnRows(rows)

	got, err := e.Query(context.Background(), compiled)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{
		"id":      int64(1),
		"meta":    map[string]any{"tags": []any{"a"}},
		"profile": map[string]any{"bio": "hello"},
	}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryExecutor_QueryBound(t *testing.T) {
	db, mock := newMock(t)
	rec := &recorder{}
	e := executor.NewQueryExecutor(db, executor.WithTelemetry(rec))

	compiled, err := builder.New(builder.WithBindValues()).
		Select("id").From("users").Where(domain.M{{Key: "name", Value: "bob"}}).
		Compile()
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id FROM "users" WHERE name = $1`).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	got, err := e.Query(context.Background(), compiled)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": int64(7)}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, rec.queries, 1)
	assert.Equal(t, "select", rec.queries[0].Statement)
	assert.Equal(t, "postgres", rec.queries[0].Dialect)
	assert.Equal(t, int64(1), rec.queries[0].RowsAffected)
	assert.True(t, rec.queries[0].Success)
}

func TestQueryExecutor_BoundKeepsVerbatimSQL(t *testing.T) {
	db, mock := newMock(t)
	e := executor.NewQueryExecutor(db)

	mock.ExpectQuery(`SELECT id FROM "events" WHERE (created::date = CURRENT_DATE AND starts_at > '10:30' AND name = $1 AND owner = $2 AND host = $1)`).
		WithArgs("bob", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	got, err := e.Query(context.Background(), domain.SQL{
		Query:   `SELECT id FROM "events" WHERE (created::date = CURRENT_DATE AND starts_at > '10:30' AND name = :v0 AND owner = :v1 AND host = :v0)`,
		Args:    map[string]any{"v0": "bob", "v1": int64(3)},
		Dialect: domain.PostgreSQL,
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": int64(1)}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryExecutor_BoundQuestionBindvars(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	e := executor.NewQueryExecutor(sqlx.NewDb(db, "mysql"))

	mock.ExpectExec(`UPDATE notes SET body = ? WHERE tag = 'it\'s :v1' AND id = ?`).
		WithArgs("x", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := e.Exec(context.Background(), domain.SQL{
		Query:   `UPDATE notes SET body = :v0 WHERE tag = 'it\'s :v1' AND id = :v1`,
		Args:    map[string]any{"v0": "x", "v1": int64(4)},
		Dialect: domain.MySQL,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryExecutor_QueryInto(t *testing.T) {
	db, mock := newMock(t)
	e := executor.NewQueryExecutor(db)

	mock.ExpectQuery(`SELECT id, name FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "alice").
			AddRow(int64(2), "bob"))

	type user struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	var users []user
	err := e.QueryInto(context.Background(), domain.SQL{Query: "SELECT id, name FROM users", Dialect: domain.PostgreSQL}, &users)
	require.NoError(t, err)
	assert.Equal(t, []user{{ID: 1, Name: "alice"}, {ID: 2, Name: "bob"}}, users)
}

func TestQueryExecutor_Exec(t *testing.T) {
	db, mock := newMock(t)
	e := executor.NewQueryExecutor(db)

	mock.ExpectExec(`UPDATE "users" SET name = 'x' WHERE id = 1`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM "users" WHERE id = $1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	compiled, err := builder.New().From("users").
		Where(domain.M{{Key: "id", Value: 1}}).
		Update(domain.M{{Key: "name", Value: "x"}}).
		Compile()
	require.NoError(t, err)
	affected, err := e.Exec(context.Background(), compiled)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	compiled, err = builder.New(builder.WithBindValues()).From("users").
		Where(domain.M{{Key: "id", Value: 5}}).
		Delete().
		Compile()
	require.NoError(t, err)
	affected, err = e.Exec(context.Background(), compiled)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryExecutor_Run(t *testing.T) {
	db, mock := newMock(t)
	rec := &recorder{}
	e := executor.NewQueryExecutor(db, executor.WithTelemetry(rec))

	mock.ExpectQuery(`INSERT INTO "users" (name) VALUES ('a') RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectExec(`TRUNCATE TABLE "users"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := e.Run(context.Background(),
		builder.New().From("users").Insert(domain.M{{Key: "name", Value: "a"}}).Returning("id"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, []map[string]any{{"id": int64(9)}}, res.Rows)

	res, err = e.Run(context.Background(), builder.New().From("users").Truncate(false))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)

	assert.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, rec.compiles, 2)
	assert.Equal(t, "insert", rec.compiles[0].Statement)
	assert.Equal(t, "truncate", rec.compiles[1].Statement)
}

func TestQueryExecutor_Errors(t *testing.T) {
	db, mock := newMock(t)
	rec := &recorder{}
	e := executor.NewQueryExecutor(db, executor.WithTelemetry(rec))

	mock.ExpectQuery(`SELECT * FROM missing`).WillReturnError(errors.New("relation does not exist"))

	_, err := e.Query(context.Background(), domain.SQL{Query: "SELECT * FROM missing", Dialect: domain.PostgreSQL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
	require.Len(t, rec.errors, 1)
	assert.Equal(t, "SELECT * FROM missing", rec.errors[0].Query)

	_, err = e.Run(context.Background(), builder.New().From("users").Update(nil))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.KindNoUpdate, verr.Kind)
	require.Len(t, rec.compiles, 1)
	assert.False(t, rec.compiles[0].Success)

	_, err = executor.NewQueryExecutor(nil).Exec(context.Background(), domain.SQL{Query: "SELECT 1"})
	assert.Error(t, err)
}
