package builder_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazaarlabs/dbi/internal/core/query/builder"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

type user struct {
	ID   int
	Name string
}

func (u user) WriteFields() domain.M {
	return domain.M{{Key: "id", Value: u.ID}, {Key: "name", Value: u.Name}}
}

func eq(field string, value any) domain.M {
	return domain.M{{Key: field, Value: value}}
}

func TestBuilder_Statements(t *testing.T) {
	tests := []struct {
		name  string
		build func() *builder.Builder
		want  string
	}{
		{
			name: "select",
			build: func() *builder.Builder {
				return builder.New().Select("id", "name").From("test_table").
					Where(eq("id", 1)).Order("id", false).Limit(10).Offset(5)
			},
			want: `SELECT id, name FROM "test_table" WHERE id = 1 ORDER BY id ASC NULLS LAST LIMIT 10 OFFSET 5`,
		},
		{
			name:  "select all",
			build: func() *builder.Builder { return builder.New().From("test_table") },
			want:  `SELECT * FROM "test_table"`,
		},
		{
			name: "blank columns ignored",
			build: func() *builder.Builder {
				return builder.New().Select(nil, " ", "id").From("test_table")
			},
			want: `SELECT id FROM "test_table"`,
		},
		{
			name: "insert",
			build: func() *builder.Builder {
				return builder.New().From("test_table").
					Insert(domain.M{{Key: "id", Value: 1}, {Key: "name", Value: "test"}})
			},
			want: `INSERT INTO "test_table" (id, name) VALUES (1, 'test')`,
		},
		{
			name: "insert model",
			build: func() *builder.Builder {
				return builder.New().From("users").Insert(user{ID: 7, Name: "O'Brien"})
			},
			want: `INSERT INTO "users" (id, name) VALUES (7, 'O''Brien')`,
		},
		{
			name: "insert select",
			build: func() *builder.Builder {
				return builder.New().From("archive").
					InsertSelect([]string{"id"}, builder.New().Select("id").From("users"))
			},
			want: `INSERT INTO "archive" (id) SELECT id FROM "users"`,
		},
		{
			name: "update",
			build: func() *builder.Builder {
				return builder.New().From("test_table").
					Update(domain.M{{Key: "id", Value: 1}, {Key: "name", Value: "test"}}).
					Where(eq("id", 1))
			},
			want: `UPDATE "test_table" SET id = 1, name = 'test' WHERE id = 1`,
		},
		{
			name: "update from",
			build: func() *builder.Builder {
				return builder.New().From("orders").AddTable("users", "").
					Update(eq("status", "closed")).
					Where("orders.user_id = users.id")
			},
			want: `UPDATE "orders" SET status = 'closed' FROM "users" WHERE orders.user_id = users.id`,
		},
		{
			name: "delete",
			build: func() *builder.Builder {
				return builder.New().From("test_table").Where(eq("id", 1)).Delete()
			},
			want: `DELETE FROM "test_table" WHERE id = 1`,
		},
		{
			name: "delete using",
			build: func() *builder.Builder {
				return builder.New().From("orders").AddTable("users", "").
					Where("orders.user_id = users.id").Delete()
			},
			want: `DELETE FROM "orders" USING "users" WHERE orders.user_id = users.id`,
		},
		{
			name:  "delete everything",
			build: func() *builder.Builder { return builder.New().From("test_table").Delete() },
			want:  `DELETE FROM "test_table" WHERE TRUE`,
		},
		{
			name:  "truncate",
			build: func() *builder.Builder { return builder.New().From("test_table").Truncate(false) },
			want:  `TRUNCATE TABLE "test_table"`,
		},
		{
			name:  "truncate cascade",
			build: func() *builder.Builder { return builder.New().From("test_table").Truncate(true) },
			want:  `TRUNCATE TABLE "test_table" CASCADE`,
		},
		{
			name: "truncate without truncate support",
			build: func() *builder.Builder {
				return builder.New(builder.WithDialect(domain.SQLite)).From("test_table").Truncate(false)
			},
			want: `DELETE FROM "test_table"`,
		},
		{
			name: "join",
			build: func() *builder.Builder {
				return builder.New().Select("*").From("test_table").
					Join("other_table", "test_table.id = other_table.id", "", "")
			},
			want: `SELECT * FROM "test_table" INNER JOIN "other_table" ON test_table.id = other_table.id`,
		},
		{
			name: "aliased left join",
			build: func() *builder.Builder {
				return builder.New().FromAs("users", "u").
					LeftJoin("profiles", "p.user_id = u.id", "p")
			},
			want: `SELECT * FROM "users" AS "u" LEFT JOIN "profiles" "p" ON p.user_id = u.id`,
		},
		{
			name: "join replaced by alias",
			build: func() *builder.Builder {
				return builder.New().From("users").
					LeftJoin("profiles", "p.user_id = users.id", "p").
					InnerJoin("accounts", "p.user_id = users.id", "p")
			},
			want: `SELECT * FROM "users" INNER JOIN "accounts" "p" ON p.user_id = users.id`,
		},
		{
			name: "group and having",
			build: func() *builder.Builder {
				return builder.New().Select("name", "COUNT(*)").From("test_table").
					Group("name").Having("COUNT(*) > 1")
			},
			want: `SELECT name, COUNT(*) FROM "test_table" GROUP BY name HAVING COUNT(*) > 1`,
		},
		{
			name: "or",
			build: func() *builder.Builder {
				return builder.New().Select("id").From("test_table").Where(domain.M{{Key: "$or", Value: []any{
					eq("id", domain.M{{Key: "$gt", Value: 8}}),
					eq("name", domain.M{{Key: "$ne", Value: "test"}}),
				}}})
			},
			want: `SELECT id FROM "test_table" WHERE (id > 8 OR name != 'test')`,
		},
		{
			name: "distinct on",
			build: func() *builder.Builder {
				return builder.New().Select("dept", "name").Distinct("dept").From("staff")
			},
			want: `SELECT DISTINCT ON (dept) dept, name FROM "staff"`,
		},
		{
			name: "window",
			build: func() *builder.Builder {
				return builder.New().Select("id", "ROW_NUMBER() OVER w").From("staff").
					Window("w", []string{"dept"}, builder.Desc("salary"))
			},
			want: `SELECT id, ROW_NUMBER() OVER w FROM "staff" WINDOW w AS (PARTITION BY dept ORDER BY salary DESC NULLS LAST)`,
		},
		{
			name: "fetch",
			build: func() *builder.Builder {
				return builder.New().Select("id").From("users").OrderBy(builder.Asc("id")).Offset(10).Fetch(5, true)
			},
			want: `SELECT id FROM "users" ORDER BY id ASC NULLS LAST OFFSET 10 FETCH NEXT 5 ROWS ONLY`,
		},
		{
			name: "union",
			build: func() *builder.Builder {
				return builder.New().Select("id").From("a").Union(builder.New().Select("id").From("b"))
			},
			want: "SELECT id FROM \"a\"\nUNION\nSELECT id FROM \"b\"",
		},
		{
			name: "from sub-select",
			build: func() *builder.Builder {
				return builder.New().FromSubquery(builder.New().Select("id").From("a"), "x")
			},
			want: `SELECT * FROM (SELECT id FROM "a") AS "x"`,
		},
		{
			name: "schema",
			build: func() *builder.Builder {
				return builder.New(builder.WithSchema("app")).Select("id").From("users")
			},
			want: `SELECT id FROM "app"."users"`,
		},
		{
			name: "reserved words",
			build: func() *builder.Builder {
				return builder.New(builder.WithReservedWords([]string{"order"})).
					Select("id", "order").From("orders").Order("order", true)
			},
			want: `SELECT id, "order" FROM "orders" ORDER BY "order" DESC NULLS LAST`,
		},
		{
			name: "mysql",
			build: func() *builder.Builder {
				return builder.New(builder.WithDialect(domain.MySQL)).Select("id").From("users").
					Where(eq("name", `a\b`)).Order("id", false)
			},
			want: "SELECT id FROM `users` WHERE name = 'a\\\\b' ORDER BY id ASC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := tt.build().ToString()
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestBuilder_Conflict(t *testing.T) {
	data := domain.M{{Key: "id", Value: 1}, {Key: "name", Value: "a"}}

	tests := []struct {
		name    string
		dialect domain.Dialect
		update  any
		want    string
	}{
		{
			name:    "do nothing",
			dialect: domain.PostgreSQL,
			want:    `INSERT INTO "users" (id, name) VALUES (1, 'a') ON CONFLICT(id) DO NOTHING`,
		},
		{
			name:    "update all",
			dialect: domain.PostgreSQL,
			update:  true,
			want:    `INSERT INTO "users" (id, name) VALUES (1, 'a') ON CONFLICT(id) DO UPDATE SET name = EXCLUDED.name`,
		},
		{
			name:    "listed columns skip missing ones",
			dialect: domain.PostgreSQL,
			update:  []string{"name", "email"},
			want:    `INSERT INTO "users" (id, name) VALUES (1, 'a') ON CONFLICT(id) DO UPDATE SET name = EXCLUDED.name`,
		},
		{
			name:    "only target listed",
			dialect: domain.PostgreSQL,
			update:  []string{"id"},
			want:    `INSERT INTO "users" (id, name) VALUES (1, 'a') ON CONFLICT(id) DO NOTHING`,
		},
		{
			name:    "expressions",
			dialect: domain.PostgreSQL,
			update:  domain.M{{Key: "hits", Value: "users.hits + 1"}},
			want:    `INSERT INTO "users" (id, name) VALUES (1, 'a') ON CONFLICT(id) DO UPDATE SET hits = users.hits + 1`,
		},
		{
			name:    "mysql",
			dialect: domain.MySQL,
			update:  true,
			want:    "INSERT INTO `users` (id, name) VALUES (1, 'a') ON DUPLICATE KEY UPDATE name = VALUES(name)",
		},
		{
			name:    "mysql do nothing",
			dialect: domain.MySQL,
			want:    "INSERT INTO `users` (id, name) VALUES (1, 'a') ON DUPLICATE KEY UPDATE id = id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := builder.New(builder.WithDialect(tt.dialect)).From("users").
				Insert(data).OnConflict([]string{"id"}, tt.update).ToString()
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestBuilder_Returning(t *testing.T) {
	sql, err := builder.New().From("users").Insert(eq("name", "a")).Returning("id").ToString()
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" (name) VALUES ('a') RETURNING id`, sql)

	sql, err = builder.New().From("users").Update(eq("name", "a")).Where(eq("id", 1)).Returning("*").ToString()
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET name = 'a' WHERE id = 1 RETURNING *`, sql)
}

func TestBuilder_Unsupported(t *testing.T) {
	mysql := func() *builder.Builder {
		return builder.New(builder.WithDialect(domain.MySQL)).From("users")
	}

	tests := []struct {
		name string
		b    *builder.Builder
	}{
		{name: "returning", b: mysql().Insert(eq("id", 1)).Returning("id")},
		{name: "distinct on", b: mysql().Distinct("id")},
		{name: "fetch", b: mysql().Fetch(1, false)},
		{name: "truncate cascade", b: mysql().Truncate(true)},
		{
			name: "upsert",
			b: builder.New(builder.WithFeatures(domain.Features{})).From("users").
				Insert(eq("id", 1)).OnConflict([]string{"id"}, nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.ToString()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrUnsupported))
			assert.True(t, domain.IsValidation(err, domain.KindUnsupported))
		})
	}
}

func TestBuilder_NoUpdate(t *testing.T) {
	_, err := builder.New().From("users").Update(domain.M{}).Where(eq("id", 1)).ToString()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoUpdate))
	assert.True(t, domain.IsValidation(err, domain.KindNoUpdate))
}

func TestBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		b    *builder.Builder
		kind domain.ValidationKind
	}{
		{
			name: "empty in",
			b:    builder.New().From("users").Where(eq("id", domain.M{{Key: "$in", Value: []any{}}})),
			kind: domain.KindEmptyList,
		},
		{
			name: "between arity",
			b:    builder.New().From("users").Where(eq("age", domain.M{{Key: "$bt", Value: []any{1}}})),
			kind: domain.KindBetweenArity,
		},
		{
			name: "insert data",
			b:    builder.New().From("users").Insert(42),
			kind: domain.KindInvalidValue,
		},
		{
			name: "delete without table",
			b:    builder.New().Delete(),
			kind: domain.KindInvalidCriteria,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.ToString()
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err, tt.kind), "got %v", err)
		})
	}
}

func TestBuilder_BindValues(t *testing.T) {
	orders := builder.New().Select("user_id").From("orders").Where(eq("total", domain.M{{Key: "$gt", Value: 100}}))

	b := builder.New(builder.WithBindValues()).Select("id").From("users").Where(domain.M{
		{Key: "id", Value: domain.M{{Key: "$in", Value: orders}}},
		{Key: "name", Value: "bob"},
		{Key: "active", Value: true},
		{Key: "deleted_at", Value: nil},
	})

	compiled, err := b.Compile()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT id FROM "users" WHERE (id IN (SELECT user_id FROM "orders" WHERE total > :v0) AND name = :v1 AND active IS TRUE AND deleted_at IS NULL)`,
		compiled.Query)
	assert.Equal(t, map[string]any{"v0": int64(100), "v1": "bob"}, compiled.Args)
	assert.True(t, compiled.Bound())
	assert.Equal(t, compiled.Args, b.Values())

	again, err := b.Compile()
	require.NoError(t, err)
	assert.Equal(t, compiled, again)
}

func TestBuilder_Count(t *testing.T) {
	b := builder.New().Select("id", "name").From("users").Where(eq("active", true)).
		Order("name", false).Limit(5).Offset(10)

	sql, err := b.Count()
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "users" WHERE active IS TRUE`, sql)

	// Counting leaves the builder intact.
	sql, err = b.ToString()
	require.NoError(t, err)
	assert.Equal(t, `SELECT id, name FROM "users" WHERE active IS TRUE ORDER BY name ASC NULLS LAST LIMIT 5 OFFSET 10`, sql)
}

func TestBuilder_Exists(t *testing.T) {
	sql, err := builder.New().Exists("users", eq("id", 1))
	require.NoError(t, err)
	assert.Equal(t, `SELECT EXISTS (SELECT 1 FROM "users" WHERE id = 1)`, sql)
}

func TestBuilder_Create(t *testing.T) {
	b := builder.New()
	assert.Equal(t, "CREATE TABLE users", b.Create("users", "table", false))
	assert.Equal(t, "CREATE SCHEMA IF NOT EXISTS app", b.Create("app", "schema", true))
}

func TestBuilder_StatementAndReset(t *testing.T) {
	b := builder.New(builder.WithSchema("app")).Select("id").From("users").Where(eq("id", 1)).Limit(1)

	stmt, err := b.Statement()
	require.NoError(t, err)
	assert.Equal(t, `SELECT id FROM "app"."users" WHERE id = 1 LIMIT 1;`, stmt)

	sql, err := b.Reset().Select("1").ToString()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
	assert.Equal(t, builder.SelectStatement, b.Kind())
}

func TestBuilder_SelectGroups(t *testing.T) {
	b := builder.New().
		Select(domain.M{
			{Key: "user", Value: "u.*"},
			{Key: "profile", Value: domain.M{{Key: "bio", Value: "p.bio"}}},
		}).
		FromAs("users", "u").
		LeftJoin("profiles", "p.user_id = u.id", "p").
		Order("profile.bio", true)

	compiled, err := b.Compile()
	require.NoError(t, err)
	require.Len(t, compiled.Groups, 1)

	var lookup string
	for alias, dotted := range compiled.Groups {
		lookup = alias
		assert.Equal(t, "profile.bio", dotted)
	}
	assert.Equal(t,
		`SELECT u.*, p.bio AS `+lookup+` FROM "users" AS "u" LEFT JOIN "profiles" "p" ON p.user_id = u.id ORDER BY `+lookup+` DESC NULLS LAST`,
		compiled.Query)
}

func TestBuilder_AliasedColumns(t *testing.T) {
	sql, err := builder.New().
		Select(map[string]any{"total": "SUM(amount)", "one": 1}).
		From("orders").
		ToString()
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1 AS one, SUM(amount) AS total FROM "orders"`, sql)
}
