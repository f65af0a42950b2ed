package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazaarlabs/dbi/internal/core/query/builder"
	"github.com/hazaarlabs/dbi/internal/core/query/document"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
	"github.com/hazaarlabs/dbi/internal/core/query/dsl"
)

func TestDocument_Compile(t *testing.T) {
	tests := []struct {
		name   string
		format dsl.Format
		input  string
		want   string
	}{
		{
			name:   "select",
			format: dsl.FormatYAML,
			input: `
select: [id, name]
from: users
where:
  active: true
filter: "age >= 18"
order: ["-created_at", name]
limit: 10
offset: 20
`,
			want: `SELECT id, name FROM "users" WHERE (active IS TRUE AND age >= 18) ORDER BY created_at DESC NULLS LAST, name ASC NULLS LAST LIMIT 10 OFFSET 20`,
		},
		{
			name:   "join",
			format: dsl.FormatJSON,
			input: `{
				"from": {"table": "users", "alias": "u"},
				"join": [{"table": "profiles", "alias": "p", "on": "p.user_id = u.id", "type": "left"}],
				"order": {"u.name": "desc nulls first"}
			}`,
			want: `SELECT * FROM "users" AS "u" LEFT JOIN "profiles" "p" ON p.user_id = u.id ORDER BY u.name DESC NULLS FIRST`,
		},
		{
			name:   "group",
			format: dsl.FormatJSON,
			input:  `{"select": ["dept", "COUNT(*)"], "from": "staff", "group": ["dept"], "having": "COUNT(*) > 2", "distinct": true}`,
			want:   `SELECT DISTINCT dept, COUNT(*) FROM "staff" GROUP BY dept HAVING COUNT(*) > 2`,
		},
		{
			name:   "insert",
			format: dsl.FormatJSON,
			input: `{
				"statement": "insert",
				"from": "users",
				"fields": {"id": 1, "name": "a"},
				"conflict": {"target": ["id"], "update": true},
				"returning": "id"
			}`,
			want: `INSERT INTO "users" (id, name) VALUES (1, 'a') ON CONFLICT(id) DO UPDATE SET name = EXCLUDED.name RETURNING id`,
		},
		{
			name:   "update",
			format: dsl.FormatJSON,
			input:  `{"statement": "update", "from": "users", "fields": {"name": "b", "score": 1.5}, "where": {"id": 1}}`,
			want:   `UPDATE "users" SET name = 'b', score = 1.5 WHERE id = 1`,
		},
		{
			name:   "delete",
			format: dsl.FormatYAML,
			input: `
statement: delete
from: users
filter: id IN (1, 2)
`,
			want: `DELETE FROM "users" WHERE id IN (1, 2)`,
		},
		{
			name:   "truncate",
			format: dsl.FormatYAML,
			input: `
statement: truncate
from: users
cascade: true
`,
			want: `TRUNCATE TABLE "users" CASCADE`,
		},
		{
			name:   "window and fetch",
			format: dsl.FormatYAML,
			input: `
select: [id, "RANK() OVER w"]
from: staff
window:
  - name: w
    partition: [dept]
    order: salary desc
fetch: {count: 1}
`,
			want: `SELECT id, RANK() OVER w FROM "staff" WINDOW w AS (PARTITION BY dept ORDER BY salary DESC NULLS LAST) FETCH FIRST 1 ROW ONLY`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := document.Parse([]byte(tt.input), tt.format)
			require.NoError(t, err)

			compiled, err := doc.Compile()
			require.NoError(t, err)
			assert.Equal(t, tt.want, compiled.Query)
		})
	}
}

func TestDocument_ApplyToConfiguredBuilder(t *testing.T) {
	doc := document.New(domain.M{
		{Key: "from", Value: "users"},
		{Key: "where", Value: domain.M{{Key: "name", Value: "bob"}}},
	})
	assert.Equal(t, builder.SelectStatement, doc.Statement())

	b := builder.New(builder.WithDialect(domain.MySQL), builder.WithBindValues())
	require.NoError(t, doc.Apply(b))

	compiled, err := b.Compile()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE name = :v0", compiled.Query)
	assert.Equal(t, map[string]any{"v0": "bob"}, compiled.Args)
}

func TestDocument_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not a mapping", input: `[1, 2]`},
		{name: "unknown key", input: `{"form": "users"}`},
		{name: "unknown statement", input: `{"statement": "merge", "from": "users"}`},
		{name: "bad limit", input: `{"from": "users", "limit": "ten"}`},
		{name: "bad order", input: `{"from": "users", "order": "name sideways"}`},
		{name: "bad filter", input: `{"from": "users", "filter": "a ="}`},
		{name: "bad group", input: `{"from": "users", "group": [1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := document.Parse([]byte(tt.input), dsl.FormatJSON)
			if err == nil {
				_, err = doc.Compile()
			}
			assert.Error(t, err)
		})
	}
}
