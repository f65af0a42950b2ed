package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	headers, cells := TableData([]map[string]any{
		{"name": "alice", "id": int64(1), "bio": nil},
		{"name": []byte("bob"), "id": int64(2), "tags": []string{"a", "b"}},
	})

	assert.Equal(t, []string{"bio", "id", "name", "tags"}, headers)
	assert.Equal(t, [][]string{
		{"NULL", "1", "alice", "NULL"},
		{"NULL", "2", "bob", "[a b]"},
	}, cells)
}

func TestMarkdown(t *testing.T) {
	md := Markdown("select", `SELECT * FROM "users" WHERE name = :v0`, map[string]any{"v0": "bob"})
	assert.Equal(t, "# select\n\n```sql\nSELECT * FROM \"users\" WHERE name = :v0\n```\n"+
		"\n| Parameter | Value | Type |\n|---|---|---|\n| :v0 | bob | string |\n", md)

	assert.Equal(t, "# delete\n\n```sql\nDELETE FROM t WHERE TRUE\n```\n", Markdown("delete", "DELETE FROM t WHERE TRUE", nil))
}

func TestPrinters(t *testing.T) {
	DisableColor()
	var buf bytes.Buffer
	orig := Out
	Out = &buf
	defer func() { Out = orig }()

	PrintSQL("SELECT 1", map[string]any{"v1": 2, "v0": "x"})
	require.NoError(t, PrintRows(nil))

	out := buf.String()
	assert.Contains(t, out, "SELECT 1")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(":v0")), bytes.Index(buf.Bytes(), []byte(":v1")))
	assert.Contains(t, out, "no rows")
}
