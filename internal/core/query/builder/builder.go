// Package builder implements a fluent SQL statement builder.
package builder

import (
	"strings"

	"github.com/hazaarlabs/dbi/internal/core/query/compiler"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

// StatementKind is the statement a builder renders.
type StatementKind string

const (
	// SelectStatement renders SELECT.
	SelectStatement StatementKind = "select"
	// InsertStatement renders INSERT.
	InsertStatement StatementKind = "insert"
	// UpdateStatement renders UPDATE.
	UpdateStatement StatementKind = "update"
	// DeleteStatement renders DELETE.
	DeleteStatement StatementKind = "delete"
	// TruncateStatement renders TRUNCATE.
	TruncateStatement StatementKind = "truncate"
)

// JoinType is the kind of a JOIN clause.
type JoinType string

const (
	// InnerJoin is INNER JOIN.
	InnerJoin JoinType = "INNER"
	// LeftJoin is LEFT JOIN.
	LeftJoin JoinType = "LEFT"
	// RightJoin is RIGHT JOIN.
	RightJoin JoinType = "RIGHT"
	// FullJoin is FULL JOIN.
	FullJoin JoinType = "FULL"
	// CrossJoin is CROSS JOIN.
	CrossJoin JoinType = "CROSS"
)

// OrderTerm is one ORDER BY term. Nulls sort last unless NullsFirst is set.
type OrderTerm struct {
	Field      string
	Desc       bool
	NullsFirst bool
}

// Asc returns an ascending order term.
func Asc(field string) OrderTerm {
	return OrderTerm{Field: field}
}

// Desc returns a descending order term.
func Desc(field string) OrderTerm {
	return OrderTerm{Field: field, Desc: true}
}

type tableRef struct {
	name  string
	alias string
	sub   domain.Statement
}

// key is the name the table is referenced by in the statement.
func (t tableRef) key() string {
	if t.alias != "" {
		return t.alias
	}
	return t.name
}

type join struct {
	kind  JoinType
	ref   string
	alias string
	on    any
}

type window struct {
	name        string
	partitionBy []string
	order       []OrderTerm
}

type orderItem struct {
	term OrderTerm
	raw  string
}

type fetch struct {
	next  bool
	count int
}

type combine struct {
	op   string
	stmt domain.Statement
}

type conflict struct {
	target []string
	update any
}

// Builder assembles SQL statements. A builder is not safe for concurrent use.
type Builder struct {
	schema   string
	dialect  domain.Dialect
	features domain.Features
	reserved []string
	bind     bool
	binder   *compiler.NamedBinder

	kind       StatementKind
	fields     []any
	data       domain.M
	source     domain.Statement
	distinct   bool
	distinctOn []string
	primary    *tableRef
	tables     []tableRef
	joins      []join
	where      any
	group      []string
	having     any
	windows    []window
	order      []orderItem
	limit      *int
	offset     *int
	fetch      *fetch
	combine    []combine
	returning  []any
	conflict   *conflict
	cascade    bool
	errs       []error
}

// Option configures a Builder.
type Option func(*Builder)

// WithSchema sets the default schema used to qualify table names.
func WithSchema(schema string) Option {
	return func(b *Builder) {
		b.schema = schema
	}
}

// WithDialect sets the target dialect and its default features.
func WithDialect(d domain.Dialect) Option {
	return func(b *Builder) {
		b.dialect = d
		b.features = domain.DefaultFeatures(d)
	}
}

// WithFeatures overrides the dialect features, typically after probing the server version.
func WithFeatures(f domain.Features) Option {
	return func(b *Builder) {
		b.features = f
	}
}

// WithReservedWords sets the identifiers that are quoted when used as field names.
func WithReservedWords(words []string) Option {
	return func(b *Builder) {
		b.reserved = words
	}
}

// WithBindValues renders values as named placeholders. The values are returned by Values
// and Compile.
func WithBindValues() Option {
	return func(b *Builder) {
		b.bind = true
	}
}

// New creates a new builder. The default dialect is PostgreSQL.
func New(opts ...Option) *Builder {
	b := &Builder{
		dialect:  domain.PostgreSQL,
		features: domain.DefaultFeatures(domain.PostgreSQL),
		kind:     SelectStatement,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Derive creates an empty builder sharing this builder's configuration.
func (b *Builder) Derive() *Builder {
	return &Builder{
		schema:   b.schema,
		dialect:  b.dialect,
		features: b.features,
		reserved: b.reserved,
		bind:     b.bind,
		kind:     SelectStatement,
	}
}

// Dialect returns the target dialect.
func (b *Builder) Dialect() domain.Dialect {
	return b.dialect
}

// Kind returns the statement the builder currently renders.
func (b *Builder) Kind() StatementKind {
	return b.kind
}

// Returns reports whether the current statement produces rows.
func (b *Builder) Returns() bool {
	if b.kind == SelectStatement {
		return true
	}
	return len(b.returning) > 0 && b.kind != TruncateStatement
}

// Reset clears all statement state, keeping the configuration.
func (b *Builder) Reset() *Builder {
	*b = *b.Derive()
	return b
}

// Select sets the selected columns. Nil and blank entries are ignored.
//
// A column is a string, a domain.M or map of alias to expression, a nested mapping of
// dotted groups, or a sub-select statement.
func (b *Builder) Select(columns ...any) *Builder {
	b.kind = SelectStatement
	b.fields = b.fields[:0]
	for _, c := range columns {
		if c == nil {
			continue
		}
		if s, ok := c.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		b.fields = append(b.fields, c)
	}
	return b
}

// Distinct adds DISTINCT, or DISTINCT ON (columns) when columns are given.
func (b *Builder) Distinct(columns ...string) *Builder {
	b.distinct = true
	b.distinctOn = columns
	return b
}

// From sets the primary table. The name may carry an alias separated by a space.
func (b *Builder) From(table string) *Builder {
	b.primary = &tableRef{name: table}
	return b
}

// FromAs sets the primary table with an alias.
func (b *Builder) FromAs(table, alias string) *Builder {
	b.primary = &tableRef{name: table, alias: alias}
	return b
}

// FromSubquery sets a sub-select as the primary relation.
func (b *Builder) FromSubquery(stmt domain.Statement, alias string) *Builder {
	b.primary = &tableRef{sub: stmt, alias: alias}
	return b
}

// AddTable adds a secondary table, rendered in FROM for SELECT and UPDATE and in USING for
// DELETE.
func (b *Builder) AddTable(table, alias string) *Builder {
	b.tables = append(b.tables, tableRef{name: table, alias: alias})
	return b
}

// Where sets the WHERE criteria. Criteria may be a domain.Criterion, a criteria mapping,
// a list, or a raw SQL string.
func (b *Builder) Where(criteria any) *Builder {
	b.where = criteria
	return b
}

// Join adds a JOIN clause. An empty kind defaults to INNER.
func (b *Builder) Join(ref string, on any, alias string, kind JoinType) *Builder {
	if kind == "" {
		kind = InnerJoin
	}
	if alias != "" {
		for i, j := range b.joins {
			if j.alias == alias {
				b.joins[i] = join{kind: kind, ref: ref, alias: alias, on: on}
				return b
			}
		}
	}
	b.joins = append(b.joins, join{kind: kind, ref: ref, alias: alias, on: on})
	return b
}

// InnerJoin adds an INNER JOIN.
func (b *Builder) InnerJoin(ref string, on any, alias string) *Builder {
	return b.Join(ref, on, alias, InnerJoin)
}

// LeftJoin adds a LEFT JOIN.
func (b *Builder) LeftJoin(ref string, on any, alias string) *Builder {
	return b.Join(ref, on, alias, LeftJoin)
}

// RightJoin adds a RIGHT JOIN.
func (b *Builder) RightJoin(ref string, on any, alias string) *Builder {
	return b.Join(ref, on, alias, RightJoin)
}

// FullJoin adds a FULL JOIN.
func (b *Builder) FullJoin(ref string, on any, alias string) *Builder {
	return b.Join(ref, on, alias, FullJoin)
}

// Group sets the GROUP BY columns.
func (b *Builder) Group(columns ...string) *Builder {
	b.group = columns
	return b
}

// Having sets the HAVING criteria.
func (b *Builder) Having(criteria any) *Builder {
	b.having = criteria
	return b
}

// Window adds a named window definition.
func (b *Builder) Window(name string, partitionBy []string, order ...OrderTerm) *Builder {
	b.windows = append(b.windows, window{name: name, partitionBy: partitionBy, order: order})
	return b
}

// Order sets a single ORDER BY term.
func (b *Builder) Order(field string, desc bool) *Builder {
	return b.OrderBy(OrderTerm{Field: field, Desc: desc})
}

// OrderBy sets the ORDER BY terms.
func (b *Builder) OrderBy(terms ...OrderTerm) *Builder {
	b.order = b.order[:0]
	for _, t := range terms {
		b.order = append(b.order, orderItem{term: t})
	}
	return b
}

// OrderRaw sets a verbatim ORDER BY expression.
func (b *Builder) OrderRaw(expr string) *Builder {
	b.order = []orderItem{{raw: expr}}
	return b
}

// Limit sets LIMIT.
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}

// Offset sets OFFSET.
func (b *Builder) Offset(n int) *Builder {
	b.offset = &n
	return b
}

// Fetch sets FETCH FIRST (or NEXT) n ROWS ONLY.
func (b *Builder) Fetch(n int, next bool) *Builder {
	b.fetch = &fetch{next: next, count: n}
	return b
}

// Union appends UNION stmt.
func (b *Builder) Union(stmt domain.Statement) *Builder {
	b.combine = append(b.combine, combine{op: "UNION", stmt: stmt})
	return b
}

// Intersect appends INTERSECT stmt.
func (b *Builder) Intersect(stmt domain.Statement) *Builder {
	b.combine = append(b.combine, combine{op: "INTERSECT", stmt: stmt})
	return b
}

// Except appends EXCEPT stmt.
func (b *Builder) Except(stmt domain.Statement) *Builder {
	b.combine = append(b.combine, combine{op: "EXCEPT", stmt: stmt})
	return b
}

// Returning sets the RETURNING columns of INSERT, UPDATE and DELETE.
func (b *Builder) Returning(columns ...any) *Builder {
	b.returning = columns
	return b
}

// OnConflict sets the conflict handling of INSERT.
//
// update may be nil or false (DO NOTHING), true (update every inserted column), a list of
// column names, or a mapping of column to expression.
func (b *Builder) OnConflict(target []string, update any) *Builder {
	b.conflict = &conflict{target: target, update: update}
	return b
}

// Insert makes the builder render INSERT of fields, which may be a domain.M, a map, a
// domain.Model or a sub-select statement.
func (b *Builder) Insert(fields any) *Builder {
	b.kind = InsertStatement
	b.data = nil
	b.source = nil
	b.fields = b.fields[:0]
	switch t := fields.(type) {
	case domain.Statement:
		b.source = t
	default:
		data, err := fieldData(fields)
		if err != nil {
			b.errs = append(b.errs, err)
		}
		b.data = data
	}
	return b
}

// InsertSelect makes the builder render INSERT INTO table (columns) stmt.
func (b *Builder) InsertSelect(columns []string, stmt domain.Statement) *Builder {
	b.kind = InsertStatement
	b.data = nil
	b.source = stmt
	b.fields = b.fields[:0]
	for _, c := range columns {
		b.fields = append(b.fields, c)
	}
	return b
}

// Update makes the builder render UPDATE setting fields.
func (b *Builder) Update(fields any) *Builder {
	b.kind = UpdateStatement
	data, err := fieldData(fields)
	if err != nil {
		b.errs = append(b.errs, err)
	}
	b.data = data
	return b
}

// Delete makes the builder render DELETE.
func (b *Builder) Delete() *Builder {
	b.kind = DeleteStatement
	return b
}

// Truncate makes the builder render TRUNCATE.
func (b *Builder) Truncate(cascade bool) *Builder {
	b.kind = TruncateStatement
	b.cascade = cascade
	return b
}

// Values returns the parameters bound by the last rendering.
func (b *Builder) Values() map[string]any {
	if b.binder == nil {
		return map[string]any{}
	}
	return b.binder.Values()
}

func (b *Builder) compiler(binder domain.Binder) *compiler.SQLCompiler {
	opts := []compiler.Option{
		compiler.WithDialect(b.dialect),
		compiler.WithReservedWords(b.reserved),
	}
	if binder != nil {
		opts = append(opts, compiler.WithBinder(binder))
	}
	return compiler.NewSQLCompiler(opts...)
}
