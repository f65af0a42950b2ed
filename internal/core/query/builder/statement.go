package builder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazaarlabs/dbi/internal/core/query/compiler"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
	"github.com/hazaarlabs/dbi/internal/core/query/dsl"
)

// Compile renders the current statement. In bind mode the parameters are returned in
// Args; Groups carries the select-group aliases of a SELECT.
func (b *Builder) Compile() (domain.SQL, error) {
	var binder domain.Binder
	if b.bind {
		if b.binder == nil {
			b.binder = compiler.NewNamedBinder()
		}
		b.binder.Reset()
		binder = b.binder
	}

	sql, groups, err := b.render(b.compiler(binder))
	if err != nil {
		return domain.SQL{}, err
	}
	return domain.SQL{
		Query:   sql,
		Args:    b.Values(),
		Dialect: b.dialect,
		Groups:  groups,
	}, nil
}

// ToString renders the current statement.
func (b *Builder) ToString() (string, error) {
	compiled, err := b.Compile()
	if err != nil {
		return "", err
	}
	return compiled.Query, nil
}

// Statement renders the current statement terminated with a semicolon.
func (b *Builder) Statement() (string, error) {
	sql, err := b.ToString()
	if err != nil {
		return "", err
	}
	return sql + ";", nil
}

// Render renders the statement for nesting inside another statement, binding values to
// binder when it is not nil.
func (b *Builder) Render(binder domain.Binder) (string, error) {
	sql, _, err := b.render(b.compiler(binder))
	return sql, err
}

// Count renders the SELECT with its column list replaced by COUNT(*). Ordering and
// pagination are dropped.
func (b *Builder) Count() (string, error) {
	counter := *b
	counter.kind = SelectStatement
	counter.fields = []any{"COUNT(*)"}
	counter.order = nil
	counter.limit = nil
	counter.offset = nil
	counter.fetch = nil
	sql, err := counter.ToString()
	b.binder = counter.binder
	return sql, err
}

// Exists renders SELECT EXISTS (SELECT 1 FROM table WHERE criteria).
func (b *Builder) Exists(table string, criteria any) (string, error) {
	inner := b.Derive().Select("1").From(table).Where(criteria)
	inner.bind = b.bind
	sql, err := inner.ToString()
	b.binder = inner.binder
	if err != nil {
		return "", err
	}
	return "SELECT EXISTS (" + sql + ")", nil
}

// Create renders CREATE <kind> [IF NOT EXISTS] name.
func (b *Builder) Create(name, kind string, ifNotExists bool) string {
	sql := "CREATE " + strings.ToUpper(kind) + " "
	if ifNotExists {
		sql += "IF NOT EXISTS "
	}
	return sql + name
}

func (b *Builder) render(c *compiler.SQLCompiler) (string, map[string]string, error) {
	if len(b.errs) > 0 {
		return "", nil, errors.Join(b.errs...)
	}
	switch b.kind {
	case InsertStatement:
		sql, err := b.insertSQL(c)
		return sql, nil, err
	case UpdateStatement:
		sql, err := b.updateSQL(c)
		return sql, nil, err
	case DeleteStatement:
		sql, err := b.deleteSQL(c)
		return sql, nil, err
	case TruncateStatement:
		sql, err := b.truncateSQL(c)
		return sql, nil, err
	default:
		return b.selectSQL(c)
	}
}

func (b *Builder) selectSQL(c *compiler.SQLCompiler) (string, map[string]string, error) {
	var sb strings.Builder
	sb.WriteString("SELECT")

	if b.distinct {
		if len(b.distinctOn) > 0 {
			if !b.features.DistinctOn {
				return "", nil, unsupported(b.dialect, "DISTINCT ON")
			}
			sb.WriteString(" DISTINCT ON (" + b.fieldList(c, b.distinctOn) + ")")
		} else {
			sb.WriteString(" DISTINCT")
		}
	}

	fields, err := b.compileFields(c, b.fields)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" ")
	if fields.SQL == "" {
		sb.WriteString("*")
	} else {
		sb.WriteString(fields.SQL)
	}

	if b.primary != nil || len(b.tables) > 0 {
		from, err := b.fromSQL(c, true)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" FROM " + from)
	}

	for _, j := range b.joins {
		sb.WriteString(" " + string(j.kind) + " JOIN " + c.TableName(b.schema, j.ref))
		if j.alias != "" {
			sb.WriteString(" " + c.QuoteSpecial(j.alias))
		}
		if j.on != nil && j.kind != CrossJoin {
			on, err := b.criteria(c, j.on)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(" ON " + on)
		}
	}

	if b.where != nil {
		where, err := b.criteria(c, b.where)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE " + where)
	}

	if len(b.group) > 0 {
		sb.WriteString(" GROUP BY " + b.fieldList(c, b.group))
	}

	if b.having != nil {
		having, err := b.criteria(c, b.having)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" HAVING " + having)
	}

	if len(b.windows) > 0 {
		defs := make([]string, 0, len(b.windows))
		for _, w := range b.windows {
			def := w.name + " AS (PARTITION BY " + b.fieldList(c, w.partitionBy)
			if len(w.order) > 0 {
				def += " ORDER BY " + b.orderTerms(c, w.order, fields)
			}
			defs = append(defs, def+")")
		}
		sb.WriteString(" WINDOW " + strings.Join(defs, ", "))
	}

	if order := b.orderSQL(c, fields); order != "" {
		sb.WriteString(" ORDER BY " + order)
	}

	if b.limit != nil {
		sb.WriteString(" LIMIT " + strconv.Itoa(*b.limit))
	}
	if b.offset != nil {
		sb.WriteString(" OFFSET " + strconv.Itoa(*b.offset))
	}

	if b.fetch != nil {
		if !b.features.FetchFirst {
			return "", nil, unsupported(b.dialect, "FETCH")
		}
		which := "FIRST"
		if b.fetch.next {
			which = "NEXT"
		}
		rows := "ROWS"
		if b.fetch.count == 1 {
			rows = "ROW"
		}
		sb.WriteString(fmt.Sprintf(" FETCH %s %d %s ONLY", which, b.fetch.count, rows))
	}

	for _, cmb := range b.combine {
		sql, err := cmb.stmt.Render(c.Binder())
		if err != nil {
			return "", nil, fmt.Errorf("failed to render %s query: %w", strings.ToLower(cmb.op), err)
		}
		sb.WriteString("\n" + cmb.op + "\n" + sql)
	}

	return sb.String(), fields.Groups, nil
}

// fromSQL renders the primary and secondary tables. When withPrimary is false only the
// secondary tables are rendered.
func (b *Builder) fromSQL(c *compiler.SQLCompiler, withPrimary bool) (string, error) {
	refs := make([]tableRef, 0, len(b.tables)+1)
	if withPrimary && b.primary != nil {
		refs = append(refs, *b.primary)
	}
	refs = append(refs, b.tables...)

	parts := make([]string, 0, len(refs))
	for _, t := range refs {
		part, err := b.tableSQL(c, t)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", "), nil
}

func (b *Builder) tableSQL(c *compiler.SQLCompiler, t tableRef) (string, error) {
	if t.sub != nil {
		sql, err := t.sub.Render(c.Binder())
		if err != nil {
			return "", fmt.Errorf("failed to render sub-select: %w", err)
		}
		alias := t.alias
		if alias == "" {
			alias = lookupAlias("from:" + sql)
		}
		return "(" + sql + ") AS " + c.QuoteSpecial(alias), nil
	}

	var out string
	if strings.Contains(t.name, "(") {
		out = t.name
	} else {
		out = c.TableName(b.schema, t.name)
	}
	if t.alias != "" && t.alias != t.name {
		out += " AS " + c.QuoteSpecial(t.alias)
	}
	return out, nil
}

// tableAliases maps the names tables are referenced by to their table names.
func (b *Builder) tableAliases() (map[string]string, string) {
	aliases := map[string]string{}
	first := ""
	if b.primary != nil {
		name, alias, _ := strings.Cut(strings.TrimSpace(b.primary.name), " ")
		if b.primary.alias != "" {
			alias = b.primary.alias
		}
		key := name
		if alias != "" {
			key = strings.TrimSpace(alias)
		}
		aliases[key] = name
		first = key
	}
	for _, j := range b.joins {
		key := j.ref
		if j.alias != "" {
			key = j.alias
		}
		aliases[key] = j.ref
	}
	return aliases, first
}

func (b *Builder) criteria(c *compiler.SQLCompiler, input any) (string, error) {
	crit, err := dsl.Decode(input)
	if err != nil {
		return "", err
	}
	return c.Criteria(crit)
}

func (b *Builder) fieldList(c *compiler.SQLCompiler, names []string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, c.Field(n))
	}
	return strings.Join(out, ", ")
}

func unsupported(d domain.Dialect, clause string) error {
	return domain.NewValidationError(domain.KindUnsupported, fmt.Sprintf("%s is not supported by %s", clause, d))
}
