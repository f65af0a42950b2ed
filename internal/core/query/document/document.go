// Package document applies whole query documents, read from JSON or YAML, to a builder.
package document

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hazaarlabs/dbi/internal/core/query/builder"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
	"github.com/hazaarlabs/dbi/internal/core/query/dsl"
)

// Keys lists the recognized top-level keys in the order they are applied.
var Keys = []string{
	"statement", "select", "distinct", "from", "join", "where", "filter", "group", "having",
	"window", "order", "limit", "offset", "fetch", "fields", "returning", "conflict", "cascade",
}

// Document is a parsed query document.
//
//	statement: select
//	select: [id, name]
//	from: users
//	where: {active: true}
//	filter: "age >= 18"
//	order: ["-created_at", name]
//	limit: 10
type Document struct {
	m domain.M
}

// New wraps an already decoded document.
func New(m domain.M) *Document {
	return &Document{m: m}
}

// Parse reads a document in the given format.
func Parse(data []byte, format dsl.Format) (*Document, error) {
	parsed, err := dsl.Parse(data, format)
	if err != nil {
		return nil, err
	}
	m, ok := parsed.(domain.M)
	if !ok {
		return nil, invalid("document must be a mapping, got %T", parsed)
	}
	return New(m), nil
}

// Statement returns the statement kind of the document.
func (d *Document) Statement() builder.StatementKind {
	if v, ok := d.m.Get("statement"); ok {
		if s, ok := v.(string); ok {
			return builder.StatementKind(strings.ToLower(s))
		}
	}
	return builder.SelectStatement
}

// Compile applies the document to a new builder and compiles it.
func (d *Document) Compile(opts ...builder.Option) (domain.SQL, error) {
	b := builder.New(opts...)
	if err := d.Apply(b); err != nil {
		return domain.SQL{}, err
	}
	return b.Compile()
}

// Apply configures b from the document.
func (d *Document) Apply(b *builder.Builder) error {
	known := make(map[string]struct{}, len(Keys))
	for _, k := range Keys {
		known[k] = struct{}{}
	}
	for _, k := range d.m.Keys() {
		if _, ok := known[k]; !ok {
			return invalid("unknown key %q", k)
		}
	}

	kind := d.Statement()
	switch kind {
	case builder.SelectStatement, builder.InsertStatement, builder.UpdateStatement,
		builder.DeleteStatement, builder.TruncateStatement:
	default:
		return invalid("unknown statement %q", kind)
	}

	for _, key := range Keys[1:] {
		value, ok := d.m.Get(key)
		if !ok {
			continue
		}
		if err := d.apply(b, key, value); err != nil {
			return fmt.Errorf("failed to apply %s: %w", key, err)
		}
	}

	switch kind {
	case builder.InsertStatement:
		fields, _ := d.m.Get("fields")
		b.Insert(fields)
	case builder.UpdateStatement:
		fields, _ := d.m.Get("fields")
		b.Update(fields)
	case builder.DeleteStatement:
		b.Delete()
	case builder.TruncateStatement:
		cascade, _ := d.m.Get("cascade")
		b.Truncate(cascade == true)
	}
	return nil
}

func (d *Document) apply(b *builder.Builder, key string, value any) error {
	switch key {
	case "select":
		columns, ok := value.([]any)
		if !ok {
			columns = []any{value}
		}
		b.Select(columns...)

	case "distinct":
		switch t := value.(type) {
		case bool:
			if t {
				b.Distinct()
			}
		default:
			columns, err := stringList(value)
			if err != nil {
				return err
			}
			b.Distinct(columns...)
		}

	case "from":
		return applyFrom(b, value)

	case "join":
		items, ok := value.([]any)
		if !ok {
			items = []any{value}
		}
		for _, item := range items {
			if err := applyJoin(b, item); err != nil {
				return err
			}
		}

	case "where":
		crit, err := d.criteria()
		if err != nil {
			return err
		}
		b.Where(crit)

	case "filter":
		if _, ok := d.m.Get("where"); ok {
			return nil
		}
		crit, err := d.criteria()
		if err != nil {
			return err
		}
		b.Where(crit)

	case "group":
		columns, err := stringList(value)
		if err != nil {
			return err
		}
		b.Group(columns...)

	case "having":
		b.Having(value)

	case "window":
		items, ok := value.([]any)
		if !ok {
			items = []any{value}
		}
		for _, item := range items {
			if err := applyWindow(b, item); err != nil {
				return err
			}
		}

	case "order":
		terms, err := orderTerms(value)
		if err != nil {
			return err
		}
		b.OrderBy(terms...)

	case "limit":
		n, err := integer(value)
		if err != nil {
			return err
		}
		b.Limit(n)

	case "offset":
		n, err := integer(value)
		if err != nil {
			return err
		}
		b.Offset(n)

	case "fetch":
		return applyFetch(b, value)

	case "returning":
		columns, ok := value.([]any)
		if !ok {
			columns = []any{value}
		}
		b.Returning(columns...)

	case "conflict":
		return applyConflict(b, value)
	}
	return nil
}

// criteria combines where and filter into one criterion.
func (d *Document) criteria() (domain.Criterion, error) {
	var terms domain.And
	if where, ok := d.m.Get("where"); ok {
		crit, err := dsl.Decode(where)
		if err != nil {
			return nil, err
		}
		if crit != nil {
			terms = append(terms, crit)
		}
	}
	if filter, ok := d.m.Get("filter"); ok {
		text, ok := filter.(string)
		if !ok {
			return nil, invalid("filter must be a string, got %T", filter)
		}
		crit, err := dsl.ParseFilter(text)
		if err != nil {
			return nil, err
		}
		terms = append(terms, crit)
	}
	switch len(terms) {
	case 0:
		return nil, nil
	case 1:
		return terms[0], nil
	}
	return terms, nil
}

func applyFrom(b *builder.Builder, value any) error {
	switch t := value.(type) {
	case string:
		b.From(t)
	case domain.M:
		table, _ := t.Get("table")
		name, ok := table.(string)
		if !ok {
			return invalid("from.table must be a string, got %T", table)
		}
		alias, _ := t.Get("alias")
		if s, ok := alias.(string); ok && s != "" {
			b.FromAs(name, s)
		} else {
			b.From(name)
		}
	default:
		return invalid("from must be a string or mapping, got %T", value)
	}
	return nil
}

func applyJoin(b *builder.Builder, value any) error {
	m, ok := value.(domain.M)
	if !ok {
		return invalid("join must be a mapping, got %T", value)
	}
	table, _ := m.Get("table")
	ref, ok := table.(string)
	if !ok {
		return invalid("join.table must be a string, got %T", table)
	}
	on, _ := m.Get("on")
	alias, _ := m.Get("alias")
	kind, _ := m.Get("type")
	aliasName, _ := alias.(string)
	kindName, _ := kind.(string)

	if s, ok := on.(string); ok {
		crit, err := dsl.ParseFilter(s)
		if err == nil {
			on = crit
		}
	}
	b.Join(ref, on, aliasName, builder.JoinType(strings.ToUpper(kindName)))
	return nil
}

func applyWindow(b *builder.Builder, value any) error {
	m, ok := value.(domain.M)
	if !ok {
		return invalid("window must be a mapping, got %T", value)
	}
	name, _ := m.Get("name")
	s, ok := name.(string)
	if !ok || s == "" {
		return invalid("window.name must be a string")
	}
	partition, _ := m.Get("partition")
	columns, err := stringList(partition)
	if err != nil {
		return err
	}
	var terms []builder.OrderTerm
	if order, ok := m.Get("order"); ok {
		if terms, err = orderTerms(order); err != nil {
			return err
		}
	}
	b.Window(s, columns, terms...)
	return nil
}

func applyFetch(b *builder.Builder, value any) error {
	if m, ok := value.(domain.M); ok {
		count, _ := m.Get("count")
		n, err := integer(count)
		if err != nil {
			return err
		}
		next, _ := m.Get("next")
		b.Fetch(n, next == true)
		return nil
	}
	n, err := integer(value)
	if err != nil {
		return err
	}
	b.Fetch(n, false)
	return nil
}

func applyConflict(b *builder.Builder, value any) error {
	m, ok := value.(domain.M)
	if !ok {
		return invalid("conflict must be a mapping, got %T", value)
	}
	target, _ := m.Get("target")
	columns, err := stringList(target)
	if err != nil {
		return err
	}
	update, _ := m.Get("update")
	if list, ok := update.([]any); ok {
		names, err := stringList(list)
		if err != nil {
			return err
		}
		update = names
	}
	b.OnConflict(columns, update)
	return nil
}

// orderTerms reads "field", "-field", "field desc", "field asc nulls first" or a mapping of
// field to direction.
func orderTerms(value any) ([]builder.OrderTerm, error) {
	switch t := value.(type) {
	case string:
		term, err := orderTerm(t)
		if err != nil {
			return nil, err
		}
		return []builder.OrderTerm{term}, nil
	case []any:
		var out []builder.OrderTerm
		for _, item := range t {
			terms, err := orderTerms(item)
			if err != nil {
				return nil, err
			}
			out = append(out, terms...)
		}
		return out, nil
	case domain.M:
		out := make([]builder.OrderTerm, 0, len(t))
		for _, p := range t {
			dir, _ := p.Value.(string)
			term, err := orderTerm(p.Key + " " + dir)
			if err != nil {
				return nil, err
			}
			out = append(out, term)
		}
		return out, nil
	}
	return nil, invalid("order must be a string, list or mapping, got %T", value)
}

func orderTerm(s string) (builder.OrderTerm, error) {
	words := strings.Fields(s)
	if len(words) == 0 {
		return builder.OrderTerm{}, invalid("empty order term")
	}
	term := builder.OrderTerm{Field: words[0]}
	if strings.HasPrefix(term.Field, "-") {
		term.Field = term.Field[1:]
		term.Desc = true
	}
	rest := strings.ToUpper(strings.Join(words[1:], " "))
	switch {
	case rest == "":
	case strings.HasPrefix(rest, "DESC"):
		term.Desc = true
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "DESC"))
	case strings.HasPrefix(rest, "ASC"):
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "ASC"))
	}
	switch rest {
	case "":
	case "NULLS FIRST":
		term.NullsFirst = true
	case "NULLS LAST":
	default:
		return builder.OrderTerm{}, invalid("invalid order term %q", s)
	}
	return term, nil
}

func stringList(value any) ([]string, error) {
	switch t := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, invalid("expected a list of names, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, invalid("expected a name or list of names, got %T", value)
}

func integer(value any) (int, error) {
	switch t := value.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case decimal.Decimal:
		if t.IsInteger() {
			return int(t.IntPart()), nil
		}
	}
	return 0, invalid("expected an integer, got %v", value)
}

func invalid(format string, args ...any) error {
	return domain.NewValidationError(domain.KindInvalidCriteria, "document: "+fmt.Sprintf(format, args...))
}
