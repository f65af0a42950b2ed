package builder

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/hazaarlabs/dbi/internal/core/query/compiler"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

var wildcardPattern = regexp.MustCompile(`^(?:(\w+)\.)?\*$`)

// CompiledFields is a rendered column list together with the select-group aliases that
// later clauses and result mapping resolve names through.
type CompiledFields struct {
	SQL string
	// Groups maps lookup aliases to the dotted names of grouped columns.
	Groups map[string]string
	// TableGroups maps table references selected with a wildcard to their group name.
	TableGroups map[string]string
	primary     string
}

// Resolve returns the lookup alias selected for a dotted name, or an empty string.
func (f CompiledFields) Resolve(name string) string {
	for lookup, dotted := range f.Groups {
		if dotted == name {
			return lookup
		}
	}
	return ""
}

// orderName resolves an order field through the select groups. The field is tried as a
// dotted name and then relative to the group of the primary table.
func (f CompiledFields) orderName(c *compiler.SQLCompiler, field string) string {
	if lookup := f.Resolve(field); lookup != "" {
		return lookup
	}
	if f.primary != "" {
		prefix := f.primary
		if group, ok := f.TableGroups[f.primary]; ok {
			prefix = group
		}
		if lookup := f.Resolve(prefix + "." + field); lookup != "" {
			return lookup
		}
	}
	return c.Field(field)
}

// lookupAlias derives a stable column alias for a dotted name.
func lookupAlias(name string) string {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
	return "_" + strings.ReplaceAll(id.String(), "-", "")
}

func (b *Builder) compileFields(c *compiler.SQLCompiler, fields []any) (CompiledFields, error) {
	aliases, primary := b.tableAliases()
	out := CompiledFields{
		Groups:      map[string]string{},
		TableGroups: map[string]string{},
		primary:     primary,
	}
	parts, err := b.fieldParts(c, fields, aliases, primary, &out)
	if err != nil {
		return CompiledFields{}, err
	}
	out.SQL = strings.Join(parts, ", ")
	return out, nil
}

func (b *Builder) fieldParts(c *compiler.SQLCompiler, fields []any, aliases map[string]string, primary string, out *CompiledFields) ([]string, error) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		switch t := f.(type) {
		case string:
			parts = append(parts, c.Field(t))
		case []string:
			for _, s := range t {
				parts = append(parts, c.Field(s))
			}
		case []any:
			nested, err := b.fieldParts(c, t, aliases, primary, out)
			if err != nil {
				return nil, err
			}
			parts = append(parts, nested...)
		case domain.Statement:
			sql, err := t.Render(c.Binder())
			if err != nil {
				return nil, fmt.Errorf("failed to render column sub-select: %w", err)
			}
			parts = append(parts, "("+sql+")")
		case domain.M:
			aliased, err := b.aliasedFields(c, t, aliases, primary, out)
			if err != nil {
				return nil, err
			}
			parts = append(parts, aliased...)
		case map[string]any:
			aliased, err := b.aliasedFields(c, sortedPairs(t), aliases, primary, out)
			if err != nil {
				return nil, err
			}
			parts = append(parts, aliased...)
		case map[string]string:
			m := make(map[string]any, len(t))
			for k, v := range t {
				m[k] = v
			}
			aliased, err := b.aliasedFields(c, sortedPairs(m), aliases, primary, out)
			if err != nil {
				return nil, err
			}
			parts = append(parts, aliased...)
		default:
			return nil, domain.NewValidationError(domain.KindInvalidValue, fmt.Sprintf("unsupported column %T", f))
		}
	}
	return parts, nil
}

func (b *Builder) aliasedFields(c *compiler.SQLCompiler, m domain.M, aliases map[string]string, primary string, out *CompiledFields) ([]string, error) {
	parts := make([]string, 0, len(m))
	for _, p := range m {
		if p.Key == "" {
			nested, err := b.fieldParts(c, []any{p.Value}, aliases, primary, out)
			if err != nil {
				return nil, err
			}
			parts = append(parts, nested...)
			continue
		}

		switch t := p.Value.(type) {
		case string:
			parts = append(parts, b.aliasedExpr(c, p.Key, t, aliases, primary, out))

		case domain.M, map[string]any:
			leaves := flatten(p.Key, t)
			for _, leaf := range leaves {
				expr, ok := leaf.Value.(string)
				if !ok {
					return nil, domain.NewValidationError(domain.KindInvalidValue,
						fmt.Sprintf("column group %q must map to expressions, got %T", leaf.Key, leaf.Value))
				}
				parts = append(parts, b.aliasedExpr(c, leaf.Key, expr, aliases, primary, out))
			}

		case domain.Statement:
			sql, err := t.Render(c.Binder())
			if err != nil {
				return nil, fmt.Errorf("failed to render column sub-select: %w", err)
			}
			parts = append(parts, "("+sql+") AS "+c.Field(p.Key))

		default:
			v, err := domain.ValueOf(t)
			if err != nil {
				return nil, err
			}
			rendered, err := c.Value(v)
			if err != nil {
				return nil, err
			}
			parts = append(parts, rendered+" AS "+c.Field(p.Key))
		}
	}
	return parts, nil
}

// aliasedExpr renders one aliased column. Dotted aliases become select groups selected
// under a lookup alias; wildcards record the group of their table.
func (b *Builder) aliasedExpr(c *compiler.SQLCompiler, alias, expr string, aliases map[string]string, primary string, out *CompiledFields) string {
	if match := wildcardPattern.FindStringSubmatch(expr); match != nil {
		table := match[1]
		if table == "" {
			table = primary
			expr = primary + ".*"
		}
		if table != "" {
			out.TableGroups[table] = alias
		}
		return expr
	}
	if strings.Contains(alias, ".") {
		lookup := lookupAlias(alias)
		out.Groups[lookup] = alias
		return c.Field(expr) + " AS " + lookup
	}
	return c.Field(expr) + " AS " + c.Field(alias)
}

// flatten expands nested groups into dotted leaves.
func flatten(prefix string, value any) domain.M {
	var m domain.M
	switch t := value.(type) {
	case domain.M:
		m = t
	case map[string]any:
		m = sortedPairs(t)
	default:
		return domain.M{{Key: prefix, Value: value}}
	}
	out := domain.M{}
	for _, p := range m {
		out = append(out, flatten(prefix+"."+p.Key, p.Value)...)
	}
	return out
}

func sortedPairs(m map[string]any) domain.M {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(domain.M, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.Pair{Key: k, Value: m[k]})
	}
	return out
}

func (b *Builder) orderSQL(c *compiler.SQLCompiler, fields CompiledFields) string {
	parts := make([]string, 0, len(b.order))
	for _, item := range b.order {
		if item.raw != "" {
			parts = append(parts, item.raw)
			continue
		}
		parts = append(parts, b.orderTerm(c, item.term, fields))
	}
	return strings.Join(parts, ", ")
}

func (b *Builder) orderTerms(c *compiler.SQLCompiler, terms []OrderTerm, fields CompiledFields) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, b.orderTerm(c, t, fields))
	}
	return strings.Join(parts, ", ")
}

func (b *Builder) orderTerm(c *compiler.SQLCompiler, t OrderTerm, fields CompiledFields) string {
	sql := fields.orderName(c, t.Field)
	if t.Desc {
		sql += " DESC"
	} else {
		sql += " ASC"
	}
	if b.features.NullsOrder {
		if t.NullsFirst {
			sql += " NULLS FIRST"
		} else {
			sql += " NULLS LAST"
		}
	}
	return sql
}
