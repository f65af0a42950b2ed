package builder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hazaarlabs/dbi/internal/core/query/compiler"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

// fieldData normalizes the data of an INSERT or UPDATE into ordered pairs.
func fieldData(fields any) (domain.M, error) {
	switch t := fields.(type) {
	case nil:
		return domain.M{}, nil
	case domain.M:
		return t, nil
	case domain.Model:
		return t.WriteFields(), nil
	case map[string]any:
		return sortedPairs(t), nil
	}

	rv := reflect.ValueOf(fields)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return sortedPairs(m), nil
	}
	return nil, domain.NewValidationError(domain.KindInvalidValue, fmt.Sprintf("unsupported field data %T", fields))
}

func (b *Builder) target(c *compiler.SQLCompiler, statement string) (string, error) {
	if b.primary == nil || b.primary.sub != nil {
		return "", domain.NewValidationError(domain.KindInvalidCriteria, statement+" requires a table")
	}
	return b.tableSQL(c, *b.primary)
}

func (b *Builder) assignment(c *compiler.SQLCompiler, column string, value any) (string, error) {
	v, err := domain.ValueOf(value)
	if err != nil {
		return "", fmt.Errorf("invalid value for column %s: %w", column, err)
	}
	rendered, err := c.Value(v)
	if err != nil {
		return "", err
	}
	return rendered, nil
}

func (b *Builder) insertSQL(c *compiler.SQLCompiler) (string, error) {
	table, err := b.target(c, "INSERT")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO " + table)

	if b.source != nil {
		if len(b.fields) > 0 {
			columns := make([]string, 0, len(b.fields))
			for _, f := range b.fields {
				columns = append(columns, c.Field(fmt.Sprint(f)))
			}
			sb.WriteString(" (" + strings.Join(columns, ", ") + ")")
		}
		sql, err := b.source.Render(c.Binder())
		if err != nil {
			return "", fmt.Errorf("failed to render insert source: %w", err)
		}
		sb.WriteString(" " + sql)
	} else {
		columns := make([]string, 0, len(b.data))
		values := make([]string, 0, len(b.data))
		for _, p := range b.data {
			value, err := b.assignment(c, p.Key, p.Value)
			if err != nil {
				return "", err
			}
			columns = append(columns, c.Field(p.Key))
			values = append(values, value)
		}
		sb.WriteString(" (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(values, ", ") + ")")
	}

	if b.conflict != nil {
		clause, err := b.conflictSQL(c)
		if err != nil {
			return "", err
		}
		sb.WriteString(clause)
	}

	returning, err := b.returningSQL(c)
	if err != nil {
		return "", err
	}
	sb.WriteString(returning)
	return sb.String(), nil
}

// conflictSQL renders ON CONFLICT, or ON DUPLICATE KEY UPDATE for MySQL.
func (b *Builder) conflictSQL(c *compiler.SQLCompiler) (string, error) {
	if !b.features.Upsert {
		return "", unsupported(b.dialect, "ON CONFLICT")
	}

	updates, err := b.conflictUpdates(c)
	if err != nil {
		return "", err
	}

	if b.dialect == domain.MySQL {
		if len(updates) == 0 {
			key := ""
			switch {
			case len(b.conflict.target) > 0:
				key = b.conflict.target[0]
			case len(b.data) > 0:
				key = b.data[0].Key
			default:
				return "", domain.NewValidationError(domain.KindInvalidCriteria, "ON DUPLICATE KEY requires a column")
			}
			col := c.Field(key)
			return " ON DUPLICATE KEY UPDATE " + col + " = " + col, nil
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", "), nil
	}

	sql := " ON CONFLICT"
	if len(b.conflict.target) > 0 {
		sql += "(" + b.fieldList(c, b.conflict.target) + ")"
	}
	if len(updates) == 0 {
		return sql + " DO NOTHING", nil
	}
	return sql + " DO UPDATE SET " + strings.Join(updates, ", "), nil
}

// conflictUpdates renders the assignments of an upsert. Listed columns take the excluded
// value; columns that are conflict targets or were not inserted are skipped. Mapped
// columns take their expression verbatim.
func (b *Builder) conflictUpdates(c *compiler.SQLCompiler) ([]string, error) {
	var columns []string
	switch t := b.conflict.update.(type) {
	case nil:
		return nil, nil
	case bool:
		if !t {
			return nil, nil
		}
		columns = b.data.Keys()
	case string:
		columns = []string{t}
	case []string:
		columns = t
	case domain.M:
		return b.conflictExprs(c, t)
	case map[string]any:
		return b.conflictExprs(c, sortedPairs(t))
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[k] = v
		}
		return b.conflictExprs(c, sortedPairs(m))
	default:
		return nil, domain.NewValidationError(domain.KindInvalidValue, fmt.Sprintf("unsupported conflict update %T", t))
	}

	targets := make(map[string]struct{}, len(b.conflict.target))
	for _, t := range b.conflict.target {
		targets[t] = struct{}{}
	}
	out := make([]string, 0, len(columns))
	for _, col := range columns {
		if _, ok := targets[col]; ok {
			continue
		}
		if _, ok := b.data.Get(col); !ok {
			continue
		}
		field := c.Field(col)
		if b.dialect == domain.MySQL {
			out = append(out, field+" = VALUES("+field+")")
		} else {
			out = append(out, field+" = EXCLUDED."+field)
		}
	}
	return out, nil
}

func (b *Builder) conflictExprs(c *compiler.SQLCompiler, m domain.M) ([]string, error) {
	out := make([]string, 0, len(m))
	for _, p := range m {
		if expr, ok := p.Value.(string); ok {
			out = append(out, c.Field(p.Key)+" = "+expr)
			continue
		}
		value, err := b.assignment(c, p.Key, p.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, c.Field(p.Key)+" = "+value)
	}
	return out, nil
}

func (b *Builder) returningSQL(c *compiler.SQLCompiler) (string, error) {
	if len(b.returning) == 0 {
		return "", nil
	}
	if !b.features.Returning {
		return "", unsupported(b.dialect, "RETURNING")
	}
	fields, err := b.compileFields(c, b.returning)
	if err != nil {
		return "", err
	}
	return " RETURNING " + fields.SQL, nil
}

func (b *Builder) updateSQL(c *compiler.SQLCompiler) (string, error) {
	if len(b.data) == 0 {
		return "", domain.NewValidationError(domain.KindNoUpdate, "update has no fields to set")
	}
	table, err := b.target(c, "UPDATE")
	if err != nil {
		return "", err
	}

	sets := make([]string, 0, len(b.data))
	for _, p := range b.data {
		value, err := b.assignment(c, p.Key, p.Value)
		if err != nil {
			return "", err
		}
		sets = append(sets, c.Field(p.Key)+" = "+value)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE " + table + " SET " + strings.Join(sets, ", "))

	if len(b.tables) > 0 {
		from, err := b.fromSQL(c, false)
		if err != nil {
			return "", err
		}
		sb.WriteString(" FROM " + from)
	}

	if b.where != nil {
		where, err := b.criteria(c, b.where)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHERE " + where)
	}

	returning, err := b.returningSQL(c)
	if err != nil {
		return "", err
	}
	sb.WriteString(returning)
	return sb.String(), nil
}

// deleteSQL renders DELETE. A DELETE is always rendered with a WHERE clause, TRUE when no
// criteria are set.
func (b *Builder) deleteSQL(c *compiler.SQLCompiler) (string, error) {
	table, err := b.target(c, "DELETE")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("DELETE FROM " + table)

	if len(b.tables) > 0 {
		using, err := b.fromSQL(c, false)
		if err != nil {
			return "", err
		}
		sb.WriteString(" USING " + using)
	}

	where, err := b.criteria(c, b.where)
	if err != nil {
		return "", err
	}
	sb.WriteString(" WHERE " + where)

	returning, err := b.returningSQL(c)
	if err != nil {
		return "", err
	}
	sb.WriteString(returning)
	return sb.String(), nil
}

// truncateSQL renders TRUNCATE TABLE. Dialects without TRUNCATE get an unconditional
// DELETE.
func (b *Builder) truncateSQL(c *compiler.SQLCompiler) (string, error) {
	table, err := b.target(c, "TRUNCATE")
	if err != nil {
		return "", err
	}
	if b.cascade && !b.features.TruncateCascade {
		return "", unsupported(b.dialect, "TRUNCATE CASCADE")
	}
	if !b.features.Truncate {
		return "DELETE FROM " + table, nil
	}
	sql := "TRUNCATE TABLE " + table
	if b.cascade {
		sql += " CASCADE"
	}
	return sql, nil
}
