package compiler

import "strings"

// Field renders an identifier, quoting it only when it is a reserved word.
func (c *SQLCompiler) Field(name string) string {
	if _, ok := c.reserved[strings.ToUpper(name)]; ok {
		return c.QuoteSpecial(name)
	}
	return name
}

// Reserved reports whether name is a configured reserved word.
func (c *SQLCompiler) Reserved(name string) bool {
	_, ok := c.reserved[strings.ToUpper(name)]
	return ok
}

// QuoteSpecial quotes every dot separated segment of name. A "*" segment is left bare.
func (c *SQLCompiler) QuoteSpecial(name string) string {
	q := string(c.dialect.IdentifierQuote())
	parts := strings.Split(name, ".")
	for i, part := range parts {
		if part == "*" {
			continue
		}
		parts[i] = q + strings.ReplaceAll(part, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

// TableName renders a table reference of the form "name [alias]", qualifying the name
// with schema when it has none.
func (c *SQLCompiler) TableName(schema, table string) string {
	name, alias, _ := strings.Cut(strings.TrimSpace(table), " ")
	if schema != "" && !strings.Contains(name, ".") {
		name = schema + "." + name
	}
	out := c.QuoteSpecial(name)
	if alias = strings.TrimSpace(alias); alias != "" {
		out += " " + c.QuoteSpecial(alias)
	}
	return out
}
