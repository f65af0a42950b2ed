// Package compiler renders criteria expressions and values to SQL text.
package compiler

import (
	"fmt"
	"strings"

	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

// SQLCompiler renders domain criteria and values for one dialect.
type SQLCompiler struct {
	dialect  domain.Dialect
	reserved map[string]struct{}
	binder   domain.Binder
}

// Option configures a SQLCompiler.
type Option func(*SQLCompiler)

// WithDialect sets the target dialect.
func WithDialect(d domain.Dialect) Option {
	return func(c *SQLCompiler) {
		c.dialect = d
	}
}

// WithReservedWords sets the identifiers that must be quoted. Matching is case-insensitive.
func WithReservedWords(words []string) Option {
	return func(c *SQLCompiler) {
		c.reserved = make(map[string]struct{}, len(words))
		for _, w := range words {
			c.reserved[strings.ToUpper(w)] = struct{}{}
		}
	}
}

// WithBinder switches value rendering to named placeholders collected by b.
func WithBinder(b domain.Binder) Option {
	return func(c *SQLCompiler) {
		c.binder = b
	}
}

// NewSQLCompiler creates a new SQL compiler. The default dialect is PostgreSQL with no
// reserved words and inline values.
func NewSQLCompiler(opts ...Option) *SQLCompiler {
	c := &SQLCompiler{
		dialect:  domain.PostgreSQL,
		reserved: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dialect returns the target dialect.
func (c *SQLCompiler) Dialect() domain.Dialect {
	return c.dialect
}

// Binder returns the active binder, nil when values are inlined.
func (c *SQLCompiler) Binder() domain.Binder {
	return c.binder
}

// Criteria renders a criteria expression.
//
// A nil criterion and an empty group render as TRUE. Groups of two or more terms are
// parenthesized, a single term never is.
func (c *SQLCompiler) Criteria(crit domain.Criterion) (string, error) {
	return c.render(crit, "")
}

func (c *SQLCompiler) render(crit domain.Criterion, subject string) (string, error) {
	switch t := crit.(type) {
	case nil:
		return "TRUE", nil
	case domain.Raw:
		return t.SQL, nil
	case domain.Compare:
		return c.compare(t, subject)
	case domain.And:
		return c.join(t, "AND", subject, true)
	case domain.Or:
		return c.join(t, "OR", subject, true)
	case domain.Group:
		inner, err := c.join(t.Terms, strings.ToUpper(t.Keyword), subject, true)
		if err != nil {
			return "", err
		}
		prefix := t.Prefix
		if prefix == "" {
			prefix = domain.Eq
		}
		return string(prefix) + " " + inner, nil
	case domain.Not:
		return c.not(t, subject)
	case domain.Exists:
		where, err := c.render(t.Where, "")
		if err != nil {
			return "", err
		}
		return "EXISTS (SELECT * FROM " + c.Field(t.Table) + " WHERE " + where + ")", nil
	case domain.Sub:
		if t.Query == nil {
			return "", domain.NewValidationError(domain.KindInvalidCriteria, "sub-select criterion without a query")
		}
		sql, err := t.Query.Render(c.binder)
		if err != nil {
			return "", fmt.Errorf("failed to render sub-select: %w", err)
		}
		if t.Test == nil {
			return "(" + sql + ")", nil
		}
		return c.render(t.Test, "("+sql+")")
	}
	return "", domain.NewValidationError(domain.KindInvalidCriteria, fmt.Sprintf("unknown criterion %T", crit))
}

func (c *SQLCompiler) join(terms []domain.Criterion, keyword, subject string, wrap bool) (string, error) {
	if len(terms) == 0 {
		return "TRUE", nil
	}
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		part, err := c.render(term, subject)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	sql := strings.Join(parts, " "+keyword+" ")
	if wrap && len(parts) > 1 {
		return "(" + sql + ")", nil
	}
	return sql, nil
}

func (c *SQLCompiler) not(n domain.Not, subject string) (string, error) {
	var (
		inner string
		err   error
	)
	switch t := n.Term.(type) {
	case domain.And:
		inner, err = c.join(t, "AND", subject, false)
	case domain.Or:
		inner, err = c.join(t, "OR", subject, false)
	default:
		inner, err = c.render(t, subject)
	}
	if err != nil {
		return "", err
	}
	return "NOT (" + inner + ")", nil
}
