package compiler

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

// TimestampLayout is the layout of rendered timestamp literals.
const TimestampLayout = "2006-01-02 15:04:05"

// placeholderPattern matches strings that are passed through as named bind placeholders.
var placeholderPattern = regexp.MustCompile(`^:[A-Za-z_][A-Za-z0-9_]*$`)

// Value renders a value operand.
//
// With a binder configured, text, numbers, timestamps and JSON documents are replaced by
// named placeholders, including text that already looks like one. NULL and booleans are
// always inlined.
func (c *SQLCompiler) Value(v domain.Value) (string, error) {
	switch t := v.(type) {
	case nil, domain.Null:
		return "NULL", nil
	case domain.Bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case domain.Number:
		if c.binder != nil {
			return c.binder.Bind(numberArg(t)), nil
		}
		return string(t), nil
	case domain.Text:
		return c.text(string(t), true)
	case domain.Time:
		if c.binder != nil {
			return c.binder.Bind(t.Time), nil
		}
		return c.Quote(t.Format(TimestampLayout)), nil
	case domain.JSON:
		return c.json(t.Data)
	case domain.ModelValue:
		return c.json(t.Model.WriteFields().Map())
	case domain.Array:
		if len(t) == 0 {
			return "NULL", nil
		}
		items := make([]string, 0, len(t))
		for _, item := range t {
			rendered, err := c.Value(item)
			if err != nil {
				return "", err
			}
			items = append(items, rendered)
		}
		return strings.Join(items, ", "), nil
	case domain.Param:
		return ":" + string(t), nil
	case domain.Subquery:
		sql, err := t.Statement.Render(c.binder)
		if err != nil {
			return "", fmt.Errorf("failed to render sub-select: %w", err)
		}
		return "(" + sql + ")", nil
	case domain.Literal:
		return string(t), nil
	case domain.Nested:
		return c.Criteria(t.Criterion)
	}
	return "", domain.NewValidationError(domain.KindInvalidValue, fmt.Sprintf("unknown value %T", v))
}

// text renders a string literal. With a binder every string is bound. Otherwise, when
// placeholders is set, a well-formed ":name" is emitted as-is.
func (c *SQLCompiler) text(s string, placeholders bool) (string, error) {
	if c.binder != nil {
		return c.binder.Bind(s), nil
	}
	if placeholders && placeholderPattern.MatchString(s) {
		return s, nil
	}
	return c.Quote(s), nil
}

func (c *SQLCompiler) json(data any) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", domain.NewValidationError(domain.KindInvalidValue, fmt.Sprintf("failed to encode JSON: %v", err))
	}
	if c.binder != nil {
		return c.binder.Bind(string(encoded)), nil
	}
	return c.Quote(string(encoded)), nil
}

// Quote renders s as a string literal. Single quotes are doubled. MySQL additionally
// treats backslash as an escape character.
func (c *SQLCompiler) Quote(s string) string {
	if c.dialect == domain.MySQL {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func numberArg(n domain.Number) any {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i
	}
	if d, err := decimal.NewFromString(string(n)); err == nil {
		return d
	}
	return string(n)
}

// NamedBinder collects values for named placeholders :v0, :v1, ...
type NamedBinder struct {
	values map[string]any
	next   int
}

// NewNamedBinder creates an empty binder.
func NewNamedBinder() *NamedBinder {
	return &NamedBinder{values: map[string]any{}}
}

// Bind stores value and returns its placeholder.
func (b *NamedBinder) Bind(value any) string {
	name := "v" + strconv.Itoa(b.next)
	b.next++
	b.values[name] = value
	return ":" + name
}

// Values returns a copy of the bound values keyed by placeholder name.
func (b *NamedBinder) Values() map[string]any {
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Reset discards all bound values.
func (b *NamedBinder) Reset() {
	b.values = map[string]any{}
	b.next = 0
}

var _ domain.Binder = (*NamedBinder)(nil)
