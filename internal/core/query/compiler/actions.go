package compiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

func (c *SQLCompiler) compare(cmp domain.Compare, subject string) (string, error) {
	lhs := subject
	if cmp.Field != "" {
		lhs = c.Field(cmp.Field)
	}
	value := cmp.Value
	if value == nil {
		value = domain.Null{}
	}

	rhs, err := c.operation(cmp.Op, cmp.Field, value)
	if err != nil {
		return "", err
	}
	if lhs == "" {
		return rhs, nil
	}
	if cmp.Field != "" && (cmp.Op == domain.IsNull || cmp.Op == domain.NotNull) {
		return c.QuoteSpecial(cmp.Field) + " " + rhs, nil
	}
	return lhs + " " + rhs, nil
}

// operation renders the operator and right-hand operand of a comparison.
func (c *SQLCompiler) operation(op domain.Operator, field string, value domain.Value) (string, error) {
	switch op {
	case "", domain.Eq:
		switch value.(type) {
		case domain.Null, domain.Bool:
			return c.prefixed("IS", value)
		}
		return c.prefixed("=", value)

	case domain.Ne:
		switch value.(type) {
		case domain.Null:
			return "IS NOT NULL", nil
		case domain.Bool:
			return c.prefixed("IS NOT", value)
		}
		return c.prefixed("!=", value)

	case domain.Gt, domain.Gte, domain.Lt, domain.Lte:
		return c.prefixed(string(op), value)

	case domain.In, domain.NotIn:
		return c.in(op, field, value)

	case domain.Like, domain.ILike, domain.Regex, domain.IRegex, domain.NotRegex, domain.NotIRegex:
		pattern, err := c.pattern(value)
		if err != nil {
			return "", err
		}
		return string(op) + " " + pattern, nil

	case domain.Between:
		bounds, ok := value.(domain.Array)
		if !ok || len(bounds) != 2 {
			n := 1
			if ok {
				n = len(bounds)
			}
			return "", domain.NewValidationError(domain.KindBetweenArity,
				fmt.Sprintf("BETWEEN requires exactly 2 elements, %d given", n))
		}
		low, err := c.Value(bounds[0])
		if err != nil {
			return "", err
		}
		high, err := c.Value(bounds[1])
		if err != nil {
			return "", err
		}
		return "BETWEEN " + low + " AND " + high, nil

	case domain.Ref:
		ref, err := literalText(value)
		if err != nil {
			return "", err
		}
		return "= " + ref, nil

	case domain.JSONEq:
		encoded, err := json.Marshal(jsonPayload(value))
		if err != nil {
			return "", domain.NewValidationError(domain.KindInvalidValue, fmt.Sprintf("failed to encode JSON: %v", err))
		}
		rendered, err := c.Value(domain.Text(encoded))
		if err != nil {
			return "", err
		}
		return "= " + rendered, nil

	case domain.IsNull:
		return "IS NULL", nil

	case domain.NotNull:
		return "IS NOT NULL", nil
	}
	return "", domain.NewValidationError(domain.KindInvalidCriteria, fmt.Sprintf("unknown operator %q", op))
}

func (c *SQLCompiler) prefixed(op string, value domain.Value) (string, error) {
	rendered, err := c.Value(value)
	if err != nil {
		return "", err
	}
	return op + " " + rendered, nil
}

func (c *SQLCompiler) in(op domain.Operator, field string, value domain.Value) (string, error) {
	var list string
	switch t := value.(type) {
	case domain.Array:
		if len(t) == 0 {
			return "", domain.NewValidationError(domain.KindEmptyList,
				fmt.Sprintf("%s on %q requires a non-empty list", op, field))
		}
		items := make([]string, 0, len(t))
		for _, item := range t {
			rendered, err := c.Value(item)
			if err != nil {
				return "", err
			}
			items = append(items, rendered)
		}
		list = strings.Join(items, ", ")
	case domain.Subquery:
		sql, err := t.Statement.Render(c.binder)
		if err != nil {
			return "", fmt.Errorf("failed to render sub-select: %w", err)
		}
		list = sql
	case domain.Literal:
		list = string(t)
	default:
		rendered, err := c.Value(value)
		if err != nil {
			return "", err
		}
		list = rendered
	}
	return string(op) + " (" + list + ")", nil
}

// pattern renders a LIKE or regex operand, always as a quoted string.
func (c *SQLCompiler) pattern(value domain.Value) (string, error) {
	switch t := value.(type) {
	case domain.Param, domain.Literal:
		return c.Value(t)
	case domain.Text:
		return c.text(string(t), false)
	case domain.Number:
		return c.text(string(t), false)
	case domain.Bool:
		if t {
			return c.text("true", false)
		}
		return c.text("false", false)
	}
	return "", domain.NewValidationError(domain.KindInvalidValue, fmt.Sprintf("pattern operand must be a string, got %T", value))
}

func literalText(value domain.Value) (string, error) {
	switch t := value.(type) {
	case domain.Literal:
		return string(t), nil
	case domain.Text:
		return string(t), nil
	}
	return "", domain.NewValidationError(domain.KindInvalidValue, fmt.Sprintf("reference must be a string, got %T", value))
}

func jsonPayload(value domain.Value) any {
	switch t := value.(type) {
	case domain.Null:
		return nil
	case domain.Bool:
		return bool(t)
	case domain.Number:
		return json.Number(t)
	case domain.Text:
		return string(t)
	case domain.Time:
		return t.Time
	case domain.JSON:
		return t.Data
	case domain.ModelValue:
		return t.Model.WriteFields().Map()
	case domain.Array:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, jsonPayload(item))
		}
		return out
	case domain.Param:
		return ":" + string(t)
	case domain.Literal:
		return string(t)
	}
	return nil
}
