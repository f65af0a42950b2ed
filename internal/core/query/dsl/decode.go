// Package dsl reads the sigil keyed criteria language, query documents and filter
// expressions into domain criteria.
package dsl

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

// Sigil marks a criteria key as an action rather than a field name.
const Sigil = "$"

// scope is the context threaded through recursive decoding.
type scope struct {
	op      domain.Operator // contextual comparison operator
	subject string          // field bound by the enclosing key
}

// Decode converts criteria into a criteria expression.
//
// Accepted inputs are a domain.Criterion (returned as is), a string (a raw SQL fragment),
// an ordered domain.M, a map (read in sorted key order) or a list of positional entries.
func Decode(input any) (domain.Criterion, error) {
	return decode(input, scope{op: domain.Eq})
}

func decode(input any, sc scope) (domain.Criterion, error) {
	switch t := input.(type) {
	case nil:
		return nil, nil
	case domain.Criterion:
		return t, nil
	case string:
		return domain.Raw{SQL: t}, nil
	case domain.Statement:
		return domain.Sub{Query: t}, nil
	}

	m, ok := toM(input)
	if !ok {
		if sc.subject == "" {
			return nil, domain.NewValidationError(domain.KindInvalidCriteria,
				fmt.Sprintf("criteria must be a mapping, list or string, got %T", input))
		}
		return leaf(sc.subject, sc.op, input)
	}

	terms, err := entries(m, sc)
	if err != nil {
		return nil, err
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return domain.And(terms), nil
}

func entries(m domain.M, sc scope) ([]domain.Criterion, error) {
	terms := make([]domain.Criterion, 0, len(m))
	for _, p := range m {
		switch {
		case p.Key == "":
			term, err := positional(p.Value, sc)
			if err != nil {
				return nil, err
			}
			terms = append(terms, term)

		case strings.HasPrefix(p.Key, Sigil):
			action, err := decodeAction(strings.ToLower(strings.TrimPrefix(p.Key, Sigil)), p.Value, sc)
			if err != nil {
				return nil, err
			}
			terms = append(terms, action...)

		default:
			term, err := field(qualify(p.Key, sc.subject), p.Value, sc)
			if err != nil {
				return nil, err
			}
			terms = append(terms, term)
		}
	}
	return terms, nil
}

func positional(value any, sc scope) (domain.Criterion, error) {
	if s, ok := value.(string); ok {
		return domain.Raw{SQL: "(" + s + ")"}, nil
	}
	return decode(value, sc)
}

func field(name string, value any, sc scope) (domain.Criterion, error) {
	switch t := value.(type) {
	case domain.Criterion:
		return t, nil
	case domain.Statement:
		return domain.Compare{Field: name, Op: sc.op, Value: domain.Subquery{Statement: t}}, nil
	case domain.Value:
		return leaf(name, sc.op, t)
	}
	if isMapping(value) {
		return decode(value, scope{op: sc.op, subject: name})
	}
	return leaf(name, sc.op, value)
}

// leaf compiles a scalar or list bound to a field. Lists are membership tests.
func leaf(name string, op domain.Operator, value any) (domain.Criterion, error) {
	v, err := domain.ValueOf(value)
	if err != nil {
		return nil, err
	}
	if list, ok := v.(domain.Array); ok && isList(value) {
		if op == domain.Ne {
			return domain.Compare{Field: name, Op: domain.NotIn, Value: list}, nil
		}
		return domain.Compare{Field: name, Op: domain.In, Value: list}, nil
	}
	return domain.Compare{Field: name, Op: op, Value: v}, nil
}

func decodeAction(name string, value any, sc scope) ([]domain.Criterion, error) {
	one := func(c domain.Criterion, err error) ([]domain.Criterion, error) {
		if err != nil {
			return nil, err
		}
		return []domain.Criterion{c}, nil
	}

	switch name {
	case "and", "or":
		m, ok := toM(value)
		if !ok {
			return nil, domain.NewValidationError(domain.KindInvalidCriteria, fmt.Sprintf("$%s requires a mapping or list", name))
		}
		terms, err := entries(m, sc)
		if err != nil {
			return nil, err
		}
		if name == "or" {
			return []domain.Criterion{domain.Or(terms)}, nil
		}
		return []domain.Criterion{domain.And(terms)}, nil

	case "ne":
		if isMapping(value) {
			return one(decode(value, scope{op: domain.Ne, subject: sc.subject}))
		}
		return one(leaf(sc.subject, domain.Ne, value))

	case "not":
		inner, err := decode(value, sc)
		if err != nil {
			return nil, err
		}
		return []domain.Criterion{domain.Not{Term: inner}}, nil

	case "ref":
		ref, ok := value.(string)
		if !ok {
			return nil, domain.NewValidationError(domain.KindInvalidCriteria, "$ref requires a string")
		}
		if sc.op == domain.Ne {
			return one(domain.Compare{Field: sc.subject, Op: domain.Ne, Value: domain.Literal(ref)}, nil)
		}
		return one(domain.Compare{Field: sc.subject, Op: domain.Ref, Value: domain.Literal(ref)}, nil)

	case "in", "nin":
		op := domain.In
		if name == "nin" {
			op = domain.NotIn
		}
		v, err := membership(value)
		if err != nil {
			return nil, err
		}
		return one(domain.Compare{Field: sc.subject, Op: op, Value: v}, nil)

	case "gt", "gte", "lt", "lte":
		v, err := operand(value)
		if err != nil {
			return nil, err
		}
		ops := map[string]domain.Operator{"gt": domain.Gt, "gte": domain.Gte, "lt": domain.Lt, "lte": domain.Lte}
		return one(domain.Compare{Field: sc.subject, Op: ops[name], Value: v}, nil)

	case "like", "ilike", "~", "~*", "!~", "!~*":
		v, err := domain.ValueOf(value)
		if err != nil {
			return nil, err
		}
		ops := map[string]domain.Operator{
			"like": domain.Like, "ilike": domain.ILike,
			"~": domain.Regex, "~*": domain.IRegex, "!~": domain.NotRegex, "!~*": domain.NotIRegex,
		}
		return one(domain.Compare{Field: sc.subject, Op: ops[name], Value: v}, nil)

	case "bt":
		v, err := domain.ValueOf(value)
		if err != nil {
			return nil, err
		}
		bounds, ok := v.(domain.Array)
		if !ok || len(bounds) != 2 {
			n := 1
			if ok {
				n = len(bounds)
			}
			return nil, domain.NewValidationError(domain.KindBetweenArity,
				fmt.Sprintf("$bt requires a list with exactly 2 elements, %d given", n))
		}
		return one(domain.Compare{Field: sc.subject, Op: domain.Between, Value: bounds}, nil)

	case "exists":
		return exists(value)

	case "sub":
		return one(sub(value, sc))

	case "json":
		return one(domain.Compare{Field: sc.subject, Op: domain.JSONEq, Value: domain.JSON{Data: plain(value)}}, nil)

	case "null", "notnull":
		op := domain.IsNull
		if name == "notnull" {
			op = domain.NotNull
		}
		target := sc.subject
		if s, ok := value.(string); ok {
			target = qualify(s, sc.subject)
		}
		if target == "" {
			return nil, domain.NewValidationError(domain.KindInvalidCriteria, fmt.Sprintf("$%s requires a field name", name))
		}
		return one(domain.Compare{Field: target, Op: op}, nil)
	}

	m, ok := toM(value)
	if !ok {
		return nil, domain.NewValidationError(domain.KindInvalidCriteria,
			fmt.Sprintf("$%s requires a mapping or list", name))
	}
	terms, err := entries(m, scope{op: domain.Eq, subject: sc.subject})
	if err != nil {
		return nil, err
	}
	return one(domain.Group{Keyword: strings.ToUpper(name), Prefix: sc.op, Terms: terms}, nil)
}

func membership(value any) (domain.Value, error) {
	switch t := value.(type) {
	case string:
		return domain.Literal(t), nil
	case domain.Statement:
		return domain.Subquery{Statement: t}, nil
	}
	v, err := domain.ValueOf(value)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(domain.Array); !ok {
		return domain.Array{v}, nil
	}
	return v, nil
}

// operand classifies a comparison operand. Mappings are nested criteria.
func operand(value any) (domain.Value, error) {
	if isMapping(value) {
		crit, err := Decode(value)
		if err != nil {
			return nil, err
		}
		return domain.Nested{Criterion: crit}, nil
	}
	return domain.ValueOf(value)
}

func exists(value any) ([]domain.Criterion, error) {
	if table, ok := value.(string); ok {
		return []domain.Criterion{domain.Exists{Table: table}}, nil
	}
	m, ok := toM(value)
	if !ok {
		return nil, domain.NewValidationError(domain.KindInvalidCriteria, "$exists requires a mapping of table to criteria")
	}
	out := make([]domain.Criterion, 0, len(m))
	for _, p := range m {
		if p.Key == "" {
			table, ok := p.Value.(string)
			if !ok {
				return nil, domain.NewValidationError(domain.KindInvalidCriteria, "$exists list entries must be table names")
			}
			out = append(out, domain.Exists{Table: table})
			continue
		}
		where, err := Decode(p.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Exists{Table: p.Key, Where: where})
	}
	return out, nil
}

func sub(value any, sc scope) (domain.Criterion, error) {
	m, ok := toM(value)
	if !ok || len(m) == 0 || len(m) > 2 {
		return nil, domain.NewValidationError(domain.KindInvalidCriteria, "$sub requires [query, criteria]")
	}
	query, ok := m[0].Value.(domain.Statement)
	if !ok {
		return nil, domain.NewValidationError(domain.KindInvalidCriteria,
			fmt.Sprintf("$sub query must be a statement, got %T", m[0].Value))
	}
	if len(m) == 1 {
		return domain.Sub{Query: query}, nil
	}
	test, err := decode(m[1].Value, scope{op: sc.op})
	if err != nil {
		return nil, err
	}
	return domain.Sub{Query: query, Test: test}, nil
}

// qualify prefixes name with the parent reference when it has no table part.
func qualify(name, parent string) string {
	if parent == "" || strings.Contains(name, ".") {
		return name
	}
	return parent + "." + name
}

// toM converts mappings and lists to an ordered mapping. Lists become positional entries.
func toM(value any) (domain.M, bool) {
	switch t := value.(type) {
	case domain.M:
		return t, true
	case map[string]any:
		return sortedM(t), true
	case []any:
		m := make(domain.M, 0, len(t))
		for _, item := range t {
			m = append(m, domain.Pair{Value: item})
		}
		return m, true
	case string, []byte, domain.Value, domain.Criterion:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		plainMap := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			plainMap[iter.Key().String()] = iter.Value().Interface()
		}
		return sortedM(plainMap), true
	case reflect.Slice, reflect.Array:
		m := make(domain.M, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			m = append(m, domain.Pair{Value: rv.Index(i).Interface()})
		}
		return m, true
	}
	return nil, false
}

func sortedM(plainMap map[string]any) domain.M {
	keys := make([]string, 0, len(plainMap))
	for k := range plainMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := make(domain.M, 0, len(keys))
	for _, k := range keys {
		m = append(m, domain.Pair{Key: k, Value: plainMap[k]})
	}
	return m
}

func isMapping(value any) bool {
	switch value.(type) {
	case domain.M, map[string]any:
		return true
	case domain.Value, domain.Criterion:
		return false
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

func isList(value any) bool {
	switch value.(type) {
	case []byte, domain.M:
		return false
	case domain.Array:
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
}

// plain converts ordered mappings to Go maps for JSON encoding.
func plain(value any) any {
	switch t := value.(type) {
	case domain.M:
		out := make(map[string]any, len(t))
		for _, p := range t {
			out[p.Key] = plain(p.Value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	}
	return value
}
