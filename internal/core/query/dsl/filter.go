package dsl

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

// FilterLexer defines the tokens of the filter expression language.
var FilterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(AND|OR|NOT|IN|BETWEEN|IS|NULL|LIKE|ILIKE|TRUE|FALSE)\b`},
	{Name: "Param", Pattern: `:[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "String", Pattern: `'(?:''|[^'])*'`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Operator", Pattern: `!~\*|!~|~\*|~|<>|!=|>=|<=|=|<|>`},
	{Name: "Punct", Pattern: `[(),.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type filterExpr struct {
	Pos lexer.Position
	Or  []*filterAnd `@@ ( "OR" @@ )*`
}

type filterAnd struct {
	And []*filterUnary `@@ ( "AND" @@ )*`
}

type filterUnary struct {
	Not   *filterUnary     `  "NOT" @@`
	Group *filterExpr      `| "(" @@ ")"`
	Pred  *filterPredicate `| @@`
}

type filterPredicate struct {
	Field   string         `@Ident ( @"." @Ident )*`
	Null    *filterNull    `( @@`
	Between *filterBetween `| @@`
	In      *filterIn      `| @@`
	Compare *filterCompare `| @@ )`
}

type filterNull struct {
	Not bool `"IS" @"NOT"? "NULL"`
}

type filterBetween struct {
	Low  *filterLiteral `"BETWEEN" @@`
	High *filterLiteral `"AND" @@`
}

type filterIn struct {
	Not    bool             `@"NOT"? "IN"`
	Values []*filterLiteral `"(" @@ ( "," @@ )* ")"`
}

type filterCompare struct {
	Op    string         `@( Operator | "LIKE" | "ILIKE" )`
	Value *filterLiteral `@@`
}

type filterLiteral struct {
	Null   bool    `  @"NULL"`
	Bool   *string `| @( "TRUE" | "FALSE" )`
	Number *string `| @Number`
	String *string `| @String`
	Param  *string `| @Param`
	Ref    *string `| @Ident ( @"." @Ident )*`
}

var filterParser = participle.MustBuild[filterExpr](
	participle.Lexer(FilterLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(2),
)

var filterOperators = map[string]domain.Operator{
	"=":     domain.Eq,
	"!=":    domain.Ne,
	"<>":    domain.Ne,
	">":     domain.Gt,
	">=":    domain.Gte,
	"<":     domain.Lt,
	"<=":    domain.Lte,
	"LIKE":  domain.Like,
	"ILIKE": domain.ILike,
	"~":     domain.Regex,
	"~*":    domain.IRegex,
	"!~":    domain.NotRegex,
	"!~*":   domain.NotIRegex,
}

// ParseFilter parses a filter expression such as
//
//	age >= 18 AND (name LIKE 'a%' OR id IN (1, 2)) AND deleted_at IS NULL
//
// String literals use SQL quoting ('' escapes a quote). A bare identifier on the right
// hand side is a column reference.
func ParseFilter(input string) (domain.Criterion, error) {
	expr, err := filterParser.ParseString("filter", input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse filter: %w", err)
	}
	return expr.criterion(), nil
}

func (e *filterExpr) criterion() domain.Criterion {
	if len(e.Or) == 1 {
		return e.Or[0].criterion()
	}
	terms := make(domain.Or, 0, len(e.Or))
	for _, term := range e.Or {
		terms = append(terms, term.criterion())
	}
	return terms
}

func (a *filterAnd) criterion() domain.Criterion {
	if len(a.And) == 1 {
		return a.And[0].criterion()
	}
	terms := make(domain.And, 0, len(a.And))
	for _, term := range a.And {
		terms = append(terms, term.criterion())
	}
	return terms
}

func (u *filterUnary) criterion() domain.Criterion {
	switch {
	case u.Not != nil:
		return domain.Not{Term: u.Not.criterion()}
	case u.Group != nil:
		return u.Group.criterion()
	default:
		return u.Pred.criterion()
	}
}

func (p *filterPredicate) criterion() domain.Criterion {
	switch {
	case p.Null != nil:
		if p.Null.Not {
			return domain.Compare{Field: p.Field, Op: domain.Ne, Value: domain.Null{}}
		}
		return domain.Compare{Field: p.Field, Op: domain.Eq, Value: domain.Null{}}

	case p.Between != nil:
		return domain.Compare{
			Field: p.Field,
			Op:    domain.Between,
			Value: domain.Array{p.Between.Low.value(), p.Between.High.value()},
		}

	case p.In != nil:
		values := make(domain.Array, 0, len(p.In.Values))
		for _, v := range p.In.Values {
			values = append(values, v.value())
		}
		op := domain.In
		if p.In.Not {
			op = domain.NotIn
		}
		return domain.Compare{Field: p.Field, Op: op, Value: values}

	default:
		op := filterOperators[strings.ToUpper(p.Compare.Op)]
		value := p.Compare.Value.value()
		if _, ok := value.(domain.Literal); ok && op == domain.Eq {
			op = domain.Ref
		}
		return domain.Compare{Field: p.Field, Op: op, Value: value}
	}
}

func (l *filterLiteral) value() domain.Value {
	switch {
	case l.Null:
		return domain.Null{}
	case l.Bool != nil:
		return domain.Bool(strings.EqualFold(*l.Bool, "true"))
	case l.Number != nil:
		return domain.Number(*l.Number)
	case l.String != nil:
		s := *l.String
		return domain.Text(strings.ReplaceAll(s[1:len(s)-1], "''", "'"))
	case l.Param != nil:
		return domain.Param(strings.TrimPrefix(*l.Param, ":"))
	default:
		return domain.Literal(*l.Ref)
	}
}
