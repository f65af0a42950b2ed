// Package domain contains the query domain model: criteria, values and compiled SQL.
package domain

// Operator is a comparison operator applied between a field and a value.
type Operator string

const (
	// Eq compares for equality. Null and boolean values switch it to IS.
	Eq Operator = "="
	// Ne compares for inequality. Null and boolean values switch it to IS NOT.
	Ne Operator = "!="
	// Gt is greater than.
	Gt Operator = ">"
	// Gte is greater than or equal.
	Gte Operator = ">="
	// Lt is less than.
	Lt Operator = "<"
	// Lte is less than or equal.
	Lte Operator = "<="
	// In matches any value of a list.
	In Operator = "IN"
	// NotIn matches no value of a list.
	NotIn Operator = "NOT IN"
	// Like is a case sensitive pattern match.
	Like Operator = "LIKE"
	// ILike is a case insensitive pattern match.
	ILike Operator = "ILIKE"
	// Between matches an inclusive two element range.
	Between Operator = "BETWEEN"
	// Regex is a case sensitive POSIX match.
	Regex Operator = "~"
	// IRegex is a case insensitive POSIX match.
	IRegex Operator = "~*"
	// NotRegex is a negated case sensitive POSIX match.
	NotRegex Operator = "!~"
	// NotIRegex is a negated case insensitive POSIX match.
	NotIRegex Operator = "!~*"
	// Ref compares against an unescaped column reference using the contextual operator.
	Ref Operator = "REF"
	// JSONEq compares against the JSON encoding of the value.
	JSONEq Operator = "JSON"
	// IsNull tests the field for NULL. The value is ignored.
	IsNull Operator = "IS NULL"
	// NotNull tests the field for NOT NULL. The value is ignored.
	NotNull Operator = "IS NOT NULL"
)

// Criterion is a node of a boolean filter expression.
//
// The set of implementations is closed: Compare, And, Or, Group, Not, Exists, Sub and Raw.
type Criterion interface {
	criterion()
}

// Compare is a single comparison. An empty Field renders the operator and value only,
// leaving the left operand to the enclosing node.
type Compare struct {
	Field string
	Op    Operator
	Value Value
}

// And joins its terms with AND.
type And []Criterion

// Or joins its terms with OR.
type Or []Criterion

// Group joins its terms with an arbitrary keyword and is prefixed with Prefix (Eq when
// empty) when rendered.
type Group struct {
	Keyword string
	Prefix  Operator
	Terms   []Criterion
}

// Not negates its term.
type Not struct {
	Term Criterion
}

// Exists tests for at least one row of Table matching Where.
type Exists struct {
	Table string
	Where Criterion
}

// Sub compares the result of a sub-select using Test.
type Sub struct {
	Query Statement
	Test  Criterion
}

// Raw is a pre-formed SQL fragment. It is emitted verbatim.
type Raw struct {
	SQL string
}

func (Compare) criterion() {}
func (And) criterion()     {}
func (Or) criterion()      {}
func (Group) criterion()   {}
func (Not) criterion()     {}
func (Exists) criterion()  {}
func (Sub) criterion()     {}
func (Raw) criterion()     {}

// Pair is one entry of an ordered mapping. An empty Key marks a positional entry.
type Pair struct {
	Key   string
	Value any
}

// M is an ordered mapping used for criteria, field data and aliased selections.
type M []Pair

// Get returns the value stored under key.
func (m M) Get(key string) (any, bool) {
	for _, p := range m {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in insertion order.
func (m M) Keys() []string {
	keys := make([]string, 0, len(m))
	for _, p := range m {
		keys = append(keys, p.Key)
	}
	return keys
}

// Set replaces the value of key or appends a new entry.
func (m M) Set(key string, value any) M {
	for i, p := range m {
		if p.Key == key && key != "" {
			m[i].Value = value
			return m
		}
	}
	return append(m, Pair{Key: key, Value: value})
}

// Model is a record that projects its writable columns.
type Model interface {
	WriteFields() M
}

// Statement is a query that can be rendered as a nested expression, such as a sub-select
// used in a FROM clause or as a comparison value.
type Statement interface {
	Render(b Binder) (string, error)
}

// Binder collects bound parameter values and hands out their placeholders.
type Binder interface {
	Bind(value any) string
}
