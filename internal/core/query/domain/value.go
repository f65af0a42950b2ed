package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a typed operand of a comparison or a column assignment.
//
// The set of implementations is closed: Null, Bool, Number, Text, Time, JSON, ModelValue,
// Array, Param, Subquery, Literal and Nested.
type Value interface {
	value()
}

// Null is the SQL NULL.
type Null struct{}

// Bool is a boolean literal.
type Bool bool

// Number is a numeric literal in its canonical decimal text form.
type Number string

// Text is a string literal.
type Text string

// Time is a timestamp literal.
type Time struct {
	time.Time
}

// JSON is any payload emitted as a quoted JSON document.
type JSON struct {
	Data any
}

// ModelValue is a record emitted as a quoted JSON document of its writable fields.
type ModelValue struct {
	Model Model
}

// Array is an ordered list of values.
type Array []Value

// Param is a named bind placeholder, written without the leading colon.
type Param string

// Subquery is a statement used in value position.
type Subquery struct {
	Statement Statement
}

// Literal is pre-escaped SQL used in value position.
type Literal string

// Nested is a criteria expression used in value position.
type Nested struct {
	Criterion Criterion
}

func (Null) value()       {}
func (Bool) value()       {}
func (Number) value()     {}
func (Text) value()       {}
func (Time) value()       {}
func (JSON) value()       {}
func (ModelValue) value() {}
func (Array) value()      {}
func (Param) value()      {}
func (Subquery) value()   {}
func (Literal) value()    {}
func (Nested) value()     {}

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// ValueOf classifies a Go value.
//
// Slices and arrays become Array (except []byte, which is Text). Maps and structs become
// JSON. driver.Valuer implementations are resolved before classification.
func ValueOf(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return Text(t), nil
	case []byte:
		return Text(t), nil
	case int:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int8:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int16:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int32:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return Number(strconv.FormatInt(t, 10)), nil
	case uint:
		return Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint8:
		return Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint16:
		return Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint32:
		return Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint64:
		return Number(strconv.FormatUint(t, 10)), nil
	case float32:
		return floatValue(float64(t), 32)
	case float64:
		return floatValue(t, 64)
	case decimal.Decimal:
		return Number(t.String()), nil
	case time.Time:
		return Time{Time: t}, nil
	case json.RawMessage:
		return JSON{Data: t}, nil
	case Model:
		return ModelValue{Model: t}, nil
	case Statement:
		return Subquery{Statement: t}, nil
	case Criterion:
		return Nested{Criterion: t}, nil
	case M:
		return JSON{Data: t.Map()}, nil
	case driver.Valuer:
		resolved, err := t.Value()
		if err != nil {
			return nil, NewValidationError(KindInvalidValue, fmt.Sprintf("failed to resolve %T: %v", v, err))
		}
		return ValueOf(resolved)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null{}, nil
		}
		return ValueOf(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Array{}, nil
		}
		out := make(Array, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case reflect.Map, reflect.Struct:
		if rv.Type() == timeType || rv.Type() == decimalType {
			break
		}
		return JSON{Data: v}, nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		return floatValue(rv.Float(), 64)
	}

	return nil, NewValidationError(KindInvalidValue, fmt.Sprintf("unsupported value of type %T", v))
}

func floatValue(f float64, bits int) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, NewValidationError(KindInvalidValue, fmt.Sprintf("non-finite number %v", f))
	}
	return Number(strconv.FormatFloat(f, 'f', -1, bits)), nil
}

// IsNullish reports whether v renders as NULL: Null itself or an empty Array.
func IsNullish(v Value) bool {
	switch t := v.(type) {
	case Null:
		return true
	case Array:
		return len(t) == 0
	}
	return false
}

// Map returns the entries as a plain map. Positional entries are dropped.
func (m M) Map() map[string]any {
	out := make(map[string]any, len(m))
	for _, p := range m {
		if p.Key == "" {
			continue
		}
		if nested, ok := p.Value.(M); ok {
			out[p.Key] = nested.Map()
			continue
		}
		out[p.Key] = p.Value
	}
	return out
}
