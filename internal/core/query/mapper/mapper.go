// Package mapper implements result mapping: regrouping of select-group columns into
// nested records, column value decoding and struct mapping.
package mapper

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ResultMapper maps database rows to nested records and Go structs.
type ResultMapper struct{}

// NewResultMapper creates a new result mapper.
func NewResultMapper() *ResultMapper {
	return &ResultMapper{}
}

// Regroup turns a flat row into a nested record. Columns named by a lookup alias in groups
// are stored under their dotted name; dotted column names are expanded into nested maps.
func (m *ResultMapper) Regroup(row map[string]any, groups map[string]string) map[string]any {
	out := make(map[string]any, len(row))
	for col, value := range row {
		name := col
		if dotted, ok := groups[col]; ok {
			name = dotted
		}
		setPath(out, strings.Split(name, "."), value)
	}
	return out
}

func setPath(target map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		next, ok := target[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			target[key] = next
		}
		target = next
	}
	target[path[len(path)-1]] = value
}

// Decode converts a scanned column value according to its database type name. Byte
// slices become strings, PostgreSQL arrays become slices and JSON columns are unmarshalled.
func (m *ResultMapper) Decode(value any, typeName string) (any, error) {
	if value == nil {
		return nil, nil
	}
	typeName = strings.ToUpper(typeName)

	if strings.HasPrefix(typeName, "_") {
		return decodeArray(value, typeName)
	}

	if b, ok := value.([]byte); ok {
		value = string(b)
	}

	switch typeName {
	case "JSON", "JSONB":
		s, ok := value.(string)
		if !ok {
			return value, nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode JSON column: %w", err)
		}
		return decoded, nil
	case "NUMERIC", "DECIMAL":
		if s, ok := value.(string); ok {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("failed to decode numeric column: %w", err)
			}
			return d, nil
		}
	}
	return value, nil
}

func decodeArray(value any, typeName string) (any, error) {
	var (
		target interface{ Scan(any) error }
		result func() any
	)
	switch typeName {
	case "_INT2", "_INT4", "_INT8":
		var a pq.Int64Array
		target, result = &a, func() any { return []int64(a) }
	case "_FLOAT4", "_FLOAT8":
		var a pq.Float64Array
		target, result = &a, func() any { return []float64(a) }
	case "_BOOL":
		var a pq.BoolArray
		target, result = &a, func() any { return []bool(a) }
	default:
		var a pq.StringArray
		target, result = &a, func() any { return []string(a) }
	}
	if s, ok := value.(string); ok {
		value = []byte(s)
	}
	if err := target.Scan(value); err != nil {
		return nil, fmt.Errorf("failed to decode %s array: %w", strings.TrimPrefix(typeName, "_"), err)
	}
	return result(), nil
}

// MapToStruct maps a single row to a struct.
func (m *ResultMapper) MapToStruct(row map[string]any, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr {
		return fmt.Errorf("dest must be a pointer to struct")
	}

	destValue = destValue.Elem()
	if destValue.Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct")
	}

	destType := destValue.Type()
	for i := 0; i < destType.NumField(); i++ {
		field := destType.Field(i)
		fieldValue := destValue.Field(i)

		// Skip unexported fields
		if !fieldValue.CanSet() {
			continue
		}

		columnName := m.getColumnName(field)
		if columnName == "-" {
			continue
		}

		value, ok := row[columnName]
		if !ok {
			value, ok = m.findValueCaseInsensitive(row, columnName)
			if !ok {
				continue
			}
		}

		// Regrouped records map onto nested structs
		if nested, ok := value.(map[string]any); ok {
			target := fieldValue
			if target.Kind() == reflect.Ptr {
				if target.IsNil() {
					target.Set(reflect.New(target.Type().Elem()))
				}
				target = target.Elem()
			}
			if target.Kind() == reflect.Struct {
				if err := m.MapToStruct(nested, target.Addr().Interface()); err != nil {
					return fmt.Errorf("failed to set field %s: %w", field.Name, err)
				}
				continue
			}
		}

		if err := m.setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}

	return nil
}

// MapToStructSlice maps multiple rows to a slice of structs.
func (m *ResultMapper) MapToStructSlice(rows []map[string]any, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr {
		return fmt.Errorf("dest must be a pointer to slice")
	}

	destValue = destValue.Elem()
	if destValue.Kind() != reflect.Slice {
		return fmt.Errorf("dest must be a pointer to slice")
	}

	elemType := destValue.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}

	newSlice := reflect.MakeSlice(destValue.Type(), 0, len(rows))
	for _, row := range rows {
		elem := reflect.New(elemType)
		if err := m.MapToStruct(row, elem.Interface()); err != nil {
			return err
		}
		if isPtr {
			newSlice = reflect.Append(newSlice, elem)
		} else {
			newSlice = reflect.Append(newSlice, elem.Elem())
		}
	}

	destValue.Set(newSlice)
	return nil
}

// getColumnName gets the column name for a struct field: the db tag, then the json tag,
// then the lowercase field name.
func (m *ResultMapper) getColumnName(field reflect.StructField) string {
	if tag := field.Tag.Get("db"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	if tag := field.Tag.Get("json"); tag != "" && tag != "-" {
		if name := strings.Split(tag, ",")[0]; name != "" {
			return name
		}
	}
	return strings.ToLower(field.Name)
}

func (m *ResultMapper) findValueCaseInsensitive(row map[string]any, key string) (any, bool) {
	for k, v := range row {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// setFieldValue sets a field value with type conversion.
func (m *ResultMapper) setFieldValue(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	valueReflect := reflect.ValueOf(value)
	fieldType := field.Type()

	if fieldType.Kind() == reflect.Ptr {
		ptr := reflect.New(fieldType.Elem())
		if err := m.setFieldValue(ptr.Elem(), value); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	if valueReflect.Type().AssignableTo(fieldType) {
		field.Set(valueReflect)
		return nil
	}

	switch fieldType.Kind() {
	case reflect.String:
		field.SetString(fmt.Sprintf("%v", value))

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var intVal int64
		switch v := value.(type) {
		case int64:
			intVal = v
		case int32:
			intVal = int64(v)
		case int:
			intVal = int64(v)
		case float64:
			intVal = int64(v)
		case decimal.Decimal:
			intVal = v.IntPart()
		default:
			return fmt.Errorf("cannot convert %T to int", value)
		}
		field.SetInt(intVal)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch v := value.(type) {
		case uint64:
			field.SetUint(v)
		case int64:
			field.SetUint(uint64(v))
		default:
			return fmt.Errorf("cannot convert %T to uint", value)
		}

	case reflect.Float32, reflect.Float64:
		var floatVal float64
		switch v := value.(type) {
		case float64:
			floatVal = v
		case float32:
			floatVal = float64(v)
		case int64:
			floatVal = float64(v)
		case decimal.Decimal:
			floatVal = v.InexactFloat64()
		default:
			return fmt.Errorf("cannot convert %T to float", value)
		}
		field.SetFloat(floatVal)

	case reflect.Bool:
		switch v := value.(type) {
		case bool:
			field.SetBool(v)
		case int64:
			field.SetBool(v != 0)
		default:
			return fmt.Errorf("cannot convert %T to bool", value)
		}

	case reflect.Struct:
		if fieldType != reflect.TypeOf(time.Time{}) {
			return fmt.Errorf("unsupported struct type: %s", fieldType)
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("cannot convert %T to time.Time", value)
		}
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))

	default:
		return fmt.Errorf("unsupported field type: %s", fieldType)
	}

	return nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
