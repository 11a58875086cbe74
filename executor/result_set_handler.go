package executor

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/dynamic-plugins-go/metaobject"
)

// ResultSetHandler maps the rows of a query to result objects.
type ResultSetHandler interface {
	HandleResultSets(rows Rows) ([]any, error)
}

// DefaultResultSetHandler maps every row to the ResultType of the mapped statement.
//
// Without a ResultType a row becomes a map[string]any keyed by column name.
// A scalar ResultType takes the single column of the row.
// A struct ResultType (or a pointer to one) is filled column by column through path navigation,
// matching column names to properties case-insensitively.
type DefaultResultSetHandler struct {
	configuration   *Configuration
	mappedStatement *MappedStatement
	boundSQL        *BoundSQL
}

// NewDefaultResultSetHandler creates the result set handler for one execution.
func NewDefaultResultSetHandler(configuration *Configuration, ms *MappedStatement, boundSQL *BoundSQL) *DefaultResultSetHandler {
	return &DefaultResultSetHandler{
		configuration:   configuration,
		mappedStatement: ms,
		boundSQL:        boundSQL,
	}
}

func (h *DefaultResultSetHandler) HandleResultSets(rows Rows) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, h.mappingError(err)
	}

	results := make([]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}

		if err = rows.Scan(targets...); err != nil {
			return nil, h.mappingError(err)
		}

		result, mapErr := h.mapRow(columns, values)
		if mapErr != nil {
			return nil, h.mappingError(mapErr)
		}

		results = append(results, result)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Join(ErrQueryingFailed, fmt.Errorf("statement %s: %w", h.mappedStatement.ID, err))
	}

	return results, nil
}

func (h *DefaultResultSetHandler) mapRow(columns []string, values []any) (any, error) {
	t := h.mappedStatement.ResultType

	switch {
	case t == nil:
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = normalize(values[i])
		}
		return row, nil

	case isScalar(t):
		if len(columns) != 1 {
			return nil, fmt.Errorf("result type %s needs exactly one column, got %d", t, len(columns))
		}
		return convertValue(values[0], t)

	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
		return mapToMap(t, columns, values)

	case t.Kind() == reflect.Struct || (t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct):
		return h.mapToStruct(t, columns, values)

	default:
		return nil, fmt.Errorf("unsupported result type %s", t)
	}
}

func mapToMap(t reflect.Type, columns []string, values []any) (any, error) {
	row := reflect.MakeMapWithSize(t, len(columns))
	for i, column := range columns {
		v, err := convertValue(normalize(values[i]), t.Elem())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		row.SetMapIndex(reflect.ValueOf(column).Convert(t.Key()), reflect.ValueOf(v))
	}

	return row.Interface(), nil
}

func (h *DefaultResultSetHandler) mapToStruct(t reflect.Type, columns []string, values []any) (any, error) {
	structType := t
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	ptr, err := h.configuration.objectFactory.Create(reflect.PointerTo(structType))
	if err != nil {
		return nil, err
	}

	meta, err := metaobject.ForObject(ptr.Interface(), h.configuration.metaOptions()...)
	if err != nil {
		return nil, err
	}

	for i, column := range columns {
		property := meta.FindProperty(column, h.configuration.mapUnderscoreToCamelCase)
		if property == "" || !meta.HasSetter(property) || values[i] == nil {
			continue
		}

		setterType, typeErr := meta.SetterType(property)
		if typeErr != nil {
			return nil, typeErr
		}

		v, convErr := convertValue(values[i], setterType)
		if convErr != nil {
			return nil, fmt.Errorf("column %q: %w", column, convErr)
		}

		if err = meta.SetValue(property, v); err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
	}

	if t.Kind() == reflect.Pointer {
		return ptr.Interface(), nil
	}

	return ptr.Elem().Interface(), nil
}

func (h *DefaultResultSetHandler) mappingError(err error) error {
	return errors.Join(ErrMappingResultFailed, fmt.Errorf("statement %s: %w", h.mappedStatement.ID, err))
}

// normalize turns driver byte slices into strings for untyped results.
func normalize(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}

	return value
}

// convertValue converts a scanned column value to t.
// Text and byte values are parsed for numeric and boolean targets and decoded as JSON
// for struct, map and slice targets.
func convertValue(raw any, t reflect.Type) (any, error) {
	if raw == nil {
		return reflect.Zero(t).Interface(), nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(t) {
		return raw, nil
	}

	if t.Kind() == reflect.Pointer {
		inner, err := convertValue(raw, t.Elem())
		if err != nil {
			return nil, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(reflect.ValueOf(inner))
		return p.Interface(), nil
	}

	if text, ok := asText(raw); ok {
		return parseText(text, t)
	}

	if isNumericKind(rv.Kind()) && isNumericKind(t.Kind()) {
		return rv.Convert(t).Interface(), nil
	}

	if rv.Kind() == reflect.Bool && t.Kind() == reflect.Bool {
		return rv.Convert(t).Interface(), nil
	}

	return nil, fmt.Errorf("cannot convert %T to %s", raw, t)
}

func asText(raw any) (string, bool) {
	switch v := raw.(type) {
	case []byte:
		return string(v), true
	case string:
		return v, true
	default:
		return "", false
	}
}

func parseText(text string, t reflect.Type) (any, error) {
	out := reflect.New(t).Elem()

	switch t.Kind() {
	case reflect.String:
		out.SetString(text)

	case reflect.Bool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, err
		}
		out.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(text, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		out.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(text, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		out.SetUint(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(text, t.Bits())
		if err != nil {
			return nil, err
		}
		out.SetFloat(f)

	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Interface:
		if t == bytesType {
			out.SetBytes([]byte(text))
			break
		}
		if err := jsoniter.ConfigFastest.UnmarshalFromString(text, out.Addr().Interface()); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("cannot convert text to %s", t)
	}

	return out.Interface(), nil
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

var _ ResultSetHandler = (*DefaultResultSetHandler)(nil)
