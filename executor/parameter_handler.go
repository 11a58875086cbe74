package executor

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/dynamic-plugins-go/metaobject"
)

const typeHandlerJSON = "json"

// ParameterHandler binds the parameter object of a call to a Statement.
type ParameterHandler interface {
	ParameterObject() any
	SetParameters(stmt *Statement) error
}

// DefaultParameterHandler resolves every parameter mapping as a path into the parameter object.
// Additional parameters of the BoundSQL take precedence, and a scalar parameter object is bound as is.
type DefaultParameterHandler struct {
	configuration   *Configuration
	mappedStatement *MappedStatement
	parameterObject any
	boundSQL        *BoundSQL
}

// NewDefaultParameterHandler creates the parameter handler for one execution.
func NewDefaultParameterHandler(
	configuration *Configuration,
	ms *MappedStatement,
	parameterObject any,
	boundSQL *BoundSQL,
) *DefaultParameterHandler {

	return &DefaultParameterHandler{
		configuration:   configuration,
		mappedStatement: ms,
		parameterObject: parameterObject,
		boundSQL:        boundSQL,
	}
}

func (h *DefaultParameterHandler) ParameterObject() any {
	return h.parameterObject
}

func (h *DefaultParameterHandler) SetParameters(stmt *Statement) error {
	mappings := h.boundSQL.parameterMappings
	args := make([]any, len(mappings))

	var meta *metaobject.MetaObject
	for i, mapping := range mappings {
		value, err := h.resolve(mapping.Property, &meta)
		if err != nil {
			return h.bindingError(mapping, err)
		}

		switch mapping.TypeHandler {
		case "":
		case typeHandlerJSON:
			if value, err = jsonParameter(value); err != nil {
				return h.bindingError(mapping, err)
			}
		default:
			return h.bindingError(mapping, fmt.Errorf("unknown type handler %q", mapping.TypeHandler))
		}

		args[i] = value
	}

	stmt.Bind(args...)

	return nil
}

func (h *DefaultParameterHandler) resolve(property string, meta **metaobject.MetaObject) (any, error) {
	if h.boundSQL.HasAdditionalParameter(property) {
		return h.boundSQL.AdditionalParameter(property)
	}

	if h.parameterObject == nil {
		return nil, nil
	}

	if isScalar(reflect.TypeOf(h.parameterObject)) {
		return h.parameterObject, nil
	}

	if *meta == nil {
		m, err := metaobject.ForObject(h.parameterObject, h.configuration.metaOptions()...)
		if err != nil {
			return nil, err
		}
		*meta = m
	}

	return (*meta).GetValue(property)
}

func (h *DefaultParameterHandler) bindingError(mapping ParameterMapping, err error) error {
	return errors.Join(
		ErrParameterBindingFailed,
		fmt.Errorf("parameter %q of statement %s: %w", mapping.Property, h.mappedStatement.ID, err),
	)
}

func jsonParameter(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	b, err := jsoniter.ConfigFastest.Marshal(value)
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

var (
	timeType   = reflect.TypeFor[time.Time]()
	bytesType  = reflect.TypeFor[[]byte]()
	valuerType = reflect.TypeFor[driver.Valuer]()
)

// isScalar reports whether values of t are bound directly instead of being navigated.
func isScalar(t reflect.Type) bool {
	if t == timeType || t == bytesType || t.Implements(valuerType) {
		return true
	}

	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Pointer:
		return isScalar(t.Elem())
	default:
		return false
	}
}

var _ ParameterHandler = (*DefaultParameterHandler)(nil)
