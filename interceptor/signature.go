package interceptor

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Signature names one interceptable call: the capability interface, the method and its parameter types.
type Signature struct {
	Type   reflect.Type
	Method string
	Args   []reflect.Type
}

// NewSignature builds a Signature for the capability interface T.
//
//	interceptor.NewSignature[executor.StatementHandler]("Prepare",
//		reflect.TypeFor[context.Context](), reflect.TypeFor[executor.Connection]())
func NewSignature[T any](method string, args ...reflect.Type) Signature {
	return Signature{
		Type:   reflect.TypeFor[T](),
		Method: method,
		Args:   args,
	}
}

// Validate checks that Type is an interface declaring Method with exactly the parameter types in Args.
// The method must return an error as its last result, the only channel an observer can fail through.
func (s Signature) Validate() error {
	if s.Type == nil {
		return errors.Join(ErrInvalidSignature, errors.New("missing capability type"))
	}

	if s.Type.Kind() != reflect.Interface {
		return errors.Join(ErrInvalidSignature, ErrInvalidCapability, fmt.Errorf("%s is a %s", s.Type, s.Type.Kind()))
	}

	m, ok := s.Type.MethodByName(s.Method)
	if !ok {
		return errors.Join(ErrInvalidSignature, fmt.Errorf("%s has no method %q", s.Type, s.Method))
	}

	params := parameterTypes(m.Type)
	if !slices.Equal(params, s.Args) {
		return errors.Join(
			ErrInvalidSignature,
			fmt.Errorf("%s.%s takes (%s), the signature declares (%s)", s.Type, s.Method, typeList(params), typeList(s.Args)),
		)
	}

	if n := m.Type.NumOut(); n == 0 || m.Type.Out(n-1) != errorType {
		return errors.Join(ErrInvalidSignature, fmt.Errorf("%s.%s does not return an error", s.Type, s.Method))
	}

	return nil
}

func (s Signature) String() string {
	return fmt.Sprintf("%v.%s(%s)", s.Type, s.Method, typeList(s.Args))
}

// parameterTypes returns the parameter types of an interface method type, which has no receiver.
func parameterTypes(mt reflect.Type) []reflect.Type {
	params := make([]reflect.Type, mt.NumIn())
	for i := range params {
		params[i] = mt.In(i)
	}

	return params
}

func typeList(types []reflect.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = fmt.Sprint(t)
	}

	return strings.Join(names, ", ")
}
