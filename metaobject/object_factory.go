package metaobject

import (
	"errors"
	"fmt"
	"reflect"
)

var anyType = reflect.TypeFor[any]()

// ObjectFactory creates default instances of property types for auto-vivification.
type ObjectFactory interface {
	Create(t reflect.Type) (reflect.Value, error)
}

// DefaultObjectFactory creates zero values, allocates pointers, makes empty maps and slices
// and uses registered constructors for types that need more than that.
// The empty interface resolves to map[string]any.
type DefaultObjectFactory struct {
	constructors map[reflect.Type]func() any
}

// FactoryOption configures a DefaultObjectFactory.
type FactoryOption func(*DefaultObjectFactory)

// WithConstructor registers a constructor for T. It takes precedence over the default rules,
// which makes interface types constructible.
func WithConstructor[T any](constructor func() T) FactoryOption {
	return func(f *DefaultObjectFactory) {
		f.constructors[reflect.TypeFor[T]()] = func() any { return constructor() }
	}
}

// NewDefaultObjectFactory creates a DefaultObjectFactory.
func NewDefaultObjectFactory(options ...FactoryOption) *DefaultObjectFactory {
	f := &DefaultObjectFactory{constructors: make(map[reflect.Type]func() any)}

	for _, option := range options {
		option(f)
	}

	return f
}

// Create implements ObjectFactory.
func (f *DefaultObjectFactory) Create(t reflect.Type) (reflect.Value, error) {
	if constructor, ok := f.constructors[t]; ok {
		v := reflect.ValueOf(constructor())
		if !v.IsValid() {
			return reflect.Zero(t), nil
		}

		return coerceValue(v, t)
	}

	switch t.Kind() {
	case reflect.Pointer:
		if t.Elem().Kind() == reflect.Interface {
			return reflect.Value{}, fmt.Errorf("pointer to interface %s is not default-constructible", t)
		}
		return reflect.New(t.Elem()), nil

	case reflect.Map:
		return reflect.MakeMap(t), nil

	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 0), nil

	case reflect.Interface:
		if t == anyType {
			return reflect.ValueOf(map[string]any{}), nil
		}
		return reflect.Value{}, fmt.Errorf("interface %s is not default-constructible", t)

	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return reflect.Value{}, fmt.Errorf("%s is not default-constructible", t)

	default:
		return reflect.New(t).Elem(), nil
	}
}

var defaultObjectFactory = NewDefaultObjectFactory()

// instantiate asks factory for a value of t and reports failures as ErrPropertyInstantiation.
func instantiate(factory ObjectFactory, name string, t reflect.Type) (reflect.Value, error) {
	v, err := factory.Create(t)
	if err != nil {
		return reflect.Value{}, errors.Join(
			ErrPropertyInstantiation,
			fmt.Errorf("cannot set value of property %q because it is nil and %s cannot be instantiated: %w", name, t, err),
		)
	}

	return v, nil
}
