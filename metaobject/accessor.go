package metaobject

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"
)

var errorType = reflect.TypeFor[error]()

// Accessor reads or writes one property on values of its owning type.
// The owner passed to Get and Set must be the dereferenced, addressable owning value.
type Accessor interface {
	Get(owner reflect.Value) (reflect.Value, error)
	Set(owner reflect.Value, value reflect.Value) error
	Type() reflect.Type
}

// fieldAccessor binds a struct field, including fields promoted from embedded structs.
type fieldAccessor struct {
	name  string
	index []int
	typ   reflect.Type
}

func (a fieldAccessor) Type() reflect.Type {
	return a.typ
}

func (a fieldAccessor) Get(owner reflect.Value) (reflect.Value, error) {
	v := owner
	for i, step := range a.index {
		if i > 0 {
			if v.Kind() == reflect.Pointer {
				if v.IsNil() {
					return reflect.Zero(a.typ), nil
				}
				v = v.Elem()
			}
		}
		v = exposed(v.Field(step))
	}

	return v, nil
}

func (a fieldAccessor) Set(owner reflect.Value, value reflect.Value) error {
	v := owner
	for i, step := range a.index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return errors.Join(ErrNotAssignable, fmt.Errorf("embedded pointer on the way to %q is nil", a.name))
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = exposed(v.Field(step))
	}

	if !v.CanSet() {
		return errors.Join(ErrNotAssignable, fmt.Errorf("field %q is not settable", a.name))
	}

	v.Set(value)

	return nil
}

// methodAccessor binds a GetX/IsX getter or a SetX setter method.
type methodAccessor struct {
	method string
	typ    reflect.Type
}

func (a methodAccessor) Type() reflect.Type {
	return a.typ
}

func (a methodAccessor) Get(owner reflect.Value) (reflect.Value, error) {
	m := methodOf(owner, a.method)
	if !m.IsValid() {
		return reflect.Value{}, errors.Join(ErrPropertyNotFound, fmt.Errorf("method %s not found on %s", a.method, owner.Type()))
	}

	return m.Call(nil)[0], nil
}

func (a methodAccessor) Set(owner reflect.Value, value reflect.Value) error {
	m := methodOf(owner, a.method)
	if !m.IsValid() {
		return errors.Join(ErrPropertyNotFound, fmt.Errorf("method %s not found on %s", a.method, owner.Type()))
	}

	out := m.Call([]reflect.Value{value})
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}

	return nil
}

func methodOf(owner reflect.Value, name string) reflect.Value {
	if owner.CanAddr() {
		if m := owner.Addr().MethodByName(name); m.IsValid() {
			return m
		}
	}

	return owner.MethodByName(name)
}

// exposed makes an addressable value obtained through an unexported field usable for
// Interface and Set. Values that are not addressable are returned unchanged.
func exposed(v reflect.Value) reflect.Value {
	if v.CanInterface() || !v.CanAddr() {
		return v
	}

	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

// addressable returns v itself when it is addressable, otherwise an addressable copy.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}

	c := reflect.New(v.Type()).Elem()
	c.Set(v)

	return c
}

// indirect follows pointers and interfaces. It returns the zero Value for nil.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}

	if v.IsValid() && v.Type() == reflect.TypeOf(NoValue) {
		return reflect.Value{}
	}

	return v
}

// isNil reports whether v holds no object to descend into.
func isNil(v reflect.Value) bool {
	return !indirect(v).IsValid()
}

func isNilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// coerce converts value into a reflect.Value assignable to t.
// Numeric kinds convert into each other, byte slices convert into strings,
// named types convert from their underlying kind and a value of type T is
// allocated when t is *T.
func coerce(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		if isNilable(t.Kind()) {
			return reflect.Zero(t), nil
		}

		return reflect.Value{}, errors.Join(ErrNotAssignable, fmt.Errorf("nil is not assignable to %s", t))
	}

	rv, ok := value.(reflect.Value)
	if !ok {
		rv = reflect.ValueOf(value)
	}

	return coerceValue(rv, t)
}

func coerceValue(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	src := rv.Type()

	switch {
	case src.AssignableTo(t):
		return rv, nil

	case src.ConvertibleTo(t) && isNumeric(src.Kind()) && isNumeric(t.Kind()):
		return rv.Convert(t), nil

	case src.ConvertibleTo(t) && src.Kind() == t.Kind():
		return rv.Convert(t), nil

	case t.Kind() == reflect.String && src.Kind() == reflect.Slice && src.Elem().Kind() == reflect.Uint8:
		return reflect.ValueOf(string(rv.Bytes())).Convert(t), nil

	case t.Kind() == reflect.Pointer && src != t:
		elem, err := coerceValue(rv, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)

		return p, nil
	}

	return reflect.Value{}, errors.Join(ErrNotAssignable, fmt.Errorf("%s is not assignable to %s", src, t))
}

// toInterface converts a resolved value for callers. Nil pointers and interfaces become nil.
func toInterface(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil
	}

	v = exposed(v)
	if !v.CanInterface() {
		v = addressable(v)
	}

	return v.Interface()
}
