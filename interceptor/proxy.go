package interceptor

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

var errorType = reflect.TypeFor[error]()

// Proxy is one layer of a layered proxy. It holds the inner layer, which is either
// another layer's capability adapter or the real object, and routes the registered
// methods of its capability through its observer.
type Proxy struct {
	target      any
	observer    Observer
	capability  reflect.Type
	intercepted map[string]struct{}
}

func newProxy(target any, observer Observer, capability reflect.Type, signatures []Signature) *Proxy {
	intercepted := make(map[string]struct{}, len(signatures))
	for _, s := range signatures {
		intercepted[s.Method] = struct{}{}
	}

	return &Proxy{
		target:      target,
		observer:    observer,
		capability:  capability,
		intercepted: intercepted,
	}
}

// Unwrap returns the inner layer.
func (p *Proxy) Unwrap() any {
	return p.target
}

// Capability returns the interface type this layer exposes.
func (p *Proxy) Capability() reflect.Type {
	return p.capability
}

// Intercepts reports whether calls to method are routed through this layer's observer.
func (p *Proxy) Intercepts(method string) bool {
	_, ok := p.intercepted[method]
	return ok
}

// Invoke performs the call method(args...) against this layer.
// A trailing error result of the method is returned as err and removed from the results.
func (p *Proxy) Invoke(method string, args ...any) ([]any, error) {
	m, ok := p.capability.MethodByName(method)
	if !ok {
		return nil, errors.Join(ErrMethodNotFound, fmt.Errorf("%s has no method %q", p.capability, method))
	}

	if _, err := arguments(m.Type, method, args); err != nil {
		return nil, err
	}

	if !p.Intercepts(method) {
		return call(p.target, method, args)
	}

	return p.observer.Intercept(&Invocation{
		proxy:  p,
		method: m,
		args:   slices.Clone(args),
	})
}

// call invokes method on target reflectively.
func call(target any, method string, args []any) ([]any, error) {
	fn := reflect.ValueOf(target).MethodByName(method)
	if !fn.IsValid() {
		return nil, errors.Join(ErrMethodNotFound, fmt.Errorf("%T has no method %q", target, method))
	}

	ft := fn.Type()
	in, err := arguments(ft, method, args)
	if err != nil {
		return nil, err
	}

	var out []reflect.Value
	if ft.IsVariadic() {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}

	return results(ft, out)
}

func arguments(ft reflect.Type, method string, args []any) ([]reflect.Value, error) {
	if ft.NumIn() != len(args) {
		return nil, errors.Join(ErrArgumentMismatch, fmt.Errorf("%s takes %d arguments, got %d", method, ft.NumIn(), len(args)))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := ft.In(i)

		if arg == nil {
			switch pt.Kind() {
			case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
				in[i] = reflect.Zero(pt)
				continue
			default:
				return nil, errors.Join(ErrArgumentMismatch, fmt.Errorf("%s: argument %d of type %s cannot be nil", method, i, pt))
			}
		}

		v := reflect.ValueOf(arg)
		if !v.Type().AssignableTo(pt) {
			return nil, errors.Join(ErrArgumentMismatch, fmt.Errorf("%s: argument %d is %s, want %s", method, i, v.Type(), pt))
		}

		in[i] = v
	}

	return in, nil
}

func results(ft reflect.Type, out []reflect.Value) ([]any, error) {
	var err error

	n := len(out)
	if n > 0 && ft.Out(n-1) == errorType {
		if e, ok := out[n-1].Interface().(error); ok && e != nil {
			err = e
		}
		n--
	}

	values := make([]any, n)
	for i := 0; i < n; i++ {
		values[i] = out[i].Interface()
	}

	return values, err
}

// Result returns out[i] as T, or the zero T if it is missing or of another type.
// Capability adapters use it to convert the results of Proxy.Invoke.
func Result[T any](out []any, i int) T {
	var zero T

	if i < 0 || i >= len(out) {
		return zero
	}

	v, ok := out[i].(T)
	if !ok {
		return zero
	}

	return v
}
