package interceptor

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// Invocation is one intercepted call as seen by an Observer.
type Invocation struct {
	proxy  *Proxy
	method reflect.Method
	args   []any
}

// Target returns the inner layer the call proceeds to. Use Peel to reach the real object.
func (i *Invocation) Target() any {
	return i.proxy.target
}

// Method returns the name of the intercepted method.
func (i *Invocation) Method() string {
	return i.method.Name
}

// Capability returns the interface type the call was made on.
func (i *Invocation) Capability() reflect.Type {
	return i.proxy.capability
}

// Args returns a copy of the call arguments.
func (i *Invocation) Args() []any {
	return slices.Clone(i.args)
}

// Arg returns argument n, or nil if there is no such argument.
func (i *Invocation) Arg(n int) any {
	if n < 0 || n >= len(i.args) {
		return nil
	}

	return i.args[n]
}

// SetArg replaces argument n for all later calls to Proceed.
func (i *Invocation) SetArg(n int, value any) error {
	if n < 0 || n >= len(i.args) {
		return errors.Join(ErrArgumentMismatch, fmt.Errorf("%s has no argument %d", i.method.Name, n))
	}

	pt := i.method.Type.In(n)
	if value == nil {
		switch pt.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		default:
			return errors.Join(ErrArgumentMismatch, fmt.Errorf("%s: argument %d of type %s cannot be nil", i.method.Name, n, pt))
		}
	} else if !reflect.TypeOf(value).AssignableTo(pt) {
		return errors.Join(ErrArgumentMismatch, fmt.Errorf("%s: argument %d is %T, want %s", i.method.Name, n, value, pt))
	}

	i.args[n] = value

	return nil
}

// Proceed forwards the call with the current arguments to the inner layer and returns its results.
// It may be called zero or more times.
func (i *Invocation) Proceed() ([]any, error) {
	return call(i.proxy.target, i.method.Name, i.args)
}

func (i *Invocation) String() string {
	return fmt.Sprintf("%s.%s", i.proxy.capability, i.method.Name)
}
