package metaobject

import (
	"errors"
)

var (
	// ErrMalformedPath is returned for property paths with bad syntax.
	ErrMalformedPath = errors.New("malformed property path")

	// ErrPropertyNotFound is returned when a named property does not exist on its owning type.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrIndexOutOfRange is returned for indexed access beyond the bounds of a slice or array.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrPropertyInstantiation is returned when an unset intermediate property cannot be created.
	ErrPropertyInstantiation = errors.New("property value could not be instantiated")

	// ErrMetadataBuild is returned when the accessors of a type cannot be bound.
	ErrMetadataBuild = errors.New("type metadata could not be built")

	// ErrUnsupportedOperation is returned when a wrapper does not support the requested operation.
	ErrUnsupportedOperation = errors.New("operation not supported for this object")

	// ErrNotAssignable is returned when a value cannot be assigned to a property.
	ErrNotAssignable = errors.New("value not assignable to property")

	// ErrNilObject is returned when a nil object is wrapped.
	ErrNilObject = errors.New("nil object supplied")
)

// NoValue is returned when reading a map key that is not present.
var NoValue = noValue{}

type noValue struct{}

func (noValue) String() string {
	return "<no value>"
}
