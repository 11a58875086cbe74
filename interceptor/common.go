package interceptor

import (
	"errors"
)

var ErrChainSealed = errors.New("interceptor chain is sealed, registrations are not allowed after the first build")
var ErrInvalidSignature = errors.New("invalid interceptor signature")
var ErrNoCapabilityAdapter = errors.New("no capability adapter registered")
var ErrMethodNotFound = errors.New("method not found")
var ErrArgumentMismatch = errors.New("arguments do not match the method parameters")
var ErrNilInterceptor = errors.New("nil interceptor supplied")
var ErrNilTarget = errors.New("nil target supplied")
var ErrInvalidCapability = errors.New("capability must be an interface type")

// Properties are the string settings handed to a Configurable interceptor.
type Properties map[string]string

// Get returns the value stored under key, or def if the key is absent or empty.
func (p Properties) Get(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}

	return def
}
