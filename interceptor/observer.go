package interceptor

// Observer handles the calls routed to it by a proxy layer.
// It may inspect or replace arguments, short-circuit by not calling Invocation.Proceed,
// or call Proceed more than once.
type Observer interface {
	Intercept(inv *Invocation) ([]any, error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(inv *Invocation) ([]any, error)

// Intercept calls f(inv).
func (f ObserverFunc) Intercept(inv *Invocation) ([]any, error) {
	return f(inv)
}

// Interceptor is an Observer that declares the calls it wants to see.
type Interceptor interface {
	Observer
	Signatures() []Signature
}

// Configurable is implemented by interceptors that accept Properties from configuration.
type Configurable interface {
	SetProperties(properties Properties) error
}
