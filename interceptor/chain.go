package interceptor

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

const (
	logMsgChainSealed       = "interceptor chain sealed"
	logMsgLayerBuilt        = "proxy layer built"
	logMsgNoMatchingLayers  = "no interceptor registered for capability"
	logMsgObserverAdded     = "observer registered"
	logAttrCapability       = "capability"
	logAttrSignatures       = "signatures"
	logAttrLayer            = "layer"
	logAttrRegistrationSize = "registrations"
)

// Chain holds the ordered observer registrations and the capability adapters used to build layered proxies.
// The registration set is sealed by the first Wrap; later registrations fail with ErrChainSealed.
type Chain struct {
	mu            sync.RWMutex
	registrations []registration
	adapters      map[reflect.Type]func(*Proxy) any
	sealed        atomic.Bool
	logger        Logger
}

type registration struct {
	observer   Observer
	signatures []Signature
}

// Option defines a functional option for configuring a Chain.
type Option func(*Chain) error

// WithLogger sets the logger that receives chain building diagnostics at debug level.
func WithLogger(logger Logger) Option {
	return func(c *Chain) error {
		c.logger = logger
		return nil
	}
}

// NewChain creates an empty, unsealed Chain.
func NewChain(options ...Option) (*Chain, error) {
	c := &Chain{
		adapters: make(map[reflect.Type]func(*Proxy) any),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// AddInterceptor registers i for every signature it declares.
func (c *Chain) AddInterceptor(i Interceptor) error {
	if i == nil {
		return ErrNilInterceptor
	}

	signatures := i.Signatures()
	if len(signatures) == 0 {
		return errors.Join(ErrInvalidSignature, fmt.Errorf("%T declares no signatures", i))
	}

	return c.Register(i, signatures[0], signatures[1:]...)
}

// Register adds observer for one or more signatures. Signatures are validated immediately.
func (c *Chain) Register(observer Observer, sig Signature, more ...Signature) error {
	if observer == nil {
		return ErrNilInterceptor
	}

	signatures := append([]Signature{sig}, more...)
	for _, s := range signatures {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed.Load() {
		return ErrChainSealed
	}

	c.registrations = append(c.registrations, registration{observer: observer, signatures: signatures})
	c.logDebug(logMsgObserverAdded, logAttrSignatures, fmt.Sprint(signatures))

	return nil
}

// Interceptors returns the registered observers in registration order.
func (c *Chain) Interceptors() []Observer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	observers := make([]Observer, len(c.registrations))
	for i, r := range c.registrations {
		observers[i] = r.observer
	}

	return observers
}

// Sealed reports whether a proxy has been built from this chain.
func (c *Chain) Sealed() bool {
	return c.sealed.Load()
}

// RegisterCapability installs the typed adapter that makes a Proxy satisfy the capability interface T.
// Adapters typically embed *Proxy and forward every method to Proxy.Invoke.
func RegisterCapability[T any](c *Chain, adapt func(*Proxy) T) error {
	capability := reflect.TypeFor[T]()
	if capability.Kind() != reflect.Interface {
		return errors.Join(ErrInvalidCapability, fmt.Errorf("%s is a %s", capability, capability.Kind()))
	}

	if adapt == nil {
		return errors.Join(ErrNoCapabilityAdapter, fmt.Errorf("nil adapter supplied for %s", capability))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed.Load() {
		return ErrChainSealed
	}

	c.adapters[capability] = func(p *Proxy) any { return adapt(p) }

	return nil
}

// Wrap builds the layered proxy for target as the capability T and seals the chain.
// Every registration with a signature on T adds one layer, innermost first,
// so the last registered observer runs first. Without matching registrations target is returned as is.
func Wrap[T any](c *Chain, target T) (T, error) {
	var zero T

	capability := reflect.TypeFor[T]()
	if capability.Kind() != reflect.Interface {
		return zero, errors.Join(ErrInvalidCapability, fmt.Errorf("%s is a %s", capability, capability.Kind()))
	}

	if isNilTarget(target) {
		return zero, errors.Join(ErrNilTarget, fmt.Errorf("cannot wrap a nil %s", capability))
	}

	layers, adapt, err := c.seal(capability)
	if err != nil {
		return zero, err
	}

	var current any = target
	for i, r := range layers {
		proxy := newProxy(current, r.observer, capability, r.signatures)

		adapted, ok := adapt(proxy).(T)
		if !ok {
			return zero, errors.Join(ErrNoCapabilityAdapter, fmt.Errorf("the adapter for %s returned a value that does not implement it", capability))
		}

		current = adapted
		c.logDebug(logMsgLayerBuilt, logAttrCapability, capability.String(), logAttrLayer, i+1)
	}

	return current.(T), nil
}

// seal marks the chain as sealed and returns the registrations that apply to capability.
func (c *Chain) seal(capability reflect.Type) ([]registration, func(*Proxy) any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.sealed.Swap(true) {
		c.logDebug(logMsgChainSealed, logAttrRegistrationSize, len(c.registrations))
	}

	var layers []registration
	for _, r := range c.registrations {
		var matching []Signature
		for _, s := range r.signatures {
			if s.Type == capability {
				matching = append(matching, s)
			}
		}

		if len(matching) > 0 {
			layers = append(layers, registration{observer: r.observer, signatures: matching})
		}
	}

	if len(layers) == 0 {
		c.logDebug(logMsgNoMatchingLayers, logAttrCapability, capability.String())
		return nil, nil, nil
	}

	adapt, ok := c.adapters[capability]
	if !ok {
		return nil, nil, errors.Join(ErrNoCapabilityAdapter, fmt.Errorf("register an adapter for %s with RegisterCapability", capability))
	}

	return layers, adapt, nil
}

func (c *Chain) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func isNilTarget(target any) bool {
	if target == nil {
		return true
	}

	v := reflect.ValueOf(target)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
