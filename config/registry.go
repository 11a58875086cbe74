package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
	"github.com/AntonStoeckl/dynamic-plugins-go/plugins/querylimit"
	"github.com/AntonStoeckl/dynamic-plugins-go/plugins/tracelog"
)

// Factory creates a fresh, unconfigured plugin instance.
type Factory func() (interceptor.Interceptor, error)

// Registry resolves plugin names of a configuration file to interceptors.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register makes factory available under name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return errors.Join(ErrInvalidConfig, errors.New("plugin registration needs a name and a factory"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[name]; ok {
		return errors.Join(ErrDuplicatePlugin, fmt.Errorf("plugin %q", name))
	}

	r.factories[name] = factory

	return nil
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// Build creates the plugin declared by pc and hands it its properties.
// Properties for a plugin that takes none are rejected.
func (r *Registry) Build(pc PluginConfig) (interceptor.Interceptor, error) {
	r.mu.RLock()
	factory, ok := r.factories[pc.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Join(ErrUnknownPlugin, fmt.Errorf("plugin %q, known plugins are %v", pc.Name, r.Names()))
	}

	i, err := factory()
	if err != nil {
		return nil, fmt.Errorf("creating plugin %q: %w", pc.Name, err)
	}

	configurable, ok := i.(interceptor.Configurable)
	if !ok {
		if len(pc.Properties) > 0 {
			return nil, errors.Join(ErrInvalidProperty, fmt.Errorf("plugin %q takes no properties", pc.Name))
		}
		return i, nil
	}

	if err = configurable.SetProperties(interceptor.Properties(pc.Properties)); err != nil {
		return nil, errors.Join(ErrInvalidProperty, fmt.Errorf("plugin %q: %w", pc.Name, err))
	}

	return i, nil
}

// Observability is handed to the built-in plugins of NewDefaultRegistry.
type Observability struct {
	Logger           interceptor.Logger
	ContextualLogger interceptor.ContextualLogger
	MetricsCollector interceptor.MetricsCollector
	TracingCollector interceptor.TracingCollector
}

// NewDefaultRegistry creates a Registry with the built-in plugins "querylimit" and "tracelog".
func NewDefaultRegistry(observability Observability) *Registry {
	r := NewRegistry()

	r.factories[querylimit.Name] = func() (interceptor.Interceptor, error) {
		var options []querylimit.Option
		if observability.Logger != nil {
			options = append(options, querylimit.WithLogger(observability.Logger))
		}
		return querylimit.New(options...)
	}

	r.factories[tracelog.Name] = func() (interceptor.Interceptor, error) {
		return tracelog.New(
			tracelog.WithLogger(observability.Logger),
			tracelog.WithContextualLogger(observability.ContextualLogger),
			tracelog.WithMetrics(observability.MetricsCollector),
			tracelog.WithTracing(observability.TracingCollector),
		)
	}

	return r
}
