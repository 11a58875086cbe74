package metaobject

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

const (
	tagName      = "meta"
	tagSkip      = "-"
	getterPrefix = "Get"
	boolPrefix   = "Is"
	setterPrefix = "Set"
)

// Reflector holds the property metadata of one type. It is immutable after construction.
type Reflector struct {
	typ      reflect.Type
	readable []string
	writable []string
	getters  map[string]Accessor
	setters  map[string]Accessor
	caseFold map[string]string
}

// Type returns the type this metadata describes.
func (r *Reflector) Type() reflect.Type {
	return r.typ
}

// GetterNames returns the readable property names in sorted order.
func (r *Reflector) GetterNames() []string {
	return slices.Clone(r.readable)
}

// SetterNames returns the writable property names in sorted order.
func (r *Reflector) SetterNames() []string {
	return slices.Clone(r.writable)
}

// HasGetter reports whether the exact property name is readable.
func (r *Reflector) HasGetter(name string) bool {
	_, ok := r.getters[name]
	return ok
}

// HasSetter reports whether the exact property name is writable.
func (r *Reflector) HasSetter(name string) bool {
	_, ok := r.setters[name]
	return ok
}

// Getter returns the read accessor for the exact property name.
func (r *Reflector) Getter(name string) (Accessor, error) {
	a, ok := r.getters[name]
	if !ok {
		return nil, errors.Join(ErrPropertyNotFound, fmt.Errorf("there is no getter for property %q in %s", name, r.typ))
	}

	return a, nil
}

// Setter returns the write accessor for the exact property name.
func (r *Reflector) Setter(name string) (Accessor, error) {
	a, ok := r.setters[name]
	if !ok {
		return nil, errors.Join(ErrPropertyNotFound, fmt.Errorf("there is no setter for property %q in %s", name, r.typ))
	}

	return a, nil
}

// GetterType returns the type read by the getter of the property.
func (r *Reflector) GetterType(name string) (reflect.Type, error) {
	a, err := r.Getter(name)
	if err != nil {
		return nil, err
	}

	return a.Type(), nil
}

// SetterType returns the type accepted by the setter of the property.
func (r *Reflector) SetterType(name string) (reflect.Type, error) {
	a, err := r.Setter(name)
	if err != nil {
		return nil, err
	}

	return a.Type(), nil
}

// FindPropertyName resolves name case-insensitively to a known property name.
func (r *Reflector) FindPropertyName(name string) (string, bool) {
	found, ok := r.caseFold[strings.ToUpper(name)]
	return found, ok
}

// Introspector builds the property metadata of a type.
type Introspector interface {
	Introspect(t reflect.Type) (*Reflector, error)
}

// IntrospectorFunc adapts a function to the Introspector interface.
type IntrospectorFunc func(t reflect.Type) (*Reflector, error)

// Introspect calls f(t).
func (f IntrospectorFunc) Introspect(t reflect.Type) (*Reflector, error) {
	return f(t)
}

// ReflectionIntrospector derives properties from struct fields and accessor methods.
type ReflectionIntrospector struct {
	// IncludeUnexported also binds unexported struct fields.
	IncludeUnexported bool
}

// Introspect implements Introspector.
func (ri ReflectionIntrospector) Introspect(t reflect.Type) (*Reflector, error) {
	b := newReflectorBuilder(t)

	if t.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(t) {
			if !f.IsExported() && !ri.IncludeUnexported {
				continue
			}

			name := f.Name
			if tag, ok := f.Tag.Lookup(tagName); ok {
				if tag == tagSkip {
					continue
				}
				if tag != "" {
					name = tag
				}
			}

			if !ri.IncludeUnexported && !exportedPath(t, f.Index) {
				continue
			}

			accessor := fieldAccessor{name: name, index: f.Index, typ: f.Type}
			b.getters[name] = accessor
			b.setters[name] = accessor
		}
	}

	if err := b.addMethods(); err != nil {
		return nil, err
	}

	return b.build(), nil
}

// exportedPath reports whether every embedded struct on the way to a promoted field is exported.
func exportedPath(t reflect.Type, index []int) bool {
	for _, step := range index[:len(index)-1] {
		f := t.Field(step)
		if !f.IsExported() {
			return false
		}
		t = f.Type
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
	}

	return true
}

type reflectorBuilder struct {
	typ     reflect.Type
	getters map[string]Accessor
	setters map[string]Accessor
}

func newReflectorBuilder(t reflect.Type) *reflectorBuilder {
	return &reflectorBuilder{
		typ:     t,
		getters: make(map[string]Accessor),
		setters: make(map[string]Accessor),
	}
}

func (b *reflectorBuilder) addMethods() error {
	mt := b.typ
	receiverOffset := 0

	if mt.Kind() != reflect.Interface {
		mt = reflect.PointerTo(mt)
		receiverOffset = 1
	}

	methodGetters := make(map[string]Accessor)

	for i := 0; i < mt.NumMethod(); i++ {
		m := mt.Method(i)
		in := m.Type.NumIn() - receiverOffset
		out := m.Type.NumOut()

		switch {
		case strings.HasPrefix(m.Name, getterPrefix) && len(m.Name) > len(getterPrefix) && in == 0 && out == 1:
			if err := b.addMethodGetter(methodGetters, m.Name[len(getterPrefix):], m.Name, m.Type.Out(0)); err != nil {
				return err
			}

		case strings.HasPrefix(m.Name, boolPrefix) && len(m.Name) > len(boolPrefix) && in == 0 && out == 1 &&
			m.Type.Out(0).Kind() == reflect.Bool:
			if err := b.addMethodGetter(methodGetters, m.Name[len(boolPrefix):], m.Name, m.Type.Out(0)); err != nil {
				return err
			}

		case strings.HasPrefix(m.Name, setterPrefix) && len(m.Name) > len(setterPrefix) && in == 1 &&
			(out == 0 || (out == 1 && m.Type.Out(0) == errorType)):
			name := m.Name[len(setterPrefix):]
			param := m.Type.In(receiverOffset)
			if existing, ok := b.setters[name]; ok && existing.Type() != param {
				return b.conflict(name, "setter %s accepts %s but the field is %s", m.Name, param, existing.Type())
			}
			b.setters[name] = methodAccessor{method: m.Name, typ: param}
		}
	}

	for name, getter := range methodGetters {
		if existing, ok := b.getters[name]; ok && existing.Type() != getter.Type() {
			return b.conflict(name, "getter returns %s but the field is %s", getter.Type(), existing.Type())
		}
		b.getters[name] = getter
	}

	return nil
}

func (b *reflectorBuilder) addMethodGetter(methodGetters map[string]Accessor, name, method string, typ reflect.Type) error {
	if existing, ok := methodGetters[name]; ok && existing.Type() != typ {
		return b.conflict(name, "ambiguous getters %s and %s", existing.(methodAccessor).method, method)
	}

	methodGetters[name] = methodAccessor{method: method, typ: typ}

	return nil
}

func (b *reflectorBuilder) conflict(name string, format string, args ...any) error {
	return errors.Join(
		ErrMetadataBuild,
		fmt.Errorf("type %s, property %q: %s", b.typ, name, fmt.Sprintf(format, args...)),
	)
}

func (b *reflectorBuilder) build() *Reflector {
	r := &Reflector{
		typ:      b.typ,
		getters:  b.getters,
		setters:  b.setters,
		caseFold: make(map[string]string),
	}

	for name := range b.getters {
		r.readable = append(r.readable, name)
	}
	for name := range b.setters {
		r.writable = append(r.writable, name)
	}
	slices.Sort(r.readable)
	slices.Sort(r.writable)

	// Exported names sort before unexported ones, so "Name" wins over "name".
	for _, names := range [][]string{r.readable, r.writable} {
		for _, name := range names {
			upper := strings.ToUpper(name)
			if _, ok := r.caseFold[upper]; !ok {
				r.caseFold[upper] = name
			}
		}
	}

	return r
}

// MetadataCache is an append-only, concurrency-safe cache of type metadata.
// Concurrent first builds of the same type may both run; the first stored result wins.
// Failed builds are cached too, so a broken type fails identically on every lookup.
type MetadataCache struct {
	introspector Introspector
	entries      sync.Map
}

type cacheEntry struct {
	reflector *Reflector
	err       error
}

// CacheOption configures a MetadataCache.
type CacheOption func(*MetadataCache) error

// WithIntrospector replaces the reflection based introspector.
func WithIntrospector(introspector Introspector) CacheOption {
	return func(c *MetadataCache) error {
		if introspector == nil {
			return errors.New("nil introspector supplied")
		}
		c.introspector = introspector

		return nil
	}
}

// WithUnexportedFields controls whether unexported struct fields become properties. Default is true.
func WithUnexportedFields(include bool) CacheOption {
	return func(c *MetadataCache) error {
		c.introspector = ReflectionIntrospector{IncludeUnexported: include}
		return nil
	}
}

// NewMetadataCache creates an empty, isolated cache.
func NewMetadataCache(options ...CacheOption) (*MetadataCache, error) {
	c := &MetadataCache{
		introspector: ReflectionIntrospector{IncludeUnexported: true},
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

var defaultCache = &MetadataCache{introspector: ReflectionIntrospector{IncludeUnexported: true}}

// DefaultCache returns the process-wide cache.
func DefaultCache() *MetadataCache {
	return defaultCache
}

// ForType returns the metadata of t, building it on first use.
func (c *MetadataCache) ForType(t reflect.Type) (*Reflector, error) {
	if t == nil {
		return nil, errors.Join(ErrMetadataBuild, errors.New("nil type"))
	}

	if e, ok := c.entries.Load(t); ok {
		entry := e.(cacheEntry)
		return entry.reflector, entry.err
	}

	r, err := c.introspector.Introspect(t)
	if err != nil && !errors.Is(err, ErrMetadataBuild) {
		err = errors.Join(ErrMetadataBuild, err)
	}

	actual, _ := c.entries.LoadOrStore(t, cacheEntry{reflector: r, err: err})
	entry := actual.(cacheEntry)

	return entry.reflector, entry.err
}

// Len returns the number of cached types.
func (c *MetadataCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}
