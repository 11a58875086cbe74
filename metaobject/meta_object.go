package metaobject

import (
	"errors"
	"fmt"
	"reflect"
)

// Option configures a MetaObject.
type Option func(*settings) error

// settings are shared by a MetaObject and all children created during navigation.
type settings struct {
	cache           *MetadataCache
	objectFactory   ObjectFactory
	wrapperFactory  ObjectWrapperFactory
	caseInsensitive bool
}

// WithCaseInsensitive enables case-insensitive matching of property names.
func WithCaseInsensitive(enabled bool) Option {
	return func(s *settings) error {
		s.caseInsensitive = enabled
		return nil
	}
}

// WithObjectFactory sets the factory used for auto-vivification.
func WithObjectFactory(factory ObjectFactory) Option {
	return func(s *settings) error {
		if factory == nil {
			return errors.New("nil object factory supplied")
		}
		s.objectFactory = factory

		return nil
	}
}

// WithObjectWrapperFactory installs a factory for custom object wrappers.
func WithObjectWrapperFactory(factory ObjectWrapperFactory) Option {
	return func(s *settings) error {
		if factory == nil {
			return errors.New("nil object wrapper factory supplied")
		}
		s.wrapperFactory = factory

		return nil
	}
}

// WithMetadataCache replaces the process-wide metadata cache, e.g. with an isolated one in tests.
func WithMetadataCache(cache *MetadataCache) Option {
	return func(s *settings) error {
		if cache == nil {
			return errors.New("nil metadata cache supplied")
		}
		s.cache = cache

		return nil
	}
}

// MetaObject is a navigable view of one object.
// It is not safe for concurrent use when any caller writes through it.
type MetaObject struct {
	original any
	value    reflect.Value
	wrapper  ObjectWrapper
	settings *settings
	children map[string]cachedChild

	// detached is set when value is a copy of a property that cannot be modified in place,
	// such as a struct stored in a map or an interface. Writes are stored back into the parent.
	detached bool
}

type cachedChild struct {
	identity identity
	meta     *MetaObject
}

// identity tells whether a freshly read property value still denotes the object a
// cached child was built for.
type identity struct {
	typ  reflect.Type
	ptr  uintptr
	len  int
	kind reflect.Kind
}

func identityOf(v reflect.Value) (identity, bool) {
	v = indirect(v)
	if !v.IsValid() {
		return identity{}, false
	}

	switch {
	case v.CanAddr():
		return identity{typ: v.Type(), ptr: v.UnsafeAddr(), kind: v.Kind()}, true
	case v.Kind() == reflect.Map:
		return identity{typ: v.Type(), ptr: v.Pointer(), kind: v.Kind()}, true
	case v.Kind() == reflect.Slice:
		return identity{typ: v.Type(), ptr: v.Pointer(), len: v.Len(), kind: v.Kind()}, true
	default:
		return identity{}, false
	}
}

// ForObject wraps obj. Pass a pointer to make writes visible to the caller.
func ForObject(obj any, options ...Option) (*MetaObject, error) {
	if obj == nil {
		return nil, ErrNilObject
	}

	s := &settings{
		cache:         DefaultCache(),
		objectFactory: defaultObjectFactory,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	v := indirect(reflect.ValueOf(obj))
	if !v.IsValid() {
		return nil, errors.Join(ErrNilObject, fmt.Errorf("%T is nil", obj))
	}

	return newMetaObject(obj, addressable(v), s)
}

func newMetaObject(original any, v reflect.Value, s *settings) (*MetaObject, error) {
	m := &MetaObject{
		original: original,
		value:    v,
		settings: s,
		children: make(map[string]cachedChild),
	}

	w, err := newWrapper(m, v)
	if err != nil {
		return nil, err
	}
	m.wrapper = w

	return m, nil
}

// newChild wraps a property value read from m. It returns nil for nil values.
func (m *MetaObject) newChild(key string, raw reflect.Value) (*MetaObject, error) {
	v := indirect(raw)
	if !v.IsValid() {
		return nil, nil
	}

	original := toInterface(raw)

	detached := !v.CanAddr() && heldByValue(v)
	if detached {
		v = addressable(v)
		original = v.Interface()
	}

	child, err := newMetaObject(original, v, m.settings)
	if err != nil {
		return nil, err
	}
	child.detached = detached

	if id, ok := identityOf(raw); ok && !detached {
		m.children[key] = cachedChild{identity: id, meta: child}
	}

	return child, nil
}

// heldByValue reports whether writes into v only reach a copy. Maps share their
// entries, except a nil map which has to be allocated and stored first.
func heldByValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Struct, reflect.Array:
		return true
	case reflect.Map:
		return v.IsNil()
	default:
		return false
	}
}

// storeBack assigns the modified copy held by child to the property head of m.
func (m *MetaObject) storeBack(head PropertyTokenizer, child *MetaObject) error {
	if err := m.wrapper.Set(head, child.value.Interface()); err != nil {
		return errors.Join(
			ErrNotAssignable,
			fmt.Errorf("%s holds a copy that cannot be stored back: %w", head.IndexedName(), err),
		)
	}

	return nil
}

// metaObjectForProperty returns the child for the head segment of prop, reusing the
// cached child while the property still holds the same object. It returns nil for nil values.
func (m *MetaObject) metaObjectForProperty(prop PropertyTokenizer) (*MetaObject, error) {
	head := prop.Head()

	raw, err := m.wrapper.Get(head)
	if err != nil {
		return nil, err
	}

	if isNil(raw) {
		return nil, nil
	}

	if cached, ok := m.children[head.IndexedName()]; ok {
		if id, ok := identityOf(raw); ok && id == cached.identity {
			return cached.meta, nil
		}
	}

	return m.newChild(head.IndexedName(), raw)
}

// MetaObjectForProperty returns a MetaObject over the value at path, or nil if it is nil.
func (m *MetaObject) MetaObjectForProperty(path string) (*MetaObject, error) {
	prop, err := NewPropertyTokenizer(path)
	if err != nil {
		return nil, err
	}

	for {
		child, err := m.metaObjectForProperty(prop)
		if err != nil || child == nil || !prop.HasNext() {
			return child, err
		}
		m, prop = child, prop.Next()
	}
}

// GetValue reads the value at path. A nil intermediate yields nil; an absent map key yields NoValue.
func (m *MetaObject) GetValue(path string) (any, error) {
	prop, err := NewPropertyTokenizer(path)
	if err != nil {
		return nil, err
	}

	v, err := m.getValue(prop)
	if err != nil {
		return nil, err
	}

	return toInterface(v), nil
}

func (m *MetaObject) getValue(prop PropertyTokenizer) (reflect.Value, error) {
	if !prop.HasNext() {
		return m.wrapper.Get(prop)
	}

	child, err := m.metaObjectForProperty(prop)
	if err != nil {
		return reflect.Value{}, err
	}

	if child == nil {
		if !m.isMapEntry(prop.Head()) && !m.wrapper.HasGetter(prop.String()) {
			return reflect.Value{}, errors.Join(
				ErrPropertyNotFound,
				fmt.Errorf("there is no getter for path %q in %s", prop.String(), m.value.Type()),
			)
		}

		return reflect.Value{}, nil
	}

	return child.getValue(prop.Next())
}

// isMapEntry reports whether head reads an entry of a map. Map entries have no schema,
// so paths below an absent or nil entry read as nil.
func (m *MetaObject) isMapEntry(head PropertyTokenizer) bool {
	if _, ok := m.wrapper.(*mapWrapper); ok {
		return true
	}

	if !head.HasIndex() {
		return false
	}

	if raw, err := m.wrapper.Get(head); err == nil && raw.IsValid() && raw.Type() == reflect.TypeOf(NoValue) {
		return true
	}

	t, err := m.wrapper.GetterType(head.Name())
	if err != nil {
		return false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Kind() == reflect.Map
}

// SetValue writes value at path, creating unset intermediate values on the way.
func (m *MetaObject) SetValue(path string, value any) error {
	prop, err := NewPropertyTokenizer(path)
	if err != nil {
		return err
	}

	return m.setValue(prop, value)
}

func (m *MetaObject) setValue(prop PropertyTokenizer, value any) error {
	if !prop.HasNext() {
		delete(m.children, prop.IndexedName())
		return m.wrapper.Set(prop, value)
	}

	child, err := m.metaObjectForProperty(prop)
	if err != nil {
		return err
	}

	if child == nil {
		if isNilValue(value) {
			return nil
		}

		child, err = m.wrapper.InstantiatePropertyValue(prop.IndexedName(), prop, m.settings.objectFactory)
		if err != nil {
			return err
		}
	}

	if err := child.setValue(prop.Next(), value); err != nil {
		return err
	}

	if child.detached {
		return m.storeBack(prop.Head(), child)
	}

	return nil
}

func isNilValue(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)

	return isNilable(v.Kind()) && v.IsNil()
}

// HasGetter reports whether path is readable. It never fails.
func (m *MetaObject) HasGetter(path string) bool {
	return m.wrapper.HasGetter(path)
}

// HasSetter reports whether path is writable. It never fails.
func (m *MetaObject) HasSetter(path string) bool {
	return m.wrapper.HasSetter(path)
}

// GetterType returns the type read at path.
func (m *MetaObject) GetterType(path string) (reflect.Type, error) {
	return m.wrapper.GetterType(path)
}

// SetterType returns the type written at path.
func (m *MetaObject) SetterType(path string) (reflect.Type, error) {
	return m.wrapper.SetterType(path)
}

// FindProperty returns path spelled with the actual property names, matched
// case-insensitively, or an empty string when a segment does not exist.
func (m *MetaObject) FindProperty(path string, useCamelCaseMapping bool) string {
	return m.wrapper.FindProperty(path, useCamelCaseMapping)
}

// GetterNames returns the readable property names.
func (m *MetaObject) GetterNames() []string {
	return m.wrapper.GetterNames()
}

// SetterNames returns the writable property names.
func (m *MetaObject) SetterNames() []string {
	return m.wrapper.SetterNames()
}

// OriginalObject returns the object this MetaObject was created for.
func (m *MetaObject) OriginalObject() any {
	return m.original
}

// ObjectWrapper returns the wrapper in use.
func (m *MetaObject) ObjectWrapper() ObjectWrapper {
	return m.wrapper
}

// IsCollection reports whether the wrapped value is a slice or an array.
func (m *MetaObject) IsCollection() bool {
	return m.wrapper.IsCollection()
}

// Add appends element to a wrapped slice.
func (m *MetaObject) Add(element any) error {
	return m.wrapper.Add(element)
}

// AddAll appends elements to a wrapped slice.
func (m *MetaObject) AddAll(elements []any) error {
	return m.wrapper.AddAll(elements)
}

func (m *MetaObject) staticPropertyType(t reflect.Type, prop PropertyTokenizer, getter bool) (reflect.Type, error) {
	mc := &MetaClass{cache: m.settings.cache, caseInsensitive: m.settings.caseInsensitive}
	return mc.nestedPropertyType(t, prop, getter)
}
