package metaobject

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// MetaClass answers property questions about a type without an instance.
// It is used when a path runs through a nil intermediate value.
type MetaClass struct {
	cache           *MetadataCache
	reflector       *Reflector
	caseInsensitive bool
}

// ForType creates a MetaClass for t. Pointer types are dereferenced.
func ForType(t reflect.Type, cache *MetadataCache, caseInsensitive bool) (*MetaClass, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r, err := cache.ForType(t)
	if err != nil {
		return nil, err
	}

	return &MetaClass{cache: cache, reflector: r, caseInsensitive: caseInsensitive}, nil
}

// Reflector returns the metadata of the described type.
func (mc *MetaClass) Reflector() *Reflector {
	return mc.reflector
}

// HasGetter reports whether path is readable on the type. It never fails.
func (mc *MetaClass) HasGetter(path string) bool {
	prop, err := NewPropertyTokenizer(path)
	if err != nil {
		return false
	}

	_, err = mc.propertyType(prop, true)

	return err == nil
}

// HasSetter reports whether path is writable on the type. It never fails.
func (mc *MetaClass) HasSetter(path string) bool {
	prop, err := NewPropertyTokenizer(path)
	if err != nil {
		return false
	}

	_, err = mc.propertyType(prop, false)

	return err == nil
}

// GetterType returns the type read at path.
func (mc *MetaClass) GetterType(path string) (reflect.Type, error) {
	prop, err := NewPropertyTokenizer(path)
	if err != nil {
		return nil, err
	}

	return mc.propertyType(prop, true)
}

// SetterType returns the type written at path.
func (mc *MetaClass) SetterType(path string) (reflect.Type, error) {
	prop, err := NewPropertyTokenizer(path)
	if err != nil {
		return nil, err
	}

	return mc.propertyType(prop, false)
}

// FindProperty resolves every segment of path case-insensitively and returns the
// path spelled with the actual property names, or an empty string.
// With useCamelCaseMapping underscores are ignored, so "first_name" finds "FirstName".
func (mc *MetaClass) FindProperty(path string, useCamelCaseMapping bool) string {
	if useCamelCaseMapping {
		path = strings.ReplaceAll(path, "_", "")
	}

	prop, err := NewPropertyTokenizer(path)
	if err != nil {
		return ""
	}

	var b strings.Builder
	if !mc.buildProperty(prop, &b) {
		return ""
	}

	return b.String()
}

func (mc *MetaClass) buildProperty(prop PropertyTokenizer, b *strings.Builder) bool {
	name, ok := mc.reflector.FindPropertyName(prop.Name())
	if !ok {
		return false
	}

	b.WriteString(name)
	if !prop.HasNext() {
		return true
	}
	b.WriteByte('.')

	t, err := mc.reflector.GetterType(name)
	if err != nil {
		return false
	}

	child, err := ForType(t, mc.cache, mc.caseInsensitive)
	if err != nil {
		return false
	}

	return child.buildProperty(prop.Next(), b)
}

func (mc *MetaClass) resolveName(name string) string {
	if mc.reflector.HasGetter(name) || mc.reflector.HasSetter(name) || !mc.caseInsensitive {
		return name
	}

	if found, ok := mc.reflector.FindPropertyName(name); ok {
		return found
	}

	return name
}

func (mc *MetaClass) propertyType(prop PropertyTokenizer, getter bool) (reflect.Type, error) {
	name := mc.resolveName(prop.Name())

	var (
		t   reflect.Type
		err error
	)

	if getter || prop.HasNext() || prop.HasIndex() {
		t, err = mc.reflector.GetterType(name)
	} else {
		t, err = mc.reflector.SetterType(name)
	}
	if err != nil {
		return nil, err
	}

	if prop.HasIndex() {
		if t, err = elementType(t, prop.IndexedName()); err != nil {
			return nil, err
		}
	}

	if !prop.HasNext() {
		return t, nil
	}

	return mc.nestedPropertyType(t, prop.Next(), getter)
}

// nestedPropertyType continues a static lookup in t. Map types accept any key.
func (mc *MetaClass) nestedPropertyType(t reflect.Type, prop PropertyTokenizer, getter bool) (reflect.Type, error) {
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}

	if base.Kind() != reflect.Map {
		child, err := ForType(t, mc.cache, mc.caseInsensitive)
		if err != nil {
			return nil, err
		}

		return child.propertyType(prop, getter)
	}

	et := base.Elem()
	if prop.HasIndex() {
		var err error
		if et, err = elementType(et, prop.IndexedName()); err != nil {
			return nil, err
		}
	}

	if !prop.HasNext() {
		return et, nil
	}

	return mc.nestedPropertyType(et, prop.Next(), getter)
}

// elementType returns the element type of a slice, array or map type.
func elementType(t reflect.Type, indexedName string) (reflect.Type, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return t.Elem(), nil
	default:
		return nil, errors.Join(
			ErrUnsupportedOperation,
			fmt.Errorf("%s: %s is not a map, slice or array", indexedName, t),
		)
	}
}
