package metaobject

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// collectionWrapper wraps a slice or an array. A segment name is the element position,
// so "2.name" reads the name of the third element.
type collectionWrapper struct {
	meta   *MetaObject
	object reflect.Value
}

func newCollectionWrapper(meta *MetaObject, v reflect.Value) *collectionWrapper {
	return &collectionWrapper{meta: meta, object: v}
}

func (c *collectionWrapper) element(name string) (reflect.Value, error) {
	i, err := strconv.Atoi(name)
	if err != nil {
		return reflect.Value{}, errors.Join(ErrMalformedPath, fmt.Errorf("%q is not an integer index", name))
	}

	if i < 0 || i >= c.object.Len() {
		return reflect.Value{}, errors.Join(ErrIndexOutOfRange, fmt.Errorf("index %d, length %d", i, c.object.Len()))
	}

	return exposed(c.object.Index(i)), nil
}

func (c *collectionWrapper) Get(prop PropertyTokenizer) (reflect.Value, error) {
	v, err := c.element(prop.Name())
	if err != nil {
		return reflect.Value{}, err
	}

	if prop.HasIndex() {
		return indexedGet(prop, v)
	}

	return v, nil
}

func (c *collectionWrapper) Set(prop PropertyTokenizer, value any) error {
	v, err := c.element(prop.Name())
	if err != nil {
		return err
	}

	if prop.HasIndex() {
		return indexedSet(prop, v, value)
	}

	if !v.CanSet() {
		return errors.Join(ErrNotAssignable, fmt.Errorf("element %s of %s is not settable", prop.Name(), c.object.Type()))
	}

	elem, err := coerce(value, v.Type())
	if err != nil {
		return err
	}

	v.Set(elem)

	return nil
}

func (c *collectionWrapper) FindProperty(name string, _ bool) string {
	return name
}

func (c *collectionWrapper) GetterNames() []string {
	return nil
}

func (c *collectionWrapper) SetterNames() []string {
	return nil
}

func (c *collectionWrapper) GetterType(name string) (reflect.Type, error) {
	return c.propertyType(name, true)
}

func (c *collectionWrapper) SetterType(name string) (reflect.Type, error) {
	return c.propertyType(name, false)
}

func (c *collectionWrapper) propertyType(name string, getter bool) (reflect.Type, error) {
	prop, err := NewPropertyTokenizer(name)
	if err != nil {
		return nil, err
	}

	if _, err := c.element(prop.Name()); err != nil {
		return nil, err
	}

	if !prop.HasNext() && !prop.HasIndex() {
		return c.object.Type().Elem(), nil
	}

	child, err := c.meta.metaObjectForProperty(prop.Head())
	if err != nil {
		return nil, err
	}

	if child == nil {
		if prop.HasIndex() {
			et, err := elementType(c.object.Type().Elem(), prop.IndexedName())
			if err != nil || !prop.HasNext() {
				return et, err
			}

			return c.meta.staticPropertyType(et, prop.Next(), getter)
		}

		return c.meta.staticPropertyType(c.object.Type().Elem(), prop.Next(), getter)
	}

	if !prop.HasNext() {
		return child.value.Type(), nil
	}

	if getter {
		return child.GetterType(prop.Children())
	}

	return child.SetterType(prop.Children())
}

func (c *collectionWrapper) HasGetter(name string) bool {
	_, err := c.propertyType(name, true)
	return err == nil
}

func (c *collectionWrapper) HasSetter(name string) bool {
	_, err := c.propertyType(name, false)
	return err == nil
}

func (c *collectionWrapper) InstantiatePropertyValue(string, PropertyTokenizer, ObjectFactory) (*MetaObject, error) {
	return nil, unsupported("InstantiatePropertyValue", c.object.Type())
}

func (c *collectionWrapper) IsCollection() bool {
	return true
}

func (c *collectionWrapper) Add(element any) error {
	return c.AddAll([]any{element})
}

func (c *collectionWrapper) AddAll(elements []any) error {
	if c.object.Kind() != reflect.Slice || !c.object.CanSet() {
		return errors.Join(ErrNotAssignable, fmt.Errorf("%s cannot grow in place", c.object.Type()))
	}

	values := make([]reflect.Value, 0, len(elements))
	for _, element := range elements {
		v, err := coerce(element, c.object.Type().Elem())
		if err != nil {
			return err
		}
		values = append(values, v)
	}

	c.object.Set(reflect.Append(c.object, values...))

	return nil
}
