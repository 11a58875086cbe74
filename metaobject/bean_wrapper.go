package metaobject

import (
	"reflect"
)

// beanWrapper wraps a struct, or any other value with accessor methods.
// The wrapped value is always addressable so that unexported fields and
// pointer receiver methods are reachable.
type beanWrapper struct {
	meta      *MetaObject
	object    reflect.Value
	metaClass *MetaClass
}

func newBeanWrapper(meta *MetaObject, v reflect.Value) (*beanWrapper, error) {
	metaClass, err := ForType(v.Type(), meta.settings.cache, meta.settings.caseInsensitive)
	if err != nil {
		return nil, err
	}

	return &beanWrapper{
		meta:      meta,
		object:    addressable(v),
		metaClass: metaClass,
	}, nil
}

func (b *beanWrapper) reflector() *Reflector {
	return b.metaClass.reflector
}

func (b *beanWrapper) Get(prop PropertyTokenizer) (reflect.Value, error) {
	v, err := b.property(prop.Name())
	if err != nil {
		return reflect.Value{}, err
	}

	if prop.HasIndex() {
		return indexedGet(prop, v)
	}

	return v, nil
}

func (b *beanWrapper) Set(prop PropertyTokenizer, value any) error {
	if prop.HasIndex() {
		coll, err := b.property(prop.Name())
		if err != nil {
			return err
		}

		return indexedSet(prop, coll, value)
	}

	setter, err := b.reflector().Setter(b.metaClass.resolveName(prop.Name()))
	if err != nil {
		return err
	}

	v, err := coerce(value, setter.Type())
	if err != nil {
		return err
	}

	return setter.Set(b.object, v)
}

func (b *beanWrapper) property(name string) (reflect.Value, error) {
	getter, err := b.reflector().Getter(b.metaClass.resolveName(name))
	if err != nil {
		return reflect.Value{}, err
	}

	return getter.Get(b.object)
}

func (b *beanWrapper) FindProperty(name string, useCamelCaseMapping bool) string {
	return b.metaClass.FindProperty(name, useCamelCaseMapping)
}

func (b *beanWrapper) GetterNames() []string {
	return b.reflector().GetterNames()
}

func (b *beanWrapper) SetterNames() []string {
	return b.reflector().SetterNames()
}

func (b *beanWrapper) GetterType(name string) (reflect.Type, error) {
	prop, err := NewPropertyTokenizer(name)
	if err != nil {
		return nil, err
	}

	if !prop.HasNext() {
		return b.metaClass.GetterType(name)
	}

	child, err := b.meta.metaObjectForProperty(prop)
	if err != nil || child == nil {
		return b.metaClass.GetterType(name)
	}

	return child.GetterType(prop.Children())
}

func (b *beanWrapper) SetterType(name string) (reflect.Type, error) {
	prop, err := NewPropertyTokenizer(name)
	if err != nil {
		return nil, err
	}

	if !prop.HasNext() {
		return b.metaClass.SetterType(name)
	}

	child, err := b.meta.metaObjectForProperty(prop)
	if err != nil || child == nil {
		return b.metaClass.SetterType(name)
	}

	return child.SetterType(prop.Children())
}

func (b *beanWrapper) HasGetter(name string) bool {
	prop, err := NewPropertyTokenizer(name)
	if err != nil {
		return false
	}

	if !prop.HasNext() {
		return b.metaClass.HasGetter(name)
	}

	if !b.metaClass.HasGetter(prop.IndexedName()) {
		return false
	}

	child, err := b.meta.metaObjectForProperty(prop)
	if err != nil || child == nil {
		return b.metaClass.HasGetter(name)
	}

	return child.HasGetter(prop.Children())
}

func (b *beanWrapper) HasSetter(name string) bool {
	prop, err := NewPropertyTokenizer(name)
	if err != nil {
		return false
	}

	if !prop.HasNext() {
		return b.metaClass.HasSetter(name)
	}

	if !b.metaClass.HasGetter(prop.IndexedName()) {
		return false
	}

	child, err := b.meta.metaObjectForProperty(prop)
	if err != nil || child == nil {
		return b.metaClass.HasSetter(name)
	}

	return child.HasSetter(prop.Children())
}

func (b *beanWrapper) InstantiatePropertyValue(_ string, prop PropertyTokenizer, factory ObjectFactory) (*MetaObject, error) {
	t, err := b.metaClass.SetterType(prop.IndexedName())
	if err != nil {
		return nil, err
	}

	v, err := instantiate(factory, prop.IndexedName(), t)
	if err != nil {
		return nil, err
	}

	if err := b.Set(prop.Head(), v); err != nil {
		return nil, err
	}

	stored, err := b.Get(prop.Head())
	if err != nil {
		return nil, err
	}

	return b.meta.newChild(prop.IndexedName(), stored)
}

func (b *beanWrapper) IsCollection() bool {
	return false
}

func (b *beanWrapper) Add(any) error {
	return unsupported("Add", b.object.Type())
}

func (b *beanWrapper) AddAll([]any) error {
	return unsupported("AddAll", b.object.Type())
}
