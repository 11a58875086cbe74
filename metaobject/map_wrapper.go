package metaobject

import (
	"fmt"
	"reflect"
	"slices"
)

// mapWrapper wraps a map. A segment name is the key; absent keys read as NoValue.
type mapWrapper struct {
	meta   *MetaObject
	object reflect.Value
}

func newMapWrapper(meta *MetaObject, v reflect.Value) *mapWrapper {
	return &mapWrapper{meta: meta, object: v}
}

func (w *mapWrapper) entry(name string) (reflect.Value, bool) {
	key, err := mapKey(name, w.object.Type().Key())
	if err != nil {
		return reflect.Value{}, false
	}

	v := w.object.MapIndex(key)

	return v, v.IsValid()
}

func (w *mapWrapper) Get(prop PropertyTokenizer) (reflect.Value, error) {
	v, ok := w.entry(prop.Name())
	if !ok {
		return reflect.ValueOf(NoValue), nil
	}

	if prop.HasIndex() {
		return indexedGet(prop, v)
	}

	return v, nil
}

func (w *mapWrapper) Set(prop PropertyTokenizer, value any) error {
	if prop.HasIndex() {
		v, ok := w.entry(prop.Name())
		if !ok {
			return indexedSet(prop, reflect.Value{}, value)
		}

		// Map elements are not addressable; maps and slices share their backing store.
		return indexedSet(prop, v, value)
	}

	key, err := mapKey(prop.Name(), w.object.Type().Key())
	if err != nil {
		return err
	}

	elem, err := coerce(value, w.object.Type().Elem())
	if err != nil {
		return err
	}

	if w.object.IsNil() {
		if !w.object.CanSet() {
			return unsupported("Set on a nil map", w.object.Type())
		}
		w.object.Set(reflect.MakeMap(w.object.Type()))
	}

	w.object.SetMapIndex(key, elem)

	return nil
}

func (w *mapWrapper) FindProperty(name string, _ bool) string {
	return name
}

func (w *mapWrapper) GetterNames() []string {
	names := make([]string, 0, w.object.Len())
	for _, key := range w.object.MapKeys() {
		names = append(names, fmt.Sprint(key.Interface()))
	}
	slices.Sort(names)

	return names
}

func (w *mapWrapper) SetterNames() []string {
	return w.GetterNames()
}

func (w *mapWrapper) GetterType(name string) (reflect.Type, error) {
	return w.propertyType(name, true)
}

func (w *mapWrapper) SetterType(name string) (reflect.Type, error) {
	return w.propertyType(name, false)
}

func (w *mapWrapper) propertyType(name string, getter bool) (reflect.Type, error) {
	prop, err := NewPropertyTokenizer(name)
	if err != nil {
		return nil, err
	}

	if prop.HasNext() {
		child, err := w.meta.metaObjectForProperty(prop)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return w.meta.staticPropertyType(w.object.Type(), prop, getter)
		}
		if getter {
			return child.GetterType(prop.Children())
		}

		return child.SetterType(prop.Children())
	}

	v, err := w.Get(prop)
	if err != nil {
		return nil, err
	}

	if v := indirectInterface(v); v.IsValid() && v.Type() != reflect.TypeOf(NoValue) {
		return v.Type(), nil
	}

	return w.meta.staticPropertyType(w.object.Type(), prop, getter)
}

func (w *mapWrapper) HasGetter(name string) bool {
	prop, err := NewPropertyTokenizer(name)
	if err != nil {
		return false
	}

	if _, ok := w.entry(prop.Name()); !ok {
		return false
	}

	if !prop.HasNext() {
		if !prop.HasIndex() {
			return true
		}
		_, err := w.Get(prop)
		return err == nil
	}

	child, err := w.meta.metaObjectForProperty(prop)
	if err != nil {
		return false
	}
	if child == nil {
		return true
	}

	return child.HasGetter(prop.Children())
}

func (w *mapWrapper) HasSetter(string) bool {
	return true
}

func (w *mapWrapper) InstantiatePropertyValue(_ string, prop PropertyTokenizer, factory ObjectFactory) (*MetaObject, error) {
	t := w.object.Type().Elem()
	if prop.HasIndex() {
		et, err := elementType(t, prop.IndexedName())
		if err != nil {
			return nil, err
		}
		t = et
	}

	v, err := instantiate(factory, prop.IndexedName(), t)
	if err != nil {
		return nil, err
	}

	if err := w.Set(prop.Head(), v); err != nil {
		return nil, err
	}

	stored, err := w.Get(prop.Head())
	if err != nil {
		return nil, err
	}

	return w.meta.newChild(prop.IndexedName(), stored)
}

func (w *mapWrapper) IsCollection() bool {
	return false
}

func (w *mapWrapper) Add(any) error {
	return unsupported("Add", w.object.Type())
}

func (w *mapWrapper) AddAll([]any) error {
	return unsupported("AddAll", w.object.Type())
}

// indirectInterface unwraps interface values so the dynamic type can be reported.
func indirectInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}

	return v
}
