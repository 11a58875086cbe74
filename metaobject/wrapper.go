package metaobject

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// ObjectWrapper gives uniform property access over one wrapped value.
// Get returns the zero reflect.Value for nil properties.
type ObjectWrapper interface {
	Get(prop PropertyTokenizer) (reflect.Value, error)
	Set(prop PropertyTokenizer, value any) error
	FindProperty(name string, useCamelCaseMapping bool) string
	GetterNames() []string
	SetterNames() []string
	GetterType(name string) (reflect.Type, error)
	SetterType(name string) (reflect.Type, error)
	HasGetter(name string) bool
	HasSetter(name string) bool
	InstantiatePropertyValue(name string, prop PropertyTokenizer, factory ObjectFactory) (*MetaObject, error)
	IsCollection() bool
	Add(element any) error
	AddAll(elements []any) error
}

// ObjectWrapperFactory supplies custom wrappers for values the built-in wrappers should not handle.
type ObjectWrapperFactory interface {
	HasWrapperFor(v reflect.Value) bool
	WrapperFor(meta *MetaObject, v reflect.Value) (ObjectWrapper, error)
}

// newWrapper selects the wrapper for the dereferenced value v by its kind.
func newWrapper(meta *MetaObject, v reflect.Value) (ObjectWrapper, error) {
	if f := meta.settings.wrapperFactory; f != nil && f.HasWrapperFor(v) {
		return f.WrapperFor(meta, v)
	}

	switch v.Kind() {
	case reflect.Map:
		return newMapWrapper(meta, v), nil
	case reflect.Slice, reflect.Array:
		return newCollectionWrapper(meta, v), nil
	default:
		return newBeanWrapper(meta, v)
	}
}

// indexedGet applies the index of prop to the collection or map value coll.
func indexedGet(prop PropertyTokenizer, coll reflect.Value) (reflect.Value, error) {
	coll = indirect(coll)
	if !coll.IsValid() {
		return reflect.Value{}, nil
	}

	switch coll.Kind() {
	case reflect.Map:
		key, err := mapKey(prop.Index(), coll.Type().Key())
		if err != nil {
			return reflect.ValueOf(NoValue), nil
		}

		v := coll.MapIndex(key)
		if !v.IsValid() {
			return reflect.ValueOf(NoValue), nil
		}

		return v, nil

	case reflect.Slice, reflect.Array:
		i, err := sliceIndex(prop, coll.Len())
		if err != nil {
			return reflect.Value{}, err
		}

		return exposed(coll.Index(i)), nil

	default:
		return reflect.Value{}, notIndexable(prop, coll.Type())
	}
}

// indexedSet assigns value at the index of prop in the collection or map value coll.
func indexedSet(prop PropertyTokenizer, coll reflect.Value, value any) error {
	for coll.IsValid() && (coll.Kind() == reflect.Pointer || coll.Kind() == reflect.Interface) && !coll.IsNil() {
		coll = coll.Elem()
	}

	if !coll.IsValid() {
		return errors.Join(ErrNotAssignable, fmt.Errorf("%s: the collection is nil", prop.IndexedName()))
	}

	switch coll.Kind() {
	case reflect.Map:
		key, err := mapKey(prop.Index(), coll.Type().Key())
		if err != nil {
			return err
		}

		elem, err := coerce(value, coll.Type().Elem())
		if err != nil {
			return err
		}

		if coll.IsNil() {
			if !coll.CanSet() {
				return errors.Join(ErrNotAssignable, fmt.Errorf("%s: the map is nil", prop.IndexedName()))
			}
			coll.Set(reflect.MakeMap(coll.Type()))
		}

		coll.SetMapIndex(key, elem)

		return nil

	case reflect.Slice, reflect.Array:
		i, err := sliceIndex(prop, coll.Len())
		if err != nil {
			return err
		}

		target := exposed(coll.Index(i))
		if !target.CanSet() {
			return errors.Join(ErrNotAssignable, fmt.Errorf("%s: the element is not settable", prop.IndexedName()))
		}

		elem, err := coerce(value, target.Type())
		if err != nil {
			return err
		}

		target.Set(elem)

		return nil

	case reflect.Pointer, reflect.Interface:
		return errors.Join(ErrNotAssignable, fmt.Errorf("%s: the collection is nil", prop.IndexedName()))

	default:
		return notIndexable(prop, coll.Type())
	}
}

func sliceIndex(prop PropertyTokenizer, length int) (int, error) {
	i, err := strconv.Atoi(prop.Index())
	if err != nil {
		return 0, errors.Join(ErrMalformedPath, fmt.Errorf("%s: %q is not an integer index", prop.IndexedName(), prop.Index()))
	}

	if i < 0 || i >= length {
		return 0, errors.Join(ErrIndexOutOfRange, fmt.Errorf("%s: index %d, length %d", prop.IndexedName(), i, length))
	}

	return i, nil
}

// mapKey converts the raw index token into a key of type kt.
func mapKey(token string, kt reflect.Type) (reflect.Value, error) {
	k := reflect.New(kt).Elem()

	switch kt.Kind() {
	case reflect.String:
		k.SetString(token)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(token, 10, kt.Bits())
		if err != nil {
			return reflect.Value{}, badKey(token, kt, err)
		}
		k.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(token, 10, kt.Bits())
		if err != nil {
			return reflect.Value{}, badKey(token, kt, err)
		}
		k.SetUint(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(token)
		if err != nil {
			return reflect.Value{}, badKey(token, kt, err)
		}
		k.SetBool(b)

	case reflect.Interface:
		if !reflect.TypeFor[string]().Implements(kt) {
			return reflect.Value{}, badKey(token, kt, nil)
		}
		k.Set(reflect.ValueOf(token))

	default:
		return reflect.Value{}, badKey(token, kt, nil)
	}

	return k, nil
}

func badKey(token string, kt reflect.Type, cause error) error {
	err := fmt.Errorf("%q cannot be used as a key of type %s", token, kt)
	if cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}

	return errors.Join(ErrNotAssignable, err)
}

func notIndexable(prop PropertyTokenizer, t reflect.Type) error {
	return errors.Join(
		ErrUnsupportedOperation,
		fmt.Errorf("%s: %s is not a map, slice or array", prop.IndexedName(), t),
	)
}

func unsupported(operation string, t reflect.Type) error {
	return errors.Join(ErrUnsupportedOperation, fmt.Errorf("%s is not supported on %s", operation, t))
}

var (
	_ ObjectWrapper = (*beanWrapper)(nil)
	_ ObjectWrapper = (*collectionWrapper)(nil)
	_ ObjectWrapper = (*mapWrapper)(nil)
)
