package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"
)

var contextType = reflect.TypeFor[context.Context]()

// MapperProxy runs the methods of a mapper interface as the mapped statements they name.
// Mapper adapters forward every method to Invoke, in the same way the interceptor
// capability adapters forward to their proxy layer:
//
//	type bookMapper struct{ *executor.MapperProxy }
//
//	func (m bookMapper) ByAuthor(ctx context.Context, author string) ([]*Book, error) {
//		out, err := m.Invoke(ctx, "ByAuthor", author)
//		return interceptor.Result[[]*Book](out, 0), err
//	}
type MapperProxy struct {
	session *Session
	binding *mapperBinding
}

type mapperBinding struct {
	mapperType reflect.Type
	namespace  string
	adapter    func(*MapperProxy) any

	mu      sync.Mutex
	methods map[string]*mapperMethod
}

type mapperMethod struct {
	statement *MappedStatement
	numArgs   int
	// result is the type of the non-error result, nil for methods that only return an error.
	result reflect.Type
}

// RegisterMapper binds the interface T to the statements of namespace. Method M of T runs the
// statement "namespace.M", or "namespace.m" when that does not exist. Every method takes a
// context.Context first and returns either an error or a result and an error.
//
// Statements are looked up on the first call of a method, so they may be added after the mapper.
func RegisterMapper[T any](c *Configuration, namespace string, adapter func(*MapperProxy) T) error {
	t := reflect.TypeFor[T]()

	if t.Kind() != reflect.Interface {
		return errors.Join(ErrInvalidMapper, fmt.Errorf("%s is not an interface", t))
	}

	if namespace == "" {
		return errors.Join(ErrInvalidMapper, fmt.Errorf("%s: empty namespace", t))
	}

	if adapter == nil {
		return errors.Join(ErrInvalidMapper, fmt.Errorf("%s: nil adapter supplied", t))
	}

	for i := 0; i < t.NumMethod(); i++ {
		if err := validateMapperMethod(t, t.Method(i)); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.mappers[t]; ok {
		return errors.Join(ErrInvalidMapper, fmt.Errorf("%s is already registered", t))
	}

	c.mappers[t] = &mapperBinding{
		mapperType: t,
		namespace:  namespace,
		adapter:    func(p *MapperProxy) any { return adapter(p) },
		methods:    make(map[string]*mapperMethod),
	}
	c.logDebug(logMsgMapperAdded, logAttrMapper, t.String(), logAttrNamespace, namespace)

	return nil
}

func validateMapperMethod(t reflect.Type, m reflect.Method) error {
	ft := m.Type

	switch {
	case ft.NumIn() == 0 || ft.In(0) != contextType:
		return errors.Join(ErrInvalidMapper, fmt.Errorf("%s.%s does not take a context.Context first", t, m.Name))

	case ft.IsVariadic():
		return errors.Join(ErrInvalidMapper, fmt.Errorf("%s.%s is variadic", t, m.Name))

	case ft.NumOut() == 0 || ft.NumOut() > 2 || ft.Out(ft.NumOut()-1) != reflect.TypeFor[error]():
		return errors.Join(ErrInvalidMapper, fmt.Errorf("%s.%s must return an error or a result and an error", t, m.Name))
	}

	return nil
}

// GetMapper returns the mapper T registered on the configuration of s, running its methods in s.
func GetMapper[T any](s *Session) (T, error) {
	var zero T

	t := reflect.TypeFor[T]()

	s.configuration.mu.RLock()
	binding, ok := s.configuration.mappers[t]
	s.configuration.mu.RUnlock()

	if !ok {
		return zero, errors.Join(ErrMapperNotFound, errors.New(t.String()))
	}

	mapper, ok := binding.adapter(&MapperProxy{session: s, binding: binding}).(T)
	if !ok {
		return zero, errors.Join(ErrInvalidMapper, fmt.Errorf("the adapter of %s returned nil", t))
	}

	return mapper, nil
}

// Invoke runs the statement bound to method with args, the method arguments after the context.
// One argument is the parameter object; several are passed as a map with the keys "param1", "param2" and so on.
// The result slice holds the converted result, or is empty for methods that only return an error.
func (p *MapperProxy) Invoke(ctx context.Context, method string, args ...any) ([]any, error) {
	mm, err := p.binding.resolve(p.session.configuration, method)
	if err != nil {
		return nil, err
	}

	if len(args) != mm.numArgs {
		return nil, errors.Join(
			ErrMapperMethod,
			fmt.Errorf("%s.%s takes %d arguments after the context, got %d", p.binding.mapperType, method, mm.numArgs, len(args)),
		)
	}

	parameter := mapperParameter(args)

	if mm.statement.CommandType == CommandSelect {
		result, err := p.selectResult(ctx, mm, parameter)
		if err != nil {
			return nil, err
		}

		return []any{result}, nil
	}

	rowsAffected, err := p.session.update(ctx, mm.statement.ID, mm.statement.CommandType, parameter)
	if err != nil {
		return nil, err
	}

	if mm.result == nil {
		return nil, nil
	}

	if mm.result.Kind() == reflect.Bool {
		return []any{rowsAffected > 0}, nil
	}

	return []any{reflect.ValueOf(rowsAffected).Convert(mm.result).Interface()}, nil
}

func (p *MapperProxy) selectResult(ctx context.Context, mm *mapperMethod, parameter any) (any, error) {
	if mm.result.Kind() == reflect.Slice && mm.result != bytesType {
		rows, err := p.session.SelectList(ctx, mm.statement.ID, parameter)
		if err != nil {
			return nil, err
		}

		list := reflect.MakeSlice(mm.result, len(rows), len(rows))
		for i, row := range rows {
			v, err := mapperValue(row, mm.result.Elem())
			if err != nil {
				return nil, errors.Join(ErrMappingResultFailed, fmt.Errorf("statement %s: row %d: %w", mm.statement.ID, i, err))
			}
			list.Index(i).Set(v)
		}

		return list.Interface(), nil
	}

	row, err := p.session.SelectOne(ctx, mm.statement.ID, parameter)
	if err != nil {
		return nil, err
	}

	v, err := mapperValue(row, mm.result)
	if err != nil {
		return nil, errors.Join(ErrMappingResultFailed, fmt.Errorf("statement %s: %w", mm.statement.ID, err))
	}

	return v.Interface(), nil
}

func mapperValue(row any, t reflect.Type) (reflect.Value, error) {
	v, err := convertValue(row, t)
	if err != nil {
		return reflect.Value{}, err
	}

	if v == nil {
		return reflect.Zero(t), nil
	}

	return reflect.ValueOf(v), nil
}

func mapperParameter(args []any) any {
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	}

	params := make(map[string]any, len(args))
	for i, arg := range args {
		params[fmt.Sprintf("param%d", i+1)] = arg
	}

	return params
}

// resolve returns the statement binding of method. Failed lookups are not cached.
func (b *mapperBinding) resolve(c *Configuration, method string) (*mapperMethod, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if mm, ok := b.methods[method]; ok {
		return mm, nil
	}

	m, ok := b.mapperType.MethodByName(method)
	if !ok {
		return nil, errors.Join(ErrMapperMethod, fmt.Errorf("%s has no method %q", b.mapperType, method))
	}

	ms, err := c.MappedStatement(b.namespace + "." + method)
	if errors.Is(err, ErrStatementNotFound) {
		ms, err = c.MappedStatement(b.namespace + "." + lowerFirst(method))
	}
	if err != nil {
		return nil, errors.Join(ErrMapperMethod, fmt.Errorf("%s.%s: %w", b.mapperType, method, err))
	}

	mm := &mapperMethod{statement: ms, numArgs: m.Type.NumIn() - 1}
	if m.Type.NumOut() == 2 {
		mm.result = m.Type.Out(0)
	}

	if err = mm.checkResult(); err != nil {
		return nil, errors.Join(ErrMapperMethod, fmt.Errorf("%s.%s: %w", b.mapperType, method, err))
	}

	b.methods[method] = mm

	return mm, nil
}

func (mm *mapperMethod) checkResult() error {
	if mm.statement.CommandType == CommandSelect {
		if mm.result == nil {
			return fmt.Errorf("statement %s is a SELECT but the method returns no result", mm.statement.ID)
		}

		return nil
	}

	if mm.result == nil || mm.result.Kind() == reflect.Bool || isIntegerKind(mm.result.Kind()) {
		return nil
	}

	return fmt.Errorf("statement %s is %s and returns a row count, not %s", mm.statement.ID, mm.statement.CommandType, mm.result)
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)

	return string(unicode.ToLower(r)) + s[size:]
}
