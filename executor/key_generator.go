package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/AntonStoeckl/dynamic-plugins-go/metaobject"
)

// updateReturningKeys runs a write whose rows are its generated keys. Row i fills element i of a
// collection parameter object; any other parameter object takes at most one row.
func (h *baseStatementHandler) updateReturningKeys(ctx context.Context, stmt *Statement) (int64, error) {
	rows, cancel, err := stmt.query(ctx)
	if err != nil {
		return 0, errors.Join(ErrExecutingFailed, fmt.Errorf("statement %s: %w", h.mappedStatement.ID, err))
	}
	defer cancel()

	columns, data, err := readKeyRows(rows)
	closeErr := rows.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, errors.Join(ErrExecutingFailed, fmt.Errorf("statement %s: %w", h.mappedStatement.ID, err))
	}

	if err = h.assignKeys(columns, data); err != nil {
		return 0, err
	}

	return int64(len(data)), nil
}

func readKeyRows(rows Rows) ([]string, [][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}

		if err = rows.Scan(targets...); err != nil {
			return nil, nil, err
		}

		data = append(data, values)
	}

	return columns, data, rows.Err()
}

func (h *baseStatementHandler) assignKeys(columns []string, data [][]any) error {
	if len(data) == 0 {
		return nil
	}

	meta, err := h.parameterMeta()
	if err != nil {
		return err
	}

	if !meta.IsCollection() && len(data) > 1 {
		return h.keyError(fmt.Errorf("%d rows of keys for one parameter object", len(data)))
	}

	for i, values := range data {
		prefix := ""
		if meta.IsCollection() {
			prefix = strconv.Itoa(i) + "."
		}

		for j, property := range h.mappedStatement.KeyProperties {
			value, err := h.keyColumnValue(j, columns, values)
			if err != nil {
				return err
			}

			if err = h.setKey(meta, prefix+property, value); err != nil {
				return err
			}
		}
	}

	return nil
}

// keyColumnValue returns the value of the key column for key property j.
func (h *baseStatementHandler) keyColumnValue(j int, columns []string, values []any) (any, error) {
	if len(h.mappedStatement.KeyColumns) == 0 {
		if j >= len(values) {
			return nil, h.keyError(fmt.Errorf("%d columns returned for %d key properties", len(values), len(h.mappedStatement.KeyProperties)))
		}

		return normalize(values[j]), nil
	}

	name := h.mappedStatement.KeyColumns[j]
	for i, column := range columns {
		if strings.EqualFold(column, name) {
			return normalize(values[i]), nil
		}
	}

	return nil, h.keyError(fmt.Errorf("key column %q is not among the returned columns %v", name, columns))
}

// selectKeys runs the key statement with the parameter object of the write and assigns its only row.
func (h *baseStatementHandler) selectKeys(ctx context.Context, conn Connection) error {
	ms := h.mappedStatement

	keyStatement, err := h.configuration.MappedStatement(ms.KeyStatementID)
	if err != nil {
		return h.keyError(err)
	}

	if keyStatement.CommandType != CommandSelect {
		return h.keyError(errors.Join(
			ErrCommandTypeMismatch,
			fmt.Errorf("key statement %s is %s, not %s", keyStatement.ID, keyStatement.CommandType, CommandSelect),
		))
	}

	handler, err := h.configuration.NewStatementHandler(keyStatement, h.parameterObject, nil)
	if err != nil {
		return h.keyError(err)
	}

	stmt, err := handler.Prepare(ctx, conn)
	if err != nil {
		return h.keyError(err)
	}

	if err = handler.Parameterize(stmt); err != nil {
		return h.keyError(err)
	}

	results, err := handler.Query(ctx, stmt)
	if err != nil {
		return h.keyError(err)
	}

	if len(results) != 1 {
		return h.keyError(fmt.Errorf("key statement %s returned %d rows, want 1", keyStatement.ID, len(results)))
	}

	meta, err := h.parameterMeta()
	if err != nil {
		return err
	}

	return h.assignKeyRow(meta, results[0])
}

// assignKeyRow copies the keys of a mapped key statement row. A scalar row is the value of the only key property.
func (h *baseStatementHandler) assignKeyRow(meta *metaobject.MetaObject, row any) error {
	properties := h.mappedStatement.KeyProperties

	if row == nil || isScalar(reflect.TypeOf(row)) {
		if len(properties) != 1 {
			return h.keyError(fmt.Errorf("a single key value for %d key properties", len(properties)))
		}

		return h.setKey(meta, properties[0], row)
	}

	rowMeta, err := metaobject.ForObject(row, h.configuration.metaOptions()...)
	if err != nil {
		return h.keyError(err)
	}

	for j, property := range properties {
		source := property
		if len(h.mappedStatement.KeyColumns) > 0 {
			source = h.mappedStatement.KeyColumns[j]
		}

		value, err := rowMeta.GetValue(source)
		if err != nil {
			return h.keyError(err)
		}

		if value == metaobject.NoValue {
			return h.keyError(fmt.Errorf("the key row has no value for %q", source))
		}

		if err = h.setKey(meta, property, value); err != nil {
			return err
		}
	}

	return nil
}

func (h *baseStatementHandler) setKey(meta *metaobject.MetaObject, path string, value any) error {
	if value != nil {
		if t, err := meta.SetterType(path); err == nil {
			converted, convErr := convertValue(value, t)
			if convErr != nil {
				return h.keyError(fmt.Errorf("%s: %w", path, convErr))
			}
			value = converted
		}
	}

	if err := meta.SetValue(path, value); err != nil {
		return h.keyError(fmt.Errorf("%s: %w", path, err))
	}

	return nil
}

// parameterMeta wraps the parameter object for key assignment. Structs and arrays passed
// by value would only receive the keys in a copy, so they are rejected.
func (h *baseStatementHandler) parameterMeta() (*metaobject.MetaObject, error) {
	p := h.parameterObject
	if p == nil {
		return nil, h.keyError(errors.New("the parameter object is nil"))
	}

	switch reflect.TypeOf(p).Kind() {
	case reflect.Struct, reflect.Array:
		return nil, h.keyError(fmt.Errorf("%T is passed by value, pass a pointer", p))
	}

	meta, err := metaobject.ForObject(p, h.configuration.metaOptions()...)
	if err != nil {
		return nil, h.keyError(err)
	}

	return meta, nil
}

func (h *baseStatementHandler) keyError(err error) error {
	return errors.Join(ErrKeyGenerationFailed, fmt.Errorf("statement %s: %w", h.mappedStatement.ID, err))
}
