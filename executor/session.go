package executor

import (
	"context"
	"errors"
	"fmt"
)

// Session runs mapped statements by id through one Executor.
type Session struct {
	configuration *Configuration
	executor      Executor
}

// Executor returns the wrapped executor of the session.
func (s *Session) Executor() Executor {
	return s.executor
}

// SelectList runs the SELECT statement id and returns all mapped rows.
func (s *Session) SelectList(ctx context.Context, id string, parameter any) ([]any, error) {
	ms, err := s.statement(id, CommandSelect)
	if err != nil {
		return nil, err
	}

	return s.executor.Query(ctx, ms, parameter)
}

// SelectOne runs the SELECT statement id and returns its only row, or nil without rows.
// More than one row fails with ErrTooManyResults.
func (s *Session) SelectOne(ctx context.Context, id string, parameter any) (any, error) {
	results, err := s.SelectList(ctx, id, parameter)
	if err != nil {
		return nil, err
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return nil, errors.Join(ErrTooManyResults, fmt.Errorf("statement %s returned %d rows", id, len(results)))
	}
}

// Insert runs the INSERT statement id and returns the number of affected rows.
func (s *Session) Insert(ctx context.Context, id string, parameter any) (int64, error) {
	return s.update(ctx, id, CommandInsert, parameter)
}

// Update runs the UPDATE statement id and returns the number of affected rows.
func (s *Session) Update(ctx context.Context, id string, parameter any) (int64, error) {
	return s.update(ctx, id, CommandUpdate, parameter)
}

// Delete runs the DELETE statement id and returns the number of affected rows.
func (s *Session) Delete(ctx context.Context, id string, parameter any) (int64, error) {
	return s.update(ctx, id, CommandDelete, parameter)
}

func (s *Session) update(ctx context.Context, id string, command CommandType, parameter any) (int64, error) {
	ms, err := s.statement(id, command)
	if err != nil {
		return 0, err
	}

	return s.executor.Update(ctx, ms, parameter)
}

func (s *Session) statement(id string, command CommandType) (*MappedStatement, error) {
	ms, err := s.configuration.MappedStatement(id)
	if err != nil {
		return nil, err
	}

	if ms.CommandType != command {
		return nil, errors.Join(ErrCommandTypeMismatch, fmt.Errorf("statement %s is %s, not %s", id, ms.CommandType, command))
	}

	return ms, nil
}

// SelectListAs runs SelectList and asserts every row to T.
func SelectListAs[T any](ctx context.Context, s *Session, id string, parameter any) ([]T, error) {
	results, err := s.SelectList(ctx, id, parameter)
	if err != nil {
		return nil, err
	}

	typed := make([]T, len(results))
	for i, r := range results {
		v, ok := r.(T)
		if !ok {
			return nil, errors.Join(ErrMappingResultFailed, fmt.Errorf("statement %s: row %d is %T", id, i, r))
		}
		typed[i] = v
	}

	return typed, nil
}

// SelectOneAs runs SelectOne and asserts the row to T. Without rows it returns the zero T and false.
func SelectOneAs[T any](ctx context.Context, s *Session, id string, parameter any) (T, bool, error) {
	var zero T

	result, err := s.SelectOne(ctx, id, parameter)
	if err != nil || result == nil {
		return zero, false, err
	}

	v, ok := result.(T)
	if !ok {
		return zero, false, errors.Join(ErrMappingResultFailed, fmt.Errorf("statement %s: row is %T", id, result))
	}

	return v, true, nil
}
