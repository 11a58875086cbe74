package helper

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/AntonStoeckl/dynamic-plugins-go/executor"
)

// FakeConnection is an in-memory executor.Connection that records every statement it receives
// and answers with scripted rows, rows-affected counts or errors.
type FakeConnection struct {
	mu           sync.Mutex
	calls        []FakeCall
	columns      []string
	rows         [][]any
	rowsAffected int64
	queryErr     error
	execErr      error
}

// FakeCall is one recorded Query or Exec.
type FakeCall struct {
	Kind string
	SQL  string
	Args []any
}

// NewFakeConnection creates a FakeConnection that returns no rows and affects no rows.
func NewFakeConnection() *FakeConnection {
	return &FakeConnection{}
}

// WithRows scripts the result of every query.
func (c *FakeConnection) WithRows(columns []string, rows ...[]any) *FakeConnection {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.columns = slices.Clone(columns)
	c.rows = rows

	return c
}

// WithRowsAffected scripts the result of every exec.
func (c *FakeConnection) WithRowsAffected(n int64) *FakeConnection {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rowsAffected = n

	return c
}

// WithQueryError makes every query fail with err.
func (c *FakeConnection) WithQueryError(err error) *FakeConnection {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queryErr = err

	return c
}

// WithExecError makes every exec fail with err.
func (c *FakeConnection) WithExecError(err error) *FakeConnection {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.execErr = err

	return c
}

// Query implements executor.Connection.
func (c *FakeConnection) Query(ctx context.Context, query string, args ...any) (executor.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, FakeCall{Kind: "query", SQL: query, Args: slices.Clone(args)})
	if c.queryErr != nil {
		return nil, c.queryErr
	}

	return &FakeRows{columns: c.columns, data: c.rows, pos: -1}, nil
}

// Exec implements executor.Connection.
func (c *FakeConnection) Exec(ctx context.Context, query string, args ...any) (executor.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, FakeCall{Kind: "exec", SQL: query, Args: slices.Clone(args)})
	if c.execErr != nil {
		return nil, c.execErr
	}

	return fakeResult(c.rowsAffected), nil
}

// Calls returns the recorded statements in order.
func (c *FakeConnection) Calls() []FakeCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.calls)
}

// LastCall returns the most recent statement, or the zero FakeCall.
func (c *FakeConnection) LastCall() FakeCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.calls) == 0 {
		return FakeCall{}
	}

	return c.calls[len(c.calls)-1]
}

// FakeRows iterates scripted rows.
type FakeRows struct {
	columns []string
	data    [][]any
	pos     int
	closed  bool
}

func (r *FakeRows) Columns() ([]string, error) {
	return slices.Clone(r.columns), nil
}

func (r *FakeRows) Next() bool {
	if r.closed || r.pos+1 >= len(r.data) {
		return false
	}
	r.pos++

	return true
}

// Scan assigns the current row to dest, which must hold one pointer per column.
func (r *FakeRows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.data) {
		return errors.New("scan called without a current row")
	}

	row := r.data[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d scan targets, got %d", len(row), len(dest))
	}

	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("scan target %d is not a pointer", i)
		}

		if row[i] == nil {
			target.Elem().SetZero()
			continue
		}

		v := reflect.ValueOf(row[i])
		if !v.Type().AssignableTo(target.Elem().Type()) {
			return fmt.Errorf("cannot scan %T into %s", row[i], target.Elem().Type())
		}
		target.Elem().Set(v)
	}

	return nil
}

func (r *FakeRows) Err() error {
	return nil
}

func (r *FakeRows) Close() error {
	r.closed = true
	return nil
}

type fakeResult int64

func (r fakeResult) RowsAffected() (int64, error) {
	return int64(r), nil
}

var _ executor.Connection = (*FakeConnection)(nil)
