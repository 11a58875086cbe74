package executor

import (
	"context"
	"slices"
	"time"
)

// Statement is a prepared execution: the SQL text fixed at Prepare time, the bound arguments and the timeout.
type Statement struct {
	conn    Connection
	sql     string
	args    []any
	timeout time.Duration
}

// SQL returns the SQL text the statement executes.
func (s *Statement) SQL() string {
	return s.sql
}

// Args returns a copy of the bound arguments.
func (s *Statement) Args() []any {
	return slices.Clone(s.args)
}

// Bind replaces the bound arguments.
func (s *Statement) Bind(args ...any) {
	s.args = slices.Clone(args)
}

// Timeout returns the statement timeout, zero for none.
func (s *Statement) Timeout() time.Duration {
	return s.timeout
}

func (s *Statement) query(ctx context.Context) (Rows, context.CancelFunc, error) {
	ctx, cancel := s.withTimeout(ctx)

	rows, err := s.conn.Query(ctx, s.sql, s.args...)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	return rows, cancel, nil
}

func (s *Statement) exec(ctx context.Context) (Result, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.conn.Exec(ctx, s.sql, s.args...)
}

func (s *Statement) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}

	return context.WithCancel(ctx)
}
