package executor

import (
	"context"
	"errors"
	"time"
)

// Executor runs mapped statements. It is interceptable: Configuration wraps every
// executor it creates with the interceptors registered for Executor.
type Executor interface {
	Update(ctx context.Context, ms *MappedStatement, parameter any) (int64, error)
	Query(ctx context.Context, ms *MappedStatement, parameter any) ([]any, error)
}

// SimpleExecutor creates a fresh statement handler for every call.
type SimpleExecutor struct {
	configuration *Configuration
	conn          Connection
}

// Query runs a reading statement and returns the mapped rows.
func (e *SimpleExecutor) Query(ctx context.Context, ms *MappedStatement, parameter any) ([]any, error) {
	handler, stmt, err := e.prepare(ctx, ms, parameter)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	results, err := handler.Query(ctx, stmt)
	if err != nil {
		e.configuration.logError(ctx, logMsgQueryFailed, err, logAttrStatementID, ms.ID, logAttrQuery, sqlSummary(stmt.SQL()))
		return nil, err
	}

	duration := time.Since(start)
	e.configuration.logQueryWithDuration(ctx, stmt.SQL(), ms.ID, duration)
	e.configuration.logOperation(
		ctx,
		logMsgQueryCompleted,
		logAttrStatementID, ms.ID,
		logAttrResultCount, len(results),
		logAttrDurationMS, toMilliseconds(duration),
	)

	return results, nil
}

// Update runs a writing statement and returns the number of affected rows.
func (e *SimpleExecutor) Update(ctx context.Context, ms *MappedStatement, parameter any) (int64, error) {
	handler, stmt, err := e.prepare(ctx, ms, parameter)
	if err != nil {
		return 0, err
	}

	start := time.Now()

	rowsAffected, err := handler.Update(ctx, stmt)
	if err != nil {
		e.configuration.logError(ctx, logMsgUpdateFailed, err, logAttrStatementID, ms.ID, logAttrQuery, sqlSummary(stmt.SQL()))
		return 0, err
	}

	duration := time.Since(start)
	e.configuration.logQueryWithDuration(ctx, stmt.SQL(), ms.ID, duration)
	e.configuration.logOperation(
		ctx,
		logMsgUpdateCompleted,
		logAttrStatementID, ms.ID,
		logAttrRowsAffected, rowsAffected,
		logAttrDurationMS, toMilliseconds(duration),
	)

	return rowsAffected, nil
}

// prepare creates the wrapped statement handler, prepares the statement on the connection
// and binds the parameters.
func (e *SimpleExecutor) prepare(
	ctx context.Context,
	ms *MappedStatement,
	parameter any,
) (StatementHandler, *Statement, error) {

	if ms == nil {
		return nil, nil, ErrNilMappedStatement
	}

	handler, err := e.configuration.NewStatementHandler(ms, parameter, nil)
	if err != nil {
		e.configuration.logError(ctx, logMsgPrepareFailed, err, logAttrStatementID, ms.ID)
		return nil, nil, err
	}

	stmt, err := handler.Prepare(ctx, e.conn)
	if err != nil {
		if !errors.Is(err, ErrPreparingStatementFailed) {
			err = errors.Join(ErrPreparingStatementFailed, err)
		}
		e.configuration.logError(ctx, logMsgPrepareFailed, err, logAttrStatementID, ms.ID)
		return nil, nil, err
	}

	if err = handler.Parameterize(stmt); err != nil {
		e.configuration.logError(ctx, logMsgParameterFailed, err, logAttrStatementID, ms.ID)
		return nil, nil, err
	}

	return handler, stmt, nil
}

var _ Executor = (*SimpleExecutor)(nil)
