package executor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StatementHandler prepares, parameterizes and runs one statement execution.
// It is interceptable: Configuration wraps every handler it creates with the registered interceptors.
type StatementHandler interface {
	Prepare(ctx context.Context, conn Connection) (*Statement, error)
	Parameterize(stmt *Statement) error
	Query(ctx context.Context, stmt *Statement) ([]any, error)
	Update(ctx context.Context, stmt *Statement) (int64, error)
	BoundSQL() *BoundSQL
}

// RoutingStatementHandler selects the simple or the prepared handler by the statement type
// and delegates every call to it.
type RoutingStatementHandler struct {
	delegate StatementHandler
}

// NewRoutingStatementHandler creates the handler for one execution of ms with parameterObject.
// A nil boundSQL is obtained from the statement's SQL source.
func NewRoutingStatementHandler(
	configuration *Configuration,
	ms *MappedStatement,
	parameterObject any,
	boundSQL *BoundSQL,
) (*RoutingStatementHandler, error) {

	base, err := newBaseStatementHandler(configuration, ms, parameterObject, boundSQL)
	if err != nil {
		return nil, err
	}

	var delegate StatementHandler
	switch ms.StatementType {
	case StatementSimple:
		delegate = &SimpleStatementHandler{baseStatementHandler: base}
	case StatementPrepared, "":
		delegate = &PreparedStatementHandler{baseStatementHandler: base}
	default:
		return nil, errors.Join(ErrUnknownStatementType, fmt.Errorf("statement %s: %s", ms.ID, ms.StatementType))
	}

	return &RoutingStatementHandler{delegate: delegate}, nil
}

func (h *RoutingStatementHandler) Prepare(ctx context.Context, conn Connection) (*Statement, error) {
	return h.delegate.Prepare(ctx, conn)
}

func (h *RoutingStatementHandler) Parameterize(stmt *Statement) error {
	return h.delegate.Parameterize(stmt)
}

func (h *RoutingStatementHandler) Query(ctx context.Context, stmt *Statement) ([]any, error) {
	return h.delegate.Query(ctx, stmt)
}

func (h *RoutingStatementHandler) Update(ctx context.Context, stmt *Statement) (int64, error) {
	return h.delegate.Update(ctx, stmt)
}

func (h *RoutingStatementHandler) BoundSQL() *BoundSQL {
	return h.delegate.BoundSQL()
}

// baseStatementHandler holds what both statement types share.
type baseStatementHandler struct {
	configuration    *Configuration
	mappedStatement  *MappedStatement
	parameterObject  any
	boundSQL         *BoundSQL
	parameterHandler ParameterHandler
	resultSetHandler ResultSetHandler
}

func newBaseStatementHandler(
	configuration *Configuration,
	ms *MappedStatement,
	parameterObject any,
	boundSQL *BoundSQL,
) (baseStatementHandler, error) {

	if err := ms.Validate(); err != nil {
		return baseStatementHandler{}, err
	}

	if boundSQL == nil {
		var err error
		if boundSQL, err = ms.SQLSource.BoundSQL(parameterObject); err != nil {
			return baseStatementHandler{}, errors.Join(ErrInvalidStatement, fmt.Errorf("statement %s: %w", ms.ID, err))
		}
	}

	parameterHandler, err := configuration.NewParameterHandler(ms, parameterObject, boundSQL)
	if err != nil {
		return baseStatementHandler{}, err
	}

	resultSetHandler, err := configuration.NewResultSetHandler(ms, boundSQL)
	if err != nil {
		return baseStatementHandler{}, err
	}

	return baseStatementHandler{
		configuration:    configuration,
		mappedStatement:  ms,
		parameterObject:  parameterObject,
		boundSQL:         boundSQL,
		parameterHandler: parameterHandler,
		resultSetHandler: resultSetHandler,
	}, nil
}

func (h *baseStatementHandler) BoundSQL() *BoundSQL {
	return h.boundSQL
}

// Prepare fixes the SQL text as it is now, after interceptors had their chance to rewrite it.
func (h *baseStatementHandler) Prepare(ctx context.Context, conn Connection) (*Statement, error) {
	if conn == nil {
		return nil, errors.Join(ErrPreparingStatementFailed, ErrNilDatabaseConnection)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Join(ErrPreparingStatementFailed, err)
	}

	return &Statement{
		conn:    conn,
		sql:     h.boundSQL.sql,
		timeout: h.timeout(),
	}, nil
}

func (h *baseStatementHandler) Query(ctx context.Context, stmt *Statement) ([]any, error) {
	rows, cancel, err := stmt.query(ctx)
	if err != nil {
		return nil, errors.Join(ErrQueryingFailed, fmt.Errorf("statement %s: %w", h.mappedStatement.ID, err))
	}
	defer cancel()

	results, err := h.resultSetHandler.HandleResultSets(rows)
	closeErr := rows.Close()
	if err != nil {
		return nil, err
	}

	if closeErr != nil {
		return nil, errors.Join(ErrQueryingFailed, fmt.Errorf("statement %s: %w", h.mappedStatement.ID, closeErr))
	}

	return results, nil
}

// Update runs a write. Statements with key properties write the generated keys back into
// the parameter object, either from the rows the write returns or from their key statement.
func (h *baseStatementHandler) Update(ctx context.Context, stmt *Statement) (int64, error) {
	ms := h.mappedStatement

	if ms.generatesKeys() && ms.KeyStatementID == "" {
		return h.updateReturningKeys(ctx, stmt)
	}

	rowsAffected, err := h.exec(ctx, stmt)
	if err != nil {
		return 0, err
	}

	if ms.KeyStatementID != "" {
		if err = h.selectKeys(ctx, stmt.conn); err != nil {
			return 0, err
		}
	}

	return rowsAffected, nil
}

func (h *baseStatementHandler) exec(ctx context.Context, stmt *Statement) (int64, error) {
	result, err := stmt.exec(ctx)
	if err != nil {
		return 0, errors.Join(ErrExecutingFailed, fmt.Errorf("statement %s: %w", h.mappedStatement.ID, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(ErrExecutingFailed, fmt.Errorf("statement %s: %w", h.mappedStatement.ID, err))
	}

	return rowsAffected, nil
}

func (h *baseStatementHandler) timeout() time.Duration {
	if h.mappedStatement.Timeout > 0 {
		return h.mappedStatement.Timeout
	}

	return h.configuration.defaultStatementTimeout
}

// PreparedStatementHandler binds the #{} parameters as driver arguments.
type PreparedStatementHandler struct {
	baseStatementHandler
}

func (h *PreparedStatementHandler) Parameterize(stmt *Statement) error {
	return h.parameterHandler.SetParameters(stmt)
}

// SimpleStatementHandler sends the SQL text without arguments.
type SimpleStatementHandler struct {
	baseStatementHandler
}

func (h *SimpleStatementHandler) Parameterize(_ *Statement) error {
	if n := len(h.boundSQL.parameterMappings); n > 0 {
		return errors.Join(
			ErrParameterBindingFailed,
			fmt.Errorf("statement %s has %d parameters but its statement type is %s", h.mappedStatement.ID, n, StatementSimple),
		)
	}

	return nil
}

var (
	_ StatementHandler = (*RoutingStatementHandler)(nil)
	_ StatementHandler = (*PreparedStatementHandler)(nil)
	_ StatementHandler = (*SimpleStatementHandler)(nil)
)
