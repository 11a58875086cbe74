package executor

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"
)

// MappedStatement is one named, configured SQL statement.
type MappedStatement struct {
	ID            string
	CommandType   CommandType
	StatementType StatementType
	SQLSource     SQLSource
	// ResultType is the type each row maps to. Nil maps rows to map[string]any.
	ResultType reflect.Type
	// Timeout overrides the configured default statement timeout when positive.
	Timeout time.Duration

	// KeyProperties are the parameter object paths that receive generated keys after an
	// insert or update. The statement returns the keys as rows, as with "RETURNING id",
	// unless KeyStatementID is set.
	KeyProperties []string
	// KeyColumns name the key columns by position of KeyProperties. Empty reads the
	// columns in the order they are returned.
	KeyColumns []string
	// KeyStatementID names a SELECT that is run after the write with the same parameter
	// object and yields the generated keys.
	KeyStatementID string
}

// Validate checks the fields every statement needs.
func (ms *MappedStatement) Validate() error {
	if ms == nil {
		return ErrNilMappedStatement
	}

	if ms.ID == "" {
		return errors.Join(ErrInvalidStatement, errors.New("empty statement id"))
	}

	if ms.SQLSource == nil {
		return errors.Join(ErrInvalidStatement, errors.New("statement "+ms.ID+" has no sql source"))
	}

	switch ms.CommandType {
	case CommandSelect, CommandInsert, CommandUpdate, CommandDelete:
	default:
		return errors.Join(ErrUnknownCommandType, errors.New("statement "+ms.ID+": "+string(ms.CommandType)))
	}

	switch ms.StatementType {
	case "", StatementPrepared, StatementSimple:
	default:
		return errors.Join(ErrUnknownStatementType, errors.New("statement "+ms.ID+": "+string(ms.StatementType)))
	}

	return ms.validateKeys()
}

func (ms *MappedStatement) validateKeys() error {
	switch {
	case len(ms.KeyProperties) == 0 && (len(ms.KeyColumns) > 0 || ms.KeyStatementID != ""):
		return errors.Join(ErrInvalidStatement, fmt.Errorf("statement %s names key columns or a key statement without key properties", ms.ID))

	case len(ms.KeyProperties) > 0 && ms.CommandType == CommandSelect:
		return errors.Join(ErrInvalidStatement, fmt.Errorf("statement %s: a SELECT cannot generate keys", ms.ID))

	case len(ms.KeyColumns) > 0 && len(ms.KeyColumns) != len(ms.KeyProperties):
		return errors.Join(
			ErrInvalidStatement,
			fmt.Errorf("statement %s has %d key columns for %d key properties", ms.ID, len(ms.KeyColumns), len(ms.KeyProperties)),
		)

	case slices.Contains(ms.KeyProperties, ""):
		return errors.Join(ErrInvalidStatement, fmt.Errorf("statement %s has an empty key property", ms.ID))
	}

	return nil
}

// generatesKeys reports whether generated keys are written back into the parameter object.
func (ms *MappedStatement) generatesKeys() bool {
	return len(ms.KeyProperties) > 0
}

// ResultTypeOf returns the reflect.Type of T for MappedStatement.ResultType.
func ResultTypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}
