package executor

import (
	"errors"
)

var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrNilMappedStatement = errors.New("nil mapped statement supplied")
var ErrStatementNotFound = errors.New("mapped statement not found")
var ErrDuplicateStatement = errors.New("mapped statement already registered")
var ErrInvalidStatement = errors.New("invalid mapped statement")
var ErrPreparingStatementFailed = errors.New("preparing statement failed")
var ErrParameterBindingFailed = errors.New("binding statement parameters failed")
var ErrQueryingFailed = errors.New("querying failed")
var ErrExecutingFailed = errors.New("executing statement failed")
var ErrMappingResultFailed = errors.New("mapping result set failed")
var ErrUnknownCommandType = errors.New("unknown command type")
var ErrUnknownStatementType = errors.New("unknown statement type")
var ErrTooManyResults = errors.New("expected one result, got more")
var ErrCommandTypeMismatch = errors.New("statement command type does not match the session operation")
var ErrInvalidConfiguration = errors.New("invalid executor configuration")
var ErrKeyGenerationFailed = errors.New("writing generated keys failed")
var ErrInvalidMapper = errors.New("invalid mapper")
var ErrMapperNotFound = errors.New("mapper not registered")
var ErrMapperMethod = errors.New("mapper method cannot be bound to a statement")

// CommandType tells whether a mapped statement reads or writes.
type CommandType string

const (
	CommandSelect CommandType = "SELECT"
	CommandInsert CommandType = "INSERT"
	CommandUpdate CommandType = "UPDATE"
	CommandDelete CommandType = "DELETE"
)

// StatementType selects the statement handler used for a mapped statement.
type StatementType string

const (
	// StatementPrepared binds parameters as driver arguments. It is the default.
	StatementPrepared StatementType = "PREPARED"
	// StatementSimple sends the SQL text as is and rejects parameter placeholders.
	StatementSimple StatementType = "STATEMENT"
)

// PlaceholderFormat is the bind variable syntax emitted for #{} parameters.
type PlaceholderFormat int

const (
	// PlaceholderQuestion emits "?" for every parameter (MySQL, sqlx rebinding).
	PlaceholderQuestion PlaceholderFormat = iota
	// PlaceholderDollar emits "$1", "$2", ... (PostgreSQL).
	PlaceholderDollar
)
