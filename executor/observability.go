package executor

import (
	"context"
	"math"
	"time"
)

// Logger interface for SQL logging, operational information and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with trace correlation.
// When configured it takes precedence over Logger.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

const (
	logMsgSQLExecuted      = "executed sql for: "
	logMsgOperation        = "executor operation: "
	logMsgQueryCompleted   = "query completed"
	logMsgUpdateCompleted  = "update completed"
	logMsgPrepareFailed    = "preparing statement failed"
	logMsgParameterFailed  = "binding statement parameters failed"
	logMsgQueryFailed      = "query execution failed"
	logMsgUpdateFailed     = "update execution failed"
	logMsgStatementAdded   = "mapped statement registered"
	logMsgInterceptorAdded = "interceptor registered"
	logMsgMapperAdded      = "mapper registered"
	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrStatementID     = "statement_id"
	logAttrDurationMS      = "duration_ms"
	logAttrResultCount     = "result_count"
	logAttrRowsAffected    = "rows_affected"
	logAttrInterceptor     = "interceptor"
	logAttrMapper          = "mapper"
	logAttrNamespace       = "namespace"
)

// logQueryWithDuration logs executed SQL with its execution time at debug level.
func (c *Configuration) logQueryWithDuration(
	ctx context.Context,
	sqlQuery string,
	statementID string,
	duration time.Duration,
) {

	switch {
	case c.contextualLogger != nil:
		c.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+statementID, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlSummary(sqlQuery))
	case c.logger != nil:
		c.logger.Debug(logMsgSQLExecuted+statementID, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlSummary(sqlQuery))
	}
}

// logOperation logs operational information at info level.
func (c *Configuration) logOperation(ctx context.Context, action string, args ...any) {
	switch {
	case c.contextualLogger != nil:
		c.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	case c.logger != nil:
		c.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs a failure at error level.
func (c *Configuration) logError(
	ctx context.Context,
	message string,
	err error,
	args ...any,
) {

	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	switch {
	case c.contextualLogger != nil:
		c.contextualLogger.ErrorContext(ctx, message, allArgs...)
	case c.logger != nil:
		c.logger.Error(message, allArgs...)
	}
}

func (c *Configuration) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
