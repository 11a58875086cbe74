package querylimit

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration

	"github.com/AntonStoeckl/dynamic-plugins-go/executor"
	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
	"github.com/AntonStoeckl/dynamic-plugins-go/metaobject"
)

const (
	// Name is the plugin name used in configuration files.
	Name = "querylimit"

	// PropertyLimit is the maximum number of rows, "50" when absent.
	PropertyLimit = "limit"
	// PropertyDBType selects the SQL dialect, "mysql" when absent.
	PropertyDBType = "dbtype"

	DefaultLimit    = 50
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"

	// TableAlias names the wrapping subquery. SQL that already contains it is left alone.
	TableAlias = "limit_table_name_xxx"

	sqlPath         = "delegate.boundSQL.sql"
	commandTypePath = "delegate.mappedStatement.CommandType"
)

const (
	logMsgRewritten        = "query limit applied"
	logMsgSkippedDialect   = "query limit skipped, unsupported dialect"
	logMsgSkippedRewritten = "query limit skipped, already limited"
	logAttrStatementID     = "statement_id"
	logAttrDialect         = "dialect"
	logAttrLimit           = "limit"
	logAttrQuery           = "query"
)

var ErrInvalidLimit = errors.New("invalid query limit")
var ErrSQLNotReachable = errors.New("statement sql is not reachable through the handler")
var ErrRewriteFailed = errors.New("building the limited query failed")

// Logger interface for reporting rewrites at debug level.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Interceptor caps the rows of every SELECT by wrapping its SQL in a limited subquery
// right before the statement is prepared:
//
//	SELECT * FROM (<sql>) AS limit_table_name_xxx LIMIT 50
//
// Existing ORDER BY or LIMIT clauses of the inner query are not analyzed.
type Interceptor struct {
	mu      sync.RWMutex
	limit   uint
	dialect string
	logger  Logger
	cache   *metaobject.MetadataCache
}

// Option defines a functional option for configuring the Interceptor.
type Option func(*Interceptor) error

// WithLimit sets the maximum number of rows.
func WithLimit(limit uint) Option {
	return func(i *Interceptor) error {
		if limit == 0 {
			return errors.Join(ErrInvalidLimit, errors.New("limit must be positive"))
		}

		i.limit = limit

		return nil
	}
}

// WithDialect sets the SQL dialect. Statements are only rewritten for "mysql" and "postgres".
func WithDialect(dialect string) Option {
	return func(i *Interceptor) error {
		i.dialect = strings.ToLower(strings.TrimSpace(dialect))
		return nil
	}
}

// WithLogger sets the logger that receives rewrite decisions at debug level.
func WithLogger(logger Logger) Option {
	return func(i *Interceptor) error {
		i.logger = logger
		return nil
	}
}

// New creates an Interceptor with limit 50 for MySQL.
func New(options ...Option) (*Interceptor, error) {
	i := &Interceptor{
		limit:   DefaultLimit,
		dialect: DialectMySQL,
		cache:   metaobject.DefaultCache(),
	}

	for _, option := range options {
		if err := option(i); err != nil {
			return nil, err
		}
	}

	return i, nil
}

// Signatures implements interceptor.Interceptor.
func (i *Interceptor) Signatures() []interceptor.Signature {
	return []interceptor.Signature{
		interceptor.NewSignature[executor.StatementHandler](
			"Prepare",
			reflect.TypeFor[context.Context](),
			reflect.TypeFor[executor.Connection](),
		),
	}
}

// SetProperties implements interceptor.Configurable. Absent properties fall back to the defaults.
func (i *Interceptor) SetProperties(properties interceptor.Properties) error {
	limit, err := strconv.ParseUint(properties.Get(PropertyLimit, strconv.Itoa(DefaultLimit)), 10, 0)
	if err != nil || limit == 0 {
		return errors.Join(ErrInvalidLimit, fmt.Errorf("%s=%q", PropertyLimit, properties[PropertyLimit]))
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.limit = uint(limit)
	i.dialect = strings.ToLower(strings.TrimSpace(properties.Get(PropertyDBType, DialectMySQL)))

	return nil
}

// Limit returns the configured maximum number of rows.
func (i *Interceptor) Limit() uint {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.limit
}

// Dialect returns the configured SQL dialect.
func (i *Interceptor) Dialect() string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.dialect
}

// Intercept implements interceptor.Observer. It peels the statement handler down to the real
// handler, rewrites its SQL in place and proceeds.
func (i *Interceptor) Intercept(inv *interceptor.Invocation) ([]any, error) {
	meta, err := metaobject.ForObject(interceptor.Peel(inv.Target()), metaobject.WithMetadataCache(i.cache))
	if err != nil {
		return nil, errors.Join(ErrSQLNotReachable, err)
	}

	commandType, err := meta.GetValue(commandTypePath)
	if err != nil {
		return nil, errors.Join(ErrSQLNotReachable, err)
	}

	if commandType == nil {
		return nil, errors.Join(ErrSQLNotReachable, fmt.Errorf("%s is nil", commandTypePath))
	}

	if commandType != executor.CommandSelect {
		return inv.Proceed()
	}

	raw, err := meta.GetValue(sqlPath)
	if err != nil {
		return nil, errors.Join(ErrSQLNotReachable, err)
	}

	sql, ok := raw.(string)
	if !ok {
		return nil, errors.Join(ErrSQLNotReachable, fmt.Errorf("%s is %T", sqlPath, raw))
	}

	limit, dialect := i.Limit(), i.Dialect()

	rewritten, changed, err := Rewrite(sql, dialect, limit)
	if err != nil {
		return nil, err
	}

	if !changed {
		i.logSkipped(sql, dialect)
		return inv.Proceed()
	}

	if err = meta.SetValue(sqlPath, rewritten); err != nil {
		return nil, errors.Join(ErrSQLNotReachable, err)
	}

	if i.logger != nil {
		i.logger.Debug(logMsgRewritten, logAttrDialect, dialect, logAttrLimit, limit, logAttrQuery, rewritten)
	}

	return inv.Proceed()
}

func (i *Interceptor) logSkipped(sql, dialect string) {
	if i.logger == nil {
		return
	}

	if strings.Contains(strings.ToLower(sql), TableAlias) {
		i.logger.Debug(logMsgSkippedRewritten, logAttrQuery, sql)
		return
	}

	i.logger.Debug(logMsgSkippedDialect, logAttrDialect, dialect)
}

// Rewrite wraps sql in a subquery limited to limit rows. It reports false and returns sql unchanged
// when the dialect is not supported or sql was already rewritten.
func Rewrite(sql string, dialect string, limit uint) (string, bool, error) {
	if dialect != DialectMySQL && dialect != DialectPostgres {
		return sql, false, nil
	}

	if strings.Contains(strings.ToLower(sql), TableAlias) {
		return sql, false, nil
	}

	inner := strings.TrimRight(strings.TrimSpace(sql), "; \t\n")

	rewritten, _, err := goqu.Dialect(dialect).
		From(goqu.L("(" + inner + ")").As(TableAlias)).
		Limit(limit).
		ToSQL()
	if err != nil {
		return sql, false, errors.Join(ErrRewriteFailed, err)
	}

	return rewritten, true, nil
}

var (
	_ interceptor.Interceptor  = (*Interceptor)(nil)
	_ interceptor.Configurable = (*Interceptor)(nil)
)
