package executor

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
	"github.com/AntonStoeckl/dynamic-plugins-go/metaobject"
)

// Configuration holds the mapped statements, the interceptor chain and the settings shared by
// every execution. Executors, statement handlers, parameter handlers and result set handlers
// are created here and wrapped with the registered interceptors.
type Configuration struct {
	chain                    *interceptor.Chain
	logger                   Logger
	contextualLogger         ContextualLogger
	defaultStatementTimeout  time.Duration
	mapUnderscoreToCamelCase bool
	objectFactory            metaobject.ObjectFactory
	metadataCache            *metaobject.MetadataCache

	mu         sync.RWMutex
	statements map[string]*MappedStatement
	mappers    map[reflect.Type]*mapperBinding
}

// Option defines a functional option for configuring a Configuration.
type Option func(*Configuration) error

// WithLogger sets the logger. Debug level receives executed SQL with timing
// and interceptor chain building, info level receives operation summaries.
func WithLogger(logger Logger) Option {
	return func(c *Configuration) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger that is used instead of the plain logger
// for execution logs, so that they correlate with active traces.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(c *Configuration) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithDefaultStatementTimeout sets the timeout for statements that do not declare one.
func WithDefaultStatementTimeout(timeout time.Duration) Option {
	return func(c *Configuration) error {
		if timeout < 0 {
			return errors.Join(ErrInvalidConfiguration, fmt.Errorf("negative statement timeout %s", timeout))
		}

		c.defaultStatementTimeout = timeout

		return nil
	}
}

// WithMapUnderscoreToCamelCase makes result mapping match column "first_name" to property "FirstName".
func WithMapUnderscoreToCamelCase(enabled bool) Option {
	return func(c *Configuration) error {
		c.mapUnderscoreToCamelCase = enabled
		return nil
	}
}

// WithObjectFactory sets the factory that creates result objects and auto-vivified properties.
func WithObjectFactory(factory metaobject.ObjectFactory) Option {
	return func(c *Configuration) error {
		if factory == nil {
			return errors.Join(ErrInvalidConfiguration, errors.New("nil object factory supplied"))
		}

		c.objectFactory = factory

		return nil
	}
}

// WithMetadataCache sets the property metadata cache used for parameter and result navigation.
func WithMetadataCache(cache *metaobject.MetadataCache) Option {
	return func(c *Configuration) error {
		if cache == nil {
			return errors.Join(ErrInvalidConfiguration, errors.New("nil metadata cache supplied"))
		}

		c.metadataCache = cache

		return nil
	}
}

// NewConfiguration creates a Configuration with an empty, unsealed interceptor chain.
func NewConfiguration(options ...Option) (*Configuration, error) {
	c := &Configuration{
		objectFactory: metaobject.NewDefaultObjectFactory(),
		metadataCache: metaobject.DefaultCache(),
		statements:    make(map[string]*MappedStatement),
		mappers:       make(map[reflect.Type]*mapperBinding),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	var chainOptions []interceptor.Option
	if c.logger != nil {
		chainOptions = append(chainOptions, interceptor.WithLogger(c.logger))
	}

	chain, err := interceptor.NewChain(chainOptions...)
	if err != nil {
		return nil, err
	}

	if err = registerCapabilities(chain); err != nil {
		return nil, err
	}

	c.chain = chain

	return c, nil
}

// AddInterceptor registers i on the chain. It fails with interceptor.ErrChainSealed
// once the first executor or handler has been created.
func (c *Configuration) AddInterceptor(i interceptor.Interceptor) error {
	if err := c.chain.AddInterceptor(i); err != nil {
		return err
	}

	c.logDebug(logMsgInterceptorAdded, logAttrInterceptor, fmt.Sprintf("%T", i))

	return nil
}

// Chain returns the interceptor chain.
func (c *Configuration) Chain() *interceptor.Chain {
	return c.chain
}

// AddMappedStatement registers ms under its ID.
func (c *Configuration) AddMappedStatement(ms *MappedStatement) error {
	if err := ms.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.statements[ms.ID]; ok {
		return errors.Join(ErrDuplicateStatement, fmt.Errorf("statement %s", ms.ID))
	}

	c.statements[ms.ID] = ms
	c.logDebug(logMsgStatementAdded, logAttrStatementID, ms.ID)

	return nil
}

// MappedStatement returns the statement registered under id.
func (c *Configuration) MappedStatement(id string) (*MappedStatement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ms, ok := c.statements[id]
	if !ok {
		return nil, errors.Join(ErrStatementNotFound, fmt.Errorf("statement %s", id))
	}

	return ms, nil
}

// MappedStatementIDs returns the registered statement ids in sorted order.
func (c *Configuration) MappedStatementIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.statements))
	for id := range c.statements {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// NewExecutor creates an Executor on conn, wrapped with the interceptors registered for Executor.
func (c *Configuration) NewExecutor(conn Connection) (Executor, error) {
	if conn == nil {
		return nil, ErrNilDatabaseConnection
	}

	return interceptor.Wrap[Executor](c.chain, &SimpleExecutor{configuration: c, conn: conn})
}

// NewStatementHandler creates the routing statement handler for one execution,
// wrapped with the interceptors registered for StatementHandler.
func (c *Configuration) NewStatementHandler(ms *MappedStatement, parameterObject any, boundSQL *BoundSQL) (StatementHandler, error) {
	handler, err := NewRoutingStatementHandler(c, ms, parameterObject, boundSQL)
	if err != nil {
		return nil, err
	}

	return interceptor.Wrap[StatementHandler](c.chain, handler)
}

// NewParameterHandler creates the parameter handler for one execution,
// wrapped with the interceptors registered for ParameterHandler.
func (c *Configuration) NewParameterHandler(ms *MappedStatement, parameterObject any, boundSQL *BoundSQL) (ParameterHandler, error) {
	return interceptor.Wrap[ParameterHandler](c.chain, NewDefaultParameterHandler(c, ms, parameterObject, boundSQL))
}

// NewResultSetHandler creates the result set handler for one execution,
// wrapped with the interceptors registered for ResultSetHandler.
func (c *Configuration) NewResultSetHandler(ms *MappedStatement, boundSQL *BoundSQL) (ResultSetHandler, error) {
	return interceptor.Wrap[ResultSetHandler](c.chain, NewDefaultResultSetHandler(c, ms, boundSQL))
}

// OpenSession creates a Session that runs statements on conn.
func (c *Configuration) OpenSession(conn Connection) (*Session, error) {
	e, err := c.NewExecutor(conn)
	if err != nil {
		return nil, err
	}

	return &Session{configuration: c, executor: e}, nil
}

// metaOptions returns the navigation options for parameter and result objects.
// Paths match exported Go names case-insensitively, so "author.name" reads Author.Name.
func (c *Configuration) metaOptions() []metaobject.Option {
	return []metaobject.Option{
		metaobject.WithCaseInsensitive(true),
		metaobject.WithObjectFactory(c.objectFactory),
		metaobject.WithMetadataCache(c.metadataCache),
	}
}
