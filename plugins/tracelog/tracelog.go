package tracelog

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/dynamic-plugins-go/executor"
	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
)

const (
	// Name is the plugin name used in configuration files.
	Name = "tracelog"

	// PropertyRenderParameters switches the JSON rendering of parameter objects in logs, "true" when absent.
	PropertyRenderParameters = "renderParameters"
	// PropertyMaxParameterLength caps rendered parameters, "512" when absent.
	PropertyMaxParameterLength = "maxParameterLength"

	defaultMaxParameterLength = 512
)

const (
	logMsgBefore          = "before executor call"
	logMsgAfter           = "after executor call"
	logMsgFailed          = "executor call failed"
	logAttrInvocationID   = "invocation_id"
	logAttrMethod         = "method"
	logAttrStatementID    = "statement_id"
	logAttrParameters     = "parameters"
	logAttrDurationMS     = "duration_ms"
	logAttrResultCount    = "result_count"
	logAttrRowsAffected   = "rows_affected"
	logAttrError          = "error"
	spanNamePrefix        = "executor."
	spanAttrInvocationID  = "invocation.id"
	spanAttrMethod        = "executor.method"
	spanAttrStatementID   = "statement.id"
	spanAttrResultCount   = "result.count"
	spanAttrRowsAffected  = "rows.affected"
	spanAttrDurationMS    = "duration_ms"
	spanAttrErrorType     = "error.type"
	metricCallDuration    = "executor_call_duration_seconds"
	metricCallErrors      = "executor_call_errors_total"
	metricRowsAffected    = "executor_rows_affected"
	metricResultCount     = "executor_result_count"
	labelMethod           = "method"
	labelStatus           = "status"
	labelStatementID      = "statement_id"
	statusSuccess         = "success"
	statusError           = "error"
	errorTypeCanceled     = "canceled"
	errorTypeTimeout      = "timeout"
	errorTypeExecution    = "execution"
	parameterRenderFailed = "<unrenderable>"
)

var ErrInvalidProperty = errors.New("invalid tracelog property")

// Interceptor logs, traces and measures every Executor.Query and Executor.Update.
// It proceeds exactly once per call and returns the results and error of the inner layer unchanged.
type Interceptor struct {
	logger             Logger
	contextualLogger   ContextualLogger
	metricsCollector   MetricsCollector
	tracingCollector   TracingCollector
	renderParameters   bool
	maxParameterLength int
	newID              func() (uuid.UUID, error)
}

// Option defines a functional option for configuring the Interceptor.
type Option func(*Interceptor) error

// WithLogger sets the logger. Debug level receives the before and after records, error level failures.
func WithLogger(logger Logger) Option {
	return func(i *Interceptor) error {
		i.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger that takes precedence over the plain logger.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(i *Interceptor) error {
		i.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for call durations, result sizes and errors.
// A ContextualMetricsCollector receives the call context.
func WithMetrics(collector MetricsCollector) Option {
	return func(i *Interceptor) error {
		i.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector. The span context replaces the context argument of the call,
// so inner layers and the database driver see it.
func WithTracing(collector TracingCollector) Option {
	return func(i *Interceptor) error {
		i.tracingCollector = collector
		return nil
	}
}

// WithParameterRendering switches the JSON rendering of parameter objects in log records.
func WithParameterRendering(enabled bool) Option {
	return func(i *Interceptor) error {
		i.renderParameters = enabled
		return nil
	}
}

// New creates an Interceptor. Without options it proceeds without observing anything.
func New(options ...Option) (*Interceptor, error) {
	i := &Interceptor{
		renderParameters:   true,
		maxParameterLength: defaultMaxParameterLength,
		newID:              uuid.NewV7,
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
	args := []reflect.Type{
		reflect.TypeFor[context.Context](),
		reflect.TypeFor[*executor.MappedStatement](),
		reflect.TypeFor[any](),
	}

	return []interceptor.Signature{
		interceptor.NewSignature[executor.Executor]("Update", args...),
		interceptor.NewSignature[executor.Executor]("Query", args...),
	}
}

// SetProperties implements interceptor.Configurable.
func (i *Interceptor) SetProperties(properties interceptor.Properties) error {
	render, err := strconv.ParseBool(properties.Get(PropertyRenderParameters, "true"))
	if err != nil {
		return errors.Join(ErrInvalidProperty, fmt.Errorf("%s=%q", PropertyRenderParameters, properties[PropertyRenderParameters]))
	}

	maxLength, err := strconv.Atoi(properties.Get(PropertyMaxParameterLength, strconv.Itoa(defaultMaxParameterLength)))
	if err != nil || maxLength <= 0 {
		return errors.Join(ErrInvalidProperty, fmt.Errorf("%s=%q", PropertyMaxParameterLength, properties[PropertyMaxParameterLength]))
	}

	i.renderParameters = render
	i.maxParameterLength = maxLength

	return nil
}

// Intercept implements interceptor.Observer.
func (i *Interceptor) Intercept(inv *interceptor.Invocation) ([]any, error) {
	ctx, _ := inv.Arg(0).(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}

	c := i.startCall(ctx, inv)

	if c.span != nil {
		if err := inv.SetArg(0, c.ctx); err != nil {
			return nil, err
		}
	}

	i.logDebug(c.ctx, logMsgBefore, c.attrs(logAttrParameters, i.render(inv.Arg(2)))...)

	out, err := inv.Proceed()
	duration := time.Since(c.start)

	if err != nil {
		i.finishError(c, err, duration)
		return out, err
	}

	i.finishSuccess(c, out, duration)

	return out, nil
}

// call is the observation state of one intercepted executor call.
type call struct {
	ctx          context.Context
	start        time.Time
	invocationID string
	method       string
	statementID  string
	span         SpanContext
}

func (c *call) attrs(args ...any) []any {
	all := []any{
		logAttrInvocationID, c.invocationID,
		logAttrMethod, c.method,
		logAttrStatementID, c.statementID,
	}

	return append(all, args...)
}

func (c *call) labels(status string) map[string]string {
	return map[string]string{
		labelMethod:      c.method,
		labelStatus:      status,
		labelStatementID: c.statementID,
	}
}

func (i *Interceptor) startCall(ctx context.Context, inv *interceptor.Invocation) *call {
	c := &call{
		ctx:    ctx,
		start:  time.Now(),
		method: inv.Method(),
	}

	if ms, ok := inv.Arg(1).(*executor.MappedStatement); ok && ms != nil {
		c.statementID = ms.ID
	}

	if id, err := i.newID(); err == nil {
		c.invocationID = id.String()
	}

	if i.tracingCollector != nil {
		c.ctx, c.span = i.tracingCollector.StartSpan(ctx, spanNamePrefix+strings.ToLower(c.method), map[string]string{
			spanAttrInvocationID: c.invocationID,
			spanAttrMethod:       c.method,
			spanAttrStatementID:  c.statementID,
		})
	}

	return c
}

func (i *Interceptor) finishSuccess(c *call, out []any, duration time.Duration) {
	spanAttrs := map[string]string{
		spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
	}

	var resultArgs []any
	switch c.method {
	case "Query":
		count := len(interceptor.Result[[]any](out, 0))
		resultArgs = []any{logAttrResultCount, count}
		spanAttrs[spanAttrResultCount] = strconv.Itoa(count)
		i.recordValue(c.ctx, metricResultCount, float64(count), c.labels(statusSuccess))
	case "Update":
		rowsAffected := interceptor.Result[int64](out, 0)
		resultArgs = []any{logAttrRowsAffected, rowsAffected}
		spanAttrs[spanAttrRowsAffected] = strconv.FormatInt(rowsAffected, 10)
		i.recordValue(c.ctx, metricRowsAffected, float64(rowsAffected), c.labels(statusSuccess))
	}

	i.recordDuration(c.ctx, duration, c.labels(statusSuccess))
	i.logDebug(c.ctx, logMsgAfter, c.attrs(append(resultArgs, logAttrDurationMS, toMilliseconds(duration))...)...)
	i.finishSpan(c, statusSuccess, spanAttrs)
}

func (i *Interceptor) finishError(c *call, err error, duration time.Duration) {
	errorType := classify(err)

	labels := c.labels(statusError)
	i.recordDuration(c.ctx, duration, labels)
	i.incrementErrors(c.ctx, labels, errorType)
	i.logError(c.ctx, err, c.attrs(logAttrDurationMS, toMilliseconds(duration))...)
	i.finishSpan(c, statusError, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
	})
}

func (i *Interceptor) finishSpan(c *call, status string, attrs map[string]string) {
	if i.tracingCollector != nil && c.span != nil {
		i.tracingCollector.FinishSpan(c.span, status, attrs)
	}
}

// render returns the parameter object as JSON, shortened to the configured length.
func (i *Interceptor) render(parameter any) string {
	if !i.renderParameters {
		return ""
	}

	b, err := jsoniter.ConfigFastest.Marshal(parameter)
	if err != nil {
		return parameterRenderFailed
	}

	if len(b) > i.maxParameterLength {
		cut := i.maxParameterLength
		for cut > 0 && !utf8.RuneStart(b[cut]) {
			cut--
		}

		return string(b[:cut]) + "..."
	}

	return string(b)
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeTimeout
	default:
		return errorTypeExecution
	}
}

var (
	_ interceptor.Interceptor  = (*Interceptor)(nil)
	_ interceptor.Configurable = (*Interceptor)(nil)
)
