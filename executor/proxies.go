package executor

import (
	"context"

	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
)

// The capability adapters make a proxy layer satisfy the interceptable interfaces.
// Peeling through them reaches the handler created by Configuration.

type executorProxy struct{ *interceptor.Proxy }

func (p executorProxy) Update(ctx context.Context, ms *MappedStatement, parameter any) (int64, error) {
	out, err := p.Invoke("Update", ctx, ms, parameter)
	return interceptor.Result[int64](out, 0), err
}

func (p executorProxy) Query(ctx context.Context, ms *MappedStatement, parameter any) ([]any, error) {
	out, err := p.Invoke("Query", ctx, ms, parameter)
	return interceptor.Result[[]any](out, 0), err
}

type statementHandlerProxy struct{ *interceptor.Proxy }

func (p statementHandlerProxy) Prepare(ctx context.Context, conn Connection) (*Statement, error) {
	out, err := p.Invoke("Prepare", ctx, conn)
	return interceptor.Result[*Statement](out, 0), err
}

func (p statementHandlerProxy) Parameterize(stmt *Statement) error {
	_, err := p.Invoke("Parameterize", stmt)
	return err
}

func (p statementHandlerProxy) Query(ctx context.Context, stmt *Statement) ([]any, error) {
	out, err := p.Invoke("Query", ctx, stmt)
	return interceptor.Result[[]any](out, 0), err
}

func (p statementHandlerProxy) Update(ctx context.Context, stmt *Statement) (int64, error) {
	out, err := p.Invoke("Update", ctx, stmt)
	return interceptor.Result[int64](out, 0), err
}

// BoundSQL cannot be intercepted because it returns no error, so Invoke only reaches the inner layer.
func (p statementHandlerProxy) BoundSQL() *BoundSQL {
	out, _ := p.Invoke("BoundSQL")
	return interceptor.Result[*BoundSQL](out, 0)
}

type parameterHandlerProxy struct{ *interceptor.Proxy }

// ParameterObject cannot be intercepted either.
func (p parameterHandlerProxy) ParameterObject() any {
	out, _ := p.Invoke("ParameterObject")
	return interceptor.Result[any](out, 0)
}

func (p parameterHandlerProxy) SetParameters(stmt *Statement) error {
	_, err := p.Invoke("SetParameters", stmt)
	return err
}

type resultSetHandlerProxy struct{ *interceptor.Proxy }

func (p resultSetHandlerProxy) HandleResultSets(rows Rows) ([]any, error) {
	out, err := p.Invoke("HandleResultSets", rows)
	return interceptor.Result[[]any](out, 0), err
}

func registerCapabilities(chain *interceptor.Chain) error {
	if err := interceptor.RegisterCapability(chain, func(p *interceptor.Proxy) Executor {
		return executorProxy{p}
	}); err != nil {
		return err
	}

	if err := interceptor.RegisterCapability(chain, func(p *interceptor.Proxy) StatementHandler {
		return statementHandlerProxy{p}
	}); err != nil {
		return err
	}

	if err := interceptor.RegisterCapability(chain, func(p *interceptor.Proxy) ParameterHandler {
		return parameterHandlerProxy{p}
	}); err != nil {
		return err
	}

	return interceptor.RegisterCapability(chain, func(p *interceptor.Proxy) ResultSetHandler {
		return resultSetHandlerProxy{p}
	})
}

var (
	_ Executor         = executorProxy{}
	_ StatementHandler = statementHandlerProxy{}
	_ ParameterHandler = parameterHandlerProxy{}
	_ ResultSetHandler = resultSetHandlerProxy{}
)
