// Package interceptor wraps capability values in layered proxies so that selected
// method calls pass through registered observers before reaching the real object.
//
// A capability is a Go interface type. Each capability needs an adapter, registered once
// with RegisterCapability, that satisfies the interface by forwarding every method to
// Proxy.Invoke. Observers register for signatures, (capability, method, parameter types)
// triples, and Wrap builds one layer per matching registration, innermost first:
// the last registered observer sees a call first.
//
// Only methods returning an error as their last result can be registered, so an observer
// failure always reaches the caller.
//
// Observers receive an Invocation and decide whether, and how often, the call proceeds
// to the inner layer. Every layer implements Layered, so Peel reaches the real object
// when an observer must read or rewrite state the capability does not expose.
//
// Typical wiring:
//
//	type handlerProxy struct{ *interceptor.Proxy }
//
//	func (h handlerProxy) Prepare(ctx context.Context, conn Connection) (*Statement, error) {
//		out, err := h.Invoke("Prepare", ctx, conn)
//		return interceptor.Result[*Statement](out, 0), err
//	}
//
//	chain, _ := interceptor.NewChain()
//	_ = interceptor.RegisterCapability(chain, func(p *interceptor.Proxy) StatementHandler {
//		return handlerProxy{p}
//	})
//	limit, _ := querylimit.New(querylimit.WithLimit(100))
//	_ = chain.AddInterceptor(limit)
//
//	handler, err := interceptor.Wrap[StatementHandler](chain, realHandler)
//
// The registration set is fixed once the first proxy is built. Built proxies are
// immutable and safe for concurrent use.
package interceptor
