package interceptor_test

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
	"github.com/AntonStoeckl/dynamic-plugins-go/testutil/helper"
)

type Greeter interface {
	Greet(ctx context.Context, name string) (string, error)
	Count() int
	Reset() error
}

type realGreeter struct {
	mu    sync.Mutex
	trace *[]string
	calls int
	err   error
}

func (g *realGreeter) Greet(_ context.Context, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	if g.trace != nil {
		*g.trace = append(*g.trace, "real")
	}

	if g.err != nil {
		return "", g.err
	}

	return "hello " + name, nil
}

func (g *realGreeter) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = 0

	return nil
}

func (g *realGreeter) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.calls
}

type greeterProxy struct{ *interceptor.Proxy }

func (g greeterProxy) Greet(ctx context.Context, name string) (string, error) {
	out, err := g.Invoke("Greet", ctx, name)
	return interceptor.Result[string](out, 0), err
}

func (g greeterProxy) Reset() error {
	_, err := g.Invoke("Reset")
	return err
}

func (g greeterProxy) Count() int {
	out, _ := g.Invoke("Count")
	return interceptor.Result[int](out, 0)
}

var greetSignature = interceptor.NewSignature[Greeter](
	"Greet",
	reflect.TypeFor[context.Context](),
	reflect.TypeFor[string](),
)

func newGreeterChain(t *testing.T, options ...interceptor.Option) *interceptor.Chain {
	t.Helper()

	chain, err := interceptor.NewChain(options...)
	require.NoError(t, err)
	require.NoError(t, interceptor.RegisterCapability(chain, func(p *interceptor.Proxy) Greeter {
		return greeterProxy{p}
	}))

	return chain
}

func recordingObserver(name string, trace *[]string) interceptor.Observer {
	return interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
		*trace = append(*trace, name)
		return inv.Proceed()
	})
}

func Test_Chain_Wrap_LastRegisteredRunsFirst(t *testing.T) {
	// arrange
	var trace []string
	chain := newGreeterChain(t)
	require.NoError(t, chain.Register(recordingObserver("O1", &trace), greetSignature))
	require.NoError(t, chain.Register(recordingObserver("O2", &trace), greetSignature))

	greeter, err := interceptor.Wrap[Greeter](chain, &realGreeter{trace: &trace})
	require.NoError(t, err)

	// act
	greeting, err := greeter.Greet(context.Background(), "Ada")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "hello Ada", greeting)
	assert.Equal(t, []string{"O2", "O1", "real"}, trace)
}

func Test_Chain_Wrap_UnregisteredMethodBypassesObservers(t *testing.T) {
	// arrange
	var trace []string
	chain := newGreeterChain(t)
	require.NoError(t, chain.Register(recordingObserver("O1", &trace), greetSignature))

	impl := &realGreeter{}
	greeter, err := interceptor.Wrap[Greeter](chain, Greeter(impl))
	require.NoError(t, err)
	_, err = greeter.Greet(context.Background(), "Ada")
	require.NoError(t, err)

	// act
	count := greeter.Count()

	// assert
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"O1"}, trace)
}

func Test_Chain_Wrap_ObserverMayShortCircuit(t *testing.T) {
	// arrange
	chain := newGreeterChain(t)
	require.NoError(t, chain.Register(
		interceptor.ObserverFunc(func(*interceptor.Invocation) ([]any, error) {
			return []any{"cached"}, nil
		}),
		greetSignature,
	))

	impl := &realGreeter{}
	greeter, err := interceptor.Wrap[Greeter](chain, Greeter(impl))
	require.NoError(t, err)

	// act
	greeting, err := greeter.Greet(context.Background(), "Ada")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "cached", greeting)
	assert.Equal(t, 0, impl.Count())
}

func Test_Chain_Wrap_ObserverMayProceedRepeatedly(t *testing.T) {
	// arrange
	chain := newGreeterChain(t)
	require.NoError(t, chain.Register(
		interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
			if _, err := inv.Proceed(); err != nil {
				return nil, err
			}
			return inv.Proceed()
		}),
		greetSignature,
	))

	impl := &realGreeter{}
	greeter, err := interceptor.Wrap[Greeter](chain, Greeter(impl))
	require.NoError(t, err)

	// act
	_, err = greeter.Greet(context.Background(), "Ada")

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, impl.Count())
}

func Test_Chain_Wrap_ObserverMayReplaceArguments(t *testing.T) {
	// arrange
	chain := newGreeterChain(t)
	require.NoError(t, chain.Register(
		interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
			if err := inv.SetArg(1, "Grace"); err != nil {
				return nil, err
			}
			return inv.Proceed()
		}),
		greetSignature,
	))

	greeter, err := interceptor.Wrap[Greeter](chain, Greeter(&realGreeter{}))
	require.NoError(t, err)

	// act
	greeting, err := greeter.Greet(context.Background(), "Ada")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "hello Grace", greeting)
}

func Test_Invocation_SetArg_RejectsWrongType(t *testing.T) {
	// arrange
	var setErr error
	chain := newGreeterChain(t)
	require.NoError(t, chain.Register(
		interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
			setErr = inv.SetArg(1, 42)
			return inv.Proceed()
		}),
		greetSignature,
	))

	greeter, err := interceptor.Wrap[Greeter](chain, Greeter(&realGreeter{}))
	require.NoError(t, err)

	// act
	_, err = greeter.Greet(context.Background(), "Ada")

	// assert
	require.NoError(t, err)
	assert.ErrorIs(t, setErr, interceptor.ErrArgumentMismatch)
}

func Test_Invocation_ExposesCallDetails(t *testing.T) {
	// arrange
	var seen *interceptor.Invocation
	chain := newGreeterChain(t)
	require.NoError(t, chain.Register(
		interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
			seen = inv
			return inv.Proceed()
		}),
		greetSignature,
	))

	impl := &realGreeter{}
	greeter, err := interceptor.Wrap[Greeter](chain, Greeter(impl))
	require.NoError(t, err)

	// act
	_, err = greeter.Greet(context.Background(), "Ada")

	// assert
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "Greet", seen.Method())
	assert.Equal(t, reflect.TypeFor[Greeter](), seen.Capability())
	assert.Equal(t, "Ada", seen.Arg(1))
	assert.Nil(t, seen.Arg(7))
	assert.Len(t, seen.Args(), 2)
	assert.Same(t, impl, seen.Target())
}

func Test_Chain_Wrap_PropagatesErrorsUnchanged(t *testing.T) {
	errGreeting := errors.New("greeting failed")
	errObserver := errors.New("observer failed")

	tests := []struct {
		name     string
		target   *realGreeter
		observer interceptor.ObserverFunc
		wantErr  error
	}{
		{
			name:   "error of the real object",
			target: &realGreeter{err: errGreeting},
			observer: func(inv *interceptor.Invocation) ([]any, error) {
				return inv.Proceed()
			},
			wantErr: errGreeting,
		},
		{
			name:   "error of the observer",
			target: &realGreeter{},
			observer: func(*interceptor.Invocation) ([]any, error) {
				return nil, errObserver
			},
			wantErr: errObserver,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// arrange
			chain := newGreeterChain(t)
			require.NoError(t, chain.Register(tt.observer, greetSignature))
			greeter, err := interceptor.Wrap[Greeter](chain, Greeter(tt.target))
			require.NoError(t, err)

			// act
			_, err = greeter.Greet(context.Background(), "Ada")

			// assert
			assert.Same(t, tt.wantErr, err)
		})
	}
}

func Test_Chain_Register_FailsAfterFirstBuild(t *testing.T) {
	// arrange
	var trace []string
	chain := newGreeterChain(t)
	require.NoError(t, chain.Register(recordingObserver("O1", &trace), greetSignature))
	_, err := interceptor.Wrap[Greeter](chain, Greeter(&realGreeter{}))
	require.NoError(t, err)

	// act
	registerErr := chain.Register(recordingObserver("O2", &trace), greetSignature)
	capabilityErr := interceptor.RegisterCapability(chain, func(p *interceptor.Proxy) Greeter { return greeterProxy{p} })

	// assert
	assert.True(t, chain.Sealed())
	assert.ErrorIs(t, registerErr, interceptor.ErrChainSealed)
	assert.ErrorIs(t, capabilityErr, interceptor.ErrChainSealed)
	assert.Len(t, chain.Interceptors(), 1)
}

func Test_Chain_Register_ValidatesSignatures(t *testing.T) {
	type notAnInterface struct{}

	tests := []struct {
		name string
		sig  interceptor.Signature
	}{
		{
			name: "capability is not an interface",
			sig:  interceptor.NewSignature[notAnInterface]("Greet"),
		},
		{
			name: "missing capability type",
			sig:  interceptor.Signature{Method: "Greet"},
		},
		{
			name: "unknown method",
			sig:  interceptor.NewSignature[Greeter]("Wave"),
		},
		{
			name: "parameter types differ",
			sig:  interceptor.NewSignature[Greeter]("Greet", reflect.TypeFor[string]()),
		},
		{
			name: "parameter count differs",
			sig:  interceptor.NewSignature[Greeter]("Count", reflect.TypeFor[int]()),
		},
		{
			name: "method returns no error",
			sig:  interceptor.NewSignature[Greeter]("Count"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// arrange
			chain := newGreeterChain(t)

			// act
			err := chain.Register(recordingObserver("O", new([]string)), tt.sig)

			// assert
			assert.ErrorIs(t, err, interceptor.ErrInvalidSignature)
			assert.Empty(t, chain.Interceptors())
		})
	}
}

func Test_Chain_Register_RejectsNilObserver(t *testing.T) {
	// arrange
	chain := newGreeterChain(t)

	// act
	registerErr := chain.Register(nil, greetSignature)
	addErr := chain.AddInterceptor(nil)

	// assert
	assert.ErrorIs(t, registerErr, interceptor.ErrNilInterceptor)
	assert.ErrorIs(t, addErr, interceptor.ErrNilInterceptor)
}

type countingInterceptor struct {
	calls int
}

func (c *countingInterceptor) Intercept(inv *interceptor.Invocation) ([]any, error) {
	c.calls++
	return inv.Proceed()
}

func (c *countingInterceptor) Signatures() []interceptor.Signature {
	return []interceptor.Signature{greetSignature, interceptor.NewSignature[Greeter]("Reset")}
}

func Test_Chain_AddInterceptor_RegistersAllDeclaredSignatures(t *testing.T) {
	// arrange
	counting := &countingInterceptor{}
	chain := newGreeterChain(t)
	require.NoError(t, chain.AddInterceptor(counting))
	greeter, err := interceptor.Wrap[Greeter](chain, Greeter(&realGreeter{}))
	require.NoError(t, err)

	// act
	_, err = greeter.Greet(context.Background(), "Ada")
	require.NoError(t, err)
	resetErr := greeter.Reset()

	// assert
	require.NoError(t, resetErr)
	assert.Equal(t, 0, greeter.Count())
	assert.Equal(t, 2, counting.calls)
	assert.Equal(t, []interceptor.Observer{counting}, chain.Interceptors())
}

func Test_Wrap_FailsWithoutCapabilityAdapter(t *testing.T) {
	// arrange
	chain, err := interceptor.NewChain()
	require.NoError(t, err)
	require.NoError(t, chain.Register(recordingObserver("O", new([]string)), greetSignature))

	// act
	_, err = interceptor.Wrap[Greeter](chain, Greeter(&realGreeter{}))

	// assert
	assert.ErrorIs(t, err, interceptor.ErrNoCapabilityAdapter)
}

func Test_Wrap_ReturnsTargetWithoutMatchingRegistrations(t *testing.T) {
	// arrange
	chain := newGreeterChain(t)
	impl := &realGreeter{}

	// act
	greeter, err := interceptor.Wrap[Greeter](chain, Greeter(impl))

	// assert
	require.NoError(t, err)
	assert.Same(t, impl, greeter)
	assert.Equal(t, 0, interceptor.Depth(greeter))
	assert.True(t, chain.Sealed())
}

func Test_Wrap_RejectsNilTargetAndNonInterfaceCapability(t *testing.T) {
	// arrange
	chain := newGreeterChain(t)

	// act
	_, nilErr := interceptor.Wrap[Greeter](chain, Greeter((*realGreeter)(nil)))
	_, kindErr := interceptor.Wrap[*realGreeter](chain, &realGreeter{})

	// assert
	assert.ErrorIs(t, nilErr, interceptor.ErrNilTarget)
	assert.ErrorIs(t, kindErr, interceptor.ErrInvalidCapability)
}

func Test_Proxy_Invoke_RejectsUnknownMethodsAndArity(t *testing.T) {
	// arrange
	chain := newGreeterChain(t)
	require.NoError(t, chain.Register(recordingObserver("O", new([]string)), greetSignature))
	greeter, err := interceptor.Wrap[Greeter](chain, Greeter(&realGreeter{}))
	require.NoError(t, err)
	proxy, ok := interceptor.PeelTo[greeterProxy](greeter)
	require.True(t, ok)

	// act
	_, unknownErr := proxy.Invoke("Wave")
	_, arityErr := proxy.Invoke("Greet", context.Background())
	_, typeErr := proxy.Invoke("Greet", context.Background(), 42)

	// assert
	assert.ErrorIs(t, unknownErr, interceptor.ErrMethodNotFound)
	assert.ErrorIs(t, arityErr, interceptor.ErrArgumentMismatch)
	assert.ErrorIs(t, typeErr, interceptor.ErrArgumentMismatch)
}

func Test_Chain_Wrap_LogsChainBuilding(t *testing.T) {
	// arrange
	logHandler := helper.NewLogHandlerSpy(false)
	chain := newGreeterChain(t, interceptor.WithLogger(slog.New(logHandler)))
	require.NoError(t, chain.Register(recordingObserver("O", new([]string)), greetSignature))

	// act
	_, err := interceptor.Wrap[Greeter](chain, Greeter(&realGreeter{}))

	// assert
	require.NoError(t, err)
	assert.True(t, logHandler.HasDebugLog("observer registered"))
	assert.True(t, logHandler.HasDebugLogWithMessage("interceptor chain sealed").WithAttribute("registrations", 1).Assert())
	assert.True(t, logHandler.HasDebugLogWithMessage("proxy layer built").WithAttribute("layer", 1).Assert())
}

func Test_Proxy_IsSafeForConcurrentCalls(t *testing.T) {
	// arrange
	var mu sync.Mutex
	seen := 0
	chain := newGreeterChain(t)
	require.NoError(t, chain.Register(
		interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
			mu.Lock()
			seen++
			mu.Unlock()
			return inv.Proceed()
		}),
		greetSignature,
	))

	impl := &realGreeter{}
	greeter, err := interceptor.Wrap[Greeter](chain, Greeter(impl))
	require.NoError(t, err)

	const callers = 50
	var wg sync.WaitGroup

	// act
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = greeter.Greet(context.Background(), "Ada")
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, callers, seen)
	assert.Equal(t, callers, impl.Count())
}

func Test_Properties_Get(t *testing.T) {
	// arrange
	props := interceptor.Properties{"limit": "10", "empty": ""}

	// act & assert
	assert.Equal(t, "10", props.Get("limit", "50"))
	assert.Equal(t, "50", props.Get("empty", "50"))
	assert.Equal(t, "mysql", props.Get("dbtype", "mysql"))
	assert.Equal(t, "x", interceptor.Properties(nil).Get("any", "x"))
}
