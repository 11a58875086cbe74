package interceptor_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
	"github.com/AntonStoeckl/dynamic-plugins-go/metaobject"
)

type Preparer interface {
	Prepare(ctx context.Context) (string, error)
}

// sqlHolder keeps its statement private; it can only be changed through path navigation.
type sqlHolder struct {
	sql      string
	observed []string
}

func (h *sqlHolder) Prepare(_ context.Context) (string, error) {
	h.observed = append(h.observed, h.sql)
	return h.sql, nil
}

type preparerProxy struct{ *interceptor.Proxy }

func (p preparerProxy) Prepare(ctx context.Context) (string, error) {
	out, err := p.Invoke("Prepare", ctx)
	return interceptor.Result[string](out, 0), err
}

var prepareSignature = interceptor.NewSignature[Preparer]("Prepare", reflect.TypeFor[context.Context]())

func newPreparerChain(t *testing.T) *interceptor.Chain {
	t.Helper()

	chain, err := interceptor.NewChain()
	require.NoError(t, err)
	require.NoError(t, interceptor.RegisterCapability(chain, func(p *interceptor.Proxy) Preparer {
		return preparerProxy{p}
	}))

	return chain
}

func passThrough() interceptor.Observer {
	return interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
		return inv.Proceed()
	})
}

func Test_Peel_ReachesRealObjectThroughAllLayers(t *testing.T) {
	// arrange
	chain := newPreparerChain(t)
	require.NoError(t, chain.Register(passThrough(), prepareSignature))
	require.NoError(t, chain.Register(passThrough(), prepareSignature))
	require.NoError(t, chain.Register(passThrough(), prepareSignature))

	holder := &sqlHolder{sql: "SELECT 1"}
	preparer, err := interceptor.Wrap[Preparer](chain, Preparer(holder))
	require.NoError(t, err)

	// act
	peeled := interceptor.Peel(preparer)

	// assert
	assert.Same(t, holder, peeled)
	assert.Equal(t, 3, interceptor.Depth(preparer))
	assert.Equal(t, 0, interceptor.Depth(holder))
	assert.Same(t, holder, interceptor.Peel(holder))
}

func Test_PeelTo_StopsAtFirstMatchingLayer(t *testing.T) {
	// arrange
	chain := newPreparerChain(t)
	require.NoError(t, chain.Register(passThrough(), prepareSignature))
	require.NoError(t, chain.Register(passThrough(), prepareSignature))

	holder := &sqlHolder{}
	preparer, err := interceptor.Wrap[Preparer](chain, Preparer(holder))
	require.NoError(t, err)

	// act
	outer, outerFound := interceptor.PeelTo[preparerProxy](preparer)
	innermost, innermostFound := interceptor.PeelTo[*sqlHolder](preparer)
	_, missingFound := interceptor.PeelTo[greeterProxy](preparer)

	// assert
	require.True(t, outerFound)
	assert.Equal(t, reflect.TypeFor[Preparer](), outer.Capability())
	assert.Equal(t, 1, interceptor.Depth(outer.Unwrap()))
	require.True(t, innermostFound)
	assert.Same(t, holder, innermost)
	assert.False(t, missingFound)
}

func Test_Chain_Wrap_OuterObserverRewritesInnerStateAfterPeeling(t *testing.T) {
	// arrange
	var innerSaw []string
	inner := interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
		meta, err := metaobject.ForObject(interceptor.Peel(inv.Target()))
		if err != nil {
			return nil, err
		}

		sql, err := meta.GetValue("sql")
		if err != nil {
			return nil, err
		}
		innerSaw = append(innerSaw, sql.(string))

		return inv.Proceed()
	})

	rewriter := interceptor.ObserverFunc(func(inv *interceptor.Invocation) ([]any, error) {
		meta, err := metaobject.ForObject(interceptor.Peel(inv.Target()))
		if err != nil {
			return nil, err
		}

		sql, err := meta.GetValue("sql")
		if err != nil {
			return nil, err
		}

		if err := meta.SetValue("sql", "SELECT * FROM ("+sql.(string)+") tmp_count LIMIT 50"); err != nil {
			return nil, err
		}

		return inv.Proceed()
	})

	chain := newPreparerChain(t)
	require.NoError(t, chain.Register(inner, prepareSignature))
	require.NoError(t, chain.Register(rewriter, prepareSignature))

	holder := &sqlHolder{sql: "SELECT * FROM t"}
	preparer, err := interceptor.Wrap[Preparer](chain, Preparer(holder))
	require.NoError(t, err)

	// act
	prepared, err := preparer.Prepare(context.Background())

	// assert
	require.NoError(t, err)
	rewritten := "SELECT * FROM (SELECT * FROM t) tmp_count LIMIT 50"
	assert.Equal(t, rewritten, prepared)
	assert.Equal(t, rewritten, holder.sql)
	assert.Equal(t, []string{rewritten}, holder.observed)
	assert.Equal(t, []string{rewritten}, innerSaw)
}
