package grpc

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestGetConnectionReusesTarget(t *testing.T) {
	p := NewPool()
	t.Cleanup(func() { _ = p.Close() })

	var wg sync.WaitGroup
	conns := make([]*grpc.ClientConn, 8)
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := p.GetConnection("passthrough:///ledger-a")
			assert.NoError(t, err)
			conns[i] = conn
		}(i)
	}
	wg.Wait()

	for _, c := range conns {
		assert.Same(t, conns[0], c)
	}

	other, err := p.GetConnection("passthrough:///ledger-b")
	require.NoError(t, err)
	assert.NotSame(t, conns[0], other)
	assert.Equal(t, 2, p.Len())
}

func TestClosedConnectionIsRecreated(t *testing.T) {
	p := NewPool()
	t.Cleanup(func() { _ = p.Close() })

	first, err := p.GetConnection("passthrough:///ledger-a")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := p.GetConnection("passthrough:///ledger-a")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, p.Len())
}

func TestCloseTargetAndClose(t *testing.T) {
	noop := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(ctx, method, req, reply, cc, opts...)
	}
	p := NewPool(WithInterceptor(noop), WithInterceptor(noop))
	assert.Len(t, p.interceptors, 2)

	_, err := p.GetConnection("passthrough:///ledger-a")
	require.NoError(t, err)
	_, err = p.GetConnection("passthrough:///ledger-b")
	require.NoError(t, err)

	require.NoError(t, p.CloseTarget("passthrough:///ledger-a"))
	require.NoError(t, p.CloseTarget("passthrough:///missing"))
	assert.Equal(t, 1, p.Len())

	require.NoError(t, p.Close())
	assert.Equal(t, 0, p.Len())
}
