package keylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	m := New()
	h, err := m.Acquire(context.Background(), "2000000000")
	require.NoError(t, err)
	assert.Equal(t, "2000000000", h.Key())
	assert.Equal(t, 1, m.Len())

	h.Release()
	h.Release() // 重複釋放不影響
	assert.Equal(t, 0, m.Len())
}

func TestSameKeySerialises(t *testing.T) {
	m := New()
	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := m.Acquire(context.Background(), "same")
			if !assert.NoError(t, err) {
				return
			}
			defer h.Release()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.Len())
}

func TestDifferentKeysRunInParallel(t *testing.T) {
	m := New(WithTimeout(time.Second))
	a, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer a.Release()

	b, err := m.Acquire(context.Background(), "b")
	require.NoError(t, err)
	b.Release()
}

func TestAcquireTimeout(t *testing.T) {
	m := New(WithTimeout(50 * time.Millisecond))
	h, err := m.Acquire(context.Background(), "busy")
	require.NoError(t, err)

	start := time.Now()
	_, err = m.Acquire(context.Background(), "busy")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// 等待者放棄後只剩持有者
	assert.Equal(t, 1, m.Len())
	h.Release()
	assert.Equal(t, 0, m.Len())
}

func TestAcquireContextCancelled(t *testing.T) {
	m := New(WithTimeout(time.Second))
	h, err := m.Acquire(context.Background(), "busy")
	require.NoError(t, err)
	defer h.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Acquire(ctx, "busy")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFIFOOrder(t *testing.T) {
	m := New(WithTimeout(time.Second))
	first, err := m.Acquire(context.Background(), "fifo")
	require.NoError(t, err)

	var mu sync.Mutex
	order := make([]int, 0, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			h, err := m.Acquire(context.Background(), "fifo")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, idx)
			mu.Unlock()
			h.Release()
		}(i)
		// 讓等待者依序排隊
		time.Sleep(20 * time.Millisecond)
	}

	first.Release()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2}, order)
}
