package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllJobs(t *testing.T) {
	pool := NewPool(context.Background(), 3, nil)
	pool.Start()

	var done int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func(_ context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		}))
	}
	pool.Wait()

	assert.Equal(t, int32(10), atomic.LoadInt32(&done))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(context.Background(), 2, nil)
	pool.Start()

	var inFlight, peak int32
	for i := 0; i < 8; i++ {
		require.NoError(t, pool.Submit(func(_ context.Context) error {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil
		}))
	}
	pool.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPoolWaitReleasesDerivedContext(t *testing.T) {
	pool := NewPool(context.Background(), 2, nil)
	pool.Start()

	var mu sync.Mutex
	var jobCtx context.Context
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		mu.Lock()
		jobCtx = ctx
		mu.Unlock()
		return nil
	}))
	pool.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, jobCtx)
	assert.ErrorIs(t, jobCtx.Err(), context.Canceled)
}

func TestPoolParentCancelStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 2, nil)
	pool.Start()

	started := make(chan struct{})
	require.NoError(t, pool.Submit(func(jobCtx context.Context) error {
		close(started)
		<-jobCtx.Done()
		return jobCtx.Err()
	}))

	<-started
	cancel()
	pool.Wait()
}
