package http

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testOrigin() Origin {
	return Origin{Scheme: "http", Hostname: "example.com", Port: 80}
}

func TestPool_AcquireReleaseReusesAgent(t *testing.T) {
	pool := NewPool(testOrigin(), PoolOptions{MaxPerHost: 2, MaxIdlePerHost: 2, IdleTimeout: time.Minute})
	defer pool.Close()

	a1, err := pool.Acquire(context.Background())
	assert.NoError(t, err)
	pool.Release(a1)

	a2, err := pool.Acquire(context.Background())
	assert.NoError(t, err)

	assert.Same(t, a1, a2)
}

func TestPool_AcquireSpawnsUpToMaxPerHost(t *testing.T) {
	pool := NewPool(testOrigin(), PoolOptions{MaxPerHost: 2, MaxIdlePerHost: 2, IdleTimeout: time.Minute})
	defer pool.Close()

	a1, err := pool.Acquire(context.Background())
	assert.NoError(t, err)
	a2, err := pool.Acquire(context.Background())
	assert.NoError(t, err)
	assert.NotSame(t, a1, a2)
	assert.Equal(t, 2, pool.Len())
}

func TestPool_AcquireBlocksWhenSaturatedAndUnblocksOnRelease(t *testing.T) {
	pool := NewPool(testOrigin(), PoolOptions{MaxPerHost: 1, MaxIdlePerHost: 1, IdleTimeout: time.Minute})
	defer pool.Close()

	a1, err := pool.Acquire(context.Background())
	assert.NoError(t, err)

	var (
		wg       sync.WaitGroup
		acquired *Agent
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		a, err := pool.Acquire(context.Background())
		assert.NoError(t, err)
		acquired = a
	}()

	// give the waiter goroutine a chance to enqueue before releasing.
	time.Sleep(20 * time.Millisecond)
	pool.Release(a1)
	wg.Wait()

	assert.Same(t, a1, acquired)
}

func TestPool_AcquireRespectsContextCancellation(t *testing.T) {
	pool := NewPool(testOrigin(), PoolOptions{MaxPerHost: 1, MaxIdlePerHost: 1, IdleTimeout: time.Minute})
	defer pool.Close()

	_, err := pool.Acquire(context.Background())
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.Error(t, err)
}

func TestPool_EvictExpiredClosesIdleAgentsPastTimeout(t *testing.T) {
	pool := NewPool(testOrigin(), PoolOptions{MaxPerHost: 1, MaxIdlePerHost: 1, IdleTimeout: 10 * time.Millisecond})
	defer pool.Close()

	a1, err := pool.Acquire(context.Background())
	assert.NoError(t, err)
	pool.Release(a1)

	nowFunc = func() time.Time { return time.Now().Add(time.Hour) }
	defer func() { nowFunc = time.Now }()

	pool.evictExpired()
	assert.Equal(t, 0, pool.Len())

	// a fresh Acquire should spawn a new agent rather than reusing the
	// evicted one, since its token slot was returned.
	a2, err := pool.Acquire(context.Background())
	assert.NoError(t, err)
	assert.NotSame(t, a1, a2)
}
