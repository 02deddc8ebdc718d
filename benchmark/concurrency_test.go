package benchmark

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	fetchhttp "github.com/assetnote/fetchgo/pkg/http"
	"github.com/stretchr/testify/assert"
)

type loadCase struct {
	name            string
	parallelHosts   int
	connPerHost     int
	acquiresPerConn int
}

var loadCases = []loadCase{
	{"simple", 10, 5, 10},
	{"larger", 100, 5, 10},
}

// runPoolLoad spins up parallelHosts independent Pools (one per
// synthetic origin), each with connPerHost slots, and drives
// connPerHost goroutines per pool through acquiresPerConn
// Acquire/Release cycles. No socket is ever dialed — Acquire only
// spawns an Agent, it doesn't connect one — so this isolates the
// pool's own token/waiter bookkeeping from network latency.
func runPoolLoad(lc loadCase) int32 {
	var (
		wg    sync.WaitGroup
		total int32
	)
	for h := 0; h < lc.parallelHosts; h++ {
		origin := fetchhttp.Origin{Scheme: "http", Hostname: fmt.Sprintf("host-%d.example.com", h), Port: 80}
		pool := fetchhttp.NewPool(origin, fetchhttp.PoolOptions{
			MaxPerHost:     lc.connPerHost,
			MaxIdlePerHost: lc.connPerHost,
			IdleTimeout:    time.Minute,
		})

		wg.Add(1)
		go func(pool *fetchhttp.Pool) {
			defer wg.Done()
			defer pool.Close()

			var connWg sync.WaitGroup
			for c := 0; c < lc.connPerHost; c++ {
				connWg.Add(1)
				go func() {
					defer connWg.Done()
					for a := 0; a < lc.acquiresPerConn; a++ {
						agent, err := pool.Acquire(context.Background())
						if err != nil {
							continue
						}
						atomic.AddInt32(&total, 1)
						pool.Release(agent)
					}
				}()
			}
			connWg.Wait()
		}(pool)
	}
	wg.Wait()
	return total
}

func BenchmarkPoolAcquireRelease(b *testing.B) {
	for _, lc := range loadCases {
		b.Run(lc.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				runPoolLoad(lc)
			}
		})
	}
}

func TestPoolAcquireReleaseUnderLoad(t *testing.T) {
	for _, lc := range loadCases {
		lc := lc
		t.Run(lc.name, func(t *testing.T) {
			total := runPoolLoad(lc)
			expected := int32(lc.parallelHosts * lc.connPerHost * lc.acquiresPerConn)
			assert.Equal(t, expected, total)
		})
	}
}
