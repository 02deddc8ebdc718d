package http

import (
	"context"
	"sync"
	"time"

	"github.com/assetnote/fetchgo/pkg/log"
	"github.com/hashicorp/go-multierror"
)

// unboundedMaxPerHost stands in for "no real limit" when MaxPerHost
// is left unset. tokens is a buffered channel of zero-size elements
// pre-filled to this capacity, so it must stay small enough that the
// pre-fill loop in NewPool is effectively instant; no realistic
// single-process pool needs more concurrent agents to one origin than
// this.
const unboundedMaxPerHost = 1 << 16

// PoolOptions bounds one origin's connection pool. The zero value
// matches the documented defaults: unbounded MaxPerHost, no retained
// idle agents, a 30s idle timeout.
type PoolOptions struct {
	MaxPerHost     int
	MaxIdlePerHost int
	IdleTimeout    time.Duration
	AgentOptions   AgentOptions
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxPerHost <= 0 {
		o.MaxPerHost = unboundedMaxPerHost
	}
	if o.MaxIdlePerHost < 0 {
		o.MaxIdlePerHost = 0
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Second
	}
	return o
}

func (o PoolOptions) evictionInterval() time.Duration {
	if o.IdleTimeout < 10*time.Second {
		return o.IdleTimeout
	}
	return 10 * time.Second
}

// pooledAgent pairs an Agent with the bookkeeping the pool needs to
// evict it: the moment it last went idle.
type pooledAgent struct {
	agent      *Agent
	lastIdleAt time.Time
}

// Pool holds every live agent bound to one origin, handing out a free
// (or freshly created, up to MaxPerHost) agent per Send and queuing
// callers, in FIFO order, when the pool is saturated. Idle agents
// past IdleTimeout are evicted on a periodic sweep. Agent creation is
// bounded by a token semaphore: one buffered-channel token per
// MaxPerHost slot.
type Pool struct {
	origin Origin
	opts   PoolOptions

	mu      sync.Mutex
	agents  []*pooledAgent
	waiters []chan *Agent

	tokens chan struct{} // one token per MaxPerHost slot

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPool creates a pool bound to origin. Call Close when done with
// it to stop the eviction goroutine.
func NewPool(origin Origin, opts PoolOptions) *Pool {
	opts = opts.withDefaults()
	tokens := make(chan struct{}, opts.MaxPerHost)
	for i := 0; i < opts.MaxPerHost; i++ {
		tokens <- struct{}{}
	}
	p := &Pool{
		origin: origin,
		opts:   opts,
		tokens: tokens,
		closed: make(chan struct{}),
	}
	go p.evictLoop()
	return p
}

// Origin returns the origin this pool is bound to.
func (p *Pool) Origin() Origin { return p.origin }

// Acquire returns an idle agent for this origin, creating one if the
// pool has spare capacity under MaxPerHost, or blocking in FIFO order
// until one is released if it's saturated. Acquire unblocks early
// with ctx's error if ctx is cancelled first.
func (p *Pool) Acquire(ctx context.Context) (*Agent, error) {
	if a := p.tryTakeIdle(); a != nil {
		return a, nil
	}

	select {
	case <-p.tokens:
		return p.spawn(), nil
	default:
	}

	wait := make(chan *Agent, 1)
	p.mu.Lock()
	p.waiters = append(p.waiters, wait)
	p.mu.Unlock()

	select {
	case a := <-wait:
		return a, nil
	case <-ctx.Done():
		p.dropWaiter(wait)
		return nil, ctx.Err()
	case <-p.closed:
		p.dropWaiter(wait)
		return nil, errPoolClosed
	}
}

func (p *Pool) dropWaiter(wait chan *Agent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == wait {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
	// A release already handed this waiter an agent in the race between
	// ctx.Done and the send; give that agent back to the pool instead
	// of leaking it.
	select {
	case a := <-wait:
		p.Release(a)
	default:
	}
}

func (p *Pool) tryTakeIdle() *Agent {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, pa := range p.agents {
		if pa.agent.IsIdle() {
			p.agents = append(p.agents[:i], p.agents[i+1:]...)
			return pa.agent
		}
	}
	return nil
}

func (p *Pool) spawn() *Agent {
	agent := NewAgent(p.origin, p.opts.AgentOptions)
	return agent
}

// Release returns agent to the pool. If FIFO waiters are queued, the
// agent is handed directly to the oldest one rather than going
// through the idle list.
func (p *Pool) Release(agent *Agent) {
	p.mu.Lock()
	if len(p.waiters) > 0 {
		wait := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		wait <- agent
		return
	}
	if len(p.agents) >= p.opts.MaxIdlePerHost {
		p.mu.Unlock()
		agent.Close()
		p.tokens <- struct{}{}
		return
	}
	p.agents = append(p.agents, &pooledAgent{agent: agent, lastIdleAt: nowFunc()})
	p.mu.Unlock()
}

// discard permanently removes agent from the pool without returning
// its token slot to a waiter — used when a dead/erroring agent must
// not be handed out again but the pool should still allow a fresh
// connection to take its place.
func (p *Pool) discard(agent *Agent) {
	agent.Close()
	p.mu.Lock()
	hadWaiters := len(p.waiters) > 0
	p.mu.Unlock()
	if hadWaiters {
		// a replacement is needed immediately: spawn one and hand it to
		// the oldest waiter in place of the discarded agent.
		p.Release(p.spawn())
		return
	}
	p.tokens <- struct{}{}
}

// Close force-closes every pooled agent and stops the eviction loop.
// Per-agent close failures are aggregated into one *multierror.Error.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	p.mu.Lock()
	agents := p.agents
	p.agents = nil
	p.mu.Unlock()
	var merr *multierror.Error
	for _, pa := range agents {
		if err := pa.agent.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// Len reports how many agents (idle or busy) the pool currently owns.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts.MaxPerHost - len(p.tokens) // a token is taken per spawn and returned when an agent is destroyed
}

func (p *Pool) evictLoop() {
	ticker := time.NewTicker(p.opts.evictionInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.evictExpired()
		case <-p.closed:
			return
		}
	}
}

func (p *Pool) evictExpired() {
	now := nowFunc()
	var expired []*pooledAgent

	p.mu.Lock()
	kept := p.agents[:0]
	for _, pa := range p.agents {
		if now.Sub(pa.lastIdleAt) >= p.opts.IdleTimeout {
			expired = append(expired, pa)
		} else {
			kept = append(kept, pa)
		}
	}
	p.agents = kept
	p.mu.Unlock()

	for _, pa := range expired {
		pa.agent.Close()
		p.tokens <- struct{}{}
		log.Debug().Str("origin", p.origin.String()).Msg("evicted idle agent")
	}
}

// nowFunc is a var, not a direct time.Now call, so tests can freeze
// the clock when exercising IdleTimeout eviction.
var nowFunc = time.Now

var errPoolClosed = poolClosedError{}

type poolClosedError struct{}

func (poolClosedError) Error() string { return "pool is closed" }
