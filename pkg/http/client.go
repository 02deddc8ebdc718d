package http

import (
	"context"
	"sync"

	errors2 "github.com/assetnote/fetchgo/pkg/errors"
)

// ClientOptions configures every pool a Client creates, applied
// uniformly across origins.
type ClientOptions struct {
	PoolOptions PoolOptions
}

// Client is the caller-facing entry point: a fetch-compatible Fetch
// method backed by one Pool per origin, created lazily on first use.
// Redirects are surfaced on the Response, never auto-followed — the
// caller decides whether and how to chase a Location header.
type Client struct {
	opts ClientOptions

	mu    sync.Mutex
	pools map[string]*Pool

	closeOnce sync.Once
}

// NewClient creates a Client with the given options.
func NewClient(opts ClientOptions) *Client {
	return &Client{
		opts:  opts,
		pools: make(map[string]*Pool),
	}
}

// Fetch sends req, acquiring an agent from the origin-keyed pool and
// returning it once the response is either fully drained or
// cancelled. The request's URL determines which pool backs it; a new
// pool is created lazily the first time an origin is seen.
func (c *Client) Fetch(req *Request) (*Response, error) {
	origin, _, err := OriginFromURL(req.URL)
	if err != nil {
		return nil, err
	}

	pool := c.poolFor(origin)

	ctx := req.Cancel
	if ctx == nil {
		ctx = context.Background()
	}
	agent, err := pool.Acquire(ctx)
	if err != nil {
		return nil, errors2.Wrap(errors2.Aborted, "acquiring connection for "+origin.String(), err)
	}

	resp, err := agent.Send(req)
	if err != nil {
		if agent.IsIdle() {
			pool.Release(agent)
		} else {
			pool.discard(agent)
		}
		return nil, err
	}

	// The agent returns to IDLE on its own once the body finishes (see
	// Agent.onBodyDone); release it back to the pool as soon as that
	// happens rather than blocking Fetch on body consumption.
	go func() {
		<-agent.WhenIdle()
		pool.Release(agent)
	}()

	return resp, nil
}

func (c *Client) poolFor(origin Origin) *Pool {
	key := origin.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pools[key]; ok {
		return p
	}
	p := NewPool(origin, c.opts.PoolOptions)
	c.pools[key] = p
	return p
}

// PoolStats describes one origin's current pool occupancy, exposed
// for callers (e.g. a CLI status command) that want visibility into
// connection reuse without reaching into package internals.
type PoolStats struct {
	Origin string
	Active int
}

// Stats returns a snapshot of every origin this client has opened a
// pool for.
func (c *Client) Stats() []PoolStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := make([]PoolStats, 0, len(c.pools))
	for key, p := range c.pools {
		stats = append(stats, PoolStats{Origin: key, Active: p.Len()})
	}
	return stats
}

// Close shuts down every pool this client owns. Safe to call more
// than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		pools := c.pools
		c.pools = nil
		c.mu.Unlock()
		for _, p := range pools {
			p.Close()
		}
	})
	return nil
}
