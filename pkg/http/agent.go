package http

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	pkgcontext "github.com/assetnote/fetchgo/pkg/context"
	errors2 "github.com/assetnote/fetchgo/pkg/errors"
	"github.com/assetnote/fetchgo/pkg/log"
	"github.com/segmentio/ksuid"
)

// DialFunc overrides how an Agent opens its socket. Tests inject a
// fake dialer to exercise the state machine against an in-memory
// pipe instead of a real socket.
type DialFunc func(ctx context.Context, origin Origin) (net.Conn, error)

// AgentOptions configures a single Agent. There is deliberately no
// redirect-following setting: this engine never auto-follows
// redirects, so that decision belongs entirely to the caller (or the
// CLI built on top of this package).
type AgentOptions struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLSConfig    *tls.Config
	Dial         DialFunc
}

func (o AgentOptions) withDefaults() AgentOptions {
	if o.DialTimeout == 0 {
		o.DialTimeout = 10 * time.Second
	}
	return o
}

// Agent owns one TCP or TLS socket, serializes exactly one in-flight
// request/response, and ties the socket's lifetime to response-body
// consumption.
type Agent struct {
	origin Origin
	id     string
	opts   AgentOptions

	mu          sync.Mutex
	busyFlag    bool
	conn        net.Conn
	br          *bufio.Reader
	idleSignal  chan struct{}
	localCancel context.CancelFunc

	// pendingReusable is the reuse decision computed once the response
	// head is known; completeRequest combines it with
	// whether teardown was forced by cancellation/error/finalizer.
	pendingReusable bool

	// reqGen identifies the request currently bound to the agent;
	// completeRequest no-ops against a stale generation.
	// bodyDoneOnce collapses the chunked decoder's trailer-complete
	// signal and the Body's own onDone into a single effective call for
	// the request reqGen identifies — both are reset at the top of
	// Send.
	reqGen       int64
	bodyDoneOnce int32
}

// NewAgent creates an idle agent bound to origin. The socket is not
// opened until the first Send.
func NewAgent(origin Origin, opts AgentOptions) *Agent {
	idle := make(chan struct{})
	close(idle)
	return &Agent{
		origin:     origin,
		id:         ksuid.New().String(),
		opts:       opts.withDefaults(),
		idleSignal: idle,
	}
}

// Origin returns the origin this agent is bound to.
func (a *Agent) Origin() Origin { return a.origin }

// ID returns the agent's correlation id, used only in trace logs to
// show which requests shared a reused socket.
func (a *Agent) ID() string { return a.id }

// Hostname and Port expose the bound origin's fields.
func (a *Agent) Hostname() string { return a.origin.Hostname }
func (a *Agent) Port() int        { return a.origin.Port }

// IsIdle reports the agent's current state without blocking.
func (a *Agent) IsIdle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.busyFlag
}

// WhenIdle returns a channel that is closed on the agent's next IDLE
// transition; already-closed if the agent is currently idle.
func (a *Agent) WhenIdle() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.idleSignal
}

// isAlive reports whether the agent still owns an open socket.
func (a *Agent) isAlive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

// Close force-closes the socket if one is open. Used by the pool on
// eviction/shutdown.
func (a *Agent) Close() error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Send dispatches req on this agent. It fails synchronously with
// AgentBusy, without touching the socket, if the agent is not IDLE.
func (a *Agent) Send(req *Request) (*Response, error) {
	a.mu.Lock()
	if a.busyFlag {
		a.mu.Unlock()
		return nil, errors2.New(errors2.AgentBusy, "agent is already processing a request")
	}
	a.busyFlag = true
	a.idleSignal = make(chan struct{})
	a.reqGen++
	gen := a.reqGen
	atomic.StoreInt32(&a.bodyDoneOnce, 0)
	localCtx, localCancel := context.WithCancel(context.Background())
	a.localCancel = localCancel
	a.mu.Unlock()

	resp, err := a.send(localCtx, req, gen)
	if err != nil {
		a.completeRequest(gen, true, err)
		return nil, err
	}
	return resp, nil
}

func (a *Agent) send(localCtx context.Context, req *Request, gen int64) (*Response, error) {
	origin, u, err := OriginFromURL(req.URL)
	if err != nil {
		return nil, err
	}
	if !origin.Equal(a.origin) {
		return nil, errors2.New(errors2.OriginMismatch, "request origin "+origin.String()+" does not match agent origin "+a.origin.String())
	}

	callerCtx := req.Cancel
	if callerCtx == nil {
		callerCtx = context.Background()
	}
	pkgCtx, cancelMerged := pkgcontext.OrCancel(callerCtx, localCtx)
	defer cancelMerged()

	if err := a.ensureConnected(pkgCtx); err != nil {
		return nil, errors2.Wrap(errors2.ConnectionClosed, "connecting to "+a.origin.String(), err)
	}

	aborted := make(chan struct{})
	writeDone := make(chan struct{})
	go func() {
		select {
		case <-pkgCtx.Done():
			close(aborted)
			a.forceCloseConn()
		case <-writeDone:
		}
	}()

	bw := bufio.NewWriter(a.conn)
	writeErr := serializeRequest(bw, req, origin, u)
	close(writeDone)
	if writeErr != nil {
		select {
		case <-aborted:
			return nil, errors2.New(errors2.Aborted, "request aborted during write")
		default:
		}
		a.forceCloseConn()
		return nil, errors2.Wrap(errors2.ConnectionClosed, "writing request", writeErr)
	}

	head, err := parseResponseHead(a.br)
	if err != nil {
		select {
		case <-pkgCtx.Done():
			a.forceCloseConn()
			return nil, errors2.New(errors2.Aborted, "request aborted during response parse")
		default:
		}
		a.forceCloseConn()
		if kind, ok := errors2.KindOf(err); ok && kind == errors2.ConnectionClosed {
			return nil, err
		}
		return nil, errors2.Wrap(errors2.ConnectionClosed, "connection closed before status line", err)
	}

	headers := head.Headers
	framed, err := buildFramedBody(a.br, req.Method, head.Status, &headers, func(forced bool, berr error) {
		a.onBodyDone(gen, forced, berr)
	})
	if err != nil {
		a.forceCloseConn()
		return nil, err
	}

	reusable := framed.Reusable
	select {
	case <-pkgCtx.Done():
		reusable = false
	default:
	}
	a.mu.Lock()
	a.pendingReusable = reusable
	a.mu.Unlock()

	contentType, _ := headers.Get("content-type")
	body := newBody(contentType, framed.Reader, func(forced bool, berr error) {
		a.onBodyDone(gen, forced, berr)
	})

	resp := &Response{
		HTTPVersion: head.Version,
		StatusCode:  head.Status,
		StatusText:  head.Text,
		Headers:     headers,
		URL:         req.URL,
		body:        body,
	}

	// An empty-framed response (HEAD, 1xx, 204, 304) has no body bytes
	// coming, so nothing will ever call Read or a materializer to drive
	// completion. Fire it here instead, so the agent returns to IDLE
	// immediately rather than waiting on a caller who may never touch
	// the body.
	if classifyBodyFraming(req.Method, head.Status, headers) == framingEmpty {
		body.finish(false, nil)
	}

	// Finalizer backstop: if the response is reclaimed by the GC
	// without the body ever having been drained or cancelled, force
	// close the connection.
	runtime.SetFinalizer(resp, func(r *Response) {
		r.body.forceClose()
	})

	log.Trace().Str("agent", a.id).Object("response", resp).Msg("received response head")

	return resp, nil
}

// onBodyDone is the agent's single entry point for the body's onDone
// fan-in, shared by the chunked decoder's own trailer-complete signal
// and the Body's own onDone — for a chunked response both fire (the
// trailer read produces the io.EOF the Body sees), so bodyDoneOnce
// collapses them to a single effective call per request, reset at the
// top of Send.
func (a *Agent) onBodyDone(gen int64, forced bool, err error) {
	if !atomic.CompareAndSwapInt32(&a.bodyDoneOnce, 0, 1) {
		return
	}
	reusable := a.pendingReusableSnapshot() && !forced
	a.completeRequest(gen, reusable, err)
}

func (a *Agent) pendingReusableSnapshot() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingReusable
}

// completeRequest closes the socket if not reusable, then transitions
// the agent to IDLE and resolves whenIdle waiters. gen must match the
// generation Send assigned to the request completeRequest was scoped
// to; a stale gen (a late call surviving past the request it belonged
// to, racing a subsequent Send) is a no-op.
func (a *Agent) completeRequest(gen int64, reusable bool, err error) {
	a.mu.Lock()
	if a.reqGen != gen {
		a.mu.Unlock()
		return
	}
	if !reusable && a.conn != nil {
		a.conn.Close()
		a.conn = nil
		a.br = nil
	}
	a.busyFlag = false
	a.localCancel = nil
	signal := a.idleSignal
	a.mu.Unlock()

	select {
	case <-signal:
		// already closed (shouldn't happen, but keep completeRequest idempotent)
	default:
		close(signal)
	}

	if err != nil {
		log.Debug().Str("agent", a.id).Err(err).Msg("request completed with error")
	}
}

func (a *Agent) forceCloseConn() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.br = nil
	a.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// ensureConnected lazily dials on the first Send, using TLS for secure
// origins.
func (a *Agent) ensureConnected(ctx context.Context) error {
	a.mu.Lock()
	already := a.conn != nil
	a.mu.Unlock()
	if already {
		return nil
	}

	var (
		conn net.Conn
		err  error
	)
	if a.opts.Dial != nil {
		conn, err = a.opts.Dial(ctx, a.origin)
	} else {
		conn, err = a.defaultDial(ctx)
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.conn = conn
	a.br = bufio.NewReader(conn)
	a.mu.Unlock()
	return nil
}

func (a *Agent) defaultDial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: a.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", a.origin.dialAddress())
	if err != nil {
		return nil, err
	}
	if !a.origin.IsSecure() {
		return conn, nil
	}
	tlsConfig := a.opts.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: a.origin.Hostname}
	} else if tlsConfig.ServerName == "" {
		clone := tlsConfig.Clone()
		clone.ServerName = a.origin.Hostname
		tlsConfig = clone
	}
	tlsConn := tls.Client(conn, tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

