// Package wsclient maintains one persistent WebSocket connection per
// endpoint: writes issued while disconnected are queued in order, and
// abnormal closures trigger reconnection with full-jitter backoff.
package wsclient

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/askanalytics/opsctl/internal/metrics"
)

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateClosedAbnormally
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateClosedAbnormally:
		return "closed-abnormally"
	}
	return "unknown"
}

// Conn is the transport surface the client needs. *websocket.Conn
// satisfies it; tests may substitute their own. WriteControl must be
// safe to call concurrently with WriteMessage, as gorilla's is.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer opens a connection to a WebSocket URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type gorillaDialer struct{}

func (gorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Option configures a Client.
type Option func(*Client)

// WithDialer substitutes the transport, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithReconnectDelay sets a fixed reconnect delay, bypassing the
// full-jitter algorithm entirely.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.fixedDelay = d; c.hasFixedDelay = true }
}

// WithHooks installs the lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(c *Client) { c.hooks = h }
}

// Client owns one connection's full state: the FSM state, the retry
// counter and the pending queue are all fields of this one struct,
// guarded by a single mutex. A generation counter invalidates reader
// and writer goroutines and reconnect timers from earlier sessions, so
// a cleared session can never be resurrected by a stale callback.
//
// All writes go through one writer goroutine per connection, which
// pops the pending queue in order; Send only ever appends. That gives
// strict FIFO delivery of queued messages ahead of later sends with no
// concurrent writers on the underlying conn.
type Client struct {
	url    string
	dialer Dialer
	hooks  Hooks

	fixedDelay    time.Duration
	hasFixedDelay bool

	mu         sync.Mutex
	cond       *sync.Cond
	state      State
	retryCount int
	pending    [][]byte
	conn       Conn
	gen        uint64
	timer      *time.Timer
}

func New(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		dialer: gorillaDialer{},
		state:  StateIdle,
	}
	c.cond = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect begins a fresh connection sequence. This is the only
// operation that resets the retry counter; a successful handshake
// after backoff deliberately does not (see reconnect). Calling Connect
// supersedes any previous session.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	old := c.teardownLocked()
	c.retryCount = 0
	c.state = StateConnecting
	gen := c.gen
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	go c.dial(ctx, gen)
}

// Send enqueues msg for transmission. It never blocks and never
// fails: while the connection is not open the message simply waits in
// the queue, in order, for the next open. A BeforeSend veto drops the
// message entirely.
func (c *Client) Send(msg []byte) {
	if !c.hooks.allowSend(msg) {
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending, msg)
	depth := len(c.pending)
	c.mu.Unlock()
	metrics.SetSocketQueueDepth(c.url, depth)
	c.cond.Signal()
}

// Close ends the session cleanly. Closed is terminal: no reconnect is
// scheduled, any pending reconnect timer is cancelled, and only a new
// Connect call restarts the cycle.
func (c *Client) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	conn := c.teardownLocked()
	c.state = StateClosed
	c.mu.Unlock()

	if conn != nil {
		// WriteControl is concurrency-safe against an in-flight write.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	c.hooks.closed(nil, false)
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RetryCount returns the abnormal-closure counter.
func (c *Client) RetryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

// Pending returns the number of queued outbound messages.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// teardownLocked invalidates the running session: bumps the
// generation, stops any reconnect timer, detaches and returns the conn
// for the caller to close outside the lock, and wakes the writer so it
// can observe the stale generation and exit. Caller holds c.mu.
func (c *Client) teardownLocked() Conn {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.cond.Broadcast()
	return conn
}

func (c *Client) dial(ctx context.Context, gen uint64) {
	conn, err := c.dialer.Dial(ctx, c.url)

	c.mu.Lock()
	if gen != c.gen || c.state != StateConnecting {
		// Session was closed or superseded while the dial was in flight.
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.hooks.errored(err)
		c.handleAbnormalClose(gen, err)
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.hooks.opened()
	go c.writeLoop(conn, gen)
	go c.readLoop(conn, gen)
}

// writeLoop is the single writer for one connection. It drains the
// pending queue head-first, which covers both the backlog accumulated
// while disconnected and messages sent while open, in call order.
func (c *Client) writeLoop(conn Conn, gen uint64) {
	c.mu.Lock()
	for {
		for gen == c.gen && c.state == StateOpen && len(c.pending) == 0 {
			c.cond.Wait()
		}
		if gen != c.gen || c.state != StateOpen {
			c.mu.Unlock()
			return
		}
		msg := c.pending[0]
		c.pending = c.pending[1:]
		depth := len(c.pending)
		c.mu.Unlock()

		metrics.SetSocketQueueDepth(c.url, depth)
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// The message never hit the wire; put it back at the head
			// for the next connection.
			c.mu.Lock()
			if gen == c.gen {
				c.pending = append([][]byte{msg}, c.pending...)
			}
			c.mu.Unlock()
			c.hooks.errored(err)
			c.handleAbnormalClose(gen, err)
			return
		}
		c.hooks.sent(msg)
		c.mu.Lock()
	}
}

func (c *Client) readLoop(conn Conn, gen uint64) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := gen != c.gen
			c.mu.Unlock()
			if stale {
				return // we initiated the close; nothing to do
			}
			c.hooks.errored(err)
			c.handleAbnormalClose(gen, err)
			return
		}
		c.hooks.deliver(msg)
	}
}

// handleAbnormalClose implements the closed-abnormally transition:
// bump the retry counter, notify, and schedule exactly one reconnect.
// The generation and state checks make it a no-op when the session was
// cleared or another path got here first, so concurrent read and write
// failures schedule a single attempt.
func (c *Client) handleAbnormalClose(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateOpen && c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.state = StateClosedAbnormally
	delay := c.nextDelayLocked()
	c.retryCount++
	timerGen := c.gen
	c.timer = time.AfterFunc(delay, func() { c.reconnect(timerGen) })
	c.cond.Broadcast()
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.hooks.closed(cause, true)
	metrics.IncSocketReconnect(c.url)
}

// nextDelayLocked computes the reconnect delay: the per-client fixed
// override when set, otherwise full jitter over the current retry
// count. Caller holds c.mu.
func (c *Client) nextDelayLocked() time.Duration {
	if c.hasFixedDelay {
		return c.fixedDelay
	}
	return fullJitterDelay(c.retryCount)
}

// reconnect is the deferred callback scheduled by handleAbnormalClose.
// The retry counter is intentionally not reset by the successful
// handshake that may follow: only an explicit Connect does that, so a
// link that flaps keeps its long delays.
func (c *Client) reconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateClosedAbnormally {
		// Session cleared by Close or a new Connect before the timer
		// fired.
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.state = StateConnecting
	c.mu.Unlock()
	go c.dial(context.Background(), gen)
}
