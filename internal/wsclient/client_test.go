package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu        sync.Mutex
	writes    [][]byte
	writeErr  error
	inbound   chan []byte
	readErrCh chan error
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:   make(chan []byte, 16),
		readErrCh: make(chan error, 1),
		done:      make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-f.inbound:
		return websocket.TextMessage, msg, nil
	case err := <-f.readErrCh:
		return 0, nil, err
	case <-f.done:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeConn) failReads(err error) { f.readErrCh <- err }

func (f *fakeConn) setWriteErr(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

func (f *fakeConn) sentFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
}

type dialResult struct {
	conn *fakeConn
	err  error
}

type fakeDialer struct {
	mu     sync.Mutex
	script []dialResult
	dials  int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.script) == 0 {
		return nil, errors.New("no scripted connection left")
	}
	r := d.script[0]
	d.script = d.script[1:]
	if r.err != nil {
		return nil, r.err
	}
	return r.conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "closed-abnormally", StateClosedAbnormally.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestSendQueuesWhileIdle(t *testing.T) {
	c := New("ws://unused")
	c.Send([]byte("a"))
	c.Send([]byte("b"))
	assert.Equal(t, 2, c.Pending())
	assert.Equal(t, StateIdle, c.State())
}

func TestConnectDrainsQueueInOrder(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{script: []dialResult{{conn: conn}}}
	c := New("ws://test", WithDialer(d))
	t.Cleanup(c.Close)

	c.Send([]byte("a"))
	c.Send([]byte("b"))
	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, 5*time.Millisecond)
	c.Send([]byte("c"))

	require.Eventually(t, func() bool { return len(conn.sentFrames()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, conn.sentFrames())
	assert.Equal(t, 0, c.Pending())
}

func TestBeforeSendVetoDropsMessage(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{script: []dialResult{{conn: conn}}}
	c := New("ws://test",
		WithDialer(d),
		WithHooks(Hooks{BeforeSend: func(msg []byte) bool { return string(msg) != "secret" }}))
	t.Cleanup(c.Close)

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, 5*time.Millisecond)

	c.Send([]byte("secret"))
	c.Send([]byte("public"))
	require.Eventually(t, func() bool { return len(conn.sentFrames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"public"}, conn.sentFrames())
	assert.Equal(t, 0, c.Pending())
}

func TestBeforeMessageVetoSkipsDelivery(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{script: []dialResult{{conn: conn}}}
	got := make(chan string, 4)
	c := New("ws://test",
		WithDialer(d),
		WithHooks(Hooks{
			BeforeMessage: func(msg []byte) bool { return string(msg) != "spam" },
			OnMessage:     func(msg []byte) { got <- string(msg) },
		}))
	t.Cleanup(c.Close)

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, 5*time.Millisecond)

	conn.inbound <- []byte("spam")
	conn.inbound <- []byte("news")
	select {
	case msg := <-got:
		assert.Equal(t, "news", msg)
	case <-time.After(time.Second):
		t.Fatal("inbound message never delivered")
	}
}

func TestAbnormalCloseReconnectsAndKeepsRetryCount(t *testing.T) {
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	d := &fakeDialer{script: []dialResult{{conn: conn1}, {conn: conn2}}}

	var closedAbnormal int
	var mu sync.Mutex
	c := New("ws://test",
		WithDialer(d),
		WithReconnectDelay(10*time.Millisecond),
		WithHooks(Hooks{ConnectionClosed: func(err error, abnormal bool) {
			mu.Lock()
			if abnormal {
				closedAbnormal++
			}
			mu.Unlock()
		}}))
	t.Cleanup(c.Close)

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, 5*time.Millisecond)

	conn1.failReads(errors.New("connection reset"))
	require.Eventually(t, func() bool {
		return c.State() == StateOpen && d.dialCount() == 2
	}, time.Second, 5*time.Millisecond)

	// The counter survives the successful reconnect; only an explicit
	// Connect clears it.
	assert.Equal(t, 1, c.RetryCount())
	mu.Lock()
	assert.Equal(t, 1, closedAbnormal)
	mu.Unlock()
}

func TestConnectResetsRetryCount(t *testing.T) {
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	d := &fakeDialer{script: []dialResult{{conn: conn1}, {conn: conn2}}}
	c := New("ws://test", WithDialer(d), WithReconnectDelay(5*time.Millisecond))
	t.Cleanup(c.Close)

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, 5*time.Millisecond)
	conn1.failReads(errors.New("reset"))
	require.Eventually(t, func() bool { return c.RetryCount() == 1 }, time.Second, 5*time.Millisecond)

	conn3 := newFakeConn()
	d.mu.Lock()
	d.script = append(d.script, dialResult{conn: conn3})
	d.mu.Unlock()
	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.RetryCount())
}

func TestWriteErrorRequeuesAndRetransmits(t *testing.T) {
	conn1 := newFakeConn()
	conn1.setWriteErr(errors.New("broken pipe"))
	conn2 := newFakeConn()
	d := &fakeDialer{script: []dialResult{{conn: conn1}, {conn: conn2}}}
	c := New("ws://test", WithDialer(d), WithReconnectDelay(10*time.Millisecond))
	t.Cleanup(c.Close)

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, 5*time.Millisecond)
	c.Send([]byte("keep-me"))

	require.Eventually(t, func() bool {
		frames := conn2.sentFrames()
		return len(frames) == 1 && frames[0] == "keep-me"
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, conn1.sentFrames())
}

func TestDialFailureBacksOffAndRetries(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{script: []dialResult{
		{err: errors.New("refused")},
		{err: errors.New("refused")},
		{conn: conn},
	}}
	c := New("ws://test", WithDialer(d), WithReconnectDelay(5*time.Millisecond))
	t.Cleanup(c.Close)

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, d.dialCount())
	assert.Equal(t, 2, c.RetryCount())
}

func TestCloseIsTerminal(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{script: []dialResult{{conn: conn}}}
	var abnormal []bool
	var mu sync.Mutex
	c := New("ws://test",
		WithDialer(d),
		WithReconnectDelay(5*time.Millisecond),
		WithHooks(Hooks{ConnectionClosed: func(err error, ab bool) {
			mu.Lock()
			abnormal = append(abnormal, ab)
			mu.Unlock()
		}}))

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateOpen }, time.Second, 5*time.Millisecond)
	c.Close()
	assert.Equal(t, StateClosed, c.State())

	// The reader observes the closed conn; no reconnect may follow.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 1, d.dialCount())
	mu.Lock()
	assert.Equal(t, []bool{false}, abnormal)
	mu.Unlock()

	c.Close() // second close is a no-op
	assert.Equal(t, StateClosed, c.State())
}

func TestCloseCancelsScheduledReconnect(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{err: errors.New("refused")}}}
	c := New("ws://test", WithDialer(d), WithReconnectDelay(50*time.Millisecond))

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == StateClosedAbnormally }, time.Second, 5*time.Millisecond)
	c.Close()

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 1, d.dialCount())
}

func TestEchoAgainstRealServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = ws.Close() }()
		for {
			mt, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	got := make(chan string, 1)
	c := New("ws"+strings.TrimPrefix(srv.URL, "http"),
		WithHooks(Hooks{OnMessage: func(msg []byte) { got <- string(msg) }}))
	c.Connect(context.Background())
	c.Send([]byte("hello"))

	select {
	case msg := <-got:
		assert.Equal(t, "hello", msg)
	case <-time.After(3 * time.Second):
		t.Fatal("no echo from server")
	}
	c.Close()
	assert.Equal(t, StateClosed, c.State())
}
