package dispatch

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"ursend/internal/endpoint"
	ncerr "ursend/internal/errors"
	"ursend/internal/metrics"
	"ursend/internal/status"
	"ursend/internal/testutil"
	"ursend/internal/transport"
	"ursend/util"
)

// ── helpers ──────────────────────────────────────────────────────────

// sink accepts one connection and returns everything read from it.
func sink(t *testing.T) (endpoint.Endpoint, <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	got := make(chan []byte, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		b, _ := io.ReadAll(c)
		got <- b
	}()

	return mustEndpoint(t, ln.Addr().(*net.TCPAddr).Port), got
}

func mustEndpoint(t *testing.T, port int) endpoint.Endpoint {
	t.Helper()
	ep, err := endpoint.Validate("127.0.0.1", strconv.Itoa(port))
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

func newDispatcher(d transport.Dialer) (*Dispatcher, *status.Reporter) {
	rep := status.New(nil)
	return &Dispatcher{
		Dialer:   d,
		Reporter: rep,
		Timeout:  2 * time.Second,
		Logger:   util.Discard(),
	}, rep
}

// fixedDialer hands out a prepared connection.
type fixedDialer struct{ conn net.Conn }

func (d fixedDialer) Dial(context.Context, string) (net.Conn, error) { return d.conn, nil }
func (d fixedDialer) Close() error                                   { return nil }

// blockingDialer never connects; it waits for the dial context.
type blockingDialer struct{}

func (blockingDialer) Dial(ctx context.Context, _ string) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingDialer) Close() error { return nil }

// fakeConn is a scripted net.Conn.  Write accepts at most chunk bytes
// per call and fails with failErr once failAfter bytes were taken.  If
// block is set, Write parks until Close.
type fakeConn struct {
	net.Conn

	chunk     int
	failAfter int
	failErr   error
	block     bool

	mu        sync.Mutex
	buf       []byte
	closed    chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func newFakeConn() *fakeConn {
	return &fakeConn{failAfter: -1, closed: make(chan struct{})}
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.block {
		<-c.closed
		return 0, net.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(p)
	if c.chunk > 0 && n > c.chunk {
		n = c.chunk
	}
	if c.failAfter >= 0 && len(c.buf)+n > c.failAfter {
		n = c.failAfter - len(c.buf)
		c.buf = append(c.buf, p[:n]...)
		return n, c.failErr
	}
	c.buf = append(c.buf, p[:n]...)
	return n, nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		if c.onClose != nil {
			c.onClose()
		}
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) RemoteAddr() net.Addr            { return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 30002} }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

// ── tests ────────────────────────────────────────────────────────────

func TestDispatch_DeliversBytesInOrder(t *testing.T) {
	ep, got := sink(t)
	d, rep := newDispatcher(&transport.TCPDialer{Timeout: 2 * time.Second})

	out := d.Dispatch(context.Background(), ep, []byte("hello"))
	if !out.OK() {
		t.Fatalf("dispatch failed: %v", out.Err)
	}
	if out.BytesSent != 5 {
		t.Errorf("BytesSent = %d, want 5", out.BytesSent)
	}

	select {
	case b := <-got:
		if string(b) != "hello" {
			t.Errorf("listener got %q, want %q", b, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener received nothing")
	}

	want := []string{
		"attempting to connect to " + ep.String(),
		"sending script (5 bytes)",
		"finished sending 5 bytes",
	}
	lines := rep.Lines()
	if len(lines) != len(want) {
		t.Fatalf("log = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDispatch_EmptyPayload(t *testing.T) {
	ep, got := sink(t)
	d, rep := newDispatcher(&transport.TCPDialer{Timeout: 2 * time.Second})

	out := d.Dispatch(context.Background(), ep, []byte{})
	if !out.OK() {
		t.Fatalf("dispatch failed: %v", out.Err)
	}
	if b := <-got; len(b) != 0 {
		t.Errorf("listener got %q, want nothing", b)
	}
	if last := rep.Lines()[rep.Len()-1]; last != "finished sending 0 bytes" {
		t.Errorf("last entry = %q", last)
	}
}

func TestDispatch_ConnectionRefused(t *testing.T) {
	port := testutil.FreePort(t)
	d, rep := newDispatcher(&transport.TCPDialer{Timeout: 2 * time.Second})

	out := d.Dispatch(context.Background(), mustEndpoint(t, port), []byte("hello"))
	if out.OK() {
		t.Fatal("expected failure")
	}
	if out.Kind() != ncerr.ConnectionRefused {
		t.Errorf("kind = %s, want ConnectionRefused (%v)", out.Kind(), out.Err)
	}

	lines := rep.Lines()
	if len(lines) != 2 {
		t.Fatalf("log = %q, want connect attempt plus failure", lines)
	}
	if !strings.HasPrefix(lines[1], "failed: ") || !strings.Contains(lines[1], "ConnectionRefused") {
		t.Errorf("failure entry = %q", lines[1])
	}
	for _, l := range lines {
		if strings.HasPrefix(l, "finished") {
			t.Errorf("failure must not log %q", l)
		}
	}
}

func TestDispatch_ConnectTimeout(t *testing.T) {
	d, rep := newDispatcher(blockingDialer{})
	d.Timeout = 50 * time.Millisecond

	start := time.Now()
	out := d.Dispatch(context.Background(), mustEndpoint(t, 30002), []byte("x"))
	if out.Kind() != ncerr.Timeout {
		t.Fatalf("kind = %s, want Timeout (%v)", out.Kind(), out.Err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
	if rep.Len() != 2 {
		t.Errorf("log = %q", rep.Lines())
	}
}

func TestDispatch_ShortWrites(t *testing.T) {
	conn := newFakeConn()
	conn.chunk = 2
	d, _ := newDispatcher(fixedDialer{conn})

	payload := []byte("movej([0,0,0,0,0,0])\n")
	out := d.Dispatch(context.Background(), mustEndpoint(t, 30002), payload)
	if !out.OK() {
		t.Fatalf("dispatch failed: %v", out.Err)
	}
	if string(conn.buf) != string(payload) {
		t.Errorf("conn got %q, want %q", conn.buf, payload)
	}
	if out.BytesSent != len(payload) {
		t.Errorf("BytesSent = %d, want %d", out.BytesSent, len(payload))
	}
	if !conn.isClosed() {
		t.Error("connection not closed after success")
	}
}

func TestDispatch_SendFailed(t *testing.T) {
	conn := newFakeConn()
	conn.failAfter = 3
	conn.failErr = errors.New("connection reset by peer")
	d, rep := newDispatcher(fixedDialer{conn})

	// The socket must be closed before the failure is recorded.
	var lenAtClose int
	conn.onClose = func() { lenAtClose = rep.Len() }

	out := d.Dispatch(context.Background(), mustEndpoint(t, 30002), []byte("hello"))
	if out.Kind() != ncerr.SendFailed {
		t.Fatalf("kind = %s, want SendFailed (%v)", out.Kind(), out.Err)
	}
	if out.BytesSent != 3 {
		t.Errorf("BytesSent = %d, want 3", out.BytesSent)
	}
	var de *ncerr.DispatchError
	if !ncerr.As(out.Err, &de) || de.Sent != 3 {
		t.Errorf("error should carry the sent count: %v", out.Err)
	}
	if !conn.isClosed() {
		t.Fatal("connection not closed after send failure")
	}
	if lenAtClose != 2 {
		t.Errorf("closed with %d entries logged, want 2", lenAtClose)
	}
	if rep.Len() != 3 || !strings.Contains(rep.Lines()[2], "after 3 bytes") {
		t.Errorf("log = %q", rep.Lines())
	}
}

func TestDispatch_CancelClosesSocket(t *testing.T) {
	conn := newFakeConn()
	conn.block = true
	d, rep := newDispatcher(fixedDialer{conn})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() { done <- d.Dispatch(ctx, mustEndpoint(t, 30002), []byte("hello")) }()

	// Wait for the write phase before cancelling.
	deadline := time.Now().Add(2 * time.Second)
	for rep.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case out := <-done:
		if out.Kind() != ncerr.Cancelled {
			t.Errorf("kind = %s, want Cancelled (%v)", out.Kind(), out.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not abort the write")
	}
	if !conn.isClosed() {
		t.Error("socket not closed on cancellation")
	}
	if last := rep.Lines()[rep.Len()-1]; last != "dispatch cancelled" {
		t.Errorf("last entry = %q", last)
	}
}

func TestDispatch_Metrics(t *testing.T) {
	m := metrics.New()

	ep, _ := sink(t)
	d, _ := newDispatcher(&transport.TCPDialer{Timeout: 2 * time.Second})
	d.Metrics = m
	d.Dispatch(context.Background(), ep, []byte("abc"))

	d.Dialer = blockingDialer{}
	d.Timeout = 20 * time.Millisecond
	d.Dispatch(context.Background(), ep, []byte("abc"))

	s := m.Snapshot()
	if s.Dispatches != 2 || s.Succeeded != 1 || s.Failed != 1 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.BytesOut != 3 {
		t.Errorf("BytesOut = %d, want 3", s.BytesOut)
	}
	if s.FailuresByKind["Timeout"] != 1 {
		t.Errorf("FailuresByKind = %v", s.FailuresByKind)
	}
}

func TestOutcome_IDsAreUnique(t *testing.T) {
	d, _ := newDispatcher(blockingDialer{})
	d.Timeout = time.Millisecond
	a := d.Dispatch(context.Background(), mustEndpoint(t, 30002), nil)
	b := d.Dispatch(context.Background(), mustEndpoint(t, 30002), nil)
	if a.ID == b.ID {
		t.Error("dispatch IDs should differ")
	}
}
