// Package dispatch pushes one encoded script to a controller over a
// fresh TCP connection: connect, write every byte, close.  Progress and
// the final result are recorded on a status.Reporter as it happens.
//
// A dispatch never retries.  The connection, once open, is closed on
// every path before the outcome is recorded.
package dispatch

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"ursend/internal/endpoint"
	ncerr "ursend/internal/errors"
	"ursend/internal/metrics"
	"ursend/internal/status"
	"ursend/internal/transport"
	"ursend/util"
)

// DefaultTimeout bounds both the connect and the write phase.
const DefaultTimeout = 2 * time.Second

// Outcome is the terminal result of one dispatch.
type Outcome struct {
	ID        uuid.UUID
	Endpoint  endpoint.Endpoint
	BytesSent int
	Err       error // nil on success, otherwise a *errors.DispatchError
}

// OK reports whether the whole payload was sent.
func (o Outcome) OK() bool { return o.Err == nil }

// Kind returns the failure classification.  It is only meaningful when
// OK is false.
func (o Outcome) Kind() ncerr.DispatchKind { return ncerr.KindOf(o.Err) }

func (o Outcome) String() string {
	if o.OK() {
		return fmt.Sprintf("%s: sent %d bytes to %s", o.ID, o.BytesSent, o.Endpoint)
	}
	return fmt.Sprintf("%s: %s: %v", o.ID, o.Kind(), o.Err)
}

// Dispatcher sends payloads.  The zero value is not usable; Dialer and
// Reporter are required.  Metrics and Logger may be nil.
type Dispatcher struct {
	Dialer   transport.Dialer
	Reporter *status.Reporter
	Timeout  time.Duration // 0 means DefaultTimeout
	Metrics  *metrics.Collector
	Logger   *util.Logger
}

func (d *Dispatcher) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

func (d *Dispatcher) logger() *util.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return util.Discard()
}

// Dispatch connects to ep, writes payload in full and closes the
// connection.  Cancelling ctx aborts a pending connect or write and
// closes the socket.
func (d *Dispatcher) Dispatch(ctx context.Context, ep endpoint.Endpoint, payload []byte) Outcome {
	out := Outcome{ID: uuid.New(), Endpoint: ep}
	addr := ep.String()
	timeout := d.timeout()
	log := d.logger()

	d.Metrics.DispatchStarted()
	d.Reporter.Recordf("attempting to connect to %s", addr)
	log.Debug("%s: dialing %s (timeout %s)", out.ID, addr, timeout)

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	conn, err := d.Dialer.Dial(dialCtx, addr)
	cancel()
	if err != nil {
		return d.fail(out, ncerr.Wrap("dial", addr, 0, withCause(ctx, err)))
	}

	// Closing the socket is the only way to interrupt a blocked Write.
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	d.Reporter.Recordf("sending script (%d bytes)", len(payload))
	log.Verbose("connected to %s, sending %d bytes", conn.RemoteAddr(), len(payload))

	n, werr := writeAll(conn, payload, timeout)
	out.BytesSent = n
	d.Metrics.BytesSent(int64(n))

	stop()
	if cerr := conn.Close(); cerr != nil {
		log.Debug("%s: close: %v", out.ID, cerr)
	}

	if werr != nil {
		return d.fail(out, ncerr.Wrap("write", addr, n, withCause(ctx, werr)))
	}

	d.Metrics.DispatchSucceeded()
	d.Reporter.Recordf("finished sending %d bytes", n)
	log.Verbose("%s: done", out.ID)
	return out
}

// fail records err as the terminal entry for out.
func (d *Dispatcher) fail(out Outcome, err *ncerr.DispatchError) Outcome {
	out.Err = err
	d.Metrics.DispatchFailed(err.Kind.String(), err.Error())

	if err.Kind == ncerr.Cancelled {
		d.Reporter.Record("dispatch cancelled")
	} else {
		d.Reporter.Recordf("failed: %v", err)
	}
	d.logger().Verbose("%s: %v", out.ID, err)
	return out
}

// writeAll writes p, looping on short writes, under a single deadline.
// Connections that do not support deadlines (SSH channels) rely on
// cancellation alone.
func writeAll(conn net.Conn, p []byte, timeout time.Duration) (int, error) {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))

	sent := 0
	for sent < len(p) {
		n, err := conn.Write(p[sent:])
		sent += n
		if err != nil {
			return sent, err
		}
		if n == 0 {
			return sent, fmt.Errorf("short write: wrote 0 of %d remaining bytes", len(p)-sent)
		}
	}
	return sent, nil
}

// withCause attaches the caller's context error to err so a socket
// closed by cancellation classifies as Cancelled rather than SendFailed.
func withCause(ctx context.Context, err error) error {
	cause := ctx.Err()
	if cause == nil || ncerr.Is(err, cause) {
		return err
	}
	return fmt.Errorf("%w: %w", cause, err)
}
