package realtime

import (
	"context"
	"fmt"
	"time"

	"ursend/internal/endpoint"
	ncerr "ursend/internal/errors"
	"ursend/internal/transport"
	"ursend/util"
)

// DefaultTimeout bounds the connect and the frame read.
const DefaultTimeout = 2 * time.Second

// Reader takes state snapshots over a transport.Dialer, so the
// realtime port can be reached directly or through the SSH gateway.
type Reader struct {
	Dialer  transport.Dialer
	Timeout time.Duration // 0 means DefaultTimeout
	Logger  *util.Logger  // may be nil
}

// Read connects to ep, reads one frame and closes the connection.
// Network failures are *errors.DispatchError with op "dial" or "read";
// a frame that cannot be decoded wraps errors.ErrBadFrame.
func (r *Reader) Read(ctx context.Context, ep endpoint.Endpoint) (*State, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := r.Logger
	if log == nil {
		log = util.Discard()
	}
	addr := ep.String()

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	conn, err := r.Dialer.Dial(dialCtx, addr)
	cancel()
	if err != nil {
		return nil, ncerr.Wrap("dial", addr, 0, causedBy(ctx, err))
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// Forwarded SSH channels have no deadlines; ctx still applies.
	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	st, err := ReadFrame(conn)
	switch {
	case err == nil:
		log.Debug("%s: frame of %d bytes", addr, st.Length)
		return st, nil
	case ncerr.Is(err, ncerr.ErrBadFrame):
		return nil, fmt.Errorf("%s: %w", addr, err)
	default:
		return nil, ncerr.Wrap("read", addr, 0, causedBy(ctx, err))
	}
}

func causedBy(ctx context.Context, err error) error {
	if cause := ctx.Err(); cause != nil && !ncerr.Is(err, cause) {
		return fmt.Errorf("%w: %w", cause, err)
	}
	return err
}
