// Package session is the caller-facing surface of ursend.  A Session
// owns the status log for its lifetime and runs at most one dispatch at
// a time on a worker goroutine, so progress entries from two scripts
// never interleave.
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"ursend/internal/dispatch"
	"ursend/internal/endpoint"
	ncerr "ursend/internal/errors"
	"ursend/internal/metrics"
	"ursend/internal/payload"
	"ursend/internal/status"
	"ursend/internal/transport"
	"ursend/util"
)

// Options configures a Session.  Dialer is required.
type Options struct {
	Dialer  transport.Dialer
	Timeout time.Duration
	Encoder payload.Encoder
	Mirror  io.Writer // receives each log entry as it is recorded
	Metrics *metrics.Collector
	Logger  *util.Logger
}

// Session binds a dialer, an encoder and a status log.
type Session struct {
	reporter   *status.Reporter
	dispatcher *dispatch.Dispatcher
	encoder    payload.Encoder
	metrics    *metrics.Collector
	logger     *util.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	busy   bool
	closed bool
}

// New creates a Session.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = util.Discard()
	}
	rep := status.New(opts.Mirror)
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		reporter: rep,
		dispatcher: &dispatch.Dispatcher{
			Dialer:   opts.Dialer,
			Reporter: rep,
			Timeout:  opts.Timeout,
			Metrics:  opts.Metrics,
			Logger:   logger.Named("dispatch"),
		},
		encoder: opts.Encoder,
		metrics: opts.Metrics,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ValidateEndpoint checks destination text without touching the log
// or the network.
func (s *Session) ValidateEndpoint(host, port string) (endpoint.Endpoint, error) {
	return endpoint.Validate(host, port)
}

// DispatchScript encodes text and sends it to ep on a worker goroutine.
// The returned channel yields exactly one Outcome and is then closed.
//
// An encoding error is recorded and returned without dialing.  While
// another dispatch is outstanding DispatchScript returns ErrBusy and
// records nothing.
func (s *Session) DispatchScript(ctx context.Context, ep endpoint.Endpoint, text string) (<-chan dispatch.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ncerr.ErrClosed
	}
	if s.busy {
		s.metrics.Rejected()
		return nil, ncerr.ErrBusy
	}

	data, err := s.encoder.Encode(text)
	if err != nil {
		s.metrics.Rejected()
		s.reporter.Recordf("cannot encode script: %v", err)
		return nil, err
	}

	s.busy = true
	s.wg.Add(1)

	dctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	result := make(chan dispatch.Outcome, 1)

	go func() {
		defer s.wg.Done()
		defer cancel()
		defer stop()

		out := s.dispatcher.Dispatch(dctx, ep, data)

		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()

		result <- out
		close(result)
	}()

	return result, nil
}

// SendTo dispatches text to ep and waits for the outcome.
func (s *Session) SendTo(ctx context.Context, ep endpoint.Endpoint, text string) (dispatch.Outcome, error) {
	ch, err := s.DispatchScript(ctx, ep, text)
	if err != nil {
		return dispatch.Outcome{Endpoint: ep}, err
	}
	return <-ch, nil
}

// Send validates host and port, then dispatches text and waits for the
// outcome.  A validation failure is recorded and never dials.  The
// returned error reports requests rejected before any network activity;
// network failures are carried by the Outcome.
func (s *Session) Send(ctx context.Context, host, port, text string) (dispatch.Outcome, error) {
	ep, err := s.ValidateEndpoint(host, port)
	if err != nil {
		s.metrics.Rejected()
		s.reporter.Recordf("invalid destination: %v", err)
		return dispatch.Outcome{}, err
	}
	return s.SendTo(ctx, ep, text)
}

// ReadLog returns every entry recorded so far, in order.
func (s *Session) ReadLog() []string { return s.reporter.Lines() }

// Entries returns the log with sequence numbers and timestamps.
func (s *Session) Entries() []status.Entry { return s.reporter.Entries() }

// Record appends a caller note to the log.
func (s *Session) Record(text string) { s.reporter.Record(text) }

// Busy reports whether a dispatch is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Close cancels any in-flight dispatch, waits for its socket to be
// released and closes the dialer.  The log stays readable.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Debug("session closed after %d log entries", s.reporter.Len())
	return s.dispatcher.Dialer.Close()
}
