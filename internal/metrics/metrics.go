// Package metrics provides lightweight counters for a ursend session:
// how many dispatches ran, how they ended, and how many bytes left.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a session.
type Collector struct {
	dispatchesTotal atomic.Int64
	succeeded       atomic.Int64
	failed          atomic.Int64
	rejected        atomic.Int64
	bytesOut        atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	failures     map[string]int64
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now(), failures: make(map[string]int64)}
}

// ── Dispatch metrics ─────────────────────────────────────────────────

// DispatchStarted counts one connection attempt.
func (c *Collector) DispatchStarted() {
	if c == nil {
		return
	}
	c.dispatchesTotal.Add(1)
}

// DispatchSucceeded counts a dispatch that sent its whole payload.
func (c *Collector) DispatchSucceeded() {
	if c == nil {
		return
	}
	c.succeeded.Add(1)
}

// DispatchFailed counts a failed dispatch under its failure kind.
func (c *Collector) DispatchFailed(kind, msg string) {
	if c == nil {
		return
	}
	c.failed.Add(1)
	c.mu.Lock()
	c.failures[kind]++
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// Rejected counts a request refused before any network activity
// (invalid endpoint, unencodable script, busy session).
func (c *Collector) Rejected() {
	if c == nil {
		return
	}
	c.rejected.Add(1)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// Dispatches returns the number of connection attempts.
func (c *Collector) Dispatches() int64 {
	if c == nil {
		return 0
	}
	return c.dispatchesTotal.Load()
}

// Failures returns the number of failed dispatches.
func (c *Collector) Failures() int64 {
	if c == nil {
		return 0
	}
	return c.failed.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string           `json:"uptime"`
	Dispatches       int64            `json:"dispatches"`
	Succeeded        int64            `json:"succeeded"`
	Failed           int64            `json:"failed"`
	Rejected         int64            `json:"rejected"`
	BytesOut         int64            `json:"bytes_out"`
	FailuresByKind   map[string]int64 `json:"failures_by_kind,omitempty"`
	LastError        string           `json:"last_error,omitempty"`
	LastErrorMessage string           `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:     time.Since(c.startTime).Truncate(time.Millisecond).String(),
		Dispatches: c.dispatchesTotal.Load(),
		Succeeded:  c.succeeded.Load(),
		Failed:     c.failed.Load(),
		Rejected:   c.rejected.Load(),
		BytesOut:   c.bytesOut.Load(),
	}
	if len(c.failures) > 0 {
		s.FailuresByKind = make(map[string]int64, len(c.failures))
		for k, v := range c.failures {
			s.FailuresByKind[k] = v
		}
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	data, _ := json.MarshalIndent(c.Snapshot(), "", "  ")
	return string(data)
}
