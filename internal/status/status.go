// Package status keeps the operator-facing status log: an ordered,
// append-only record of what each dispatch attempted and what happened.
//
// All methods are safe for concurrent use.  A dispatch worker records
// from its own goroutine while the front end reads.
package status

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Entry is one recorded line.  Seq is 1-based and strictly increasing.
type Entry struct {
	Seq  int
	Time time.Time
	Text string
}

// String renders the entry as "#seq hh:mm:ss.mmm text".
func (e Entry) String() string {
	return fmt.Sprintf("#%d %s %s", e.Seq, e.Time.Format("15:04:05.000"), e.Text)
}

// Reporter owns the log.  Entries are never modified or removed once
// recorded.
type Reporter struct {
	mu      sync.RWMutex
	entries []Entry
	mirror  io.Writer
	now     func() time.Time
}

// New returns an empty Reporter.  If mirror is non-nil each entry is
// also written to it, one per line, as it is recorded.
func New(mirror io.Writer) *Reporter {
	return &Reporter{mirror: mirror, now: time.Now}
}

// Record appends text to the log and returns the stored entry.
func (r *Reporter) Record(text string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := Entry{Seq: len(r.entries) + 1, Time: r.now(), Text: text}
	r.entries = append(r.entries, e)
	if r.mirror != nil {
		fmt.Fprintln(r.mirror, e.String()) //nolint:errcheck
	}
	return e
}

// Recordf is Record with fmt.Sprintf formatting.
func (r *Reporter) Recordf(format string, args ...any) Entry {
	return r.Record(fmt.Sprintf(format, args...))
}

// Entries returns a copy of everything recorded so far, in order.
func (r *Reporter) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lines returns the text of every entry, in order.
func (r *Reporter) Lines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Text
	}
	return out
}

// Len returns the number of recorded entries.
func (r *Reporter) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Since returns a copy of the entries recorded after the first n.
func (r *Reporter) Since(n int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n >= len(r.entries) {
		return nil
	}
	out := make([]Entry, len(r.entries)-n)
	copy(out, r.entries[n:])
	return out
}

// WriteTo writes the whole log to w, one entry per line.
func (r *Reporter) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range r.Entries() {
		n, err := fmt.Fprintln(w, e.String())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
