// Package buffers keeps a bounded history of parse runs for the watch
// status endpoint.
package buffers

import (
	"sync"
	"time"
)

const defaultRingSize = 50

// Run is the outcome of one parse of a watched log.
type Run struct {
	At        time.Time `json:"at"`
	Variables int       `json:"variables"`
	Filtered  int       `json:"filtered"`
	TookMS    int64     `json:"tookMs"`
	Err       string    `json:"error,omitempty"`
}

// Failed reports whether the run ended with an error.
func (r Run) Failed() bool { return r.Err != "" }

// RunRing is a fixed-size circular buffer of runs.
// All methods are safe for concurrent use.
type RunRing struct {
	mu      sync.Mutex
	buf     []Run
	cap     int
	head    int // next write position
	count   int // runs in buffer (≤ cap)
	version int // monotonic counter for change detection
}

// NewRunRing creates a ring with the given capacity.
// If cap ≤ 0, defaultRingSize is used.
func NewRunRing(cap int) *RunRing {
	if cap <= 0 {
		cap = defaultRingSize
	}
	return &RunRing{
		buf: make([]Run, cap),
		cap: cap,
	}
}

// Push records a run. If full, the oldest run is overwritten.
func (r *RunRing) Push(run Run) {
	r.mu.Lock()
	r.buf[r.head] = run
	r.head = (r.head + 1) % r.cap
	if r.count < r.cap {
		r.count++
	}
	r.version++
	r.mu.Unlock()
}

// Snapshot returns the runs oldest first.
func (r *RunRing) Snapshot() []Run {
	return r.SnapshotFiltered(func(Run) bool { return true })
}

// Failures returns the failed runs oldest first.
func (r *RunRing) Failures() []Run {
	return r.SnapshotFiltered(Run.Failed)
}

// SnapshotFiltered returns the runs matching fn, oldest first.
func (r *RunRing) SnapshotFiltered(fn func(Run) bool) []Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return nil
	}

	var out []Run
	start := (r.head - r.count + r.cap) % r.cap
	for i := 0; i < r.count; i++ {
		run := r.buf[(start+i)%r.cap]
		if fn(run) {
			out = append(out, run)
		}
	}
	return out
}

// Last returns the most recent run.
func (r *RunRing) Last() (Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return Run{}, false
	}
	return r.buf[(r.head-1+r.cap)%r.cap], true
}

// Version returns a counter that increments on every Push.
func (r *RunRing) Version() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}
