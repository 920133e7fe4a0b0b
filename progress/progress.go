// Package progress renders a single-line progress counter for CLI runs.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Tracker reports completed items out of a total.
// It is safe for concurrent use.
type Tracker struct {
	writer       io.Writer
	label        string
	every        int
	total        int
	current      int
	lastReported int
	started      time.Time
	active       bool
	now          func() time.Time
	mu           sync.Mutex
}

// New creates a Tracker that writes to w (typically os.Stderr) at most once
// every items completions.
func New(w io.Writer, label string, every int) *Tracker {
	if every < 1 {
		every = 1
	}
	return &Tracker{
		writer: w,
		label:  label,
		every:  every,
		now:    time.Now,
	}
}

// Observe records that done of total items have completed. The first call
// starts the clock. Its signature matches enrich.ProgressFunc.
func (t *Tracker) Observe(done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		t.active = true
		t.started = t.now()
		t.lastReported = 0
	}
	t.total = total
	if done > total {
		done = total
	}
	if done <= t.current {
		return
	}
	t.current = done

	if t.current-t.lastReported >= t.every || t.current == t.total {
		t.report()
		t.lastReported = t.current
	}
}

// Finish prints the final line. It is a no-op if nothing was observed.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	if t.current != t.lastReported {
		t.report()
	}
	fmt.Fprintln(t.writer)
	t.active = false
}

// Elapsed returns the time since the first observation.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return 0
	}
	return t.now().Sub(t.started)
}

// report prints the current line. Must be called with lock held.
func (t *Tracker) report() {
	elapsed := t.now().Sub(t.started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(t.current) / elapsed
	}
	percentage := 0.0
	if t.total > 0 {
		percentage = float64(t.current) / float64(t.total) * 100.0
	}
	fmt.Fprintf(t.writer, "\r%s: %d/%d (%.1f%%) - %.1f records/s",
		t.label, t.current, t.total, percentage, rate)
}
