package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync"
)

// DefaultReportEvery is how many requests pass between summary lines.
const DefaultReportEvery = 50

// Tally keeps the aggregate request, failure and 502 counters and writes a summary
// line every N requests.
type Tally struct {
	mu        sync.Mutex
	every     int64
	out       io.Writer
	requests  int64
	failures  int64
	status502 int64
}

// TallySnapshot is a consistent copy of the Tally counters.
type TallySnapshot struct {
	Requests  int64 `json:"requests" yaml:"requests"`
	Failures  int64 `json:"failures" yaml:"failures"`
	Status502 int64 `json:"status_502" yaml:"status_502"`
}

// FailureRate returns failures as a percentage of requests, 0 with no requests.
func (s TallySnapshot) FailureRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Requests) * 100
}

// String renders the periodic summary line.
func (s TallySnapshot) String() string {
	return fmt.Sprintf("Total: %d, Failures: %d (%.1f%%), 502s: %d", s.Requests, s.Failures, s.FailureRate(), s.Status502)
}

// NewTally returns a Tally writing summaries to out. every < 1 uses
// DefaultReportEvery; a nil out disables the summary lines.
func NewTally(every int, out io.Writer) *Tally {
	if every < 1 {
		every = DefaultReportEvery
	}
	return &Tally{every: int64(every), out: out}
}

// OnRequestComplete folds o into the counters.
func (t *Tally) OnRequestComplete(o Outcome) {
	t.mu.Lock()
	t.requests++
	switch {
	case !o.HasResponse():
		t.failures++
	case o.StatusCode == http.StatusBadGateway:
		t.status502++
		t.failures++
	case o.StatusCode >= 400 || len(o.Reasons) > 0:
		t.failures++
	}
	var line string
	if t.out != nil && t.requests%t.every == 0 {
		line = t.snapshotLocked().String()
	}
	t.mu.Unlock()

	if line != "" {
		fmt.Fprintln(t.out, line)
	}
}

// Snapshot returns the current counters.
func (t *Tally) Snapshot() TallySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tally) snapshotLocked() TallySnapshot {
	return TallySnapshot{
		Requests:  t.requests,
		Failures:  t.failures,
		Status502: t.status502,
	}
}
