// Package ledger is the ensemble controller's job ledger (spec
// component C2): a map from external job id to {group, submit_ts,
// start_ts}, the source of truth for invariant 1 ("a ledger entry is
// removed if and only if a finish event for that job id has been
// recorded").
package ledger

import (
	"sync"
	"time"

	"ensemble/pkg/metrics"
)

// Entry is one job's ledger record. SubmitTS/StartTS are nil until
// the corresponding event is observed, matching spec.md's "value =
// {group_name, submit_ts?, start_ts?}".
type Entry struct {
	JobID     int
	GroupName string
	SubmitTS  *time.Time
	StartTS   *time.Time
}

// Ledger is C2. Safe for concurrent use; in the controller's normal
// operation it is only ever touched from the reactor goroutine (spec
// §5/§9), but tests and the heartbeat's resampling pass call it
// directly, so it guards its own state.
type Ledger struct {
	mu      sync.RWMutex
	entries map[int]*Entry

	sink *metrics.Metrics
}

// New constructs an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[int]*Entry)}
}

// NewWithSink constructs a ledger that mirrors its size into the
// Prometheus LedgerSize gauge, one series per group.
func NewWithSink(sink *metrics.Metrics) *Ledger {
	l := New()
	l.sink = sink
	return l
}

// Insert creates a ledger entry for jobID under group, with the given
// submit timestamp. Per spec §4.2, the submit handler inserts
// immediately rather than waiting for the workload manager's own
// submit event to arrive on the event stream.
func (l *Ledger) Insert(jobID int, group string, submitTS time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[jobID] = &Entry{JobID: jobID, GroupName: group, SubmitTS: &submitTS}
	l.reportSizeLocked(group)
}

// SetSubmit records (or overwrites) the submit timestamp for an
// already-ledgered job, used when the workload manager's own submit
// event arrives after Insert already created the entry.
func (l *Ledger) SetSubmit(jobID int, ts time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[jobID]
	if !ok {
		return false
	}
	e.SubmitTS = &ts
	return true
}

// SetStart records the start timestamp for jobID. Returns false if
// jobID is not in the ledger (spec's "events whose job id is not in
// the ledger... must be ignored").
func (l *Ledger) SetStart(jobID int, ts time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[jobID]
	if !ok {
		return false
	}
	e.StartTS = &ts
	return true
}

// Get returns a copy of jobID's entry, or ok=false if absent.
func (l *Ledger) Get(jobID int) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[jobID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Drop removes jobID from the ledger, implementing invariant 1's
// "removed on finish." Returns the entry that was removed, if any.
func (l *Ledger) Drop(jobID int) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[jobID]
	if !ok {
		return Entry{}, false
	}
	delete(l.entries, jobID)
	l.reportSizeLocked(e.GroupName)
	return *e, true
}

// ActiveGroups returns the set of group names with at least one
// pending (non-finished) ledger entry.
func (l *Ledger) ActiveGroups() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range l.entries {
		seen[e.GroupName] = struct{}{}
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	return groups
}

// PendingStarts returns every ledger entry that has a submit
// timestamp but no start timestamp yet — the set C6's heartbeat
// resamples each tick into "<group>-pending".
func (l *Ledger) PendingStarts() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.SubmitTS != nil && e.StartTS == nil {
			out = append(out, *e)
		}
	}
	return out
}

// Len reports the total number of ledgered (non-finished) jobs.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Ledger) reportSizeLocked(group string) {
	if l.sink == nil {
		return
	}
	count := 0
	for _, e := range l.entries {
		if e.GroupName == group {
			count++
		}
	}
	l.sink.SetLedgerSize(group, count)
}
