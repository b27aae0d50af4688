// Package workloadmanager is the external collaborator spec.md treats
// as a given: the job queue ensemble submits to and streams lifecycle
// events from. This package only defines the interface and shared
// wire types; internal/workloadmanager/fake is an in-process
// implementation used for tests and the default CLI executor,
// internal/workloadmanager/flux is the skeleton of a real integration.
package workloadmanager

import (
	"context"
	"time"
)

// JobSpec is what internal/action.Executor builds from a rulestore
// job group before submission, after expanding "tasks < nodes =>
// tasks := nodes" (spec §4.4).
type JobSpec struct {
	Command  []string
	Workdir  string
	Nodes    int
	Tasks    int
	Duration int
}

// Event is one lifecycle event inside a Record. Status is only
// meaningful for a "finish" event: 0 means success, nonzero means
// failure, mirroring the workload manager's job-exit context status.
type Event struct {
	Name      string
	Timestamp time.Time
	Status    int
}

// Record is one entry on the event stream: a job id plus the events
// observed for it since the last record. JobID == SentinelJobID marks
// the backlog/live boundary (spec §3 invariant 6).
type Record struct {
	JobID  int
	Events []Event
}

// SentinelJobID is the special record id observed at most once,
// marking the transition from backlog replay to live streaming.
const SentinelJobID = -1

// Manager is the external collaborator interface: submit a job, and
// stream the lifecycle record feed. It also declares which lifecycle
// event names this backend can ever emit, which internal/rulestore
// uses to reject job-<event> rules an executor could never fire.
type Manager interface {
	// Name identifies the executor, e.g. "fake" or "flux".
	Name() string

	// SupportsEvent reports whether this backend can emit the named
	// lifecycle event (submit, depend, sched, alloc, start, finish,
	// clean, exception, ...).
	SupportsEvent(event string) bool

	// Submit enqueues one job and returns its external job id.
	Submit(ctx context.Context, spec JobSpec) (int, error)

	// Records returns the lifecycle event stream. The channel is
	// closed when the stream ends (graceful shutdown) or ctx is
	// cancelled.
	Records(ctx context.Context) (<-chan Record, error)
}
