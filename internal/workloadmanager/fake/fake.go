// Package fake is an in-process workload manager used by cmd/ensemble
// when no real scheduler is configured, and by internal/controller's
// scenario tests (spec §8's S1-S6). It supports every lifecycle event
// name the spec's Glossary lists and can either simulate job
// lifecycles automatically (for the CLI) or be driven event-by-event
// (for deterministic tests).
package fake

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"ensemble/internal/workloadmanager"
)

// defaultEvents is the full lifecycle vocabulary spec.md's glossary
// names: submit, depend, sched, alloc, start, finish, clean, exception.
var defaultEvents = []string{"submit", "depend", "sched", "alloc", "start", "finish", "clean", "exception"}

// Manager is a fake workloadmanager.Manager. Zero value is not
// usable; construct with New.
type Manager struct {
	mu        sync.Mutex
	name      string
	nextID    int
	supported map[string]bool
	out       chan workloadmanager.Record
	autoRun   bool
	baseDelay time.Duration
	closed    bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithAutoRun makes Submit simulate a start+finish lifecycle for
// every submitted job on its own goroutine; the simulated finish
// always reports success (status 0).
func WithAutoRun(enabled bool) Option {
	return func(m *Manager) { m.autoRun = enabled }
}

// WithBaseDelay sets the simulated scheduling latency autorun uses
// before emitting "start", and again before "finish" for jobs whose
// spec has no positive Duration (otherwise the job runs for Duration
// seconds).
func WithBaseDelay(d time.Duration) Option {
	return func(m *Manager) { m.baseDelay = d }
}

// WithSupportedEvents overrides the default full event vocabulary,
// useful for tests exercising internal/rulestore's "load rejects
// unsupported-trigger rules" behavior.
func WithSupportedEvents(events []string) Option {
	return func(m *Manager) {
		m.supported = make(map[string]bool, len(events))
		for _, e := range events {
			m.supported[e] = true
		}
	}
}

// New constructs a fake manager with a buffered record channel.
func New(opts ...Option) *Manager {
	m := &Manager{
		name:      "fake",
		out:       make(chan workloadmanager.Record, 256),
		baseDelay: 10 * time.Millisecond,
	}
	m.supported = make(map[string]bool, len(defaultEvents))
	for _, e := range defaultEvents {
		m.supported[e] = true
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Name() string { return m.name }

func (m *Manager) SupportsEvent(event string) bool {
	return m.supported[event]
}

// Submit assigns the next external job id and, if autorun is enabled,
// simulates its lifecycle on a background goroutine.
func (m *Manager) Submit(ctx context.Context, spec workloadmanager.JobSpec) (int, error) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	autoRun := m.autoRun
	m.mu.Unlock()

	if autoRun {
		go m.simulate(ctx, id, spec)
	}
	return id, nil
}

func (m *Manager) simulate(ctx context.Context, id int, spec workloadmanager.JobSpec) {
	delay := m.baseDelay + time.Duration(rand.Intn(10))*time.Millisecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}
	m.EmitEvents(id, workloadmanager.Event{Name: "start", Timestamp: time.Now()})

	runFor := time.Duration(spec.Duration) * time.Second
	if runFor <= 0 {
		runFor = delay
	}
	select {
	case <-time.After(runFor):
	case <-ctx.Done():
		return
	}
	m.EmitEvents(id, workloadmanager.Event{Name: "finish", Timestamp: time.Now(), Status: 0})
}

// Records returns the record stream. Safe to call once; the channel
// is closed by Close.
func (m *Manager) Records(_ context.Context) (<-chan workloadmanager.Record, error) {
	return m.out, nil
}

// EmitEvents pushes a record for jobID carrying the given events, in
// order, onto the stream. Used both by autorun simulation and by
// tests driving exact scenarios (spec §8's S1-S6).
func (m *Manager) EmitEvents(jobID int, events ...workloadmanager.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.out <- workloadmanager.Record{JobID: jobID, Events: events}
}

// EmitSentinel marks the backlog/live boundary (spec §3 invariant 6).
func (m *Manager) EmitSentinel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.out <- workloadmanager.Record{JobID: workloadmanager.SentinelJobID}
}

// Close ends the record stream.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.out)
}
