// Package flux is the skeleton of a real Flux-backed workload manager
// (spec.md's `ensemble run --executor flux`). It declares the
// lifecycle event vocabulary original_source/ensemble/members/flux
// actually emits, so internal/rulestore can validate job-<event>
// rules against it, but does not dial a real Flux instance — wiring
// an actual Flux RPC/bindings client is outside this spec's scope
// (spec.md's Non-goals exclude the real workload manager's wire
// protocol).
package flux

import (
	"context"
	"fmt"

	"ensemble/internal/workloadmanager"
	"ensemble/pkg/apperror"
)

// supportedEvents mirrors the Flux job lifecycle states surfaced by
// original_source/ensemble/members/flux/queue.py.
var supportedEvents = map[string]bool{
	"submit":    true,
	"depend":    true,
	"sched":     true,
	"alloc":     true,
	"start":     true,
	"finish":    true,
	"clean":     true,
	"exception": true,
}

// Manager is an unconnected Flux executor: SupportsEvent works so
// configs can be validated against it, but Submit/Records report
// apperror.CodeUnimplemented until a real Flux client is wired.
type Manager struct {
	Endpoint string
}

// New constructs a Flux executor skeleton bound to endpoint (e.g. a
// Flux URI); it does not connect.
func New(endpoint string) *Manager {
	return &Manager{Endpoint: endpoint}
}

func (m *Manager) Name() string { return "flux" }

func (m *Manager) SupportsEvent(event string) bool {
	return supportedEvents[event]
}

func (m *Manager) Submit(_ context.Context, _ workloadmanager.JobSpec) (int, error) {
	return 0, apperror.New(apperror.CodeUnimplemented, fmt.Sprintf("flux executor (%s) is not wired to a live Flux instance in this build", m.Endpoint))
}

func (m *Manager) Records(_ context.Context) (<-chan workloadmanager.Record, error) {
	return nil, apperror.New(apperror.CodeUnimplemented, fmt.Sprintf("flux executor (%s) is not wired to a live Flux instance in this build", m.Endpoint))
}
