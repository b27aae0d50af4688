// Package extension is the static named-handler registry that stands
// in for spec.md's "custom" arbitrary-source config section (redesign
// flag applied per SPEC_FULL.md: no embedded interpreter, no dynamic
// code loading — handlers are Go functions registered by package
// init(), resolved by name at rule-store load time).
package extension

import (
	"context"
	"fmt"
	"sync"
)

// MetricsReader is the narrow slice of internal/metricsregistry a
// custom handler is allowed to read.
type MetricsReader interface {
	Get(path string) (float64, bool)
}

// ActionDescriptor is what a Handler may return to request a
// re-dispatch through internal/action.Executor's dispatch. Per SPEC_FULL.md
// §9.ii, a descriptor returned from re-dispatch may not itself name
// "custom" — exactly one level of re-dispatch is allowed.
type ActionDescriptor struct {
	Name  string
	Label string
	Value string
}

// HandlerCall carries everything a custom handler needs to decide
// whether to request a follow-up action. EventName/JobID are zero
// values when the call did not originate from an event-ingest record
// (e.g. a metric- or heartbeat-triggered custom action).
type HandlerCall struct {
	RuleName  string
	Trigger   string
	EventName string
	JobID     int
	Metrics   MetricsReader
}

// Handler is a named extension function. It may return a non-nil
// ActionDescriptor to request exactly one follow-up action.
type Handler func(ctx context.Context, call HandlerCall) (*ActionDescriptor, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Handler)
)

// Register adds a named handler to the registry. Deployments call
// this from an init() function, mirroring how the teacher's services
// register gRPC handlers at startup.
func Register(name string, h Handler) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = h
}

// Lookup resolves a handler by name.
func Lookup(name string) (Handler, bool) {
	mu.RLock()
	defer mu.RUnlock()
	h, ok := registry[name]
	return h, ok
}

// Registered reports whether name has a handler registered —
// internal/rulestore uses this at load time to fail fast on an
// unresolvable custom action label, matching spec.md's "each custom
// action's label must resolve to a registered extension function at
// load time, else load fails."
func Registered(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Reset clears the registry. Exported for tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]Handler)
}

// MustRegistered panics if name isn't registered; used by handlers
// that depend on another handler being present.
func MustRegistered(name string) {
	if !Registered(name) {
		panic(fmt.Sprintf("extension: handler %q not registered", name))
	}
}
