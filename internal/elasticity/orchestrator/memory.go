package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"ensemble/pkg/apperror"
)

// InMemory is a test/fake Orchestrator backing an in-process map of
// pools, keyed by Ref. Used by internal/elasticity/server's tests and
// by cmd/ensemble-server when --kubernetes is not set.
type InMemory struct {
	mu    sync.Mutex
	pools map[string]*Pool
}

// NewInMemory constructs an empty in-memory orchestrator.
func NewInMemory() *InMemory {
	return &InMemory{pools: make(map[string]*Pool)}
}

func refKey(ref Ref) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", ref.Group, ref.Version, ref.Member, ref.Namespace, ref.Name)
}

// Seed registers a pool's initial state so Get/Patch can address it.
func (m *InMemory) Seed(ref Ref, pool Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := pool
	m.pools[refKey(ref)] = &p
}

func (m *InMemory) Get(_ context.Context, ref Ref) (Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[refKey(ref)]
	if !ok {
		return Pool{}, apperror.New(apperror.CodeNotFound, fmt.Sprintf("compute pool %s not found", refKey(ref)))
	}
	return *p, nil
}

func (m *InMemory) Patch(_ context.Context, ref Ref, newSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[refKey(ref)]
	if !ok {
		return apperror.New(apperror.CodeNotFound, fmt.Sprintf("compute pool %s not found", refKey(ref)))
	}
	p.Size = newSize
	return nil
}
