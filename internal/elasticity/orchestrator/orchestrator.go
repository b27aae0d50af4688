// Package orchestrator is the external compute-pool manager C8 (spec
// component "Control-plane Endpoint") talks to: fetch a pool's current
// size and bounds, then patch its desired size. internal/elasticity/
// orchestrator/k8s backs this with a Kubernetes custom resource; this
// package's InMemory implementation backs the in-process tests for
// scenarios S3 (grow with clamp) and S4 (shrink rejected).
package orchestrator

import "context"

// Ref addresses one compute-pool object: the custom resource's API
// group/version, its plural resource name ("member" in spec.md's
// vocabulary), namespace and object name.
type Ref struct {
	Group     string
	Version   string
	Member    string
	Namespace string
	Name      string
}

// Pool is a compute pool's current size and elasticity bounds, as
// declared by the object itself (spec.md: "clamp to [minSize,maxSize]
// declared by object").
type Pool struct {
	Size    int
	MinSize int
	MaxSize int
}

// Clamp returns size bounded to [p.MinSize, p.MaxSize], preferring
// clamp over reject per spec.md's resize semantics (property P6).
func (p Pool) Clamp(size int) int {
	if size < p.MinSize {
		return p.MinSize
	}
	if size > p.MaxSize {
		return p.MaxSize
	}
	return size
}

// Orchestrator is the interface C8 depends on.
type Orchestrator interface {
	// Get fetches the addressed pool's current size and bounds.
	Get(ctx context.Context, ref Ref) (Pool, error)

	// Patch sets the pool's desired size. Implementations issue
	// whatever the backing system needs (a merge patch, an API call)
	// to converge actual size toward newSize.
	Patch(ctx context.Context, ref Ref, newSize int) error
}
