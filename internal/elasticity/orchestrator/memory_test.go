package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Clamp(t *testing.T) {
	p := Pool{Size: 5, MinSize: 2, MaxSize: 10}
	assert.Equal(t, 2, p.Clamp(0), "below min clamps up to min")
	assert.Equal(t, 10, p.Clamp(20), "above max clamps down to max")
	assert.Equal(t, 6, p.Clamp(6), "within bounds passes through unchanged")
}

func TestInMemory_GetUnseededReturnsNotFound(t *testing.T) {
	m := NewInMemory()
	_, err := m.Get(context.Background(), Ref{Name: "missing"})
	require.Error(t, err)
}

func TestInMemory_SeedGetPatchRoundTrip(t *testing.T) {
	m := NewInMemory()
	ref := Ref{Group: "compute.example.com", Version: "v1", Member: "pools", Namespace: "ns", Name: "p1"}
	m.Seed(ref, Pool{Size: 3, MinSize: 1, MaxSize: 8})

	p, err := m.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Size)

	require.NoError(t, m.Patch(context.Background(), ref, 5))

	p, err = m.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Size)
}

func TestInMemory_PatchUnseededReturnsNotFound(t *testing.T) {
	m := NewInMemory()
	err := m.Patch(context.Background(), Ref{Name: "missing"}, 5)
	assert.Error(t, err)
}
