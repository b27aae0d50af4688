package metricsregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_AbsentWhenAnySegmentMissing(t *testing.T) {
	r := New()

	_, ok := r.Get("mean.g1-duration")
	assert.False(t, ok, "unknown key must report absent")

	_, ok = r.Get("bogus.g1-duration")
	assert.False(t, ok, "unknown stat name must report absent")

	_, ok = r.Get("count.g1.finished")
	assert.False(t, ok, "unincremented counter must report absent")

	_, ok = r.Get("no-dot-at-all")
	assert.False(t, ok, "malformed path must report absent")
}

func TestRecord_MeanMinMaxTrackObservations(t *testing.T) {
	r := New()
	r.Record("g1-duration", 10)
	r.Record("g1-duration", 20)
	r.Record("g1-duration", 30)

	mean, ok := r.Get("mean.g1-duration")
	require.True(t, ok)
	assert.InDelta(t, 20, mean, 0.001)

	min, ok := r.Get("min.g1-duration")
	require.True(t, ok)
	assert.Equal(t, 10.0, min)

	max, ok := r.Get("max.g1-duration")
	require.True(t, ok)
	assert.Equal(t, 30.0, max)
}

func TestIncrement_CounterTree(t *testing.T) {
	r := New()
	r.Increment("g1", "finished")
	r.Increment("g1", "finished")
	r.Increment("g1", "success")

	finished, ok := r.Get("count.g1.finished")
	require.True(t, ok)
	assert.Equal(t, 2.0, finished)

	success, ok := r.Get("count.g1.success")
	require.True(t, ok)
	assert.Equal(t, 1.0, success)

	_, ok = r.Get("count.g1.failed")
	assert.False(t, ok)
}

func TestInvariant_FinishedEqualsSuccessPlusFailed(t *testing.T) {
	r := New()
	r.Increment("g1", "success")
	r.Increment("g1", "success")
	r.Increment("g1", "failed")
	r.Increment("g1", "finished")
	r.Increment("g1", "finished")
	r.Increment("g1", "finished")

	success, _ := r.Get("count.g1.success")
	failed, _ := r.Get("count.g1.failed")
	finished, _ := r.Get("count.g1.finished")
	assert.Equal(t, finished, success+failed)
}

func TestSummariseAll_CoversBothTrees(t *testing.T) {
	r := New()
	r.Record("g1-duration", 5)
	r.Increment("g1", "finished")

	all := r.SummariseAll()
	assert.Contains(t, all, "mean.g1-duration")
	assert.Contains(t, all, "count.g1.finished")
}
