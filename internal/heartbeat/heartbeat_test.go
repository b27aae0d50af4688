package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ensemble/internal/action"
	"ensemble/internal/ledger"
	"ensemble/internal/metricsregistry"
	"ensemble/internal/rulestore"
	"ensemble/internal/workloadmanager/fake"
)

func TestTick_ResamplesPendingStartsAndFiresHeartbeatRule(t *testing.T) {
	doc := []byte(`
jobs:
  - {name: sim, command: run}
rules:
  - trigger: heartbeat
    action: {name: terminate}
`)
	store, err := rulestore.Parse(doc, nil)
	require.NoError(t, err)

	l := ledger.New()
	reg := metricsregistry.New()
	manager := fake.New()
	exec := action.New(store, l, reg, manager, nil, nil, nil, action.Config{})
	hb := New(store, l, reg, exec)

	submitTS := time.Now().Add(-5 * time.Second)
	l.Insert(1, "sim", submitTS)

	hb.Tick(context.Background())

	mean, ok := reg.Get("mean.sim-pending")
	require.True(t, ok)
	require.Greater(t, mean, 0.0)

	require.True(t, exec.Terminated(), "heartbeat-triggered rule must fire")
}

func TestTick_SkipsJobsThatHaveStarted(t *testing.T) {
	store := &rulestore.Store{}
	l := ledger.New()
	reg := metricsregistry.New()
	manager := fake.New()
	exec := action.New(store, l, reg, manager, nil, nil, nil, action.Config{})
	hb := New(store, l, reg, exec)

	l.Insert(1, "sim", time.Now())
	l.SetStart(1, time.Now())

	hb.Tick(context.Background())

	_, ok := reg.Get("mean.sim-pending")
	require.False(t, ok, "a job with a start timestamp is no longer pending")
}
