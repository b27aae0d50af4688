package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ensemble/internal/action"
	"ensemble/internal/heartbeat"
	"ensemble/internal/ingest"
	"ensemble/internal/ledger"
	"ensemble/internal/metricsregistry"
	"ensemble/internal/rulestore"
	"ensemble/internal/workloadmanager/fake"
)

func newReactor(t *testing.T, store *rulestore.Store, manager *fake.Manager) *Reactor {
	t.Helper()
	l := ledger.New()
	reg := metricsregistry.New()
	exec := action.New(store, l, reg, manager, nil, nil, nil, action.Config{})
	ing := ingest.New(store, l, reg, exec)
	hb := heartbeat.New(store, l, reg, exec)
	return New(store, manager, exec, ing, hb, time.Hour)
}

func TestRun_ReturnsWhenRecordStreamCloses(t *testing.T) {
	manager := fake.New()
	r := newReactor(t, &rulestore.Store{}, manager)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	manager.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reactor did not stop after record stream closed")
	}
}

func TestRun_ReturnsWhenContextCancelled(t *testing.T) {
	manager := fake.New()
	r := newReactor(t, &rulestore.Store{}, manager)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("reactor did not stop after context cancellation")
	}
}

func TestRun_TerminateActionStopsLoop(t *testing.T) {
	doc := []byte(`
jobs:
  - {name: sim, command: run}
rules:
  - trigger: start
    action: {name: terminate}
`)
	store, err := rulestore.Parse(doc, nil)
	require.NoError(t, err)
	manager := fake.New()
	r := newReactor(t, store, manager)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reactor did not stop after a start-triggered terminate action")
	}
}
