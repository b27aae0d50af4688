package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ensemble/internal/workloadmanager"
	"ensemble/internal/workloadmanager/fake"
)

func writeDoc(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ensemble.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// TestScenario_S1SingleSubmitOnStart exercises spec.md §8's S1: a
// start-triggered submit rule fires exactly once when the controller
// starts, submitting exactly one job into the ledger.
func TestScenario_S1SingleSubmitOnStart(t *testing.T) {
	path := writeDoc(t, `
jobs:
  - {name: sim, command: run}
rules:
  - trigger: start
    action: {name: submit, label: sim, repetitions: 1}
`)
	manager := fake.New()
	ctrl, err := New(Options{DocumentPath: path, Manager: manager})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	waitFor(t, time.Second, func() bool { return ctrl.LedgerSize() == 1 })

	cancel()
	<-done
}

// TestScenario_MetricDrivenTerminate exercises a finish event updating
// C1's counters, which a metric-triggered terminate rule then reacts
// to (spec §4.3's "metric-trigger rules evaluated once per record").
func TestScenario_MetricDrivenTerminate(t *testing.T) {
	path := writeDoc(t, `
jobs:
  - {name: sim, command: run}
rules:
  - trigger: start
    action: {name: submit, label: sim, repetitions: 1}
  - trigger: metric
    name: count.sim.finished
    when: ">= 1"
    action: {name: terminate}
`)
	manager := fake.New()
	ctrl, err := New(Options{DocumentPath: path, Manager: manager})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	waitFor(t, time.Second, func() bool { return ctrl.LedgerSize() == 1 })

	manager.EmitSentinel()
	now := time.Now()
	manager.EmitEvents(1, workloadmanager.Event{Name: "start", Timestamp: now})
	manager.EmitEvents(1, workloadmanager.Event{Name: "finish", Timestamp: now.Add(time.Second), Status: 0})

	waitFor(t, time.Second, ctrl.Terminated)
	<-done
}
