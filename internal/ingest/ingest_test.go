package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ensemble/internal/action"
	"ensemble/internal/ledger"
	"ensemble/internal/metricsregistry"
	"ensemble/internal/rulestore"
	"ensemble/internal/workloadmanager"
	"ensemble/internal/workloadmanager/fake"
)

func newIngest(t *testing.T, store *rulestore.Store) (*Ingest, *ledger.Ledger, *metricsregistry.Registry) {
	t.Helper()
	l := ledger.New()
	reg := metricsregistry.New()
	manager := fake.New()
	exec := action.New(store, l, reg, manager, nil, nil, nil, action.Config{})
	return New(store, l, reg, exec), l, reg
}

func TestHandleRecord_SentinelFlipsLiveExactlyOnce(t *testing.T) {
	ing, _, _ := newIngest(t, &rulestore.Store{})
	require.False(t, ing.Live())

	require.NoError(t, ing.HandleRecord(context.Background(), workloadmanager.Record{JobID: workloadmanager.SentinelJobID}))
	require.True(t, ing.Live())

	// Observing it again must not panic or re-flip anything.
	require.NoError(t, ing.HandleRecord(context.Background(), workloadmanager.Record{JobID: workloadmanager.SentinelJobID}))
	require.True(t, ing.Live())
}

func TestHandleRecord_BacklogIsolation_NoMetricFromUnknownJob(t *testing.T) {
	ing, _, reg := newIngest(t, &rulestore.Store{})

	now := time.Now()
	require.NoError(t, ing.HandleRecord(context.Background(), workloadmanager.Record{
		JobID: 7,
		Events: []workloadmanager.Event{
			{Name: "start", Timestamp: now},
			{Name: "finish", Timestamp: now.Add(time.Second), Status: 0},
		},
	}))

	_, ok := reg.Get("mean.unknown-duration")
	require.False(t, ok)
	_, ok = reg.Get("count.unknown.finished")
	require.False(t, ok)
}

func TestHandleRecord_FinishRemovesLedgerEntryAndIncrementsCounters(t *testing.T) {
	ing, l, reg := newIngest(t, &rulestore.Store{})
	l.Insert(1, "sim", time.Now())

	start := time.Now()
	require.NoError(t, ing.HandleRecord(context.Background(), workloadmanager.Record{
		JobID:  1,
		Events: []workloadmanager.Event{{Name: "start", Timestamp: start}},
	}))
	_, ok := l.Get(1)
	require.True(t, ok)

	require.NoError(t, ing.HandleRecord(context.Background(), workloadmanager.Record{
		JobID:  1,
		Events: []workloadmanager.Event{{Name: "finish", Timestamp: start.Add(time.Second), Status: 0}},
	}))

	_, ok = l.Get(1)
	require.False(t, ok, "invariant 1: ledger entry removed once finish is recorded")

	finished, _ := reg.Get("count.sim.finished")
	success, _ := reg.Get("count.sim.success")
	require.Equal(t, 1.0, finished)
	require.Equal(t, 1.0, success)
}

func TestHandleRecord_FinishFailureIncrementsFailedNotSuccess(t *testing.T) {
	ing, l, reg := newIngest(t, &rulestore.Store{})
	l.Insert(1, "sim", time.Now())
	l.SetStart(1, time.Now())

	require.NoError(t, ing.HandleRecord(context.Background(), workloadmanager.Record{
		JobID:  1,
		Events: []workloadmanager.Event{{Name: "finish", Timestamp: time.Now(), Status: 1}},
	}))

	failed, _ := reg.Get("count.sim.failed")
	_, successOK := reg.Get("count.sim.success")
	require.Equal(t, 1.0, failed)
	require.False(t, successOK)
}

func jobEventTerminateDoc() []byte {
	return []byte(`
jobs:
  - {name: sim, command: run}
rules:
  - trigger: job-finish
    action: {name: terminate}
`)
}

func TestHandleRecord_JobEventRuleDoesNotFireBeforeSentinel(t *testing.T) {
	store, err := rulestore.Parse(jobEventTerminateDoc(), nil)
	require.NoError(t, err)
	ing, l, _ := newIngest(t, store)
	l.Insert(1, "sim", time.Now())
	l.SetStart(1, time.Now())

	require.NoError(t, ing.HandleRecord(context.Background(), workloadmanager.Record{
		JobID:  1,
		Events: []workloadmanager.Event{{Name: "finish", Timestamp: time.Now(), Status: 0}},
	}))

	require.Equal(t, 1, store.RulesForTrigger("job-finish")[0].Action.RepsRemaining, "backlog job-event must not fire the rule")
}

func TestHandleRecord_JobEventRuleFiresAfterSentinel(t *testing.T) {
	store, err := rulestore.Parse(jobEventTerminateDoc(), nil)
	require.NoError(t, err)
	ing, l, _ := newIngest(t, store)
	require.NoError(t, ing.HandleRecord(context.Background(), workloadmanager.Record{JobID: workloadmanager.SentinelJobID}))

	l.Insert(1, "sim", time.Now())
	l.SetStart(1, time.Now())
	require.NoError(t, ing.HandleRecord(context.Background(), workloadmanager.Record{
		JobID:  1,
		Events: []workloadmanager.Event{{Name: "finish", Timestamp: time.Now(), Status: 0}},
	}))

	require.Equal(t, 0, store.RulesForTrigger("job-finish")[0].Action.RepsRemaining, "live job-event rule must fire")
}
