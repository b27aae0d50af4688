// Package ingest is the ensemble controller's event ingest component
// (spec component C5): the per-record procedure that updates the
// ledger and metrics registry from the workload manager's lifecycle
// stream and evaluates job-<event> and metric-triggered rules.
package ingest

import (
	"context"

	"ensemble/internal/action"
	"ensemble/internal/ledger"
	"ensemble/internal/metricsregistry"
	"ensemble/internal/rulestore"
	"ensemble/internal/workloadmanager"
	"ensemble/pkg/logger"
)

// Ingest is C5. It is not safe for concurrent HandleRecord calls —
// internal/reactor is the only caller, serializing every record
// through the single event loop (spec §5/§9).
type Ingest struct {
	store    *rulestore.Store
	ledger   *ledger.Ledger
	registry *metricsregistry.Registry
	executor *action.Executor

	sentinelSeen bool
	live         bool
}

// New constructs C5.
func New(store *rulestore.Store, ledgerStore *ledger.Ledger, registry *metricsregistry.Registry, executor *action.Executor) *Ingest {
	return &Ingest{store: store, ledger: ledgerStore, registry: registry, executor: executor}
}

// Live reports whether the sentinel record has been observed, i.e.
// the stream has transitioned from backlog replay to live events
// (spec §3 invariant 6).
func (i *Ingest) Live() bool { return i.live }

// HandleRecord processes one record from the workload manager's
// lifecycle stream.
func (i *Ingest) HandleRecord(ctx context.Context, rec workloadmanager.Record) error {
	if rec.JobID == workloadmanager.SentinelJobID {
		if i.sentinelSeen {
			logger.Log.Debug("sentinel record observed more than once, ignoring")
			return nil
		}
		i.sentinelSeen = true
		i.live = true
		logger.Log.Info("event stream transitioned from backlog to live")
		return nil
	}

	for _, evt := range rec.Events {
		switch evt.Name {
		case "submit":
			i.ledger.SetSubmit(rec.JobID, evt.Timestamp)

		case "start":
			if entry, ok := i.ledger.Get(rec.JobID); ok {
				i.ledger.SetStart(rec.JobID, evt.Timestamp)
				if entry.SubmitTS != nil {
					i.registry.Record(entry.GroupName+"-pending", evt.Timestamp.Sub(*entry.SubmitTS).Seconds())
				}
			}

		case "finish":
			if entry, ok := i.ledger.Get(rec.JobID); ok {
				if entry.StartTS != nil {
					i.registry.Record(entry.GroupName+"-duration", evt.Timestamp.Sub(*entry.StartTS).Seconds())
				}
				i.registry.Increment(entry.GroupName, "finished")
				if evt.Status == 0 {
					i.registry.Increment(entry.GroupName, "success")
				} else {
					i.registry.Increment(entry.GroupName, "failed")
				}
				i.ledger.Drop(rec.JobID)
			}
		}

		// job-<event> rules only fire once the stream is live: a
		// rule referencing "job-finish" must never fire for the
		// backlog of jobs that were already running before ensemble
		// attached (SPEC_FULL.md's decided Open Question).
		if i.live {
			for _, rule := range i.store.RulesForTrigger("job-" + evt.Name) {
				if err := i.executor.Evaluate(ctx, rule, action.FireContext{JobID: rec.JobID, EventName: evt.Name}); err != nil {
					logger.Log.Warn("job-event rule evaluation failed", "rule", rule.Name, "event", evt.Name, "job_id", rec.JobID, "error", err)
				}
			}
		}
	}

	// Metric-triggered rules are evaluated once per record, not once
	// per event within it (SPEC_FULL.md's decided Open Question).
	for _, rule := range i.store.RulesForTrigger("metric") {
		if err := i.executor.Evaluate(ctx, rule, action.FireContext{JobID: rec.JobID}); err != nil {
			logger.Log.Warn("metric rule evaluation failed", "rule", rule.Name, "job_id", rec.JobID, "error", err)
		}
	}
	return nil
}
