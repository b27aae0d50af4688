// Package reactor is the ensemble controller's single cooperative
// event loop (spec §5): one goroutine owns the job ledger and metrics
// registry for their entire lifetime, processing lifecycle records and
// heartbeat ticks strictly one at a time. This is what makes
// internal/action's per-rule repetitions/backoff state safe to mutate
// without its own locking — every call into it is already serialized
// by the select below.
package reactor

import (
	"context"
	"time"

	"ensemble/internal/action"
	"ensemble/internal/heartbeat"
	"ensemble/internal/ingest"
	"ensemble/internal/rulestore"
	"ensemble/internal/workloadmanager"
	"ensemble/pkg/apperror"
	"ensemble/pkg/logger"
)

// Reactor ties C4 (action), C5 (ingest) and C6 (heartbeat) into the
// single event loop spec §5 describes.
type Reactor struct {
	store     *rulestore.Store
	manager   workloadmanager.Manager
	executor  *action.Executor
	ingest    *ingest.Ingest
	heartbeat *heartbeat.Heartbeat
	interval  time.Duration
}

// New constructs the reactor. interval is the heartbeat tick period,
// normally rulestore.Store.HeartbeatInterval().
func New(store *rulestore.Store, manager workloadmanager.Manager, executor *action.Executor, ing *ingest.Ingest, hb *heartbeat.Heartbeat, interval time.Duration) *Reactor {
	return &Reactor{store: store, manager: manager, executor: executor, ingest: ing, heartbeat: hb, interval: interval}
}

// Run evaluates start-triggered rules exactly once, then drives the
// event loop until the workload manager's record stream closes, the
// context is cancelled, or a terminate action dispatches.
func (r *Reactor) Run(ctx context.Context) error {
	records, err := r.manager.Records(ctx)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeEvaluationError, "open workload manager record stream")
	}

	for _, rule := range r.store.RulesForTrigger("start") {
		if err := r.executor.Evaluate(ctx, rule, action.FireContext{}); err != nil {
			logger.Log.Warn("start rule evaluation failed", "rule", rule.Name, "error", err)
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if r.executor.Terminated() {
			logger.Log.Info("reactor stopping: terminate action dispatched")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-records:
			if !ok {
				logger.Log.Info("reactor stopping: record stream closed")
				return nil
			}
			if err := r.ingest.HandleRecord(ctx, rec); err != nil {
				logger.Log.Warn("record handling failed", "job_id", rec.JobID, "error", err)
			}
		case <-ticker.C:
			r.heartbeat.Tick(ctx)
		}
	}
}
