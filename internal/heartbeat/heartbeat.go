// Package heartbeat is the ensemble controller's heartbeat component
// (spec component C6): on every tick it resamples the pending-start
// duration of every active job and re-evaluates heartbeat- and
// metric-triggered rules.
package heartbeat

import (
	"context"
	"time"

	"ensemble/internal/action"
	"ensemble/internal/ledger"
	"ensemble/internal/metricsregistry"
	"ensemble/internal/rulestore"
	"ensemble/pkg/logger"
)

// Heartbeat is C6. Like internal/ingest, Tick is only ever called from
// internal/reactor's single event loop.
type Heartbeat struct {
	store    *rulestore.Store
	ledger   *ledger.Ledger
	registry *metricsregistry.Registry
	executor *action.Executor
	now      func() time.Time
}

// New constructs C6.
func New(store *rulestore.Store, ledgerStore *ledger.Ledger, registry *metricsregistry.Registry, executor *action.Executor) *Heartbeat {
	return &Heartbeat{store: store, ledger: ledgerStore, registry: registry, executor: executor, now: time.Now}
}

// Tick runs one heartbeat cycle (spec §4.6): for every active ledger
// entry with a submit time but no start time yet, record its current
// pending duration as a new sample under "<group>-pending", then
// evaluate every heartbeat- and metric-triggered rule.
func (h *Heartbeat) Tick(ctx context.Context) {
	now := h.now()
	for _, entry := range h.ledger.PendingStarts() {
		h.registry.Record(entry.GroupName+"-pending", now.Sub(*entry.SubmitTS).Seconds())
	}

	for _, rule := range h.store.RulesForTrigger("heartbeat") {
		if err := h.executor.Evaluate(ctx, rule, action.FireContext{}); err != nil {
			logger.Log.Warn("heartbeat rule evaluation failed", "rule", rule.Name, "error", err)
		}
	}
	for _, rule := range h.store.RulesForTrigger("metric") {
		if err := h.executor.Evaluate(ctx, rule, action.FireContext{}); err != nil {
			logger.Log.Warn("metric rule evaluation failed", "rule", rule.Name, "error", err)
		}
	}
}
