// Package controller wires C1-C7 and internal/reactor into a runnable
// ensemble controller instance and owns its graceful shutdown.
package controller

import (
	"context"
	"time"

	elasticityclient "ensemble/internal/elasticity/client"
	"ensemble/internal/action"
	"ensemble/internal/heartbeat"
	"ensemble/internal/ingest"
	"ensemble/internal/ledger"
	"ensemble/internal/metricsregistry"
	"ensemble/internal/reactor"
	"ensemble/internal/rulestore"
	"ensemble/internal/workloadmanager"
	"ensemble/pkg/apperror"
	"ensemble/pkg/audit"
	"ensemble/pkg/logger"
	"ensemble/pkg/metrics"
)

// Options configures a Controller.
type Options struct {
	DocumentPath string
	Manager      workloadmanager.Manager
	Elastic      *elasticityclient.Client
	AuditLogger  audit.Logger
	MetricsSink  *metrics.Metrics
	ActionConfig action.Config
}

// Controller is the assembled ensemble instance: C1 (metricsregistry),
// C2 (ledger), C3 (rulestore), C4 (action), C5 (ingest), C6
// (heartbeat), driven by internal/reactor's single event loop. The C7
// elasticity client is dialed by the caller and passed in via Options.
type Controller struct {
	store    *rulestore.Store
	registry *metricsregistry.Registry
	ledger   *ledger.Ledger
	executor *action.Executor
	reactor  *reactor.Reactor
}

// New loads the ensemble document at opts.DocumentPath against
// opts.Manager and assembles every component. opts.Manager must be
// non-nil; opts.Elastic/AuditLogger/MetricsSink may be nil.
func New(opts Options) (*Controller, error) {
	if opts.Manager == nil {
		return nil, apperror.New(apperror.CodeInvalidArgument, "controller requires a workload manager")
	}

	store, err := rulestore.Load(opts.DocumentPath, opts.Manager)
	if err != nil {
		return nil, err
	}

	registry := metricsregistry.NewWithSink(opts.MetricsSink)
	ledgerStore := ledger.NewWithSink(opts.MetricsSink)
	executor := action.New(store, ledgerStore, registry, opts.Manager, opts.Elastic, opts.AuditLogger, opts.MetricsSink, opts.ActionConfig)
	ing := ingest.New(store, ledgerStore, registry, executor)
	hb := heartbeat.New(store, ledgerStore, registry, executor)
	r := reactor.New(store, opts.Manager, executor, ing, hb, store.HeartbeatInterval())

	return &Controller{store: store, registry: registry, ledger: ledgerStore, executor: executor, reactor: r}, nil
}

// Run blocks until the event stream ends, ctx is cancelled, or a
// terminate action dispatches.
func (c *Controller) Run(ctx context.Context) error {
	logger.Log.Info("ensemble controller starting",
		"groups", len(c.store.Groups),
		"rules", len(c.store.AllRules()),
		"heartbeat_required", c.store.HeartbeatRequired,
		"heartbeat_interval", c.store.HeartbeatInterval(),
	)
	return c.reactor.Run(ctx)
}

// Terminated reports whether a terminate action has dispatched.
func (c *Controller) Terminated() bool { return c.executor.Terminated() }

// Summary returns a point-in-time snapshot of every resolvable metric
// path, for the supplemented periodic metrics-log feature
// (pkg/config.LogConfig.MetricsLogInterval).
func (c *Controller) Summary() map[string]float64 { return c.registry.SummariseAll() }

// LedgerSize reports the current number of active (non-finished) jobs.
func (c *Controller) LedgerSize() int { return c.ledger.Len() }

// LogSummaryPeriodically logs a metrics summary every interval until
// ctx is cancelled. A zero interval disables it.
func LogSummaryPeriodically(ctx context.Context, c *Controller, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Log.Info("metrics summary", "ledger_size", c.LedgerSize(), "summary", c.Summary())
		}
	}
}
