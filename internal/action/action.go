// Package action is the ensemble controller's action executor (spec
// component C4): it holds the per-rule repetitions/backoff firing
// state machine and dispatches the five action kinds a rule's fire()
// resolves to (submit, grow, shrink, custom, terminate), wiring
// together internal/ledger, internal/metricsregistry,
// internal/workloadmanager and internal/elasticity/client.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"ensemble/internal/elasticity/client"
	"ensemble/internal/ledger"
	"ensemble/internal/metricsregistry"
	"ensemble/internal/rulestore"
	"ensemble/internal/rulestore/extension"
	"ensemble/internal/wiremsg"
	"ensemble/internal/workloadmanager"
	"ensemble/pkg/apperror"
	"ensemble/pkg/audit"
	"ensemble/pkg/logger"
	"ensemble/pkg/metrics"
)

// Config carries the executor's fallback elasticity addressing and the
// hook invoked when a terminate action dispatches.
type Config struct {
	DefaultElasticGroup   string
	DefaultElasticVersion string
	DefaultElasticMember  string

	OnTerminate func(ctx context.Context)
}

// FireContext is the per-record/per-tick context a fire carries
// through to custom extension handlers. JobID/EventName are zero for
// start/heartbeat/metric triggers that don't originate from a
// specific job event.
type FireContext struct {
	JobID     int
	EventName string
}

// Executor is C4.
type Executor struct {
	store    *rulestore.Store
	ledger   *ledger.Ledger
	registry *metricsregistry.Registry
	manager  workloadmanager.Manager
	elastic  *client.Client
	audit    audit.Logger
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time

	mu         sync.Mutex
	terminated bool
}

// New constructs C4's executor. elastic and auditLogger may be nil
// (grow/shrink then return an error, and audit logging is skipped);
// metricsSink may be nil.
func New(store *rulestore.Store, ledgerStore *ledger.Ledger, registry *metricsregistry.Registry, manager workloadmanager.Manager, elastic *client.Client, auditLogger audit.Logger, metricsSink *metrics.Metrics, cfg Config) *Executor {
	return &Executor{
		store:    store,
		ledger:   ledgerStore,
		registry: registry,
		manager:  manager,
		elastic:  elastic,
		audit:    auditLogger,
		metrics:  metricsSink,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Terminated reports whether a terminate action has dispatched;
// internal/reactor polls this to stop the event loop gracefully.
func (e *Executor) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

// Evaluate is the single entry point internal/ingest and
// internal/heartbeat call for every candidate rule. For a metric-
// triggered rule it resolves rule.Name against the registry and
// applies rule.When first (spec §4.4): an unresolved path or a failed
// threshold test skips the rule without touching its repetitions or
// backoff counters. Every other trigger kind proceeds straight to the
// firing state machine.
func (e *Executor) Evaluate(ctx context.Context, rule *rulestore.Rule, fc FireContext) error {
	if rule.Trigger.Kind == rulestore.TriggerMetric {
		v, ok := e.registry.Get(rule.Name)
		if !ok {
			return nil
		}
		if !rule.When.Evaluate(v) {
			return nil
		}
	}
	return e.fireRule(ctx, rule, fc)
}

// fireRule runs the reps/backoff state machine and, if it says to
// fire, dispatches the rule's action.
func (e *Executor) fireRule(ctx context.Context, rule *rulestore.Rule, fc FireContext) error {
	if !step(rule.Action) {
		return nil
	}
	start := e.now()
	err := e.dispatch(ctx, rule, rule.Action, fc, 0)
	e.record(rule, err, e.now().Sub(start))
	return err
}

// step advances a's runtime firing state exactly as spec §4.4
// describes it, and reports whether the action should fire this call.
func step(a *rulestore.Action) bool {
	if a.Disabled || a.RepsRemaining == 0 {
		a.Disabled = true
		return false
	}
	if a.Backoff == nil {
		a.RepsRemaining--
		if a.RepsRemaining == 0 {
			a.Disabled = true
		}
		return true
	}
	if a.BackoffCounter > 0 {
		a.BackoffCounter--
		return false
	}
	a.BackoffCounter = *a.Backoff
	a.RepsRemaining--
	if a.RepsRemaining == 0 {
		a.Disabled = true
	}
	return true
}

func (e *Executor) dispatch(ctx context.Context, rule *rulestore.Rule, a *rulestore.Action, fc FireContext, depth int) error {
	switch a.Name {
	case rulestore.ActionSubmit:
		return e.doSubmit(ctx, a.Label)
	case rulestore.ActionGrow:
		return e.doResize(ctx, a, "grow")
	case rulestore.ActionShrink:
		return e.doResize(ctx, a, "shrink")
	case rulestore.ActionTerminate:
		return e.doTerminate(ctx)
	case rulestore.ActionCustom:
		return e.doCustom(ctx, rule, a, fc, depth)
	default:
		return apperror.New(apperror.CodeInvalidAction, fmt.Sprintf("unknown action %q", a.Name))
	}
}

// doSubmit expands every job-group declaration named by label (or, if
// label is empty, every declared group) into Count submissions,
// widening tasks to nodes when tasks < nodes (spec §4.4), and inserts
// a ledger entry for each returned job id immediately rather than
// waiting for the workload manager's own submit event.
func (e *Executor) doSubmit(ctx context.Context, label string) error {
	groups := e.groupsForLabel(label)
	if len(groups) == 0 {
		return apperror.New(apperror.CodeUnknownGroup, fmt.Sprintf("submit: no job group declared for label %q", label))
	}
	var errs []error
	for _, g := range groups {
		tasks := g.Tasks
		if tasks < g.Nodes {
			tasks = g.Nodes
		}
		spec := workloadmanager.JobSpec{
			Command:  []string{"/bin/sh", "-c", g.Command},
			Workdir:  g.Workdir,
			Nodes:    g.Nodes,
			Tasks:    tasks,
			Duration: g.Duration,
		}
		count := g.Count
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			id, err := e.manager.Submit(ctx, spec)
			if err != nil {
				errs = append(errs, apperror.Wrap(err, apperror.CodeEvaluationError, fmt.Sprintf("submit job group %q", g.Name)))
				continue
			}
			e.ledger.Insert(id, g.Name, e.now())
		}
	}
	return errors.Join(errs...)
}

// doResize builds a resize payload and issues it through C7 for every
// group declaration addressed by a.Label (spec §4.4/§4.7).
func (e *Executor) doResize(ctx context.Context, a *rulestore.Action, action string) error {
	if e.elastic == nil {
		return apperror.New(apperror.CodeElasticityUnavailable, fmt.Sprintf("%s: no elasticity client configured", action))
	}
	groups := e.groupsForLabel(a.Label)
	if len(groups) == 0 {
		return apperror.New(apperror.CodeUnknownGroup, fmt.Sprintf("%s: no job group declared for label %q", action, a.Label))
	}

	magnitude, err := parseMagnitude(a.Value)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidCapacity, fmt.Sprintf("%s: invalid value %q", action, a.Value))
	}

	var errs []error
	for _, g := range groups {
		member := firstNonEmpty(g.ElasticMember, e.cfg.DefaultElasticMember, pluralize(g.Name))
		version := firstNonEmpty(g.ElasticVersion, e.cfg.DefaultElasticVersion)
		apiGroup := firstNonEmpty(g.ElasticGroup, e.cfg.DefaultElasticGroup)

		payload := wiremsg.ResizePayload{Version: version, Group: apiGroup}
		if action == "grow" {
			payload.Grow = &magnitude
		} else {
			payload.Shrink = &magnitude
		}
		buf, err := json.Marshal(payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		status, respPayload, err := e.elastic.ActionRequest(ctx, member, g.Name, action, buf)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if status != wiremsg.StatusSuccess {
			errs = append(errs, apperror.New(apperror.CodeResizeRejected, fmt.Sprintf("%s rejected for group %q: %s", action, g.Name, string(respPayload))))
		}
	}
	return errors.Join(errs...)
}

// doTerminate marks the executor terminated. internal/reactor checks
// Terminated() on each loop iteration and stops feeding records to
// ingest and ticks to heartbeat once it flips, rather than killing the
// process outright.
func (e *Executor) doTerminate(ctx context.Context) error {
	e.mu.Lock()
	e.terminated = true
	e.mu.Unlock()
	if e.cfg.OnTerminate != nil {
		e.cfg.OnTerminate(ctx)
	}
	return nil
}

// doCustom invokes the label's registered extension handler and, per
// SPEC_FULL.md §9.ii, allows exactly one level of re-dispatch: a
// handler reached directly from a rule (depth 0) may request a
// follow-up action, but that follow-up may not itself be "custom."
func (e *Executor) doCustom(ctx context.Context, rule *rulestore.Rule, a *rulestore.Action, fc FireContext, depth int) error {
	if depth > 0 {
		return apperror.New(apperror.CodeRecursionLimit, "custom action cannot itself be reached via re-dispatch")
	}
	h, ok := extension.Lookup(a.Label)
	if !ok {
		return apperror.New(apperror.CodeHandlerNotRegistered, fmt.Sprintf("custom handler %q is not registered", a.Label))
	}

	desc, err := h(ctx, extension.HandlerCall{
		RuleName:  rule.Name,
		Trigger:   rule.Trigger.String(),
		EventName: fc.EventName,
		JobID:     fc.JobID,
		Metrics:   e.registry,
	})
	if err != nil {
		return apperror.Wrap(err, apperror.CodeEvaluationError, fmt.Sprintf("custom handler %q", a.Label))
	}
	if desc == nil {
		return nil
	}

	redispatch := &rulestore.Action{
		Name:        rulestore.ActionName(desc.Name),
		Label:       desc.Label,
		Value:       desc.Value,
		Repetitions: 1,
	}
	return e.dispatch(ctx, rule, redispatch, fc, depth+1)
}

func (e *Executor) groupsForLabel(label string) []rulestore.JobGroup {
	if label == "" {
		var all []rulestore.JobGroup
		for _, decls := range e.store.Groups {
			all = append(all, decls...)
		}
		return all
	}
	return e.store.Groups[label]
}

func (e *Executor) record(rule *rulestore.Rule, err error, dur time.Duration) {
	success := err == nil
	if e.metrics != nil {
		e.metrics.RecordRuleFire(rule.Name, rule.Action.Label)
		e.metrics.RecordAction(string(rule.Action.Name), success, dur)
	}
	if err != nil {
		logger.Log.Warn("action dispatch failed", "rule", rule.Name, "trigger", rule.Trigger.String(), "action", rule.Action.Name, "error", err)
	}
	if e.audit == nil {
		return
	}
	outcome := audit.OutcomeSuccess
	builder := audit.NewEntry().
		Service("ensemble").
		Method("Fire").
		Action(audit.ActionDispatch).
		Resource(string(rule.Action.Name), rule.Action.Label).
		Duration(dur).
		Meta("rule", rule.Name).
		Meta("trigger", rule.Trigger.String())
	if !success {
		outcome = audit.OutcomeFailure
		builder = builder.Error(string(apperror.CodeEvaluationError), err.Error())
	}
	entry := builder.Outcome(outcome).Build()
	if logErr := e.audit.Log(context.Background(), entry); logErr != nil {
		logger.Log.Warn("failed to log audit entry", "error", logErr)
	}
}

func parseMagnitude(value string) (int, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	return int(math.Abs(math.Round(f))), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// pluralize is a simple, deterministic English pluralization used as
// the last-resort fallback for a grow/shrink action's target resource
// plural name when neither the job group nor the executor config
// declares one explicitly. No ecosystem pluralization library is in
// the dependency set this exercise draws from, so this stays
// intentionally naive — see DESIGN.md.
func pluralize(name string) string {
	if name == "" {
		return name
	}
	switch name[len(name)-1] {
	case 's', 'x', 'z':
		return name + "es"
	default:
		return name + "s"
	}
}
