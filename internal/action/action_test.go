package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ensemble/internal/ledger"
	"ensemble/internal/metricsregistry"
	"ensemble/internal/rulestore"
	"ensemble/internal/rulestore/extension"
	"ensemble/internal/workloadmanager/fake"
)

func backoff(n int) *int { return &n }

func newSubmitRule(repetitions int, backoff *int, label string) *rulestore.Rule {
	return &rulestore.Rule{
		Trigger: rulestore.Trigger{Kind: rulestore.TriggerStart},
		Action: &rulestore.Action{
			Name:          rulestore.ActionSubmit,
			Label:         label,
			Repetitions:   repetitions,
			Backoff:       backoff,
			RepsRemaining: repetitions,
		},
	}
}

func newExecutor(t *testing.T, manager *fake.Manager, groups map[string][]rulestore.JobGroup) (*Executor, *ledger.Ledger) {
	t.Helper()
	store := &rulestore.Store{Groups: groups}
	l := ledger.New()
	reg := metricsregistry.New()
	return New(store, l, reg, manager, nil, nil, nil, Config{}), l
}

func TestStep_FiresAndDecrementsWithoutBackoff(t *testing.T) {
	a := &rulestore.Action{Name: rulestore.ActionSubmit, Repetitions: 2, RepsRemaining: 2}
	require.True(t, step(a))
	require.Equal(t, 1, a.RepsRemaining)
	require.False(t, a.Disabled)

	require.True(t, step(a))
	require.Equal(t, 0, a.RepsRemaining)
	require.True(t, a.Disabled)

	require.False(t, step(a))
}

func TestStep_DisabledNeverFiresAgain(t *testing.T) {
	a := &rulestore.Action{Name: rulestore.ActionSubmit, Repetitions: 1, RepsRemaining: 0, Disabled: true}
	require.False(t, step(a))
	require.False(t, step(a))
}

func TestStep_BackoffCooldownSkipsThenFires(t *testing.T) {
	a := &rulestore.Action{Name: rulestore.ActionSubmit, Repetitions: 3, RepsRemaining: 3, Backoff: backoff(2)}

	// BackoffCounter starts at zero, so the first call fires and
	// arms a two-tick cooldown.
	require.True(t, step(a))
	require.Equal(t, 2, a.RepsRemaining)
	require.Equal(t, 2, a.BackoffCounter)

	require.False(t, step(a))
	require.Equal(t, 1, a.BackoffCounter)

	require.False(t, step(a))
	require.Equal(t, 0, a.BackoffCounter)

	require.True(t, step(a))
	require.Equal(t, 1, a.RepsRemaining)
	require.Equal(t, 2, a.BackoffCounter)
}

func TestEvaluate_MetricRuleUnresolvedPathSkipsWithoutAdvancingState(t *testing.T) {
	manager := fake.New()
	exec, _ := newExecutor(t, manager, map[string][]rulestore.JobGroup{
		"sim": {{Name: "sim", Command: "run", Count: 1, Nodes: 1}},
	})
	rule := &rulestore.Rule{
		Trigger: rulestore.Trigger{Kind: rulestore.TriggerMetric},
		Name:    "mean.sim-duration",
		Action:  &rulestore.Action{Name: rulestore.ActionSubmit, Label: "sim", Repetitions: 1, RepsRemaining: 1},
	}
	require.NoError(t, exec.Evaluate(context.Background(), rule, FireContext{}))
	require.Equal(t, 1, rule.Action.RepsRemaining, "unresolved metric path must not consume a repetition")
}

func TestEvaluate_MetricRuleWhenFalseSkipsWithoutAdvancingState(t *testing.T) {
	manager := fake.New()
	exec, _ := newExecutor(t, manager, map[string][]rulestore.JobGroup{
		"sim": {{Name: "sim", Command: "run", Count: 1, Nodes: 1}},
	})
	exec.registry.Record("sim-duration", 1.0)

	rule := &rulestore.Rule{
		Trigger: rulestore.Trigger{Kind: rulestore.TriggerMetric},
		Name:    "mean.sim-duration",
		When:    rulestore.When{Present: true, Op: rulestore.CmpGT, RHS: 100},
		Action:  &rulestore.Action{Name: rulestore.ActionSubmit, Label: "sim", Repetitions: 1, RepsRemaining: 1},
	}
	require.NoError(t, exec.Evaluate(context.Background(), rule, FireContext{}))
	require.Equal(t, 1, rule.Action.RepsRemaining)
}

func TestEvaluate_SubmitExpandsGroupAndInsertsLedgerEntries(t *testing.T) {
	manager := fake.New()
	exec, l := newExecutor(t, manager, map[string][]rulestore.JobGroup{
		"sim": {{Name: "sim", Command: "run", Count: 3, Nodes: 2, Tasks: 1}},
	})
	rule := newSubmitRule(1, nil, "sim")

	require.NoError(t, exec.Evaluate(context.Background(), rule, FireContext{}))
	require.True(t, rule.Action.Disabled)
	require.Equal(t, 3, l.Len())

	for jobID := 1; jobID <= 3; jobID++ {
		entry, ok := l.Get(jobID)
		require.True(t, ok)
		require.Equal(t, "sim", entry.GroupName)
		require.NotNil(t, entry.SubmitTS)
	}
}

func TestDoCustom_OneLevelRedispatchAllowed(t *testing.T) {
	extension.Reset()
	defer extension.Reset()
	extension.Register("bump", func(_ context.Context, _ extension.HandlerCall) (*extension.ActionDescriptor, error) {
		return &extension.ActionDescriptor{Name: "submit", Label: "sim"}, nil
	})

	manager := fake.New()
	exec, l := newExecutor(t, manager, map[string][]rulestore.JobGroup{
		"sim": {{Name: "sim", Command: "run", Count: 1, Nodes: 1}},
	})
	rule := &rulestore.Rule{
		Trigger: rulestore.Trigger{Kind: rulestore.TriggerStart},
		Action:  &rulestore.Action{Name: rulestore.ActionCustom, Label: "bump", Repetitions: 1, RepsRemaining: 1},
	}

	require.NoError(t, exec.Evaluate(context.Background(), rule, FireContext{}))
	require.Equal(t, 1, l.Len())
}

func TestDoCustom_RedispatchToCustomIsRejected(t *testing.T) {
	extension.Reset()
	defer extension.Reset()
	extension.Register("loop", func(_ context.Context, _ extension.HandlerCall) (*extension.ActionDescriptor, error) {
		return &extension.ActionDescriptor{Name: "custom", Label: "loop"}, nil
	})

	manager := fake.New()
	exec, _ := newExecutor(t, manager, nil)
	rule := &rulestore.Rule{
		Trigger: rulestore.Trigger{Kind: rulestore.TriggerStart},
		Action:  &rulestore.Action{Name: rulestore.ActionCustom, Label: "loop", Repetitions: 1, RepsRemaining: 1},
	}

	err := exec.Evaluate(context.Background(), rule, FireContext{})
	require.Error(t, err)
}

func TestDoTerminate_SetsTerminatedAndInvokesHook(t *testing.T) {
	manager := fake.New()
	store := &rulestore.Store{}
	l := ledger.New()
	reg := metricsregistry.New()
	called := false
	exec := New(store, l, reg, manager, nil, nil, nil, Config{OnTerminate: func(_ context.Context) { called = true }})

	rule := &rulestore.Rule{
		Trigger: rulestore.Trigger{Kind: rulestore.TriggerStart},
		Action:  &rulestore.Action{Name: rulestore.ActionTerminate, Repetitions: 1, RepsRemaining: 1},
	}
	require.NoError(t, exec.Evaluate(context.Background(), rule, FireContext{}))
	require.True(t, exec.Terminated())
	require.True(t, called)
}
