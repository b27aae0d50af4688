package rulestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble/internal/rulestore/extension"
)

type fakeExecutor struct {
	events map[string]bool
}

func (f fakeExecutor) Name() string { return "fake" }
func (f fakeExecutor) SupportsEvent(event string) bool {
	return f.events[event]
}

func TestParse_S1SingleSubmitOnStart(t *testing.T) {
	doc := []byte(`
jobs:
  - name: g
    command: hostname
    count: 2
    nodes: 1
rules:
  - trigger: start
    action:
      name: submit
      label: g
      repetitions: 1
`)
	store, err := Parse(doc, nil)
	require.NoError(t, err)
	require.Len(t, store.Groups["g"], 1)
	assert.Equal(t, 2, store.Groups["g"][0].Count)

	rules := store.RulesForTrigger("start")
	require.Len(t, rules, 1)
	assert.Equal(t, ActionSubmit, rules[0].Action.Name)
	assert.Equal(t, 1, rules[0].Action.RepsRemaining)
}

func TestParse_MetricRuleNameValidatedEagerly(t *testing.T) {
	doc := []byte(`
jobs:
  - {name: g, command: hostname}
rules:
  - trigger: metric
    name: count.g.finished
    when: ">= 5"
    action: {name: terminate}
`)
	store, err := Parse(doc, nil)
	require.NoError(t, err)
	rules := store.RulesForTrigger("metric")
	require.Len(t, rules, 1)
	assert.True(t, rules[0].When.Present)
	assert.Equal(t, CmpGE, rules[0].When.Op)
	assert.Equal(t, 5.0, rules[0].When.RHS)
}

func TestParse_MetricRuleRejectsMalformedPath(t *testing.T) {
	doc := []byte(`
jobs:
  - {name: g, command: hostname}
rules:
  - trigger: metric
    name: notdotted
    action: {name: terminate}
`)
	_, err := Parse(doc, nil)
	require.Error(t, err)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	doc := []byte(`
jobs:
  - {name: g, command: hostname}
bogus: true
`)
	_, err := Parse(doc, nil)
	require.Error(t, err)
}

func TestParse_UnsupportedTriggerRejected(t *testing.T) {
	doc := []byte(`
jobs:
  - {name: g, command: hostname}
rules:
  - trigger: job-teleport
    action: {name: terminate}
`)
	exec := fakeExecutor{events: map[string]bool{"finish": true, "start": true}}
	_, err := Parse(doc, exec)
	require.Error(t, err)
}

func TestParse_CustomActionRequiresRegisteredHandler(t *testing.T) {
	extension.Reset()
	doc := []byte(`
jobs:
  - {name: g, command: hostname}
rules:
  - trigger: job-finish
    action: {name: custom, label: notify}
`)
	_, err := Parse(doc, nil)
	require.Error(t, err)

	extension.Register("notify", func(_ context.Context, _ extension.HandlerCall) (*extension.ActionDescriptor, error) {
		return nil, nil
	})
	defer extension.Reset()

	_, err = Parse(doc, nil)
	require.NoError(t, err)
}

func TestParse_ShrinkZeroMagnitudeRejected(t *testing.T) {
	doc := []byte(`
jobs:
  - {name: g, command: hostname}
rules:
  - trigger: heartbeat
    action: {name: shrink, value: 0}
`)
	_, err := Parse(doc, nil)
	require.Error(t, err)
}

func TestParse_HeartbeatRequiredDerivedFromGrowShrink(t *testing.T) {
	doc := []byte(`
jobs:
  - {name: g, command: hostname}
rules:
  - trigger: heartbeat
    action: {name: grow, value: 2}
`)
	store, err := Parse(doc, nil)
	require.NoError(t, err)
	assert.True(t, store.HeartbeatRequired)
	assert.Equal(t, int64(60), int64(store.HeartbeatInterval().Seconds()))
}

func TestParseWhen_AllComparators(t *testing.T) {
	cases := map[string]Comparator{
		">= 5":  CmpGE,
		"<= 5":  CmpLE,
		"> 5":   CmpGT,
		"< 5":   CmpLT,
		"= 5":   CmpEQ,
		"== 5":  CmpEQ,
		"5":     CmpEQ,
	}
	for raw, want := range cases {
		w, err := parseWhen(scalarNode{raw: raw, set: true})
		require.NoError(t, err, raw)
		assert.Equal(t, want, w.Op, raw)
		// Strict comparators are false at equality; the rest hold at 5.
		assert.Equal(t, want != CmpGT && want != CmpLT, w.Evaluate(5), raw)
	}
}
