package rulestore

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ensemble/internal/rulestore/extension"
	"ensemble/pkg/apperror"
)

// Executor is the subset of a workload-manager executor (see
// internal/workloadmanager) the rule store needs at load time: the
// set of lifecycle event names it can actually emit, so a
// "job-<event>" rule referencing an event the executor never produces
// is rejected at load (spec.md: "load rejects unsupported-trigger
// rules").
type Executor interface {
	Name() string
	SupportsEvent(event string) bool
}

// rawDocument is the ensemble document's on-disk shape (spec §6).
// KnownFields(true) on the decoder rejects any key not listed here or
// in its nested structs, matching "unknown properties rejected."
type rawDocument struct {
	Jobs    []rawJob     `yaml:"jobs"`
	Rules   []rawRule    `yaml:"rules"`
	Logging rawLogging   `yaml:"logging"`
	Custom  []CustomDecl `yaml:"custom"`
}

type rawJob struct {
	Name        string `yaml:"name"`
	Command     string `yaml:"command"`
	Workdir     string `yaml:"workdir"`
	Count       int    `yaml:"count"`
	Nodes       int    `yaml:"nodes"`
	Tasks       int    `yaml:"tasks"`
	Duration    int    `yaml:"duration"`
	MaxInflight int    `yaml:"max_inflight"`

	ElasticGroup   string `yaml:"elastic_group"`
	ElasticVersion string `yaml:"elastic_version"`
	ElasticMember  string `yaml:"elastic_member"`
}

type rawRule struct {
	Trigger string     `yaml:"trigger"`
	Name    string     `yaml:"name"`
	When    scalarNode `yaml:"when"`
	Action  rawAction  `yaml:"action"`
}

type rawAction struct {
	Name        string     `yaml:"name"`
	Label       scalarNode `yaml:"label"`
	Value       scalarNode `yaml:"value"`
	Repetitions *int       `yaml:"repetitions"`
	Backoff     *int       `yaml:"backoff"`
}

type rawLogging struct {
	Debug     bool `yaml:"debug"`
	Heartbeat int  `yaml:"heartbeat"`
}

// Store is the loaded, validated ensemble document: job groups and
// rules indexed by trigger, in declaration order.
type Store struct {
	Groups  map[string][]JobGroup
	Logging LoggingConfig
	Custom  []CustomDecl

	HeartbeatRequired bool

	rulesByTrigger map[string][]*Rule
	allRules       []*Rule
}

// RulesForTrigger returns the rules registered under a raw trigger
// string ("start", "metric", "heartbeat", "job-finish", ...) in
// declaration order.
func (s *Store) RulesForTrigger(trigger string) []*Rule {
	return s.rulesByTrigger[trigger]
}

// AllRules returns every rule in declaration order, regardless of
// trigger.
func (s *Store) AllRules() []*Rule {
	return s.allRules
}

// Load reads, strictly decodes and validates the ensemble document at
// path. executor, if non-nil, is consulted to reject job-<event>
// rules for events the selected workload-manager executor cannot
// produce; pass nil to skip that check (e.g. in unit tests).
func Load(path string, executor Executor) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidRule, fmt.Sprintf("read ensemble document %s", path))
	}
	return Parse(data, executor)
}

// Parse decodes and validates raw ensemble-document bytes. Exported
// separately from Load so tests can exercise it without a filesystem.
func Parse(data []byte, executor Executor) (*Store, error) {
	var raw rawDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidRule, "ensemble document failed to parse")
	}

	store := &Store{
		Groups:         make(map[string][]JobGroup),
		Custom:         raw.Custom,
		rulesByTrigger: make(map[string][]*Rule),
	}

	if len(raw.Jobs) == 0 {
		return nil, apperror.New(apperror.CodeEmptyRuleSet, "ensemble document declares no job groups")
	}

	for i, j := range raw.Jobs {
		if j.Name == "" {
			return nil, apperror.NewWithField(apperror.CodeInvalidGroupName, fmt.Sprintf("jobs[%d]: name is required", i), "jobs.name")
		}
		if j.Command == "" {
			return nil, apperror.NewWithField(apperror.CodeInvalidRule, fmt.Sprintf("jobs[%d] (%s): command is required", i, j.Name), "jobs.command")
		}
		if j.Count == 0 {
			j.Count = 1
		}
		if j.Nodes == 0 {
			j.Nodes = 1
		}
		if j.Count < 1 {
			return nil, apperror.NewWithField(apperror.CodeInvalidCapacity, fmt.Sprintf("jobs[%d] (%s): count must be >= 1", i, j.Name), "jobs.count")
		}
		if j.Nodes < 1 {
			return nil, apperror.NewWithField(apperror.CodeInvalidCapacity, fmt.Sprintf("jobs[%d] (%s): nodes must be >= 1", i, j.Name), "jobs.nodes")
		}

		group := JobGroup{
			Name:           j.Name,
			Command:        j.Command,
			Workdir:        j.Workdir,
			Count:          j.Count,
			Nodes:          j.Nodes,
			Tasks:          j.Tasks,
			Duration:       j.Duration,
			MaxInflight:    j.MaxInflight,
			ElasticGroup:   j.ElasticGroup,
			ElasticVersion: j.ElasticVersion,
			ElasticMember:  j.ElasticMember,
		}
		store.Groups[j.Name] = append(store.Groups[j.Name], group)
	}

	// extension.Registered validates a custom decl resolves to a
	// handler even if no rule references it yet.
	for _, c := range raw.Custom {
		if !extension.Registered(c.Name) {
			return nil, apperror.NewWithField(apperror.CodeHandlerNotRegistered, fmt.Sprintf("custom declaration %q has no registered extension handler", c.Name), "custom.name")
		}
	}

	seenNames := make(map[string]bool)
	for i, rr := range raw.Rules {
		rule, err := buildRule(rr, executor)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidRule, fmt.Sprintf("rules[%d]", i))
		}
		if rule.Name != "" {
			if seenNames[rule.Name] {
				return nil, apperror.NewWithField(apperror.CodeDuplicateRuleName, fmt.Sprintf("duplicate rule name %q", rule.Name), "rules.name")
			}
			seenNames[rule.Name] = true
		}

		bucket := rule.Trigger.String()
		rule.index = len(store.rulesByTrigger[bucket])
		store.rulesByTrigger[bucket] = append(store.rulesByTrigger[bucket], rule)
		store.allRules = append(store.allRules, rule)

		if rule.Action.Name == ActionGrow || rule.Action.Name == ActionShrink {
			store.HeartbeatRequired = true
		}
	}

	store.Logging = LoggingConfig{Debug: raw.Logging.Debug, Heartbeat: raw.Logging.Heartbeat}

	return store, nil
}

func buildRule(rr rawRule, executor Executor) (*Rule, error) {
	trigger, err := parseTrigger(rr.Trigger)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidTrigger, "invalid trigger")
	}

	if trigger.Kind == TriggerJobEvent && executor != nil && !executor.SupportsEvent(trigger.JobEvent) {
		return nil, apperror.New(apperror.CodeInvalidTrigger, fmt.Sprintf("executor %q does not support event %q", executor.Name(), trigger.JobEvent))
	}

	if trigger.Kind == TriggerMetric {
		if rr.Name == "" || !isWellFormedMetricPath(rr.Name) {
			return nil, apperror.NewWithField(apperror.CodeInvalidThresholdExpr, fmt.Sprintf("metric rule name %q is not a well-formed dotted path", rr.Name), "rules.name")
		}
	}

	when, err := parseWhen(rr.When)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidThresholdExpr, "invalid when expression")
	}

	action, err := buildAction(rr.Action)
	if err != nil {
		return nil, err
	}

	return &Rule{
		Trigger: trigger,
		Name:    rr.Name,
		When:    when,
		Action:  action,
	}, nil
}

func buildAction(ra rawAction) (*Action, error) {
	name := ActionName(ra.Name)
	switch name {
	case ActionSubmit, ActionCustom, ActionTerminate, ActionGrow, ActionShrink:
	default:
		return nil, apperror.NewWithField(apperror.CodeInvalidAction, fmt.Sprintf("unknown action name %q", ra.Name), "action.name")
	}

	repetitions := 1
	if ra.Repetitions != nil {
		repetitions = *ra.Repetitions
	}
	if repetitions < 0 {
		return nil, apperror.NewWithField(apperror.CodeInvalidAction, "repetitions must be >= 0", "action.repetitions")
	}

	if ra.Backoff != nil && *ra.Backoff < 0 {
		return nil, apperror.NewWithField(apperror.CodeInvalidAction, "backoff must be >= 0", "action.backoff")
	}

	if name == ActionCustom {
		if !ra.Label.set || ra.Label.raw == "" {
			return nil, apperror.NewWithField(apperror.CodeHandlerNotRegistered, "custom action requires a label naming a registered handler", "action.label")
		}
		if !extension.Registered(ra.Label.raw) {
			return nil, apperror.NewWithField(apperror.CodeHandlerNotRegistered, fmt.Sprintf("custom action label %q has no registered extension handler", ra.Label.raw), "action.label")
		}
	}

	if name == ActionShrink || name == ActionGrow {
		if !ra.Value.set {
			return nil, apperror.NewWithField(apperror.CodeInvalidAction, fmt.Sprintf("%s action requires a numeric value", name), "action.value")
		}
		v, err := ra.Value.Float()
		if err != nil {
			return nil, apperror.NewWithField(apperror.CodeInvalidAction, fmt.Sprintf("%s action value %q is not numeric", name, ra.Value.raw), "action.value")
		}
		if v == 0 {
			return nil, apperror.New(apperror.CodeNegativeDelta, fmt.Sprintf("%s action with zero magnitude is rejected", name))
		}
	}

	a := &Action{
		Name:        name,
		Label:       ra.Label.raw,
		Value:       ra.Value.raw,
		Repetitions: repetitions,
		Backoff:     ra.Backoff,
	}
	a.RepsRemaining = repetitions
	if a.RepsRemaining == 0 {
		a.Disabled = true
	}
	return a, nil
}
