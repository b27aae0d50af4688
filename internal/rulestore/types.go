// Package rulestore is the ensemble controller's rule store (spec
// component C3): it parses and validates the ensemble document
// (jobs/rules/logging/custom), builds job groups and rules indexed by
// trigger in declaration order, and is the single place config
// validation errors are raised (spec §7's "Configuration error").
package rulestore

import "time"

// JobGroup mirrors spec.md's job-group declaration. A name may appear
// multiple times in the document; Store keeps every occurrence and
// Submit (internal/action) iterates all of them.
type JobGroup struct {
	Name        string `yaml:"name"`
	Command     string `yaml:"command"`
	Workdir     string `yaml:"workdir"`
	Count       int    `yaml:"count"`
	Nodes       int    `yaml:"nodes"`
	Tasks       int    `yaml:"tasks"`
	Duration    int    `yaml:"duration"`
	MaxInflight int    `yaml:"max_inflight"` // parsed and stored; internal/action's submit does not enforce it

	// Elastic* address this group's compute pool custom resource for
	// grow/shrink dispatch (internal/action -> C7 -> C8). Empty fields
	// fall back to the executor's configured defaults.
	ElasticGroup   string `yaml:"elastic_group"`
	ElasticVersion string `yaml:"elastic_version"`
	ElasticMember  string `yaml:"elastic_member"`
}

// TriggerKind enumerates spec.md's trigger categories.
type TriggerKind string

const (
	TriggerStart     TriggerKind = "start"
	TriggerMetric    TriggerKind = "metric"
	TriggerHeartbeat TriggerKind = "heartbeat"
	TriggerJobEvent  TriggerKind = "job"
)

// Trigger is the parsed form of a rule's trigger string. For
// TriggerJobEvent, JobEvent holds the event name after "job-"
// (e.g. "finish" for "job-finish").
type Trigger struct {
	Kind     TriggerKind
	JobEvent string
	raw      string
}

// String returns the trigger in its original config spelling.
func (t Trigger) String() string {
	return t.raw
}

// Comparator is one of the six comparison operators spec.md's `when`
// field may spell out ("<= x", ">= x", "< x", "> x", "= x", "== x").
type Comparator string

const (
	CmpEQ Comparator = "=="
	CmpLT Comparator = "<"
	CmpLE Comparator = "<="
	CmpGT Comparator = ">"
	CmpGE Comparator = ">="
)

// When is a rule's optional threshold condition. Present=false means
// the rule is unconditional ("when absent = unconditional", spec §3
// invariant 4).
type When struct {
	Present bool
	Op      Comparator
	RHS     float64
}

// Evaluate tests a scalar metric reading against the condition.
func (w When) Evaluate(v float64) bool {
	if !w.Present {
		return true
	}
	switch w.Op {
	case CmpLT:
		return v < w.RHS
	case CmpLE:
		return v <= w.RHS
	case CmpGT:
		return v > w.RHS
	case CmpGE:
		return v >= w.RHS
	default:
		return v == w.RHS
	}
}

// ActionName enumerates spec.md's five dispatchable action kinds.
type ActionName string

const (
	ActionSubmit    ActionName = "submit"
	ActionCustom    ActionName = "custom"
	ActionTerminate ActionName = "terminate"
	ActionGrow      ActionName = "grow"
	ActionShrink    ActionName = "shrink"
)

// Action is a rule's action declaration plus its mutable per-rule
// firing state (repetitions_remaining, backoff_counter). Config and
// runtime state are kept in the same struct because the spec treats
// them as one per-rule object; internal/action.Executor is the only
// thing that mutates the runtime fields.
type Action struct {
	Name        ActionName
	Label       string
	Value       string
	Repetitions int
	Backoff     *int

	RepsRemaining  int
	BackoffCounter int
	Disabled       bool
}

// Rule is a configured trigger/action pair plus its declaration
// index, which is the firing order within its trigger bucket.
type Rule struct {
	Trigger Trigger
	Name    string
	When    When
	Action  *Action

	index int
}

// Index returns the rule's position among all rules sharing its
// trigger kind, in declaration order.
func (r *Rule) Index() int { return r.index }

// LoggingConfig mirrors the ensemble document's "logging" section.
type LoggingConfig struct {
	Debug     bool
	Heartbeat int // seconds; 0 means "not explicitly set"
}

// CustomDecl is one entry of the ensemble document's "custom" section
// — a reference to a statically-registered extension.Handler, not
// literal source (SPEC_FULL.md's redesign of spec.md's dynamic
// user-code section).
type CustomDecl struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// HeartbeatInterval returns the effective heartbeat tick period:
// the document's explicit logging.heartbeat when set, otherwise 60s.
// The 60s default applies whether or not HeartbeatRequired is set;
// this method never reports a disabled (zero) heartbeat.
func (s *Store) HeartbeatInterval() time.Duration {
	if s.Logging.Heartbeat > 0 {
		return time.Duration(s.Logging.Heartbeat) * time.Second
	}
	return 60 * time.Second
}
