package rulestore

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// scalarNode decodes a YAML scalar that may be written as either a
// string or a number (spec.md: label(str|num), value(str|num)).
// Internally it is always kept as its original text so grow/shrink
// magnitudes and custom labels can be reparsed as needed.
type scalarNode struct {
	raw string
	set bool
}

func (s *scalarNode) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		s.set = false
		return nil
	}
	s.raw = node.Value
	s.set = true
	return nil
}

func (s scalarNode) String() string { return s.raw }

func (s scalarNode) Float() (float64, error) {
	return strconv.ParseFloat(s.raw, 64)
}

func parseTrigger(raw string) (Trigger, error) {
	switch raw {
	case string(TriggerStart):
		return Trigger{Kind: TriggerStart, raw: raw}, nil
	case string(TriggerMetric):
		return Trigger{Kind: TriggerMetric, raw: raw}, nil
	case string(TriggerHeartbeat):
		return Trigger{Kind: TriggerHeartbeat, raw: raw}, nil
	}
	if event, ok := strings.CutPrefix(raw, "job-"); ok {
		if event == "" {
			return Trigger{}, fmt.Errorf("invalid trigger %q: empty job event name", raw)
		}
		return Trigger{Kind: TriggerJobEvent, JobEvent: event, raw: raw}, nil
	}
	return Trigger{}, fmt.Errorf("invalid trigger %q", raw)
}

func parseWhen(s scalarNode) (When, error) {
	if !s.set || strings.TrimSpace(s.raw) == "" {
		return When{Present: false}, nil
	}

	raw := strings.TrimSpace(s.raw)
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return When{Present: true, Op: CmpEQ, RHS: v}, nil
	}

	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return When{}, fmt.Errorf("invalid when expression %q", raw)
	}

	op := Comparator(parts[0])
	switch op {
	case CmpEQ, CmpLT, CmpLE, CmpGT, CmpGE:
	case "=":
		op = CmpEQ
	default:
		return When{}, fmt.Errorf("invalid comparator %q in when expression %q", parts[0], raw)
	}

	v, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return When{}, fmt.Errorf("invalid threshold in when expression %q: %w", raw, err)
	}
	return When{Present: true, Op: op, RHS: v}, nil
}

// isWellFormedMetricPath performs the syntax-only validation spec.md
// requires at load time for a metric rule's dotted name: it must have
// at least two non-empty dot-separated segments. Whether the path
// actually resolves against the registry at runtime is unrelated —
// an unresolved metric rule is simply skipped per spec §4.4.
func isWellFormedMetricPath(path string) bool {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
