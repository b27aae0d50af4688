package metricsregistry

import (
	"fmt"
	"strings"
	"sync"

	"ensemble/pkg/metrics"
)

// statNames enumerates the dotted-path statistic prefixes get()/
// summarise() recognize, matching spec.md's MetricsModels: mean,
// variance, min, max, iqr, mad, plus the nested count tree.
var statNames = []string{"mean", "variance", "min", "max", "iqr", "mad"}

// Registry is C1: the running-statistics tree keyed by
// statistic_name -> key -> value, plus count.<group>.<counter>.
// All operations are safe for concurrent use, though spec §5 expects
// the reactor to be the sole caller in practice.
type Registry struct {
	mu       sync.RWMutex
	sets     map[string]*estimatorSet
	counters map[string]map[string]int64

	sink *metrics.Metrics // optional Prometheus export, nil in tests
}

// New constructs an empty registry with no Prometheus export.
func New() *Registry {
	return &Registry{
		sets:     make(map[string]*estimatorSet),
		counters: make(map[string]map[string]int64),
	}
}

// NewWithSink constructs a registry that mirrors every update into the
// given Prometheus metrics container's GroupStatValue gauge.
func NewWithSink(sink *metrics.Metrics) *Registry {
	r := New()
	r.sink = sink
	return r
}

// Record updates every numeric estimator (mean, variance, min, max,
// iqr, mad) tracked under key with a new observation. Per spec §4.1
// this is the single entry point event ingest and heartbeat use to
// feed a scalar sample (e.g. "<group>-pending", "<group>-duration").
func (r *Registry) Record(key string, value float64) {
	r.mu.Lock()
	es, ok := r.sets[key]
	if !ok {
		es = newEstimatorSet()
		r.sets[key] = es
	}
	es.add(value)
	snapshot := r.summariseLocked(key)
	r.mu.Unlock()

	if r.sink != nil {
		for stat, v := range snapshot {
			r.sink.SetGroupStatValue(key, stat, stat, v)
		}
	}
}

// Increment bumps count.<group>.<counter> by one. Counters always
// start implicit at zero; Get on an unincremented counter reports
// absent, matching "absent if any segment missing."
func (r *Registry) Increment(group, counter string) {
	r.mu.Lock()
	if r.counters[group] == nil {
		r.counters[group] = make(map[string]int64)
	}
	r.counters[group][counter]++
	v := r.counters[group][counter]
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.SetGroupStatValue(group, counter, "count", float64(v))
	}
}

// Get resolves a dotted path against the metrics tree. Paths of the
// form "<stat>.<key>" address mean/variance/min/max/iqr/mad; paths of
// the form "count.<group>.<counter>" address the counter tree.
// Absence of any path segment (unknown stat, unknown key, unknown
// group, unknown counter) reports ok=false, never a default value.
func (r *Registry) Get(path string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	head, rest, found := strings.Cut(path, ".")
	if !found {
		return 0, false
	}

	if head == "count" {
		group, counter, found := strings.Cut(rest, ".")
		if !found {
			return 0, false
		}
		byCounter, ok := r.counters[group]
		if !ok {
			return 0, false
		}
		v, ok := byCounter[counter]
		if !ok {
			return 0, false
		}
		return float64(v), true
	}

	if !isStat(head) {
		return 0, false
	}
	es, ok := r.sets[rest]
	if !ok {
		return 0, false
	}
	return statValue(es, head)
}

func isStat(name string) bool {
	for _, s := range statNames {
		if s == name {
			return true
		}
	}
	return false
}

func statValue(es *estimatorSet, stat string) (float64, bool) {
	switch stat {
	case "mean":
		if es.w.n == 0 {
			return 0, false
		}
		return es.w.mean, true
	case "variance":
		if es.w.n == 0 {
			return 0, false
		}
		return es.w.variance(), true
	case "min":
		if !es.w.hasObs {
			return 0, false
		}
		return es.w.min, true
	case "max":
		if !es.w.hasObs {
			return 0, false
		}
		return es.w.max, true
	case "iqr":
		return es.iqr()
	case "mad":
		return es.mad()
	default:
		return 0, false
	}
}

// SummariseAll returns every resolvable dotted path across both the
// numeric-estimator tree and the counter tree.
func (r *Registry) SummariseAll() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]float64)
	for key := range r.sets {
		for stat, v := range r.summariseLocked(key) {
			out[fmt.Sprintf("%s.%s", stat, key)] = v
		}
	}
	for group, counters := range r.counters {
		for counter, v := range counters {
			out[fmt.Sprintf("count.%s.%s", group, counter)] = float64(v)
		}
	}
	return out
}

// Summarise returns the resolvable mean/variance/min/max/iqr/mad
// values for a single key.
func (r *Registry) Summarise(key string) map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.summariseLocked(key)
}

func (r *Registry) summariseLocked(key string) map[string]float64 {
	es, ok := r.sets[key]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(statNames))
	for _, stat := range statNames {
		if v, ok := statValue(es, stat); ok {
			out[stat] = v
		}
	}
	return out
}
