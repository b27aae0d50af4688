// Package metricsregistry is the ensemble controller's metrics registry
// (spec component C1): single-pass running estimators over per-key
// numeric samples (mean, variance, min, max, iqr, mad) plus a nested
// count.<group>.<counter> counter tree.
package metricsregistry

import (
	"math"
	"sort"
)

// welford computes mean, (sample) variance, min and max in a single
// pass, using Welford's online algorithm so query is O(1) regardless
// of how many samples were observed.
type welford struct {
	n      int64
	mean   float64
	m2     float64
	min    float64
	max    float64
	hasObs bool
}

func (w *welford) add(x float64) {
	w.n++
	if !w.hasObs || x < w.min {
		w.min = x
	}
	if !w.hasObs || x > w.max {
		w.max = x
	}
	w.hasObs = true

	delta := x - w.mean
	w.mean += delta / float64(w.n)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

func (w *welford) variance() float64 {
	if w.n < 2 {
		return 0
	}
	return w.m2 / float64(w.n-1)
}

// p2Estimator is the P² algorithm (Jain & Chlamtac, 1985) for
// estimating a single quantile from a data stream in one pass with
// O(1) memory and O(1) amortized update/query cost. No library in the
// retrieved pack offers streaming quantiles, so this is hand-rolled
// per DESIGN.md's stdlib-justification audit.
type p2Estimator struct {
	p           float64
	count       int
	initialized bool
	initial     [5]float64
	n           [5]float64
	npos        [5]float64
	dn          [5]float64
	q           [5]float64
}

func newP2(p float64) *p2Estimator {
	return &p2Estimator{p: p}
}

func (e *p2Estimator) add(x float64) {
	e.count++
	if !e.initialized {
		e.initial[e.count-1] = x
		if e.count == 5 {
			sort.Float64s(e.initial[:])
			for i := 0; i < 5; i++ {
				e.q[i] = e.initial[i]
				e.n[i] = float64(i + 1)
			}
			e.npos[0] = 1
			e.npos[1] = 1 + 2*e.p
			e.npos[2] = 1 + 4*e.p
			e.npos[3] = 3 + 2*e.p
			e.npos[4] = 5
			e.dn[0] = 0
			e.dn[1] = e.p / 2
			e.dn[2] = e.p
			e.dn[3] = (1 + e.p) / 2
			e.dn[4] = 1
			e.initialized = true
		}
		return
	}

	var k int
	switch {
	case x < e.q[0]:
		e.q[0] = x
		k = 0
	case x >= e.q[4]:
		e.q[4] = x
		k = 3
	default:
		for i := 0; i < 4; i++ {
			if e.q[i] <= x && x < e.q[i+1] {
				k = i
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		e.n[i]++
	}
	for i := 0; i < 5; i++ {
		e.npos[i] += e.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := e.npos[i] - e.n[i]
		if (d >= 1 && e.n[i+1]-e.n[i] > 1) || (d <= -1 && e.n[i-1]-e.n[i] < -1) {
			sign := 1.0
			if d < 0 {
				sign = -1.0
			}
			qNew := e.parabolic(i, sign)
			if e.q[i-1] < qNew && qNew < e.q[i+1] {
				e.q[i] = qNew
			} else {
				e.q[i] = e.linear(i, sign)
			}
			e.n[i] += sign
		}
	}
}

func (e *p2Estimator) parabolic(i int, d float64) float64 {
	return e.q[i] + d/(e.n[i+1]-e.n[i-1])*(
		(e.n[i]-e.n[i-1]+d)*(e.q[i+1]-e.q[i])/(e.n[i+1]-e.n[i])+
			(e.n[i+1]-e.n[i]-d)*(e.q[i]-e.q[i-1])/(e.n[i]-e.n[i-1]))
}

func (e *p2Estimator) linear(i int, d float64) float64 {
	j := i + int(d)
	return e.q[i] + d*(e.q[j]-e.q[i])/(e.n[j]-e.n[i])
}

// value reports the current quantile estimate, or false if no samples
// have been observed yet.
func (e *p2Estimator) value() (float64, bool) {
	if e.initialized {
		return e.q[2], true
	}
	if e.count == 0 {
		return 0, false
	}

	buf := append([]float64(nil), e.initial[:e.count]...)
	sort.Float64s(buf)
	if len(buf) == 1 {
		return buf[0], true
	}
	idx := e.p * float64(len(buf)-1)
	lo := int(idx)
	if lo >= len(buf)-1 {
		return buf[len(buf)-1], true
	}
	frac := idx - float64(lo)
	return buf[lo]*(1-frac) + buf[lo+1]*frac, true
}

// estimatorSet bundles every numeric estimator tracked for one record
// key (e.g. "training-pending" or "training-duration").
type estimatorSet struct {
	w        welford
	q1, q3   *p2Estimator
	median   *p2Estimator
	devMedAb *p2Estimator // running median of |x - median|, i.e. MAD
}

func newEstimatorSet() *estimatorSet {
	return &estimatorSet{
		q1:       newP2(0.25),
		q3:       newP2(0.75),
		median:   newP2(0.5),
		devMedAb: newP2(0.5),
	}
}

func (es *estimatorSet) add(x float64) {
	es.w.add(x)
	es.q1.add(x)
	es.q3.add(x)
	es.median.add(x)
	if med, ok := es.median.value(); ok {
		es.devMedAb.add(math.Abs(x - med))
	}
}

func (es *estimatorSet) iqr() (float64, bool) {
	lo, ok1 := es.q1.value()
	hi, ok2 := es.q3.value()
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi - lo, true
}

func (es *estimatorSet) mad() (float64, bool) {
	return es.devMedAb.value()
}
