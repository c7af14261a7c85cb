package orchestrator

import (
	"math"
	"sync/atomic"
)

// progressCeiling is the highest estimate reported before the stream completes
const progressCeiling = 0.99

// ProgressEstimator guesses how far a stream has got without knowing its
// final length. Below the expected length the estimate is linear; past it the
// estimate keeps creeping towards the ceiling instead of overshooting.
// Safe for concurrent use.
type ProgressEstimator struct {
	expected float64
	bits     atomic.Uint64
}

// NewProgressEstimator creates an estimator for an output of roughly expected characters
func NewProgressEstimator(expected int) *ProgressEstimator {
	if expected <= 0 {
		expected = DefaultExpectedChars
	}
	return &ProgressEstimator{expected: float64(expected)}
}

// Estimate maps an accumulated length to [0, progressCeiling]
func (p *ProgressEstimator) Estimate(accumulated int) float64 {
	if accumulated <= 0 {
		return 0
	}
	ratio := float64(accumulated) / p.expected
	const knee = 0.9
	if ratio <= knee {
		return ratio
	}
	// Exponential approach from the knee to the ceiling
	span := progressCeiling - knee
	return knee + span*(1-math.Exp(-(ratio-knee)/span))
}

// Observe records the accumulated length and returns the new estimate.
// The reported value never decreases.
func (p *ProgressEstimator) Observe(accumulated int) float64 {
	next := p.Estimate(accumulated)
	for {
		old := p.bits.Load()
		if next <= math.Float64frombits(old) {
			return math.Float64frombits(old)
		}
		if p.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// Complete marks the stream finished
func (p *ProgressEstimator) Complete() {
	p.bits.Store(math.Float64bits(1))
}

// Value returns the latest estimate
func (p *ProgressEstimator) Value() float64 {
	return math.Float64frombits(p.bits.Load())
}
