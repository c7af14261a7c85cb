package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressEstimator(t *testing.T) {
	p := NewProgressEstimator(1000)

	assert.Equal(t, 0.0, p.Estimate(0))
	assert.InDelta(t, 0.5, p.Estimate(500), 1e-9)
	assert.InDelta(t, 0.9, p.Estimate(900), 1e-9)

	over := p.Estimate(1000)
	assert.Greater(t, over, 0.9)
	assert.Less(t, over, progressCeiling)

	huge := p.Estimate(1_000_000)
	assert.LessOrEqual(t, huge, progressCeiling)
	assert.Greater(t, huge, over)
}

func TestProgressEstimator_Monotonic(t *testing.T) {
	p := NewProgressEstimator(100)

	prev := 0.0
	for n := 0; n <= 1000; n += 7 {
		v := p.Observe(n)
		assert.GreaterOrEqual(t, v, prev)
		assert.LessOrEqual(t, v, progressCeiling)
		prev = v
	}

	// A smaller observation never moves the estimate back
	assert.Equal(t, prev, p.Observe(10))

	p.Complete()
	assert.Equal(t, 1.0, p.Value())
}

func TestProgressEstimator_DefaultExpected(t *testing.T) {
	p := NewProgressEstimator(0)
	assert.InDelta(t, 0.5, p.Estimate(DefaultExpectedChars/2), 1e-9)
}
