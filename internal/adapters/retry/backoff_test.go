package retry

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/loomhq/loom/internal/domain"
)

func TestBackoffDelaySequence(t *testing.T) {
	policy := domain.RetryPolicy{
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterEnabled:     false,
	}

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
	}

	for i, expected := range want {
		assert.Equal(t, expected, backoffDelay(policy, i+1, nil), "attempt %d", i+1)
	}
}

func TestBackoffJitterStaysWithinBounds(t *testing.T) {
	policy := domain.RetryPolicy{
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterEnabled:     true,
	}
	rng := rand.New(rand.NewSource(1))

	for attempt := 1; attempt <= 5; attempt++ {
		base := float64(time.Second) * float64(int(1)<<(attempt-1))
		for i := 0; i < 100; i++ {
			d := backoffDelay(policy, attempt, rng)
			assert.GreaterOrEqual(t, float64(d), base*0.75)
			assert.LessOrEqual(t, float64(d), base*1.25)
		}
	}
}

func TestBackoffEnforcesFloor(t *testing.T) {
	policy := domain.RetryPolicy{
		InitialDelay:      time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 1.0,
		JitterEnabled:     false,
	}

	assert.Equal(t, minBackoff, backoffDelay(policy, 1, nil))
}
