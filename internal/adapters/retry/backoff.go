package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/loomhq/loom/internal/domain"
)

const minBackoff = 100 * time.Millisecond

// backoffDelay computes the wait before the next attempt: the initial delay
// scaled exponentially per completed attempt, clamped to the policy maximum.
// Jitter, when enabled, spreads the result across ±25% of the computed value.
func backoffDelay(policy domain.RetryPolicy, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(policy.InitialDelay) * math.Pow(policy.BackoffMultiplier, float64(attempt-1))
	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	if policy.JitterEnabled && rng != nil {
		delay *= 0.75 + rng.Float64()*0.5
	}

	d := time.Duration(delay)
	if d < minBackoff {
		d = minBackoff
	}
	return d
}
