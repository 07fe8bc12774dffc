// Package retryengine implements the transient-failure classification and
// exponential-backoff-with-jitter retry driver shared by every provider
// dialect in internal/provideradapter.
package retryengine

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	// Base is the initial backoff duration.
	Base time.Duration
	// Max is the ceiling every computed delay is clamped to.
	Max time.Duration
	// Factor is the exponential growth factor applied per attempt.
	Factor float64
	// JitterRatio is the symmetric jitter fraction applied to the delay,
	// e.g. 0.2 spreads the delay across [delay*0.8, delay*1.2].
	JitterRatio float64
}

// DefaultPolicy matches the spec's default: 4 attempts, 250ms base, 8s max, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		Base:        250 * time.Millisecond,
		Max:         8 * time.Second,
		Factor:      2,
		JitterRatio: 0.2,
	}
}

// MaxAttempts is the default attempt budget paired with DefaultPolicy.
const MaxAttempts = 4

// ComputeDelay calculates the backoff duration for a given attempt number
// (1-indexed). The formula is base = Base * Factor^(attempt-1), clamped to
// Max, then a symmetric jitter within ±JitterRatio of the clamped value is
// applied and the result clamped to Max again.
func ComputeDelay(policy Policy, attempt int) time.Duration {
	return computeDelayWithRand(policy, attempt, rand.Float64())
}

func computeDelayWithRand(policy Policy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(policy.Base) * math.Pow(policy.Factor, exp)
	if maxNs := float64(policy.Max); base > maxNs {
		base = maxNs
	}

	// symmetric jitter: scale factor in [1-ratio, 1+ratio]
	jitterScale := 1 + policy.JitterRatio*(2*randomValue-1)
	jittered := base * jitterScale
	if jittered < 0 {
		jittered = 0
	}
	if maxNs := float64(policy.Max); jittered > maxNs {
		jittered = maxNs
	}

	return time.Duration(math.Round(jittered))
}

// WithRetryAfter replaces the computed base delay with an explicit duration
// from a Retry-After header, still subject to the policy's jitter filter.
func WithRetryAfter(policy Policy, retryAfter time.Duration) time.Duration {
	base := float64(retryAfter)
	if maxNs := float64(policy.Max); base > maxNs {
		base = maxNs
	}
	jitterScale := 1 + policy.JitterRatio*(2*rand.Float64()-1)
	jittered := base * jitterScale
	if jittered < 0 {
		jittered = 0
	}
	if maxNs := float64(policy.Max); jittered > maxNs {
		jittered = maxNs
	}
	return time.Duration(math.Round(jittered))
}
