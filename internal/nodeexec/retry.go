package nodeexec

import (
	"time"

	"github.com/smilemakc/prana/internal/domain"
)

// backoffDelay computes the sleep before retry attempt (1-based) per §4.3
// step 5: fixed uses InitialDelayMs unconditionally; exponential multiplies
// by Multiplier per prior attempt, capped at MaxDelayMs. Grounded on the
// teacher's retry.go calculateDelay, minus its jitter (the spec names only
// "fixed" and "exponential with multiplier", not jitter).
func backoffDelay(policy *domain.RetryPolicy, attempt int) time.Duration {
	if policy == nil {
		return 0
	}
	initial := time.Duration(policy.InitialDelayMs) * time.Millisecond
	max := time.Duration(policy.MaxDelayMs) * time.Millisecond

	var delay time.Duration
	switch policy.Backoff {
	case domain.BackoffExponential:
		mult := policy.Multiplier
		if mult <= 0 {
			mult = 2.0
		}
		d := float64(initial)
		for i := 1; i < attempt; i++ {
			d *= mult
		}
		delay = time.Duration(d)
	default: // fixed
		delay = initial
	}

	if max > 0 && delay > max {
		delay = max
	}
	return delay
}

// retryable reports whether kind should trigger a retry under policy. An
// empty RetryOnErrors list means "retry any kind" (§4.3 step 5).
func retryable(policy *domain.RetryPolicy, kind domain.ErrorKind) bool {
	if policy == nil {
		return false
	}
	if len(policy.RetryOnErrors) == 0 {
		return true
	}
	for _, k := range policy.RetryOnErrors {
		if k == kind {
			return true
		}
	}
	return false
}
