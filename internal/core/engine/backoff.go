package engine

import (
	"math"
	"math/rand"
	"time"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

// BackoffPolicy computes retry delays for transient fetch failures.
type BackoffPolicy struct {
	// Base is the delay before the first retry, pre-jitter.
	Base time.Duration
	// Ceiling caps the exponential growth, pre-jitter.
	Ceiling time.Duration
	// MaxAttempts bounds total attempts per fetch, including the first.
	MaxAttempts int
	// HonorServerHint lets an upstream Retry-After override the
	// computed delay.
	HonorServerHint bool
	// Rand supplies jitter in [0, 1). Defaults to the shared source.
	Rand func() float64
}

// ShouldRetry reports whether another attempt is allowed after a
// failure of the given kind. attempt is zero-based and counts the
// attempt that just failed.
func (p *BackoffPolicy) ShouldRetry(attempt int, kind core.ErrorKind) bool {
	if p == nil {
		return false
	}
	if !kind.Retryable() {
		return false
	}
	return attempt+1 < p.MaxAttempts
}

// DelayForAttempt returns the wait before retrying the given zero-based
// attempt. The exponential delay grows as base*2^attempt up to the
// ceiling, then uniform jitter in [0.5d, d] is applied. A positive
// server hint replaces the computed delay entirely when the policy
// honors hints; hints are never jittered below their stated value.
func (p *BackoffPolicy) DelayForAttempt(attempt int, serverHint time.Duration) time.Duration {
	if p == nil {
		return 0
	}

	if p.HonorServerHint && serverHint > 0 {
		return serverHint
	}

	base := p.Base
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if p.Ceiling > 0 && (delay > p.Ceiling || delay <= 0) {
		delay = p.Ceiling
	}

	// Uniform jitter in [0.5d, d] keeps retries from aligning across
	// workers while preserving the monotonic pre-jitter schedule.
	jitter := 0.5 + 0.5*p.random()
	return time.Duration(float64(delay) * jitter)
}

func (p *BackoffPolicy) random() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	return rand.Float64()
}
