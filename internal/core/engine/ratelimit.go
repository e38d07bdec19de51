package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

// RateLimitJournal persists rate limit diagnostics for an endpoint.
type RateLimitJournal interface {
	GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error
}

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// CapacityPerMinute is the sustained request budget. Values <= 0
	// fall back to DefaultCapacityPerMinute.
	CapacityPerMinute int
	// MinInterval is the minimum spacing between granted permits.
	// Zero disables the floor.
	MinInterval time.Duration
	// MinPenalty is the lower bound applied to every cooldown, even
	// when the server hints at a shorter one.
	MinPenalty time.Duration
}

// DefaultCapacityPerMinute is the fallback request budget.
const DefaultCapacityPerMinute = 60

// RateLimiter is a shared token bucket with a minimum-spacing floor and
// a cooldown window applied after upstream rate-limit responses. All
// admission decisions are made in memory; the optional journal only
// records state for later inspection.
type RateLimiter struct {
	Journal  RateLimitJournal
	Endpoint string
	Clock    func() time.Time

	mu            sync.Mutex
	capacity      float64
	refillPerSec  float64
	minInterval   time.Duration
	minPenalty    time.Duration
	tokens        float64
	lastRefill    time.Time
	lastGrant     time.Time
	cooldownUntil time.Time
	grants        int
	windowStart   time.Time
}

// RateLimiterSnapshot is a point-in-time view of limiter state.
type RateLimiterSnapshot struct {
	Tokens            float64       `json:"tokens"`
	Capacity          int           `json:"capacity"`
	MinInterval       time.Duration `json:"min_interval"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	Grants            int           `json:"grants"`
}

// NewRateLimiter builds a limiter with a full bucket.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	capacity := cfg.CapacityPerMinute
	if capacity <= 0 {
		capacity = DefaultCapacityPerMinute
	}

	return &RateLimiter{
		capacity:     float64(capacity),
		refillPerSec: float64(capacity) / 60.0,
		minInterval:  cfg.MinInterval,
		minPenalty:   cfg.MinPenalty,
		tokens:       float64(capacity),
	}
}

// TryAcquire attempts to take one permit without blocking. When denied
// it returns a suggested wait before the next attempt. The hint is
// advisory; callers must call TryAcquire again after waiting.
func (r *RateLimiter) TryAcquire() (bool, time.Duration) {
	if r == nil {
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.refill(now)

	if now.Before(r.cooldownUntil) {
		return false, r.cooldownUntil.Sub(now)
	}

	if r.tokens < 1 {
		deficit := 1 - r.tokens
		wait := time.Duration(deficit / r.refillPerSec * float64(time.Second))
		if wait <= 0 {
			wait = time.Millisecond
		}
		return false, wait
	}

	if r.minInterval > 0 && !r.lastGrant.IsZero() {
		elapsed := now.Sub(r.lastGrant)
		if elapsed < r.minInterval {
			return false, r.minInterval - elapsed
		}
	}

	r.tokens--
	r.lastGrant = now
	r.grants++
	if r.windowStart.IsZero() {
		r.windowStart = now
	}
	return true, 0
}

// ReportRateLimited applies a cooldown after an upstream rate-limit
// response. The window never shrinks: the effective penalty is the
// larger of the server hint and the configured minimum, and a later
// cooldown never moves an existing one earlier.
func (r *RateLimiter) ReportRateLimited(ctx context.Context, retryAfter time.Duration) {
	if r == nil {
		return
	}

	r.mu.Lock()
	now := r.now()
	penalty := retryAfter
	if penalty < r.minPenalty {
		penalty = r.minPenalty
	}
	until := now.Add(penalty)
	if until.After(r.cooldownUntil) {
		r.cooldownUntil = until
	}
	journalUntil := r.cooldownUntil
	r.mu.Unlock()

	r.journalPenalty(ctx, now, journalUntil)
}

// Snapshot returns current limiter state for diagnostics.
func (r *RateLimiter) Snapshot() RateLimiterSnapshot {
	if r == nil {
		return RateLimiterSnapshot{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.refill(now)

	snapshot := RateLimiterSnapshot{
		Tokens:      r.tokens,
		Capacity:    int(r.capacity),
		MinInterval: r.minInterval,
		Grants:      r.grants,
	}
	if now.Before(r.cooldownUntil) {
		snapshot.CooldownRemaining = r.cooldownUntil.Sub(now)
	}
	return snapshot
}

// FlushUsage writes the accumulated grant count to the journal. The
// scheduler calls this at the end of each cycle.
func (r *RateLimiter) FlushUsage(ctx context.Context) error {
	if r == nil || r.Journal == nil {
		return nil
	}

	r.mu.Lock()
	grants := r.grants
	windowStart := r.windowStart
	r.mu.Unlock()

	if grants == 0 {
		return nil
	}

	state, err := r.Journal.GetRateLimit(ctx, r.endpoint())
	if err != nil {
		return err
	}
	if state == nil {
		state = &core.RateLimitState{WindowStart: windowStart}
	}
	state.RequestCount = grants
	if state.WindowStart.IsZero() {
		state.WindowStart = windowStart
	}

	return r.Journal.UpdateRateLimit(ctx, r.endpoint(), state)
}

// refill adds tokens for time elapsed since the last refill. Caller
// holds the mutex.
func (r *RateLimiter) refill(now time.Time) {
	if r.lastRefill.IsZero() {
		r.lastRefill = now
		return
	}

	elapsed := now.Sub(r.lastRefill)
	if elapsed <= 0 {
		return
	}

	r.tokens += elapsed.Seconds() * r.refillPerSec
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
	r.lastRefill = now
}

func (r *RateLimiter) journalPenalty(ctx context.Context, at time.Time, until time.Time) {
	if r.Journal == nil {
		return
	}

	state, err := r.Journal.GetRateLimit(ctx, r.endpoint())
	if err != nil || state == nil {
		state = &core.RateLimitState{WindowStart: at}
	}
	state.Last429At = &at
	state.BackoffUntil = &until

	// Best effort: a journal failure never blocks admission control.
	_ = r.Journal.UpdateRateLimit(ctx, r.endpoint(), state)
}

func (r *RateLimiter) endpoint() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	return "default"
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
