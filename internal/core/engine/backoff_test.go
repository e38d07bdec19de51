package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

func TestBackoffDelayGrowsToCeiling(t *testing.T) {
	policy := &BackoffPolicy{
		Base:        600 * time.Millisecond,
		Ceiling:     8 * time.Second,
		MaxAttempts: 8,
		Rand:        func() float64 { return 1 }, // jitter factor 1.0
	}

	require.Equal(t, 600*time.Millisecond, policy.DelayForAttempt(0, 0))
	require.Equal(t, 1200*time.Millisecond, policy.DelayForAttempt(1, 0))
	require.Equal(t, 2400*time.Millisecond, policy.DelayForAttempt(2, 0))
	require.Equal(t, 4800*time.Millisecond, policy.DelayForAttempt(3, 0))
	require.Equal(t, 8*time.Second, policy.DelayForAttempt(4, 0))
	require.Equal(t, 8*time.Second, policy.DelayForAttempt(9, 0))
}

func TestBackoffJitterBounds(t *testing.T) {
	policy := &BackoffPolicy{
		Base:        time.Second,
		Ceiling:     8 * time.Second,
		MaxAttempts: 5,
	}

	for i := 0; i < 200; i++ {
		delay := policy.DelayForAttempt(1, 0)
		require.GreaterOrEqual(t, delay, time.Second)
		require.LessOrEqual(t, delay, 2*time.Second)
	}
}

func TestBackoffHonorsServerHint(t *testing.T) {
	policy := &BackoffPolicy{
		Base:            600 * time.Millisecond,
		Ceiling:         8 * time.Second,
		MaxAttempts:     5,
		HonorServerHint: true,
		Rand:            func() float64 { return 0 },
	}

	// The hint wins even when it exceeds the ceiling.
	require.Equal(t, 30*time.Second, policy.DelayForAttempt(0, 30*time.Second))

	policy.HonorServerHint = false
	require.Equal(t, 300*time.Millisecond, policy.DelayForAttempt(0, 30*time.Second))
}

func TestBackoffShouldRetry(t *testing.T) {
	policy := &BackoffPolicy{Base: time.Second, Ceiling: 8 * time.Second, MaxAttempts: 3}

	cases := []struct {
		name    string
		attempt int
		kind    core.ErrorKind
		want    bool
	}{
		{"network first attempt", 0, core.ErrorKindNetwork, true},
		{"timeout second attempt", 1, core.ErrorKindTimeout, true},
		{"rate limited last attempt", 2, core.ErrorKindRateLimited, false},
		{"server error exhausted", 5, core.ErrorKindServerError, false},
		{"not found never retries", 0, core.ErrorKindNotFound, false},
		{"unauthorized never retries", 0, core.ErrorKindUnauthorized, false},
		{"forbidden never retries", 0, core.ErrorKindForbidden, false},
		{"parse error never retries", 0, core.ErrorKindParse, false},
		{"cancelled never retries", 0, core.ErrorKindCancelled, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, policy.ShouldRetry(tc.attempt, tc.kind))
		})
	}
}
