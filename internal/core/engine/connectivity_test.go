package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectivityStartsOptimistic(t *testing.T) {
	m := &ConnectivityMonitor{Threshold: 3}
	require.True(t, m.Online())
}

func TestConnectivityDebouncesFlips(t *testing.T) {
	var flips []bool
	m := &ConnectivityMonitor{
		Threshold: 3,
		OnChange:  func(online bool) { flips = append(flips, online) },
	}

	m.Observe(true)
	require.True(t, m.Online())

	// Two failures are below the threshold.
	m.Observe(false)
	m.Observe(false)
	require.True(t, m.Online())
	require.Empty(t, flips)

	m.Observe(false)
	require.False(t, m.Online())
	require.Equal(t, []bool{false}, flips)

	// Recovery also needs three consecutive successes.
	m.Observe(true)
	m.Observe(true)
	require.False(t, m.Online())

	m.Observe(true)
	require.True(t, m.Online())
	require.Equal(t, []bool{false, true}, flips)
}

func TestConnectivityStreakResetsOnAgreement(t *testing.T) {
	m := &ConnectivityMonitor{Threshold: 2}

	m.Observe(true)
	m.Observe(false)
	// A success resets the failure streak.
	m.Observe(true)
	m.Observe(false)
	require.True(t, m.Online())

	m.Observe(false)
	require.False(t, m.Online())
}

func TestConnectivityThresholdDefaultsToOne(t *testing.T) {
	m := &ConnectivityMonitor{}

	m.Observe(false)
	require.False(t, m.Online())

	m.Observe(true)
	require.True(t, m.Online())
}
