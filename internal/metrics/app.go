package metrics

import (
	"time"

	"github.com/rosterwatch/rosterwatch/internal/core"
	"github.com/rosterwatch/rosterwatch/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Fetch pipeline metrics
	FetchesTotal   = "app_fetches_total"
	CacheHitsTotal = "app_cache_hits_total"

	// Cycle metrics
	CyclesTotal   = "app_cycles_total"
	CycleDuration = "app_cycle_duration_ms"
	CycleItems    = "app_cycle_items"

	// Connectivity metrics
	ConnectivityFlipsTotal = "app_connectivity_flips_total"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordFetch records one finished fetch task with its outcome.
func RecordFetch(result core.FetchResult) {
	if observability.TelemetrySystem == nil {
		return
	}

	if result.FromCache {
		_ = observability.TelemetrySystem.Counter(CacheHitsTotal, 1, nil)
		return
	}

	outcome := "success"
	if !result.Success() {
		outcome = string(result.Err)
	}

	_ = observability.TelemetrySystem.Counter(
		FetchesTotal,
		1,
		map[string]string{"outcome": outcome},
	)
}

// RecordCycle records one completed refresh cycle.
func RecordCycle(stats core.CycleStats) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "completed"
	if stats.Aborted {
		status = "aborted"
	}

	_ = observability.TelemetrySystem.Counter(
		CyclesTotal,
		1,
		map[string]string{"status": status},
	)

	_ = observability.TelemetrySystem.Histogram(
		CycleDuration,
		stats.Elapsed,
		nil,
	)

	_ = observability.TelemetrySystem.Gauge(
		CycleItems,
		float64(stats.Total),
		nil,
	)
}

// RecordConnectivityFlip records a debounced online state change.
func RecordConnectivityFlip(online bool) {
	if observability.TelemetrySystem == nil {
		return
	}

	state := "offline"
	if online {
		state = "online"
	}

	_ = observability.TelemetrySystem.Counter(
		ConnectivityFlipsTotal,
		1,
		map[string]string{"state": state},
	)
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
