package cmd

import (
	"context"
	"testing"
	"time"
)

func TestPublishServerUptimeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Telemetry is uninitialized; the gauges degrade to no-ops.
		publishServerUptime(ctx, time.Now(), time.Millisecond)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("uptime publisher did not stop after cancellation")
	}
}
