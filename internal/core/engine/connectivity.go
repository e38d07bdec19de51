package engine

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// ConnectivityMonitor probes a well-known endpoint on an interval and
// tracks online state. Transitions are debounced: the state only flips
// after Threshold consecutive probes disagree with it, so a single
// dropped probe does not pause fetching.
type ConnectivityMonitor struct {
	ProbeURL string
	Interval time.Duration
	// Threshold is the number of consecutive contrary probe outcomes
	// required to flip state. Values < 1 behave as 1.
	Threshold int
	Client    *http.Client
	// OnChange is invoked after each state flip, outside the monitor
	// lock.
	OnChange func(online bool)

	mu     sync.Mutex
	online bool
	streak int
	seeded bool
}

// Online reports the current debounced state. Before the first probe
// the monitor is optimistic.
func (m *ConnectivityMonitor) Online() bool {
	if m == nil {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.seeded {
		return true
	}
	return m.online
}

// Run probes until ctx is cancelled.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	if m == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	interval := m.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	m.Observe(m.probe(ctx))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Observe(m.probe(ctx))
		}
	}
}

// Observe feeds one probe outcome into the debounce window.
func (m *ConnectivityMonitor) Observe(reachable bool) {
	if m == nil {
		return
	}

	m.mu.Lock()
	if !m.seeded {
		m.seeded = true
		m.online = true
	}

	if reachable == m.online {
		m.streak = 0
		m.mu.Unlock()
		return
	}

	threshold := m.Threshold
	if threshold < 1 {
		threshold = 1
	}

	m.streak++
	if m.streak < threshold {
		m.mu.Unlock()
		return
	}

	m.online = reachable
	m.streak = 0
	onChange := m.OnChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(reachable)
	}
}

func (m *ConnectivityMonitor) probe(ctx context.Context) bool {
	probeURL := m.ProbeURL
	if probeURL == "" {
		probeURL = "https://www.google.com/generate_204"
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, probeURL, nil)
	if err != nil {
		return false
	}

	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	return resp.StatusCode < 500
}
