// Package health probes downstream sinks in the background so the dispatcher
// can skip endpoints that are down instead of burning attempts on them.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Monitor struct {
	sinks    []string
	client   *http.Client
	interval time.Duration

	mu     sync.RWMutex
	status map[string]bool
}

func NewMonitor(sinks []string, interval time.Duration) *Monitor {
	return &Monitor{
		sinks:    sinks,
		client:   &http.Client{Timeout: 2 * time.Second},
		interval: interval,
		status:   make(map[string]bool),
	}
}

// Start launches the probe loop. Sinks are optimistically healthy until the
// first probe says otherwise.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		m.probeAll(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probeAll(ctx)
			}
		}
	}()
}

func (m *Monitor) probeAll(ctx context.Context) {
	for _, sink := range m.sinks {
		healthy := m.probe(ctx, sink)

		m.mu.Lock()
		previous, known := m.status[sink]
		m.status[sink] = healthy
		m.mu.Unlock()

		if known && previous != healthy {
			slog.Info("sink health changed", "sink", sink, "healthy", healthy)
		}
	}
}

// probe sends a HEAD request. Any HTTP response short of a server error means
// the sink is reachable; webhook endpoints routinely answer 405 to HEAD.
func (m *Monitor) probe(ctx context.Context, sink string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, sink, nil)
	if err != nil {
		return false
	}

	res, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()

	return res.StatusCode < 500
}

func (m *Monitor) Healthy(sink string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	healthy, known := m.status[sink]
	if !known {
		return true
	}
	return healthy
}

func (m *Monitor) Snapshot() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]bool, len(m.status))
	for sink, healthy := range m.status {
		snapshot[sink] = healthy
	}
	return snapshot
}
