package netmon

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/condorhq/fieldops/internal/bus"
	"go.uber.org/zap"
)

// Probe checks reachability of the backend. A nil error means online.
type Probe func(ctx context.Context) error

// Monitor watches backend connectivity and publishes "net.online" /
// "net.offline" transitions on the bus. It is constructed once at startup and
// passed by reference to the sync manager and submission client.
type Monitor struct {
	probe    Probe
	counter  func() (int, error) // actionable queue count, attached to offline events
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc

	mu    sync.Mutex
	known bool
	last  bool
}

// New creates a connectivity monitor polling the given probe.
func New(probe Probe, counter func() (int, error), b *bus.Bus, logger *zap.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		probe:    probe,
		counter:  counter,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// HTTPProbe returns a probe that considers the backend online when its health
// endpoint answers with a 2xx.
func HTTPProbe(baseURL string, client *http.Client) Probe {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("health check status %d", resp.StatusCode)
		}
		return nil
	}
}

// Start begins polling connectivity. The first check runs immediately so
// startup with pending queue entries triggers a drain without waiting a tick.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)
}

// Stop stops the polling loop.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Monitor) loop(ctx context.Context) {
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Online reports connectivity at call time with a live probe, never a value
// cached from a previous tick.
func (m *Monitor) Online(ctx context.Context) bool {
	return m.probe(ctx) == nil
}

func (m *Monitor) check(ctx context.Context) {
	online := m.probe(ctx) == nil

	m.mu.Lock()
	changed := !m.known || online != m.last
	m.known = true
	m.last = online
	m.mu.Unlock()

	if !changed {
		return
	}

	if online {
		m.logger.Info("connectivity restored")
		m.bus.Publish(bus.Event{Kind: "net.online", Timestamp: time.Now()})
		return
	}

	count := 0
	if m.counter != nil {
		if n, err := m.counter(); err == nil {
			count = n
		} else {
			m.logger.Error("failed to count queued orders", zap.Error(err))
		}
	}
	m.logger.Info("connectivity lost", zap.Int("queued", count))
	m.bus.Publish(bus.Event{
		Kind:      "net.offline",
		Timestamp: time.Now(),
		Payload:   map[string]int{"count": count},
	})
}
