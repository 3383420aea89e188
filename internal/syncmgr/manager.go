package syncmgr

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/condorhq/fieldops/internal/bus"
	"github.com/condorhq/fieldops/internal/netmon"
	"github.com/condorhq/fieldops/internal/status"
	"github.com/condorhq/fieldops/internal/store"
	"go.uber.org/zap"
)

// OrderSender is the interface for replaying a queued order payload through
// the order-submission endpoint. Transport errors and non-2xx responses are
// both reported as a plain error; the manager treats them identically.
type OrderSender interface {
	SendOrder(ctx context.Context, payload []byte) error
}

// Manager drains the durable queue when connectivity is available.
type Manager struct {
	db      *store.DB
	sender  OrderSender
	monitor *netmon.Monitor
	bus     *bus.Bus
	logger  *zap.Logger
	cancel  context.CancelFunc

	// draining guards against re-entrant drains: a Drain call while one is
	// in progress is a no-op.
	draining atomic.Bool

	// backoff computes the pacing delay after a failed attempt before the
	// next item in the same pass. Overridable in tests.
	backoff func(retries int) time.Duration
}

// New creates a sync manager over the given queue.
func New(db *store.DB, sender OrderSender, monitor *netmon.Monitor, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		db:      db,
		sender:  sender,
		monitor: monitor,
		bus:     b,
		logger:  logger,
		backoff: func(retries int) time.Duration {
			return time.Duration(1<<retries) * time.Second
		},
	}
}

// Start subscribes to connectivity events and drains on every transition to
// online. An initial drain runs immediately in case entries queued up while
// the agent was down.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	ch, unsub := m.bus.Subscribe("net.online", 16)

	go func() {
		defer unsub()
		m.Drain(ctx)
		for {
			select {
			case <-ch:
				m.Drain(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the manager.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Drain attempts to send every actionable queued order, oldest first, one
// in-flight send at a time. It is a no-op when a drain is already running,
// when offline, or when the queue is empty. Exactly one status event is
// published per completed pass: sync.synced, sync.offline or sync.online.
func (m *Manager) Drain(ctx context.Context) {
	if !m.draining.CompareAndSwap(false, true) {
		return
	}
	defer m.draining.Store(false)

	if !m.monitor.Online(ctx) {
		return
	}

	entries, err := m.db.Actionable()
	if err != nil {
		m.logger.Error("failed to read queue", zap.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}

	m.bus.Publish(bus.Event{
		Kind:      "sync.syncing",
		Timestamp: time.Now(),
		Payload:   map[string]int{"count": len(entries)},
	})

	sent := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if err := m.db.MarkStatus(entry.ID, status.ItemSending); err != nil {
			m.logger.Error("failed to mark sending", zap.Error(err), zap.Int64("id", entry.ID))
			continue
		}

		if err := m.sender.SendOrder(ctx, entry.Payload); err != nil {
			m.logger.Warn("queued order send failed",
				zap.Error(err),
				zap.Int64("id", entry.ID),
				zap.Int("retries", entry.Retries+1))
			if dbErr := m.db.MarkError(entry.ID, entry.Retries+1); dbErr != nil {
				m.logger.Error("failed to mark error", zap.Error(dbErr), zap.Int64("id", entry.ID))
			}
			// Pacing delay before the next item, not a scheduled retry.
			m.sleep(ctx, m.backoff(entry.Retries))
			continue
		}

		if err := m.db.MarkStatus(entry.ID, status.ItemSent); err != nil {
			m.logger.Error("failed to mark sent", zap.Error(err), zap.Int64("id", entry.ID))
		}
		sent++
		m.logger.Info("queued order sent", zap.Int64("id", entry.ID))
	}

	if err := m.db.PurgeSent(); err != nil {
		m.logger.Error("failed to purge sent entries", zap.Error(err))
	}

	m.notify(sent)
}

// sleep waits for the given duration without stalling shutdown.
func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (m *Manager) notify(sent int) {
	if sent > 0 {
		m.bus.Publish(bus.Event{
			Kind:      "sync.synced",
			Timestamp: time.Now(),
			Payload:   map[string]int{"count": sent},
		})
		return
	}

	remaining, err := m.db.ActionableCount()
	if err != nil {
		m.logger.Error("failed to count remaining entries", zap.Error(err))
		return
	}
	if remaining > 0 {
		m.bus.Publish(bus.Event{
			Kind:      "sync.offline",
			Timestamp: time.Now(),
			Payload:   map[string]int{"count": remaining},
		})
		return
	}
	m.bus.Publish(bus.Event{Kind: "sync.online", Timestamp: time.Now()})
}
