package syncmgr

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/condorhq/fieldops/internal/bus"
	"github.com/condorhq/fieldops/internal/netmon"
	"github.com/condorhq/fieldops/internal/status"
	"github.com/condorhq/fieldops/internal/store"
	"go.uber.org/zap"
)

// mockSender records payloads and returns configurable results.
type mockSender struct {
	mu    sync.Mutex
	calls [][]byte
	err   error
	block chan struct{} // when set, SendOrder waits until closed
}

func (m *mockSender) SendOrder(_ context.Context, payload []byte) error {
	m.mu.Lock()
	m.calls = append(m.calls, payload)
	m.mu.Unlock()
	if m.block != nil {
		<-m.block
	}
	return m.err
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func onlineMonitor(b *bus.Bus) *netmon.Monitor {
	logger, _ := zap.NewDevelopment()
	return netmon.New(func(context.Context) error { return nil }, nil, b, logger, time.Hour)
}

func offlineMonitor(b *bus.Bus) *netmon.Monitor {
	logger, _ := zap.NewDevelopment()
	return netmon.New(func(context.Context) error { return errors.New("down") }, nil, b, logger, time.Hour)
}

func newManager(t *testing.T, db *store.DB, sender OrderSender, monitor *netmon.Monitor, b *bus.Bus) *Manager {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	m := New(db, sender, monitor, b, logger)
	m.backoff = func(int) time.Duration { return 0 }
	return m
}

func TestDrainSendsOldestFirst(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockSender{}
	m := newManager(t, db, mock, onlineMonitor(b), b)

	ch, unsub := b.Subscribe("sync.synced", 10)
	defer unsub()

	for _, p := range []string{"a", "b", "c"} {
		if err := db.Enqueue([]byte(p)); err != nil {
			t.Fatal(err)
		}
	}

	m.Drain(context.Background())

	if mock.callCount() != 3 {
		t.Fatalf("got %d sends, want 3", mock.callCount())
	}
	for i, want := range []string{"a", "b", "c"} {
		if string(mock.calls[i]) != want {
			t.Errorf("calls[%d] = %s, want %s", i, mock.calls[i], want)
		}
	}

	// Queue must be empty after the pass (sent entries purged).
	n, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Count() = %d after drain, want 0", n)
	}

	select {
	case evt := <-ch:
		payload := evt.Payload.(map[string]int)
		if payload["count"] != 3 {
			t.Errorf("synced count = %d, want 3", payload["count"])
		}
	default:
		t.Fatal("no sync.synced event published")
	}
}

func TestDrainOfflineIsNoop(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockSender{}
	m := newManager(t, db, mock, offlineMonitor(b), b)

	if err := db.Enqueue([]byte("x")); err != nil {
		t.Fatal(err)
	}

	m.Drain(context.Background())

	if mock.callCount() != 0 {
		t.Errorf("got %d sends while offline, want 0", mock.callCount())
	}
	entries, _ := db.Actionable()
	if len(entries) != 1 || entries[0].Status != status.ItemPending {
		t.Error("entry should remain pending when offline")
	}
}

func TestDrainFailureIncrementsRetriesAndReportsOffline(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockSender{err: errors.New("connection refused")}
	m := newManager(t, db, mock, onlineMonitor(b), b)

	ch, unsub := b.Subscribe("sync.offline", 10)
	defer unsub()

	if err := db.Enqueue([]byte("x")); err != nil {
		t.Fatal(err)
	}

	m.Drain(context.Background())

	entries, err := db.Actionable()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Status != status.ItemError {
		t.Errorf("status = %q, want error", entries[0].Status)
	}
	if entries[0].Retries != 1 {
		t.Errorf("retries = %d, want 1", entries[0].Retries)
	}

	select {
	case evt := <-ch:
		payload := evt.Payload.(map[string]int)
		if payload["count"] != 1 {
			t.Errorf("offline count = %d, want 1", payload["count"])
		}
	default:
		t.Fatal("no sync.offline event published")
	}
}

// TestDrainReachesRetryCeiling drives one entry through five failing passes
// and verifies it freezes out of subsequent drains.
func TestDrainReachesRetryCeiling(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockSender{err: errors.New("boom")}
	m := newManager(t, db, mock, onlineMonitor(b), b)

	if err := db.Enqueue([]byte("x")); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < store.MaxRetries; i++ {
		m.Drain(context.Background())
	}
	if mock.callCount() != store.MaxRetries {
		t.Fatalf("got %d attempts, want %d", mock.callCount(), store.MaxRetries)
	}

	// Frozen now: a further drain must not touch it.
	m.Drain(context.Background())
	if mock.callCount() != store.MaxRetries {
		t.Errorf("frozen entry was retried (%d attempts)", mock.callCount())
	}

	n, _ := db.Count()
	if n != 1 {
		t.Errorf("Count() = %d, want 1 (frozen entry kept)", n)
	}
}

func TestReentrantDrainIsNoop(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockSender{block: make(chan struct{})}
	m := newManager(t, db, mock, onlineMonitor(b), b)

	if err := db.Enqueue([]byte("x")); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		m.Drain(context.Background())
		close(done)
	}()

	// Wait until the first drain is inside SendOrder.
	for i := 0; i < 100 && mock.callCount() == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if mock.callCount() != 1 {
		t.Fatal("first drain did not start")
	}

	// Re-entrant call returns immediately without another send.
	m.Drain(context.Background())
	if mock.callCount() != 1 {
		t.Errorf("re-entrant drain dispatched a send")
	}

	close(mock.block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not finish")
	}
}

func TestStartDrainsOnOnlineEvent(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockSender{}
	m := newManager(t, db, mock, onlineMonitor(b), b)

	if err := db.Enqueue([]byte("x")); err != nil {
		t.Fatal(err)
	}

	m.Start(context.Background())
	defer m.Stop()

	deadline := time.After(2 * time.Second)
	for mock.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial drain never ran")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	// Queue another entry and signal connectivity.
	if err := db.Enqueue([]byte("y")); err != nil {
		t.Fatal(err)
	}
	b.Publish(bus.Event{Kind: "net.online", Timestamp: time.Now()})

	deadline = time.After(2 * time.Second)
	for mock.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("drain on net.online never ran")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
