package netmon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/condorhq/fieldops/internal/bus"
	"go.uber.org/zap"
)

// flakyProbe flips between online and offline under test control.
type flakyProbe struct {
	online atomic.Bool
}

func (f *flakyProbe) probe(_ context.Context) error {
	if f.online.Load() {
		return nil
	}
	return errors.New("unreachable")
}

func TestOnlineIsLive(t *testing.T) {
	f := &flakyProbe{}
	logger, _ := zap.NewDevelopment()
	m := New(f.probe, nil, bus.New(), logger, time.Hour)

	if m.Online(context.Background()) {
		t.Error("Online() = true while probe fails")
	}
	f.online.Store(true)
	if !m.Online(context.Background()) {
		t.Error("Online() = false right after probe recovered; status must be live, not cached")
	}
}

func TestTransitionsPublishEvents(t *testing.T) {
	f := &flakyProbe{}
	f.online.Store(true)
	b := bus.New()
	ch, unsub := b.Subscribe("net.", 10)
	defer unsub()

	counter := func() (int, error) { return 2, nil }
	logger, _ := zap.NewDevelopment()
	m := New(f.probe, counter, b, logger, time.Hour)

	ctx := context.Background()
	m.check(ctx)

	select {
	case evt := <-ch:
		if evt.Kind != "net.online" {
			t.Errorf("first event = %q, want net.online", evt.Kind)
		}
	default:
		t.Fatal("initial check published no event")
	}

	// No transition, no event.
	m.check(ctx)
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %q without a transition", evt.Kind)
	default:
	}

	f.online.Store(false)
	m.check(ctx)
	select {
	case evt := <-ch:
		if evt.Kind != "net.offline" {
			t.Fatalf("event = %q, want net.offline", evt.Kind)
		}
		payload, ok := evt.Payload.(map[string]int)
		if !ok || payload["count"] != 2 {
			t.Errorf("offline payload = %v, want count=2", evt.Payload)
		}
	default:
		t.Fatal("offline transition published no event")
	}
}

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := HTTPProbe(srv.URL, nil)
	if err := probe(context.Background()); err != nil {
		t.Errorf("probe error = %v, want nil", err)
	}

	srv.Close()
	if err := probe(context.Background()); err == nil {
		t.Error("probe against closed server should fail")
	}
}

func TestHTTPProbeNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	probe := HTTPProbe(srv.URL, nil)
	if err := probe(context.Background()); err == nil {
		t.Error("probe should treat 502 as offline")
	}
}
