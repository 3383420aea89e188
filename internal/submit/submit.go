package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/condorhq/fieldops/internal/bus"
	"github.com/condorhq/fieldops/internal/netmon"
	"github.com/condorhq/fieldops/internal/order"
	"github.com/condorhq/fieldops/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Submitter is the entry point the UI layer calls to submit a new order.
// It decides between the online path (direct POST) and the offline path
// (durable queue), and reclassifies runtime network failures into the
// offline path transparently.
type Submitter struct {
	client  *Client
	db      *store.DB
	monitor *netmon.Monitor
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewSubmitter creates a submission client over the given API client, queue
// and connectivity monitor.
func NewSubmitter(client *Client, db *store.DB, monitor *netmon.Monitor, b *bus.Bus, logger *zap.Logger) *Submitter {
	return &Submitter{
		client:  client,
		db:      db,
		monitor: monitor,
		bus:     b,
		logger:  logger,
	}
}

// Submit submits one work order. Outcomes:
//
//   - offline at call time: the order is queued, no network I/O happens,
//     and the result has Offline=true;
//   - transport failure mid-flight: same as offline;
//   - structured server rejection (*APIError): returned to the caller, the
//     order is NOT queued — it was rejected, not lost in transit;
//   - success: the server's composite result.
//
// An empty idempotency key is filled in here so every retry of this logical
// submission, queued or direct, carries the same key.
func (s *Submitter) Submit(ctx context.Context, p *order.Payload) (*order.Result, error) {
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = uuid.NewString()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	if !s.monitor.Online(ctx) {
		if err := s.enqueue(raw); err != nil {
			return nil, err
		}
		return &order.Result{Offline: true}, nil
	}

	data, err := s.client.request(ctx, http.MethodPost, "/ordenes", p)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		s.logger.Warn("order submission hit a transport failure, queueing", zap.Error(err))
		if qErr := s.enqueue(raw); qErr != nil {
			return nil, qErr
		}
		return &order.Result{Offline: true}, nil
	}

	var res order.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode submission result: %w", err)
	}
	return &res, nil
}

func (s *Submitter) enqueue(raw []byte) error {
	if err := s.db.Enqueue(raw); err != nil {
		return fmt.Errorf("queue order: %w", err)
	}
	s.logger.Info("order queued for later sync")
	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: "queue.enqueued", Timestamp: time.Now()})
	}
	return nil
}
