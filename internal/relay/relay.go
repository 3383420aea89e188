// Package relay posts finalized orders to the external automation webhook
// that handles numbering and document generation. The relay is best-effort
// downstream enrichment: its outcome never rolls back store writes.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Timeout is the hard cap on one relay attempt. A hanging sink becomes a
// reported relay error instead of an indefinite suspension.
const Timeout = 30 * time.Second

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("webhook URL not configured on the server")

// Relay is the webhook sink client.
type Relay struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

// New creates a relay for the given webhook URL. An empty URL is allowed;
// sends then fail with ErrNotConfigured and orders are still recorded.
func New(url string, logger *zap.Logger) *Relay {
	return &Relay{
		url:    url,
		http:   &http.Client{},
		logger: logger,
	}
}

// Send posts the sanitized payload to the sink and returns the sink's
// response body (normalized to valid JSON) on success.
func (r *Relay) Send(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	if r.url == "" {
		return nil, ErrNotConfigured
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}

	if len(body) == 0 {
		return nil, nil
	}
	if json.Valid(body) {
		return json.RawMessage(body), nil
	}
	// Non-JSON sink response; wrap it so callers always get valid JSON.
	quoted, _ := json.Marshal(string(body))
	return json.RawMessage(quoted), nil
}
