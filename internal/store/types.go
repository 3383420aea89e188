package store

import "github.com/condorhq/fieldops/internal/status"

// MaxRetries is the per-item retry ceiling. An item that fails this many
// send attempts is frozen until a manual retry resets it.
const MaxRetries = 5

// QueuedOrder is a durable queue entry holding one not-yet-confirmed order.
type QueuedOrder struct {
	ID        int64
	Timestamp string // creation time, RFC3339
	Payload   []byte // order submission body, opaque to the queue
	Status    status.ItemStatus
	Retries   int
}
