package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds used by the agent:
//   - "net.online" / "net.offline": connectivity transitions
//   - "queue.enqueued": an order was written to the durable queue
//   - "sync.syncing": a drain pass started
//   - "sync.synced" / "sync.offline" / "sync.online": drain pass outcome
//   - "agent.status_changed": the agent state machine moved
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
