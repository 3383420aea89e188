package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/condorhq/fieldops/internal/bus"
)

// ItemStatus is the lifecycle status of a queued order.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemSending ItemStatus = "sending"
	ItemSent    ItemStatus = "sent"
	ItemError   ItemStatus = "error"
)

// validItemTransitions defines the allowed queue item lifecycle:
// pending -> sending -> {sent, error}; error items may be retried.
var validItemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending: {ItemSending},
	ItemSending: {ItemSent, ItemError},
	ItemError:   {ItemSending},
	ItemSent:    {},
}

// CanTransition reports whether moving from s to the given status is allowed.
func (s ItemStatus) CanTransition(to ItemStatus) bool {
	return slices.Contains(validItemTransitions[s], to)
}

// ParseItemStatus converts a status string read back from storage.
func ParseItemStatus(s string) (ItemStatus, error) {
	switch ItemStatus(s) {
	case ItemPending, ItemSending, ItemSent, ItemError:
		return ItemStatus(s), nil
	}
	return "", fmt.Errorf("unknown queue item status %q", s)
}

// State represents an agent runtime state.
type State string

const (
	Starting State = "STARTING"
	Online   State = "ONLINE"
	Offline  State = "OFFLINE"
	Syncing  State = "SYNCING"
	Degraded State = "DEGRADED"
)

// validTransitions defines allowed agent state transitions.
var validTransitions = map[State][]State{
	Starting: {Online, Offline},
	Online:   {Offline, Syncing},
	Offline:  {Online, Syncing},
	Syncing:  {Online, Offline, Degraded},
	Degraded: {Syncing, Online, Offline},
}

// Machine tracks and enforces agent runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Starting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Starting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Moving to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if to == m.current {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "agent.status_changed",
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
