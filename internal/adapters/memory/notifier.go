package memory

import (
	"context"
	"sync"

	"gavel-auction-service/internal/ports/outbound"
)

// Notifier records published events in memory for assertions in tests
type Notifier struct {
	mu     sync.Mutex
	events []outbound.Event
}

// NewNotifier creates an empty recording notifier
func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Publish(ctx context.Context, event outbound.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

// Events returns a copy of everything published so far
func (n *Notifier) Events() []outbound.Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]outbound.Event, len(n.events))
	copy(out, n.events)
	return out
}
