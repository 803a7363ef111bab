package outbound

import (
	"context"

	"github.com/google/uuid"
)

// EventType represents the type of event being emitted
type EventType string

const (
	EventTypeAuctionApproved  EventType = "auction.approved"
	EventTypeAuctionRejected  EventType = "auction.rejected"
	EventTypeAuctionStarted   EventType = "auction.started"
	EventTypeAuctionClosed    EventType = "auction.closed"
	EventTypeAuctionCancelled EventType = "auction.cancelled"
	EventTypeBidPlaced        EventType = "bid.placed"
	EventTypeDepositFrozen    EventType = "deposit.frozen"
	EventTypeDepositRefunded  EventType = "deposit.refunded"
)

// Event is a fire-and-forget notification about an auction state change
type Event struct {
	AuctionID       uuid.UUID              `json:"auction_id"`
	Type            EventType              `json:"type"`
	RecipientUserID uuid.UUID              `json:"recipient_user_id"`
	Payload         map[string]interface{} `json:"payload"`
	Timestamp       int64                  `json:"timestamp"`
}

// Notifier delivers events to interested users. Delivery failures must
// never roll back the state change that produced the event.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}
