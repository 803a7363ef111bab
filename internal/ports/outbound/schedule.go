package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleStore persists pending auction closings keyed by deadline. The
// store survives process restarts; in-memory timers are only a latency
// optimization on top of it.
type ScheduleStore interface {
	// Add registers (or re-registers) an auction to be closed at endAt
	Add(ctx context.Context, auctionID uuid.UUID, endAt time.Time) error

	// Due returns up to limit auctions whose deadline is at or before now
	Due(ctx context.Context, now time.Time, limit int64) ([]uuid.UUID, error)

	// Remove drops an auction from the schedule once it is closed
	Remove(ctx context.Context, auctionID uuid.UUID) error
}
