package deposit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the escrow state of a deposit
type Status string

const (
	StatusFrozen    Status = "FROZEN"
	StatusRefunded  Status = "REFUNDED"
	StatusDeducted  Status = "DEDUCTED"
	StatusCancelled Status = "CANCELLED"
)

// Deposit is the escrow record for one (auction, user) pair. At most one
// row exists per pair; a released row is re-frozen in place instead of
// inserting a duplicate, so history is never deleted.
type Deposit struct {
	ID        uuid.UUID       `json:"id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    Status          `json:"status"`

	FrozenAt    *time.Time `json:"frozen_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
	DeductedAt  *time.Time `json:"deducted_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFrozen returns true if the deposit currently holds frozen funds
func (d *Deposit) IsFrozen() bool {
	return d.Status == StatusFrozen
}

// Releasable returns true if the row can be re-frozen for a new deposit
// on the same pair
func (d *Deposit) Releasable() bool {
	return d.Status == StatusCancelled || d.Status == StatusRefunded
}

// New creates a freshly frozen deposit for the given pair
func New(auctionID, userID uuid.UUID, amount decimal.Decimal, now time.Time) *Deposit {
	frozenAt := now
	return &Deposit{
		ID:        uuid.New(),
		AuctionID: auctionID,
		UserID:    userID,
		Amount:    amount,
		Status:    StatusFrozen,
		FrozenAt:  &frozenAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
