package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the operational state of an auction
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// ApprovalStatus represents the staff review state, tracked independently
// of the operational status
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Bid is an entry in the auction's append-only bid list
type Bid struct {
	BidderID uuid.UUID       `json:"bidder_id"`
	Price    decimal.Decimal `json:"price"`
	PlacedAt time.Time       `json:"placed_at"`
}

// Auction represents a timed auction for a listed item, together with its
// embedded bid list. The aggregate is one consistency boundary: every
// mutation goes through the repository guarded by Version.
type Auction struct {
	ID              uuid.UUID       `json:"id"`
	ItemID          uuid.UUID       `json:"item_id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	StartAt         time.Time       `json:"start_at"`
	EndAt           time.Time       `json:"end_at"`
	StartingPrice   decimal.Decimal `json:"starting_price"`
	DepositAmount   decimal.Decimal `json:"deposit_amount"`
	MinParticipants int             `json:"min_participants"`
	MaxParticipants int             `json:"max_participants"`
	Status          Status          `json:"status"`
	ApprovalStatus  ApprovalStatus  `json:"approval_status"`
	Bids            []Bid           `json:"bids"`

	WinnerID   *uuid.UUID       `json:"winner_id,omitempty"`
	WinningBid *decimal.Decimal `json:"winning_bid,omitempty"`

	ApprovedBy         *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true if the auction is currently accepting bids
func (a *Auction) IsActive() bool {
	return a.Status == StatusActive
}

// IsEnded returns true if the auction has ended
func (a *Auction) IsEnded() bool {
	return a.Status == StatusEnded
}

// IsTerminal returns true if the auction can no longer change state
func (a *Auction) IsTerminal() bool {
	return a.Status == StatusEnded || a.Status == StatusCancelled
}

// InBidWindow returns true if the given instant falls inside the bidding window
func (a *Auction) InBidWindow(now time.Time) bool {
	return !now.Before(a.StartAt) && !now.After(a.EndAt)
}

// DepositRequired returns true if bidders must hold a frozen deposit before bidding
func (a *Auction) DepositRequired() bool {
	return a.DepositAmount.IsPositive()
}

// HighestPrice returns the price a new bid must strictly exceed: the
// highest accepted bid, or the starting price when no bids exist.
func (a *Auction) HighestPrice() decimal.Decimal {
	highest := a.StartingPrice
	for _, b := range a.Bids {
		if b.Price.GreaterThan(highest) {
			highest = b.Price
		}
	}
	return highest
}

// HighestBid returns the current winning bid, or nil if no bids exist
func (a *Auction) HighestBid() *Bid {
	var best *Bid
	for i := range a.Bids {
		if best == nil || a.Bids[i].Price.GreaterThan(best.Price) {
			best = &a.Bids[i]
		}
	}
	return best
}

// Approve records the staff approval decision. Status moves to approved;
// the auction still waits for startAt (or a manual start) to go active.
func (a *Auction) Approve(staffID uuid.UUID, approvedAt time.Time) {
	a.ApprovalStatus = ApprovalApproved
	a.Status = StatusApproved
	a.ApprovedBy = &staffID
	a.ApprovedAt = &approvedAt
	a.UpdatedAt = approvedAt
}

// Reject records a staff rejection and cancels the auction
func (a *Auction) Reject(staffID uuid.UUID, reason string, rejectedAt time.Time) {
	a.ApprovalStatus = ApprovalRejected
	a.Status = StatusCancelled
	a.ApprovedBy = &staffID
	a.RejectionReason = reason
	a.CancellationReason = reason
	a.UpdatedAt = rejectedAt
}

// Cancel marks the auction cancelled with the given reason
func (a *Auction) Cancel(reason string, cancelledAt time.Time) {
	a.Status = StatusCancelled
	a.CancellationReason = reason
	a.UpdatedAt = cancelledAt
}

// Activate opens the auction for bidding. The window is rewritten so
// bidding time starts counting from the actual opening instant.
func (a *Auction) Activate(startAt time.Time) {
	a.Status = StatusActive
	a.StartAt = startAt
	a.UpdatedAt = startAt
}
