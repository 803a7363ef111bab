package inbound

import (
	"context"
	"time"

	"gavel-auction-service/internal/domain/auction"
	"gavel-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionService defines the auction lifecycle operations, including the
// staff surface. Every staff operation is idempotent and safe to invoke
// out-of-band.
type AuctionService interface {
	// CreateAuction creates a new auction in the pending-approval state
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// GetAuction retrieves an auction by ID
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// ListAuctions retrieves a list of auctions
	ListAuctions(ctx context.Context, req ListAuctionsRequest) ([]*auction.Auction, error)

	// Approve marks a pending auction approved by staff
	Approve(ctx context.Context, req ApproveRequest) error

	// Reject rejects a pending auction and refunds all frozen deposits
	Reject(ctx context.Context, req RejectRequest) error

	// StartManually opens bidding now, given enough deposits exist
	StartManually(ctx context.Context, auctionID, staffID uuid.UUID) error

	// EndNow closes an overdue active auction on staff request
	EndNow(ctx context.Context, auctionID, staffID uuid.UUID) error

	// CloseAuction closes an active auction, settles deposits and is a
	// no-op when the auction already ended
	CloseAuction(ctx context.Context, auctionID uuid.UUID) (*shared.CloseResult, error)

	// CancelExpiredPending cancels every auction left unapproved past its
	// scheduled start, refunding deposits
	CancelExpiredPending(ctx context.Context) error

	// ActivateDueAuctions promotes approved auctions whose startAt passed
	ActivateDueAuctions(ctx context.Context) error
}

// BidService defines the bid admission operations
type BidService interface {
	// PlaceBid validates and appends a bid to an active auction
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*auction.Bid, error)

	// GetBids retrieves the bid list for an auction
	GetBids(ctx context.Context, auctionID uuid.UUID) ([]auction.Bid, error)

	// GetHighestBid retrieves the current highest bid for an auction
	GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*auction.Bid, error)
}

// DepositService defines the escrow operations against the wallet collaborator
type DepositService interface {
	// CreateDeposit freezes the bidding deposit for a user. An
	// insufficient balance yields a top-up result, not an error.
	CreateDeposit(ctx context.Context, auctionID, userID uuid.UUID) (*shared.DepositResult, error)

	// CancelDeposit releases a deposit, permitted strictly before startAt
	CancelDeposit(ctx context.Context, auctionID, userID uuid.UUID) error

	// RefundNonWinners releases every FROZEN deposit except the winner's;
	// safe to call repeatedly
	RefundNonWinners(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID) error

	// DeductWinnerDeposit converts the winner's frozen deposit into payment
	DeductWinnerDeposit(ctx context.Context, auctionID, winnerID uuid.UUID) error

	// ReconcileRefunds retries refunds for ended auctions that still hold
	// non-winner frozen deposits
	ReconcileRefunds(ctx context.Context) error
}

// request to create an auction
type CreateAuctionRequest struct {
	ItemID          uuid.UUID       `json:"item_id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	StartAt         time.Time       `json:"start_at"`
	EndAt           time.Time       `json:"end_at"`
	StartingPrice   decimal.Decimal `json:"starting_price"`
	MinParticipants int             `json:"min_participants"`
	MaxParticipants int             `json:"max_participants"`
}

// request to list auctions
type ListAuctionsRequest struct {
	Status   *auction.Status `json:"status,omitempty"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// staff request to approve an auction
type ApproveRequest struct {
	AuctionID       uuid.UUID `json:"auction_id"`
	StaffID         uuid.UUID `json:"staff_id"`
	MinParticipants int       `json:"min_participants"`
	MaxParticipants int       `json:"max_participants"`
}

// staff request to reject an auction
type RejectRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	StaffID   uuid.UUID `json:"staff_id"`
	Reason    string    `json:"reason"`
}

// request to place a bid
type PlaceBidRequest struct {
	AuctionID uuid.UUID       `json:"auction_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Price     decimal.Decimal `json:"price"`
}
