package outbound

import (
	"context"
	"time"

	"gavel-auction-service/internal/domain/auction"
	"gavel-auction-service/internal/domain/deposit"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionRepository defines the interface for auction aggregate persistence.
// Every mutating operation is conditional on the aggregate version (and,
// where relevant, the operational status). A failed condition is reported,
// not silently overwritten, so concurrent writers can never lose each
// other's updates.
type AuctionRepository interface {
	// Create persists a new auction
	Create(ctx context.Context, a *auction.Auction) error

	// GetByID retrieves an auction with its bids
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// List retrieves auctions with an optional status filter
	List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error)

	// Update persists aggregate changes if the stored version still matches
	// a.Version; on success the version is bumped. Returns
	// shared.ErrVersionConflict when another writer got there first.
	Update(ctx context.Context, a *auction.Auction) error

	// AppendBid atomically appends a bid if the stored version still
	// matches expectedVersion and the auction is still active
	AppendBid(ctx context.Context, auctionID uuid.UUID, b auction.Bid, expectedVersion int64) error

	// MarkEnded transitions active -> ended and records the winner exactly
	// once, conditioned on expectedVersion so the winner computed from the
	// loaded aggregate is still the highest bid. Returns false when the
	// auction was not active at that version; callers reload and either
	// recompute the winner or observe the close another writer completed.
	MarkEnded(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID, winningBid *decimal.Decimal, expectedVersion int64, endedAt time.Time) (bool, error)

	// ListActive retrieves all auctions in the active state
	ListActive(ctx context.Context) ([]*auction.Auction, error)

	// ListExpiredPending retrieves auctions still awaiting approval whose
	// startAt has already passed
	ListExpiredPending(ctx context.Context, cutoff time.Time) ([]*auction.Auction, error)

	// ListDueToStart retrieves approved auctions whose startAt has passed
	// and endAt has not
	ListDueToStart(ctx context.Context, cutoff time.Time) ([]*auction.Auction, error)
}

// DepositRepository defines the interface for the deposit ledger. Status
// transitions are compare-and-set: a row leaves FROZEN exactly once.
type DepositRepository interface {
	// Create persists a new deposit row; the (auction, user) pair is unique
	Create(ctx context.Context, d *deposit.Deposit) error

	// GetByAuctionAndUser retrieves the single row for a pair
	GetByAuctionAndUser(ctx context.Context, auctionID, userID uuid.UUID) (*deposit.Deposit, error)

	// ListByAuction retrieves all deposit rows for an auction
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*deposit.Deposit, error)

	// CountFrozenByAuction counts rows currently FROZEN for an auction
	CountFrozenByAuction(ctx context.Context, auctionID uuid.UUID) (int, error)

	// ListFrozen retrieves every FROZEN row across auctions, for the
	// refund reconciliation sweep
	ListFrozen(ctx context.Context) ([]*deposit.Deposit, error)

	// TransitionStatus moves a row from one status to another, returning
	// false when the row was no longer in the expected status
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to deposit.Status, at time.Time) (bool, error)

	// Refreeze returns a CANCELLED or REFUNDED row to FROZEN with a fresh
	// amount, returning false when the row was not releasable
	Refreeze(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error)
}
