package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gavel-auction-service/internal/domain/auction"
	"gavel-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionRepository is an in-memory auction repository with the same
// conditional-write semantics as the Postgres adapter. Used in tests and
// local development.
type AuctionRepository struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*auction.Auction
}

// NewAuctionRepository creates an empty in-memory auction repository
func NewAuctionRepository() *AuctionRepository {
	return &AuctionRepository{auctions: make(map[uuid.UUID]*auction.Auction)}
}

func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[a.ID] = cloneAuction(a)
	return nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[id]
	if !ok {
		return nil, &shared.NotFoundError{Resource: "auction", ID: id.String()}
	}
	return cloneAuction(a), nil
}

func (r *AuctionRepository) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*auction.Auction
	for _, a := range r.auctions {
		if status != nil && a.Status != *status {
			continue
		}
		all = append(all, cloneAuction(a))
	}

	// Newest first, matching the SQL adapter; the ID tie-break keeps pages
	// stable when timestamps collide.
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *AuctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[a.ID]
	if !ok {
		return &shared.NotFoundError{Resource: "auction", ID: a.ID.String()}
	}
	if stored.Version != a.Version {
		return shared.ErrVersionConflict
	}

	a.Version++
	updated := cloneAuction(a)
	// Bids only change through AppendBid; keep the stored list.
	updated.Bids = cloneBids(stored.Bids)
	r.auctions[a.ID] = updated
	return nil
}

func (r *AuctionRepository) AppendBid(ctx context.Context, auctionID uuid.UUID, b auction.Bid, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[auctionID]
	if !ok {
		return &shared.NotFoundError{Resource: "auction", ID: auctionID.String()}
	}
	if stored.Version != expectedVersion || stored.Status != auction.StatusActive {
		return shared.ErrVersionConflict
	}

	stored.Bids = append(stored.Bids, b)
	stored.Version++
	stored.UpdatedAt = b.PlacedAt
	return nil
}

func (r *AuctionRepository) MarkEnded(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID, winningBid *decimal.Decimal, expectedVersion int64, endedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[auctionID]
	if !ok {
		return false, &shared.NotFoundError{Resource: "auction", ID: auctionID.String()}
	}
	if stored.Status != auction.StatusActive || stored.Version != expectedVersion {
		return false, nil
	}

	stored.Status = auction.StatusEnded
	stored.WinnerID = winnerID
	stored.WinningBid = winningBid
	stored.Version++
	stored.UpdatedAt = endedAt
	return true, nil
}

func (r *AuctionRepository) ListActive(ctx context.Context) ([]*auction.Auction, error) {
	return r.listWhere(func(a *auction.Auction) bool {
		return a.Status == auction.StatusActive
	})
}

func (r *AuctionRepository) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]*auction.Auction, error) {
	return r.listWhere(func(a *auction.Auction) bool {
		return a.Status == auction.StatusPending &&
			a.ApprovalStatus == auction.ApprovalPending &&
			a.StartAt.Before(cutoff)
	})
}

func (r *AuctionRepository) ListDueToStart(ctx context.Context, cutoff time.Time) ([]*auction.Auction, error) {
	return r.listWhere(func(a *auction.Auction) bool {
		return a.Status == auction.StatusApproved &&
			a.ApprovalStatus == auction.ApprovalApproved &&
			!a.StartAt.After(cutoff) && a.EndAt.After(cutoff)
	})
}

func (r *AuctionRepository) listWhere(match func(*auction.Auction) bool) ([]*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*auction.Auction
	for _, a := range r.auctions {
		if match(a) {
			result = append(result, cloneAuction(a))
		}
	}
	return result, nil
}

func cloneAuction(a *auction.Auction) *auction.Auction {
	clone := *a
	clone.Bids = cloneBids(a.Bids)
	return &clone
}

func cloneBids(bids []auction.Bid) []auction.Bid {
	if bids == nil {
		return nil
	}
	out := make([]auction.Bid, len(bids))
	copy(out, bids)
	return out
}
