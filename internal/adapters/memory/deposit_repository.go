package memory

import (
	"context"
	"sync"
	"time"

	"gavel-auction-service/internal/domain/deposit"
	"gavel-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type pairKey struct {
	auctionID uuid.UUID
	userID    uuid.UUID
}

// DepositRepository is an in-memory deposit ledger with compare-and-set
// status transitions, mirroring the Postgres adapter
type DepositRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*deposit.Deposit
	byPair map[pairKey]uuid.UUID
}

// NewDepositRepository creates an empty in-memory deposit repository
func NewDepositRepository() *DepositRepository {
	return &DepositRepository{
		byID:   make(map[uuid.UUID]*deposit.Deposit),
		byPair: make(map[pairKey]uuid.UUID),
	}
}

func (r *DepositRepository) Create(ctx context.Context, d *deposit.Deposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{auctionID: d.AuctionID, userID: d.UserID}
	if _, exists := r.byPair[key]; exists {
		return &shared.DataIntegrityError{Detail: "duplicate deposit for pair " + d.AuctionID.String() + "/" + d.UserID.String()}
	}

	clone := *d
	r.byID[d.ID] = &clone
	r.byPair[key] = d.ID
	return nil
}

func (r *DepositRepository) GetByAuctionAndUser(ctx context.Context, auctionID, userID uuid.UUID) (*deposit.Deposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPair[pairKey{auctionID: auctionID, userID: userID}]
	if !ok {
		return nil, &shared.NotFoundError{Resource: "deposit", ID: auctionID.String() + "/" + userID.String()}
	}
	clone := *r.byID[id]
	return &clone, nil
}

func (r *DepositRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*deposit.Deposit, error) {
	return r.listWhere(func(d *deposit.Deposit) bool {
		return d.AuctionID == auctionID
	})
}

func (r *DepositRepository) CountFrozenByAuction(ctx context.Context, auctionID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, d := range r.byID {
		if d.AuctionID == auctionID && d.Status == deposit.StatusFrozen {
			count++
		}
	}
	return count, nil
}

func (r *DepositRepository) ListFrozen(ctx context.Context) ([]*deposit.Deposit, error) {
	return r.listWhere(func(d *deposit.Deposit) bool {
		return d.Status == deposit.StatusFrozen
	})
}

func (r *DepositRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to deposit.Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byID[id]
	if !ok {
		return false, &shared.NotFoundError{Resource: "deposit", ID: id.String()}
	}
	if d.Status != from {
		return false, nil
	}

	d.Status = to
	stamp := at
	switch to {
	case deposit.StatusFrozen:
		d.FrozenAt = &stamp
	case deposit.StatusRefunded:
		d.RefundedAt = &stamp
	case deposit.StatusDeducted:
		d.DeductedAt = &stamp
	case deposit.StatusCancelled:
		d.CancelledAt = &stamp
	}
	d.UpdatedAt = at
	return true, nil
}

func (r *DepositRepository) Refreeze(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byID[id]
	if !ok {
		return false, &shared.NotFoundError{Resource: "deposit", ID: id.String()}
	}
	if !d.Releasable() {
		return false, nil
	}

	stamp := at
	d.Status = deposit.StatusFrozen
	d.Amount = amount
	d.FrozenAt = &stamp
	d.UpdatedAt = at
	return true, nil
}

func (r *DepositRepository) listWhere(match func(*deposit.Deposit) bool) ([]*deposit.Deposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*deposit.Deposit
	for _, d := range r.byID {
		if match(d) {
			clone := *d
			result = append(result, &clone)
		}
	}
	return result, nil
}
