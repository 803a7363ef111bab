package outbound

import (
	"context"

	"gavel-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the consumed contract of the wallet collaborator. Freeze and
// Unfreeze move funds between the available and frozen buckets without
// changing the total; DirectDebitFrozen converts frozen money into spent
// money without ever touching the available bucket.
type Wallet interface {
	// GetBalance returns the user's available and frozen amounts
	GetBalance(ctx context.Context, userID uuid.UUID) (shared.Balance, error)

	// Freeze moves amount from available to frozen. The check and the move
	// are atomic on the wallet side; racing freezes cannot both pass.
	// Returns *shared.InsufficientFundsError when available < amount.
	Freeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, memo string) error

	// Unfreeze moves amount from frozen back to available. Idempotent:
	// releasing an amount that is already released is a no-op.
	Unfreeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, memo string) error

	// DirectDebitFrozen permanently removes amount from the frozen bucket.
	// Returns *shared.NotEnoughFrozenError when frozen < amount.
	DirectDebitFrozen(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, memo string) error
}

// ListingProvider is the read-only contract of the listing collaborator
type ListingProvider interface {
	// GetListing retrieves the seller and starting price for a listed item
	GetListing(ctx context.Context, id uuid.UUID) (*shared.Listing, error)
}
