package shared

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CloseResult represents the outcome of closing an auction
type CloseResult struct {
	AuctionID  uuid.UUID
	WinnerID   *uuid.UUID
	WinningBid *decimal.Decimal
	Status     string
	// AlreadyClosed is true when the close was a no-op because another
	// path (timer, sweep, manual end) got there first.
	AlreadyClosed bool
}

// DepositResult represents the outcome of a deposit request. An
// insufficient balance is a first-class outcome carrying the shortfall
// and the exact amount to top up, not a bare error.
type DepositResult struct {
	DepositID      uuid.UUID
	AuctionID      uuid.UUID
	UserID         uuid.UUID
	RequiredAmount decimal.Decimal
	Available      decimal.Decimal
	Shortfall      decimal.Decimal
	RequiresTopUp  bool
}
