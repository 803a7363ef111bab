package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across components
var (
	// ErrVersionConflict is returned by repositories when an optimistic
	// concurrency check fails; callers reload and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrNoBidsFound is returned when an auction has no accepted bids
	ErrNoBidsFound = errors.New("no bids found")
)

// NotFoundError indicates a referenced auction, deposit or listing is absent
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ValidationError indicates the input shape is wrong before any state is touched
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidStateError indicates an operation that is not legal in the
// entity's current state
type InvalidStateError struct {
	Op    string
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %q", e.Op, e.State)
}

// InsufficientFundsError carries the exact shortfall so callers can offer
// a top-up flow instead of a generic failure
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s", e.Required, e.Available)
}

// Shortfall returns the amount the user must top up
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

// NotEnoughFrozenError indicates a direct debit asked for more than the
// wallet currently holds frozen
type NotEnoughFrozenError struct {
	Required decimal.Decimal
	Frozen   decimal.Decimal
}

func (e *NotEnoughFrozenError) Error() string {
	return fmt.Sprintf("not enough frozen funds: required %s, frozen %s", e.Required, e.Frozen)
}

// OutOfWindowError indicates a bid arrived outside the auction's bidding window
type OutOfWindowError struct {
	StartAt time.Time
	EndAt   time.Time
}

func (e *OutOfWindowError) Error() string {
	return fmt.Sprintf("bidding window is %s to %s", e.StartAt.Format(time.RFC3339), e.EndAt.Format(time.RFC3339))
}

// BidTooLowError reports the price a new bid must strictly exceed
type BidTooLowError struct {
	CurrentHighest decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be strictly greater than %s", e.CurrentHighest)
}

// DepositRequiredError names the exact deposit the bidder must freeze first
type DepositRequiredError struct {
	RequiredAmount decimal.Decimal
}

func (e *DepositRequiredError) Error() string {
	return fmt.Sprintf("a frozen deposit of %s is required before bidding", e.RequiredAmount)
}

// DataIntegrityError indicates persisted state violates an invariant, e.g.
// a declared winner with no matching frozen deposit. It is fatal and must
// be surfaced, never silently recovered from.
type DataIntegrityError struct {
	Detail string
}

func (e *DataIntegrityError) Error() string {
	return "data integrity violation: " + e.Detail
}
