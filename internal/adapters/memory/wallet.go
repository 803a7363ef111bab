package memory

import (
	"context"
	"sync"

	"gavel-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is an in-memory wallet collaborator. The balance check and move
// happen under one lock, matching the atomicity the real wallet service
// guarantees.
type Wallet struct {
	mu       sync.Mutex
	balances map[uuid.UUID]shared.Balance
}

// NewWallet creates an empty in-memory wallet
func NewWallet() *Wallet {
	return &Wallet{balances: make(map[uuid.UUID]shared.Balance)}
}

// Credit adds funds to a user's available balance (test fixture helper)
func (w *Wallet) Credit(userID uuid.UUID, amount decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()

	balance := w.balances[userID]
	balance.Available = balance.Available.Add(amount)
	w.balances[userID] = balance
}

func (w *Wallet) GetBalance(ctx context.Context, userID uuid.UUID) (shared.Balance, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID], nil
}

func (w *Wallet) Freeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, memo string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	balance := w.balances[userID]
	if balance.Available.LessThan(amount) {
		return &shared.InsufficientFundsError{Required: amount, Available: balance.Available}
	}

	balance.Available = balance.Available.Sub(amount)
	balance.Frozen = balance.Frozen.Add(amount)
	w.balances[userID] = balance
	return nil
}

func (w *Wallet) Unfreeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, memo string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	balance := w.balances[userID]
	if balance.Frozen.LessThan(amount) {
		// Already released; per contract this is an idempotent no-op.
		return nil
	}

	balance.Frozen = balance.Frozen.Sub(amount)
	balance.Available = balance.Available.Add(amount)
	w.balances[userID] = balance
	return nil
}

func (w *Wallet) DirectDebitFrozen(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, memo string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	balance := w.balances[userID]
	if balance.Frozen.LessThan(amount) {
		return &shared.NotEnoughFrozenError{Required: amount, Frozen: balance.Frozen}
	}

	balance.Frozen = balance.Frozen.Sub(amount)
	w.balances[userID] = balance
	return nil
}
