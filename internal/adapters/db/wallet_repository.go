package db

import (
	"context"
	"database/sql"
	"fmt"

	"gavel-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletRepository implements the wallet collaborator contract over the
// marketplace's wallet tables. Freeze and debit are single conditional
// UPDATE statements, so the balance check and the move are atomic: two
// racing freezes can never both pass the check.
type WalletRepository struct {
	conn *Connection
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(conn *Connection) *WalletRepository {
	return &WalletRepository{conn: conn}
}

func (r *WalletRepository) GetBalance(ctx context.Context, userID uuid.UUID) (shared.Balance, error) {
	var balance shared.Balance
	err := r.conn.GetDB().QueryRowContext(ctx, `
		SELECT available, frozen FROM wallets WHERE user_id = $1
	`, userID).Scan(&balance.Available, &balance.Frozen)
	if err != nil {
		if err == sql.ErrNoRows {
			return shared.Balance{}, &shared.NotFoundError{Resource: "wallet", ID: userID.String()}
		}
		return shared.Balance{}, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (r *WalletRepository) Freeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, memo string) error {
	result, err := r.conn.GetDB().ExecContext(ctx, `
		UPDATE wallets
		SET available = available - $2, frozen = frozen + $2, updated_at = NOW()
		WHERE user_id = $1 AND available >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to freeze funds: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		balance, err := r.GetBalance(ctx, userID)
		if err != nil {
			return err
		}
		return &shared.InsufficientFundsError{Required: amount, Available: balance.Available}
	}

	return r.recordEntry(ctx, userID, "freeze", amount, memo)
}

// Unfreeze releases frozen funds back to available. Releasing more than
// is frozen is treated as already released, which keeps repeated refund
// passes harmless.
func (r *WalletRepository) Unfreeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, memo string) error {
	result, err := r.conn.GetDB().ExecContext(ctx, `
		UPDATE wallets
		SET available = available + $2, frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1 AND frozen >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to unfreeze funds: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil
	}

	return r.recordEntry(ctx, userID, "unfreeze", amount, memo)
}

func (r *WalletRepository) DirectDebitFrozen(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, memo string) error {
	result, err := r.conn.GetDB().ExecContext(ctx, `
		UPDATE wallets
		SET frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1 AND frozen >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit frozen funds: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		balance, err := r.GetBalance(ctx, userID)
		if err != nil {
			return err
		}
		return &shared.NotEnoughFrozenError{Required: amount, Frozen: balance.Frozen}
	}

	return r.recordEntry(ctx, userID, "debit_frozen", amount, memo)
}

// recordEntry appends to the wallet journal; the journal is advisory and
// a failed insert does not undo the balance move
func (r *WalletRepository) recordEntry(ctx context.Context, userID uuid.UUID, kind string, amount decimal.Decimal, memo string) error {
	_, err := r.conn.GetDB().ExecContext(ctx, `
		INSERT INTO wallet_entries (id, user_id, kind, amount, memo, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.New(), userID, kind, amount, memo)
	if err != nil {
		return fmt.Errorf("failed to record wallet entry: %w", err)
	}
	return nil
}
