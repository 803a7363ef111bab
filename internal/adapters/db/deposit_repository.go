package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gavel-auction-service/internal/domain/deposit"
	"gavel-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositRepository implements the deposit ledger over Postgres. The
// (auction_id, user_id) pair is unique and status transitions are
// compare-and-set, so a row leaves FROZEN exactly once.
type DepositRepository struct {
	conn *Connection
}

// NewDepositRepository creates a new deposit repository
func NewDepositRepository(conn *Connection) *DepositRepository {
	return &DepositRepository{conn: conn}
}

const depositColumns = `
	id, auction_id, user_id, amount, status,
	frozen_at, refunded_at, deducted_at, cancelled_at, created_at, updated_at
`

func (r *DepositRepository) Create(ctx context.Context, d *deposit.Deposit) error {
	query := `
		INSERT INTO auction_deposits (` + depositColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		d.ID,
		d.AuctionID,
		d.UserID,
		d.Amount,
		d.Status,
		timeOrNil(d.FrozenAt),
		timeOrNil(d.RefundedAt),
		timeOrNil(d.DeductedAt),
		timeOrNil(d.CancelledAt),
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deposit: %w", err)
	}
	return nil
}

func (r *DepositRepository) GetByAuctionAndUser(ctx context.Context, auctionID, userID uuid.UUID) (*deposit.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM auction_deposits WHERE auction_id = $1 AND user_id = $2`

	d, err := scanDeposit(r.conn.GetDB().QueryRowContext(ctx, query, auctionID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &shared.NotFoundError{Resource: "deposit", ID: auctionID.String() + "/" + userID.String()}
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return d, nil
}

func (r *DepositRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*deposit.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM auction_deposits WHERE auction_id = $1 ORDER BY created_at ASC`
	return r.queryDeposits(ctx, query, auctionID)
}

func (r *DepositRepository) CountFrozenByAuction(ctx context.Context, auctionID uuid.UUID) (int, error) {
	var count int
	err := r.conn.GetDB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM auction_deposits WHERE auction_id = $1 AND status = 'FROZEN'
	`, auctionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count frozen deposits: %w", err)
	}
	return count, nil
}

func (r *DepositRepository) ListFrozen(ctx context.Context) ([]*deposit.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM auction_deposits WHERE status = 'FROZEN'`
	return r.queryDeposits(ctx, query)
}

// TransitionStatus moves a row between statuses with a status guard in
// the WHERE clause; a zero row count means another writer already moved it
func (r *DepositRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to deposit.Status, at time.Time) (bool, error) {
	stampColumn, ok := transitionStamp(to)
	if !ok {
		return false, fmt.Errorf("no transition timestamp for status %s", to)
	}

	query := fmt.Sprintf(`
		UPDATE auction_deposits
		SET status = $2, %s = $3, updated_at = $3
		WHERE id = $1 AND status = $4
	`, stampColumn)

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, to, at, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition deposit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Refreeze returns a released row to FROZEN with a fresh amount
func (r *DepositRepository) Refreeze(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	result, err := r.conn.GetDB().ExecContext(ctx, `
		UPDATE auction_deposits
		SET status = 'FROZEN', amount = $2, frozen_at = $3, updated_at = $3
		WHERE id = $1 AND status IN ('CANCELLED', 'REFUNDED')
	`, id, amount, at)
	if err != nil {
		return false, fmt.Errorf("failed to refreeze deposit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *DepositRepository) queryDeposits(ctx context.Context, query string, args ...interface{}) ([]*deposit.Deposit, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*deposit.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}
	return deposits, nil
}

func scanDeposit(row rowScanner) (*deposit.Deposit, error) {
	var d deposit.Deposit
	var frozenAt, refundedAt, deductedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&d.ID,
		&d.AuctionID,
		&d.UserID,
		&d.Amount,
		&d.Status,
		&frozenAt,
		&refundedAt,
		&deductedAt,
		&cancelledAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if frozenAt.Valid {
		d.FrozenAt = &frozenAt.Time
	}
	if refundedAt.Valid {
		d.RefundedAt = &refundedAt.Time
	}
	if deductedAt.Valid {
		d.DeductedAt = &deductedAt.Time
	}
	if cancelledAt.Valid {
		d.CancelledAt = &cancelledAt.Time
	}
	return &d, nil
}

func transitionStamp(to deposit.Status) (string, bool) {
	switch to {
	case deposit.StatusFrozen:
		return "frozen_at", true
	case deposit.StatusRefunded:
		return "refunded_at", true
	case deposit.StatusDeducted:
		return "deducted_at", true
	case deposit.StatusCancelled:
		return "cancelled_at", true
	}
	return "", false
}
