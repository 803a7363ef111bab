package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gavel-auction-service/internal/domain/auction"
	"gavel-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionRepository implements the auction aggregate repository over
// Postgres. Bids live in their own table but are always loaded and
// mutated as part of the aggregate; every write is conditioned on the
// stored version or status so concurrent writers cannot lose updates.
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

const auctionColumns = `
	id, item_id, seller_id, start_at, end_at, starting_price, deposit_amount,
	min_participants, max_participants, status, approval_status,
	winner_id, winning_bid, approved_by, approved_at,
	rejection_reason, cancellation_reason, version, created_at, updated_at
`

func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.ItemID,
		a.SellerID,
		a.StartAt,
		a.EndAt,
		a.StartingPrice,
		a.DepositAmount,
		a.MinParticipants,
		a.MaxParticipants,
		a.Status,
		a.ApprovalStatus,
		uuidOrNil(a.WinnerID),
		decimalOrNil(a.WinningBid),
		uuidOrNil(a.ApprovedBy),
		timeOrNil(a.ApprovedAt),
		nullIfEmpty(a.RejectionReason),
		nullIfEmpty(a.CancellationReason),
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := r.scanAuction(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &shared.NotFoundError{Resource: "auction", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	if err := r.loadBids(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AuctionRepository) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, pageSize, (page-1)*pageSize)

	return r.queryAuctions(ctx, query, args...)
}

// Update persists aggregate changes conditioned on the version the caller
// loaded; the version is bumped in the same statement
func (r *AuctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	query := `
		UPDATE auctions
		SET start_at = $2, end_at = $3, min_participants = $4, max_participants = $5,
			status = $6, approval_status = $7, approved_by = $8, approved_at = $9,
			rejection_reason = $10, cancellation_reason = $11,
			version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $13
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.StartAt,
		a.EndAt,
		a.MinParticipants,
		a.MaxParticipants,
		a.Status,
		a.ApprovalStatus,
		uuidOrNil(a.ApprovedBy),
		timeOrNil(a.ApprovedAt),
		nullIfEmpty(a.RejectionReason),
		nullIfEmpty(a.CancellationReason),
		a.UpdatedAt,
		a.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrVersionConflict
	}

	a.Version++
	return nil
}

// AppendBid inserts a bid and bumps the aggregate version in one
// transaction, both conditioned on the version the caller validated
// against and on the auction still being active
func (r *AuctionRepository) AppendBid(ctx context.Context, auctionID uuid.UUID, b auction.Bid, expectedVersion int64) error {
	return r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE auctions
			SET version = version + 1, updated_at = $2
			WHERE id = $1 AND version = $3 AND status = 'active'
		`, auctionID, b.PlacedAt, expectedVersion)
		if err != nil {
			return fmt.Errorf("failed to bump auction version: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return shared.ErrVersionConflict
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO auction_bids (auction_id, bidder_id, price, placed_at)
			VALUES ($1, $2, $3, $4)
		`, auctionID, b.BidderID, b.Price, b.PlacedAt)
		if err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}
		return nil
	})
}

// MarkEnded transitions active -> ended and records the winner. The
// status guard makes the close at-most-once; the version guard rejects a
// winner computed before a late bid was admitted.
func (r *AuctionRepository) MarkEnded(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID, winningBid *decimal.Decimal, expectedVersion int64, endedAt time.Time) (bool, error) {
	result, err := r.conn.GetDB().ExecContext(ctx, `
		UPDATE auctions
		SET status = 'ended', winner_id = $2, winning_bid = $3,
			version = version + 1, updated_at = $4
		WHERE id = $1 AND status = 'active' AND version = $5
	`, auctionID, uuidOrNil(winnerID), decimalOrNil(winningBid), endedAt, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to mark auction ended: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *AuctionRepository) ListActive(ctx context.Context) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = 'active'`
	return r.queryAuctions(ctx, query)
}

func (r *AuctionRepository) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status = 'pending' AND approval_status = 'pending' AND start_at < $1
	`
	return r.queryAuctions(ctx, query, cutoff)
}

func (r *AuctionRepository) ListDueToStart(ctx context.Context, cutoff time.Time) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status = 'approved' AND approval_status = 'approved'
			AND start_at <= $1 AND end_at > $1
	`
	return r.queryAuctions(ctx, query, cutoff)
}

func (r *AuctionRepository) queryAuctions(ctx context.Context, query string, args ...interface{}) ([]*auction.Auction, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		a, err := r.scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	for _, a := range auctions {
		if err := r.loadBids(ctx, a); err != nil {
			return nil, err
		}
	}
	return auctions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *AuctionRepository) scanAuction(row rowScanner) (*auction.Auction, error) {
	var a auction.Auction
	var winnerID, approvedBy uuid.NullUUID
	var winningBid decimal.NullDecimal
	var approvedAt sql.NullTime
	var rejectionReason, cancellationReason sql.NullString

	err := row.Scan(
		&a.ID,
		&a.ItemID,
		&a.SellerID,
		&a.StartAt,
		&a.EndAt,
		&a.StartingPrice,
		&a.DepositAmount,
		&a.MinParticipants,
		&a.MaxParticipants,
		&a.Status,
		&a.ApprovalStatus,
		&winnerID,
		&winningBid,
		&approvedBy,
		&approvedAt,
		&rejectionReason,
		&cancellationReason,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if winnerID.Valid {
		a.WinnerID = &winnerID.UUID
	}
	if winningBid.Valid {
		a.WinningBid = &winningBid.Decimal
	}
	if approvedBy.Valid {
		a.ApprovedBy = &approvedBy.UUID
	}
	if approvedAt.Valid {
		a.ApprovedAt = &approvedAt.Time
	}
	a.RejectionReason = rejectionReason.String
	a.CancellationReason = cancellationReason.String
	return &a, nil
}

func (r *AuctionRepository) loadBids(ctx context.Context, a *auction.Auction) error {
	rows, err := r.conn.GetDB().QueryContext(ctx, `
		SELECT bidder_id, price, placed_at
		FROM auction_bids
		WHERE auction_id = $1
		ORDER BY placed_at ASC
	`, a.ID)
	if err != nil {
		return fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b auction.Bid
		if err := rows.Scan(&b.BidderID, &b.Price, &b.PlacedAt); err != nil {
			return fmt.Errorf("failed to scan bid: %w", err)
		}
		a.Bids = append(a.Bids, b)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating bids: %w", err)
	}
	return nil
}

func uuidOrNil(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func decimalOrNil(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
