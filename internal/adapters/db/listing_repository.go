package db

import (
	"context"
	"database/sql"
	"fmt"

	"gavel-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// ListingRepository is the read-only adapter over the marketplace's
// listing table, implementing the listing collaborator contract
type ListingRepository struct {
	conn *Connection
}

// NewListingRepository creates a new listing repository
func NewListingRepository(conn *Connection) *ListingRepository {
	return &ListingRepository{conn: conn}
}

func (r *ListingRepository) GetListing(ctx context.Context, id uuid.UUID) (*shared.Listing, error) {
	var listing shared.Listing
	err := r.conn.GetDB().QueryRowContext(ctx, `
		SELECT id, seller_id, starting_price FROM listings WHERE id = $1
	`, id).Scan(&listing.ID, &listing.SellerID, &listing.StartingPrice)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &shared.NotFoundError{Resource: "listing", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}
