package shared

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is the read-only view of a listed item served by the listing
// collaborator
type Listing struct {
	ID            uuid.UUID       `json:"id"`
	SellerID      uuid.UUID       `json:"seller_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
}

// Balance is a snapshot of one user's wallet buckets
type Balance struct {
	Available decimal.Decimal `json:"available"`
	Frozen    decimal.Decimal `json:"frozen"`
}
