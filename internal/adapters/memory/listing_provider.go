package memory

import (
	"context"
	"sync"

	"gavel-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// ListingProvider is an in-memory listing collaborator
type ListingProvider struct {
	mu       sync.RWMutex
	listings map[uuid.UUID]shared.Listing
}

// NewListingProvider creates an empty in-memory listing provider
func NewListingProvider() *ListingProvider {
	return &ListingProvider{listings: make(map[uuid.UUID]shared.Listing)}
}

// Put stores a listing (test fixture helper)
func (p *ListingProvider) Put(listing shared.Listing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listings[listing.ID] = listing
}

func (p *ListingProvider) GetListing(ctx context.Context, id uuid.UUID) (*shared.Listing, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	listing, ok := p.listings[id]
	if !ok {
		return nil, &shared.NotFoundError{Resource: "listing", ID: id.String()}
	}
	return &listing, nil
}
