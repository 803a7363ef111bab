package db

import (
	"gavel-auction-service/internal/ports/outbound"
)

// RepositoryFactory creates and manages all database-backed adapters
type RepositoryFactory struct {
	conn *Connection
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// GetAuctionRepository returns the auction repository
func (f *RepositoryFactory) GetAuctionRepository() outbound.AuctionRepository {
	return NewAuctionRepository(f.conn)
}

// GetDepositRepository returns the deposit repository
func (f *RepositoryFactory) GetDepositRepository() outbound.DepositRepository {
	return NewDepositRepository(f.conn)
}

// GetListingProvider returns the listing provider
func (f *RepositoryFactory) GetListingProvider() outbound.ListingProvider {
	return NewListingRepository(f.conn)
}

// GetWallet returns the wallet collaborator adapter
func (f *RepositoryFactory) GetWallet() outbound.Wallet {
	return NewWalletRepository(f.conn)
}
