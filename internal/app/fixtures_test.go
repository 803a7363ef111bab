package app_test

import (
	"context"
	"testing"
	"time"

	"gavel-auction-service/internal/adapters/memory"
	"gavel-auction-service/internal/app"
	"gavel-auction-service/internal/config"
	"gavel-auction-service/internal/domain/auction"
	"gavel-auction-service/internal/domain/shared"
	"gavel-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	auctionRepo *memory.AuctionRepository
	depositRepo *memory.DepositRepository
	wallet      *memory.Wallet
	listings    *memory.ListingProvider
	notifier    *memory.Notifier
	deposits    *app.DepositService
	auctions    *app.AuctionService
	bids        *app.BidService
}

func testConfig() config.AuctionConfig {
	return config.AuctionConfig{
		DepositRate:         0.10,
		DefaultDepositFee:   50000,
		TickInterval:        10 * time.Millisecond,
		SweepInterval:       10 * time.Millisecond,
		WalletTimeout:       time.Second,
		RefundRetryAttempts: 2,
		RefundRetryBackoff:  time.Millisecond,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		auctionRepo: memory.NewAuctionRepository(),
		depositRepo: memory.NewDepositRepository(),
		wallet:      memory.NewWallet(),
		listings:    memory.NewListingProvider(),
		notifier:    memory.NewNotifier(),
	}

	logger := zerolog.Nop()
	cfg := testConfig()

	f.deposits = app.NewDepositService(app.DepositServiceParams{
		DepositRepo: f.depositRepo,
		AuctionRepo: f.auctionRepo,
		Wallet:      f.wallet,
		Listings:    f.listings,
		Notifier:    f.notifier,
		Config:      cfg,
		Logger:      logger,
	})
	f.auctions = app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: f.auctionRepo,
		DepositRepo: f.depositRepo,
		Listings:    f.listings,
		Deposits:    f.deposits,
		Notifier:    f.notifier,
		Config:      cfg,
		Logger:      logger,
	})
	f.bids = app.NewBidService(app.BidServiceParams{
		AuctionRepo: f.auctionRepo,
		DepositRepo: f.depositRepo,
		Notifier:    f.notifier,
		Logger:      logger,
	})
	return f
}

// seedListing registers a listing and returns its ID
func (f *fixture) seedListing(sellerID uuid.UUID, price int64) uuid.UUID {
	itemID := uuid.New()
	f.listings.Put(shared.Listing{
		ID:            itemID,
		SellerID:      sellerID,
		StartingPrice: decimal.NewFromInt(price),
	})
	return itemID
}

// createPendingAuction creates an auction awaiting approval
func (f *fixture) createPendingAuction(t *testing.T, sellerID uuid.UUID, price int64, startAt, endAt time.Time) *auction.Auction {
	t.Helper()

	itemID := f.seedListing(sellerID, price)
	a, err := f.auctions.CreateAuction(context.Background(), inbound.CreateAuctionRequest{
		ItemID:        itemID,
		SellerID:      sellerID,
		StartAt:       startAt,
		EndAt:         endAt,
		StartingPrice: decimal.NewFromInt(price),
	})
	require.NoError(t, err)
	return a
}

// createApprovedAuction creates and approves an auction
func (f *fixture) createApprovedAuction(t *testing.T, sellerID uuid.UUID, price int64, startAt, endAt time.Time) *auction.Auction {
	t.Helper()

	a := f.createPendingAuction(t, sellerID, price, startAt, endAt)
	require.NoError(t, f.auctions.Approve(context.Background(), inbound.ApproveRequest{
		AuctionID: a.ID,
		StaffID:   uuid.New(),
	}))

	a, err := f.auctions.GetAuction(context.Background(), a.ID)
	require.NoError(t, err)
	return a
}

// seedActiveAuction plants an already-active auction directly in the repository
func (f *fixture) seedActiveAuction(t *testing.T, sellerID uuid.UUID, price, depositAmount int64, endAt time.Time) *auction.Auction {
	t.Helper()

	now := time.Now()
	a := &auction.Auction{
		ID:             uuid.New(),
		ItemID:         uuid.New(),
		SellerID:       sellerID,
		StartAt:        now.Add(-time.Minute),
		EndAt:          endAt,
		StartingPrice:  decimal.NewFromInt(price),
		DepositAmount:  decimal.NewFromInt(depositAmount),
		Status:         auction.StatusActive,
		ApprovalStatus: auction.ApprovalApproved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.auctionRepo.Create(context.Background(), a))
	return a
}

// freezeDeposit credits the wallet and creates a frozen deposit
func (f *fixture) freezeDeposit(t *testing.T, auctionID, userID uuid.UUID, balance int64) *shared.DepositResult {
	t.Helper()

	f.wallet.Credit(userID, decimal.NewFromInt(balance))
	result, err := f.deposits.CreateDeposit(context.Background(), auctionID, userID)
	require.NoError(t, err)
	require.False(t, result.RequiresTopUp)
	return result
}
