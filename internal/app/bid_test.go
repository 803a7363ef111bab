package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"gavel-auction-service/internal/domain/shared"
	"gavel-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceBidEqualToStartingPriceRejected(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	bidder := uuid.New()
	a := f.seedActiveAuction(t, seller, 1_000_000, 100_000, time.Now().Add(time.Hour))
	f.freezeDeposit(t, a.ID, bidder, 100_000)

	_, err := f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: a.ID,
		BidderID:  bidder,
		Price:     decimal.NewFromInt(1_000_000),
	})

	var tooLow *shared.BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.True(t, tooLow.CurrentHighest.Equal(decimal.NewFromInt(1_000_000)))
}

func TestPlaceBidMustBeatCurrentHighest(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	first := uuid.New()
	second := uuid.New()
	a := f.seedActiveAuction(t, seller, 1_000_000, 100_000, time.Now().Add(time.Hour))
	f.freezeDeposit(t, a.ID, first, 100_000)
	f.freezeDeposit(t, a.ID, second, 100_000)

	_, err := f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: a.ID, BidderID: first, Price: decimal.NewFromInt(1_100_000),
	})
	require.NoError(t, err)

	// Matching the highest is not enough.
	_, err = f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: a.ID, BidderID: second, Price: decimal.NewFromInt(1_100_000),
	})
	var tooLow *shared.BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.True(t, tooLow.CurrentHighest.Equal(decimal.NewFromInt(1_100_000)))

	b, err := f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: a.ID, BidderID: second, Price: decimal.NewFromInt(1_200_000),
	})
	require.NoError(t, err)
	assert.Equal(t, second, b.BidderID)

	highest, err := f.bids.GetHighestBid(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, second, highest.BidderID)
	assert.True(t, highest.Price.Equal(decimal.NewFromInt(1_200_000)))
}

func TestPlaceBidWithoutDepositRejected(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	bidder := uuid.New()
	a := f.seedActiveAuction(t, seller, 1_000_000, 100_000, time.Now().Add(time.Hour))

	_, err := f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: a.ID, BidderID: bidder, Price: decimal.NewFromInt(1_100_000),
	})

	var needsDeposit *shared.DepositRequiredError
	require.ErrorAs(t, err, &needsDeposit)
	assert.True(t, needsDeposit.RequiredAmount.Equal(decimal.NewFromInt(100_000)))
}

func TestPlaceBidCancelledDepositDoesNotQualify(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	bidder := uuid.New()
	a := f.createApprovedAuction(t, seller, 1_000_000, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	f.freezeDeposit(t, a.ID, bidder, 100_000)
	require.NoError(t, f.deposits.CancelDeposit(context.Background(), a.ID, bidder))

	// Force the auction open.
	require.NoError(t, f.auctions.StartManually(context.Background(), a.ID, uuid.New()))

	_, err := f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: a.ID, BidderID: bidder, Price: decimal.NewFromInt(1_100_000),
	})

	var needsDeposit *shared.DepositRequiredError
	require.ErrorAs(t, err, &needsDeposit)
}

func TestPlaceBidNoDepositConfiguredSkipsCheck(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	bidder := uuid.New()
	a := f.seedActiveAuction(t, seller, 1_000_000, 0, time.Now().Add(time.Hour))

	b, err := f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: a.ID, BidderID: bidder, Price: decimal.NewFromInt(1_050_000),
	})
	require.NoError(t, err)
	assert.Equal(t, bidder, b.BidderID)
}

func TestPlaceBidOnInactiveAuctionRejected(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	bidder := uuid.New()
	a := f.createApprovedAuction(t, seller, 1_000_000, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	f.freezeDeposit(t, a.ID, bidder, 100_000)

	_, err := f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: a.ID, BidderID: bidder, Price: decimal.NewFromInt(1_100_000),
	})

	var stateErr *shared.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestPlaceBidPastDeadlineRejected(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	bidder := uuid.New()
	a := f.seedActiveAuction(t, seller, 1_000_000, 0, time.Now().Add(-time.Minute))

	_, err := f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: a.ID, BidderID: bidder, Price: decimal.NewFromInt(1_100_000),
	})

	var window *shared.OutOfWindowError
	require.ErrorAs(t, err, &window)
}

func TestPlaceBidNonPositivePriceRejected(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	a := f.seedActiveAuction(t, seller, 1_000_000, 0, time.Now().Add(time.Hour))

	_, err := f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: a.ID, BidderID: uuid.New(), Price: decimal.Zero,
	})

	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestConcurrentBidsStayStrictlyIncreasing(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	a := f.seedActiveAuction(t, seller, 1_000_000, 0, time.Now().Add(time.Hour))

	const bidders = 8
	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Several goroutines race with overlapping prices; losers
			// get a version retry or a too-low rejection, never a
			// duplicate admission.
			_, _ = f.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{
				AuctionID: a.ID,
				BidderID:  uuid.New(),
				Price:     decimal.NewFromInt(1_000_000 + int64(i%4+1)*50_000),
			})
		}(i)
	}
	wg.Wait()

	bids, err := f.bids.GetBids(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, bids)
	for i := 1; i < len(bids); i++ {
		assert.True(t, bids[i].Price.GreaterThan(bids[i-1].Price),
			"bid %d (%s) must exceed bid %d (%s)", i, bids[i].Price, i-1, bids[i-1].Price)
	}
}

func TestGetHighestBidEmptyAuction(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	a := f.seedActiveAuction(t, seller, 1_000_000, 0, time.Now().Add(time.Hour))

	_, err := f.bids.GetHighestBid(context.Background(), a.ID)
	require.ErrorIs(t, err, shared.ErrNoBidsFound)
}
