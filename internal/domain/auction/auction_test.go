package auction_test

import (
	"testing"
	"time"

	"gavel-auction-service/internal/domain/auction"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestHighestPriceFallsBackToStartingPrice(t *testing.T) {
	a := &auction.Auction{StartingPrice: decimal.NewFromInt(500)}
	assert.True(t, a.HighestPrice().Equal(decimal.NewFromInt(500)))

	a.Bids = []auction.Bid{
		{BidderID: uuid.New(), Price: decimal.NewFromInt(600)},
		{BidderID: uuid.New(), Price: decimal.NewFromInt(750)},
	}
	assert.True(t, a.HighestPrice().Equal(decimal.NewFromInt(750)))
	assert.True(t, a.HighestBid().Price.Equal(decimal.NewFromInt(750)))
}

func TestHighestBidEmpty(t *testing.T) {
	a := &auction.Auction{}
	assert.Nil(t, a.HighestBid())
}

func TestInBidWindowIsInclusive(t *testing.T) {
	start := time.Now()
	end := start.Add(time.Hour)
	a := &auction.Auction{StartAt: start, EndAt: end}

	assert.True(t, a.InBidWindow(start))
	assert.True(t, a.InBidWindow(end))
	assert.True(t, a.InBidWindow(start.Add(30*time.Minute)))
	assert.False(t, a.InBidWindow(start.Add(-time.Second)))
	assert.False(t, a.InBidWindow(end.Add(time.Second)))
}

func TestApproveMovesBothStateAxes(t *testing.T) {
	a := &auction.Auction{Status: auction.StatusPending, ApprovalStatus: auction.ApprovalPending}
	staff := uuid.New()

	a.Approve(staff, time.Now())

	assert.Equal(t, auction.StatusApproved, a.Status)
	assert.Equal(t, auction.ApprovalApproved, a.ApprovalStatus)
	assert.Equal(t, staff, *a.ApprovedBy)
	assert.NotNil(t, a.ApprovedAt)
}

func TestRejectCancels(t *testing.T) {
	a := &auction.Auction{Status: auction.StatusPending, ApprovalStatus: auction.ApprovalPending}

	a.Reject(uuid.New(), "counterfeit listing", time.Now())

	assert.Equal(t, auction.StatusCancelled, a.Status)
	assert.Equal(t, auction.ApprovalRejected, a.ApprovalStatus)
	assert.Equal(t, "counterfeit listing", a.RejectionReason)
	assert.True(t, a.IsTerminal())
}

func TestActivateRewritesWindowStart(t *testing.T) {
	scheduled := time.Now().Add(time.Hour)
	a := &auction.Auction{Status: auction.StatusApproved, StartAt: scheduled, EndAt: scheduled.Add(time.Hour)}

	opened := time.Now()
	a.Activate(opened)

	assert.Equal(t, auction.StatusActive, a.Status)
	assert.True(t, a.StartAt.Equal(opened))
}

func TestDepositRequired(t *testing.T) {
	a := &auction.Auction{}
	assert.False(t, a.DepositRequired())

	a.DepositAmount = decimal.NewFromInt(100)
	assert.True(t, a.DepositRequired())
}
