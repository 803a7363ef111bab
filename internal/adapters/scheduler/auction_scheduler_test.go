package scheduler_test

import (
	"context"
	"testing"
	"time"

	"gavel-auction-service/internal/adapters/memory"
	"gavel-auction-service/internal/adapters/scheduler"
	"gavel-auction-service/internal/app"
	"gavel-auction-service/internal/config"
	"gavel-auction-service/internal/domain/auction"
	"gavel-auction-service/internal/domain/deposit"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	auctionRepo *memory.AuctionRepository
	depositRepo *memory.DepositRepository
	wallet      *memory.Wallet
	store       *memory.ScheduleStore
	scheduler   *scheduler.AuctionScheduler
	lifecycle   *app.AuctionService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		auctionRepo: memory.NewAuctionRepository(),
		depositRepo: memory.NewDepositRepository(),
		wallet:      memory.NewWallet(),
		store:       memory.NewScheduleStore(),
	}

	logger := zerolog.Nop()
	cfg := config.AuctionConfig{
		DepositRate:         0.10,
		DefaultDepositFee:   50000,
		TickInterval:        5 * time.Millisecond,
		SweepInterval:       5 * time.Millisecond,
		WalletTimeout:       time.Second,
		RefundRetryAttempts: 2,
		RefundRetryBackoff:  time.Millisecond,
	}

	deposits := app.NewDepositService(app.DepositServiceParams{
		DepositRepo: h.depositRepo,
		AuctionRepo: h.auctionRepo,
		Wallet:      h.wallet,
		Listings:    memory.NewListingProvider(),
		Config:      cfg,
		Logger:      logger,
	})
	h.scheduler = scheduler.NewAuctionScheduler(scheduler.AuctionSchedulerParams{
		Store:       h.store,
		AuctionRepo: h.auctionRepo,
		Config:      cfg,
		Logger:      logger,
	})
	h.lifecycle = app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: h.auctionRepo,
		DepositRepo: h.depositRepo,
		Deposits:    deposits,
		Listings:    memory.NewListingProvider(),
		Scheduler:   h.scheduler,
		Config:      cfg,
		Logger:      logger,
	})
	h.scheduler.SetLifecycle(h.lifecycle)
	return h
}

func (h *harness) seedAuction(t *testing.T, status auction.Status, approval auction.ApprovalStatus, startAt, endAt time.Time) *auction.Auction {
	t.Helper()

	now := time.Now()
	a := &auction.Auction{
		ID:             uuid.New(),
		ItemID:         uuid.New(),
		SellerID:       uuid.New(),
		StartAt:        startAt,
		EndAt:          endAt,
		StartingPrice:  decimal.NewFromInt(1_000_000),
		DepositAmount:  decimal.NewFromInt(100_000),
		Status:         status,
		ApprovalStatus: approval,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, h.auctionRepo.Create(context.Background(), a))
	return a
}

func (h *harness) isEnded(auctionID uuid.UUID) func() bool {
	return func() bool {
		a, err := h.auctionRepo.GetByID(context.Background(), auctionID)
		return err == nil && a.Status == auction.StatusEnded
	}
}

func TestBootstrapClosesOverdueFromStorageAlone(t *testing.T) {
	h := newHarness(t)
	// Ended 10 minutes ago, no timer survives in the empty store.
	overdue := h.seedAuction(t, auction.StatusActive, auction.ApprovalApproved,
		time.Now().Add(-time.Hour), time.Now().Add(-10*time.Minute))

	require.NoError(t, h.scheduler.Start())
	defer h.scheduler.Stop()

	require.Eventually(t, h.isEnded(overdue.ID), time.Second, 5*time.Millisecond,
		"overdue auction should be closed from repository state alone")
}

func TestBootstrapReRegistersFutureClosings(t *testing.T) {
	h := newHarness(t)
	running := h.seedAuction(t, auction.StatusActive, auction.ApprovalApproved,
		time.Now().Add(-time.Minute), time.Now().Add(time.Hour))

	require.NoError(t, h.scheduler.Bootstrap(context.Background()))

	assert.True(t, h.store.Contains(running.ID), "future closing should be back in the store")

	a, err := h.auctionRepo.GetByID(context.Background(), running.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusActive, a.Status, "a future deadline must not close early")
}

func TestTimerClosesAuctionAtDeadline(t *testing.T) {
	h := newHarness(t)
	a := h.seedAuction(t, auction.StatusActive, auction.ApprovalApproved,
		time.Now().Add(-time.Minute), time.Now().Add(30*time.Millisecond))

	require.NoError(t, h.scheduler.Start())
	defer h.scheduler.Stop()
	require.NoError(t, h.scheduler.ScheduleAuction(a.ID, a.EndAt))

	require.Eventually(t, h.isEnded(a.ID), time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !h.store.Contains(a.ID) }, time.Second, 5*time.Millisecond,
		"the store entry is removed once the close succeeds")
}

func TestSweepActivatesDueAndCancelsStalePending(t *testing.T) {
	h := newHarness(t)
	due := h.seedAuction(t, auction.StatusApproved, auction.ApprovalApproved,
		time.Now().Add(-time.Minute), time.Now().Add(time.Hour))
	stale := h.seedAuction(t, auction.StatusPending, auction.ApprovalPending,
		time.Now().Add(-time.Minute), time.Now().Add(time.Hour))

	h.scheduler.RunSweep(context.Background())

	a, err := h.auctionRepo.GetByID(context.Background(), due.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusActive, a.Status)

	a, err = h.auctionRepo.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusCancelled, a.Status)
}

func TestSweepSettlesStrandedRefunds(t *testing.T) {
	h := newHarness(t)
	bidder := uuid.New()
	ended := h.seedAuction(t, auction.StatusEnded, auction.ApprovalApproved,
		time.Now().Add(-time.Hour), time.Now().Add(-time.Minute))

	// A frozen deposit left behind by a crash mid-settlement.
	h.wallet.Credit(bidder, decimal.NewFromInt(100_000))
	require.NoError(t, h.wallet.Freeze(context.Background(), bidder, decimal.NewFromInt(100_000), "test"))
	dep := deposit.New(ended.ID, bidder, decimal.NewFromInt(100_000), time.Now().Add(-time.Hour))
	require.NoError(t, h.depositRepo.Create(context.Background(), dep))

	h.scheduler.RunSweep(context.Background())

	balance, err := h.wallet.GetBalance(context.Background(), bidder)
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(100_000)))
	assert.True(t, balance.Frozen.IsZero())

	got, err := h.depositRepo.GetByAuctionAndUser(context.Background(), ended.ID, bidder)
	require.NoError(t, err)
	assert.Equal(t, deposit.StatusRefunded, got.Status)
}

func TestSweepClosesOverdueActiveWithoutTimer(t *testing.T) {
	h := newHarness(t)
	overdue := h.seedAuction(t, auction.StatusActive, auction.ApprovalApproved,
		time.Now().Add(-time.Hour), time.Now().Add(-time.Minute))

	require.NoError(t, h.scheduler.Start())
	defer h.scheduler.Stop()

	require.Eventually(t, h.isEnded(overdue.ID), time.Second, 5*time.Millisecond)
}
