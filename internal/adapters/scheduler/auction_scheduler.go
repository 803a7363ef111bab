package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gavel-auction-service/internal/config"
	"gavel-auction-service/internal/domain/shared"
	"gavel-auction-service/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// dueBatchSize caps how many due auctions one tick pulls from the store
const dueBatchSize = 10

// LifecycleService is the slice of the auction service the scheduler drives
type LifecycleService interface {
	CloseAuction(ctx context.Context, auctionID uuid.UUID) (*shared.CloseResult, error)
	ActivateDueAuctions(ctx context.Context) error
	CancelExpiredPending(ctx context.Context) error
	SettlePendingRefunds(ctx context.Context) error
}

// AuctionScheduler closes auctions at their deadline. Pending closings
// live in a persisted schedule store, so a restart loses no timer; the
// bootstrap pass reconciles the store against the auction repository, and
// a low-frequency sweep corrects any drift the timers miss. Closing
// itself is idempotent, so the timer, the sweep and a manual end may all
// fire for the same auction.
type AuctionScheduler struct {
	store       outbound.ScheduleStore
	auctionRepo outbound.AuctionRepository
	lifecycle   LifecycleService
	pool        *pond.WorkerPool
	tick        time.Duration
	sweep       time.Duration
	logger      zerolog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

type AuctionSchedulerParams struct {
	Store       outbound.ScheduleStore
	AuctionRepo outbound.AuctionRepository
	Lifecycle   LifecycleService
	Config      config.AuctionConfig
	Logger      zerolog.Logger
}

// NewAuctionScheduler creates a new auction scheduler
func NewAuctionScheduler(params AuctionSchedulerParams) *AuctionScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	tick := params.Config.TickInterval
	if tick <= 0 {
		tick = time.Second
	}
	sweep := params.Config.SweepInterval
	if sweep <= 0 {
		sweep = time.Minute
	}

	return &AuctionScheduler{
		store:       params.Store,
		auctionRepo: params.AuctionRepo,
		lifecycle:   params.Lifecycle,
		pool:        pond.New(config.SchedulerMaxWorkers, config.SchedulerMaxCapacity, pond.Context(ctx)),
		tick:        tick,
		sweep:       sweep,
		logger:      params.Logger.With().Str("component", "auction_scheduler").Logger(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetLifecycle sets the lifecycle service driven by the scheduler
func (s *AuctionScheduler) SetLifecycle(lifecycle LifecycleService) {
	s.lifecycle = lifecycle
}

// ScheduleAuction registers an auction to be closed at endAt
func (s *AuctionScheduler) ScheduleAuction(auctionID uuid.UUID, endAt time.Time) error {
	if err := s.store.Add(s.ctx, auctionID, endAt); err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to schedule auction")
		return fmt.Errorf("failed to schedule auction: %w", err)
	}

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Time("end_at", endAt).
		Msg("Auction scheduled for closing")
	return nil
}

// Start reconciles persisted state and begins the scheduler loops
func (s *AuctionScheduler) Start() error {
	s.logger.Info().Msg("Starting auction scheduler")

	if err := s.Bootstrap(s.ctx); err != nil {
		return fmt.Errorf("scheduler bootstrap: %w", err)
	}

	s.wg.Add(2)
	go s.tickLoop()
	go s.sweepLoop()
	return nil
}

// Stop gracefully stops the scheduler
func (s *AuctionScheduler) Stop() {
	s.logger.Info().Msg("Stopping auction scheduler")
	s.cancel()
	s.wg.Wait()
	s.pool.StopAndWait()
}

// Bootstrap re-registers timers for every active auction and force-closes
// those whose deadline passed while the process was down. Run on every
// startup: in-memory timers do not survive a crash, the store and the
// repository do.
func (s *AuctionScheduler) Bootstrap(ctx context.Context) error {
	active, err := s.auctionRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	reRegistered, overdue := 0, 0
	for _, a := range active {
		if a.EndAt.After(now) {
			if err := s.store.Add(ctx, a.ID, a.EndAt); err != nil {
				s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to re-register auction closing")
				continue
			}
			reRegistered++
		} else {
			s.submitClose(a.ID)
			overdue++
		}
	}

	s.logger.Info().
		Int("re_registered", reRegistered).
		Int("overdue_closed", overdue).
		Msg("Scheduler bootstrap complete")
	return nil
}

// tickLoop pulls due entries from the schedule store
func (s *AuctionScheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processDue()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler tick loop stopped")
			return
		}
	}
}

// sweepLoop runs the reconciliation pass: activating due auctions,
// cancelling stale pending ones, closing anything active-but-overdue the
// timers missed, and retrying failed refunds
func (s *AuctionScheduler) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunSweep(s.ctx)
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler sweep loop stopped")
			return
		}
	}
}

// RunSweep executes one reconciliation pass
func (s *AuctionScheduler) RunSweep(ctx context.Context) {
	if err := s.lifecycle.ActivateDueAuctions(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Sweep failed to activate due auctions")
	}
	if err := s.lifecycle.CancelExpiredPending(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Sweep failed to cancel expired pending auctions")
	}
	s.closeOverdueActive(ctx)
	if err := s.lifecycle.SettlePendingRefunds(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Sweep failed to settle pending refunds")
	}
}

func (s *AuctionScheduler) closeOverdueActive(ctx context.Context) {
	active, err := s.auctionRepo.ListActive(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Sweep failed to list active auctions")
		return
	}

	now := time.Now()
	for _, a := range active {
		if a.EndAt.After(now) {
			continue
		}
		s.submitClose(a.ID)
	}
}

func (s *AuctionScheduler) processDue() {
	due, err := s.store.Due(s.ctx, time.Now(), dueBatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get due auctions")
		return
	}

	if len(due) > 0 {
		s.logger.Debug().Int("count", len(due)).Msg("Found due auctions")
	}

	for _, auctionID := range due {
		s.submitClose(auctionID)
	}
}

// submitClose hands a closing to the worker pool. The store entry is only
// removed after the close succeeds, so a failed attempt is retried on the
// next tick.
func (s *AuctionScheduler) submitClose(auctionID uuid.UUID) {
	s.pool.Submit(func() {
		result, err := s.lifecycle.CloseAuction(s.ctx, auctionID)
		if err != nil {
			s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to close auction")
			return
		}

		if err := s.store.Remove(s.ctx, auctionID); err != nil {
			s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to remove auction from schedule")
		}

		logger := s.logger.Info().Str("auction_id", auctionID.String()).Bool("already_closed", result.AlreadyClosed)
		if result.WinnerID != nil {
			logger = logger.Str("winner_id", result.WinnerID.String())
		}
		if result.WinningBid != nil {
			logger = logger.Str("winning_bid", result.WinningBid.String())
		}
		logger.Msg("Auction closing processed")
	})
}
