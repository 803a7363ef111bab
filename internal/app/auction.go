package app

import (
	"context"
	"fmt"
	"time"

	"gavel-auction-service/internal/adapters/scheduler"
	"gavel-auction-service/internal/config"
	"gavel-auction-service/internal/domain/auction"
	"gavel-auction-service/internal/domain/shared"
	"gavel-auction-service/internal/ports/inbound"
	"gavel-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxCloseAttempts bounds the reload-and-retry loop when late bids or
// concurrent closers race the close write
const maxCloseAttempts = 5

// AuctionService implements the auction lifecycle use cases and
// scheduler.LifecycleService
type AuctionService struct {
	auctionRepo outbound.AuctionRepository
	depositRepo outbound.DepositRepository
	listings    outbound.ListingProvider
	deposits    inbound.DepositService
	scheduler   *scheduler.AuctionScheduler
	notifier    outbound.Notifier
	cfg         config.AuctionConfig
	logger      zerolog.Logger
}

type AuctionServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	DepositRepo outbound.DepositRepository
	Listings    outbound.ListingProvider
	Deposits    inbound.DepositService
	Scheduler   *scheduler.AuctionScheduler
	Notifier    outbound.Notifier
	Config      config.AuctionConfig
	Logger      zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	return &AuctionService{
		auctionRepo: params.AuctionRepo,
		depositRepo: params.DepositRepo,
		listings:    params.Listings,
		deposits:    params.Deposits,
		scheduler:   params.Scheduler,
		notifier:    params.Notifier,
		cfg:         params.Config,
		logger:      params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

// SetScheduler sets the auction scheduler
func (service *AuctionService) SetScheduler(s *scheduler.AuctionScheduler) {
	service.scheduler = s
}

// CreateAuction creates a new auction in the pending-approval state
func (service *AuctionService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Auction, error) {
	service.logger.Info().
		Str("item_id", req.ItemID.String()).
		Str("seller_id", req.SellerID.String()).
		Time("start_at", req.StartAt).
		Time("end_at", req.EndAt).
		Str("starting_price", req.StartingPrice.String()).
		Msg("Attempting to create auction")

	listing, err := service.listings.GetListing(ctx, req.ItemID)
	if err != nil {
		service.logger.Error().Err(err).Str("item_id", req.ItemID.String()).Msg("Listing not found")
		return nil, err
	}
	if listing.SellerID != req.SellerID {
		return nil, &shared.ValidationError{Field: "seller_id", Reason: "seller does not own the listed item"}
	}

	if req.StartAt.IsZero() {
		return nil, &shared.ValidationError{Field: "start_at", Reason: "required"}
	}
	if req.EndAt.IsZero() {
		return nil, &shared.ValidationError{Field: "end_at", Reason: "required"}
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, &shared.ValidationError{Field: "end_at", Reason: "must be after start_at"}
	}

	now := time.Now()
	if req.EndAt.Before(now) {
		return nil, &shared.ValidationError{Field: "end_at", Reason: "cannot be in the past"}
	}

	startingPrice := req.StartingPrice
	if !startingPrice.IsPositive() {
		startingPrice = listing.StartingPrice
	}
	if !startingPrice.IsPositive() {
		return nil, &shared.ValidationError{Field: "starting_price", Reason: "must be greater than 0"}
	}

	depositAmount := startingPrice.Mul(decimal.NewFromFloat(service.cfg.DepositRate)).Ceil()

	a := &auction.Auction{
		ID:              uuid.New(),
		ItemID:          req.ItemID,
		SellerID:        req.SellerID,
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		StartingPrice:   startingPrice,
		DepositAmount:   depositAmount,
		MinParticipants: req.MinParticipants,
		MaxParticipants: req.MaxParticipants,
		Status:          auction.StatusPending,
		ApprovalStatus:  auction.ApprovalPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := service.auctionRepo.Create(ctx, a); err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to save auction")
		return nil, err
	}

	service.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("deposit_amount", depositAmount.String()).
		Msg("Auction created, awaiting approval")
	return a, nil
}

// GetAuction retrieves an auction by ID
func (service *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	return service.auctionRepo.GetByID(ctx, auctionID)
}

// ListAuctions retrieves a list of auctions
func (service *AuctionService) ListAuctions(ctx context.Context, req inbound.ListAuctionsRequest) ([]*auction.Auction, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}
	return service.auctionRepo.List(ctx, req.Status, req.Page, req.PageSize)
}

// Approve marks a pending auction approved. The auction stays closed for
// bidding until startAt passes or staff starts it manually.
func (service *AuctionService) Approve(ctx context.Context, req inbound.ApproveRequest) error {
	a, err := service.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return err
	}

	if a.ApprovalStatus != auction.ApprovalPending {
		return &shared.InvalidStateError{Op: "approve", State: string(a.ApprovalStatus)}
	}

	if req.MinParticipants > 0 {
		a.MinParticipants = req.MinParticipants
	}
	if req.MaxParticipants > 0 {
		a.MaxParticipants = req.MaxParticipants
	}
	a.Approve(req.StaffID, time.Now())

	if err := service.auctionRepo.Update(ctx, a); err != nil {
		return err
	}

	service.publish(ctx, outbound.Event{
		AuctionID:       a.ID,
		Type:            outbound.EventTypeAuctionApproved,
		RecipientUserID: a.SellerID,
		Payload:         map[string]interface{}{"approved_by": req.StaffID.String()},
	})

	service.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("staff_id", req.StaffID.String()).
		Msg("Auction approved")
	return nil
}

// Reject rejects a pending auction, cancels it and refunds every frozen
// deposit since the auction will never run
func (service *AuctionService) Reject(ctx context.Context, req inbound.RejectRequest) error {
	if req.Reason == "" {
		return &shared.ValidationError{Field: "reason", Reason: "required"}
	}

	a, err := service.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return err
	}

	if a.ApprovalStatus != auction.ApprovalPending {
		return &shared.InvalidStateError{Op: "reject", State: string(a.ApprovalStatus)}
	}

	a.Reject(req.StaffID, req.Reason, time.Now())
	if err := service.auctionRepo.Update(ctx, a); err != nil {
		return err
	}

	if err := service.deposits.RefundNonWinners(ctx, a.ID, nil); err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Refund pass after rejection incomplete")
	}

	service.publish(ctx, outbound.Event{
		AuctionID:       a.ID,
		Type:            outbound.EventTypeAuctionRejected,
		RecipientUserID: a.SellerID,
		Payload:         map[string]interface{}{"reason": req.Reason},
	})

	service.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("staff_id", req.StaffID.String()).
		Str("reason", req.Reason).
		Msg("Auction rejected")
	return nil
}

// StartManually opens bidding now when enough deposits exist. The bidding
// window is rewritten to begin at the actual opening instant.
func (service *AuctionService) StartManually(ctx context.Context, auctionID, staffID uuid.UUID) error {
	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}

	if a.ApprovalStatus != auction.ApprovalApproved || a.Status != auction.StatusApproved {
		return &shared.InvalidStateError{Op: "start", State: string(a.Status)}
	}

	now := time.Now()
	if now.After(a.EndAt) {
		return &shared.InvalidStateError{Op: "start", State: "past end time"}
	}

	count, err := service.depositRepo.CountFrozenByAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if count < a.MinParticipants {
		return &shared.ValidationError{Field: "participants", Reason: "not enough deposits to start"}
	}

	a.Activate(now)
	if err := service.auctionRepo.Update(ctx, a); err != nil {
		return err
	}

	service.scheduleClose(a)
	service.publish(ctx, outbound.Event{
		AuctionID:       a.ID,
		Type:            outbound.EventTypeAuctionStarted,
		RecipientUserID: a.SellerID,
		Payload:         map[string]interface{}{"end_at": a.EndAt.Format(time.RFC3339)},
	})

	service.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("staff_id", staffID.String()).
		Int("participants", count).
		Msg("Auction started manually")
	return nil
}

// ActivateDueAuctions promotes approved auctions whose startAt has passed
func (service *AuctionService) ActivateDueAuctions(ctx context.Context) error {
	due, err := service.auctionRepo.ListDueToStart(ctx, time.Now())
	if err != nil {
		return err
	}

	for _, a := range due {
		a.Status = auction.StatusActive
		a.UpdatedAt = time.Now()
		if err := service.auctionRepo.Update(ctx, a); err != nil {
			service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to activate due auction")
			continue
		}

		service.scheduleClose(a)
		service.publish(ctx, outbound.Event{
			AuctionID:       a.ID,
			Type:            outbound.EventTypeAuctionStarted,
			RecipientUserID: a.SellerID,
			Payload:         map[string]interface{}{"end_at": a.EndAt.Format(time.RFC3339)},
		})

		service.logger.Info().Str("auction_id", a.ID.String()).Msg("Auction activated at scheduled start")
	}
	return nil
}

// CancelExpiredPending cancels every auction left unapproved past its
// scheduled start, refunding any deposits taken in the meantime
func (service *AuctionService) CancelExpiredPending(ctx context.Context) error {
	expired, err := service.auctionRepo.ListExpiredPending(ctx, time.Now())
	if err != nil {
		return err
	}

	for _, a := range expired {
		a.Cancel("not approved before scheduled start", time.Now())
		if err := service.auctionRepo.Update(ctx, a); err != nil {
			service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to cancel expired pending auction")
			continue
		}

		if err := service.deposits.RefundNonWinners(ctx, a.ID, nil); err != nil {
			service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Refund pass after expiry cancellation incomplete")
		}

		service.publish(ctx, outbound.Event{
			AuctionID:       a.ID,
			Type:            outbound.EventTypeAuctionCancelled,
			RecipientUserID: a.SellerID,
			Payload:         map[string]interface{}{"reason": a.CancellationReason},
		})

		service.logger.Info().Str("auction_id", a.ID.String()).Msg("Expired pending auction cancelled")
	}
	return nil
}

// EndNow closes an auction on staff request once its deadline has passed
func (service *AuctionService) EndNow(ctx context.Context, auctionID, staffID uuid.UUID) error {
	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.IsEnded() {
		return nil
	}
	if time.Now().Before(a.EndAt) {
		return &shared.InvalidStateError{Op: "end now", State: "bidding window still open"}
	}

	service.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("staff_id", staffID.String()).
		Msg("Manual end requested")

	_, err = service.CloseAuction(ctx, auctionID)
	return err
}

// CloseAuction transitions an active auction to ended, records the winner
// and settles deposits. Idempotent: a second invocation is a no-op, and
// the refund pass only touches deposits still frozen. The close write is
// conditioned on the version the winner was computed from: a bid sneaking
// in between the read and the write forces a reload and a fresh winner
// computation, so a deadline snipe can never be refunded as a loser.
// Settlement failures never block the state transition; the
// reconciliation sweep retries them.
func (service *AuctionService) CloseAuction(ctx context.Context, auctionID uuid.UUID) (*shared.CloseResult, error) {
	for attempt := 1; attempt <= maxCloseAttempts; attempt++ {
		a, err := service.auctionRepo.GetByID(ctx, auctionID)
		if err != nil {
			return nil, err
		}

		if a.IsEnded() {
			return &shared.CloseResult{
				AuctionID:     a.ID,
				WinnerID:      a.WinnerID,
				WinningBid:    a.WinningBid,
				Status:        string(a.Status),
				AlreadyClosed: true,
			}, nil
		}
		if !a.IsActive() {
			return nil, &shared.InvalidStateError{Op: "close", State: string(a.Status)}
		}

		var winnerID *uuid.UUID
		var winningBid *decimal.Decimal
		if highest := a.HighestBid(); highest != nil {
			winnerID = &highest.BidderID
			winningBid = &highest.Price
		}

		changed, err := service.auctionRepo.MarkEnded(ctx, a.ID, winnerID, winningBid, a.Version, time.Now())
		if err != nil {
			return nil, err
		}
		if !changed {
			// Either a late bid bumped the version or another closer won
			// the race; the reload decides which.
			service.logger.Debug().
				Str("auction_id", a.ID.String()).
				Int("attempt", attempt).
				Msg("Close write lost a version race, reloading")
			continue
		}

		return service.settleClose(ctx, a, winnerID, winningBid), nil
	}

	return nil, fmt.Errorf("auction %s not closed after %d attempts: %w", auctionID, maxCloseAttempts, shared.ErrVersionConflict)
}

// settleClose notifies and refunds after a successful close write
func (service *AuctionService) settleClose(ctx context.Context, a *auction.Auction, winnerID *uuid.UUID, winningBid *decimal.Decimal) *shared.CloseResult {
	if winnerID != nil {
		service.logger.Info().
			Str("auction_id", a.ID.String()).
			Str("winner_id", winnerID.String()).
			Str("winning_bid", winningBid.String()).
			Msg("Auction closed with winner")
	} else {
		service.logger.Info().Str("auction_id", a.ID.String()).Msg("Auction closed with no bids")
	}

	recipients := []uuid.UUID{a.SellerID}
	if winnerID != nil {
		recipients = append(recipients, *winnerID)
	}
	for _, recipient := range recipients {
		payload := map[string]interface{}{}
		if winnerID != nil {
			payload["winner_id"] = winnerID.String()
			payload["winning_bid"] = winningBid.String()
		}
		service.publish(ctx, outbound.Event{
			AuctionID:       a.ID,
			Type:            outbound.EventTypeAuctionClosed,
			RecipientUserID: recipient,
			Payload:         payload,
		})
	}

	if err := service.deposits.RefundNonWinners(ctx, a.ID, winnerID); err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Refund pass after close incomplete, reconciliation will retry")
	}

	return &shared.CloseResult{
		AuctionID:  a.ID,
		WinnerID:   winnerID,
		WinningBid: winningBid,
		Status:     string(auction.StatusEnded),
	}
}

// SettlePendingRefunds implements scheduler.LifecycleService
func (service *AuctionService) SettlePendingRefunds(ctx context.Context) error {
	return service.deposits.ReconcileRefunds(ctx)
}

func (service *AuctionService) scheduleClose(a *auction.Auction) {
	if service.scheduler == nil {
		return
	}
	if err := service.scheduler.ScheduleAuction(a.ID, a.EndAt); err != nil {
		// The sweep closes overdue auctions even without a timer.
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to schedule auction close")
	}
}

func (service *AuctionService) publish(ctx context.Context, event outbound.Event) {
	if service.notifier == nil {
		return
	}
	event.Timestamp = time.Now().Unix()
	if err := service.notifier.Publish(ctx, event); err != nil {
		service.logger.Warn().Err(err).
			Str("auction_id", event.AuctionID.String()).
			Str("event_type", string(event.Type)).
			Msg("Failed to publish event")
	}
}
