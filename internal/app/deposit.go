package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gavel-auction-service/internal/config"
	"gavel-auction-service/internal/domain/auction"
	"gavel-auction-service/internal/domain/deposit"
	"gavel-auction-service/internal/domain/shared"
	"gavel-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DepositService implements the escrow use cases against the deposit
// ledger and the wallet collaborator
type DepositService struct {
	depositRepo outbound.DepositRepository
	auctionRepo outbound.AuctionRepository
	wallet      outbound.Wallet
	listings    outbound.ListingProvider
	notifier    outbound.Notifier
	cfg         config.AuctionConfig
	logger      zerolog.Logger
}

type DepositServiceParams struct {
	DepositRepo outbound.DepositRepository
	AuctionRepo outbound.AuctionRepository
	Wallet      outbound.Wallet
	Listings    outbound.ListingProvider
	Notifier    outbound.Notifier
	Config      config.AuctionConfig
	Logger      zerolog.Logger
}

// NewDepositService creates a new deposit service
func NewDepositService(params DepositServiceParams) *DepositService {
	return &DepositService{
		depositRepo: params.DepositRepo,
		auctionRepo: params.AuctionRepo,
		wallet:      params.Wallet,
		listings:    params.Listings,
		notifier:    params.Notifier,
		cfg:         params.Config,
		logger:      params.Logger.With().Str("component", "deposit_service").Logger(),
	}
}

// CreateDeposit freezes the bidding deposit for (auctionID, userID). An
// insufficient balance is reported as a top-up result carrying the exact
// shortfall; only collaborator failures surface as errors.
func (service *DepositService) CreateDeposit(ctx context.Context, auctionID, userID uuid.UUID) (*shared.DepositResult, error) {
	service.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("user_id", userID.String()).
		Msg("Attempting to create deposit")

	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if a.SellerID == userID {
		return nil, &shared.ValidationError{Field: "user_id", Reason: "seller cannot deposit on own auction"}
	}

	now := time.Now()
	if a.ApprovalStatus != auction.ApprovalApproved {
		return nil, &shared.InvalidStateError{Op: "deposit", State: string(a.ApprovalStatus)}
	}
	if a.Status != auction.StatusApproved && a.Status != auction.StatusActive {
		return nil, &shared.InvalidStateError{Op: "deposit", State: string(a.Status)}
	}
	if now.After(a.EndAt) {
		return nil, &shared.OutOfWindowError{StartAt: a.StartAt, EndAt: a.EndAt}
	}

	existing, err := service.depositRepo.GetByAuctionAndUser(ctx, auctionID, userID)
	var notFound *shared.NotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, err
	}
	if existing != nil && existing.IsFrozen() {
		return nil, &shared.InvalidStateError{Op: "deposit", State: string(existing.Status)}
	}

	if a.MaxParticipants > 0 {
		count, err := service.depositRepo.CountFrozenByAuction(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		if count >= a.MaxParticipants {
			return nil, &shared.InvalidStateError{Op: "deposit", State: "participant limit reached"}
		}
	}

	fee := service.depositFee(ctx, a)

	balance, err := service.wallet.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance.Available.LessThan(fee) {
		service.logger.Info().
			Str("user_id", userID.String()).
			Str("required", fee.String()).
			Str("available", balance.Available.String()).
			Msg("Deposit requires top-up")
		return &shared.DepositResult{
			AuctionID:      auctionID,
			UserID:         userID,
			RequiredAmount: fee,
			Available:      balance.Available,
			Shortfall:      fee.Sub(balance.Available),
			RequiresTopUp:  true,
		}, nil
	}

	memo := "auction deposit " + auctionID.String()
	if err := service.walletCall(ctx, func(ctx context.Context) error {
		return service.wallet.Freeze(ctx, userID, fee, memo)
	}, false); err != nil {
		var insufficient *shared.InsufficientFundsError
		if errors.As(err, &insufficient) {
			// Lost a race against another spend; same first-class outcome
			// as the preflight check.
			return &shared.DepositResult{
				AuctionID:      auctionID,
				UserID:         userID,
				RequiredAmount: insufficient.Required,
				Available:      insufficient.Available,
				Shortfall:      insufficient.Shortfall(),
				RequiresTopUp:  true,
			}, nil
		}
		return nil, err
	}

	// Re-use a released row for the pair instead of inserting a duplicate,
	// keeping the unique-pair constraint satisfiable without deleting history.
	// Losing the ledger write after a successful freeze must release the fee
	// again: the funds are only held while a FROZEN row accounts for them.
	var dep *deposit.Deposit
	if existing != nil {
		ok, err := service.depositRepo.Refreeze(ctx, existing.ID, fee, now)
		if err != nil {
			service.releaseFee(ctx, auctionID, userID, fee)
			return nil, err
		}
		if !ok {
			service.releaseFee(ctx, auctionID, userID, fee)
			return nil, &shared.InvalidStateError{Op: "deposit", State: string(existing.Status)}
		}
		dep = existing
		dep.Amount = fee
		dep.Status = deposit.StatusFrozen
	} else {
		dep = deposit.New(auctionID, userID, fee, now)
		if err := service.depositRepo.Create(ctx, dep); err != nil {
			service.releaseFee(ctx, auctionID, userID, fee)
			return nil, err
		}
	}

	service.publish(ctx, outbound.Event{
		AuctionID:       auctionID,
		Type:            outbound.EventTypeDepositFrozen,
		RecipientUserID: userID,
		Payload:         map[string]interface{}{"amount": fee.String()},
	})

	service.logger.Info().
		Str("deposit_id", dep.ID.String()).
		Str("auction_id", auctionID.String()).
		Str("user_id", userID.String()).
		Str("amount", fee.String()).
		Msg("Deposit frozen")

	return &shared.DepositResult{
		DepositID:      dep.ID,
		AuctionID:      auctionID,
		UserID:         userID,
		RequiredAmount: fee,
		Available:      balance.Available.Sub(fee),
	}, nil
}

// CancelDeposit releases a frozen deposit before the auction starts
func (service *DepositService) CancelDeposit(ctx context.Context, auctionID, userID uuid.UUID) error {
	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}

	now := time.Now()
	if !now.Before(a.StartAt) {
		return &shared.InvalidStateError{Op: "cancel deposit", State: string(a.Status)}
	}

	dep, err := service.depositRepo.GetByAuctionAndUser(ctx, auctionID, userID)
	if err != nil {
		return err
	}
	if !dep.IsFrozen() {
		return &shared.InvalidStateError{Op: "cancel deposit", State: string(dep.Status)}
	}

	memo := "deposit cancelled " + auctionID.String()
	if err := service.walletCall(ctx, func(ctx context.Context) error {
		return service.wallet.Unfreeze(ctx, userID, dep.Amount, memo)
	}, true); err != nil {
		return err
	}

	if _, err := service.depositRepo.TransitionStatus(ctx, dep.ID, deposit.StatusFrozen, deposit.StatusCancelled, now); err != nil {
		return err
	}

	service.logger.Info().
		Str("deposit_id", dep.ID.String()).
		Str("user_id", userID.String()).
		Msg("Deposit cancelled")
	return nil
}

// RefundNonWinners releases every FROZEN deposit for the auction except
// the winner's. Re-running only affects rows still FROZEN, which is what
// makes auction closing idempotent with respect to money movement.
func (service *DepositService) RefundNonWinners(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID) error {
	deposits, err := service.depositRepo.ListByAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	failed := 0
	for _, dep := range deposits {
		if !dep.IsFrozen() {
			continue
		}
		if winnerID != nil && dep.UserID == *winnerID {
			continue
		}

		memo := "deposit refund " + auctionID.String()
		if err := service.walletCall(ctx, func(ctx context.Context) error {
			return service.wallet.Unfreeze(ctx, dep.UserID, dep.Amount, memo)
		}, true); err != nil {
			service.logger.Error().Err(err).
				Str("deposit_id", dep.ID.String()).
				Str("user_id", dep.UserID.String()).
				Msg("Refund unfreeze failed, will be retried by reconciliation")
			failed++
			continue
		}

		changed, err := service.depositRepo.TransitionStatus(ctx, dep.ID, deposit.StatusFrozen, deposit.StatusRefunded, time.Now())
		if err != nil {
			service.logger.Error().Err(err).Str("deposit_id", dep.ID.String()).Msg("Failed to mark deposit refunded")
			failed++
			continue
		}
		if !changed {
			// Another refund pass got there first; the unfreeze above was
			// an idempotent no-op on the wallet side.
			continue
		}

		service.publish(ctx, outbound.Event{
			AuctionID:       auctionID,
			Type:            outbound.EventTypeDepositRefunded,
			RecipientUserID: dep.UserID,
			Payload:         map[string]interface{}{"amount": dep.Amount.String()},
		})
	}

	if failed > 0 {
		return &refundIncompleteError{auctionID: auctionID, failed: failed}
	}
	return nil
}

// DeductWinnerDeposit converts the winner's frozen deposit into a partial
// payment by debiting the frozen bucket directly
func (service *DepositService) DeductWinnerDeposit(ctx context.Context, auctionID, winnerID uuid.UUID) error {
	dep, err := service.depositRepo.GetByAuctionAndUser(ctx, auctionID, winnerID)
	var notFound *shared.NotFoundError
	if errors.As(err, &notFound) {
		return &shared.DataIntegrityError{Detail: "winner " + winnerID.String() + " has no deposit for auction " + auctionID.String()}
	}
	if err != nil {
		return err
	}
	if !dep.IsFrozen() {
		return &shared.InvalidStateError{Op: "deduct deposit", State: string(dep.Status)}
	}

	memo := "winner deposit deduction " + auctionID.String()
	if err := service.walletCall(ctx, func(ctx context.Context) error {
		return service.wallet.DirectDebitFrozen(ctx, winnerID, dep.Amount, memo)
	}, true); err != nil {
		return err
	}

	changed, err := service.depositRepo.TransitionStatus(ctx, dep.ID, deposit.StatusFrozen, deposit.StatusDeducted, time.Now())
	if err != nil {
		return err
	}
	if !changed {
		return &shared.DataIntegrityError{Detail: "winner deposit " + dep.ID.String() + " left FROZEN concurrently"}
	}

	service.logger.Info().
		Str("deposit_id", dep.ID.String()).
		Str("winner_id", winnerID.String()).
		Str("amount", dep.Amount.String()).
		Msg("Winner deposit deducted")
	return nil
}

// ReconcileRefunds retries refunds for ended auctions that still hold
// non-winner frozen deposits. Run periodically by the scheduler sweep.
func (service *DepositService) ReconcileRefunds(ctx context.Context) error {
	frozen, err := service.depositRepo.ListFrozen(ctx)
	if err != nil {
		return err
	}

	byAuction := make(map[uuid.UUID]bool)
	for _, dep := range frozen {
		byAuction[dep.AuctionID] = true
	}

	for auctionID := range byAuction {
		a, err := service.auctionRepo.GetByID(ctx, auctionID)
		if err != nil {
			service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Reconciliation could not load auction")
			continue
		}
		if !a.IsEnded() {
			continue
		}
		if err := service.RefundNonWinners(ctx, auctionID, a.WinnerID); err != nil {
			service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Reconciliation refund pass incomplete")
		}
	}
	return nil
}

// releaseFee unfreezes a fee whose ledger row could not be written, e.g.
// when two requests for the same pair raced and this one lost. Without
// the release the wallet would hold frozen money no FROZEN row accounts
// for.
func (service *DepositService) releaseFee(ctx context.Context, auctionID, userID uuid.UUID, fee decimal.Decimal) {
	memo := "deposit rollback " + auctionID.String()
	if err := service.walletCall(ctx, func(ctx context.Context) error {
		return service.wallet.Unfreeze(ctx, userID, fee, memo)
	}, true); err != nil {
		service.logger.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Str("user_id", userID.String()).
			Str("amount", fee.String()).
			Msg("Failed to release fee after ledger conflict")
	}
}

// depositFee computes ceil(startingPrice * rate), falling back to the
// configured fixed fee when no starting price is available. The computed
// fee is authoritative; the auction's stored DepositAmount only gates
// whether a deposit is required at all.
func (service *DepositService) depositFee(ctx context.Context, a *auction.Auction) decimal.Decimal {
	price := a.StartingPrice
	if !price.IsPositive() && service.listings != nil {
		if listing, err := service.listings.GetListing(ctx, a.ItemID); err == nil {
			price = listing.StartingPrice
		}
	}
	if !price.IsPositive() {
		return decimal.NewFromInt(service.cfg.DefaultDepositFee)
	}
	return price.Mul(decimal.NewFromFloat(service.cfg.DepositRate)).Ceil()
}

// walletCall bounds a wallet operation with the configured timeout.
// Refund and deduct paths additionally retry with backoff: these are the
// financial operations where retrying is safer than giving up.
func (service *DepositService) walletCall(ctx context.Context, fn func(ctx context.Context) error, retry bool) error {
	attempts := 1
	if retry && service.cfg.RefundRetryAttempts > 1 {
		attempts = service.cfg.RefundRetryAttempts
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if service.cfg.WalletTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, service.cfg.WalletTimeout)
		}
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}

		var insufficient *shared.InsufficientFundsError
		var notEnough *shared.NotEnoughFrozenError
		if errors.As(err, &insufficient) || errors.As(err, &notEnough) {
			return err
		}

		if attempt < attempts {
			select {
			case <-time.After(service.cfg.RefundRetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

func (service *DepositService) publish(ctx context.Context, event outbound.Event) {
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

// refundIncompleteError reports a refund pass that left rows FROZEN; the
// reconciliation sweep picks them up on its next run
type refundIncompleteError struct {
	auctionID uuid.UUID
	failed    int
}

func (e *refundIncompleteError) Error() string {
	return fmt.Sprintf("refund pass for auction %s left %d deposits frozen", e.auctionID, e.failed)
}
