package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gavel-auction-service/internal/domain/auction"
	"gavel-auction-service/internal/domain/deposit"
	"gavel-auction-service/internal/domain/shared"
	"gavel-auction-service/internal/ports/inbound"
	"gavel-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBidAttempts bounds the reload-and-retry loop when concurrent bidders
// race on the same auction version
const maxBidAttempts = 5

// BidService implements the bid admission use cases
type BidService struct {
	auctionRepo outbound.AuctionRepository
	depositRepo outbound.DepositRepository
	notifier    outbound.Notifier
	logger      zerolog.Logger
}

type BidServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	DepositRepo outbound.DepositRepository
	Notifier    outbound.Notifier
	Logger      zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	return &BidService{
		auctionRepo: params.AuctionRepo,
		depositRepo: params.DepositRepo,
		notifier:    params.Notifier,
		logger:      params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// PlaceBid validates and appends a bid to an active auction. The append
// is conditioned on an unchanged aggregate version, so two concurrent
// bids can never both be admitted against the same highest price; on a
// version conflict the admission checks rerun against fresh state.
func (service *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*auction.Bid, error) {
	service.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("bidder_id", req.BidderID.String()).
		Str("price", req.Price.String()).
		Msg("Attempting to place bid")

	if !req.Price.IsPositive() {
		return nil, &shared.ValidationError{Field: "price", Reason: "must be greater than 0"}
	}

	for attempt := 1; attempt <= maxBidAttempts; attempt++ {
		a, err := service.auctionRepo.GetByID(ctx, req.AuctionID)
		if err != nil {
			return nil, err
		}

		if !a.IsActive() {
			return nil, &shared.InvalidStateError{Op: "bid", State: string(a.Status)}
		}

		now := time.Now()
		if !a.InBidWindow(now) {
			return nil, &shared.OutOfWindowError{StartAt: a.StartAt, EndAt: a.EndAt}
		}

		if a.DepositRequired() {
			dep, err := service.depositRepo.GetByAuctionAndUser(ctx, req.AuctionID, req.BidderID)
			var notFound *shared.NotFoundError
			if errors.As(err, &notFound) || (err == nil && dep.Status != deposit.StatusFrozen) {
				return nil, &shared.DepositRequiredError{RequiredAmount: a.DepositAmount}
			}
			if err != nil {
				return nil, err
			}
		}

		highest := a.HighestPrice()
		if !req.Price.GreaterThan(highest) {
			service.logger.Warn().
				Str("auction_id", req.AuctionID.String()).
				Str("current_highest", highest.String()).
				Str("price", req.Price.String()).
				Msg("Bid too low")
			return nil, &shared.BidTooLowError{CurrentHighest: highest}
		}

		b := auction.Bid{BidderID: req.BidderID, Price: req.Price, PlacedAt: now}
		err = service.auctionRepo.AppendBid(ctx, a.ID, b, a.Version)
		if errors.Is(err, shared.ErrVersionConflict) {
			service.logger.Debug().
				Str("auction_id", req.AuctionID.String()).
				Int("attempt", attempt).
				Msg("Bid append lost a version race, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		service.notifyOutbid(ctx, a, b)

		service.logger.Info().
			Str("auction_id", a.ID.String()).
			Str("bidder_id", b.BidderID.String()).
			Str("price", b.Price.String()).
			Msg("Bid placed")
		return &b, nil
	}

	return nil, fmt.Errorf("bid on auction %s not placed after %d attempts: %w", req.AuctionID, maxBidAttempts, shared.ErrVersionConflict)
}

// GetBids retrieves the bid list for an auction
func (service *BidService) GetBids(ctx context.Context, auctionID uuid.UUID) ([]auction.Bid, error) {
	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return a.Bids, nil
}

// GetHighestBid retrieves the current highest bid for an auction
func (service *BidService) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*auction.Bid, error) {
	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	highest := a.HighestBid()
	if highest == nil {
		return nil, shared.ErrNoBidsFound
	}
	return highest, nil
}

// notifyOutbid tells the previously highest bidder they were overtaken
func (service *BidService) notifyOutbid(ctx context.Context, a *auction.Auction, newBid auction.Bid) {
	if service.notifier == nil {
		return
	}

	previous := a.HighestBid()
	if previous == nil || previous.BidderID == newBid.BidderID {
		return
	}

	event := outbound.Event{
		AuctionID:       a.ID,
		Type:            outbound.EventTypeBidPlaced,
		RecipientUserID: previous.BidderID,
		Payload: map[string]interface{}{
			"price": newBid.Price.String(),
		},
		Timestamp: newBid.PlacedAt.Unix(),
	}
	if err := service.notifier.Publish(ctx, event); err != nil {
		service.logger.Warn().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to publish outbid event")
	}
}
