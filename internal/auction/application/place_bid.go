package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"go.uber.org/zap"
)

// PlaceBidUseCase is useCase to make a bid in an auction, orchestrate bussines logic and persistence
type PlaceBidUseCase struct {
	engine *engine
}

func NewPlaceBidUseCase(e *engine) *PlaceBidUseCase {
	return &PlaceBidUseCase{engine: e}
}

func (uc *PlaceBidUseCase) Execute(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResultDTO, error) {
	log.Info("Executing PlaceBidUseCase",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("bidderID", cmd.BidderID.String()),
		zap.String("amount", cmd.Amount.String()),
		zap.Bool("autoBid", cmd.AutoBidMax.Valid),
	)
	e := uc.engine

	if err := e.verifyBidder(ctx, cmd.BidderID); err != nil {
		e.rejected(err)
		return nil, fmt.Errorf("place bid use case: %w", err)
	}

	req := domain.BidRequest{
		BidderID:   cmd.BidderID,
		Amount:     cmd.Amount,
		AutoBidMax: cmd.AutoBidMax,
	}
	var outcome *domain.BidOutcome
	a, _, err := e.mutate(ctx, "place_bid", cmd.AuctionID, e.Clock, func(a *domain.Auction, now time.Time) (*change, error) {
		// time transitions first, so a bid after end time sees the closed auction
		transitions := a.Advance(now, e.Options.Settlement)
		out, err := a.PlaceBid(req, now)
		if err != nil {
			return &change{events: transitions}, err
		}
		outcome = out
		return &change{bids: out.Bids, events: append(transitions, out.Events...)}, nil
	})
	if err != nil {
		e.rejected(err)
		return nil, fmt.Errorf("place bid use case: bid failed for auction %s: %w", cmd.AuctionID, err)
	}

	if e.Metrics != nil {
		e.Metrics.BidsAccepted.Add(float64(len(outcome.Bids)))
		for _, b := range outcome.Bids {
			if b.Proxy {
				e.Metrics.ProxyBids.Inc()
			}
		}
	}
	return &PlaceBidResultDTO{
		Auction: ToStateDTO(a),
		Bids:    ToBidDTOs(outcome.Bids),
		Outbid:  outcome.Outbid,
	}, nil
}

func (e *engine) rejected(err error) {
	if e.Metrics != nil {
		e.Metrics.BidsRejected.WithLabelValues(reason(err)).Inc()
	}
}
