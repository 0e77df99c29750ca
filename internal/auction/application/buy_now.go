package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"go.uber.org/zap"
)

// BuyNowUseCase sells a live auction at its buy-now price
type BuyNowUseCase struct {
	engine *engine
}

func NewBuyNowUseCase(e *engine) *BuyNowUseCase {
	return &BuyNowUseCase{engine: e}
}

func (uc *BuyNowUseCase) Execute(ctx context.Context, cmd BuyNowDTO) (*AuctionStateDTO, error) {
	log.Info("Executing BuyNowUseCase",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("buyerID", cmd.BuyerID.String()),
	)
	e := uc.engine
	if err := e.verifyBidder(ctx, cmd.BuyerID); err != nil {
		return nil, fmt.Errorf("buy now use case: %w", err)
	}

	a, _, err := e.mutate(ctx, "buy_now", cmd.AuctionID, e.Clock, func(a *domain.Auction, now time.Time) (*change, error) {
		transitions := a.Advance(now, e.Options.Settlement)
		ev, err := a.BuyNow(cmd.BuyerID, now)
		if err != nil {
			return &change{events: transitions}, err
		}
		return &change{events: append(transitions, ev)}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("buy now use case: auction %s: %w", cmd.AuctionID, err)
	}
	if e.Metrics != nil {
		e.Metrics.BuyNowExecuted.Inc()
	}
	return ToStateDTO(a), nil
}
