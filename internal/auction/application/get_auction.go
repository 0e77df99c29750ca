package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// GetAuctionUseCase retrieves the current state of an auction
type GetAuctionUseCase struct {
	engine *engine
}

func NewGetAuctionUseCase(e *engine) *GetAuctionUseCase {
	return &GetAuctionUseCase{engine: e}
}

func (uc *GetAuctionUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*AuctionStateDTO, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.engine.Options.OperationTimeout)
	defer cancel()

	a, err := uc.engine.Auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("get auction use case: %w", classify(err))
	}
	return ToStateDTO(a), nil
}

// ListHistoryUseCase reads the bid history and the event log of an auction
type ListHistoryUseCase struct {
	engine *engine
}

func NewListHistoryUseCase(e *engine) *ListHistoryUseCase {
	return &ListHistoryUseCase{engine: e}
}

// Events returns the audit trail ordered by sequence number.
func (uc *ListHistoryUseCase) Events(ctx context.Context, auctionID uuid.UUID) ([]*EventDTO, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.engine.Options.OperationTimeout)
	defer cancel()

	if _, err := uc.engine.Auctions.GetByID(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("list events use case: %w", classify(err))
	}
	events, err := uc.engine.Events.GetEventsByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list events use case: %w", classify(err))
	}
	return ToEventDTOs(events), nil
}

// Bids returns the accepted bids ordered by sequence number.
func (uc *ListHistoryUseCase) Bids(ctx context.Context, auctionID uuid.UUID) ([]*BidDTO, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.engine.Options.OperationTimeout)
	defer cancel()

	if _, err := uc.engine.Auctions.GetByID(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("list bids use case: %w", classify(err))
	}
	bids, err := uc.engine.Bids.GetBidsByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list bids use case: %w", classify(err))
	}
	return ToBidDTOs(bids), nil
}
