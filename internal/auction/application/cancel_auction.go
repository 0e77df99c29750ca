package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
)

// CancelAuctionUseCase is the administrative cancellation of a non terminal auction
type CancelAuctionUseCase struct {
	engine *engine
}

func NewCancelAuctionUseCase(e *engine) *CancelAuctionUseCase {
	return &CancelAuctionUseCase{engine: e}
}

func (uc *CancelAuctionUseCase) Execute(ctx context.Context, cmd CancelAuctionDTO) (*AuctionStateDTO, error) {
	e := uc.engine
	a, _, err := e.mutate(ctx, "cancel", cmd.AuctionID, e.Clock, func(a *domain.Auction, now time.Time) (*change, error) {
		transitions := a.Advance(now, e.Options.Settlement)
		ev, err := a.Cancel(cmd.Reason, now)
		if err != nil {
			return &change{events: transitions}, err
		}
		return &change{events: append(transitions, ev)}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel auction use case: auction %s: %w", cmd.AuctionID, err)
	}
	return ToStateDTO(a), nil
}
