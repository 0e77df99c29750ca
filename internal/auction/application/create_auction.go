package application

import (
	"context"
	"fmt"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"go.uber.org/zap"
)

// CreateAuctionUseCase opens a new auction for a property
type CreateAuctionUseCase struct {
	engine *engine
}

func NewCreateAuctionUseCase(e *engine) *CreateAuctionUseCase {
	return &CreateAuctionUseCase{engine: e}
}

func (uc *CreateAuctionUseCase) Execute(ctx context.Context, cmd CreateAuctionDTO) (*AuctionStateDTO, error) {
	e := uc.engine
	ctx, cancel := context.WithTimeout(ctx, e.Options.OperationTimeout)
	defer cancel()

	now := domain.Timestamp(e.Clock())
	preview := cmd.PreviewStart
	if preview.IsZero() {
		preview = now
		if preview.After(cmd.StartTime) {
			preview = cmd.StartTime
		}
	}
	a, created, err := domain.NewAuction(domain.NewAuctionParams{
		PropertyID:    cmd.PropertyID,
		Type:          cmd.AuctionType,
		PreviewStart:  preview,
		StartTime:     cmd.StartTime,
		EndTime:       cmd.EndTime,
		TimeExtension: cmd.TimeExtension,
		ReservePrice:  cmd.ReservePrice,
		BuyNowPrice:   cmd.BuyNowPrice,
		Increment: domain.IncrementPolicy{
			Fixed:   cmd.MinIncrement,
			Percent: cmd.IncrementPercent,
		},
		CommissionRate: cmd.CommissionRate,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("create auction use case: %w", err)
	}
	// an auction created after its start time goes live immediately
	events := append([]*domain.Event{created}, a.Advance(now, e.Options.Settlement)...)

	err = e.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.Auctions.Create(ctx, a); err != nil {
			return err
		}
		return e.Events.Append(ctx, events...)
	})
	if err != nil {
		err = classify(err)
		log.Error("CreateAuctionUseCase: failed to persist auction",
			zap.String("auctionID", a.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create auction use case: %w", err)
	}

	log.Info("Auction created",
		zap.String("auctionID", a.ID.String()),
		zap.String("propertyID", a.PropertyID.String()),
		zap.String("status", string(a.Status)),
		zap.Time("startTime", a.StartTime),
		zap.Time("endTime", a.EndTime),
	)
	e.recordTransitions(events)
	e.notify(ctx, a, events)
	return ToStateDTO(a), nil
}
