package application

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuctionService defines application interface layer of auction module
// exposes uses cases to external layer, aka infra
type AuctionService interface {
	CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*AuctionStateDTO, error)
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionStateDTO, error)
	// PlaceBid handles logic when a user makes a bid in an auction, including the
	// proxy bids it triggers
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResultDTO, error)
	BuyNow(ctx context.Context, cmd BuyNowDTO) (*AuctionStateDTO, error)
	CancelAuction(ctx context.Context, cmd CancelAuctionDTO) (*AuctionStateDTO, error)
	ListEvents(ctx context.Context, auctionID uuid.UUID) ([]*EventDTO, error)
	ListBids(ctx context.Context, auctionID uuid.UUID) ([]*BidDTO, error)
	// Tick evaluates time transitions of every open auction at now
	Tick(ctx context.Context, now time.Time) (*TickResult, error)
}

// concret implementation of AuctionService (struct)
type auctionService struct {
	createUC  *CreateAuctionUseCase
	getUC     *GetAuctionUseCase
	placeBid  *PlaceBidUseCase
	buyNowUC  *BuyNowUseCase
	cancelUC  *CancelAuctionUseCase
	historyUC *ListHistoryUseCase
	tickUC    *TickUseCase
}

func NewAuctionService(deps Dependencies) AuctionService {
	e := newEngine(deps)
	return &auctionService{
		createUC:  NewCreateAuctionUseCase(e),
		getUC:     NewGetAuctionUseCase(e),
		placeBid:  NewPlaceBidUseCase(e),
		buyNowUC:  NewBuyNowUseCase(e),
		cancelUC:  NewCancelAuctionUseCase(e),
		historyUC: NewListHistoryUseCase(e),
		tickUC:    NewTickUseCase(e),
	}
}

func (as *auctionService) CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*AuctionStateDTO, error) {
	return as.createUC.Execute(ctx, cmd)
}

func (as *auctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionStateDTO, error) {
	return as.getUC.Execute(ctx, auctionID)
}

// PlaceBid implements AuctionService.
func (as *auctionService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResultDTO, error) {
	return as.placeBid.Execute(ctx, cmd)
}

func (as *auctionService) BuyNow(ctx context.Context, cmd BuyNowDTO) (*AuctionStateDTO, error) {
	return as.buyNowUC.Execute(ctx, cmd)
}

func (as *auctionService) CancelAuction(ctx context.Context, cmd CancelAuctionDTO) (*AuctionStateDTO, error) {
	return as.cancelUC.Execute(ctx, cmd)
}

func (as *auctionService) ListEvents(ctx context.Context, auctionID uuid.UUID) ([]*EventDTO, error) {
	return as.historyUC.Events(ctx, auctionID)
}

func (as *auctionService) ListBids(ctx context.Context, auctionID uuid.UUID) ([]*BidDTO, error) {
	return as.historyUC.Bids(ctx, auctionID)
}

func (as *auctionService) Tick(ctx context.Context, now time.Time) (*TickResult, error) {
	return as.tickUC.Execute(ctx, now)
}
