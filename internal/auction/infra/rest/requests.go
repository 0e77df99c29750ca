package rest

import (
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/application"
	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type createAuctionRequest struct {
	PropertyID           string              `json:"property_id" validate:"required,uuid"`
	AuctionType          string              `json:"auction_type" validate:"omitempty,oneof=timed live"`
	PreviewStart         time.Time           `json:"preview_start"`
	StartTime            time.Time           `json:"start_time" validate:"required"`
	EndTime              time.Time           `json:"end_time" validate:"required"`
	TimeExtensionSeconds int                 `json:"time_extension_seconds" validate:"gte=0"`
	ReservePrice         decimal.Decimal     `json:"reserve_price"`
	BuyNowPrice          decimal.NullDecimal `json:"buy_now_price"`
	MinIncrement         decimal.Decimal     `json:"min_increment"`
	IncrementPercent     decimal.Decimal     `json:"increment_percent"`
	CommissionRate       decimal.Decimal     `json:"commission_rate"`
}

func (r createAuctionRequest) toDTO() application.CreateAuctionDTO {
	typ := domain.AuctionTypeTimed
	if r.AuctionType != "" {
		typ = domain.AuctionType(r.AuctionType)
	}
	return application.CreateAuctionDTO{
		PropertyID:       uuid.MustParse(r.PropertyID),
		AuctionType:      typ,
		PreviewStart:     r.PreviewStart,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		TimeExtension:    time.Duration(r.TimeExtensionSeconds) * time.Second,
		ReservePrice:     r.ReservePrice,
		BuyNowPrice:      r.BuyNowPrice,
		MinIncrement:     r.MinIncrement,
		IncrementPercent: r.IncrementPercent,
		CommissionRate:   r.CommissionRate,
	}
}

type placeBidRequest struct {
	BidderID   string              `json:"bidder_id" validate:"required,uuid"`
	Amount     decimal.Decimal     `json:"amount"`
	AutoBidMax decimal.NullDecimal `json:"auto_bid_max"`
}

type buyNowRequest struct {
	BuyerID string `json:"buyer_id" validate:"required,uuid"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}
