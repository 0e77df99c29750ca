package application

import (
	"encoding/json"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionStateDTO is the output DTO for exposing auction state to the UI/WS.
// Proxy ceilings and the reserve amount are never part of it.
type AuctionStateDTO struct {
	AuctionID       uuid.UUID        `json:"auction_id"`
	PropertyID      uuid.UUID        `json:"property_id"`
	AuctionType     string           `json:"auction_type"`
	Status          string           `json:"status"`
	PreviewStart    time.Time        `json:"preview_start"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time"`
	CurrentBid      decimal.Decimal  `json:"current_bid"`
	MinimumNextBid  decimal.Decimal  `json:"minimum_next_bid"`
	BidCount        int              `json:"bid_count"`
	ReserveMet      bool             `json:"reserve_met"`
	BuyNowPrice     *decimal.Decimal `json:"buy_now_price,omitempty"`
	BuyNowAvailable bool             `json:"buy_now_available"`
	LeaderID        *uuid.UUID       `json:"leader_id,omitempty"`
	WinnerID        *uuid.UUID       `json:"winner_id,omitempty"`
	CommissionRate  decimal.Decimal  `json:"commission_rate"`
	Commission      decimal.Decimal  `json:"commission"`
	Version         int64            `json:"version"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func ToStateDTO(a *domain.Auction) *AuctionStateDTO {
	dto := &AuctionStateDTO{
		AuctionID:       a.ID,
		PropertyID:      a.PropertyID,
		AuctionType:     string(a.Type),
		Status:          string(a.Status),
		PreviewStart:    a.PreviewStart,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		CurrentBid:      a.CurrentBid,
		MinimumNextBid:  a.MinimumNextBid(),
		BidCount:        a.BidCount,
		ReserveMet:      a.ReserveMet(),
		BuyNowAvailable: a.BuyNowAvailable(),
		CommissionRate:  a.CommissionRate,
		Commission:      a.Commission(),
		Version:         a.Version,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.BuyNowPrice.Valid {
		p := a.BuyNowPrice.Decimal
		dto.BuyNowPrice = &p
	}
	if a.LeaderID.Valid {
		id := a.LeaderID.UUID
		dto.LeaderID = &id
	}
	if a.WinnerID.Valid {
		id := a.WinnerID.UUID
		dto.WinnerID = &id
	}
	return dto
}

type BidDTO struct {
	ID        uuid.UUID       `json:"id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Proxy     bool            `json:"proxy"`
	Seq       int64           `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`
}

func ToBidDTOs(bids []*domain.Bid) []*BidDTO {
	out := make([]*BidDTO, 0, len(bids))
	for _, b := range bids {
		out = append(out, &BidDTO{
			ID:        b.ID,
			BidderID:  b.BidderID,
			Amount:    b.Amount,
			Proxy:     b.Proxy,
			Seq:       b.Seq,
			CreatedAt: b.CreatedAt,
		})
	}
	return out
}

type EventDTO struct {
	ID        uuid.UUID       `json:"id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// publicBidPayload is bid_placed without the proxy ceilings.
type publicBidPayload struct {
	BidID    uuid.UUID       `json:"bid_id"`
	BidderID uuid.UUID       `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
	Proxy    bool            `json:"proxy"`
	EndTime  time.Time       `json:"end_time"`
}

func ToEventDTOs(events []*domain.Event) []*EventDTO {
	out := make([]*EventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, &EventDTO{
			ID:        ev.ID,
			AuctionID: ev.AuctionID,
			Seq:       ev.Seq,
			Type:      string(ev.Type),
			Payload:   publicPayload(ev),
			CreatedAt: ev.CreatedAt,
		})
	}
	return out
}

func publicPayload(ev *domain.Event) json.RawMessage {
	if ev.Type != domain.EventBidPlaced {
		return ev.Payload
	}
	var p domain.BidPlacedPayload
	if err := ev.Decode(&p); err != nil {
		return json.RawMessage(`{}`)
	}
	data, err := json.Marshal(publicBidPayload{
		BidID:    p.BidID,
		BidderID: p.BidderID,
		Amount:   p.Amount,
		Proxy:    p.Proxy,
		EndTime:  p.EndTime,
	})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

// CreateAuctionDTO is the input of the CreateAuction use case.
type CreateAuctionDTO struct {
	PropertyID       uuid.UUID
	AuctionType      domain.AuctionType
	PreviewStart     time.Time
	StartTime        time.Time
	EndTime          time.Time
	TimeExtension    time.Duration
	ReservePrice     decimal.Decimal
	BuyNowPrice      decimal.NullDecimal
	MinIncrement     decimal.Decimal
	IncrementPercent decimal.Decimal
	CommissionRate   decimal.Decimal
}

// PlaceBidDTO is DTO input for PlaceBid useCase, contains the necesary data to make a bid
type PlaceBidDTO struct {
	AuctionID  uuid.UUID
	BidderID   uuid.UUID
	Amount     decimal.Decimal
	AutoBidMax decimal.NullDecimal
}

// PlaceBidResultDTO reports the new state and the bids the request produced.
type PlaceBidResultDTO struct {
	Auction *AuctionStateDTO `json:"auction"`
	Bids    []*BidDTO        `json:"bids"`
	Outbid  bool             `json:"outbid"`
}

type BuyNowDTO struct {
	AuctionID uuid.UUID
	BuyerID   uuid.UUID
}

type CancelAuctionDTO struct {
	AuctionID uuid.UUID
	Reason    string
}
