package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventAuctionCreated EventType = "auction_created"
	EventBidPlaced      EventType = "bid_placed"
	EventStatusChanged  EventType = "status_changed"
	EventBuyNowExecuted EventType = "buy_now_executed"
)

// Event is an append-only entry of the auction audit trail. Seq is assigned by the
// aggregate and is strictly increasing per auction; it is the only ordering key.
type Event struct {
	ID        uuid.UUID
	AuctionID uuid.UUID
	Seq       int64
	Type      EventType
	Payload   json.RawMessage
	CreatedAt time.Time
}

type AuctionCreatedPayload struct {
	PropertyID     uuid.UUID           `json:"property_id"`
	AuctionType    AuctionType         `json:"auction_type"`
	PreviewStart   time.Time           `json:"preview_start"`
	StartTime      time.Time           `json:"start_time"`
	EndTime        time.Time           `json:"end_time"`
	TimeExtension  time.Duration       `json:"time_extension"`
	ReservePrice   decimal.Decimal     `json:"reserve_price"`
	BuyNowPrice    decimal.NullDecimal `json:"buy_now_price"`
	Increment      IncrementPolicy     `json:"increment"`
	CommissionRate decimal.Decimal     `json:"commission_rate"`
}

// BidPlacedPayload records one stored bid. Ceiling is the proxy maximum the bidder
// holds after this bid, which makes the leader state replayable.
type BidPlacedPayload struct {
	BidID      uuid.UUID           `json:"bid_id"`
	BidderID   uuid.UUID           `json:"bidder_id"`
	Amount     decimal.Decimal     `json:"amount"`
	AutoBidMax decimal.NullDecimal `json:"auto_bid_max"`
	Ceiling    decimal.Decimal     `json:"ceiling"`
	Proxy      bool                `json:"proxy"`
	EndTime    time.Time           `json:"end_time"`
}

type StatusChangedPayload struct {
	From     Status        `json:"from"`
	To       Status        `json:"to"`
	Reason   string        `json:"reason,omitempty"`
	WinnerID uuid.NullUUID `json:"winner_id"`
}

type BuyNowExecutedPayload struct {
	BuyerID uuid.UUID       `json:"buyer_id"`
	Price   decimal.Decimal `json:"price"`
}

// Decode unmarshals the payload into dst.
func (e *Event) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

// appendEvent stamps the next sequence number on the auction and builds the event.
func (a *Auction) appendEvent(typ EventType, payload any, now time.Time) *Event {
	data, err := json.Marshal(payload)
	if err != nil {
		// payloads are plain value structs
		panic("auction event payload: " + err.Error())
	}
	a.Version++
	a.UpdatedAt = now
	return &Event{
		ID:        uuid.New(),
		AuctionID: a.ID,
		Seq:       a.Version,
		Type:      typ,
		Payload:   data,
		CreatedAt: now,
	}
}
