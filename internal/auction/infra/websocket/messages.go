package websocket

import (
	"github.com/cristianortiz/propertyauction/internal/auction/application"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MessageType defines ws type message
type MessageType string

const (
	MessageTypeClientBid          MessageType = "client_bid"            // client msg to make a bid
	MessageTypeClientBuyNow       MessageType = "client_buy_now"        // client msg to buy at the buy-now price
	MessageTypeServerUpdate       MessageType = "server_auction_update" // server msg with committed changes
	MessageTypeServerError        MessageType = "server_error"          // server msg indicating error
	MessageTypeServerBidResult    MessageType = "server_bid_result"     // server msg answering a client_bid
	MessageTypeServerInitialState MessageType = "server_initial_state"  // server msg with auction state on connect
)

// BaseMessage is base struct for all the WS messages, includes a Type field for identify the message type
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// ClientBidMessage is DTO for a bid message sended by the client
type ClientBidMessage struct {
	BaseMessage
	Payload struct {
		AuctionID  uuid.UUID           `json:"auction_id"`
		BidderID   uuid.UUID           `json:"bidder_id"`
		Amount     decimal.Decimal     `json:"amount"`
		AutoBidMax decimal.NullDecimal `json:"auto_bid_max"`
	} `json:"payload"`
}

type ClientBuyNowMessage struct {
	BaseMessage
	Payload struct {
		AuctionID uuid.UUID `json:"auction_id"`
		BuyerID   uuid.UUID `json:"buyer_id"`
	} `json:"payload"`
}

// ServerUpdateMessage carries the state after a commit and the events it produced
type ServerUpdateMessage struct {
	BaseMessage
	Payload struct {
		Auction *application.AuctionStateDTO `json:"auction"`
		Events  []*application.EventDTO      `json:"events"`
	} `json:"payload"`
}

type ServerBidResultMessage struct {
	BaseMessage
	Payload *application.PlaceBidResultDTO `json:"payload"`
}

type ServerErrorMessage struct {
	BaseMessage
	Payload struct {
		Code      string `json:"code"`
		Error     string `json:"error"`
		Retryable bool   `json:"retryable"`
	} `json:"payload"`
}

type ServerInitialStateMessage struct {
	BaseMessage
	Payload struct {
		Auction    *application.AuctionStateDTO `json:"auction"`
		RecentBids []*application.BidDTO        `json:"recent_bids,omitempty"`
	} `json:"payload"`
}
