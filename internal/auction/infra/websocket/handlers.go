package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cristianortiz/propertyauction/internal/auction/application"
	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/cristianortiz/propertyauction/internal/shared/logger"
	"github.com/cristianortiz/propertyauction/internal/shared/websocket"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// recentBids is how many bids the initial state carries.
const recentBids = 20

// AuctionWSHandler handles the ws inbound msgs wich are specific for auction module (remember is a bounded context)
type AuctionWSHandler struct {
	auctionService application.AuctionService // application layer dependency
	hub            *websocket.Hub             // shared hub dependency to send msgs
}

// NewAuctionWSHandler creates a new instance of AuctionWSHandler
func NewAuctionWSHandler(auctionService application.AuctionService, hub *websocket.Hub) *AuctionWSHandler {
	return &AuctionWSHandler{
		auctionService: auctionService,
		hub:            hub,
	}
}

// RegisterRoutes mounts GET /ws/auctions/:id. Connections live until ctx is done or the
// peer goes away.
func (h *AuctionWSHandler) RegisterRoutes(ctx context.Context, app fiber.Router) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/auctions/:id", fiberws.New(func(conn *fiberws.Conn) {
		h.serve(ctx, conn, conn.Params("id"), conn.RemoteAddr().String())
	}))
}

// serve runs one connection: initial state, then the read and write pumps.
func (h *AuctionWSHandler) serve(ctx context.Context, conn websocket.Conn, rawID, remoteAddr string) {
	auctionID, err := uuid.Parse(rawID)
	if err != nil {
		h.reject(conn, errors.New("invalid auction id"))
		return
	}
	state, err := h.auctionService.GetAuction(ctx, auctionID)
	if err != nil {
		h.reject(conn, err)
		return
	}
	initial, err := h.initialState(ctx, state)
	if err != nil {
		h.reject(conn, err)
		return
	}

	client := h.hub.NewClient(conn, auctionID.String(), uuid.NewString(), remoteAddr)
	// queued before registration so it is the first frame the client sees
	client.Send <- initial
	h.hub.RegisterClient(client)

	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

func (h *AuctionWSHandler) initialState(ctx context.Context, state *application.AuctionStateDTO) ([]byte, error) {
	bids, err := h.auctionService.ListBids(ctx, state.AuctionID)
	if err != nil {
		return nil, err
	}
	if len(bids) > recentBids {
		bids = bids[len(bids)-recentBids:]
	}
	msg := ServerInitialStateMessage{BaseMessage: BaseMessage{Type: MessageTypeServerInitialState}}
	msg.Payload.Auction = state
	msg.Payload.RecentBids = bids
	return json.Marshal(msg)
}

func (h *AuctionWSHandler) reject(conn websocket.Conn, err error) {
	if data, merr := encodeError(err); merr == nil {
		_ = conn.WriteMessage(fiberws.TextMessage, data)
	}
	_ = conn.Close()
}

// ListenForMessages starts a go routine that listen the Hub inbound channel for messages and proccess every one of them
func (h *AuctionWSHandler) ListenForMessages(ctx context.Context) {
	log.Info("AuctionWSHandler started listening for inbound messages from hub")
	for {
		select {
		case <-ctx.Done():
			log.Info("AuctionWSHandler stopped listening for inbound messages from hub")
			return
		case msg := <-h.hub.InboundMessages:
			go h.processMessage(ctx, msg.Client, msg.Data)
		}
	}
}

// processMessage dispatch the message by this type
func (h *AuctionWSHandler) processMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		h.sendErrorToClient(client, errors.New("invalid message format"))
		return
	}
	switch baseMsg.Type {
	case MessageTypeClientBid:
		h.handleClientBidMessage(ctx, client, data)
	case MessageTypeClientBuyNow:
		h.handleClientBuyNowMessage(ctx, client, data)
	default:
		h.sendErrorToClient(client, errors.New("unknown message type"))
	}
}

func (h *AuctionWSHandler) handleClientBidMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var bidMsg ClientBidMessage
	if err := json.Unmarshal(data, &bidMsg); err != nil {
		h.sendErrorToClient(client, errors.New("invalid bid message format"))
		return
	}
	if bidMsg.Payload.AuctionID.String() != client.Room {
		h.sendErrorToClient(client, errors.New("auction ID mismatch"))
		return
	}

	res, err := h.auctionService.PlaceBid(ctx, application.PlaceBidDTO{
		AuctionID:  bidMsg.Payload.AuctionID,
		BidderID:   bidMsg.Payload.BidderID,
		Amount:     bidMsg.Payload.Amount,
		AutoBidMax: bidMsg.Payload.AutoBidMax,
	})
	if err != nil {
		h.sendErrorToClient(client, err)
		return
	}
	// the room gets the update through the notifier, the sender also gets its result
	reply, err := json.Marshal(ServerBidResultMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerBidResult},
		Payload:     res,
	})
	if err != nil {
		log.Error("failed to marshal ServerBidResultMessage", zap.Error(err))
		return
	}
	h.hub.SendTo(client, reply)
}

func (h *AuctionWSHandler) handleClientBuyNowMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var msg ClientBuyNowMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendErrorToClient(client, errors.New("invalid buy-now message format"))
		return
	}
	if msg.Payload.AuctionID.String() != client.Room {
		h.sendErrorToClient(client, errors.New("auction ID mismatch"))
		return
	}
	if _, err := h.auctionService.BuyNow(ctx, application.BuyNowDTO{
		AuctionID: msg.Payload.AuctionID,
		BuyerID:   msg.Payload.BuyerID,
	}); err != nil {
		h.sendErrorToClient(client, err)
	}
}

// sendErrorToClient serializes and sends an error msg to a specific client
func (h *AuctionWSHandler) sendErrorToClient(client *websocket.Client, cause error) {
	data, err := encodeError(cause)
	if err != nil {
		log.Error("failed to marshal ServerErrorMessage", zap.Error(err))
		return
	}
	h.hub.SendTo(client, data)
}

func encodeError(cause error) ([]byte, error) {
	errMsg := ServerErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeServerError}}
	errMsg.Payload.Code = application.Reason(cause)
	errMsg.Payload.Error = cause.Error()
	errMsg.Payload.Retryable = domain.Retryable(cause)
	return json.Marshal(errMsg)
}
