package websocket

import (
	"context"
	"encoding/json"

	"github.com/cristianortiz/propertyauction/internal/auction/application"
	"github.com/cristianortiz/propertyauction/internal/shared/websocket"
	"go.uber.org/zap"
)

// HubNotifier pushes committed auction changes to the clients connected to this instance.
type HubNotifier struct {
	hub *websocket.Hub
}

func NewHubNotifier(hub *websocket.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// EncodeUpdate builds the server_auction_update frame for a committed change.
func EncodeUpdate(state *application.AuctionStateDTO, events []*application.EventDTO) ([]byte, error) {
	msg := ServerUpdateMessage{BaseMessage: BaseMessage{Type: MessageTypeServerUpdate}}
	msg.Payload.Auction = state
	msg.Payload.Events = events
	return json.Marshal(msg)
}

// AuctionChanged implements application.Notifier.
func (n *HubNotifier) AuctionChanged(_ context.Context, state *application.AuctionStateDTO, events []*application.EventDTO) {
	data, err := EncodeUpdate(state, events)
	if err != nil {
		log.Error("failed to marshal auction update",
			zap.String("auctionID", state.AuctionID.String()),
			zap.Error(err),
		)
		return
	}
	n.Broadcast(state.AuctionID.String(), data)
}

// Broadcast forwards an encoded update to the room of auctionID.
func (n *HubNotifier) Broadcast(auctionID string, data []byte) {
	n.hub.Broadcast(auctionID, data)
}
