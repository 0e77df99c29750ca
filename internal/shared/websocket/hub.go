package websocket

import (
	"context"
	"time"

	"github.com/cristianortiz/propertyauction/internal/shared/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// sendBuffer is the number of outbound messages queued per client.
	sendBuffer = 64

	channelBuffer = 256
)

// Conn is the part of a websocket connection the hub needs.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Hub keeps client's registry and handle messages broadcasting
type Hub struct {
	// Registered clients, grouped by room. For the auction module a room is an
	// auction id.
	clients map[string]map[*Client]bool
	// Outbound messages for a room
	broadcast chan *Message
	// Register requests from the clients.
	register chan *Client
	// Unregister requests from clients.
	unregister chan *Client
	// this channel is listened to by module-specific handlers (e.g, auction handler)
	InboundMessages chan *ClientMessage
	// direct messages for a single client
	unicast chan *unicastMessage
	// count answers room size queries from outside the Run goroutine
	count chan countRequest
}

// Client represents a ws individual connection
type Client struct {
	Hub *Hub
	// The websocket connection.
	Conn Conn
	// Buffered channel of outbound messages.
	Send chan []byte
	// The room this client is connected to.
	Room string
	// Unique identifier for the client
	ID         string
	RemoteAddr string
}

type Message struct {
	Room string
	Data []byte
}

// ClientMessage wraps a message received from a client so module handlers know who
// sent it.
type ClientMessage struct {
	Client *Client
	Data   []byte
}

type unicastMessage struct {
	client *Client
	data   []byte
}

type countRequest struct {
	room  string
	reply chan int
}

func NewHub() *Hub {
	return &Hub{
		broadcast:       make(chan *Message, channelBuffer),
		register:        make(chan *Client, channelBuffer),
		unregister:      make(chan *Client, channelBuffer),
		clients:         make(map[string]map[*Client]bool),
		InboundMessages: make(chan *ClientMessage, channelBuffer),
		unicast:         make(chan *unicastMessage, channelBuffer),
		count:           make(chan countRequest),
	}
}

// NewClient builds a client for conn in room, ready to be registered.
func (h *Hub) NewClient(conn Conn, room, id, remoteAddr string) *Client {
	return &Client{
		Hub:        h,
		Conn:       conn,
		Send:       make(chan []byte, sendBuffer),
		Room:       room,
		ID:         id,
		RemoteAddr: remoteAddr,
	}
}

func (h *Hub) total() int {
	count := 0
	for _, room := range h.clients {
		count += len(room)
	}
	return count
}

// Run starts the hub listening in their channels
func (h *Hub) Run(ctx context.Context) {
	log.Info("Websocket Hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info("WebSocket Hub shutting down due to context cancellation")
			for room, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
				delete(h.clients, room)
			}
			return

		case client := <-h.register:
			if _, ok := h.clients[client.Room]; !ok {
				h.clients[client.Room] = make(map[*Client]bool)
			}
			h.clients[client.Room][client] = true
			log.Info("Client registered",
				zap.String("clientID", client.ID),
				zap.String("room", client.Room),
				zap.String("remote_addr", client.RemoteAddr),
				zap.Int("total_clients", h.total()),
			)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			clients, ok := h.clients[message.Room]
			if !ok {
				continue
			}
			log.Debug("Broadcasting message to room", zap.String("room", message.Room), zap.Int("clients", len(clients)))
			for client := range clients {
				select {
				case client.Send <- message.Data:
				default:
					// slow consumer, drop it
					log.Warn("Failed to Send message to client, unregistering",
						zap.String("clientID", client.ID),
						zap.String("room", client.Room),
						zap.String("remote_addr", client.RemoteAddr),
					)
					h.remove(client)
				}
			}

		case msg := <-h.unicast:
			if !h.clients[msg.client.Room][msg.client] {
				continue
			}
			select {
			case msg.client.Send <- msg.data:
			default:
				log.Warn("Client send channel full, message dropped", zap.String("clientID", msg.client.ID))
			}

		case req := <-h.count:
			req.reply <- len(h.clients[req.room])
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.Room]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	log.Info("Client unregistered",
		zap.String("clientID", client.ID),
		zap.String("room", client.Room),
		zap.String("remote_addr", client.RemoteAddr),
		zap.Int("total_clients", h.total()),
	)
	if len(clients) == 0 {
		delete(h.clients, client.Room)
		log.Debug("Room removed as empty", zap.String("room", client.Room))
	}
}

// RegisterClient register a new client in the hub
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	default:
		log.Error("Register channel is full, client registration failed",
			zap.String("clientID", client.ID),
			zap.String("room", client.Room),
		)
		_ = client.Conn.Close()
	}
}

// UnregisterClient delete a client from the hub
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	default:
		log.Error("Unregister channel is full, client unregistration failed",
			zap.String("clientID", client.ID),
			zap.String("room", client.Room),
		)
	}
}

// Broadcast queues data for every client of room. It never blocks.
func (h *Hub) Broadcast(room string, data []byte) {
	select {
	case h.broadcast <- &Message{Room: room, Data: data}:
	default:
		log.Error("Broadcast channel is full, message dropped", zap.String("room", room))
	}
}

// Clients returns the number of clients in room. It blocks until the hub answers or
// ctx is done.
func (h *Hub) Clients(ctx context.Context, room string) int {
	req := countRequest{room: room, reply: make(chan int, 1)}
	select {
	case h.count <- req:
	case <-ctx.Done():
		return 0
	}
	select {
	case n := <-req.reply:
		return n
	case <-ctx.Done():
		return 0
	}
}

// SendTo queues data for a single registered client. It never blocks.
func (h *Hub) SendTo(client *Client, data []byte) {
	select {
	case h.unicast <- &unicastMessage{client: client, data: data}:
	default:
		log.Error("Unicast channel is full, message dropped", zap.String("clientID", client.ID))
	}
}

// ReadPump forwards client messages to the hub's InboundMessages channel.
// It runs in its own goroutine per client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
		log.Debug("ReadPump stopped for client",
			zap.String("clientID", c.ID),
			zap.String("room", c.Room),
		)
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("WebSocket read error",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
					zap.Error(err),
				)
			} else {
				log.Info("WebSocket connection closed by peer",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
				)
			}
			return
		}
		log.Debug("Received message from client",
			zap.String("clientID", c.ID),
			zap.String("room", c.Room),
			zap.ByteString("message", message),
		)

		select {
		case c.Hub.InboundMessages <- &ClientMessage{Client: c, Data: message}:
		default:
			log.Error("Hub InboundMessages channel is full, dropping message",
				zap.String("clientID", c.ID),
				zap.String("room", c.Room),
			)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection. It is the only
// writer of the connection.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
		log.Debug("WritePump stopped for client",
			zap.String("clientID", c.ID),
			zap.String("room", c.Room),
		)
	}()

	for {
		select {
		case <-ctx.Done():
			err := c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			if err != nil {
				log.Debug("Failed to send close control message", zap.String("clientID", c.ID), zap.Error(err))
			}
			return

		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The Hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one json document per frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error("Failed to write message to client",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Error("Failed to write ping message to client",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
					zap.Error(err),
				)
				return
			}
		}
	}
}
