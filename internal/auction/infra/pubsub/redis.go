package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/application"
	"github.com/cristianortiz/propertyauction/internal/shared/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	publishTimeout = 2 * time.Second
	queueSize      = 1024
)

// Envelope is what travels on the redis channel: the encoded frame for the room of
// AuctionID.
type Envelope struct {
	AuctionID string          `json:"auction_id"`
	Data      json.RawMessage `json:"data"`
}

// Encoder turns a committed change into the frame delivered to clients.
type Encoder func(state *application.AuctionStateDTO, events []*application.EventDTO) ([]byte, error)

// Broadcaster delivers an encoded frame to the local clients of an auction.
type Broadcaster interface {
	Broadcast(auctionID string, data []byte)
}

// Publisher implements application.Notifier by publishing changes on a redis channel,
// so every instance running a Relay can push them to its own clients.
type Publisher struct {
	client  *redis.Client
	channel string
	encode  Encoder
	queue   chan *Envelope
}

func NewPublisher(client *redis.Client, channel string, encode Encoder) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		encode:  encode,
		queue:   make(chan *Envelope, queueSize),
	}
}

// AuctionChanged implements application.Notifier. It only enqueues; Run publishes.
func (p *Publisher) AuctionChanged(_ context.Context, state *application.AuctionStateDTO, events []*application.EventDTO) {
	data, err := p.encode(state, events)
	if err != nil {
		log.Error("Publisher: failed to encode auction update",
			zap.String("auctionID", state.AuctionID.String()),
			zap.Error(err),
		)
		return
	}
	select {
	case p.queue <- &Envelope{AuctionID: state.AuctionID.String(), Data: data}:
	default:
		log.Error("Publisher: queue full, update dropped", zap.String("auctionID", state.AuctionID.String()))
	}
}

// Run publishes queued updates until ctx is done, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) {
	log.Info("Redis publisher started", zap.String("channel", p.channel))
	for {
		select {
		case env := <-p.queue:
			p.publish(ctx, env)
		case <-ctx.Done():
			for {
				select {
				case env := <-p.queue:
					p.publish(context.WithoutCancel(ctx), env)
				default:
					log.Info("Redis publisher stopped")
					return
				}
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env *Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Error("Publisher: failed to marshal envelope", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		log.Error("Publisher: redis publish failed",
			zap.String("auctionID", env.AuctionID),
			zap.Error(err),
		)
	}
}

// Relay forwards updates published by any instance to the local clients.
type Relay struct {
	client  *redis.Client
	channel string
	out     Broadcaster
}

func NewRelay(client *redis.Client, channel string, out Broadcaster) *Relay {
	return &Relay{client: client, channel: channel, out: out}
}

// Run subscribes and forwards until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Info("Redis relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info("Redis relay stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn("Relay: discarding malformed message", zap.Error(err))
				continue
			}
			r.out.Broadcast(env.AuctionID, env.Data)
		}
	}
}
