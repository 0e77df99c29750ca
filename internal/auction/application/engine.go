package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/cristianortiz/propertyauction/internal/shared/logger"
	"github.com/cristianortiz/propertyauction/internal/shared/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Locker serialises mutations of one auction across goroutines (and instances, for
// distributed implementations).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Notifier is told about committed changes, e.g. to push them to connected clients.
// It must not block.
type Notifier interface {
	AuctionChanged(ctx context.Context, state *AuctionStateDTO, events []*EventDTO)
}

// BidderVerifier checks the identity behind a bidder id.
type BidderVerifier interface {
	BidderExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Options struct {
	Settlement       domain.SettlementPolicy
	OperationTimeout time.Duration
	SweepConcurrency int
}

// Dependencies are the collaborators injected into the auction service. Notifier and
// Verifier are optional.
type Dependencies struct {
	Auctions domain.AuctionRepository
	Bids     domain.BidRepository
	Events   domain.EventRepository
	Tx       domain.TxManager
	Locker   Locker
	Notifier Notifier
	Verifier BidderVerifier
	Metrics  *metrics.Metrics
	Clock    func() time.Time
	Options  Options
}

// change is what a mutation produced and must be persisted with the auction.
type change struct {
	bids   []*domain.Bid
	events []*domain.Event
}

// engine holds the shared execution discipline of every mutating use case:
// lock(auction) -> tx -> load for update -> domain op -> persist -> commit -> notify.
type engine struct {
	Dependencies
}

func newEngine(deps Dependencies) *engine {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Options.Settlement == "" {
		deps.Options.Settlement = domain.SettleAsSold
	}
	if deps.Options.OperationTimeout <= 0 {
		deps.Options.OperationTimeout = 5 * time.Second
	}
	if deps.Options.SweepConcurrency <= 0 {
		deps.Options.SweepConcurrency = 1
	}
	return &engine{Dependencies: deps}
}

// mutate applies fn to the auction under its lock. A domain rejection returned by fn
// does not discard the change it returns alongside (time transitions evaluated before
// the rejection are still committed).
func (e *engine) mutate(ctx context.Context, op string, id uuid.UUID, now func() time.Time,
	fn func(a *domain.Auction, now time.Time) (*change, error)) (*domain.Auction, []*domain.Event, error) {

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.Options.OperationTimeout)
	defer cancel()

	unlock, err := e.Locker.Lock(ctx, id.String())
	if err != nil {
		err = classify(fmt.Errorf("acquiring lock for auction %s: %w", id, err))
		e.observe(op, start, err)
		return nil, nil, err
	}
	defer unlock()

	var (
		result    *domain.Auction
		committed []*domain.Event
		opErr     error
	)
	err = e.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := e.Auctions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		expected := a.Version

		var ch *change
		ch, opErr = fn(a, domain.Timestamp(now()))
		if ch == nil || len(ch.events) == 0 {
			result = a
			return nil
		}
		if err := e.Auctions.Update(ctx, a, expected); err != nil {
			return err
		}
		if err := e.Bids.Save(ctx, ch.bids...); err != nil {
			return err
		}
		if err := e.Events.Append(ctx, ch.events...); err != nil {
			return err
		}
		result = a
		committed = ch.events
		return nil
	})
	if err != nil {
		err = classify(err)
		if !errors.Is(err, domain.ErrAuctionNotFound) {
			log.Error("Auction mutation failed",
				zap.String("operation", op),
				zap.String("auctionID", id.String()),
				zap.Error(err),
			)
		}
		e.observe(op, start, err)
		return nil, nil, err
	}

	e.recordTransitions(committed)
	e.observe(op, start, opErr)
	if len(committed) > 0 {
		e.notify(ctx, result, committed)
	}
	return result, committed, opErr
}

func (e *engine) notify(ctx context.Context, a *domain.Auction, events []*domain.Event) {
	if e.Notifier == nil {
		return
	}
	e.Notifier.AuctionChanged(context.WithoutCancel(ctx), ToStateDTO(a), ToEventDTOs(events))
}

func (e *engine) observe(op string, start time.Time, err error) {
	if e.Metrics == nil {
		return
	}
	e.Metrics.OperationDuration.WithLabelValues(op, reason(err)).Observe(time.Since(start).Seconds())
}

func (e *engine) recordTransitions(events []*domain.Event) {
	if e.Metrics == nil {
		return
	}
	for _, ev := range events {
		switch ev.Type {
		case domain.EventStatusChanged:
			var p domain.StatusChangedPayload
			if err := ev.Decode(&p); err == nil {
				e.Metrics.StatusTransitions.WithLabelValues(string(p.From), string(p.To)).Inc()
			}
		case domain.EventBuyNowExecuted:
			e.Metrics.StatusTransitions.WithLabelValues(string(domain.StatusLive), string(domain.StatusSold)).Inc()
		}
	}
}

// verifyBidder rejects ids unknown to the identity collaborator.
func (e *engine) verifyBidder(ctx context.Context, id uuid.UUID) error {
	if e.Verifier == nil || id == uuid.Nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.Options.OperationTimeout)
	defer cancel()
	ok, err := e.Verifier.BidderExists(ctx, id)
	if err != nil {
		return classify(fmt.Errorf("verifying bidder %s: %w", id, err))
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownBidder, id)
	}
	return nil
}

// classify maps deadline errors to domain.ErrTimeout, keeping the cause.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}

// reason is a short label for metrics and transport error codes.
func reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrBidTooLow):
		return "too_low"
	case errors.Is(err, domain.ErrAuctionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrUnknownBidder):
		return "unknown_bidder"
	case errors.Is(err, domain.ErrInvalidBid), errors.Is(err, domain.ErrInvalidAuction):
		return "invalid"
	default:
		return "error"
	}
}

// Reason exposes the error label used by transports.
func Reason(err error) string {
	return reason(err)
}
