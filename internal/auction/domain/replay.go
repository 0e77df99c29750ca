package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Replay rebuilds an auction from its event log. The log must be complete and
// ordered by Seq starting with auction_created.
func Replay(events []*Event) (*Auction, error) {
	if len(events) == 0 || events[0].Type != EventAuctionCreated {
		return nil, fmt.Errorf("%w: log must start with %s", ErrCorruptEventLog, EventAuctionCreated)
	}
	var a *Auction
	for _, ev := range events {
		if a != nil {
			if ev.AuctionID != a.ID {
				return nil, fmt.Errorf("%w: event %d belongs to auction %s", ErrCorruptEventLog, ev.Seq, ev.AuctionID)
			}
			if ev.Seq != a.Version+1 {
				return nil, fmt.Errorf("%w: expected seq %d, got %d", ErrCorruptEventLog, a.Version+1, ev.Seq)
			}
		}
		var err error
		if a, err = apply(a, ev); err != nil {
			return nil, err
		}
		a.Version = ev.Seq
		a.UpdatedAt = ev.CreatedAt
	}
	return a, nil
}

func apply(a *Auction, ev *Event) (*Auction, error) {
	switch ev.Type {
	case EventAuctionCreated:
		if a != nil || ev.Seq != 1 {
			return nil, fmt.Errorf("%w: unexpected %s at seq %d", ErrCorruptEventLog, ev.Type, ev.Seq)
		}
		var p AuctionCreatedPayload
		if err := ev.Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptEventLog, err)
		}
		return &Auction{
			ID:             ev.AuctionID,
			PropertyID:     p.PropertyID,
			Type:           p.AuctionType,
			PreviewStart:   p.PreviewStart,
			StartTime:      p.StartTime,
			EndTime:        p.EndTime,
			TimeExtension:  p.TimeExtension,
			ReservePrice:   p.ReservePrice,
			BuyNowPrice:    p.BuyNowPrice,
			Increment:      p.Increment,
			CommissionRate: p.CommissionRate,
			CurrentBid:     decimal.Zero,
			LeaderMax:      decimal.Zero,
			Status:         StatusPreview,
			CreatedAt:      ev.CreatedAt,
		}, nil

	case EventBidPlaced:
		var p BidPlacedPayload
		if err := ev.Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptEventLog, err)
		}
		if a.Status != StatusLive {
			return nil, fmt.Errorf("%w: bid at seq %d while %s", ErrCorruptEventLog, ev.Seq, a.Status)
		}
		a.CurrentBid = p.Amount
		a.BidCount++
		a.LeaderID = uuid.NullUUID{UUID: p.BidderID, Valid: true}
		a.LeaderMax = p.Ceiling
		a.EndTime = p.EndTime

	case EventStatusChanged:
		var p StatusChangedPayload
		if err := ev.Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptEventLog, err)
		}
		if p.From != a.Status || !CanTransition(p.From, p.To) {
			return nil, fmt.Errorf("%w: illegal transition %s -> %s at seq %d", ErrCorruptEventLog, p.From, p.To, ev.Seq)
		}
		a.Status = p.To
		if p.To == StatusSold {
			a.WinnerID = p.WinnerID
		}

	case EventBuyNowExecuted:
		var p BuyNowExecutedPayload
		if err := ev.Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptEventLog, err)
		}
		if a.Status != StatusLive {
			return nil, fmt.Errorf("%w: buy-now at seq %d while %s", ErrCorruptEventLog, ev.Seq, a.Status)
		}
		a.CurrentBid = p.Price
		a.LeaderID = uuid.NullUUID{UUID: p.BuyerID, Valid: true}
		a.LeaderMax = p.Price
		a.WinnerID = a.LeaderID
		a.Status = StatusSold

	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrCorruptEventLog, ev.Type)
	}
	return a, nil
}
