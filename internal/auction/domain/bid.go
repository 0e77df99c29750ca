package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Bid represents an accepted bid, an entity inside the Auction aggregate.
// Proxy bids are placed by the engine on behalf of a bidder's AutoBidMax.
type Bid struct {
	ID         uuid.UUID
	AuctionID  uuid.UUID
	BidderID   uuid.UUID
	Amount     decimal.Decimal
	AutoBidMax decimal.NullDecimal
	Proxy      bool
	Seq        int64 // seq of the bid_placed event that recorded it
	CreatedAt  time.Time
}

// BidRequest is a bid submitted by a bidder
type BidRequest struct {
	BidderID   uuid.UUID
	Amount     decimal.Decimal
	AutoBidMax decimal.NullDecimal
}

func (r BidRequest) validate() error {
	switch {
	case r.BidderID == uuid.Nil:
		return fmt.Errorf("%w: bidder id is required", ErrInvalidBid)
	case !r.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidBid)
	case !hasScale(r.Amount, monetaryPrecision),
		r.AutoBidMax.Valid && !hasScale(r.AutoBidMax.Decimal, monetaryPrecision):
		return fmt.Errorf("%w: amounts allow at most %d decimal places", ErrInvalidBid, monetaryPrecision)
	case r.AutoBidMax.Valid && r.AutoBidMax.Decimal.LessThan(r.Amount):
		return fmt.Errorf("%w: auto-bid maximum is below the bid amount", ErrInvalidBid)
	}
	return nil
}

// ceiling is the most the bidder is willing to pay.
func (r BidRequest) ceiling() decimal.Decimal {
	if r.AutoBidMax.Valid {
		return r.AutoBidMax.Decimal
	}
	return r.Amount
}

// BidOutcome lists what PlaceBid stored, in sequence order.
type BidOutcome struct {
	Bids   []*Bid
	Events []*Event
	// Outbid is set when the incoming bid was immediately beaten by the proxy of the
	// standing leader.
	Outbid bool
}

// PlaceBid validates req against the current state and applies it, resolving proxy
// bidding against the standing leader. Time based transitions must have been applied
// for now before calling it.
//
// Proxy resolution: the higher ceiling wins, equal ceilings go to the earlier bidder,
// and the winner pays one step above the loser's ceiling capped at its own. Every
// stored bid is at least one step above the bid before it.
func (a *Auction) PlaceBid(req BidRequest, now time.Time) (*BidOutcome, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if a.Status != StatusLive || !now.Before(a.EndTime) {
		log.Warn("Bid rejected: auction not live",
			zap.String("auctionID", a.ID.String()),
			zap.String("status", string(a.Status)),
			zap.String("bidderID", req.BidderID.String()),
		)
		return nil, fmt.Errorf("%w: auction is %s", ErrInvalidState, a.Status)
	}
	minimum := a.MinimumNextBid()
	if req.Amount.LessThan(minimum) {
		log.Warn("Bid rejected: amount too low",
			zap.String("auctionID", a.ID.String()),
			zap.String("amount", req.Amount.String()),
			zap.String("minimum", minimum.String()),
			zap.String("bidderID", req.BidderID.String()),
		)
		return nil, fmt.Errorf("%w: minimum admissible bid is %s", ErrBidTooLow, minimum)
	}

	out := &BidOutcome{}
	ceiling := req.ceiling()
	leader := a.LeaderID

	// no competing proxy
	if !leader.Valid || leader.UUID == req.BidderID {
		if leader.Valid && a.LeaderMax.GreaterThan(ceiling) {
			ceiling = a.LeaderMax
		}
		a.record(out, req.BidderID, req.Amount, ceiling, req.AutoBidMax, false, now)
		return out, nil
	}

	inc := a.Increment
	leaderMax := a.LeaderMax
	if ceiling.GreaterThan(leaderMax) {
		// challenger takes the lead
		if leaderMax.GreaterThanOrEqual(inc.Next(req.Amount)) && ceiling.GreaterThanOrEqual(inc.Next(leaderMax)) {
			a.record(out, req.BidderID, req.Amount, ceiling, req.AutoBidMax, false, now)
			a.record(out, leader.UUID, leaderMax, leaderMax, decimal.NullDecimal{}, true, now)
			a.record(out, req.BidderID, inc.Next(leaderMax), ceiling, decimal.NullDecimal{}, true, now)
		} else {
			price := decimal.Max(req.Amount, decimal.Min(ceiling, inc.Next(leaderMax)))
			a.record(out, req.BidderID, price, ceiling, req.AutoBidMax, !price.Equal(req.Amount), now)
		}
		return out, nil
	}

	// standing leader keeps the lead, by ceiling or by priority
	out.Outbid = true
	if leaderMax.GreaterThanOrEqual(inc.Next(req.Amount)) {
		a.record(out, req.BidderID, req.Amount, ceiling, req.AutoBidMax, false, now)
		if ceiling.GreaterThanOrEqual(inc.Next(req.Amount)) && leaderMax.GreaterThanOrEqual(inc.Next(ceiling)) {
			a.record(out, req.BidderID, ceiling, ceiling, decimal.NullDecimal{}, true, now)
			a.record(out, leader.UUID, inc.Next(ceiling), leaderMax, decimal.NullDecimal{}, true, now)
		} else {
			a.record(out, leader.UUID, decimal.Min(leaderMax, inc.Next(ceiling)), leaderMax, decimal.NullDecimal{}, true, now)
		}
	} else {
		// the leader's ceiling covers the bid but cannot legally out-step it
		a.record(out, leader.UUID, leaderMax, leaderMax, decimal.NullDecimal{}, true, now)
	}
	log.Info("Bid outbid by automatic bid",
		zap.String("auctionID", a.ID.String()),
		zap.String("bidderID", req.BidderID.String()),
		zap.String("currentBid", a.CurrentBid.String()),
	)
	return out, nil
}

// record stores one accepted bid on the aggregate and applies the soft close window.
func (a *Auction) record(out *BidOutcome, bidderID uuid.UUID, amount, ceiling decimal.Decimal,
	autoBidMax decimal.NullDecimal, proxy bool, now time.Time) {

	if a.TimeExtension > 0 && now.Add(a.TimeExtension).After(a.EndTime) {
		original := a.EndTime
		a.EndTime = now.Add(a.TimeExtension)
		log.Info("Auction time extended",
			zap.String("auctionID", a.ID.String()),
			zap.Time("originalEndTime", original),
			zap.Time("newEndTime", a.EndTime),
		)
	}
	a.CurrentBid = amount
	a.BidCount++
	a.LeaderID = uuid.NullUUID{UUID: bidderID, Valid: true}
	a.LeaderMax = ceiling

	bid := &Bid{
		ID:         uuid.New(),
		AuctionID:  a.ID,
		BidderID:   bidderID,
		Amount:     amount,
		AutoBidMax: autoBidMax,
		Proxy:      proxy,
		CreatedAt:  now,
	}
	ev := a.appendEvent(EventBidPlaced, BidPlacedPayload{
		BidID:      bid.ID,
		BidderID:   bidderID,
		Amount:     amount,
		AutoBidMax: autoBidMax,
		Ceiling:    ceiling,
		Proxy:      proxy,
		EndTime:    a.EndTime,
	}, now)
	bid.Seq = ev.Seq
	out.Bids = append(out.Bids, bid)
	out.Events = append(out.Events, ev)

	log.Info("Bid placed successfully",
		zap.String("auctionID", a.ID.String()),
		zap.String("bidID", bid.ID.String()),
		zap.String("bidderID", bidderID.String()),
		zap.String("amount", amount.String()),
		zap.Bool("proxy", proxy),
	)
}

// BuyNow sells the auction to buyerID at the buy-now price.
func (a *Auction) BuyNow(buyerID uuid.UUID, now time.Time) (*Event, error) {
	if buyerID == uuid.Nil {
		return nil, fmt.Errorf("%w: buyer id is required", ErrInvalidBid)
	}
	if !a.BuyNowPrice.Valid {
		return nil, fmt.Errorf("%w: auction has no buy-now price", ErrInvalidState)
	}
	if a.Status != StatusLive || !now.Before(a.EndTime) {
		return nil, fmt.Errorf("%w: auction is %s", ErrInvalidState, a.Status)
	}
	if !a.CurrentBid.LessThan(a.BuyNowPrice.Decimal) {
		return nil, fmt.Errorf("%w: bidding has reached the buy-now price", ErrInvalidState)
	}
	price := a.BuyNowPrice.Decimal
	a.CurrentBid = price
	a.LeaderID = uuid.NullUUID{UUID: buyerID, Valid: true}
	a.LeaderMax = price
	a.WinnerID = a.LeaderID
	a.Status = StatusSold
	log.Info("Buy-now executed",
		zap.String("auctionID", a.ID.String()),
		zap.String("buyerID", buyerID.String()),
		zap.String("price", price.String()),
	)
	return a.appendEvent(EventBuyNowExecuted, BuyNowExecutedPayload{
		BuyerID: buyerID,
		Price:   price,
	}, now), nil
}
