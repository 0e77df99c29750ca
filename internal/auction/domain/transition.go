package domain

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementPolicy decides the status a live auction reaches at its end time when the
// reserve price is met.
type SettlementPolicy string

const (
	// SettleAsSold closes reserve-met auctions as sold, the rest as ended.
	SettleAsSold SettlementPolicy = "close_as_sold"
	// SettleAsEnded closes every expired auction as ended.
	SettleAsEnded SettlementPolicy = "close_as_ended"
)

const (
	ReasonStartReached = "start_time_reached"
	ReasonEndReached   = "end_time_reached"
	ReasonBuyNow       = "buy_now"
)

var allowedTransitions = map[Status][]Status{
	StatusPreview: {StatusLive, StatusCancelled},
	StatusLive:    {StatusEnded, StatusSold, StatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatus evaluates a single time based edge for now. It is pure: the auction is
// not modified.
func NextStatus(a *Auction, now time.Time, policy SettlementPolicy) (Status, bool) {
	switch a.Status {
	case StatusPreview:
		if !now.Before(a.StartTime) {
			return StatusLive, true
		}
	case StatusLive:
		if !now.Before(a.EndTime) {
			if policy != SettleAsEnded && a.ReserveMet() {
				return StatusSold, true
			}
			return StatusEnded, true
		}
	}
	return a.Status, false
}

// Advance applies every time based transition due at now and returns one
// status_changed event per edge taken. Calling it again with the same now is a no-op.
func (a *Auction) Advance(now time.Time, policy SettlementPolicy) []*Event {
	var events []*Event
	for {
		next, ok := NextStatus(a, now, policy)
		if !ok {
			return events
		}
		reason := ReasonEndReached
		if next == StatusLive {
			reason = ReasonStartReached
		}
		events = append(events, a.transition(next, reason, now))
	}
}

func (a *Auction) transition(to Status, reason string, now time.Time) *Event {
	from := a.Status
	a.Status = to
	if to == StatusSold {
		a.WinnerID = a.LeaderID
	}
	log.Info("Auction status changed",
		zap.String("auctionID", a.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
	)
	winner := uuid.NullUUID{}
	if to == StatusSold {
		winner = a.WinnerID
	}
	return a.appendEvent(EventStatusChanged, StatusChangedPayload{
		From:     from,
		To:       to,
		Reason:   reason,
		WinnerID: winner,
	}, now)
}
