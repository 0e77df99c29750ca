package domain

import (
	"fmt"
	"time"

	"github.com/cristianortiz/propertyauction/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Status represents the lifecycle state of an auction
type Status string

const (
	StatusPreview   Status = "preview"
	StatusLive      Status = "live"
	StatusEnded     Status = "ended"
	StatusSold      Status = "sold"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusSold || s == StatusCancelled
}

type AuctionType string

const (
	AuctionTypeTimed AuctionType = "timed"
	AuctionTypeLive  AuctionType = "live"
)

// monetaryPrecision is the number of decimal places money amounts are rounded to.
const monetaryPrecision int32 = 2

// ratePrecision is the number of decimal places kept for percentages and rates.
const ratePrecision int32 = 6

// timestampPrecision is the resolution at which instants are stored.
const timestampPrecision = time.Microsecond

// Timestamp truncates t to the stored resolution and drops its monotonic reading.
func Timestamp(t time.Time) time.Time {
	return t.Truncate(timestampPrecision)
}

// hasScale reports whether d carries no more than places significant decimals.
func hasScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// IncrementPolicy defines the minimum step between two consecutive accepted bids.
// The step is the larger of Fixed and Percent of the current bid.
type IncrementPolicy struct {
	Fixed   decimal.Decimal `json:"fixed"`
	Percent decimal.Decimal `json:"percent"`
}

// Step returns the increment required on top of current.
func (p IncrementPolicy) Step(current decimal.Decimal) decimal.Decimal {
	step := p.Fixed
	if p.Percent.IsPositive() {
		pct := current.Mul(p.Percent).RoundUp(monetaryPrecision)
		if pct.GreaterThan(step) {
			step = pct
		}
	}
	return step
}

// Next returns the smallest amount admissible after current.
func (p IncrementPolicy) Next(current decimal.Decimal) decimal.Decimal {
	return current.Add(p.Step(current))
}

// Auction is the aggregate root of the engine. It is a projection of its event log:
// Version always equals the Seq of the last event applied.
type Auction struct {
	ID             uuid.UUID
	PropertyID     uuid.UUID
	Type           AuctionType
	PreviewStart   time.Time
	StartTime      time.Time
	EndTime        time.Time
	TimeExtension  time.Duration // soft close window, zero disables
	ReservePrice   decimal.Decimal
	BuyNowPrice    decimal.NullDecimal
	Increment      IncrementPolicy
	CommissionRate decimal.Decimal
	CurrentBid     decimal.Decimal
	BidCount       int
	LeaderID       uuid.NullUUID
	LeaderMax      decimal.Decimal // proxy ceiling of the leader, never shown to bidders
	WinnerID       uuid.NullUUID
	Status         Status
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAuctionParams carries the seller supplied terms of a new auction
type NewAuctionParams struct {
	ID             uuid.UUID // optional, generated when Nil
	PropertyID     uuid.UUID
	Type           AuctionType
	PreviewStart   time.Time
	StartTime      time.Time
	EndTime        time.Time
	TimeExtension  time.Duration
	ReservePrice   decimal.Decimal
	BuyNowPrice    decimal.NullDecimal
	Increment      IncrementPolicy
	CommissionRate decimal.Decimal
}

func (p NewAuctionParams) validate() error {
	switch {
	case p.PropertyID == uuid.Nil:
		return fmt.Errorf("%w: property id is required", ErrInvalidAuction)
	case p.Type != AuctionTypeTimed && p.Type != AuctionTypeLive:
		return fmt.Errorf("%w: unknown auction type %q", ErrInvalidAuction, p.Type)
	case p.PreviewStart.After(p.StartTime):
		return fmt.Errorf("%w: preview must start before the auction", ErrInvalidAuction)
	case !p.StartTime.Before(p.EndTime):
		return fmt.Errorf("%w: start time must be before end time", ErrInvalidAuction)
	case p.TimeExtension < 0:
		return fmt.Errorf("%w: time extension cannot be negative", ErrInvalidAuction)
	case p.ReservePrice.IsNegative():
		return fmt.Errorf("%w: reserve price cannot be negative", ErrInvalidAuction)
	case !hasScale(p.ReservePrice, monetaryPrecision),
		p.BuyNowPrice.Valid && !hasScale(p.BuyNowPrice.Decimal, monetaryPrecision),
		!hasScale(p.Increment.Fixed, monetaryPrecision):
		return fmt.Errorf("%w: prices allow at most %d decimal places", ErrInvalidAuction, monetaryPrecision)
	case !hasScale(p.Increment.Percent, ratePrecision), !hasScale(p.CommissionRate, ratePrecision):
		return fmt.Errorf("%w: rates allow at most %d decimal places", ErrInvalidAuction, ratePrecision)
	case p.BuyNowPrice.Valid && !p.BuyNowPrice.Decimal.GreaterThan(p.ReservePrice):
		return fmt.Errorf("%w: buy-now price must be greater than reserve price", ErrInvalidAuction)
	case !p.Increment.Fixed.IsPositive():
		return fmt.Errorf("%w: minimum increment must be positive", ErrInvalidAuction)
	case p.Increment.Percent.IsNegative():
		return fmt.Errorf("%w: increment percent cannot be negative", ErrInvalidAuction)
	case p.CommissionRate.IsNegative() || p.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return fmt.Errorf("%w: commission rate must be in [0, 1)", ErrInvalidAuction)
	}
	return nil
}

// NewAuction validates the terms and creates an auction in preview status together
// with its auction_created event.
func NewAuction(p NewAuctionParams, now time.Time) (*Auction, *Event, error) {
	p.PreviewStart = Timestamp(p.PreviewStart)
	p.StartTime = Timestamp(p.StartTime)
	p.EndTime = Timestamp(p.EndTime)
	if err := p.validate(); err != nil {
		return nil, nil, err
	}
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	a := &Auction{
		ID:             id,
		PropertyID:     p.PropertyID,
		Type:           p.Type,
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
		CreatedAt:      now,
	}
	ev := a.appendEvent(EventAuctionCreated, a.createdPayload(), now)
	return a, ev, nil
}

func (a *Auction) createdPayload() AuctionCreatedPayload {
	return AuctionCreatedPayload{
		PropertyID:     a.PropertyID,
		AuctionType:    a.Type,
		PreviewStart:   a.PreviewStart,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		TimeExtension:  a.TimeExtension,
		ReservePrice:   a.ReservePrice,
		BuyNowPrice:    a.BuyNowPrice,
		Increment:      a.Increment,
		CommissionRate: a.CommissionRate,
	}
}

// Clone returns a copy that can be mutated without affecting a.
func (a *Auction) Clone() *Auction {
	c := *a
	return &c
}

// MinimumNextBid is the lowest amount PlaceBid currently admits.
func (a *Auction) MinimumNextBid() decimal.Decimal {
	return a.Increment.Next(a.CurrentBid)
}

// ReserveMet reports whether the standing bid would close the auction as a sale.
func (a *Auction) ReserveMet() bool {
	return a.BidCount > 0 && a.CurrentBid.GreaterThanOrEqual(a.ReservePrice)
}

// Commission is the fee on the current price. Informational only.
func (a *Auction) Commission() decimal.Decimal {
	return a.CurrentBid.Mul(a.CommissionRate).Round(monetaryPrecision)
}

// BuyNowAvailable reports whether BuyNow may currently succeed.
func (a *Auction) BuyNowAvailable() bool {
	return a.Status == StatusLive && a.BuyNowPrice.Valid && a.CurrentBid.LessThan(a.BuyNowPrice.Decimal)
}

// Cancel moves a non terminal auction to cancelled.
func (a *Auction) Cancel(reason string, now time.Time) (*Event, error) {
	if a.Status.Terminal() {
		log.Warn("Attempted to cancel auction in terminal status",
			zap.String("auctionID", a.ID.String()),
			zap.String("status", string(a.Status)),
		)
		return nil, fmt.Errorf("%w: auction is %s", ErrInvalidState, a.Status)
	}
	ev := a.transition(StatusCancelled, reason, now)
	log.Info("Auction cancelled",
		zap.String("auctionID", a.ID.String()),
		zap.String("reason", reason),
	)
	return ev, nil
}
