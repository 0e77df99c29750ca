package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validParams() NewAuctionParams {
	return NewAuctionParams{
		PropertyID:     uuid.New(),
		Type:           AuctionTypeTimed,
		PreviewStart:   t0,
		StartTime:      t0.Add(time.Hour),
		EndTime:        t0.Add(2 * time.Hour),
		ReservePrice:   dec("100000"),
		BuyNowPrice:    decimal.NewNullDecimal(dec("250000")),
		Increment:      IncrementPolicy{Fixed: dec("1000")},
		CommissionRate: dec("0.03"),
	}
}

// liveAuction returns an auction that went live at StartTime.
func liveAuction(t *testing.T, mutate ...func(p *NewAuctionParams)) *Auction {
	t.Helper()
	p := validParams()
	for _, m := range mutate {
		m(&p)
	}
	a, _, err := NewAuction(p, t0)
	require.NoError(t, err)
	events := a.Advance(p.StartTime, SettleAsSold)
	require.Len(t, events, 1)
	require.Equal(t, StatusLive, a.Status)
	return a
}

func TestNewAuction(t *testing.T) {
	a, ev, err := NewAuction(validParams(), t0)
	require.NoError(t, err)

	assert.Equal(t, StatusPreview, a.Status)
	assert.True(t, a.CurrentBid.IsZero())
	assert.Equal(t, 0, a.BidCount)
	assert.False(t, a.LeaderID.Valid)
	assert.Equal(t, int64(1), a.Version)
	assert.Equal(t, EventAuctionCreated, ev.Type)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, a.ID, ev.AuctionID)
}

func TestNewAuction_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *NewAuctionParams)
	}{
		{"missing property", func(p *NewAuctionParams) { p.PropertyID = uuid.Nil }},
		{"unknown type", func(p *NewAuctionParams) { p.Type = "dutch" }},
		{"end before start", func(p *NewAuctionParams) { p.EndTime = p.StartTime.Add(-time.Minute) }},
		{"end equals start", func(p *NewAuctionParams) { p.EndTime = p.StartTime }},
		{"preview after start", func(p *NewAuctionParams) { p.PreviewStart = p.StartTime.Add(time.Minute) }},
		{"negative reserve", func(p *NewAuctionParams) { p.ReservePrice = dec("-1") }},
		{"buy now below reserve", func(p *NewAuctionParams) { p.BuyNowPrice = decimal.NewNullDecimal(dec("100000")) }},
		{"zero increment", func(p *NewAuctionParams) { p.Increment.Fixed = decimal.Zero }},
		{"negative percent", func(p *NewAuctionParams) { p.Increment.Percent = dec("-0.01") }},
		{"commission of one", func(p *NewAuctionParams) { p.CommissionRate = dec("1") }},
		{"negative extension", func(p *NewAuctionParams) { p.TimeExtension = -time.Second }},
		{"sub-cent reserve", func(p *NewAuctionParams) { p.ReservePrice = dec("99999.995") }},
		{"sub-cent buy now", func(p *NewAuctionParams) { p.BuyNowPrice = decimal.NewNullDecimal(dec("250000.001")) }},
		{"sub-cent increment", func(p *NewAuctionParams) { p.Increment.Fixed = dec("0.001") }},
		{"over-precise percent", func(p *NewAuctionParams) { p.Increment.Percent = dec("0.0000001") }},
		{"over-precise commission", func(p *NewAuctionParams) { p.CommissionRate = dec("0.0250001") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, _, err := NewAuction(p, t0)
			assert.ErrorIs(t, err, ErrInvalidAuction)
		})
	}
}

func TestNewAuction_NormalisesInputs(t *testing.T) {
	p := validParams()
	p.ReservePrice = dec("100000.000")
	p.CommissionRate = dec("0.025000")
	p.StartTime = p.StartTime.Add(1234 * time.Nanosecond)
	p.EndTime = p.EndTime.Add(999 * time.Nanosecond)

	a, ev, err := NewAuction(p, t0)
	require.NoError(t, err, "trailing zeros are not extra precision")
	assert.Equal(t, t0.Add(time.Hour+time.Microsecond), a.StartTime)
	assert.Equal(t, t0.Add(2*time.Hour), a.EndTime)

	var payload AuctionCreatedPayload
	require.NoError(t, ev.Decode(&payload))
	assert.Equal(t, a.StartTime, payload.StartTime)
	assert.Equal(t, a.EndTime, payload.EndTime)
}

func TestTimestamp(t *testing.T) {
	in := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC), Timestamp(in))
	assert.Equal(t, Timestamp(in), Timestamp(Timestamp(in)))
}

func TestIncrementPolicy_Step(t *testing.T) {
	p := IncrementPolicy{Fixed: dec("1000"), Percent: dec("0.05")}

	assert.True(t, p.Step(dec("10000")).Equal(dec("1000")), "fixed dominates small amounts")
	assert.True(t, p.Step(dec("100000")).Equal(dec("5000")), "percent dominates large amounts")
	assert.True(t, p.Step(dec("33333.33")).Equal(dec("1666.67")), "percent rounds up to cents")
	assert.True(t, p.Next(dec("100000")).Equal(dec("105000")))
}

func TestAuction_DerivedValues(t *testing.T) {
	a := liveAuction(t)
	assert.True(t, a.MinimumNextBid().Equal(dec("1000")))
	assert.False(t, a.ReserveMet(), "no bids never meets the reserve")
	assert.True(t, a.BuyNowAvailable())

	_, err := a.PlaceBid(BidRequest{BidderID: uuid.New(), Amount: dec("150000")}, a.StartTime)
	require.NoError(t, err)
	assert.True(t, a.ReserveMet())
	assert.True(t, a.Commission().Equal(dec("4500")))
	assert.True(t, a.MinimumNextBid().Equal(dec("151000")))
}

func TestAuction_ZeroReserveNeedsABid(t *testing.T) {
	a := liveAuction(t, func(p *NewAuctionParams) {
		p.ReservePrice = decimal.Zero
		p.BuyNowPrice = decimal.NullDecimal{}
	})
	assert.False(t, a.ReserveMet())

	a.Advance(a.EndTime, SettleAsSold)
	assert.Equal(t, StatusEnded, a.Status)
	assert.False(t, a.WinnerID.Valid)
}

func TestAuction_Cancel(t *testing.T) {
	a, _, err := NewAuction(validParams(), t0)
	require.NoError(t, err)

	ev, err := a.Cancel("seller withdrew", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, a.Status)
	assert.Equal(t, EventStatusChanged, ev.Type)

	var p StatusChangedPayload
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, StatusPreview, p.From)
	assert.Equal(t, StatusCancelled, p.To)
	assert.Equal(t, "seller withdrew", p.Reason)

	_, err = a.Cancel("again", t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidState)
}
