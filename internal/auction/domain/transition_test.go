package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusPreview, StatusLive},
		{StatusPreview, StatusCancelled},
		{StatusLive, StatusEnded},
		{StatusLive, StatusSold},
		{StatusLive, StatusCancelled},
	}
	for _, e := range allowed {
		assert.True(t, CanTransition(e[0], e[1]), "%s -> %s", e[0], e[1])
	}

	forbidden := [][2]Status{
		{StatusPreview, StatusSold},
		{StatusPreview, StatusEnded},
		{StatusLive, StatusPreview},
		{StatusEnded, StatusLive},
		{StatusSold, StatusCancelled},
		{StatusCancelled, StatusLive},
	}
	for _, e := range forbidden {
		assert.False(t, CanTransition(e[0], e[1]), "%s -> %s", e[0], e[1])
	}
}

func TestNextStatus_IsPure(t *testing.T) {
	a, _, err := NewAuction(validParams(), t0)
	require.NoError(t, err)

	next, ok := NextStatus(a, a.StartTime, SettleAsSold)
	assert.True(t, ok)
	assert.Equal(t, StatusLive, next)
	assert.Equal(t, StatusPreview, a.Status)
	assert.Equal(t, int64(1), a.Version)
}

func TestAdvance(t *testing.T) {
	t.Run("before start nothing happens", func(t *testing.T) {
		a, _, err := NewAuction(validParams(), t0)
		require.NoError(t, err)
		assert.Empty(t, a.Advance(a.StartTime.Add(-time.Second), SettleAsSold))
		assert.Equal(t, StatusPreview, a.Status)
	})

	t.Run("start time is inclusive", func(t *testing.T) {
		a, _, err := NewAuction(validParams(), t0)
		require.NoError(t, err)
		events := a.Advance(a.StartTime, SettleAsSold)
		require.Len(t, events, 1)
		assert.Equal(t, StatusLive, a.Status)
	})

	t.Run("catches up several edges at once", func(t *testing.T) {
		a, _, err := NewAuction(validParams(), t0)
		require.NoError(t, err)
		events := a.Advance(a.EndTime.Add(time.Hour), SettleAsSold)
		require.Len(t, events, 2)
		assert.Equal(t, StatusEnded, a.Status)
		assert.Equal(t, int64(2), events[0].Seq)
		assert.Equal(t, int64(3), events[1].Seq)
	})

	t.Run("is idempotent for the same instant", func(t *testing.T) {
		a := liveAuction(t)
		first := a.Advance(a.EndTime, SettleAsSold)
		require.Len(t, first, 1)
		version := a.Version
		assert.Empty(t, a.Advance(a.EndTime, SettleAsSold))
		assert.Equal(t, version, a.Version)
	})

	t.Run("terminal auctions never move", func(t *testing.T) {
		a := liveAuction(t)
		_, err := a.Cancel("", a.StartTime)
		require.NoError(t, err)
		assert.Empty(t, a.Advance(a.EndTime.Add(time.Hour), SettleAsSold))
		assert.Equal(t, StatusCancelled, a.Status)
	})
}

func TestAdvance_Settlement(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		policy  SettlementPolicy
		want    Status
		winning bool
	}{
		{"reserve met sells", "120000", SettleAsSold, StatusSold, true},
		{"reserve exactly met sells", "100000", SettleAsSold, StatusSold, true},
		{"reserve not met ends", "50000", SettleAsSold, StatusEnded, false},
		{"ended policy ignores reserve", "120000", SettleAsEnded, StatusEnded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := liveAuction(t)
			bidder := uuid.New()
			_, err := a.PlaceBid(BidRequest{BidderID: bidder, Amount: dec(tt.amount)}, a.StartTime)
			require.NoError(t, err)

			events := a.Advance(a.EndTime, tt.policy)
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, a.Status)

			var p StatusChangedPayload
			require.NoError(t, events[0].Decode(&p))
			assert.Equal(t, ReasonEndReached, p.Reason)
			if tt.winning {
				assert.Equal(t, bidder, a.WinnerID.UUID)
				assert.Equal(t, bidder, p.WinnerID.UUID)
			} else {
				assert.False(t, a.WinnerID.Valid)
				assert.False(t, p.WinnerID.Valid)
			}
		})
	}
}
