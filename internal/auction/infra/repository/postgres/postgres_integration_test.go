//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/application"
	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/cristianortiz/propertyauction/internal/shared/config"
	"github.com/cristianortiz/propertyauction/internal/shared/db"
	"github.com/cristianortiz/propertyauction/internal/shared/db/migrations"
	"github.com/cristianortiz/propertyauction/internal/shared/lock"
	userdomain "github.com/cristianortiz/propertyauction/internal/user/domain"
	userpg "github.com/cristianortiz/propertyauction/internal/user/infra/repository/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("auctions"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.Defaults().Database
	cfg.Host = host
	cfg.Port = port.Int()
	cfg.Password = "postgres"

	require.NoError(t, migrations.RunMigrations(cfg.DSN()))
	pool, err := db.NewPostgresPool(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

type stores struct {
	auctions *AuctionRepository
	bids     *BidRepository
	events   *EventRepository
	tx       *db.TxManager
}

func newStores(pool *pgxpool.Pool) stores {
	return stores{
		auctions: NewAuctionRepository(pool),
		bids:     NewBidRepository(pool),
		events:   NewEventRepository(pool),
		tx:       db.NewTxManager(pool),
	}
}

func TestPostgres_AuctionFlow(t *testing.T) {
	pool := startPostgres(t)
	s := newStores(pool)
	ctx := context.Background()

	svc := application.NewAuctionService(application.Dependencies{
		Auctions: s.auctions,
		Bids:     s.bids,
		Events:   s.events,
		Tx:       s.tx,
		Locker:   lock.NewKeyedMutex(),
		Options:  application.Options{OperationTimeout: 5 * time.Second, SweepConcurrency: 4},
	})

	now := time.Now().UTC()
	state, err := svc.CreateAuction(ctx, application.CreateAuctionDTO{
		PropertyID:     uuid.New(),
		AuctionType:    domain.AuctionTypeTimed,
		StartTime:      now.Add(-time.Minute),
		EndTime:        now.Add(time.Hour),
		ReservePrice:   decimal.NewFromInt(100000),
		BuyNowPrice:    decimal.NewNullDecimal(decimal.NewFromInt(500000)),
		MinIncrement:   decimal.NewFromInt(1000),
		CommissionRate: decimal.RequireFromString("0.03"),
	})
	require.NoError(t, err)
	require.Equal(t, string(domain.StatusLive), state.Status)

	alice, bob := uuid.New(), uuid.New()
	_, err = svc.PlaceBid(ctx, application.PlaceBidDTO{
		AuctionID: state.AuctionID, BidderID: alice,
		Amount: decimal.NewFromInt(100000), AutoBidMax: decimal.NewNullDecimal(decimal.NewFromInt(150000)),
	})
	require.NoError(t, err)
	res, err := svc.PlaceBid(ctx, application.PlaceBidDTO{
		AuctionID: state.AuctionID, BidderID: bob, Amount: decimal.NewFromInt(120000),
	})
	require.NoError(t, err)
	assert.True(t, res.Outbid)
	assert.True(t, res.Auction.CurrentBid.Equal(decimal.NewFromInt(121000)))

	bids, err := svc.ListBids(ctx, state.AuctionID)
	require.NoError(t, err)
	require.Len(t, bids, 3)

	tick, err := svc.Tick(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, tick.Transitioned)

	final, err := svc.GetAuction(ctx, state.AuctionID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusSold), final.Status)
	assert.Equal(t, alice, *final.WinnerID)

	events, err := s.events.GetEventsByAuctionID(ctx, state.AuctionID)
	require.NoError(t, err)
	replayed, err := domain.Replay(events)
	require.NoError(t, err)
	assert.Equal(t, final.Version, replayed.Version)
	assert.True(t, replayed.CurrentBid.Equal(final.CurrentBid))
	assert.Equal(t, domain.StatusSold, replayed.Status)

	ids, err := s.auctions.ListOpenIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, state.AuctionID)
}

func TestPostgres_StoredRowMatchesTheLog(t *testing.T) {
	pool := startPostgres(t)
	s := newStores(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	svc := application.NewAuctionService(application.Dependencies{
		Auctions: s.auctions,
		Bids:     s.bids,
		Events:   s.events,
		Tx:       s.tx,
		Locker:   lock.NewKeyedMutex(),
		Clock:    func() time.Time { return now },
		Options:  application.Options{OperationTimeout: 5 * time.Second},
	})
	state, err := svc.CreateAuction(ctx, application.CreateAuctionDTO{
		PropertyID:    uuid.New(),
		AuctionType:   domain.AuctionTypeTimed,
		StartTime:     now.Add(-time.Minute),
		EndTime:       now.Add(time.Minute),
		TimeExtension: 5 * time.Minute,
		ReservePrice:  decimal.NewFromInt(100000),
		MinIncrement:  decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	_, err = svc.PlaceBid(ctx, application.PlaceBidDTO{
		AuctionID: state.AuctionID, BidderID: uuid.New(), Amount: decimal.RequireFromString("99999.995"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidBid)
	_, err = svc.PlaceBid(ctx, application.PlaceBidDTO{
		AuctionID: state.AuctionID, BidderID: uuid.New(), Amount: decimal.RequireFromString("99999.99"),
	})
	require.NoError(t, err)

	stored, err := s.auctions.GetByID(ctx, state.AuctionID)
	require.NoError(t, err)
	events, err := s.events.GetEventsByAuctionID(ctx, state.AuctionID)
	require.NoError(t, err)
	replayed, err := domain.Replay(events)
	require.NoError(t, err)

	assert.True(t, stored.EndTime.Equal(replayed.EndTime), "soft close end time survives the round trip")
	assert.True(t, stored.CurrentBid.Equal(replayed.CurrentBid))
	assert.Equal(t, replayed.ReserveMet(), stored.ReserveMet())
	assert.False(t, stored.ReserveMet())
}

func TestPostgres_ConcurrentBidsSerialise(t *testing.T) {
	pool := startPostgres(t)
	s := newStores(pool)
	ctx := context.Background()

	svc := application.NewAuctionService(application.Dependencies{
		Auctions: s.auctions,
		Bids:     s.bids,
		Events:   s.events,
		Tx:       s.tx,
		Locker:   lock.NewKeyedMutex(),
		Options:  application.Options{OperationTimeout: 10 * time.Second},
	})
	now := time.Now().UTC()
	state, err := svc.CreateAuction(ctx, application.CreateAuctionDTO{
		PropertyID:   uuid.New(),
		AuctionType:  domain.AuctionTypeLive,
		StartTime:    now.Add(-time.Minute),
		EndTime:      now.Add(time.Hour),
		ReservePrice: decimal.NewFromInt(1000),
		MinIncrement: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.PlaceBid(ctx, application.PlaceBidDTO{
				AuctionID: state.AuctionID, BidderID: uuid.New(), Amount: decimal.NewFromInt(int64(1000 + i*100)),
			})
		}(i)
	}
	wg.Wait()

	events, err := s.events.GetEventsByAuctionID(ctx, state.AuctionID)
	require.NoError(t, err)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	stored, err := s.auctions.GetByID(ctx, state.AuctionID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(events)), stored.Version)
}

func TestPostgres_StaleUpdateConflicts(t *testing.T) {
	pool := startPostgres(t)
	s := newStores(pool)
	ctx := context.Background()

	start := domain.Timestamp(time.Now().UTC())
	a, created, err := domain.NewAuction(domain.NewAuctionParams{
		PropertyID:   uuid.New(),
		Type:         domain.AuctionTypeTimed,
		PreviewStart: start,
		StartTime:    start.Add(time.Hour),
		EndTime:      start.Add(2 * time.Hour),
		ReservePrice: decimal.NewFromInt(1000),
		Increment:    domain.IncrementPolicy{Fixed: decimal.NewFromInt(100)},
	}, start)
	require.NoError(t, err)
	require.NoError(t, s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.auctions.Create(ctx, a); err != nil {
			return err
		}
		return s.events.Append(ctx, created)
	}))

	ev, err := a.Cancel("withdrawn", start)
	require.NoError(t, err)
	require.NoError(t, s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.auctions.Update(ctx, a, 1); err != nil {
			return err
		}
		return s.events.Append(ctx, ev)
	}))

	assert.ErrorIs(t, s.auctions.Update(ctx, a, 1), domain.ErrConflict)
	assert.ErrorIs(t, s.events.Append(ctx, ev), domain.ErrConflict)

	_, err = s.auctions.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestPostgres_Users(t *testing.T) {
	pool := startPostgres(t)
	repo := userpg.NewUserRepository(pool)
	ctx := context.Background()

	u := &userdomain.User{ID: uuid.New(), Email: "bidder@example.com", Verified: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.True(t, got.Verified)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)
}
