package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/cristianortiz/propertyauction/internal/auction/application"
	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/cristianortiz/propertyauction/internal/auction/infra/pubsub"
	"github.com/cristianortiz/propertyauction/internal/auction/infra/repository/memory"
	auctionpg "github.com/cristianortiz/propertyauction/internal/auction/infra/repository/postgres"
	"github.com/cristianortiz/propertyauction/internal/auction/infra/rest"
	"github.com/cristianortiz/propertyauction/internal/auction/infra/scheduler"
	auctionws "github.com/cristianortiz/propertyauction/internal/auction/infra/websocket"
	"github.com/cristianortiz/propertyauction/internal/shared/config"
	"github.com/cristianortiz/propertyauction/internal/shared/db"
	"github.com/cristianortiz/propertyauction/internal/shared/db/migrations"
	"github.com/cristianortiz/propertyauction/internal/shared/httpserver"
	"github.com/cristianortiz/propertyauction/internal/shared/lock"
	"github.com/cristianortiz/propertyauction/internal/shared/logger"
	"github.com/cristianortiz/propertyauction/internal/shared/metrics"
	"github.com/cristianortiz/propertyauction/internal/shared/redisconn"
	"github.com/cristianortiz/propertyauction/internal/shared/websocket"
	userapp "github.com/cristianortiz/propertyauction/internal/user/application"
	userdomain "github.com/cristianortiz/propertyauction/internal/user/domain"
	usermem "github.com/cristianortiz/propertyauction/internal/user/infra/repository/memory"
	userpg "github.com/cristianortiz/propertyauction/internal/user/infra/repository/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the optional yaml config file")
	flag.Parse()

	// init logger
	log := logger.GetLogger()
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}
	if err := logger.Configure(cfg.Log.Format, cfg.Log.Level); err != nil {
		log.Warn("Invalid log settings, keeping defaults",
			zap.String("format", cfg.Log.Format),
			zap.String("level", cfg.Log.Level),
			zap.Error(err),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting property auction server...",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
	)
	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server stopped")
}

type storage struct {
	auctions domain.AuctionRepository
	bids     domain.BidRepository
	events   domain.EventRepository
	tx       domain.TxManager
	users    userdomain.UserRepository
	checks   map[string]httpserver.HealthCheck
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("Using in-memory storage, state is lost on restart")
		store := memory.NewStore()
		return &storage{
			auctions: store, bids: store, events: store, tx: store,
			users:  usermem.NewUserRepository(),
			checks: map[string]httpserver.HealthCheck{},
			close:  func() {},
		}, nil
	}

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(cfg.Database.DSN()); err != nil {
		return nil, err
	}
	log.Info("Database migrations completed successfully.")

	pool, err := db.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return &storage{
		auctions: auctionpg.NewAuctionRepository(pool),
		bids:     auctionpg.NewBidRepository(pool),
		events:   auctionpg.NewEventRepository(pool),
		tx:       db.NewTxManager(pool),
		users:    userpg.NewUserRepository(pool),
		checks:   map[string]httpserver.HealthCheck{"postgres": pool.Ping},
		close:    pool.Close,
	}, nil
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	var (
		locker      application.Locker = lock.NewKeyedMutex()
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisconn.New(cfg.Redis, log)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockTTL)
		store.checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := websocket.NewHub()
	hubNotifier := auctionws.NewHubNotifier(hub)

	g, ctx := errgroup.WithContext(ctx)

	// with redis every instance relays the changes of all instances to its clients
	var notifier application.Notifier = hubNotifier
	if redisClient != nil {
		publisher := pubsub.NewPublisher(redisClient, cfg.Redis.Channel, auctionws.EncodeUpdate)
		relay := pubsub.NewRelay(redisClient, cfg.Redis.Channel, hubNotifier)
		notifier = publisher
		g.Go(func() error { publisher.Run(ctx); return nil })
		g.Go(func() error { return relay.Run(ctx) })
	}

	var verifier application.BidderVerifier
	if cfg.Auction.VerifyBidders {
		verifier = userapp.NewDirectory(store.users)
	}

	auctionService := application.NewAuctionService(application.Dependencies{
		Auctions: store.auctions,
		Bids:     store.bids,
		Events:   store.events,
		Tx:       store.tx,
		Locker:   locker,
		Notifier: notifier,
		Verifier: verifier,
		Metrics:  m,
		Options: application.Options{
			Settlement:       domain.SettlementPolicy(cfg.Auction.SettlementPolicy),
			OperationTimeout: cfg.Auction.OperationTimeout,
			SweepConcurrency: cfg.Auction.SweepConcurrency,
		},
	})

	server := httpserver.NewServer(cfg.Server, httpserver.Options{
		Metrics:  m,
		Gatherer: reg,
		Checks:   store.checks,
	})
	limiter := httpserver.NewRateLimiter(cfg.Server.RateLimit, nil)
	rest.NewAuctionHandler(auctionService).RegisterRoutes(server.App(), limiter.Handler())
	wsHandler := auctionws.NewAuctionWSHandler(auctionService, hub)
	wsHandler.RegisterRoutes(ctx, server.App())

	sweeper := scheduler.NewSweeper(auctionService, cfg.Auction.SweepInterval, nil)

	g.Go(func() error { hub.Run(ctx); return nil })
	g.Go(func() error { wsHandler.ListenForMessages(ctx); return nil })
	g.Go(func() error { sweeper.Run(ctx); return nil })
	g.Go(func() error { limiter.Run(ctx); return nil })
	g.Go(func() error { return server.Start(ctx) })

	return g.Wait()
}
