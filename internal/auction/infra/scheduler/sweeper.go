package scheduler

import (
	"context"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/application"
	"github.com/cristianortiz/propertyauction/internal/shared/logger"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Ticker is the part of the auction service the sweeper drives.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (*application.TickResult, error)
}

// Sweeper periodically applies time transitions to open auctions, so auctions go live
// and close even when nobody interacts with them.
type Sweeper struct {
	ticker   Ticker
	interval time.Duration
	clock    func() time.Time
}

func NewSweeper(ticker Ticker, interval time.Duration, clock func() time.Time) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{ticker: ticker, interval: interval, clock: clock}
}

// Run sweeps every interval until ctx is cancelled. A sweep in progress when ctx is
// cancelled sees the cancellation through its own context.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info("Auction sweeper started", zap.Duration("interval", s.interval))
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Auction sweeper stopped")
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.ticker.Tick(ctx, s.clock())
	if err != nil {
		log.Warn("Auction sweep finished with errors", zap.Error(err))
		return
	}
	log.Debug("Auction sweep finished",
		zap.Int("checked", res.Checked),
		zap.Int("transitioned", res.Transitioned),
	)
}
