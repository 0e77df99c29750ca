package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TickResult summarises one sweep over the open auctions.
type TickResult struct {
	Checked      int `json:"checked"`
	Transitioned int `json:"transitioned"`
	Failed       int `json:"failed"`
}

// TickUseCase applies time based transitions to every non terminal auction
type TickUseCase struct {
	engine *engine
}

func NewTickUseCase(e *engine) *TickUseCase {
	return &TickUseCase{engine: e}
}

// Execute evaluates every open auction at now. Auctions are processed concurrently
// and a failure on one of them is reported without stopping the others.
func (uc *TickUseCase) Execute(ctx context.Context, now time.Time) (*TickResult, error) {
	e := uc.engine
	start := time.Now()
	defer func() {
		if e.Metrics != nil {
			e.Metrics.SweepDuration.Observe(time.Since(start).Seconds())
		}
	}()

	listCtx, cancel := context.WithTimeout(ctx, e.Options.OperationTimeout)
	ids, err := e.Auctions.ListOpenIDs(listCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("tick use case: listing open auctions: %w", classify(err))
	}

	var (
		mu     sync.Mutex
		result = &TickResult{Checked: len(ids)}
		errs   []error
	)
	clock := func() time.Time { return now }

	var g errgroup.Group
	g.SetLimit(e.Options.SweepConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			n, err := uc.advance(ctx, id, clock)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				if n > 0 {
					result.Transitioned++
				}
			case errors.Is(err, domain.ErrAuctionNotFound):
				// removed between listing and locking
			default:
				result.Failed++
				errs = append(errs, fmt.Errorf("auction %s: %w", id, err))
				if e.Metrics != nil {
					e.Metrics.SweepFailures.Inc()
				}
				log.Warn("Tick failed for auction", zap.String("auctionID", id.String()), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if result.Transitioned > 0 || result.Failed > 0 {
		log.Info("Tick completed",
			zap.Int("checked", result.Checked),
			zap.Int("transitioned", result.Transitioned),
			zap.Int("failed", result.Failed),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	if len(errs) > 0 {
		return result, fmt.Errorf("tick use case: %w", errors.Join(errs...))
	}
	return result, nil
}

func (uc *TickUseCase) advance(ctx context.Context, id uuid.UUID, clock func() time.Time) (int, error) {
	e := uc.engine
	_, events, err := e.mutate(ctx, "tick", id, clock, func(a *domain.Auction, now time.Time) (*change, error) {
		return &change{events: a.Advance(now, e.Options.Settlement)}, nil
	})
	return len(events), err
}
