package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/application"
	"github.com/stretchr/testify/assert"
)

type fakeTicker struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakeTicker) Tick(_ context.Context, now time.Time) (*application.TickResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	if f.err != nil {
		return &application.TickResult{Failed: 1}, f.err
	}
	return &application.TickResult{}, nil
}

func (f *fakeTicker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSweeper_TicksUntilCancelled(t *testing.T) {
	fixed := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	ticker := &fakeTicker{}
	s := NewSweeper(ticker, 5*time.Millisecond, func() time.Time { return fixed })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return ticker.count() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}

	ticker.mu.Lock()
	defer ticker.mu.Unlock()
	for _, c := range ticker.calls {
		assert.Equal(t, fixed, c)
	}
}

func TestSweeper_KeepsGoingAfterErrors(t *testing.T) {
	ticker := &fakeTicker{err: errors.New("store down")}
	s := NewSweeper(ticker, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	assert.Eventually(t, func() bool { return ticker.count() >= 2 }, time.Second, time.Millisecond)
}
