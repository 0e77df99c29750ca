package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/google/uuid"
)

// Store is an in-process implementation of the auction repositories and TxManager.
// Writes made inside WithinTx are staged and applied atomically on commit, with the
// same version and sequence checks the postgres repositories enforce.
type Store struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*domain.Auction
	bids     map[uuid.UUID][]*domain.Bid
	events   map[uuid.UUID][]*domain.Event
}

type update struct {
	auction  *domain.Auction
	expected int64
}

type tx struct {
	creates []*domain.Auction
	updates []update
	bids    []*domain.Bid
	events  []*domain.Event
}

type txKey struct{}

func NewStore() *Store {
	return &Store{
		auctions: make(map[uuid.UUID]*domain.Auction),
		bids:     make(map[uuid.UUID][]*domain.Bid),
		events:   make(map[uuid.UUID][]*domain.Event),
	}
}

// WithinTx implements domain.TxManager. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}
	t := &tx{}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	// a transaction whose deadline passed is rolled back, like a database would
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) stage(ctx context.Context, f func(t *tx)) error {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		f(t)
		return nil
	}
	t := &tx{}
	f(t)
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := make(map[uuid.UUID]int64)
	current := func(id uuid.UUID) (int64, bool) {
		if v, ok := versions[id]; ok {
			return v, true
		}
		a, ok := s.auctions[id]
		if !ok {
			return 0, false
		}
		return a.Version, true
	}
	for _, a := range t.creates {
		if _, exists := current(a.ID); exists {
			return fmt.Errorf("%w: auction %s already exists", domain.ErrConflict, a.ID)
		}
		versions[a.ID] = a.Version
	}
	for _, u := range t.updates {
		v, ok := current(u.auction.ID)
		if !ok {
			return domain.ErrAuctionNotFound
		}
		if v != u.expected {
			return fmt.Errorf("%w: auction %s is at version %d, expected %d", domain.ErrConflict, u.auction.ID, v, u.expected)
		}
		versions[u.auction.ID] = u.auction.Version
	}
	lastSeq := make(map[uuid.UUID]int64)
	for _, ev := range t.events {
		last, ok := lastSeq[ev.AuctionID]
		if !ok {
			if evs := s.events[ev.AuctionID]; len(evs) > 0 {
				last = evs[len(evs)-1].Seq
			}
		}
		if ev.Seq <= last {
			return fmt.Errorf("%w: event seq %d already exists for auction %s", domain.ErrConflict, ev.Seq, ev.AuctionID)
		}
		lastSeq[ev.AuctionID] = ev.Seq
	}

	for _, a := range t.creates {
		s.auctions[a.ID] = a.Clone()
	}
	for _, u := range t.updates {
		s.auctions[u.auction.ID] = u.auction.Clone()
	}
	for _, b := range t.bids {
		c := *b
		s.bids[b.AuctionID] = append(s.bids[b.AuctionID], &c)
	}
	for _, ev := range t.events {
		c := *ev
		s.events[ev.AuctionID] = append(s.events[ev.AuctionID], &c)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, a *domain.Auction) error {
	c := a.Clone()
	return s.stage(ctx, func(t *tx) { t.creates = append(t.creates, c) })
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return a.Clone(), nil
}

// GetForUpdate reads the committed state; exclusivity comes from the caller's
// per-auction lock and the version check on commit.
func (s *Store) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return s.GetByID(ctx, id)
}

func (s *Store) Update(ctx context.Context, a *domain.Auction, expectedVersion int64) error {
	c := a.Clone()
	return s.stage(ctx, func(t *tx) { t.updates = append(t.updates, update{auction: c, expected: expectedVersion}) })
}

func (s *Store) ListOpenIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.auctions))
	for id, a := range s.auctions {
		if !a.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (s *Store) Save(ctx context.Context, bids ...*domain.Bid) error {
	staged := make([]*domain.Bid, 0, len(bids))
	for _, b := range bids {
		c := *b
		staged = append(staged, &c)
	}
	return s.stage(ctx, func(t *tx) { t.bids = append(t.bids, staged...) })
}

func (s *Store) GetBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Bid, 0, len(s.bids[auctionID]))
	for _, b := range s.bids[auctionID] {
		c := *b
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) GetLatestBidByAuctionID(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bids := s.bids[auctionID]
	if len(bids) == 0 {
		return nil, nil
	}
	c := *bids[len(bids)-1]
	return &c, nil
}

func (s *Store) Append(ctx context.Context, events ...*domain.Event) error {
	staged := make([]*domain.Event, 0, len(events))
	for _, ev := range events {
		c := *ev
		staged = append(staged, &c)
	}
	return s.stage(ctx, func(t *tx) { t.events = append(t.events, staged...) })
}

func (s *Store) GetEventsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Event, 0, len(s.events[auctionID]))
	for _, ev := range s.events[auctionID] {
		c := *ev
		out = append(out, &c)
	}
	return out, nil
}
