package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repositories take the transaction from ctx when one was opened by a TxManager,
// otherwise they run against the store directly.

type AuctionRepository interface {
	Create(ctx context.Context, a *Auction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	// GetForUpdate loads the auction locking it for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Auction, error)
	// Update persists a, failing with ErrConflict unless the stored version is
	// expectedVersion.
	Update(ctx context.Context, a *Auction, expectedVersion int64) error
	// ListOpenIDs returns the ids of every auction not in a terminal status.
	ListOpenIDs(ctx context.Context) ([]uuid.UUID, error)
}

type BidRepository interface {
	Save(ctx context.Context, bids ...*Bid) error
	GetBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)
	GetLatestBidByAuctionID(ctx context.Context, auctionID uuid.UUID) (*Bid, error)
}

type EventRepository interface {
	// Append stores events; a duplicate (auction, seq) fails with ErrConflict.
	Append(ctx context.Context, events ...*Event) error
	GetEventsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*Event, error)
}

type TxManager interface {
	// WithinTx runs fn in a transaction committed when fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
