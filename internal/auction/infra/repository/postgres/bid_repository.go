package postgres

import (
	"context"
	"errors"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/cristianortiz/propertyauction/internal/shared/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BidRepository implements domain.BidRepository interface
type BidRepository struct {
	pool *pgxpool.Pool
}

// NewBidRepository creates new instance of BidRepository.
func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

// Save inserts bids in one batch, joining the transaction in ctx when there is one.
func (r *BidRepository) Save(ctx context.Context, bids ...*domain.Bid) error {
	if len(bids) == 0 {
		return nil
	}
	query := `
        INSERT INTO bids (id, auction_id, bidder_id, amount, auto_bid_max, proxy, seq, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	batch := &pgx.Batch{}
	for _, bid := range bids {
		batch.Queue(query,
			bid.ID,
			bid.AuctionID,
			bid.BidderID,
			bid.Amount,
			bid.AutoBidMax,
			bid.Proxy,
			bid.Seq,
			bid.CreatedAt,
		)
	}
	return mapError(sendBatch(ctx, r.pool, batch))
}

func (r *BidRepository) GetBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, auto_bid_max, proxy, seq, created_at
        FROM bids
        WHERE auction_id = $1
        ORDER BY seq ASC
    `
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bids, nil
}

func (r *BidRepository) GetLatestBidByAuctionID(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, auto_bid_max, proxy, seq, created_at
        FROM bids
        WHERE auction_id = $1
        ORDER BY seq DESC
        LIMIT 1
    `
	bid, err := scanBid(db.Conn(ctx, r.pool).QueryRow(ctx, query, auctionID))
	if err != nil {
		//there is no bid for this auction yet
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return bid, nil
}

func scanBid(row pgx.Row) (*domain.Bid, error) {
	bid := &domain.Bid{}
	err := row.Scan(
		&bid.ID,
		&bid.AuctionID,
		&bid.BidderID,
		&bid.Amount,
		&bid.AutoBidMax,
		&bid.Proxy,
		&bid.Seq,
		&bid.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// sendBatch runs batch on the transaction in ctx, or on the pool.
func sendBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch) error {
	var results pgx.BatchResults
	if tx, ok := db.Conn(ctx, pool).(pgx.Tx); ok {
		results = tx.SendBatch(ctx, batch)
	} else {
		results = pool.SendBatch(ctx, batch)
	}
	for range batch.Len() {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}
