package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/cristianortiz/propertyauction/internal/shared/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuctionRepository implements domain.AuctionRepository interface
type AuctionRepository struct {
	pool *pgxpool.Pool
}

// NewAuctionRepository creates a new instance of AuctionRepository
func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

const auctionColumns = `id, property_id, auction_type, preview_start, start_time, end_time, time_extension,
        reserve_price, buy_now_price, increment_fixed, increment_percent, commission_rate,
        current_bid, bid_count, leader_id, leader_max, winner_id, status, version, created_at, updated_at`

func (r *AuctionRepository) Create(ctx context.Context, a *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
    `
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		a.ID,
		a.PropertyID,
		a.Type,
		a.PreviewStart,
		a.StartTime,
		a.EndTime,
		int64(a.TimeExtension),
		a.ReservePrice,
		a.BuyNowPrice,
		a.Increment.Fixed,
		a.Increment.Percent,
		a.CommissionRate,
		a.CurrentBid,
		a.BidCount,
		a.LeaderID,
		a.LeaderMax,
		a.WinnerID,
		a.Status,
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return mapError(err)
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetForUpdate takes a row lock held until the surrounding transaction ends.
func (r *AuctionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	if !db.InTx(ctx) {
		return nil, errors.New("auction repository: GetForUpdate requires a transaction")
	}
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *AuctionRepository) getOne(ctx context.Context, query string, id uuid.UUID) (*domain.Auction, error) {
	a, err := scanAuction(db.Conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, mapError(err)
	}
	return a, nil
}

// Update writes the mutable columns guarded by the optimistic version.
func (r *AuctionRepository) Update(ctx context.Context, a *domain.Auction, expectedVersion int64) error {
	query := `
        UPDATE auctions
        SET
            end_time = $2,
            current_bid = $3,
            bid_count = $4,
            leader_id = $5,
            leader_max = $6,
            winner_id = $7,
            status = $8,
            version = $9,
            updated_at = $10
        WHERE id = $1 AND version = $11
    `
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		a.ID,
		a.EndTime,
		a.CurrentBid,
		a.BidCount,
		a.LeaderID,
		a.LeaderMax,
		a.WinnerID,
		a.Status,
		a.Version,
		a.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: auction %s is no longer at version %d", domain.ErrConflict, a.ID, expectedVersion)
	}
	return nil
}

func (r *AuctionRepository) ListOpenIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
        SELECT id
        FROM auctions
        WHERE status IN ($1, $2)
        ORDER BY id
    `
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, domain.StatusPreview, domain.StatusLive)
	if err != nil {
		return nil, mapError(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	a := &domain.Auction{}
	var extension int64
	err := row.Scan(
		&a.ID,
		&a.PropertyID,
		&a.Type,
		&a.PreviewStart,
		&a.StartTime,
		&a.EndTime,
		&extension,
		&a.ReservePrice,
		&a.BuyNowPrice,
		&a.Increment.Fixed,
		&a.Increment.Percent,
		&a.CommissionRate,
		&a.CurrentBid,
		&a.BidCount,
		&a.LeaderID,
		&a.LeaderMax,
		&a.WinnerID,
		&a.Status,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.TimeExtension = time.Duration(extension)
	return a, nil
}

// mapError translates postgres conflicts into domain.ErrConflict and rejected
// rows into domain.ErrInvalidAuction.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01": // unique_violation, serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Message)
		case "23514", "22003": // check_violation, numeric_value_out_of_range
			return fmt.Errorf("%w: %s", domain.ErrInvalidAuction, pgErr.Message)
		}
	}
	return err
}
