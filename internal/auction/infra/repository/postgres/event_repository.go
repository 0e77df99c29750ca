package postgres

import (
	"context"

	"github.com/cristianortiz/propertyauction/internal/auction/domain"
	"github.com/cristianortiz/propertyauction/internal/shared/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository implements domain.EventRepository on the append-only
// auction_events table.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Append inserts events. The (auction_id, seq) primary key rejects a second writer
// that raced on the same sequence number.
func (r *EventRepository) Append(ctx context.Context, events ...*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	query := `
        INSERT INTO auction_events (id, auction_id, seq, event_type, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(query, ev.ID, ev.AuctionID, ev.Seq, ev.Type, []byte(ev.Payload), ev.CreatedAt)
	}
	return mapError(sendBatch(ctx, r.pool, batch))
}

func (r *EventRepository) GetEventsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*domain.Event, error) {
	query := `
        SELECT id, auction_id, seq, event_type, payload, created_at
        FROM auction_events
        WHERE auction_id = $1
        ORDER BY seq ASC
    `
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		ev := &domain.Event{}
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.AuctionID, &ev.Seq, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
