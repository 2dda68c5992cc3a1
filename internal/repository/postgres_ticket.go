package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

type PostgresTicketRepository struct {
	db *pgxpool.Pool
}

func NewPostgresTicketRepository(db *pgxpool.Pool) *PostgresTicketRepository {
	return &PostgresTicketRepository{
		db: db,
	}
}

func (p *PostgresTicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	query := `
		SELECT id, schedule_id, booking_id, seat_number, seat_type, price,
		       status, reserved_until, created_at, updated_at
		FROM tickets
		WHERE id = $1
	`

	var ticket domain.Ticket

	err := p.db.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.ScheduleID,
		&ticket.BookingID,
		&ticket.SeatNumber,
		&ticket.SeatType,
		&ticket.Price,
		&ticket.Status,
		&ticket.ReservedUntil,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &ticket, nil
}

func (p *PostgresTicketRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error) {
	query := `
		SELECT id, schedule_id, booking_id, seat_number, seat_type, price,
		       status, reserved_until, created_at, updated_at
		FROM tickets
		WHERE booking_id = $1
		ORDER BY created_at, seat_number
	`

	rows, err := p.db.Query(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0)

	for rows.Next() {
		var ticket domain.Ticket

		err := rows.Scan(
			&ticket.ID,
			&ticket.ScheduleID,
			&ticket.BookingID,
			&ticket.SeatNumber,
			&ticket.SeatType,
			&ticket.Price,
			&ticket.Status,
			&ticket.ReservedUntil,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		)

		if err != nil {
			return nil, err
		}

		tickets = append(tickets, ticket)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return tickets, nil
}

// ExpireStale releases RESERVED tickets whose hold deadline has passed while
// their booking already left PENDING. Normal expiry goes through the booking
// transition; rows matched here only exist after a partial failure, so each
// one is worth the released seat. Idempotent: a second run matches nothing.
func (p *PostgresTicketRepository) ExpireStale(ctx context.Context, asOf time.Time, limit int) (int, error) {
	expired := 0

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE tickets t
			SET status = 'EXPIRED', updated_at = NOW()
			FROM bookings b
			WHERE t.id IN (
				SELECT t2.id
				FROM tickets t2
				JOIN bookings b2 ON t2.booking_id = b2.id
				WHERE t2.status = 'RESERVED'
				  AND t2.reserved_until <= $1
				  AND b2.status <> 'PENDING'
				ORDER BY t2.reserved_until
				LIMIT $2
				FOR UPDATE OF t2 SKIP LOCKED
			)
			  AND t.booking_id = b.id
			RETURNING t.schedule_id
		`

		rows, err := tx.Query(ctx, query, asOf, limit)
		if err != nil {
			return err
		}

		released := make(map[uuid.UUID]int)

		for rows.Next() {
			var scheduleID uuid.UUID

			if err := rows.Scan(&scheduleID); err != nil {
				rows.Close()
				return err
			}

			released[scheduleID]++
		}

		rows.Close()

		if err = rows.Err(); err != nil {
			return err
		}

		for scheduleID, count := range released {
			if err := releaseSeatsTx(ctx, tx, scheduleID, count); err != nil {
				return err
			}

			expired += count
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	return expired, nil
}
