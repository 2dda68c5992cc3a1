package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

type PostgresScheduleRepository struct {
	db *pgxpool.Pool
}

func NewPostgresScheduleRepository(db *pgxpool.Pool) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{
		db: db,
	}
}

func (p *PostgresScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := `
		SELECT id, route_id, departure_time, arrival_time, total_seats,
		       available_seats, base_price, is_active, created_at, updated_at
		FROM schedules
		WHERE id = $1
	`

	var schedule domain.Schedule

	err := p.db.QueryRow(ctx, query, id).Scan(
		&schedule.ID,
		&schedule.RouteID,
		&schedule.DepartureTime,
		&schedule.ArrivalTime,
		&schedule.TotalSeats,
		&schedule.AvailableSeats,
		&schedule.BasePrice,
		&schedule.IsActive,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &schedule, nil
}

func (p *PostgresScheduleRepository) GetAvailability(ctx context.Context, id uuid.UUID) (*domain.ScheduleAvailability, error) {
	schedule, err := p.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT seat_number
		FROM tickets
		WHERE schedule_id = $1 AND status IN ('RESERVED', 'CONFIRMED')
		ORDER BY seat_number
	`

	rows, err := p.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservedSeats := make([]string, 0)

	for rows.Next() {
		var seatNumber string

		if err := rows.Scan(&seatNumber); err != nil {
			return nil, err
		}

		reservedSeats = append(reservedSeats, seatNumber)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return &domain.ScheduleAvailability{
		ScheduleID:     schedule.ID,
		RouteID:        schedule.RouteID,
		DepartureTime:  schedule.DepartureTime,
		ArrivalTime:    schedule.ArrivalTime,
		TotalSeats:     schedule.TotalSeats,
		AvailableSeats: schedule.AvailableSeats,
		BasePrice:      schedule.BasePrice,
		IsActive:       schedule.IsActive,
		ReservedSeats:  reservedSeats,
	}, nil
}

// reserveSeatsTx and releaseSeatsTx are the only two places in the codebase
// that touch schedules.available_seats. Both run inside the booking
// repository's transactions so the counter moves atomically with the ticket
// rows it accounts for.

func reserveSeatsTx(ctx context.Context, tx pgx.Tx, scheduleID uuid.UUID, count int) error {
	query := `
		UPDATE schedules
		SET available_seats = available_seats - $2, updated_at = NOW()
		WHERE id = $1 AND is_active AND available_seats >= $2
	`

	tag, err := tx.Exec(ctx, query, scheduleID, count)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	// The guarded update matched nothing; find out why.
	var isActive bool

	err = tx.QueryRow(ctx, `SELECT is_active FROM schedules WHERE id = $1`, scheduleID).Scan(&isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRecordNotFound
		}

		return err
	}

	if !isActive {
		return domain.ErrScheduleInactive
	}

	return domain.ErrInsufficientCapacity
}

func releaseSeatsTx(ctx context.Context, tx pgx.Tx, scheduleID uuid.UUID, count int) error {
	if count == 0 {
		return nil
	}

	query := `
		UPDATE schedules
		SET available_seats = available_seats + $2, updated_at = NOW()
		WHERE id = $1 AND available_seats + $2 <= total_seats
	`

	tag, err := tx.Exec(ctx, query, scheduleID, count)
	if err != nil {
		return err
	}

	if tag.RowsAffected() != 1 {
		// Releasing more seats than were ever deducted means the counter
		// bookkeeping is broken somewhere; surface it loudly.
		return fmt.Errorf("%w: releasing %d seats on schedule %s", domain.ErrCapacityExceeded, count, scheduleID)
	}

	return nil
}
