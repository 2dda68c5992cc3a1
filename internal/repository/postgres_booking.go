package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

type PostgresBookingRepository struct {
	db *pgxpool.Pool
}

func NewPostgresBookingRepository(db *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db: db,
	}
}

// Create persists the booking and its tickets and deducts the seats, all or
// nothing. Tickets are inserted in caller order; the partial unique index on
// (schedule_id, seat_number) over non-terminal tickets is what makes two
// concurrent attempts for the same seat mutually exclusive.
func (p *PostgresBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		if err := reserveSeatsTx(ctx, tx, booking.ScheduleID, len(booking.Tickets)); err != nil {
			return err
		}

		query := `
			INSERT INTO bookings (id, booking_reference, user_id, schedule_id,
			                      total_amount, status, contact_phone, contact_email, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at
		`

		err := tx.QueryRow(
			ctx,
			query,
			booking.ID,
			booking.BookingReference,
			booking.UserID,
			booking.ScheduleID,
			booking.TotalAmount,
			booking.Status,
			booking.ContactPhone,
			booking.ContactEmail,
			booking.ExpiresAt).Scan(&booking.CreatedAt)

		if err != nil {
			return err
		}

		for i := range booking.Tickets {
			ticket := &booking.Tickets[i]

			query = `
				INSERT INTO tickets (id, schedule_id, booking_id, seat_number,
				                     seat_type, price, status, reserved_until)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING created_at
			`

			err = tx.QueryRow(
				ctx,
				query,
				ticket.ID,
				ticket.ScheduleID,
				ticket.BookingID,
				ticket.SeatNumber,
				ticket.SeatType,
				ticket.Price,
				ticket.Status,
				ticket.ReservedUntil).Scan(&ticket.CreatedAt)

			if err != nil {
				return err
			}
		}

		return nil
	})

	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		// The transaction rolled back; report exactly which of the requested
		// seats are taken so the caller can pick different ones.
		seats, seatsErr := p.conflictingSeats(ctx, booking)
		if seatsErr != nil {
			return seatsErr
		}

		return &domain.SeatUnavailableError{
			ScheduleID: booking.ScheduleID.String(),
			Seats:      seats,
		}
	}

	return err
}

func (p *PostgresBookingRepository) conflictingSeats(ctx context.Context, booking *domain.Booking) ([]string, error) {
	requested := make([]string, len(booking.Tickets))
	for i, t := range booking.Tickets {
		requested[i] = t.SeatNumber
	}

	query := `
		SELECT seat_number
		FROM tickets
		WHERE schedule_id = $1
		  AND seat_number = ANY($2)
		  AND status IN ('RESERVED', 'CONFIRMED')
	`

	rows, err := p.db.Query(ctx, query, booking.ScheduleID, requested)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	taken := make(map[string]bool)

	for rows.Next() {
		var seatNumber string

		if err := rows.Scan(&seatNumber); err != nil {
			return nil, err
		}

		taken[seatNumber] = true
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the caller's seat order in the report.
	seats := make([]string, 0, len(taken))
	for _, seatNumber := range requested {
		if taken[seatNumber] {
			seats = append(seats, seatNumber)
		}
	}

	return seats, nil
}

func (p *PostgresBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := `
		SELECT id, booking_reference, user_id, schedule_id, total_amount,
		       status, contact_phone, contact_email, expires_at, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`

	var booking domain.Booking

	err := p.db.QueryRow(ctx, query, id).Scan(
		&booking.ID,
		&booking.BookingReference,
		&booking.UserID,
		&booking.ScheduleID,
		&booking.TotalAmount,
		&booking.Status,
		&booking.ContactPhone,
		&booking.ContactEmail,
		&booking.ExpiresAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	tickets, err := p.retrieveTickets(ctx, id)
	if err != nil {
		return nil, err
	}

	booking.Tickets = tickets

	return &booking, nil
}

func (p *PostgresBookingRepository) retrieveTickets(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error) {
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

func (p *PostgresBookingRepository) GetSummariesByUserID(
	ctx context.Context,
	userID uuid.UUID,
	pagination domain.Pagination) ([]domain.BookingSummary, *domain.Metadata, error) {

	query := `
		SELECT
			COUNT(*) OVER(),
			b.id,
			b.booking_reference,
			b.schedule_id,
			s.departure_time,
			(SELECT COUNT(*) FROM tickets t WHERE t.booking_id = b.id),
			b.total_amount,
			b.status,
			b.created_at
		FROM bookings b
		JOIN schedules s ON b.schedule_id = s.id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, userID, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	summaries := make([]domain.BookingSummary, 0)
	totalRecords := 0

	for rows.Next() {
		var summary domain.BookingSummary

		err := rows.Scan(
			&totalRecords,
			&summary.ID,
			&summary.BookingReference,
			&summary.ScheduleID,
			&summary.DepartureTime,
			&summary.SeatCount,
			&summary.TotalAmount,
			&summary.Status,
			&summary.CreatedAt,
		)
		if err != nil {
			return nil, nil, err
		}

		summaries = append(summaries, summary)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	metadata := domain.NewMetadata(totalRecords, pagination.Page, pagination.PageSize)

	return summaries, metadata, nil
}

func (p *PostgresBookingRepository) Confirm(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings
			SET status = 'CONFIRMED', updated_at = NOW()
			WHERE id = $1 AND status = 'PENDING'
		`

		tag, err := tx.Exec(ctx, query, id)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return p.classifyMissedGuard(ctx, tx, id)
		}

		query = `
			UPDATE tickets
			SET status = 'CONFIRMED', updated_at = NOW()
			WHERE booking_id = $1 AND status = 'RESERVED'
		`

		_, err = tx.Exec(ctx, query, id)

		return err
	})

	if err != nil {
		return nil, err
	}

	return p.GetByID(ctx, id)
}

func (p *PostgresBookingRepository) Cancel(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		var status domain.BookingStatus
		var scheduleID uuid.UUID

		query := `
			SELECT status, schedule_id
			FROM bookings
			WHERE id = $1
			FOR UPDATE
		`

		err := tx.QueryRow(ctx, query, id).Scan(&status, &scheduleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRecordNotFound
			}

			return err
		}

		if !status.CanTransitionTo(domain.BookingStatusCancelled) {
			return domain.ErrInvalidState
		}

		query = `
			UPDATE tickets
			SET status = 'CANCELLED', updated_at = NOW()
			WHERE booking_id = $1 AND status IN ('RESERVED', 'CONFIRMED')
		`

		tag, err := tx.Exec(ctx, query, id)
		if err != nil {
			return err
		}

		if err := releaseSeatsTx(ctx, tx, scheduleID, int(tag.RowsAffected())); err != nil {
			return err
		}

		query = `
			UPDATE bookings
			SET status = 'CANCELLED', updated_at = NOW()
			WHERE id = $1
		`

		_, err = tx.Exec(ctx, query, id)

		return err
	})

	if err != nil {
		return nil, err
	}

	return p.GetByID(ctx, id)
}

// Expire is the sweeper's transition. The WHERE clause is the race guard: a
// booking that was confirmed or cancelled a moment earlier simply no longer
// matches, and the sweep reports false instead of overwriting it.
func (p *PostgresBookingRepository) Expire(ctx context.Context, id uuid.UUID, asOf time.Time) (bool, error) {
	expired := false

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		var scheduleID uuid.UUID

		query := `
			UPDATE bookings
			SET status = 'EXPIRED', updated_at = NOW()
			WHERE id = $1 AND status = 'PENDING' AND expires_at <= $2
			RETURNING schedule_id
		`

		err := tx.QueryRow(ctx, query, id, asOf).Scan(&scheduleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}

			return err
		}

		query = `
			UPDATE tickets
			SET status = 'EXPIRED', updated_at = NOW()
			WHERE booking_id = $1 AND status = 'RESERVED'
		`

		tag, err := tx.Exec(ctx, query, id)
		if err != nil {
			return err
		}

		if err := releaseSeatsTx(ctx, tx, scheduleID, int(tag.RowsAffected())); err != nil {
			return err
		}

		expired = true

		return nil
	})

	return expired, err
}

func (p *PostgresBookingRepository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM bookings
		WHERE status = 'PENDING' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := p.db.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)

	for rows.Next() {
		var id uuid.UUID

		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (p *PostgresBookingRepository) classifyMissedGuard(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var status domain.BookingStatus

	err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRecordNotFound
		}

		return err
	}

	return domain.ErrInvalidState
}
