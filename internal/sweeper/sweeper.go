// Package sweeper turns timed-out holds back into available inventory. It is
// the only component that drives timeout transitions; every transition it
// requests is guarded, so racing with a user-initiated confirm or cancel is
// a no-op rather than an overwrite.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

// BookingExpirer is the slice of the orchestrator the sweeper needs.
type BookingExpirer interface {
	ExpireBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

type Sweeper struct {
	bookings  domain.BookingRepository
	tickets   domain.TicketRepository
	expirer   BookingExpirer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int

	now func() time.Time
}

func New(
	bookings domain.BookingRepository,
	tickets domain.TicketRepository,
	expirer BookingExpirer,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int) *Sweeper {

	return &Sweeper{
		bookings:  bookings,
		tickets:   tickets,
		expirer:   expirer,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. A sweep that is in
// progress when cancellation arrives is finished, not abandoned, so no entity
// is left mid-transition.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started", "interval", s.interval, "batch_size", s.batchSize)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			// Detach from ctx so an in-flight sweep survives shutdown.
			s.Sweep(context.WithoutCancel(ctx))
		}
	}
}

// Sweep processes one batch of expired bookings and stale tickets. Errors on
// individual entities are logged and skipped; one poisoned booking must not
// stall the rest of the sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	asOf := s.now()

	ids, err := s.bookings.FindExpired(ctx, asOf, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list expired bookings", "error", err)
		return
	}

	expired := 0

	for _, id := range ids {
		ok, err := s.expirer.ExpireBooking(ctx, id)
		if err != nil {
			s.logger.Error("failed to expire booking", "booking_id", id, "error", err)
			continue
		}

		if ok {
			expired++
		}
	}

	stale, err := s.tickets.ExpireStale(ctx, asOf, s.batchSize)
	if err != nil {
		s.logger.Error("failed to expire stale tickets", "error", err)
	}

	if expired > 0 || stale > 0 {
		s.logger.Info("sweep finished", "expired_bookings", expired, "stale_tickets", stale)
	}
}
