package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

// fakeStore is an in-memory stand-in for the Postgres repositories that keeps
// the same guarded-transition semantics, so service tests can exercise real
// interleavings without a database.
type fakeStore struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*domain.Schedule
	bookings  map[uuid.UUID]*domain.Booking
	payments  map[uuid.UUID]*domain.Payment

	failCreate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		schedules: make(map[uuid.UUID]*domain.Schedule),
		bookings:  make(map[uuid.UUID]*domain.Booking),
		payments:  make(map[uuid.UUID]*domain.Payment),
	}
}

func (f *fakeStore) addSchedule(schedule domain.Schedule) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.schedules[schedule.ID] = &schedule
}

func copyBooking(b *domain.Booking) *domain.Booking {
	clone := *b
	clone.Tickets = make([]domain.Ticket, len(b.Tickets))
	copy(clone.Tickets, b.Tickets)
	return &clone
}

// --- ScheduleRepository ---

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	schedule, ok := f.schedules[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	clone := *schedule
	return &clone, nil
}

func (f *fakeStore) GetAvailability(ctx context.Context, id uuid.UUID) (*domain.ScheduleAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	schedule, ok := f.schedules[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	reserved := make([]string, 0)
	for _, b := range f.bookings {
		for _, t := range b.Tickets {
			if t.ScheduleID == id && !t.Status.IsTerminal() {
				reserved = append(reserved, t.SeatNumber)
			}
		}
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
		ReservedSeats:  reserved,
	}, nil
}

// --- BookingRepository ---

func (f *fakeStore) Create(ctx context.Context, booking *domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreate != nil {
		return f.failCreate
	}

	schedule, ok := f.schedules[booking.ScheduleID]
	if !ok {
		return domain.ErrRecordNotFound
	}

	if !schedule.IsActive {
		return domain.ErrScheduleInactive
	}

	if schedule.AvailableSeats < len(booking.Tickets) {
		return domain.ErrInsufficientCapacity
	}

	taken := make(map[string]bool)
	for _, b := range f.bookings {
		for _, t := range b.Tickets {
			if t.ScheduleID == booking.ScheduleID && !t.Status.IsTerminal() {
				taken[t.SeatNumber] = true
			}
		}
	}

	conflicts := make([]string, 0)
	for _, t := range booking.Tickets {
		if taken[t.SeatNumber] {
			conflicts = append(conflicts, t.SeatNumber)
		}
	}

	if len(conflicts) > 0 {
		return &domain.SeatUnavailableError{
			ScheduleID: booking.ScheduleID.String(),
			Seats:      conflicts,
		}
	}

	schedule.AvailableSeats -= len(booking.Tickets)
	booking.CreatedAt = time.Now().UTC()
	f.bookings[booking.ID] = copyBooking(booking)

	return nil
}

func (f *fakeStore) GetBookingByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	booking, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return copyBooking(booking), nil
}

func (f *fakeStore) GetSummariesByUserID(
	ctx context.Context,
	userID uuid.UUID,
	pagination domain.Pagination) ([]domain.BookingSummary, *domain.Metadata, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	summaries := make([]domain.BookingSummary, 0)

	for _, b := range f.bookings {
		if b.UserID != userID {
			continue
		}

		summaries = append(summaries, domain.BookingSummary{
			ID:               b.ID,
			BookingReference: b.BookingReference,
			ScheduleID:       b.ScheduleID,
			SeatCount:        len(b.Tickets),
			TotalAmount:      b.TotalAmount,
			Status:           b.Status,
			CreatedAt:        b.CreatedAt,
		})
	}

	return summaries, domain.NewMetadata(len(summaries), pagination.Page, pagination.PageSize), nil
}

func (f *fakeStore) Confirm(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	booking, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	if booking.Status != domain.BookingStatusPending {
		return nil, domain.ErrInvalidState
	}

	booking.Status = domain.BookingStatusConfirmed
	for i := range booking.Tickets {
		if booking.Tickets[i].Status == domain.TicketStatusReserved {
			booking.Tickets[i].Status = domain.TicketStatusConfirmed
		}
	}

	return copyBooking(booking), nil
}

func (f *fakeStore) Cancel(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	booking, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	if !booking.Status.CanTransitionTo(domain.BookingStatusCancelled) {
		return nil, domain.ErrInvalidState
	}

	released := 0
	for i := range booking.Tickets {
		if !booking.Tickets[i].Status.IsTerminal() {
			booking.Tickets[i].Status = domain.TicketStatusCancelled
			released++
		}
	}

	booking.Status = domain.BookingStatusCancelled
	f.schedules[booking.ScheduleID].AvailableSeats += released

	return copyBooking(booking), nil
}

func (f *fakeStore) Expire(ctx context.Context, id uuid.UUID, asOf time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	booking, ok := f.bookings[id]
	if !ok {
		return false, nil
	}

	if booking.Status != domain.BookingStatusPending || booking.ExpiresAt.After(asOf) {
		return false, nil
	}

	released := 0
	for i := range booking.Tickets {
		if booking.Tickets[i].Status == domain.TicketStatusReserved {
			booking.Tickets[i].Status = domain.TicketStatusExpired
			released++
		}
	}

	booking.Status = domain.BookingStatusExpired
	f.schedules[booking.ScheduleID].AvailableSeats += released

	return true, nil
}

func (f *fakeStore) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]uuid.UUID, 0)

	for id, b := range f.bookings {
		if b.Status == domain.BookingStatusPending && !b.ExpiresAt.After(asOf) {
			ids = append(ids, id)
		}

		if len(ids) == limit {
			break
		}
	}

	return ids, nil
}

// --- PaymentRepository ---

func (f *fakeStore) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	clone := *payment
	f.payments[payment.ID] = &clone

	return nil
}

func (f *fakeStore) GetPaymentByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var latest *domain.Payment

	for _, p := range f.payments {
		if p.BookingID != bookingID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}

	if latest == nil {
		return nil, domain.ErrRecordNotFound
	}

	clone := *latest
	return &clone, nil
}

func (f *fakeStore) UpdatePaymentStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.PaymentStatus,
	transactionID, errMsg string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[id]
	if !ok {
		return domain.ErrRecordNotFound
	}

	payment.Status = status
	if transactionID != "" {
		payment.TransactionID = &transactionID
	}
	if errMsg != "" {
		payment.ErrorMsg = &errMsg
	}

	return nil
}

// Adapters split the single fakeStore into the repository interfaces the
// service expects.

type fakeBookingRepo struct{ *fakeStore }

func (f fakeBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return f.GetBookingByID(ctx, id)
}

type fakePaymentRepo struct{ *fakeStore }

func (f fakePaymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	return f.CreatePayment(ctx, payment)
}

func (f fakePaymentRepo) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	return f.GetPaymentByBookingID(ctx, bookingID)
}

func (f fakePaymentRepo) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.PaymentStatus,
	transactionID, errMsg string) error {

	return f.UpdatePaymentStatus(ctx, id, status, transactionID, errMsg)
}

type fakeTicketRepo struct{}

func (fakeTicketRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return nil, domain.ErrRecordNotFound
}

func (fakeTicketRepo) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error) {
	return nil, nil
}

func (fakeTicketRepo) ExpireStale(ctx context.Context, asOf time.Time, limit int) (int, error) {
	return 0, nil
}

// fakeLocker mirrors the Redis locker's all-or-nothing contract in memory.
type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[string]string)}
}

func (l *fakeLocker) key(scheduleID uuid.UUID, seat string) string {
	return scheduleID.String() + ":" + seat
}

func (l *fakeLocker) Acquire(
	ctx context.Context,
	scheduleID uuid.UUID,
	seats []string,
	holder string,
	ttl time.Duration) error {

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, seat := range seats {
		if _, held := l.locks[l.key(scheduleID, seat)]; held {
			return &domain.SeatUnavailableError{
				ScheduleID: scheduleID.String(),
				Seats:      []string{seat},
			}
		}
	}

	for _, seat := range seats {
		l.locks[l.key(scheduleID, seat)] = holder
	}

	return nil
}

func (l *fakeLocker) Release(ctx context.Context, scheduleID uuid.UUID, seats []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, seat := range seats {
		delete(l.locks, l.key(scheduleID, seat))
	}
}

func (l *fakeLocker) HeldSeats(ctx context.Context, scheduleID uuid.UUID) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := scheduleID.String() + ":"
	seats := make([]string, 0)

	for key := range l.locks {
		if strings.HasPrefix(key, prefix) {
			seats = append(seats, strings.TrimPrefix(key, prefix))
		}
	}

	return seats, nil
}

func (l *fakeLocker) held(scheduleID uuid.UUID, seat string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.locks[l.key(scheduleID, seat)]
	return ok
}

// fakeProvider lets each test decide how the gateway behaves.
type fakeProvider struct {
	mu      sync.Mutex
	charge  func(ctx context.Context) (*domain.PaymentResult, error)
	charges int
}

func (p *fakeProvider) Charge(
	ctx context.Context,
	booking *domain.Booking,
	amount decimal.Decimal,
	currency string) (*domain.PaymentResult, error) {

	p.mu.Lock()
	p.charges++
	charge := p.charge
	p.mu.Unlock()

	if charge != nil {
		return charge(ctx)
	}

	return &domain.PaymentResult{TransactionID: fmt.Sprintf("txn_%d", p.charges)}, nil
}

// fakeNotifier records published events in order.
type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.BookingEvent
	err    error
}

func (n *fakeNotifier) Publish(ctx context.Context, event domain.BookingEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}

	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) eventTypes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	types := make([]string, len(n.events))
	for i, e := range n.events {
		types[i] = e.Type
	}
	return types
}
