package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

// SeatLocker is the fast-path guard in front of the database: it rejects a
// booking attempt for a seat another attempt is mid-flight on, before any
// transaction starts. The partial unique index in Postgres remains the
// authority; losing a lock early only costs a friendlier error.
type SeatLocker interface {
	// Acquire takes every seat lock or none. On conflict it returns a
	// SeatUnavailableError naming the first contested seat.
	Acquire(ctx context.Context, scheduleID uuid.UUID, seats []string, holder string, ttl time.Duration) error

	// Release drops the locks in reverse acquisition order. Best effort: the
	// TTL cleans up anything a failed release leaves behind.
	Release(ctx context.Context, scheduleID uuid.UUID, seats []string)

	// HeldSeats lists seats with a currently valid lock on the schedule,
	// pruning entries whose lock already expired.
	HeldSeats(ctx context.Context, scheduleID uuid.UUID) ([]string, error)
}

// lockSeatsScript takes all requested seat locks atomically. ARGV[1] is the
// holder, ARGV[2] the TTL in seconds, ARGV[3..] the seat numbers in the same
// order as KEYS, so a conflict can name the seat instead of just the key.
var lockSeatsScript = redis.NewScript(`
	for i = 1, #KEYS do
		if redis.call("EXISTS", KEYS[i]) == 1 then
			return {err = "seat already locked:" .. ARGV[i + 2]}
		end
	end

	for i = 1, #KEYS do
		redis.call("SET", KEYS[i], ARGV[1], "EX", ARGV[2])
	end

	return "OK"
`)

// heldSeatsScript walks the per-schedule seat set, dropping members whose
// lock key has expired and returning the ones still held.
var heldSeatsScript = redis.NewScript(`
	local setKey = KEYS[1]
	local scheduleId = ARGV[1]
	local cursor = "0"
	local expired = {}
	local valid = {}

	repeat
		local result = redis.call("SSCAN", setKey, cursor, "COUNT", 100)
		cursor = result[1]

		for _, seat in ipairs(result[2]) do
			local lockKey = "seat_lock:" .. scheduleId .. ":" .. seat
			if redis.call("EXISTS", lockKey) == 0 then
				table.insert(expired, seat)
			else
				table.insert(valid, seat)
			end
		end
	until cursor == "0"

	if #expired > 0 then
		redis.call("SREM", setKey, unpack(expired))
	end

	return valid
`)

type RedisSeatLocker struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewRedisSeatLocker(client redis.UniversalClient, logger *slog.Logger) *RedisSeatLocker {
	return &RedisSeatLocker{
		client: client,
		logger: logger,
	}
}

func (l *RedisSeatLocker) Acquire(
	ctx context.Context,
	scheduleID uuid.UUID,
	seats []string,
	holder string,
	ttl time.Duration) error {

	// EX takes whole seconds and rejects zero, so sub-second TTLs round up.
	ttlSeconds := int64((ttl + time.Second - 1) / time.Second)
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	keys := make([]string, len(seats))
	args := make([]interface{}, 0, len(seats)+2)
	args = append(args, holder, ttlSeconds)

	for i, seat := range seats {
		keys[i] = seatLockKey(scheduleID, seat)
		args = append(args, seat)
	}

	err := lockSeatsScript.Run(ctx, l.client, keys, args...).Err()
	if err != nil {
		if redis.HasErrorPrefix(err, "seat already locked") {
			seat := strings.TrimPrefix(err.Error(), "seat already locked:")

			return &domain.SeatUnavailableError{
				ScheduleID: scheduleID.String(),
				Seats:      []string{seat},
			}
		}

		return err
	}

	seatMembers := make([]interface{}, len(seats))
	for i, seat := range seats {
		seatMembers[i] = seat
	}

	pipe := l.client.TxPipeline()
	pipe.SAdd(ctx, seatSetKey(scheduleID), seatMembers...)
	pipe.Expire(ctx, seatSetKey(scheduleID), ttl+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("failed to track seat locks in schedule set", "schedule_id", scheduleID, "error", err)
	}

	return nil
}

func (l *RedisSeatLocker) Release(ctx context.Context, scheduleID uuid.UUID, seats []string) {
	lockKeys := make([]string, len(seats))
	seatMembers := make([]interface{}, len(seats))

	// Reverse acquisition order.
	for i := range seats {
		j := len(seats) - 1 - i
		lockKeys[i] = seatLockKey(scheduleID, seats[j])
		seatMembers[i] = seats[j]
	}

	pipe := l.client.TxPipeline()
	pipe.Del(ctx, lockKeys...)
	pipe.SRem(ctx, seatSetKey(scheduleID), seatMembers...)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("failed to release seat locks", "schedule_id", scheduleID, "error", err)
	}
}

func (l *RedisSeatLocker) HeldSeats(ctx context.Context, scheduleID uuid.UUID) ([]string, error) {
	result, err := heldSeatsScript.Run(
		ctx,
		l.client,
		[]string{seatSetKey(scheduleID)},
		scheduleID.String()).StringSlice()

	if err != nil {
		return nil, err
	}

	return result, nil
}

func seatLockKey(scheduleID uuid.UUID, seatNumber string) string {
	return fmt.Sprintf("seat_lock:%s:%s", scheduleID, seatNumber)
}

func seatSetKey(scheduleID uuid.UUID) string {
	return fmt.Sprintf("seat_locks:%s", scheduleID)
}
