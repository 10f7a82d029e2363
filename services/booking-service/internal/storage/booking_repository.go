package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/velvetchat/velvet-api/libs/db"
	"github.com/velvetchat/velvet-api/libs/outbox"
	"github.com/velvetchat/velvet-api/services/booking-service/internal/model"
)

// ErrSlotTaken is returned when another active booking already holds the
// creator's slot. The partial unique index on (creator_code, scheduled_at)
// for non-cancelled rows makes the insert itself the authoritative check.
var ErrSlotTaken = errors.New("slot already booked")

// ErrAlreadyCancelled is returned when cancelling a booking twice.
var ErrAlreadyCancelled = errors.New("booking already cancelled")

type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, ob *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: ob}
}

// Create persists the booking and its domain event in one transaction.
// The booking's ID and CreatedAt are filled in on success.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking, evt outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings
			(user_id, creator_code, creator_name, duration_mins, scheduled_at, end_time, status,
			 room_url, host_room_url, meeting_id, checkout_session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
		RETURNING id, created_at
	`, b.UserID, b.CreatorCode, b.CreatorName, b.DurationMins, b.ScheduledAt, b.EndTime, b.Status,
		b.RoomURL, b.HostRoomURL, b.MeetingID, b.CheckoutSessionID).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return err
	}

	evt.AggregateID = b.ID
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SlotTaken reports whether an active booking already holds the slot.
// Advisory only; the unique index checked in Create stays authoritative.
func (r *BookingRepository) SlotTaken(ctx context.Context, creatorCode string, at time.Time) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE creator_code = $1 AND scheduled_at = $2 AND status <> 'cancelled'
		)
	`, creatorCode, at).Scan(&taken)
	return taken, err
}

// Cancel marks the booking cancelled and records the event built from the
// post-cancel row. eventFn sees the booking with Status and CancelledAt set.
func (r *BookingRepository) Cancel(ctx context.Context, id string, eventFn func(b model.Booking) outbox.Event) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := r.getForUpdate(ctx, tx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status == model.StatusCancelled {
		return b, ErrAlreadyCancelled
	}

	var cancelledAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = now()
		WHERE id = $1
		RETURNING cancelled_at
	`, id).Scan(&cancelledAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.StatusCancelled
	b.CancelledAt = &cancelledAt

	if err := r.outbox.Insert(ctx, tx, eventFn(b)); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// BookedTimes returns the start times of active bookings for the creator
// from "from" onwards. Cancelled bookings free their slot.
func (r *BookingRepository) BookedTimes(ctx context.Context, creatorCode string, from time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_at
		FROM bookings
		WHERE creator_code = $1
			AND status IN ('confirmed', 'pending')
			AND scheduled_at >= $2
		ORDER BY scheduled_at
	`, creatorCode, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Booking, error) {
	return r.list(ctx, `WHERE user_id = $1`, userID, limit)
}

func (r *BookingRepository) ListByCreator(ctx context.Context, creatorCode string, limit int) ([]model.Booking, error) {
	return r.list(ctx, `WHERE creator_code = $1`, creatorCode, limit)
}

func (r *BookingRepository) list(ctx context.Context, where, arg string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, creator_code, creator_name, duration_mins, scheduled_at, end_time,
			status, room_url, host_room_url, meeting_id, COALESCE(checkout_session_id, ''),
			cancelled_at, created_at
		FROM bookings
		`+where+`
		ORDER BY scheduled_at DESC
		LIMIT $2
	`, arg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *BookingRepository) getForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, user_id, creator_code, creator_name, duration_mins, scheduled_at, end_time,
			status, room_url, host_room_url, meeting_id, COALESCE(checkout_session_id, ''),
			cancelled_at, created_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanBooking(row)
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var cancelledAt *time.Time
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.CreatorCode,
		&b.CreatorName,
		&b.DurationMins,
		&b.ScheduledAt,
		&b.EndTime,
		&b.Status,
		&b.RoomURL,
		&b.HostRoomURL,
		&b.MeetingID,
		&b.CheckoutSessionID,
		&cancelledAt,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.CancelledAt = cancelledAt
	return b, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
