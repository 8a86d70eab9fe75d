package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/barberlink/bookings/internal/domain"
	"github.com/barberlink/bookings/internal/schedule"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	// CreateInSlot inserts the booking only if its interval is still free on
	// the barbershop's calendar day; returns domain.ErrSlotTaken otherwise.
	CreateInSlot(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	GetByCheckoutSession(ctx context.Context, sessionID string) (*domain.Booking, error)
	ListActiveByDay(ctx context.Context, barbershopID string, day time.Time) ([]domain.Booking, error)
	ListPendingPayment(ctx context.Context, barbershopID string) ([]domain.Booking, error)
	ConfirmPendingPayment(ctx context.Context, id string) (bool, error)
	CancelPendingPayment(ctx context.Context, id string) (bool, error)
	CancelByOwner(ctx context.Context, id, userID string) (bool, error)
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingCols = `id, barbershop_id, user_id, service_id, customer_email,
scheduled_at, duration_minutes, price_in_cents,
payment_method, payment_state, checkout_session_id,
created_at, cancelled_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.BarbershopID, &b.UserID, &b.ServiceID, &b.CustomerEmail,
		&b.ScheduledAt, &b.DurationMinutes, &b.PriceInCents,
		&b.PaymentMethod, &b.PaymentState, &b.CheckoutSessionID,
		&b.CreatedAt, &b.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// dayBounds normalizes to UTC so a client-supplied offset and the session
// zone pgx scans into agree on which day a booking belongs to.
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func (r *bookingRepository) CreateInSlot(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Serialize concurrent inserts per barbershop for the life of this
	// transaction; the lock releases on commit or rollback.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, b.BarbershopID); err != nil {
		return nil, fmt.Errorf("acquire barbershop lock: %w", err)
	}

	dayStart, dayEnd := dayBounds(b.ScheduledAt)

	const dayQuery = `SELECT scheduled_at, duration_minutes FROM bookings
		WHERE barbershop_id = $1
		  AND scheduled_at >= $2 AND scheduled_at < $3
		  AND cancelled_at IS NULL
		  AND payment_state != 'cancelled'`

	rows, err := tx.Query(ctx, dayQuery, b.BarbershopID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	var existing []schedule.Interval
	for rows.Next() {
		var scheduledAt time.Time
		var durationMinutes int
		if err := rows.Scan(&scheduledAt, &durationMinutes); err != nil {
			rows.Close()
			return nil, err
		}
		startMinute := schedule.MinuteOfDay(scheduledAt)
		existing = append(existing, schedule.Interval{
			StartMinute: startMinute,
			EndMinute:   startMinute + durationMinutes,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if schedule.Overlaps(schedule.MinuteOfDay(b.ScheduledAt), b.DurationMinutes, existing) {
		return nil, domain.ErrSlotTaken
	}

	const insert = `INSERT INTO bookings (
		id, barbershop_id, user_id, service_id, customer_email,
		scheduled_at, duration_minutes, price_in_cents,
		payment_method, payment_state, checkout_session_id
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	RETURNING ` + bookingCols

	created, err := scanBooking(tx.QueryRow(ctx, insert,
		b.ID, b.BarbershopID, b.UserID, b.ServiceID, b.CustomerEmail,
		b.ScheduledAt, b.DurationMinutes, b.PriceInCents,
		b.PaymentMethod, b.PaymentState, b.CheckoutSessionID,
	))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) GetByCheckoutSession(ctx context.Context, sessionID string) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE checkout_session_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, sessionID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) ListActiveByDay(ctx context.Context, barbershopID string, day time.Time) ([]domain.Booking, error) {
	dayStart, dayEnd := dayBounds(day)

	const q = `SELECT ` + bookingCols + ` FROM bookings
		WHERE barbershop_id = $1
		  AND scheduled_at >= $2 AND scheduled_at < $3
		  AND cancelled_at IS NULL
		  AND payment_state != 'cancelled'
		ORDER BY scheduled_at ASC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, barbershopID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *bookingRepository) ListPendingPayment(ctx context.Context, barbershopID string) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings
		WHERE barbershop_id = $1
		  AND payment_state = 'pending'
		  AND cancelled_at IS NULL
		ORDER BY created_at ASC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, barbershopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *bookingRepository) ConfirmPendingPayment(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE bookings SET payment_state='confirmed' WHERE id=$1 AND payment_state='pending'`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *bookingRepository) CancelPendingPayment(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE bookings SET payment_state='cancelled', cancelled_at=now() WHERE id=$1 AND payment_state='pending'`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *bookingRepository) CancelByOwner(ctx context.Context, id, userID string) (bool, error) {
	const q = `UPDATE bookings SET cancelled_at=now()
		WHERE id=$1 AND user_id=$2 AND cancelled_at IS NULL AND payment_state != 'cancelled'`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id, userID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
