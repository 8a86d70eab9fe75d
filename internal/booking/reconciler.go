package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/barberlink/bookings/internal/domain"
	"github.com/barberlink/bookings/internal/payments"
	"github.com/barberlink/bookings/internal/repo/postgres"
	"github.com/barberlink/bookings/pkg/events"
	"github.com/barberlink/bookings/pkg/logger"
)

// Reconciler settles pending online payments against the gateway. Both the
// lazy path (before schedule reads) and the webhook path land on the same
// transition logic, so either may run first and repeats are harmless.
type Reconciler struct {
	bookings postgres.BookingRepository
	gateway  payments.Gateway
	bus      events.Publisher
}

func NewReconciler(bookings postgres.BookingRepository, gateway payments.Gateway, bus events.Publisher) *Reconciler {
	return &Reconciler{bookings: bookings, gateway: gateway, bus: bus}
}

// ReconcilePending checks every pending booking of the barbershop. Gateway
// failures on one booking are logged and do not stop the others.
func (r *Reconciler) ReconcilePending(ctx context.Context, barbershopID string) error {
	pending, err := r.bookings.ListPendingPayment(ctx, barbershopID)
	if err != nil {
		return fmt.Errorf("list pending bookings: %w", err)
	}

	for i := range pending {
		if err := r.reconcileBooking(ctx, &pending[i]); err != nil {
			logger.ErrorContext(ctx, "Failed to reconcile pending booking",
				"error", err, "booking_id", pending[i].ID, "barbershop_id", barbershopID)
		}
	}
	return nil
}

// ReconcileSession settles the single booking tied to a checkout session.
// Unknown sessions are ignored; the webhook may outrun our insert commit.
func (r *Reconciler) ReconcileSession(ctx context.Context, sessionID string) error {
	b, err := r.bookings.GetByCheckoutSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load booking by session: %w", err)
	}
	if b == nil {
		logger.WarnContext(ctx, "Checkout session has no booking", "session_id", sessionID)
		return nil
	}
	return r.reconcileBooking(ctx, b)
}

func (r *Reconciler) reconcileBooking(ctx context.Context, b *domain.Booking) error {
	if b.PaymentState != domain.PaymentPending || b.CheckoutSessionID == nil {
		return nil
	}

	status, err := r.gateway.GetSessionStatus(ctx, *b.CheckoutSessionID)
	if err != nil {
		return fmt.Errorf("get session status: %w", err)
	}

	switch status {
	case payments.SessionPaid:
		applied, err := r.bookings.ConfirmPendingPayment(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("confirm booking: %w", err)
		}
		if applied {
			r.publishConfirmed(ctx, b)
		}
	case payments.SessionExpired, payments.SessionCanceled:
		applied, err := r.bookings.CancelPendingPayment(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if applied {
			r.publishCancelled(ctx, b)
		}
	default:
		// Session still open; leave the booking pending and holding its slot.
	}
	return nil
}

func (r *Reconciler) publishConfirmed(ctx context.Context, b *domain.Booking) {
	event := events.BookingConfirmedEvent{
		BookingID:     b.ID,
		BarbershopID:  b.BarbershopID,
		CustomerEmail: b.CustomerEmail,
		ScheduledAt:   b.ScheduledAt,
		ConfirmedAt:   time.Now(),
	}
	if err := r.bus.Publish(ctx, events.BookingConfirmed, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking confirmed event", "error", err, "booking_id", b.ID)
	}
}

func (r *Reconciler) publishCancelled(ctx context.Context, b *domain.Booking) {
	event := events.BookingCancelledEvent{
		BookingID:    b.ID,
		BarbershopID: b.BarbershopID,
		Reason:       "payment_not_completed",
		CancelledAt:  time.Now(),
	}
	if err := r.bus.Publish(ctx, events.BookingCancelled, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking cancelled event", "error", err, "booking_id", b.ID)
	}
}
