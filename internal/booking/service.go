// Package booking holds the reservation coordinator and the payment
// reconciler: creating bookings without double-booking a barbershop's
// calendar, and settling pending online payments against the gateway.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/barberlink/bookings/internal/domain"
	"github.com/barberlink/bookings/internal/payments"
	"github.com/barberlink/bookings/internal/repo/postgres"
	"github.com/barberlink/bookings/internal/schedule"
	"github.com/barberlink/bookings/pkg/config"
	"github.com/barberlink/bookings/pkg/events"
	"github.com/barberlink/bookings/pkg/logger"
	"github.com/google/uuid"
)

type CreateRequest struct {
	ServiceID     string
	UserID        string
	CustomerEmail string
	ScheduledAt   time.Time
}

type Service interface {
	// CreateBooking reserves a slot for the service's barbershop. Expected
	// failures come back as the domain sentinel errors.
	CreateBooking(ctx context.Context, req CreateRequest) (*domain.Booking, error)
	// CancelBooking cancels the subject's own booking, releasing the slot.
	CancelBooking(ctx context.Context, id, userID string) (bool, error)
	// DaySchedule reconciles pending payments for the barbershop and then
	// returns its active bookings for the given day.
	DaySchedule(ctx context.Context, barbershopID string, day time.Time) ([]domain.Booking, error)
}

type bookingService struct {
	bookings    postgres.BookingRepository
	services    postgres.ServiceRepository
	barbershops postgres.BarbershopRepository
	gateway     payments.Gateway
	reconciler  *Reconciler
	bus         events.Publisher
	config      *config.Config
	now         func() time.Time
}

func NewService(
	bookings postgres.BookingRepository,
	services postgres.ServiceRepository,
	barbershops postgres.BarbershopRepository,
	gateway payments.Gateway,
	reconciler *Reconciler,
	bus events.Publisher,
	cfg *config.Config,
) Service {
	return &bookingService{
		bookings:    bookings,
		services:    services,
		barbershops: barbershops,
		gateway:     gateway,
		reconciler:  reconciler,
		bus:         bus,
		config:      cfg,
		now:         time.Now,
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, req CreateRequest) (*domain.Booking, error) {
	if req.ScheduledAt.Before(s.now()) {
		return nil, domain.ErrPastDate
	}

	svc, err := s.services.GetByID(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	if svc == nil {
		return nil, domain.ErrServiceUnavailable
	}
	if svc.HasInvalidShape() {
		logger.ErrorContext(ctx, "Service has invalid data, refusing booking",
			"service_id", svc.ID, "barbershop_id", svc.BarbershopID)
		return nil, domain.ErrServiceUnavailable
	}

	shop, err := s.barbershops.GetByID(ctx, svc.BarbershopID)
	if err != nil {
		return nil, fmt.Errorf("load barbershop: %w", err)
	}
	if shop == nil {
		return nil, domain.ErrServiceUnavailable
	}

	if shop.StripeEnabled && svc.PriceInCents < 1 {
		logger.ErrorContext(ctx, "Online payment requested with non-positive amount",
			"service_id", svc.ID, "price_in_cents", svc.PriceInCents)
		return nil, domain.ErrInvalidPricing
	}

	// Pre-check against the current day schedule for a fast answer. The
	// authoritative check runs again inside CreateInSlot's transaction.
	existing, err := s.bookings.ListActiveByDay(ctx, shop.ID, req.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("load day schedule: %w", err)
	}
	if schedule.Overlaps(schedule.MinuteOfDay(req.ScheduledAt), svc.DurationInMinutes, dayIntervals(existing)) {
		return nil, domain.ErrSlotTaken
	}

	booking := &domain.Booking{
		ID:              uuid.NewString(),
		BarbershopID:    shop.ID,
		UserID:          req.UserID,
		ServiceID:       svc.ID,
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: svc.DurationInMinutes,
		PriceInCents:    svc.PriceInCents,
		PaymentMethod:   domain.PayInPerson,
		PaymentState:    domain.PaymentConfirmed,
	}

	if shop.StripeEnabled {
		sessionID, err := s.createCheckoutSession(ctx, shop, svc, booking)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to create payment session",
				"error", err, "service_id", svc.ID, "barbershop_id", shop.ID)
			return nil, domain.ErrPaymentSetupFailed
		}
		booking.PaymentMethod = domain.PayOnline
		booking.PaymentState = domain.PaymentPending
		booking.CheckoutSessionID = &sessionID
	}

	created, err := s.bookings.CreateInSlot(ctx, booking)
	if err != nil {
		if errors.Is(err, domain.ErrSlotTaken) {
			return nil, domain.ErrSlotTaken
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.publishCreated(ctx, created)

	return created, nil
}

func (s *bookingService) createCheckoutSession(ctx context.Context, shop *domain.Barbershop, svc *domain.BarbershopService, b *domain.Booking) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Stripe.Timeout)
	defer cancel()

	description := strings.TrimSpace(svc.Description)
	if description == "" {
		description = fmt.Sprintf("%s service", svc.Name)
	}

	return s.gateway.CreateSession(ctx, payments.CreateSessionInput{
		AmountInCents: svc.PriceInCents,
		Currency:      s.config.Stripe.Currency,
		Name:          fmt.Sprintf("%s - %s", shop.Name, svc.Name),
		Description:   description,
		SuccessURL:    s.config.Server.AppURL,
		CancelURL:     s.config.Server.AppURL,
		Metadata: map[string]string{
			"booking_id":    b.ID,
			"barbershop_id": shop.ID,
			"service_id":    svc.ID,
			"user_id":       b.UserID,
			"scheduled_at":  b.ScheduledAt.Format(time.RFC3339),
		},
	})
}

func (s *bookingService) publishCreated(ctx context.Context, b *domain.Booking) {
	event := events.BookingCreatedEvent{
		BookingID:     b.ID,
		BarbershopID:  b.BarbershopID,
		ServiceID:     b.ServiceID,
		CustomerEmail: b.CustomerEmail,
		ScheduledAt:   b.ScheduledAt,
		PaymentMethod: string(b.PaymentMethod),
		CreatedAt:     b.CreatedAt,
	}
	if err := s.bus.Publish(ctx, events.BookingCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err, "booking_id", b.ID)
	}

	switch b.PaymentState {
	case domain.PaymentConfirmed:
		confirmed := events.BookingConfirmedEvent{
			BookingID:     b.ID,
			BarbershopID:  b.BarbershopID,
			CustomerEmail: b.CustomerEmail,
			ScheduledAt:   b.ScheduledAt,
			ConfirmedAt:   time.Now(),
		}
		if err := s.bus.Publish(ctx, events.BookingConfirmed, confirmed); err != nil {
			logger.ErrorContext(ctx, "Failed to publish booking confirmed event", "error", err, "booking_id", b.ID)
		}
	case domain.PaymentPending:
		session := events.PaymentSessionCreatedEvent{
			BookingID:     b.ID,
			BarbershopID:  b.BarbershopID,
			AmountInCents: b.PriceInCents,
			Currency:      s.config.Stripe.Currency,
		}
		if b.CheckoutSessionID != nil {
			session.SessionID = *b.CheckoutSessionID
		}
		if err := s.bus.Publish(ctx, events.PaymentSessionCreated, session); err != nil {
			logger.ErrorContext(ctx, "Failed to publish payment session event", "error", err, "booking_id", b.ID)
		}
	}
}

func (s *bookingService) CancelBooking(ctx context.Context, id, userID string) (bool, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load booking: %w", err)
	}
	if b == nil {
		return false, nil
	}

	cancelled, err := s.bookings.CancelByOwner(ctx, id, userID)
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}

	if cancelled {
		event := events.BookingCancelledEvent{
			BookingID:    id,
			BarbershopID: b.BarbershopID,
			Reason:       "user_requested",
			CancelledAt:  time.Now(),
		}
		if err := s.bus.Publish(ctx, events.BookingCancelled, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish booking cancelled event", "error", err, "booking_id", id)
		}
	}

	return cancelled, nil
}

func (s *bookingService) DaySchedule(ctx context.Context, barbershopID string, day time.Time) ([]domain.Booking, error) {
	// Lazy reconciliation: settle pending payments before exposing the
	// schedule. Failures are logged and never break the read.
	if err := s.reconciler.ReconcilePending(ctx, barbershopID); err != nil {
		logger.ErrorContext(ctx, "Failed to reconcile pending bookings before schedule read",
			"error", err, "barbershop_id", barbershopID)
	}

	return s.bookings.ListActiveByDay(ctx, barbershopID, day)
}

func dayIntervals(bookings []domain.Booking) []schedule.Interval {
	intervals := make([]schedule.Interval, 0, len(bookings))
	for _, b := range bookings {
		start := schedule.MinuteOfDay(b.ScheduledAt)
		intervals = append(intervals, schedule.Interval{
			StartMinute: start,
			EndMinute:   start + b.DurationMinutes,
		})
	}
	return intervals
}
