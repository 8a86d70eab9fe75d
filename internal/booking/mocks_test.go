package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/barberlink/bookings/internal/domain"
	"github.com/barberlink/bookings/internal/payments"
	"github.com/barberlink/bookings/internal/schedule"
)

// memBookingRepo is an in-memory BookingRepository. CreateInSlot holds the
// mutex across check and insert, mirroring the transactional repository.
type memBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: make(map[string]*domain.Booking)}
}

func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func (r *memBookingRepo) CreateInSlot(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing []schedule.Interval
	for _, other := range r.bookings {
		if other.BarbershopID != b.BarbershopID || !other.Active() || !sameDay(other.ScheduledAt, b.ScheduledAt) {
			continue
		}
		start := schedule.MinuteOfDay(other.ScheduledAt)
		existing = append(existing, schedule.Interval{StartMinute: start, EndMinute: start + other.DurationMinutes})
	}
	if schedule.Overlaps(schedule.MinuteOfDay(b.ScheduledAt), b.DurationMinutes, existing) {
		return nil, domain.ErrSlotTaken
	}

	stored := *b
	stored.CreatedAt = time.Now()
	r.bookings[stored.ID] = &stored

	created := stored
	return &created, nil
}

func (r *memBookingRepo) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (r *memBookingRepo) GetByCheckoutSession(_ context.Context, sessionID string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.CheckoutSessionID != nil && *b.CheckoutSessionID == sessionID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memBookingRepo) ListActiveByDay(_ context.Context, barbershopID string, day time.Time) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.bookings {
		if b.BarbershopID == barbershopID && b.Active() && sameDay(b.ScheduledAt, day) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memBookingRepo) ListPendingPayment(_ context.Context, barbershopID string) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.bookings {
		if b.BarbershopID == barbershopID && b.CancelledAt == nil && b.PaymentState == domain.PaymentPending {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memBookingRepo) ConfirmPendingPayment(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.PaymentState != domain.PaymentPending {
		return false, nil
	}
	b.PaymentState = domain.PaymentConfirmed
	return true, nil
}

func (r *memBookingRepo) CancelPendingPayment(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.PaymentState != domain.PaymentPending {
		return false, nil
	}
	now := time.Now()
	b.PaymentState = domain.PaymentCancelled
	b.CancelledAt = &now
	return true, nil
}

func (r *memBookingRepo) CancelByOwner(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || !b.IsOwner(userID) || !b.Active() {
		return false, nil
	}
	now := time.Now()
	b.CancelledAt = &now
	return true, nil
}

type stubServiceRepo struct {
	services map[string]*domain.BarbershopService
}

func (r *stubServiceRepo) GetByID(_ context.Context, id string) (*domain.BarbershopService, error) {
	return r.services[id], nil
}

type stubBarbershopRepo struct {
	shops map[string]*domain.Barbershop
}

func (r *stubBarbershopRepo) GetByID(_ context.Context, id string) (*domain.Barbershop, error) {
	return r.shops[id], nil
}

func (r *stubBarbershopRepo) GetByPublicSlug(_ context.Context, slug string) (*domain.Barbershop, error) {
	for _, shop := range r.shops {
		if shop.PublicSlug == slug {
			return shop, nil
		}
	}
	return nil, nil
}

func (r *stubBarbershopRepo) EnsurePublicSlug(_ context.Context, id string) (string, error) {
	shop, ok := r.shops[id]
	if !ok {
		return "", errors.New("barbershop not found")
	}
	return shop.PublicSlug, nil
}

// fakeGateway counts sessions it creates and serves statuses from a map.
type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	statuses  map[string]payments.SessionStatus
	statusErr map[string]error
	created   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		statuses:  make(map[string]payments.SessionStatus),
		statusErr: make(map[string]error),
	}
}

func (g *fakeGateway) CreateSession(_ context.Context, _ payments.CreateSessionInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.created++
	id := fmt.Sprintf("cs_test_%d", g.created)
	g.statuses[id] = payments.SessionOpen
	return id, nil
}

func (g *fakeGateway) GetSessionStatus(_ context.Context, sessionID string) (payments.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.statusErr[sessionID]; err != nil {
		return "", err
	}
	status, ok := g.statuses[sessionID]
	if !ok {
		return "", fmt.Errorf("unknown session %s", sessionID)
	}
	return status, nil
}

func (g *fakeGateway) setStatus(sessionID string, status payments.SessionStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[sessionID] = status
}

// fakeBus records published subjects.
type fakeBus struct {
	mu       sync.Mutex
	subjects []string
}

func (b *fakeBus) Publish(_ context.Context, subject string, _ interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) count(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subjects {
		if s == subject {
			n++
		}
	}
	return n
}
