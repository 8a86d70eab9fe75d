package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/barberlink/bookings/internal/domain"
	"github.com/barberlink/bookings/pkg/config"
	"github.com/barberlink/bookings/pkg/events"
)

type testEnv struct {
	repo    *memBookingRepo
	gateway *fakeGateway
	bus     *fakeBus
	svc     *bookingService
}

func newTestEnv(t *testing.T, shop *domain.Barbershop, services ...*domain.BarbershopService) *testEnv {
	t.Helper()

	serviceRepo := &stubServiceRepo{services: make(map[string]*domain.BarbershopService)}
	for _, s := range services {
		serviceRepo.services[s.ID] = s
	}

	shopRepo := &stubBarbershopRepo{shops: make(map[string]*domain.Barbershop)}
	if shop != nil {
		shopRepo.shops[shop.ID] = shop
	}

	repo := newMemBookingRepo()
	gateway := newFakeGateway()
	bus := &fakeBus{}
	cfg := &config.Config{}
	cfg.Server.AppURL = "http://localhost:8080"
	cfg.Stripe.Currency = "brl"
	cfg.Stripe.Timeout = 5 * time.Second

	reconciler := NewReconciler(repo, gateway, bus)
	svc := NewService(repo, serviceRepo, shopRepo, gateway, reconciler, bus, cfg).(*bookingService)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }

	return &testEnv{repo: repo, gateway: gateway, bus: bus, svc: svc}
}

func cashShop() *domain.Barbershop {
	return &domain.Barbershop{ID: "shop-1", Name: "Navalha de Ouro", PublicSlug: "navalha", OwnerID: "owner-1"}
}

func stripeShop() *domain.Barbershop {
	shop := cashShop()
	shop.StripeEnabled = true
	return shop
}

func haircut() *domain.BarbershopService {
	return &domain.BarbershopService{
		ID:                "svc-1",
		BarbershopID:      "shop-1",
		Name:              "Corte masculino",
		PriceInCents:      4500,
		DurationInMinutes: 30,
	}
}

func TestCreateBookingPastDate(t *testing.T) {
	env := newTestEnv(t, cashShop(), haircut())

	_, err := env.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-1",
		ScheduledAt: time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, domain.ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got %v", err)
	}
}

func TestCreateBookingUnknownService(t *testing.T) {
	env := newTestEnv(t, cashShop())

	_, err := env.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID:   "missing",
		UserID:      "user-1",
		ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestCreateBookingMalformedService(t *testing.T) {
	broken := haircut()
	broken.DurationInMinutes = 0
	env := newTestEnv(t, cashShop(), broken)

	_, err := env.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-1",
		ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestCreateBookingInvalidPricingForOnlinePayment(t *testing.T) {
	free := haircut()
	free.PriceInCents = 0
	env := newTestEnv(t, stripeShop(), free)

	_, err := env.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-1",
		ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, domain.ErrInvalidPricing) {
		t.Fatalf("expected ErrInvalidPricing, got %v", err)
	}
}

func TestCreateBookingZeroPriceAllowedWithoutStripe(t *testing.T) {
	free := haircut()
	free.PriceInCents = 0
	env := newTestEnv(t, cashShop(), free)

	b, err := env.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-1",
		ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.PaymentState != domain.PaymentConfirmed {
		t.Fatalf("expected confirmed booking, got %s", b.PaymentState)
	}
}

func TestCreateBookingInPersonIsConfirmedImmediately(t *testing.T) {
	env := newTestEnv(t, cashShop(), haircut())

	b, err := env.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID:     "svc-1",
		UserID:        "user-1",
		CustomerEmail: "joao@example.com",
		ScheduledAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if b.PaymentMethod != domain.PayInPerson {
		t.Errorf("payment method = %s, want in_person", b.PaymentMethod)
	}
	if b.PaymentState != domain.PaymentConfirmed {
		t.Errorf("payment state = %s, want confirmed", b.PaymentState)
	}
	if b.CheckoutSessionID != nil {
		t.Errorf("unexpected checkout session %q", *b.CheckoutSessionID)
	}
	if b.DurationMinutes != 30 || b.PriceInCents != 4500 {
		t.Errorf("snapshot mismatch: duration=%d price=%d", b.DurationMinutes, b.PriceInCents)
	}
	if env.bus.count(events.BookingCreated) != 1 {
		t.Errorf("booking.created published %d times, want 1", env.bus.count(events.BookingCreated))
	}
	if env.bus.count(events.BookingConfirmed) != 1 {
		t.Errorf("booking.confirmed published %d times, want 1", env.bus.count(events.BookingConfirmed))
	}
}

func TestCreateBookingOnlineStartsPending(t *testing.T) {
	env := newTestEnv(t, stripeShop(), haircut())

	b, err := env.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-1",
		ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if b.PaymentMethod != domain.PayOnline {
		t.Errorf("payment method = %s, want online", b.PaymentMethod)
	}
	if b.PaymentState != domain.PaymentPending {
		t.Errorf("payment state = %s, want pending", b.PaymentState)
	}
	if b.CheckoutSessionID == nil || *b.CheckoutSessionID == "" {
		t.Error("expected a checkout session id")
	}
	if env.bus.count(events.PaymentSessionCreated) != 1 {
		t.Errorf("payment.session.created published %d times, want 1", env.bus.count(events.PaymentSessionCreated))
	}
	if env.bus.count(events.BookingConfirmed) != 0 {
		t.Error("pending booking must not publish booking.confirmed")
	}
}

func TestCreateBookingGatewayFailureLeavesNoBooking(t *testing.T) {
	env := newTestEnv(t, stripeShop(), haircut())
	env.gateway.createErr = errors.New("stripe is down")

	_, err := env.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-1",
		ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, domain.ErrPaymentSetupFailed) {
		t.Fatalf("expected ErrPaymentSetupFailed, got %v", err)
	}

	day, _ := env.repo.ListActiveByDay(context.Background(), "shop-1", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if len(day) != 0 {
		t.Fatalf("expected no bookings after gateway failure, got %d", len(day))
	}
}

func TestCreateBookingSlotTaken(t *testing.T) {
	env := newTestEnv(t, cashShop(), haircut())
	ctx := context.Background()

	if _, err := env.svc.CreateBooking(ctx, CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-1",
		ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// Starts mid-way through the first booking's interval.
	_, err := env.svc.CreateBooking(ctx, CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-2",
		ScheduledAt: time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC),
	})
	if !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// Back to back is fine under half-open intervals.
	if _, err := env.svc.CreateBooking(ctx, CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-3",
		ScheduledAt: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("adjacent booking: %v", err)
	}
}

func TestCreateBookingSameInstantDifferentOffsets(t *testing.T) {
	env := newTestEnv(t, cashShop(), haircut())
	ctx := context.Background()

	utc := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if _, err := env.svc.CreateBooking(ctx, CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-1",
		ScheduledAt: utc,
	}); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// 07:00-03:00 is the same absolute instant as 10:00Z; it must lose
	// regardless of the offset the client expressed it in.
	brt := utc.In(time.FixedZone("BRT", -3*60*60))
	_, err := env.svc.CreateBooking(ctx, CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-2",
		ScheduledAt: brt,
	})
	if !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken for same instant in another offset, got %v", err)
	}

	// An overlap that only exists once offsets are normalized is caught too.
	overlap := time.Date(2026, 3, 2, 7, 15, 0, 0, time.FixedZone("BRT", -3*60*60))
	_, err = env.svc.CreateBooking(ctx, CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-3",
		ScheduledAt: overlap,
	})
	if !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken for overlapping offset booking, got %v", err)
	}
}

func TestCreateBookingConcurrentSameSlot(t *testing.T) {
	env := newTestEnv(t, cashShop(), haircut())
	scheduledAt := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.CreateBooking(context.Background(), CreateRequest{
				ServiceID:   "svc-1",
				UserID:      "user-1",
				ScheduledAt: scheduledAt,
			})
		}(i)
	}
	wg.Wait()

	var ok, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrSlotTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || taken != 1 {
		t.Fatalf("expected exactly one winner, got ok=%d taken=%d", ok, taken)
	}
}

func TestCancelBookingByOwner(t *testing.T) {
	env := newTestEnv(t, cashShop(), haircut())
	ctx := context.Background()

	b, err := env.svc.CreateBooking(ctx, CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-1",
		ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	cancelled, err := env.svc.CancelBooking(ctx, b.ID, "someone-else")
	if err != nil || cancelled {
		t.Fatalf("non-owner cancel = (%v, %v), want (false, nil)", cancelled, err)
	}

	cancelled, err = env.svc.CancelBooking(ctx, b.ID, "user-1")
	if err != nil || !cancelled {
		t.Fatalf("owner cancel = (%v, %v), want (true, nil)", cancelled, err)
	}
	if env.bus.count(events.BookingCancelled) != 1 {
		t.Errorf("booking.cancelled published %d times, want 1", env.bus.count(events.BookingCancelled))
	}

	// The slot is free again.
	if _, err := env.svc.CreateBooking(ctx, CreateRequest{
		ServiceID:   "svc-1",
		UserID:      "user-2",
		ScheduledAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("rebooking released slot: %v", err)
	}
}
