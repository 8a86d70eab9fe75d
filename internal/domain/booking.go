package domain

import (
	"strings"
	"time"
)

type PaymentMethod string

const (
	PayInPerson PaymentMethod = "in_person"
	PayOnline   PaymentMethod = "online"
)

type PaymentState string

const (
	PaymentNone      PaymentState = "none"
	PaymentPending   PaymentState = "pending"
	PaymentConfirmed PaymentState = "confirmed"
	PaymentCancelled PaymentState = "cancelled"
)

func ParsePaymentState(s string) (PaymentState, bool) {
	switch PaymentState(s) {
	case PaymentNone, PaymentPending, PaymentConfirmed, PaymentCancelled:
		return PaymentState(s), true
	default:
		return "", false
	}
}

type Booking struct {
	ID                string        `json:"id"`
	BarbershopID      string        `json:"barbershop_id"`
	UserID            string        `json:"user_id"`
	ServiceID         string        `json:"service_id"`
	CustomerEmail     string        `json:"customer_email,omitempty"`
	ScheduledAt       time.Time     `json:"scheduled_at"`
	DurationMinutes   int           `json:"duration_minutes"`
	PriceInCents      int64         `json:"price_in_cents"`
	PaymentMethod     PaymentMethod `json:"payment_method"`
	PaymentState      PaymentState  `json:"payment_state"`
	CheckoutSessionID *string       `json:"checkout_session_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty"`
}

// Active reports whether the booking still occupies its slot.
// Cancelled bookings release the slot for rebooking.
func (b *Booking) Active() bool {
	return b.CancelledAt == nil && b.PaymentState != PaymentCancelled
}

func (b *Booking) IsOwner(userID string) bool {
	return b.UserID != "" && b.UserID == userID
}

type BarbershopService struct {
	ID                string     `json:"id"`
	BarbershopID      string     `json:"barbershop_id"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	PriceInCents      int64      `json:"price_in_cents"`
	DurationInMinutes int        `json:"duration_in_minutes"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

// Business rules
const MinServiceDurationMinutes = 5

// HasInvalidShape reports whether the service record is too malformed to
// accept bookings against: empty name, negative price, or a duration below
// the minimum slot size.
func (s *BarbershopService) HasInvalidShape() bool {
	if strings.TrimSpace(s.Name) == "" {
		return true
	}
	if s.PriceInCents < 0 {
		return true
	}
	if s.DurationInMinutes < MinServiceDurationMinutes {
		return true
	}
	return false
}

type Barbershop struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PublicSlug    string `json:"public_slug"`
	OwnerID       string `json:"owner_id"`
	StripeEnabled bool   `json:"stripe_enabled"`
}
