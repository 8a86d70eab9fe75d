package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/barberlink/bookings/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	BookingCreated   = "booking.created"
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"

	PaymentSessionCreated = "payment.session.created"
)

// Event payloads
type BookingCreatedEvent struct {
	BookingID     string    `json:"booking_id"`
	BarbershopID  string    `json:"barbershop_id"`
	ServiceID     string    `json:"service_id"`
	CustomerEmail string    `json:"customer_email"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	PaymentMethod string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
}

type BookingConfirmedEvent struct {
	BookingID     string    `json:"booking_id"`
	BarbershopID  string    `json:"barbershop_id"`
	CustomerEmail string    `json:"customer_email"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

type BookingCancelledEvent struct {
	BookingID    string    `json:"booking_id"`
	BarbershopID string    `json:"barbershop_id"`
	Reason       string    `json:"reason"`
	CancelledAt  time.Time `json:"cancelled_at"`
}

type PaymentSessionCreatedEvent struct {
	BookingID     string `json:"booking_id"`
	BarbershopID  string `json:"barbershop_id"`
	SessionID     string `json:"session_id"`
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
}
