package notify

import (
	"context"
	"encoding/json"

	"github.com/barberlink/bookings/internal/repo/postgres"
	"github.com/barberlink/bookings/pkg/events"
	"github.com/barberlink/bookings/pkg/logger"
)

// Worker listens for confirmed bookings and emails the customer. It runs in
// a queue group so horizontally scaled instances share the load.
type Worker struct {
	bus         events.Subscriber
	barbershops postgres.BarbershopRepository
	mailer      Mailer
}

func NewWorker(bus events.Subscriber, barbershops postgres.BarbershopRepository, mailer Mailer) *Worker {
	return &Worker{bus: bus, barbershops: barbershops, mailer: mailer}
}

func (w *Worker) Start() error {
	return w.bus.QueueSubscribe(events.BookingConfirmed, "notify", w.handleConfirmed)
}

func (w *Worker) handleConfirmed(msg *events.Message) {
	var event events.BookingConfirmedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to decode booking confirmed event", "error", err, "subject", msg.Subject)
		return
	}

	if event.CustomerEmail == "" {
		return
	}

	barbershopName := "your barbershop"
	shop, err := w.barbershops.GetByID(context.Background(), event.BarbershopID)
	if err != nil {
		logger.Error("Failed to load barbershop for confirmation email",
			"error", err, "barbershop_id", event.BarbershopID)
	} else if shop != nil {
		barbershopName = shop.Name
	}

	if err := w.mailer.SendBookingConfirmed(event.CustomerEmail, barbershopName, event.ScheduledAt); err != nil {
		logger.Error("Failed to send booking confirmation email",
			"error", err, "booking_id", event.BookingID)
		return
	}

	logger.Info("Booking confirmation email sent", "booking_id", event.BookingID)
}
