package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/barberlink/bookings/internal/booking"
	"github.com/barberlink/bookings/internal/domain"
	mw "github.com/barberlink/bookings/internal/http/middleware"
	"github.com/barberlink/bookings/internal/http/response"
	"github.com/barberlink/bookings/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type BookingsHandler struct {
	Service booking.Service
}

func NewBookingsHandler(svc booking.Service) *BookingsHandler {
	return &BookingsHandler{Service: svc}
}

func (h *BookingsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Delete("/{id}", h.cancel)
	return r
}

type createBookingRequest struct {
	ServiceID     string    `json:"service_id"`
	Date          time.Time `json:"date"`
	CustomerEmail string    `json:"customer_email,omitempty"`
}

type createBookingResponse struct {
	Booking           *domain.Booking `json:"booking"`
	CheckoutSessionID string          `json:"checkout_session_id,omitempty"`
}

func (h *BookingsHandler) create(w http.ResponseWriter, r *http.Request) {
	var in createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if in.ServiceID == "" || in.Date.IsZero() {
		response.BadRequest(w, "service_id and date are required")
		return
	}

	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	email := in.CustomerEmail
	if email == "" {
		email = claims.Email
	}

	b, err := h.Service.CreateBooking(r.Context(), booking.CreateRequest{
		ServiceID:     in.ServiceID,
		UserID:        claims.Sub,
		CustomerEmail: email,
		ScheduledAt:   in.Date,
	})
	if err != nil {
		writeBookingError(w, r, err)
		return
	}

	out := createBookingResponse{Booking: b}
	status := http.StatusCreated
	if b.PaymentState == domain.PaymentPending {
		// Payment still outstanding; the client must complete checkout.
		status = http.StatusAccepted
		if b.CheckoutSessionID != nil {
			out.CheckoutSessionID = *b.CheckoutSessionID
		}
	}
	response.WriteJSON(w, status, out)
}

func writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrPastDate):
		response.WriteError(w, http.StatusBadRequest, "cannot book a date in the past", response.CodePastDateTime)
	case errors.Is(err, domain.ErrServiceUnavailable):
		response.WriteError(w, http.StatusNotFound, "service is not available for booking", response.CodeServiceUnavailable)
	case errors.Is(err, domain.ErrInvalidPricing):
		response.WriteError(w, http.StatusUnprocessableEntity, "service price does not allow online payment", response.CodeInvalidPricing)
	case errors.Is(err, domain.ErrSlotTaken):
		response.WriteError(w, http.StatusConflict, "time slot is already taken", response.CodeSlotTaken)
	case errors.Is(err, domain.ErrPaymentSetupFailed):
		response.WriteError(w, http.StatusBadGateway, "could not start payment, no booking was created", response.CodePaymentSetup)
	default:
		logger.ErrorContext(r.Context(), "Failed to create booking", "error", err)
		response.InternalError(w, "error creating booking")
	}
}

func (h *BookingsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	cancelled, err := h.Service.CancelBooking(r.Context(), id, claims.Sub)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to cancel booking", "error", err, "booking_id", id)
		response.InternalError(w, "error cancelling booking")
		return
	}
	if !cancelled {
		response.NotFound(w, "booking not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
