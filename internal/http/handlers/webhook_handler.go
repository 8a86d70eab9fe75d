package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/barberlink/bookings/internal/booking"
	"github.com/barberlink/bookings/internal/http/response"
	"github.com/barberlink/bookings/pkg/logger"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const maxWebhookBodyBytes = 65536

// WebhookHandler receives Stripe checkout events and feeds them to the
// payment reconciler. Stripe retries on non-2xx responses.
type WebhookHandler struct {
	Reconciler    *booking.Reconciler
	WebhookSecret string
}

func NewWebhookHandler(reconciler *booking.Reconciler, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{Reconciler: reconciler, WebhookSecret: webhookSecret}
}

func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		response.BadRequest(w, "could not read request body")
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		logger.WarnContext(r.Context(), "Rejected Stripe webhook", "error", err)
		response.WriteError(w, http.StatusBadRequest, "invalid webhook signature", response.CodeInvalidSignature)
		return
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			logger.ErrorContext(r.Context(), "Failed to decode checkout session event",
				"error", err, "event_type", string(event.Type))
			response.BadRequest(w, "invalid event payload")
			return
		}

		if err := h.Reconciler.ReconcileSession(r.Context(), session.ID); err != nil {
			logger.ErrorContext(r.Context(), "Failed to reconcile checkout session",
				"error", err, "session_id", session.ID)
			response.InternalError(w, "error reconciling session")
			return
		}
	default:
		logger.DebugContext(r.Context(), "Ignoring Stripe event", "event_type", string(event.Type))
	}

	w.WriteHeader(http.StatusOK)
}
