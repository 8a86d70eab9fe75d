package handlers

import (
	"net/http"
	"time"

	"github.com/barberlink/bookings/internal/booking"
	"github.com/barberlink/bookings/internal/http/response"
	"github.com/barberlink/bookings/internal/schedule"
	"github.com/barberlink/bookings/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ScheduleHandler struct {
	Service booking.Service
}

func NewScheduleHandler(svc booking.Service) *ScheduleHandler {
	return &ScheduleHandler{Service: svc}
}

type busySlot struct {
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	StartMinute     int       `json:"start_minute"`
	EndMinute       int       `json:"end_minute"`
}

type scheduleResponse struct {
	BarbershopID string     `json:"barbershop_id"`
	Date         string     `json:"date"`
	BusySlots    []busySlot `json:"busy_slots"`
}

// GET /barbershops/{id}/schedule?date=YYYY-MM-DD
func (h *ScheduleHandler) Day(w http.ResponseWriter, r *http.Request) {
	barbershopID := chi.URLParam(r, "id")

	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.BadRequest(w, "date must be formatted YYYY-MM-DD")
			return
		}
		day = parsed
	}

	bookings, err := h.Service.DaySchedule(r.Context(), barbershopID, day)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load day schedule",
			"error", err, "barbershop_id", barbershopID)
		response.InternalError(w, "error loading schedule")
		return
	}

	slots := make([]busySlot, 0, len(bookings))
	for _, b := range bookings {
		start := schedule.MinuteOfDay(b.ScheduledAt)
		slots = append(slots, busySlot{
			ScheduledAt:     b.ScheduledAt,
			DurationMinutes: b.DurationMinutes,
			StartMinute:     start,
			EndMinute:       start + b.DurationMinutes,
		})
	}

	response.WriteJSON(w, http.StatusOK, scheduleResponse{
		BarbershopID: barbershopID,
		Date:         day.Format("2006-01-02"),
		BusySlots:    slots,
	})
}
