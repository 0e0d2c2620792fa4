package handler

import (
	"net/http"

	"medilink/internal/appointments/service"
	"medilink/pkg/auth"
	apperrors "medilink/pkg/errors"
	httputil "medilink/pkg/http"
	"medilink/pkg/logger"
	"medilink/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AppointmentHandler struct {
	service service.AppointmentService
	log     *logger.Logger
}

func NewAppointmentHandler(service service.AppointmentService, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		log:     log,
	}
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.identity(w, r, "Book")
	if !ok {
		return
	}

	var req model.BookingRequest
	if err := httputil.DecodeBody(r, &req); err != nil {
		h.writeError(w, "Book", err)
		return
	}

	appointment, err := h.service.BookAppointment(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	if err := httputil.WriteCreated(w, appointment); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.identity(w, r, "Cancel")
	if !ok {
		return
	}

	appointment, err := h.service.CancelAppointment(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, appointment); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.identity(w, r, "GetByID")
	if !ok {
		return
	}

	appointment, err := h.service.GetByID(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, appointment); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.identity(w, r, "List")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	appointments, total, err := h.service.List(r.Context(), actor, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, appointments, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.identity(w, r, "UpdateStatus")
	if !ok {
		return
	}

	var change model.StatusChange
	if err := httputil.DecodeBody(r, &change); err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	appointment, err := h.service.UpdateStatus(r.Context(), actor, ps.ByName("id"), &change)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, appointment); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) UpdateVideoCall(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.identity(w, r, "UpdateVideoCall")
	if !ok {
		return
	}

	var change model.VideoCallChange
	if err := httputil.DecodeBody(r, &change); err != nil {
		h.writeError(w, "UpdateVideoCall", err)
		return
	}

	appointment, err := h.service.UpdateVideoCall(r.Context(), actor, ps.ByName("id"), &change)
	if err != nil {
		h.writeError(w, "UpdateVideoCall", err)
		return
	}

	if err := httputil.WriteSuccess(w, appointment); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateVideoCall", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) AvailableSlots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	date := r.URL.Query().Get("date")
	if date == "" {
		h.writeError(w, "AvailableSlots", apperrors.InvalidInput("'date' query parameter is required"))
		return
	}

	slots, err := h.service.GetAvailableSlotsForDate(r.Context(), ps.ByName("doctorId"), date)
	if err != nil {
		h.writeError(w, "AvailableSlots", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "AvailableSlots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) identity(w http.ResponseWriter, r *http.Request, handler string) (auth.Identity, bool) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
	}
	return actor, ok
}

func (h *AppointmentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AppointmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/doctors/:doctorId/available-slots", h.AvailableSlots)
	router.POST("/api/v1/appointments", h.Book)
	router.GET("/api/v1/appointments", h.List)
	router.GET("/api/v1/appointments/:id", h.GetByID)
	router.POST("/api/v1/appointments/:id/cancel", h.Cancel)
	router.PATCH("/api/v1/appointments/:id/status", h.UpdateStatus)
	router.PATCH("/api/v1/appointments/:id/video", h.UpdateVideoCall)
}
