package handler

import (
	"net/http"

	"medilink/internal/availability/service"
	"medilink/pkg/auth"
	apperrors "medilink/pkg/errors"
	httputil "medilink/pkg/http"
	"medilink/pkg/logger"
	"medilink/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

func (h *AvailabilityHandler) GetSchedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	week, err := h.service.GetSchedule(r.Context(), ps.ByName("doctorId"))
	if err != nil {
		h.writeError(w, "GetSchedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, week); err != nil {
		h.log.Error("failed to write success response", "handler", "GetSchedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) GetDay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	entry, err := h.service.GetDay(r.Context(), ps.ByName("doctorId"), ps.ByName("day"))
	if err != nil {
		h.writeError(w, "GetDay", err)
		return
	}

	if err := httputil.WriteSuccess(w, entry); err != nil {
		h.log.Error("failed to write success response", "handler", "GetDay", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) UpdateDay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, "UpdateDay", apperrors.Unauthorized("Authentication required"))
		return
	}

	var update model.AvailabilityUpdate
	if err := httputil.DecodeBody(r, &update); err != nil {
		h.writeError(w, "UpdateDay", err)
		return
	}

	entry, err := h.service.UpdateDay(r.Context(), actor, ps.ByName("doctorId"), ps.ByName("day"), &update)
	if err != nil {
		h.writeError(w, "UpdateDay", err)
		return
	}

	if err := httputil.WriteSuccess(w, entry); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateDay", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) Reset(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, "Reset", apperrors.Unauthorized("Authentication required"))
		return
	}

	week, err := h.service.ResetSchedule(r.Context(), actor, ps.ByName("doctorId"))
	if err != nil {
		h.writeError(w, "Reset", err)
		return
	}

	if err := httputil.WriteSuccess(w, week); err != nil {
		h.log.Error("failed to write success response", "handler", "Reset", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/availability/:doctorId", h.GetSchedule)
	router.GET("/api/v1/availability/:doctorId/:day", h.GetDay)
	router.PUT("/api/v1/availability/:doctorId/:day", h.UpdateDay)
	router.DELETE("/api/v1/availability/:doctorId", h.Reset)
}
