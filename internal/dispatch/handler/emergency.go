package handler

import (
	"net/http"

	"medilink/internal/dispatch/service"
	"medilink/pkg/auth"
	apperrors "medilink/pkg/errors"
	httputil "medilink/pkg/http"
	"medilink/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

// EmergencyHandler is the HTTP read side of dispatch, for clients that poll
// instead of holding a socket.
type EmergencyHandler struct {
	service service.DispatchService
	log     *logger.Logger
}

func NewEmergencyHandler(service service.DispatchService, log *logger.Logger) *EmergencyHandler {
	return &EmergencyHandler{
		service: service,
		log:     log,
	}
}

func (h *EmergencyHandler) Pending(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.identity(w, r, "Pending")
	if !ok {
		return
	}

	requests, err := h.service.GetPending(r.Context(), actor)
	if err != nil {
		h.writeError(w, "Pending", err)
		return
	}

	if err := httputil.WriteSuccess(w, requests); err != nil {
		h.log.Error("failed to write success response", "handler", "Pending", "operation", "WriteSuccess", "error", err)
	}
}

func (h *EmergencyHandler) Details(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.identity(w, r, "Details")
	if !ok {
		return
	}

	req, err := h.service.GetDetails(r.Context(), actor, ps.ByName("requestId"))
	if err != nil {
		h.writeError(w, "Details", err)
		return
	}

	if err := httputil.WriteSuccess(w, req); err != nil {
		h.log.Error("failed to write success response", "handler", "Details", "operation", "WriteSuccess", "error", err)
	}
}

func (h *EmergencyHandler) OnlineDrivers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.identity(w, r, "OnlineDrivers")
	if !ok {
		return
	}

	drivers, err := h.service.OnlineDrivers(r.Context(), actor)
	if err != nil {
		h.writeError(w, "OnlineDrivers", err)
		return
	}

	if err := httputil.WriteSuccess(w, drivers); err != nil {
		h.log.Error("failed to write success response", "handler", "OnlineDrivers", "operation", "WriteSuccess", "error", err)
	}
}

func (h *EmergencyHandler) identity(w http.ResponseWriter, r *http.Request, handler string) (auth.Identity, bool) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
	}
	return actor, ok
}

func (h *EmergencyHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *EmergencyHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/emergency/pending", h.Pending)
	router.GET("/api/v1/emergency/details/:requestId", h.Details)
	router.GET("/api/v1/emergency/drivers/online", h.OnlineDrivers)
}
