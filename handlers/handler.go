// Package handlers exposes the engine over HTTP. Handlers parse and shape;
// all domain decisions live in the service layer.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"roadassist/domain"
	"roadassist/service"
)

// envelope is the JSON response shape shared by every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Handler serves the request and mechanic endpoints.
type Handler struct {
	service *service.Service
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewHandler creates a Handler over the engine.
func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: svc,
		tracer:  otel.Tracer("roadassist"),
		logger:  logger,
	}
}

// HealthCheck provides a health endpoint for Consul and load balancers.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "HealthCheck")
	defer span.End()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindStateConflict, domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusForKind(kind)
	message := err.Error()
	if kind == domain.KindInternal {
		// Infrastructure detail stays in the logs.
		message = "internal error, please try again later"
	}
	h.respondJSON(w, status, envelope{Success: false, Message: message})
}

func (h *Handler) respondData(w http.ResponseWriter, status int, message string, data any) {
	h.respondJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func (h *Handler) respondList(w http.ResponseWriter, count int, data any) {
	h.respondJSON(w, http.StatusOK, envelope{Success: true, Count: &count, Data: data})
}
