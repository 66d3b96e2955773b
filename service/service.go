// Package service implements the request matching and lifecycle engine:
// the service-request state machine, geospatial discovery, and the mechanic
// reputation and earnings ledger.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"roadassist/domain"
)

const (
	// defaultRadiusKm applies when a nearby query omits the radius.
	defaultRadiusKm = 10

	// nearbyLimit caps plain nearby lookups; searchLimit caps filtered search.
	nearbyLimit = 20
	searchLimit = 50
)

// Service is the top-level orchestrator called by the route layer.
type Service struct {
	repo   domain.Repository
	tracer trace.Tracer
	logger *slog.Logger
}

// NewService creates the engine on top of a store handle.
func NewService(repo domain.Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		tracer: otel.Tracer("roadassist"),
		logger: logger,
	}
}

// kmToMeters converts a radius to the geo index's native unit. All internal
// radius arithmetic stays in kilometers; conversion happens only here.
func kmToMeters(radiusKm float64) float64 {
	return radiusKm * 1000
}

// appendLifecycleEvent records a lifecycle event in the outbox for the Kafka
// processor. Event loss is tolerated: the transition itself has already
// committed, so a failed append is logged and the operation still succeeds.
func (s *Service) appendLifecycleEvent(ctx context.Context, eventType string, req *domain.ServiceRequest) {
	payload := domain.RequestEventPayload{
		RequestID:   req.ID,
		CustomerID:  req.CustomerID,
		MechanicID:  req.MechanicID,
		ProblemType: string(req.ProblemType),
		Status:      string(req.Status),
		Longitude:   req.CustomerLocation.Longitude(),
		Latitude:    req.CustomerLocation.Latitude(),
		OccurredAt:  time.Now(),
	}
	if req.FinalCost != nil {
		payload.FinalCost = *req.FinalCost
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to encode lifecycle event", "error", err, "requestID", req.ID)
		return
	}
	event := &domain.OutboxEvent{
		ID:        newEventID(),
		EventType: eventType,
		Payload:   raw,
		CreatedAt: time.Now(),
	}
	if err := s.repo.SaveOutboxEvent(ctx, event); err != nil {
		s.logger.Error("Failed to save lifecycle event", "error", err, "eventType", eventType, "requestID", req.ID)
		return
	}
	s.logger.Info("Recorded lifecycle event", "eventType", eventType, "requestID", req.ID)
}
