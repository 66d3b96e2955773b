package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"roadassist/domain"
	"roadassist/geo"
)

// CreateRequest validates the payload and opens a pending service request
// for the customer.
func (s *Service) CreateRequest(ctx context.Context, customerID string, in *domain.CreateRequestInput) (*domain.ServiceRequest, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceCreateRequest")
	defer span.End()

	if customerID == "" {
		return nil, domain.NewValidation("customer ID is required")
	}
	if err := in.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("Invalid create request payload", "error", err, "customerID", customerID)
		return nil, err
	}

	req := domain.NewServiceRequest(customerID, in, time.Now())
	req.ID = newEntityID()
	span.SetAttributes(
		attribute.String("requestID", req.ID),
		attribute.String("customerID", customerID),
		attribute.String("problemType", string(req.ProblemType)),
	)

	created, err := s.repo.CreateRequest(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create service request")
		s.logger.Error("Failed to create service request", "error", err, "customerID", customerID)
		return nil, err
	}
	s.logger.Info("Created service request", "requestID", created.ID, "customerID", customerID, "problemType", created.ProblemType)

	s.appendLifecycleEvent(ctx, domain.EventRequestCreated, created)
	return created, nil
}

// GetRequest returns a single request projection.
func (s *Service) GetRequest(ctx context.Context, requestID string) (*domain.ServiceRequest, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceGetRequest")
	defer span.End()

	req, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get service request")
		return nil, err
	}
	span.SetAttributes(attribute.String("requestID", requestID))
	return req, nil
}

// ListCustomerRequests returns a customer's requests, newest first.
func (s *Service) ListCustomerRequests(ctx context.Context, customerID string) ([]*domain.ServiceRequest, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceListCustomerRequests")
	defer span.End()
	return s.repo.ListRequestsByCustomer(ctx, customerID)
}

// ListMechanicRequests returns requests assigned to a mechanic, newest first.
func (s *Service) ListMechanicRequests(ctx context.Context, mechanicUserID string) ([]*domain.ServiceRequest, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceListMechanicRequests")
	defer span.End()
	return s.repo.ListRequestsByMechanic(ctx, mechanicUserID)
}

// FindRequestsNear returns pending requests within radiusKm of the point,
// newest first, each annotated with its haversine distance from the point.
// The annotation deliberately uses the documented formula rather than the
// index's internal metric so the reported value is reproducible.
func (s *Service) FindRequestsNear(ctx context.Context, longitude, latitude, radiusKm float64) ([]*domain.NearbyRequest, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceFindRequestsNear")
	defer span.End()

	if radiusKm <= 0 {
		radiusKm = defaultRadiusKm
	}
	span.SetAttributes(
		attribute.Float64("longitude", longitude),
		attribute.Float64("latitude", latitude),
		attribute.Float64("radiusKm", radiusKm),
	)

	requests, err := s.repo.FindPendingRequestsNear(ctx, longitude, latitude, kmToMeters(radiusKm), nearbyLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to find nearby requests")
		s.logger.Error("Failed to find nearby requests", "error", err)
		return nil, err
	}

	origin := geo.Point{Longitude: longitude, Latitude: latitude}
	nearby := make([]*domain.NearbyRequest, 0, len(requests))
	for _, req := range requests {
		nearby = append(nearby, &domain.NearbyRequest{
			ServiceRequest: *req,
			Distance: geo.DistanceRounded(origin, geo.Point{
				Longitude: req.CustomerLocation.Longitude(),
				Latitude:  req.CustomerLocation.Latitude(),
			}),
		})
	}
	span.SetAttributes(attribute.Int("requestCount", len(nearby)))
	s.logger.Info("Listed nearby requests", "count", len(nearby), "radiusKm", radiusKm)
	return nearby, nil
}

// AcceptRequest assigns the request to the mechanic. The store applies the
// pending-status guard and the assignment in one conditional update, so
// concurrent acceptors resolve to exactly one winner; losers get a state
// conflict and should re-query the nearby list.
func (s *Service) AcceptRequest(ctx context.Context, requestID, mechanicUserID string) (*domain.ServiceRequest, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceAcceptRequest")
	defer span.End()

	if requestID == "" || mechanicUserID == "" {
		return nil, domain.NewValidation("request ID and mechanic ID are required")
	}

	// The acceptor must have a mechanic profile.
	if _, err := s.repo.GetMechanicByUserID(ctx, mechanicUserID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Mechanic profile not found")
		s.logger.Error("Mechanic profile not found", "error", err, "mechanicUserID", mechanicUserID)
		return nil, err
	}

	req, err := s.repo.AcceptRequest(ctx, requestID, mechanicUserID, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to accept request")
		s.logger.Warn("Failed to accept request", "error", err, "requestID", requestID, "mechanicUserID", mechanicUserID)
		return nil, err
	}

	if err := s.repo.IncrementTotalJobs(ctx, mechanicUserID); err != nil {
		span.RecordError(err)
		s.logger.Error("Failed to increment total jobs", "error", err, "mechanicUserID", mechanicUserID)
	}

	span.SetAttributes(
		attribute.String("requestID", requestID),
		attribute.String("mechanicUserID", mechanicUserID),
	)
	s.logger.Info("Accepted service request", "requestID", requestID, "mechanicUserID", mechanicUserID)

	s.appendLifecycleEvent(ctx, domain.EventRequestAccepted, req)
	return req, nil
}

// CompleteRequest closes the request with its final cost and settles the
// mechanic's ledger: completed-job counter and earnings, both as atomic
// increments against the stored profile.
func (s *Service) CompleteRequest(ctx context.Context, requestID, actorID string, finalCost float64) (*domain.ServiceRequest, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceCompleteRequest")
	defer span.End()

	if requestID == "" || actorID == "" {
		return nil, domain.NewValidation("request ID and actor ID are required")
	}
	if finalCost < 0 {
		return nil, domain.NewValidation("final cost cannot be negative")
	}

	req, err := s.repo.CompleteRequest(ctx, requestID, actorID, finalCost, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to complete request")
		s.logger.Warn("Failed to complete request", "error", err, "requestID", requestID, "actorID", actorID)
		return nil, err
	}

	if err := s.RecordEarnings(ctx, actorID, finalCost); err != nil {
		span.RecordError(err)
		s.logger.Error("Failed to record earnings", "error", err, "mechanicUserID", actorID)
	}
	if err := s.repo.IncrementCompletedJobs(ctx, actorID); err != nil {
		span.RecordError(err)
		s.logger.Error("Failed to increment completed jobs", "error", err, "mechanicUserID", actorID)
	}

	span.SetAttributes(
		attribute.String("requestID", requestID),
		attribute.Float64("finalCost", finalCost),
	)
	s.logger.Info("Completed service request", "requestID", requestID, "mechanicUserID", actorID, "finalCost", finalCost)

	s.appendLifecycleEvent(ctx, domain.EventRequestCompleted, req)
	return req, nil
}

// CancelRequest cancels a non-terminal request on behalf of its customer or
// assigned mechanic. Cancellation has no ledger side effects.
func (s *Service) CancelRequest(ctx context.Context, requestID, actorID string) (*domain.ServiceRequest, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceCancelRequest")
	defer span.End()

	if requestID == "" || actorID == "" {
		return nil, domain.NewValidation("request ID and actor ID are required")
	}

	req, err := s.repo.CancelRequest(ctx, requestID, actorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to cancel request")
		s.logger.Warn("Failed to cancel request", "error", err, "requestID", requestID, "actorID", actorID)
		return nil, err
	}

	span.SetAttributes(attribute.String("requestID", requestID))
	s.logger.Info("Cancelled service request", "requestID", requestID, "actorID", actorID)

	s.appendLifecycleEvent(ctx, domain.EventRequestCancelled, req)
	return req, nil
}

// RecordEarnings adds a non-negative amount to both earnings buckets.
func (s *Service) RecordEarnings(ctx context.Context, mechanicUserID string, amount float64) error {
	ctx, span := s.tracer.Start(ctx, "ServiceRecordEarnings")
	defer span.End()

	if amount < 0 {
		err := domain.NewValidation("earnings amount cannot be negative")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := s.repo.RecordEarnings(ctx, mechanicUserID, amount); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record earnings")
		return fmt.Errorf("failed to record earnings: %w", err)
	}
	span.SetAttributes(
		attribute.String("mechanicUserID", mechanicUserID),
		attribute.Float64("amount", amount),
	)
	return nil
}
