package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"roadassist/domain"
)

// FindMechanicsNear returns online, verified mechanics within radiusKm of
// the point, best rating first, capped at the plain-lookup limit.
func (s *Service) FindMechanicsNear(ctx context.Context, longitude, latitude, radiusKm float64) ([]*domain.Mechanic, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceFindMechanicsNear")
	defer span.End()

	if radiusKm <= 0 {
		radiusKm = defaultRadiusKm
	}
	span.SetAttributes(
		attribute.Float64("longitude", longitude),
		attribute.Float64("latitude", latitude),
		attribute.Float64("radiusKm", radiusKm),
	)

	mechanics, err := s.repo.FindMechanicsNear(ctx, longitude, latitude, kmToMeters(radiusKm), nearbyLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to find nearby mechanics")
		s.logger.Error("Failed to find nearby mechanics", "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("mechanicCount", len(mechanics)))
	s.logger.Info("Listed nearby mechanics", "count", len(mechanics), "radiusKm", radiusKm)
	return mechanics, nil
}

// MechanicSearch narrows a filtered mechanic search. RadiusKm applies only
// when HasPoint is set and defaults to the standard lookup radius.
type MechanicSearch struct {
	Specialization string
	MinRating      float64
	HasPoint       bool
	Longitude      float64
	Latitude       float64
	RadiusKm       float64
}

// SearchMechanics returns online, verified mechanics matching the filter,
// best rating first, capped at the search limit.
func (s *Service) SearchMechanics(ctx context.Context, q MechanicSearch) ([]*domain.Mechanic, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceSearchMechanics")
	defer span.End()

	filter := domain.MechanicSearchFilter{
		Specialization: q.Specialization,
		MinRating:      q.MinRating,
		HasPoint:       q.HasPoint,
		Longitude:      q.Longitude,
		Latitude:       q.Latitude,
	}
	if q.HasPoint {
		radiusKm := q.RadiusKm
		if radiusKm <= 0 {
			radiusKm = defaultRadiusKm
		}
		filter.RadiusMeters = kmToMeters(radiusKm)
	}
	span.SetAttributes(
		attribute.String("specialization", q.Specialization),
		attribute.Float64("minRating", q.MinRating),
		attribute.Bool("hasPoint", q.HasPoint),
	)

	mechanics, err := s.repo.SearchMechanics(ctx, filter, searchLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to search mechanics")
		s.logger.Error("Failed to search mechanics", "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("mechanicCount", len(mechanics)))
	return mechanics, nil
}

// GetMechanicProfile returns the profile linked to a user identity.
func (s *Service) GetMechanicProfile(ctx context.Context, userID string) (*domain.Mechanic, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceGetMechanicProfile")
	defer span.End()

	m, err := s.repo.GetMechanicByUserID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get mechanic profile")
		return nil, err
	}
	span.SetAttributes(attribute.String("mechanicID", m.ID))
	return m, nil
}

// UpdateMechanicLocation replaces the mechanic's current location with a
// freshly stamped GeoJSON point.
func (s *Service) UpdateMechanicLocation(ctx context.Context, mechanicUserID string, longitude, latitude float64, address string) error {
	ctx, span := s.tracer.Start(ctx, "ServiceUpdateMechanicLocation")
	defer span.End()

	if longitude < -180 || longitude > 180 || latitude < -90 || latitude > 90 {
		return domain.NewValidation("coordinates out of range")
	}
	location := domain.NewGeoPoint(longitude, latitude, address, time.Now())
	if err := s.repo.UpdateMechanicLocation(ctx, mechanicUserID, location); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update mechanic location")
		s.logger.Error("Failed to update mechanic location", "error", err, "mechanicUserID", mechanicUserID)
		return err
	}
	span.SetAttributes(
		attribute.Float64("longitude", longitude),
		attribute.Float64("latitude", latitude),
	)
	s.logger.Info("Updated mechanic location", "mechanicUserID", mechanicUserID)
	return nil
}

// SetMechanicOnline toggles the mechanic's discoverability.
func (s *Service) SetMechanicOnline(ctx context.Context, mechanicUserID string, online bool) error {
	ctx, span := s.tracer.Start(ctx, "ServiceSetMechanicOnline")
	defer span.End()

	if err := s.repo.SetMechanicOnline(ctx, mechanicUserID, online); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update mechanic status")
		s.logger.Error("Failed to update mechanic status", "error", err, "mechanicUserID", mechanicUserID)
		return err
	}
	span.SetAttributes(attribute.Bool("isOnline", online))
	s.logger.Info("Updated mechanic status", "mechanicUserID", mechanicUserID, "isOnline", online)
	return nil
}
