package service

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"roadassist/domain"
)

// AddReview appends a customer's review of a mechanic for a completed
// request and returns the profile with its recomputed rating. The append
// and the recompute land in one atomic store update; a duplicate
// (customer, request) pair is rejected without mutation.
func (s *Service) AddReview(ctx context.Context, mechanicID, customerID, requestID string, rating int, comment string) (*domain.Mechanic, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceAddReview")
	defer span.End()

	if mechanicID == "" || customerID == "" || requestID == "" {
		return nil, domain.NewValidation("mechanic, customer and request IDs are required")
	}
	if err := domain.ValidateReview(rating, comment); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	review := domain.Review{
		CustomerID: customerID,
		RequestID:  requestID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now(),
	}
	m, err := s.repo.AddReview(ctx, mechanicID, review)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to add review")
		s.logger.Warn("Failed to add review", "error", err, "mechanicID", mechanicID, "customerID", customerID)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("mechanicID", mechanicID),
		attribute.Int("rating", rating),
		attribute.Float64("mechanicRating", m.Rating),
	)
	s.logger.Info("Added review", "mechanicID", mechanicID, "customerID", customerID, "rating", rating, "mechanicRating", m.Rating)
	return m, nil
}

// MechanicReviews is the read-only review projection for one mechanic.
type MechanicReviews struct {
	Count         int             `json:"count"`
	AverageRating float64         `json:"averageRating"`
	Reviews       []domain.Review `json:"reviews"`
}

// ListReviews returns a mechanic's reviews, newest first.
func (s *Service) ListReviews(ctx context.Context, mechanicID string) (*MechanicReviews, error) {
	ctx, span := s.tracer.Start(ctx, "ServiceListReviews")
	defer span.End()

	m, err := s.repo.GetMechanicByID(ctx, mechanicID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get mechanic")
		return nil, err
	}

	reviews := make([]domain.Review, len(m.Reviews))
	copy(reviews, m.Reviews)
	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
	span.SetAttributes(attribute.Int("reviewCount", len(reviews)))
	return &MechanicReviews{
		Count:         len(reviews),
		AverageRating: m.Rating,
		Reviews:       reviews,
	}, nil
}
