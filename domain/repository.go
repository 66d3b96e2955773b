package domain

import (
	"context"
	"time"
)

// RequestRepository is the persistence contract for service requests.
// Accept, Complete and Cancel are conditional updates: the guard on the
// current document state and the write land in one indivisible step, so a
// losing racer observes a typed failure rather than a stale success.
type RequestRepository interface {
	CreateRequest(ctx context.Context, req *ServiceRequest) (*ServiceRequest, error)
	GetRequestByID(ctx context.Context, id string) (*ServiceRequest, error)
	ListRequestsByCustomer(ctx context.Context, customerID string) ([]*ServiceRequest, error)
	ListRequestsByMechanic(ctx context.Context, mechanicUserID string) ([]*ServiceRequest, error)

	// FindPendingRequestsNear returns pending requests within radiusMeters
	// of the point, newest first, capped at limit.
	FindPendingRequestsNear(ctx context.Context, longitude, latitude, radiusMeters float64, limit int64) ([]*ServiceRequest, error)

	// AcceptRequest assigns the mechanic iff the request is still pending.
	AcceptRequest(ctx context.Context, requestID, mechanicUserID string, at time.Time) (*ServiceRequest, error)

	// CompleteRequest closes the request iff it is non-terminal and owned by
	// the acting mechanic.
	CompleteRequest(ctx context.Context, requestID, actorID string, finalCost float64, at time.Time) (*ServiceRequest, error)

	// CancelRequest cancels iff non-terminal and the actor is the customer
	// or the assigned mechanic.
	CancelRequest(ctx context.Context, requestID, actorID string) (*ServiceRequest, error)
}

// MechanicSearchFilter narrows a mechanic search. Zero values mean
// "no constraint"; HasPoint gates the geo clause.
type MechanicSearchFilter struct {
	Specialization string
	MinRating      float64
	HasPoint       bool
	Longitude      float64
	Latitude       float64
	RadiusMeters   float64
}

// MechanicRepository is the persistence contract for mechanic profiles.
// Ledger mutations are atomic increments against the stored document, and
// AddReview appends and recomputes the aggregate rating in one update.
type MechanicRepository interface {
	CreateMechanic(ctx context.Context, m *Mechanic) (*Mechanic, error)
	GetMechanicByID(ctx context.Context, id string) (*Mechanic, error)
	GetMechanicByUserID(ctx context.Context, userID string) (*Mechanic, error)

	// FindMechanicsNear returns online, verified mechanics within
	// radiusMeters of the point, best rating first, capped at limit.
	FindMechanicsNear(ctx context.Context, longitude, latitude, radiusMeters float64, limit int64) ([]*Mechanic, error)
	SearchMechanics(ctx context.Context, filter MechanicSearchFilter, limit int64) ([]*Mechanic, error)

	IncrementTotalJobs(ctx context.Context, mechanicUserID string) error
	IncrementCompletedJobs(ctx context.Context, mechanicUserID string) error
	RecordEarnings(ctx context.Context, mechanicUserID string, amount float64) error

	// AddReview appends the review and recomputes the mean rating as a
	// single atomic unit, failing with a conflict when the
	// (customerId, requestId) pair already has one.
	AddReview(ctx context.Context, mechanicID string, review Review) (*Mechanic, error)

	UpdateMechanicLocation(ctx context.Context, mechanicUserID string, location GeoPoint) error
	SetMechanicOnline(ctx context.Context, mechanicUserID string, online bool) error
}

// OutboxRepository stores lifecycle events for the Kafka outbox processor.
type OutboxRepository interface {
	SaveOutboxEvent(ctx context.Context, event *OutboxEvent) error
	GetUnprocessedOutboxEvents(ctx context.Context) ([]*OutboxEvent, error)
	MarkOutboxEventProcessed(ctx context.Context, eventID string) error
}

// Repository is the full store handle held by the service layer.
type Repository interface {
	RequestRepository
	MechanicRepository
	OutboxRepository
}
