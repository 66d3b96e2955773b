package domain

import (
	"strings"
	"time"
)

// RequestStatus is the lifecycle state of a service request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusAccepted   RequestStatus = "accepted"
	StatusInProgress RequestStatus = "inProgress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ProblemType enumerates the breakdown categories a customer can report.
type ProblemType string

const (
	ProblemEngineIssues     ProblemType = "engineIssues"
	ProblemBrakeIssues      ProblemType = "brakeIssues"
	ProblemFuelIssues       ProblemType = "fuelIssues"
	ProblemTirePuncture     ProblemType = "tirePuncture"
	ProblemLockIssues       ProblemType = "lockIssues"
	ProblemElectricalIssues ProblemType = "electricalIssues"
	ProblemEngineLight      ProblemType = "engineLight"
	ProblemTowMe            ProblemType = "towMe"
	ProblemOther            ProblemType = "other"
)

var problemTypes = map[ProblemType]bool{
	ProblemEngineIssues:     true,
	ProblemBrakeIssues:      true,
	ProblemFuelIssues:       true,
	ProblemTirePuncture:     true,
	ProblemLockIssues:       true,
	ProblemElectricalIssues: true,
	ProblemEngineLight:      true,
	ProblemTowMe:            true,
	ProblemOther:            true,
}

// PaymentMethod is how the customer intends to settle the job.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

const (
	maxDescriptionLen = 500
	maxReviewLen      = 200
)

// GeoPoint is a GeoJSON point with the display address captured alongside
// it. Coordinates are [longitude, latitude], the Mongo 2dsphere convention.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address" json:"address"`
	LastUpdated time.Time `bson:"lastUpdated,omitempty" json:"lastUpdated,omitempty"`
}

// NewGeoPoint builds a GeoJSON point from a longitude/latitude pair.
func NewGeoPoint(longitude, latitude float64, address string, at time.Time) GeoPoint {
	return GeoPoint{
		Type:        "Point",
		Coordinates: []float64{longitude, latitude},
		Address:     address,
		LastUpdated: at,
	}
}

// Longitude returns the first coordinate, 0 when the point is unset.
func (p GeoPoint) Longitude() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Latitude returns the second coordinate, 0 when the point is unset.
func (p GeoPoint) Latitude() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// ServiceRequest tracks a customer's need for roadside assistance through
// its lifecycle. MechanicID is empty until a mechanic accepts; FinalCost
// and CompletedAt are set only at completion.
type ServiceRequest struct {
	ID               string        `bson:"_id,omitempty" json:"id"`
	CustomerID       string        `bson:"customerId" json:"customerId"`
	MechanicID       string        `bson:"mechanicId,omitempty" json:"mechanicId,omitempty"`
	ProblemType      ProblemType   `bson:"problemType" json:"problemType"`
	Description      string        `bson:"description" json:"description"`
	VehicleNumber    string        `bson:"vehicleNumber,omitempty" json:"vehicleNumber,omitempty"`
	CustomerLocation GeoPoint      `bson:"customerLocation" json:"customerLocation"`
	Images           []string      `bson:"images,omitempty" json:"images,omitempty"`
	PaymentMethod    PaymentMethod `bson:"paymentMethod" json:"paymentMethod"`
	Status           RequestStatus `bson:"status" json:"status"`
	EstimatedCost    float64       `bson:"estimatedCost,omitempty" json:"estimatedCost,omitempty"`
	FinalCost        *float64      `bson:"finalCost,omitempty" json:"finalCost,omitempty"`
	AcceptedAt       *time.Time    `bson:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	CompletedAt      *time.Time    `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Rating           *int          `bson:"rating,omitempty" json:"rating,omitempty"`
	Review           string        `bson:"review,omitempty" json:"review,omitempty"`
	CreatedAt        time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// NearbyRequest is a pending request annotated with its distance in
// kilometers from the querying mechanic, rounded to two decimals.
type NearbyRequest struct {
	ServiceRequest `bson:",inline"`
	Distance       float64 `json:"distance"`
}

// CreateRequestInput is the payload accepted when a customer opens a request.
type CreateRequestInput struct {
	ProblemType   ProblemType   `json:"problemType"`
	Description   string        `json:"description"`
	VehicleNumber string        `json:"vehicleNumber"`
	Longitude     float64       `json:"longitude"`
	Latitude      float64       `json:"latitude"`
	Address       string        `json:"address"`
	Images        []string      `json:"images"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	EstimatedCost float64       `json:"estimatedCost"`
}

// Validate checks the creation payload against the schema constraints.
func (in *CreateRequestInput) Validate() error {
	if !problemTypes[in.ProblemType] {
		return NewValidation("unknown problem type %q", in.ProblemType)
	}
	if strings.TrimSpace(in.Description) == "" {
		return NewValidation("problem description is required")
	}
	if len(in.Description) > maxDescriptionLen {
		return NewValidation("description cannot be more than %d characters", maxDescriptionLen)
	}
	if in.Address == "" {
		return NewValidation("customer location address is required")
	}
	if in.Longitude < -180 || in.Longitude > 180 || in.Latitude < -90 || in.Latitude > 90 {
		return NewValidation("coordinates out of range")
	}
	if in.PaymentMethod != PaymentCash && in.PaymentMethod != PaymentOnline {
		return NewValidation("payment method must be cash or online")
	}
	if in.EstimatedCost < 0 {
		return NewValidation("estimated cost cannot be negative")
	}
	return nil
}

// NewServiceRequest builds a pending request from a validated payload.
// The vehicle number is normalized to trimmed uppercase.
func NewServiceRequest(customerID string, in *CreateRequestInput, now time.Time) *ServiceRequest {
	return &ServiceRequest{
		CustomerID:       customerID,
		ProblemType:      in.ProblemType,
		Description:      in.Description,
		VehicleNumber:    strings.ToUpper(strings.TrimSpace(in.VehicleNumber)),
		CustomerLocation: NewGeoPoint(in.Longitude, in.Latitude, in.Address, time.Time{}),
		Images:           in.Images,
		PaymentMethod:    in.PaymentMethod,
		Status:           StatusPending,
		EstimatedCost:    in.EstimatedCost,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// CanTransition reports whether the state machine allows moving from one
// status to another. Cancelled is reachable from any non-terminal state;
// everything else moves strictly forward.
func CanTransition(from, to RequestStatus) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusAccepted:
		return from == StatusPending
	case StatusInProgress:
		return from == StatusAccepted
	case StatusCompleted:
		return from == StatusAccepted || from == StatusInProgress
	case StatusCancelled:
		return true
	default:
		return false
	}
}
