package domain

import "time"

// Lifecycle event types published through the outbox.
const (
	EventRequestCreated   = "request.created"
	EventRequestAccepted  = "request.accepted"
	EventRequestCompleted = "request.completed"
	EventRequestCancelled = "request.cancelled"
)

// RequestEventPayload is the lifecycle event body stored in the outbox and
// published to the request-events topic.
type RequestEventPayload struct {
	RequestID   string    `json:"requestId"`
	CustomerID  string    `json:"customerId"`
	MechanicID  string    `json:"mechanicId,omitempty"`
	ProblemType string    `json:"problemType"`
	Status      string    `json:"status"`
	FinalCost   float64   `json:"finalCost,omitempty"`
	Longitude   float64   `json:"longitude"`
	Latitude    float64   `json:"latitude"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// OutboxEvent is a lifecycle event persisted alongside the transition that
// produced it and published to Kafka by the outbox processor.
type OutboxEvent struct {
	ID          string     `bson:"_id" json:"id"`
	EventType   string     `bson:"event_type" json:"event_type"`
	Payload     []byte     `bson:"payload" json:"payload"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	Processed   bool       `bson:"processed" json:"processed"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}
