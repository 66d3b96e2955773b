package domain

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "roadassist"

// MongoRepository implements Repository on MongoDB collections.
type MongoRepository struct {
	RequestCollection  *mongo.Collection
	MechanicCollection *mongo.Collection
	OutboxCollection   *mongo.Collection
}

// NewMongoRepository creates a MongoRepository bound to the given database.
func NewMongoRepository(client *mongo.Client, database string) *MongoRepository {
	db := client.Database(database)
	return &MongoRepository{
		RequestCollection:  db.Collection("service_requests"),
		MechanicCollection: db.Collection("mechanics"),
		OutboxCollection:   db.Collection("outbox"),
	}
}

// EnsureIndexes creates the geospatial and query indexes both collections
// rely on. Safe to call on every startup.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "MongoEnsureIndexes")
	defer span.End()

	requestIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "customerLocation", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "mechanicId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := r.RequestCollection.Indexes().CreateMany(ctx, requestIndexes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create request indexes")
		return fmt.Errorf("failed to create request indexes: %w", err)
	}

	mechanicIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "currentLocation", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "isOnline", Value: 1}, {Key: "isVerified", Value: 1}}},
		{Keys: bson.D{{Key: "specialization", Value: 1}, {Key: "rating", Value: -1}}},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := r.MechanicCollection.Indexes().CreateMany(ctx, mechanicIndexes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create mechanic indexes")
		return fmt.Errorf("failed to create mechanic indexes: %w", err)
	}

	outboxIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "processed", Value: 1}, {Key: "created_at", Value: 1}}},
	}
	if _, err := r.OutboxCollection.Indexes().CreateMany(ctx, outboxIndexes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create outbox indexes")
		return fmt.Errorf("failed to create outbox indexes: %w", err)
	}
	return nil
}

// SaveOutboxEvent saves an event to the outbox collection.
func (r *MongoRepository) SaveOutboxEvent(ctx context.Context, event *OutboxEvent) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "MongoSaveOutboxEvent")
	defer span.End()

	_, err := r.OutboxCollection.InsertOne(ctx, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save outbox event")
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	span.SetAttributes(
		attribute.String("eventID", event.ID),
		attribute.String("eventType", event.EventType),
	)
	return nil
}

// GetUnprocessedOutboxEvents retrieves outbox events not yet published.
func (r *MongoRepository) GetUnprocessedOutboxEvents(ctx context.Context) ([]*OutboxEvent, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "MongoGetUnprocessedOutboxEvents")
	defer span.End()

	cursor, err := r.OutboxCollection.Find(ctx, bson.M{"processed": false},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to find unprocessed outbox events")
		return nil, fmt.Errorf("failed to find unprocessed outbox events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*OutboxEvent
	for cursor.Next(ctx) {
		var event OutboxEvent
		if err := cursor.Decode(&event); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to decode outbox event")
			return nil, fmt.Errorf("failed to decode outbox event: %w", err)
		}
		events = append(events, &event)
	}
	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Cursor error")
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	span.SetAttributes(attribute.Int("eventCount", len(events)))
	return events, nil
}

// MarkOutboxEventProcessed marks an outbox event as published.
func (r *MongoRepository) MarkOutboxEventProcessed(ctx context.Context, eventID string) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "MongoMarkOutboxEventProcessed")
	defer span.End()

	now := time.Now()
	_, err := r.OutboxCollection.UpdateOne(ctx, bson.M{"_id": eventID}, bson.M{
		"$set": bson.M{
			"processed":    true,
			"processed_at": now,
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to mark outbox event as processed")
		return fmt.Errorf("failed to mark outbox event as processed: %w", err)
	}
	span.SetAttributes(attribute.String("eventID", eventID))
	return nil
}
