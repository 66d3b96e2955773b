package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CreateRequest inserts a new service request.
func (r *MongoRepository) CreateRequest(ctx context.Context, req *ServiceRequest) (*ServiceRequest, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "MongoCreateRequest")
	defer span.End()

	_, err := r.RequestCollection.InsertOne(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert service request")
		return nil, fmt.Errorf("failed to insert service request: %w", err)
	}
	span.SetAttributes(
		attribute.String("requestID", req.ID),
		attribute.String("customerID", req.CustomerID),
		attribute.String("status", string(req.Status)),
	)
	return req, nil
}

// GetRequestByID retrieves a service request by ID.
func (r *MongoRepository) GetRequestByID(ctx context.Context, id string) (*ServiceRequest, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "MongoGetRequestByID")
	defer span.End()

	var req ServiceRequest
	err := r.RequestCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFound("service request %s not found", id)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to find service request")
		return nil, fmt.Errorf("failed to find service request: %w", err)
	}
	span.SetAttributes(attribute.String("requestID", id))
	return &req, nil
}

// ListRequestsByCustomer returns a customer's requests, newest first.
func (r *MongoRepository) ListRequestsByCustomer(ctx context.Context, customerID string) ([]*ServiceRequest, error) {
	return r.listRequests(ctx, "MongoListRequestsByCustomer", bson.M{"customerId": customerID}, 0)
}

// ListRequestsByMechanic returns requests assigned to a mechanic, newest first.
func (r *MongoRepository) ListRequestsByMechanic(ctx context.Context, mechanicUserID string) ([]*ServiceRequest, error) {
	return r.listRequests(ctx, "MongoListRequestsByMechanic", bson.M{"mechanicId": mechanicUserID}, 0)
}

// FindPendingRequestsNear returns pending requests within radiusMeters of
// the point, newest first, capped at limit.
func (r *MongoRepository) FindPendingRequestsNear(ctx context.Context, longitude, latitude, radiusMeters float64, limit int64) ([]*ServiceRequest, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "MongoFindPendingRequestsNear")
	defer span.End()

	filter := bson.M{
		"status": StatusPending,
		"customerLocation": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{longitude, latitude},
				},
				"$maxDistance": radiusMeters,
			},
		},
	}
	span.SetAttributes(
		attribute.Float64("longitude", longitude),
		attribute.Float64("latitude", latitude),
		attribute.Float64("radiusMeters", radiusMeters),
	)
	return r.listRequests(ctx, "MongoFindPendingRequestsNearScan", filter, limit)
}

func (r *MongoRepository) listRequests(ctx context.Context, spanName string, filter bson.M, limit int64) ([]*ServiceRequest, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, spanName)
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cursor, err := r.RequestCollection.Find(ctx, filter, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to find service requests")
		return nil, fmt.Errorf("failed to find service requests: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []*ServiceRequest
	for cursor.Next(ctx) {
		var req ServiceRequest
		if err := cursor.Decode(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to decode service request")
			return nil, fmt.Errorf("failed to decode service request: %w", err)
		}
		requests = append(requests, &req)
	}
	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Cursor error")
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	span.SetAttributes(attribute.Int("requestCount", len(requests)))
	return requests, nil
}

// AcceptRequest assigns a mechanic to a pending request. The status guard
// and the write are one FindOneAndUpdate, so of any number of concurrent
// callers exactly one observes pending and wins.
func (r *MongoRepository) AcceptRequest(ctx context.Context, requestID, mechanicUserID string, at time.Time) (*ServiceRequest, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "MongoAcceptRequest")
	defer span.End()

	filter := bson.M{"_id": requestID, "status": StatusPending}
	update := bson.M{"$set": bson.M{
		"mechanicId": mechanicUserID,
		"status":     StatusAccepted,
		"acceptedAt": at,
		"updatedAt":  at,
	}}
	var req ServiceRequest
	err := r.RequestCollection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.diagnoseAccept(ctx, requestID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to accept service request")
		return nil, fmt.Errorf("failed to accept service request: %w", err)
	}
	span.SetAttributes(
		attribute.String("requestID", requestID),
		attribute.String("mechanicID", mechanicUserID),
	)
	return &req, nil
}

func (r *MongoRepository) diagnoseAccept(ctx context.Context, requestID string) error {
	var cur ServiceRequest
	err := r.RequestCollection.FindOne(ctx, bson.M{"_id": requestID}).Decode(&cur)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return NewNotFound("service request %s not found", requestID)
	}
	if err != nil {
		return fmt.Errorf("failed to load service request: %w", err)
	}
	return NewStateConflict("request %s is no longer available (status %s)", requestID, cur.Status)
}

// CompleteRequest closes a request with its final cost. The guard requires
// the acting mechanic to own the request and the status to be non-terminal;
// a second concurrent completion loses the race and gets a state conflict.
func (r *MongoRepository) CompleteRequest(ctx context.Context, requestID, actorID string, finalCost float64, at time.Time) (*ServiceRequest, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "MongoCompleteRequest")
	defer span.End()

	filter := bson.M{
		"_id":        requestID,
		"mechanicId": actorID,
		"status":     bson.M{"$in": []RequestStatus{StatusAccepted, StatusInProgress}},
	}
	update := bson.M{"$set": bson.M{
		"status":      StatusCompleted,
		"finalCost":   finalCost,
		"completedAt": at,
		"updatedAt":   at,
	}}
	var req ServiceRequest
	err := r.RequestCollection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.diagnoseOwnedTransition(ctx, requestID, actorID, "complete")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to complete service request")
		return nil, fmt.Errorf("failed to complete service request: %w", err)
	}
	span.SetAttributes(
		attribute.String("requestID", requestID),
		attribute.Float64("finalCost", finalCost),
	)
	return &req, nil
}

func (r *MongoRepository) diagnoseOwnedTransition(ctx context.Context, requestID, actorID, verb string) error {
	var cur ServiceRequest
	err := r.RequestCollection.FindOne(ctx, bson.M{"_id": requestID}).Decode(&cur)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return NewNotFound("service request %s not found", requestID)
	}
	if err != nil {
		return fmt.Errorf("failed to load service request: %w", err)
	}
	if cur.MechanicID != actorID {
		return NewAuthorization("not authorized to %s this request", verb)
	}
	return NewStateConflict("cannot %s request %s in status %s", verb, requestID, cur.Status)
}

// CancelRequest cancels a non-terminal request on behalf of its customer or
// assigned mechanic.
func (r *MongoRepository) CancelRequest(ctx context.Context, requestID, actorID string) (*ServiceRequest, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "MongoCancelRequest")
	defer span.End()

	now := time.Now()
	filter := bson.M{
		"_id":    requestID,
		"status": bson.M{"$in": []RequestStatus{StatusPending, StatusAccepted, StatusInProgress}},
		"$or": []bson.M{
			{"customerId": actorID},
			{"mechanicId": actorID},
		},
	}
	update := bson.M{"$set": bson.M{
		"status":    StatusCancelled,
		"updatedAt": now,
	}}
	var req ServiceRequest
	err := r.RequestCollection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.diagnoseCancel(ctx, requestID, actorID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to cancel service request")
		return nil, fmt.Errorf("failed to cancel service request: %w", err)
	}
	span.SetAttributes(attribute.String("requestID", requestID))
	return &req, nil
}

func (r *MongoRepository) diagnoseCancel(ctx context.Context, requestID, actorID string) error {
	var cur ServiceRequest
	err := r.RequestCollection.FindOne(ctx, bson.M{"_id": requestID}).Decode(&cur)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return NewNotFound("service request %s not found", requestID)
	}
	if err != nil {
		return fmt.Errorf("failed to load service request: %w", err)
	}
	if cur.CustomerID != actorID && cur.MechanicID != actorID {
		return NewAuthorization("not authorized to cancel this request")
	}
	return NewStateConflict("cannot cancel request %s in status %s", requestID, cur.Status)
}
