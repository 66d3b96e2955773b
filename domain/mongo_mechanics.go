package domain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CreateMechanic inserts a new mechanic profile.
func (r *MongoRepository) CreateMechanic(ctx context.Context, m *Mechanic) (*Mechanic, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "MongoCreateMechanic")
	defer span.End()

	_, err := r.MechanicCollection.InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, NewConflict("mechanic profile already exists for user %s", m.UserID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert mechanic")
		return nil, fmt.Errorf("failed to insert mechanic: %w", err)
	}
	span.SetAttributes(
		attribute.String("mechanicID", m.ID),
		attribute.String("userID", m.UserID),
	)
	return m, nil
}

// GetMechanicByID retrieves a mechanic by profile ID.
func (r *MongoRepository) GetMechanicByID(ctx context.Context, id string) (*Mechanic, error) {
	return r.getMechanic(ctx, "MongoGetMechanicByID", bson.M{"_id": id})
}

// GetMechanicByUserID retrieves a mechanic by the linked user identity.
func (r *MongoRepository) GetMechanicByUserID(ctx context.Context, userID string) (*Mechanic, error) {
	return r.getMechanic(ctx, "MongoGetMechanicByUserID", bson.M{"userId": userID})
}

func (r *MongoRepository) getMechanic(ctx context.Context, spanName string, filter bson.M) (*Mechanic, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, spanName)
	defer span.End()

	var m Mechanic
	err := r.MechanicCollection.FindOne(ctx, filter).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFound("mechanic not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to find mechanic")
		return nil, fmt.Errorf("failed to find mechanic: %w", err)
	}
	span.SetAttributes(attribute.String("mechanicID", m.ID))
	return &m, nil
}

// FindMechanicsNear returns online, verified mechanics within radiusMeters
// of the point, best rating first.
func (r *MongoRepository) FindMechanicsNear(ctx context.Context, longitude, latitude, radiusMeters float64, limit int64) ([]*Mechanic, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "MongoFindMechanicsNear")
	defer span.End()

	filter := bson.M{
		"isOnline":   true,
		"isVerified": true,
		"currentLocation": bson.M{
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
	return r.listMechanics(ctx, filter, limit)
}

// SearchMechanics filters online, verified mechanics by specialization
// substring, minimum rating and an optional radius.
func (r *MongoRepository) SearchMechanics(ctx context.Context, f MechanicSearchFilter, limit int64) ([]*Mechanic, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "MongoSearchMechanics")
	defer span.End()

	filter := bson.M{
		"isOnline":   true,
		"isVerified": true,
	}
	if f.Specialization != "" {
		filter["specialization"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Specialization), Options: "i"}
	}
	if f.MinRating > 0 {
		filter["rating"] = bson.M{"$gte": f.MinRating}
	}
	if f.HasPoint {
		filter["currentLocation"] = bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{f.Longitude, f.Latitude},
				},
				"$maxDistance": f.RadiusMeters,
			},
		}
	}
	span.SetAttributes(
		attribute.String("specialization", f.Specialization),
		attribute.Float64("minRating", f.MinRating),
	)
	return r.listMechanics(ctx, filter, limit)
}

func (r *MongoRepository) listMechanics(ctx context.Context, filter bson.M, limit int64) ([]*Mechanic, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "MongoListMechanics")
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "rating", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cursor, err := r.MechanicCollection.Find(ctx, filter, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to find mechanics")
		return nil, fmt.Errorf("failed to find mechanics: %w", err)
	}
	defer cursor.Close(ctx)

	var mechanics []*Mechanic
	for cursor.Next(ctx) {
		var m Mechanic
		if err := cursor.Decode(&m); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to decode mechanic")
			return nil, fmt.Errorf("failed to decode mechanic: %w", err)
		}
		mechanics = append(mechanics, &m)
	}
	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Cursor error")
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	span.SetAttributes(attribute.Int("mechanicCount", len(mechanics)))
	return mechanics, nil
}

// IncrementTotalJobs bumps the accepted-job counter with an atomic $inc.
func (r *MongoRepository) IncrementTotalJobs(ctx context.Context, mechanicUserID string) error {
	return r.incrementMechanic(ctx, "MongoIncrementTotalJobs", mechanicUserID, bson.M{"totalJobs": 1})
}

// IncrementCompletedJobs bumps the completed-job counter with an atomic $inc.
func (r *MongoRepository) IncrementCompletedJobs(ctx context.Context, mechanicUserID string) error {
	return r.incrementMechanic(ctx, "MongoIncrementCompletedJobs", mechanicUserID, bson.M{"completedJobs": 1})
}

// RecordEarnings adds the amount to both earnings buckets in one $inc, so
// concurrent completions for the same mechanic cannot lose updates.
func (r *MongoRepository) RecordEarnings(ctx context.Context, mechanicUserID string, amount float64) error {
	return r.incrementMechanic(ctx, "MongoRecordEarnings", mechanicUserID, bson.M{
		"earnings.thisMonth": amount,
		"earnings.total":     amount,
	})
}

func (r *MongoRepository) incrementMechanic(ctx context.Context, spanName, mechanicUserID string, inc bson.M) error {
	_, span := otel.Tracer(tracerName).Start(ctx, spanName)
	defer span.End()

	res, err := r.MechanicCollection.UpdateOne(ctx,
		bson.M{"userId": mechanicUserID},
		bson.M{
			"$inc": inc,
			"$set": bson.M{"updatedAt": time.Now()},
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update mechanic ledger")
		return fmt.Errorf("failed to update mechanic ledger: %w", err)
	}
	if res.MatchedCount == 0 {
		return NewNotFound("mechanic profile not found for user %s", mechanicUserID)
	}
	span.SetAttributes(attribute.String("mechanicUserID", mechanicUserID))
	return nil
}

// AddReview appends a review and recomputes the aggregate rating in a single
// FindOneAndUpdate. The filter rejects a duplicate (customerId, requestId)
// pair and the pipeline recomputes the mean over the post-append array, so
// no state is ever visible where the review exists but the rating is stale.
func (r *MongoRepository) AddReview(ctx context.Context, mechanicID string, review Review) (*Mechanic, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "MongoAddReview")
	defer span.End()

	filter := bson.M{
		"_id": mechanicID,
		"reviews": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"customerId": review.CustomerID,
			"requestId":  review.RequestID,
		}}},
	}
	reviewDoc := bson.M{
		"customerId": review.CustomerID,
		"requestId":  review.RequestID,
		"rating":     review.Rating,
		"comment":    review.Comment,
		"createdAt":  review.CreatedAt,
	}
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"reviews": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$reviews", bson.A{}}},
				bson.A{bson.M{"$literal": reviewDoc}},
			}},
			"updatedAt": time.Now(),
		}}},
		bson.D{{Key: "$set", Value: bson.M{
			"rating": bson.M{"$round": bson.A{bson.M{"$avg": "$reviews.rating"}, 1}},
		}}},
	}
	var m Mechanic
	err := r.MechanicCollection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.diagnoseAddReview(ctx, mechanicID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to add review")
		return nil, fmt.Errorf("failed to add review: %w", err)
	}
	span.SetAttributes(
		attribute.String("mechanicID", mechanicID),
		attribute.Int("reviewCount", len(m.Reviews)),
		attribute.Float64("rating", m.Rating),
	)
	return &m, nil
}

func (r *MongoRepository) diagnoseAddReview(ctx context.Context, mechanicID string) error {
	err := r.MechanicCollection.FindOne(ctx, bson.M{"_id": mechanicID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return NewNotFound("mechanic %s not found", mechanicID)
	}
	if err != nil {
		return fmt.Errorf("failed to load mechanic: %w", err)
	}
	return NewConflict("you have already reviewed this mechanic for this request")
}

// UpdateMechanicLocation replaces the mechanic's current location.
func (r *MongoRepository) UpdateMechanicLocation(ctx context.Context, mechanicUserID string, location GeoPoint) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "MongoUpdateMechanicLocation")
	defer span.End()

	res, err := r.MechanicCollection.UpdateOne(ctx,
		bson.M{"userId": mechanicUserID},
		bson.M{"$set": bson.M{
			"currentLocation": location,
			"updatedAt":       time.Now(),
		}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update mechanic location")
		return fmt.Errorf("failed to update mechanic location: %w", err)
	}
	if res.MatchedCount == 0 {
		return NewNotFound("mechanic profile not found for user %s", mechanicUserID)
	}
	span.SetAttributes(
		attribute.String("mechanicUserID", mechanicUserID),
		attribute.Float64("longitude", location.Longitude()),
		attribute.Float64("latitude", location.Latitude()),
	)
	return nil
}

// SetMechanicOnline toggles discoverability.
func (r *MongoRepository) SetMechanicOnline(ctx context.Context, mechanicUserID string, online bool) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "MongoSetMechanicOnline")
	defer span.End()

	res, err := r.MechanicCollection.UpdateOne(ctx,
		bson.M{"userId": mechanicUserID},
		bson.M{"$set": bson.M{
			"isOnline":  online,
			"updatedAt": time.Now(),
		}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update mechanic status")
		return fmt.Errorf("failed to update mechanic status: %w", err)
	}
	if res.MatchedCount == 0 {
		return NewNotFound("mechanic profile not found for user %s", mechanicUserID)
	}
	span.SetAttributes(attribute.Bool("isOnline", online))
	return nil
}
