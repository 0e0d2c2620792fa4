package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	dispatcherrors "medilink/internal/dispatch/errors"
	"medilink/pkg/config"
	"medilink/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Emergency_requests"
)

type EmergencyRepository interface {
	// Create inserts req unless its request id is already stored. It returns
	// the stored request and whether this call inserted it.
	Create(ctx context.Context, req *model.EmergencyRequest) (*model.EmergencyRequest, bool, error)
	FindByRequestID(ctx context.Context, requestID string) (*model.EmergencyRequest, error)
	FindPending(ctx context.Context) ([]*model.EmergencyRequest, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]*model.EmergencyRequest, error)
	// Claim moves a pending request to accepted for driverID.
	Claim(ctx context.Context, requestID, driverID string, info *model.DriverInfo, now time.Time) (*model.EmergencyRequest, error)
	// Transition moves a request from one status to another. A non-empty
	// driverID must also match the assigned driver.
	Transition(ctx context.Context, requestID, from, to, driverID string, info *model.DriverInfo, now time.Time) (*model.EmergencyRequest, error)
}

type mongoEmergencyRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoEmergencyRepository(cfg *config.Config) EmergencyRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoEmergencyRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoEmergencyRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoEmergencyRepository) Create(ctx context.Context, req *model.EmergencyRequest) (*model.EmergencyRequest, bool, error) {
	writeCtx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"request_id": req.RequestID}
	update := bson.M{"$setOnInsert": req}

	result, err := r.collection.UpdateOne(writeCtx, filter, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("failed to create emergency request: %w", err)
	}
	if err == nil && result.UpsertedCount == 1 {
		return req, true, nil
	}

	// Either the key existed or a concurrent upsert won the unique index.
	stored, err := r.FindByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (r *mongoEmergencyRepository) FindByRequestID(ctx context.Context, requestID string) (*model.EmergencyRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var req model.EmergencyRequest
	err := r.collection.FindOne(ctx, bson.M{"request_id": requestID}).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, dispatcherrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find emergency request: %w", err)
	}
	return &req, nil
}

func (r *mongoEmergencyRepository) FindPending(ctx context.Context) ([]*model.EmergencyRequest, error) {
	return r.find(ctx, bson.M{"status": model.EmergencyPending})
}

func (r *mongoEmergencyRepository) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]*model.EmergencyRequest, error) {
	return r.find(ctx, bson.M{"status": model.EmergencyPending, "created_at": bson.M{"$lt": cutoff}})
}

func (r *mongoEmergencyRepository) find(ctx context.Context, filter bson.M) ([]*model.EmergencyRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find emergency requests: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []*model.EmergencyRequest
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode emergency requests: %w", err)
	}
	return requests, nil
}

func (r *mongoEmergencyRepository) Claim(ctx context.Context, requestID, driverID string, info *model.DriverInfo, now time.Time) (*model.EmergencyRequest, error) {
	filter := bson.M{"request_id": requestID, "status": model.EmergencyPending}
	set := bson.M{
		"status":     model.EmergencyAccepted,
		"driver_id":  driverID,
		"updated_at": now,
	}
	if info != nil {
		set["driver_info"] = info
	}
	update := bson.M{
		"$set": set,
		"$min": bson.M{"status_history." + model.EmergencyAccepted: now},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *mongoEmergencyRepository) Transition(ctx context.Context, requestID, from, to, driverID string, info *model.DriverInfo, now time.Time) (*model.EmergencyRequest, error) {
	filter := bson.M{"request_id": requestID, "status": from}
	if driverID != "" {
		filter["driver_id"] = driverID
	}
	set := bson.M{
		"status":     to,
		"updated_at": now,
	}
	if info != nil {
		set["driver_info"] = info
	}
	update := bson.M{
		"$set": set,
		"$min": bson.M{"status_history." + to: now},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *mongoEmergencyRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*model.EmergencyRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var req model.EmergencyRequest
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, dispatcherrors.ErrStateChanged
		}
		return nil, fmt.Errorf("failed to update emergency request: %w", err)
	}
	return &req, nil
}
