package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "medilink/internal/availability/errors"
	"medilink/pkg/config"
	mongotx "medilink/pkg/db/mongo"
	"medilink/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Availability"
)

type AvailabilityRepository interface {
	FindByDoctor(ctx context.Context, doctorID string) ([]*model.WeeklyAvailability, error)
	FindDay(ctx context.Context, doctorID, day string) (*model.WeeklyAvailability, error)
	// InsertMany inserts every entry it can. ErrDuplicate is returned when at
	// least one day already existed.
	InsertMany(ctx context.Context, entries []*model.WeeklyAvailability) error
	Replace(ctx context.Context, entry *model.WeeklyAvailability) error
	DeleteByDoctor(ctx context.Context, doctorID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoAvailabilityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoAvailabilityRepository(cfg *config.Config) AvailabilityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAvailabilityRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless it is a SessionContext,
// which cannot be wrapped without leaving the transaction.
func (r *mongoAvailabilityRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoAvailabilityRepository) FindByDoctor(ctx context.Context, doctorID string) ([]*model.WeeklyAvailability, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"doctor_id": doctorID})
	if err != nil {
		return nil, fmt.Errorf("failed to find availability: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.WeeklyAvailability
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode availability: %w", err)
	}
	return entries, nil
}

func (r *mongoAvailabilityRepository) FindDay(ctx context.Context, doctorID, day string) (*model.WeeklyAvailability, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var entry model.WeeklyAvailability
	err := r.collection.FindOne(ctx, bson.M{"doctor_id": doctorID, "day_of_week": day}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find availability day: %w", err)
	}
	return &entry, nil
}

func (r *mongoAvailabilityRepository) InsertMany(ctx context.Context, entries []*model.WeeklyAvailability) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	docs := make([]any, 0, len(entries))
	for _, entry := range entries {
		docs = append(docs, entry)
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return availabilityerrors.ErrDuplicate
		}
		return fmt.Errorf("failed to insert availability: %w", err)
	}
	return nil
}

func (r *mongoAvailabilityRepository) Replace(ctx context.Context, entry *model.WeeklyAvailability) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"doctor_id": entry.DoctorID, "day_of_week": entry.DayOfWeek}
	replacement := *entry
	replacement.ID = ""

	result, err := r.collection.ReplaceOne(ctx, filter, replacement, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return availabilityerrors.ErrDuplicate
		}
		return fmt.Errorf("failed to replace availability: %w", err)
	}
	if result.UpsertedID != nil {
		entry.ID = upsertedID(result.UpsertedID)
	}
	return nil
}

func upsertedID(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (r *mongoAvailabilityRepository) DeleteByDoctor(ctx context.Context, doctorID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"doctor_id": doctorID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete availability: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoAvailabilityRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
