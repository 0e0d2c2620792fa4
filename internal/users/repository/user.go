package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	userserrors "medilink/internal/users/errors"
	"medilink/pkg/config"
	"medilink/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Users"
)

// UserRepository is the read-mostly view of the user directory. Accounts are
// issued elsewhere; this service only reads them and tracks driver presence.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	GetConsultationFee(ctx context.Context, doctorID string) (float64, error)
	SetDriverOnline(ctx context.Context, driverID string, online bool, at time.Time) error
}

type mongoUserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUserRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoUserRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

// checkVariant rejects a decoded user whose profile blocks disagree with its
// role.
func checkVariant(user *model.User) error {
	if err := user.CheckVariant(); err != nil {
		return fmt.Errorf("%w: %s: %v", userserrors.ErrCorrupt, user.ID, err)
	}
	return nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var user model.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, userserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if err := checkVariant(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *mongoUserRepository) GetConsultationFee(ctx context.Context, doctorID string) (float64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetProjection(bson.M{"role": 1, "doctor.consultation_fee": 1, "patient": 1, "driver": 1, "admin": 1})

	var user model.User
	err := r.collection.FindOne(ctx, bson.M{"_id": doctorID}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, userserrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to read consultation fee: %w", err)
	}
	if err := checkVariant(&user); err != nil {
		return 0, err
	}
	if user.Role != model.RoleDoctor {
		return 0, userserrors.ErrNotDoctor
	}
	return user.Doctor.ConsultationFee, nil
}

func (r *mongoUserRepository) SetDriverOnline(ctx context.Context, driverID string, online bool, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": driverID, "role": model.RoleDriver}
	update := bson.M{"$set": bson.M{
		"driver.is_online":    online,
		"driver.last_seen_at": at.UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update driver presence: %w", err)
	}
	if result.MatchedCount == 0 {
		return userserrors.ErrNotDriver
	}
	return nil
}

