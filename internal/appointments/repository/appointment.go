package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	appointmentserrors "medilink/internal/appointments/errors"
	"medilink/pkg/config"
	"medilink/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Appointments"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *model.Appointment) error
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	ExistsActiveSlot(ctx context.Context, doctorID string, date time.Time, startTime string) (bool, error)
	FindActiveByDoctorAndDate(ctx context.Context, doctorID string, date time.Time) ([]*model.Appointment, error)
	FindByParticipant(ctx context.Context, userID string, limit int, offset int64) ([]*model.Appointment, error)
	CountByParticipant(ctx context.Context, userID string) (int64, error)
	// Cancel soft-cancels a scheduled, future appointment owned by patientID.
	Cancel(ctx context.Context, id, patientID string, now time.Time) (*model.Appointment, error)
	TransitionStatus(ctx context.Context, id, from, to string, now time.Time) (*model.Appointment, error)
	TransitionVideoCall(ctx context.Context, id, from, to string, statuses []string, now time.Time) (*model.Appointment, error)
}

type mongoAppointmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAppointmentRepository(cfg *config.Config) AppointmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAppointmentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoAppointmentRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoAppointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, appointment)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return appointmentserrors.ErrSlotTaken
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		appointment.ID = oid.Hex()
	}
	return nil
}

func (r *mongoAppointmentRepository) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", appointmentserrors.ErrInvalidID, id)
	}

	var appointment model.Appointment
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&appointment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appointmentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return &appointment, nil
}

func (r *mongoAppointmentRepository) ExistsActiveSlot(ctx context.Context, doctorID string, date time.Time, startTime string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"doctor_id":        doctorID,
		"appointment_date": date,
		"start_time":       startTime,
		"slot_active":      true,
	}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return count > 0, nil
}

func (r *mongoAppointmentRepository) FindActiveByDoctorAndDate(ctx context.Context, doctorID string, date time.Time) ([]*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"doctor_id":        doctorID,
		"appointment_date": date,
		"slot_active":      true,
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appointments []*model.Appointment
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appointments, nil
}

func participantFilter(userID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"doctor_id": userID},
		bson.M{"patient_id": userID},
	}}
}

func (r *mongoAppointmentRepository) FindByParticipant(ctx context.Context, userID string, limit int, offset int64) ([]*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "appointment_date", Value: -1}, {Key: "start_time", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, participantFilter(userID), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appointments []*model.Appointment
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appointments, nil
}

func (r *mongoAppointmentRepository) CountByParticipant(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, participantFilter(userID))
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

func (r *mongoAppointmentRepository) Cancel(ctx context.Context, id, patientID string, now time.Time) (*model.Appointment, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", appointmentserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":              objectID,
		"patient_id":       patientID,
		"status":           model.AppointmentScheduled,
		"appointment_date": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{
		"status":       model.AppointmentCancelled,
		"cancelled_at": now,
		"slot_active":  false,
		"updated_at":   now,
	}}

	appointment, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, appointmentserrors.ErrStateChanged) {
		return nil, appointmentserrors.ErrNotFound
	}
	return appointment, err
}

func (r *mongoAppointmentRepository) TransitionStatus(ctx context.Context, id, from, to string, now time.Time) (*model.Appointment, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", appointmentserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": from}
	set := bson.M{"status": to, "updated_at": now}
	if to == model.AppointmentCancelled {
		set["cancelled_at"] = now
		set["slot_active"] = false
	}

	return r.findOneAndUpdate(ctx, filter, bson.M{"$set": set})
}

func (r *mongoAppointmentRepository) TransitionVideoCall(ctx context.Context, id, from, to string, statuses []string, now time.Time) (*model.Appointment, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", appointmentserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":               objectID,
		"type":              model.AppointmentTeleConsult,
		"video_call_status": from,
		"status":            bson.M{"$in": statuses},
	}
	set := bson.M{"video_call_status": to, "updated_at": now}
	if to == model.VideoCallInProgress || (to == model.VideoCallCompleted && from == model.VideoCallNotStarted) {
		set["video_call_start_time"] = now
	}
	if to == model.VideoCallCompleted {
		set["video_call_end_time"] = now
	}

	return r.findOneAndUpdate(ctx, filter, bson.M{"$set": set})
}

func (r *mongoAppointmentRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var appointment model.Appointment
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&appointment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appointmentserrors.ErrStateChanged
		}
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	return &appointment, nil
}
