package testutil

import (
	"context"
	"testing"
	"time"

	mongoMigration "medilink/internal/migrations/mongo"
	usersrepo "medilink/internal/users/repository"
	"medilink/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoHelper seeds and cleans the database the services under test use.
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return &MongoHelper{
		Client:   client,
		Database: client.Database(dbName),
	}
}

func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

// CleanCollections empties every medilink collection, keeping validators and
// indexes in place.
func (m *MongoHelper) CleanCollections(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for name := range mongoMigration.Collections() {
		if _, err := m.Database.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			t.Fatalf("failed to clean collection %s: %v", name, err)
		}
	}
}

func (m *MongoHelper) SeedUsers(t *testing.T, users ...*model.User) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, u := range users {
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
		}
		if _, err := m.Database.Collection(usersrepo.CollectionName).InsertOne(ctx, u); err != nil {
			t.Fatalf("failed to seed user %s: %v", u.ID, err)
		}
	}
}

func Doctor(id string, fee float64) *model.User {
	return &model.User{ID: id, Name: "Dr " + id, Role: model.RoleDoctor, Doctor: &model.DoctorProfile{Specialty: "general", ConsultationFee: fee}}
}

func Patient(id string) *model.User {
	return &model.User{ID: id, Name: "Patient " + id, Role: model.RolePatient, Patient: &model.PatientProfile{}}
}

func Driver(id, vehicle string) *model.User {
	return &model.User{ID: id, Name: "Driver " + id, Role: model.RoleDriver, Driver: &model.DriverProfile{VehicleNumber: vehicle}}
}
