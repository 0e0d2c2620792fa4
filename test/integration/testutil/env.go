package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"medilink/pkg/auth"
	"medilink/pkg/client"
)

const (
	DefaultMongoURI           = "mongodb://localhost:27017"
	DefaultDatabaseName       = "medilink"
	DefaultAuthIssuer         = "medilink"
	ConnectionTimeout         = 10 * time.Second
	DefaultHealthCheckTimeout = 30 * time.Second
	tokenTTL                  = time.Hour
)

// TestEnv points at running services. Tests using it are skipped unless
// TEST_SERVER_URL is set.
type TestEnv struct {
	MongoURI     string
	DatabaseName string
	ServerURL    string
	DispatchURL  string
	tokens       *auth.TokenService
}

func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	serverURL := os.Getenv("TEST_SERVER_URL")
	if serverURL == "" {
		t.Skip("TEST_SERVER_URL not set, skipping integration test")
	}

	return &TestEnv{
		MongoURI:     getEnv("TEST_MONGO_URI", DefaultMongoURI),
		DatabaseName: getEnv("TEST_DB_NAME", DefaultDatabaseName),
		ServerURL:    serverURL,
		DispatchURL:  getEnv("TEST_DISPATCH_URL", serverURL),
		tokens:       auth.NewTokenService(getEnv("TEST_AUTH_SECRET", "integration-secret"), getEnv("TEST_AUTH_ISSUER", DefaultAuthIssuer)),
	}
}

func (e *TestEnv) Setup(t *testing.T, baseURL string) *MongoHelper {
	t.Helper()

	mongo := NewMongoHelper(t, e.MongoURI, e.DatabaseName)
	mongo.CleanCollections(t)
	t.Cleanup(func() {
		mongo.CleanCollections(t)
		mongo.Close(t)
	})

	ctx, cancel := context.WithTimeout(context.Background(), DefaultHealthCheckTimeout)
	defer cancel()
	if err := client.NewHttpClient(baseURL, "").WaitForHealthy(ctx, DefaultHealthCheckTimeout); err != nil {
		t.Fatalf("service at %s is not healthy: %v", baseURL, err)
	}

	return mongo
}

// Token signs an access token with the secret the services under test share.
func (e *TestEnv) Token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := e.tokens.Issue(userID, role, tokenTTL)
	if err != nil {
		t.Fatalf("failed to issue token for %s: %v", userID, err)
	}
	return token
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
