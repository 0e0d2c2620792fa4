package config

import (
	"io"
	"strings"
	"testing"
	"time"

	"medilink/pkg/logger"
)

func validConfig() *Config {
	return &Config{
		MongoURI:               DefaultMongoURI,
		MongoDatabaseName:      DefaultMongoDatabaseName,
		MongoConnTimeout:       DefaultMongoConnTimeout,
		Port:                   DefaultPort,
		RateLimitRequests:      DefaultRateLimitRequests,
		RateLimitWindow:        DefaultRateLimitWindow,
		RequestTimeout:         DefaultRequestTimeout,
		IdempotencyTTL:         DefaultIdempotencyTTL,
		MaxRequestSize:         DefaultMaxRequestSize,
		ReadTimeout:            DefaultReadTimeout,
		WriteTimeout:           DefaultWriteTimeout,
		IdleTimeout:            DefaultIdleTimeout,
		ShutdownTimeout:        DefaultShutdownTimeout,
		AuthSecret:             "0123456789abcdef0123",
		DispatchTopic:          DefaultDispatchTopic,
		DispatchPendingTimeout: DefaultDispatchPendingTimeout,
		DispatchSweepInterval:  DefaultDispatchSweepInterval,
		WSWriteTimeout:         DefaultWSWriteTimeout,
		WSPongTimeout:          DefaultWSPongTimeout,
		WSSendBuffer:           DefaultWSSendBuffer,
		PhoneRegions:           []string{"IN"},
		Log:                    logger.New(logger.Config{Output: io.Discard}),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero pending timeout disables sweep", mutate: func(c *Config) { c.DispatchPendingTimeout = 0 }},
		{name: "bad port", mutate: func(c *Config) { c.Port = "70000" }, wantErr: "Port must be between"},
		{name: "bad mongo uri", mutate: func(c *Config) { c.MongoURI = "postgres://x" }, wantErr: "MongoURI must start"},
		{name: "short secret", mutate: func(c *Config) { c.AuthSecret = "short" }, wantErr: "AuthSecret"},
		{name: "negative timeout", mutate: func(c *Config) { c.DispatchPendingTimeout = -time.Second }, wantErr: "DispatchPendingTimeout"},
		{name: "bus without topic", mutate: func(c *Config) { c.DispatchBusEnabled = true; c.DispatchTopic = "" }, wantErr: "DispatchTopic"},
		{name: "zero ws buffer", mutate: func(c *Config) { c.WSSendBuffer = 0 }, wantErr: "WSSendBuffer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_NumbersEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "abc"
	cfg.AuthSecret = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "1. ") || !strings.Contains(err.Error(), "2. ") {
		t.Errorf("expected numbered list, got %q", err.Error())
	}
}

func TestRedactMongoURI(t *testing.T) {
	got := redactMongoURI("mongodb://admin:secret@db:27017/medilink")
	if strings.Contains(got, "secret") {
		t.Errorf("password leaked: %s", got)
	}
	if !strings.HasPrefix(got, "mongodb://***:***@") {
		t.Errorf("unexpected redaction: %s", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv(EnvPhoneRegions, " in, us ,,gb")
	got := getEnvList(EnvPhoneRegions, DefaultPhoneRegions)
	want := []string{"IN", "US", "GB"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalizePaginationLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultPaginationLimit},
		{-5, DefaultPaginationLimit},
		{25, 25},
		{MaxPaginationLimit + 1, MaxPaginationLimit},
	}
	for _, tt := range tests {
		if got := NormalizePaginationLimit(tt.in); got != tt.want {
			t.Errorf("NormalizePaginationLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
