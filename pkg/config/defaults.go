package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "medilink"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultAuthIssuer = "medilink"

	DefaultRedisDB = 0

	DefaultDispatchBusEnabled     = false
	DefaultDispatchTopic          = "dispatch.events"
	DefaultDispatchGroupPrefix    = "dispatch"
	DefaultDispatchPendingTimeout = 15 * time.Minute
	DefaultDispatchSweepInterval  = 30 * time.Second

	DefaultWSWriteTimeout = 10 * time.Second
	DefaultWSPongTimeout  = 60 * time.Second
	DefaultWSSendBuffer   = 64

	DefaultPhoneRegions = "IN,US,GB"

	DefaultPaginationLimit = 10
	MaxPaginationLimit     = 100

	minAuthSecretLength = 16
)
