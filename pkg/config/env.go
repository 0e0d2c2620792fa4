package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvAuthSecret = "AUTH_SECRET"
	EnvAuthIssuer = "AUTH_ISSUER"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvDispatchBusEnabled     = "DISPATCH_BUS_ENABLED"
	EnvDispatchTopic          = "DISPATCH_TOPIC"
	EnvDispatchGroupPrefix    = "DISPATCH_GROUP_PREFIX"
	EnvDispatchPendingTimeout = "DISPATCH_PENDING_TIMEOUT"
	EnvDispatchSweepInterval  = "DISPATCH_SWEEP_INTERVAL"

	EnvWSWriteTimeout = "WS_WRITE_TIMEOUT"
	EnvWSPongTimeout  = "WS_PONG_TIMEOUT"
	EnvWSSendBuffer   = "WS_SEND_BUFFER"

	EnvInstanceID   = "INSTANCE_ID"
	EnvPhoneRegions = "PHONE_REGIONS"
)
