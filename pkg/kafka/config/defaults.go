package kafka_config

import "time"

const (
	DefaultKafkaBrokers = "localhost:9092"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 5 * time.Millisecond
	DefaultProducerRequireAcks  = 1 // leader only; dispatch events are short lived
	DefaultProducerCompression  = "snappy"

	// Dispatch consumers only care about events raised after they joined.
	DefaultConsumerStartOffset    = -1
	DefaultConsumerMinBytes       = 1
	DefaultConsumerMaxBytes       = 1 * 1024 * 1024 // 1MB
	DefaultConsumerMaxWait        = 250 * time.Millisecond
	DefaultConsumerCommitInterval = 1 * time.Second
	DefaultConsumerMaxRetries     = 2
	DefaultConsumerRetryBackoff   = 1 * time.Second
)
