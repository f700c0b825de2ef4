package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/streambatch/internal/domain/stream"
	"github.com/ahrav/streambatch/pkg/common"
	"github.com/ahrav/streambatch/pkg/common/logger"
)

// Config contains the settings for consuming a stream from Kafka and
// redelivering the records a handler reports as failed.
type Config struct {
	// Brokers is a list of Kafka broker addresses to connect to.
	Brokers []string

	// SourceTopic carries the records produced upstream.
	SourceTopic string
	// RetryTopic receives failed records for another attempt. When empty,
	// failed records are republished to the topic they were read from.
	RetryTopic string
	// DeadLetterTopic receives records that exhausted MaxAttempts.
	DeadLetterTopic string

	// GroupID identifies the consumer group.
	GroupID string
	// ClientID uniquely identifies this client to the Kafka cluster.
	ClientID string

	// MaxBatchSize caps the number of records passed to one invocation.
	MaxBatchSize int
	// FlushInterval bounds how long a partially filled batch waits.
	FlushInterval time.Duration
	// MaxAttempts is how many times a record is handled before it is
	// dead-lettered. Zero retries forever.
	MaxAttempts int
}

var (
	errNoBrokers     = errors.New("kafka: at least one broker is required")
	errNoSourceTopic = errors.New("kafka: source topic is required")
	errNoGroupID     = errors.New("kafka: group id is required")
	errNoDeadLetter  = errors.New("kafka: dead letter topic is required when max attempts is set")
)

func (c *Config) validate() error {
	switch {
	case len(c.Brokers) == 0:
		return errNoBrokers
	case c.SourceTopic == "":
		return errNoSourceTopic
	case c.GroupID == "":
		return errNoGroupID
	case c.MaxAttempts > 0 && c.DeadLetterTopic == "":
		return errNoDeadLetter
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxBatchSize <= 0 {
		out.MaxBatchSize = 100
	}
	if out.FlushInterval <= 0 {
		out.FlushInterval = time.Second
	}
	return out
}

// topics returns the topics the consumer group subscribes to.
func (c *Config) topics() []string {
	if c.RetryTopic == "" || c.RetryTopic == c.SourceTopic {
		return []string{c.SourceTopic}
	}
	return []string{c.SourceTopic, c.RetryTopic}
}

// NewClient creates a Kafka client configured for manual offset commits and
// synchronous, fully acknowledged redelivery.
func NewClient(cfg *Config) (sarama.Client, error) {
	config := sarama.NewConfig()
	config.ClientID = cfg.ClientID

	// Consumer settings
	config.Consumer.Return.Errors = true
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Group.Session.Timeout = 20 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 6 * time.Second
	config.Consumer.Offsets.AutoCommit.Enable = false

	// Producer settings
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	config.Version = sarama.V3_6_0_0

	return sarama.NewClient(cfg.Brokers, config)
}

// Connect builds a Consumer from cfg, retrying with exponential backoff
// while the brokers are unavailable.
func Connect(
	ctx context.Context,
	cfg Config,
	handler stream.BatchHandler,
	log *logger.Logger,
	metrics BrokerMetrics,
	tracer trace.Tracer,
) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return common.ConnectWithRetry(ctx, log, "kafka", common.DefaultRetryConfig(), func() (*Consumer, error) {
		client, err := NewClient(&cfg)
		if err != nil {
			return nil, fmt.Errorf("creating client: %w", err)
		}

		producer, err := sarama.NewSyncProducerFromClient(client)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating producer: %w", err)
		}

		group, err := sarama.NewConsumerGroupFromClient(cfg.GroupID, client)
		if err != nil {
			producer.Close()
			client.Close()
			return nil, fmt.Errorf("creating consumer group: %w", err)
		}

		c, err := NewConsumer(group, producer, cfg, handler, log, metrics, tracer)
		if err != nil {
			group.Close()
			producer.Close()
			client.Close()
			return nil, err
		}
		c.client = client
		return c, nil
	})
}
