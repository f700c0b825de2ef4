// Package kafka runs a stream.BatchHandler against a Kafka consumer group.
// Records are grouped per partition into batches, failed records are
// republished for a later attempt and offsets are committed only once every
// record of a batch has either succeeded or been redelivered.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/streambatch/internal/domain/stream"
	"github.com/ahrav/streambatch/internal/infra/eventbus/kafka/tracing"
	"github.com/ahrav/streambatch/pkg/common/logger"
)

// ErrUnknownFailure is returned when a handler reports an identifier that
// was not part of the batch it was given.
var ErrUnknownFailure = errors.New("handler reported a record outside the batch")

// Consumer feeds batches from a consumer group to a stream.BatchHandler.
type Consumer struct {
	client   sarama.Client
	group    sarama.ConsumerGroup
	producer sarama.SyncProducer
	topics   []string

	claimHandler *batchClaimHandler

	logger *logger.Logger
	tracer trace.Tracer
}

// NewConsumer creates a Consumer from an existing consumer group and producer.
func NewConsumer(
	group sarama.ConsumerGroup,
	producer sarama.SyncProducer,
	cfg Config,
	handler stream.BatchHandler,
	log *logger.Logger,
	metrics BrokerMetrics,
	tracer trace.Tracer,
) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics are required for kafka consumer")
	}
	cfg = cfg.withDefaults()

	log = log.With(
		"component", "kafka_consumer",
		"client_id", cfg.ClientID,
		"group_id", cfg.GroupID,
	)

	return &Consumer{
		group:    group,
		producer: producer,
		topics:   cfg.topics(),
		claimHandler: &batchClaimHandler{
			handler:       handler,
			maxBatchSize:  cfg.MaxBatchSize,
			flushInterval: cfg.FlushInterval,
			redeliverer: &redeliverer{
				producer:        producer,
				retryTopic:      cfg.RetryTopic,
				deadLetterTopic: cfg.DeadLetterTopic,
				maxAttempts:     cfg.MaxAttempts,
				tracer:          tracer,
				metrics:         metrics,
			},
			logger:  log,
			tracer:  tracer,
			metrics: metrics,
		},
		logger: log,
		tracer: tracer,
	}, nil
}

// Run joins the consumer group and handles batches until ctx is done or the
// group is closed. Rebalances and batch-fatal errors end the current session
// and a new one is started, which redelivers every uncommitted record.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info(ctx, "Starting consumer", "topics", c.topics)

	go c.logGroupErrors(ctx)

	for {
		if err := c.group.Consume(ctx, c.topics, c.claimHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error(ctx, "Error from consumer group", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) logGroupErrors(ctx context.Context) {
	for err := range c.group.Errors() {
		c.logger.Warn(ctx, "Consumer group error", "error", err)
	}
}

// Close shuts down the consumer group, the producer and the client.
func (c *Consumer) Close() error {
	ctx, span := c.tracer.Start(context.Background(), "kafka_consumer.close")
	defer span.End()

	var errs []error
	if err := c.group.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing consumer group: %w", err))
	}
	if err := c.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing producer: %w", err))
	}
	if c.client != nil && !c.client.Closed() {
		if err := c.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing client: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to close consumer")
		c.logger.Error(ctx, "Failed to close consumer", "error", err)
		return err
	}

	span.SetStatus(codes.Ok, "closed consumer")
	c.logger.Info(ctx, "Closed consumer")
	return nil
}

// batchClaimHandler implements sarama.ConsumerGroupHandler.
type batchClaimHandler struct {
	handler       stream.BatchHandler
	maxBatchSize  int
	flushInterval time.Duration
	redeliverer   *redeliverer

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics BrokerMetrics
}

func (h *batchClaimHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info(sess.Context(), "Consumer group session setup",
		"generation_id", sess.GenerationID(),
		"member_id", sess.MemberID(),
		"claims", sess.Claims(),
	)
	return nil
}

func (h *batchClaimHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info(sess.Context(), "Consumer group session cleanup",
		"generation_id", sess.GenerationID(),
		"member_id", sess.MemberID(),
	)
	return nil
}

// ConsumeClaim accumulates messages from one partition and flushes them as a
// batch when MaxBatchSize is reached or FlushInterval elapses. Returning an
// error ends the session without committing the failed batch.
func (h *batchClaimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	h.logger.Info(ctx, "Starting to consume from partition",
		"topic", claim.Topic(),
		"partition", claim.Partition(),
		"initial_offset", claim.InitialOffset(),
	)

	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	pending := make([]*sarama.ConsumerMessage, 0, h.maxBatchSize)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		msgs := pending
		pending = make([]*sarama.ConsumerMessage, 0, h.maxBatchSize)
		return h.handleBatch(sess, msgs)
	}

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return flush()
			}
			pending = append(pending, msg)
			if len(pending) >= h.maxBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case <-ctx.Done():
			// Pending records are uncommitted and will be consumed again.
			return nil
		}
	}
}

// handleBatch runs one invocation over msgs, all taken from the same
// partition in offset order.
func (h *batchClaimHandler) handleBatch(sess sarama.ConsumerGroupSession, msgs []*sarama.ConsumerMessage) error {
	topic := msgs[0].Topic
	batch, byID := toBatch(msgs)

	inv := stream.Invocation{ID: uuid.NewString(), Attempt: maxAttempt(msgs)}
	ctx := stream.WithInvocation(sess.Context(), inv)
	ctx, span := tracing.StartBatchSpan(ctx, h.tracer, msgs)
	defer span.End()

	logr := logger.NewLoggerContext(h.logger.With(
		"topic", topic,
		"partition", msgs[0].Partition,
		"first_offset", msgs[0].Offset,
		"last_offset", msgs[len(msgs)-1].Offset,
		"invocation_id", inv.ID,
	))

	h.metrics.IncMessagesConsumed(ctx, topic, len(msgs))

	result, err := h.handler.Handle(ctx, batch)
	if err != nil {
		return h.abortBatch(ctx, span, logr, topic, err)
	}

	failed := make([]failedMessage, 0, len(result.BatchItemFailures))
	seen := make(map[string]struct{}, len(result.BatchItemFailures))
	for _, f := range result.BatchItemFailures {
		msg, ok := byID[f.ItemIdentifier]
		if !ok {
			return h.abortBatch(ctx, span, logr, topic,
				fmt.Errorf("%w: %q", ErrUnknownFailure, f.ItemIdentifier))
		}
		if _, dup := seen[f.ItemIdentifier]; dup {
			continue
		}
		seen[f.ItemIdentifier] = struct{}{}
		failed = append(failed, failedMessage{msg: msg, failure: f})
	}

	report, err := h.redeliverer.redeliver(ctx, failed)
	if err != nil {
		return h.abortBatch(ctx, span, logr, topic, err)
	}

	// Offsets are contiguous within a partition, so marking the last message
	// covers the whole batch.
	sess.MarkMessage(msgs[len(msgs)-1], "")
	sess.Commit()

	span.SetAttributes(
		attribute.Int("failed_records", len(failed)),
		attribute.Int("retried", report.Retried),
		attribute.Int("dead_lettered", report.DeadLettered),
	)
	span.SetStatus(codes.Ok, "batch committed")

	if len(failed) > 0 {
		logr.Info(ctx, "Committed batch with redelivered records",
			"failed_records", len(failed),
			"retried", report.Retried,
			"dead_lettered", report.DeadLettered,
		)
		return nil
	}
	logr.Debug(ctx, "Committed batch", "records", len(msgs))

	return nil
}

func (h *batchClaimHandler) abortBatch(
	ctx context.Context,
	span trace.Span,
	logr *logger.LoggerContext,
	topic string,
	err error,
) error {
	h.metrics.IncBatchAborted(ctx, topic)
	span.RecordError(err)
	span.SetStatus(codes.Error, "batch aborted")
	logr.Error(ctx, "Batch aborted, offsets left uncommitted", "error", err)
	return fmt.Errorf("handling batch from %s: %w", topic, err)
}
