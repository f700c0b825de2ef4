package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/streambatch/internal/domain/stream"
	"github.com/ahrav/streambatch/internal/infra/eventbus/kafka/tracing"
)

// failedMessage pairs a consumed message with the failure reported for it.
type failedMessage struct {
	msg     *sarama.ConsumerMessage
	failure stream.BatchItemFailure
}

// redeliverer republishes failed records so they reach a later invocation.
// A record whose next attempt would exceed maxAttempts goes to the dead
// letter topic instead.
type redeliverer struct {
	producer        sarama.SyncProducer
	retryTopic      string
	deadLetterTopic string
	maxAttempts     int

	tracer  trace.Tracer
	metrics BrokerMetrics
}

// redeliveryReport summarises one redeliver call.
type redeliveryReport struct {
	Retried      int
	DeadLettered int
}

func (r *redeliverer) redeliver(ctx context.Context, failed []failedMessage) (redeliveryReport, error) {
	var report redeliveryReport
	if len(failed) == 0 {
		return report, nil
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(failed))
	for _, f := range failed {
		pm, deadLetter := r.buildMessage(f)
		if deadLetter {
			report.DeadLettered++
		} else {
			report.Retried++
		}
		msgs = append(msgs, pm)
	}

	ctx, span := tracing.StartProducerSpan(ctx, r.retryTopicFor(failed[0].msg), r.tracer)
	defer span.End()
	span.SetAttributes(
		attribute.Int("retried", report.Retried),
		attribute.Int("dead_lettered", report.DeadLettered),
	)

	for _, pm := range msgs {
		tracing.InjectTraceContext(ctx, pm)
	}

	if err := r.producer.SendMessages(msgs); err != nil {
		for _, pm := range msgs {
			r.metrics.IncPublishError(ctx, pm.Topic)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to redeliver records")
		return redeliveryReport{}, fmt.Errorf("redelivering %d records: %w", len(msgs), err)
	}

	for _, pm := range msgs {
		if pm.Topic == r.deadLetterTopic {
			r.metrics.IncDeadLettered(ctx, pm.Topic)
		} else {
			r.metrics.IncRedelivered(ctx, pm.Topic)
		}
	}
	span.SetStatus(codes.Ok, "records redelivered")

	return report, nil
}

func (r *redeliverer) retryTopicFor(msg *sarama.ConsumerMessage) string {
	if r.retryTopic != "" {
		return r.retryTopic
	}
	return msg.Topic
}

// buildMessage copies the record for its next attempt. It reports whether
// the record is being dead-lettered.
func (r *redeliverer) buildMessage(f failedMessage) (*sarama.ProducerMessage, bool) {
	next := attemptOf(f.msg) + 1
	deadLetter := r.maxAttempts > 0 && next > r.maxAttempts

	source, ok := headerValue(f.msg.Headers, HeaderSourceTopic)
	if !ok {
		source = f.msg.Topic
	}
	position, ok := headerValue(f.msg.Headers, HeaderSourcePosition)
	if !ok {
		position = recordID(f.msg)
	}

	headers := make([]sarama.RecordHeader, 0, len(f.msg.Headers)+5)
	for _, h := range f.msg.Headers {
		if h == nil {
			continue
		}
		switch string(h.Key) {
		case HeaderAttempt, HeaderSourceTopic, HeaderSourcePosition, HeaderFailureReason, HeaderFailureStage:
			continue
		}
		headers = append(headers, *h)
	}
	headers = append(headers,
		sarama.RecordHeader{Key: []byte(HeaderAttempt), Value: []byte(strconv.Itoa(next))},
		sarama.RecordHeader{Key: []byte(HeaderSourceTopic), Value: []byte(source)},
		sarama.RecordHeader{Key: []byte(HeaderSourcePosition), Value: []byte(position)},
		sarama.RecordHeader{Key: []byte(HeaderFailureStage), Value: []byte(f.failure.Stage)},
		sarama.RecordHeader{Key: []byte(HeaderFailureReason), Value: []byte(f.failure.Reason)},
	)

	topic := r.retryTopicFor(f.msg)
	if deadLetter {
		topic = r.deadLetterTopic
	}

	pm := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(f.msg.Value),
		Headers: headers,
	}
	if len(f.msg.Key) > 0 {
		pm.Key = sarama.ByteEncoder(f.msg.Key)
	}
	return pm, deadLetter
}
