package kafka

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BrokerMetrics defines the measurements taken by the Kafka runtime.
type BrokerMetrics interface {
	IncMessagesConsumed(ctx context.Context, topic string, n int)
	IncRedelivered(ctx context.Context, topic string)
	IncDeadLettered(ctx context.Context, topic string)
	IncPublishError(ctx context.Context, topic string)
	IncBatchAborted(ctx context.Context, topic string)
}

type brokerMetrics struct {
	consumed     metric.Int64Counter
	redelivered  metric.Int64Counter
	deadLettered metric.Int64Counter
	publishErrs  metric.Int64Counter
	aborted      metric.Int64Counter
}

// NewBrokerMetrics creates the runtime's OpenTelemetry instruments.
func NewBrokerMetrics(mp metric.MeterProvider) (*brokerMetrics, error) {
	meter := mp.Meter("kafka_runtime", metric.WithInstrumentationVersion("v0.1.0"))

	m := new(brokerMetrics)
	var err error

	if m.consumed, err = meter.Int64Counter(
		"messages_consumed_total",
		metric.WithDescription("Total number of messages handed to the batch handler"),
	); err != nil {
		return nil, err
	}

	if m.redelivered, err = meter.Int64Counter(
		"messages_redelivered_total",
		metric.WithDescription("Total number of failed messages republished for another attempt"),
	); err != nil {
		return nil, err
	}

	if m.deadLettered, err = meter.Int64Counter(
		"messages_dead_lettered_total",
		metric.WithDescription("Total number of messages that exhausted their attempts"),
	); err != nil {
		return nil, err
	}

	if m.publishErrs, err = meter.Int64Counter(
		"publish_errors_total",
		metric.WithDescription("Total number of failed redelivery publishes"),
	); err != nil {
		return nil, err
	}

	if m.aborted, err = meter.Int64Counter(
		"batches_aborted_total",
		metric.WithDescription("Total number of batches left uncommitted after a batch-fatal error"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func topicAttr(topic string) metric.AddOption {
	return metric.WithAttributes(attribute.String("topic", topic))
}

func (m *brokerMetrics) IncMessagesConsumed(ctx context.Context, topic string, n int) {
	m.consumed.Add(ctx, int64(n), topicAttr(topic))
}

func (m *brokerMetrics) IncRedelivered(ctx context.Context, topic string) {
	m.redelivered.Add(ctx, 1, topicAttr(topic))
}

func (m *brokerMetrics) IncDeadLettered(ctx context.Context, topic string) {
	m.deadLettered.Add(ctx, 1, topicAttr(topic))
}

func (m *brokerMetrics) IncPublishError(ctx context.Context, topic string) {
	m.publishErrs.Add(ctx, 1, topicAttr(topic))
}

func (m *brokerMetrics) IncBatchAborted(ctx context.Context, topic string) {
	m.aborted.Add(ctx, 1, topicAttr(topic))
}
