// Package tracing holds the span helpers and header propagation used by the
// Kafka runtime.
package tracing

import (
	"context"

	"github.com/IBM/sarama"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// StartProducerSpan creates a span for publishing to topic.
func StartProducerSpan(ctx context.Context, topic string, tracer trace.Tracer) (context.Context, trace.Span) {
	return tracer.Start(ctx, "kafka.produce",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(topic),
			semconv.MessagingOperationPublish,
		),
	)
}

// StartBatchSpan creates a consumer span covering one batch taken from a
// single partition. The span links to the trace context carried by each
// message so producers and the batch can be correlated.
func StartBatchSpan(
	ctx context.Context,
	tracer trace.Tracer,
	msgs []*sarama.ConsumerMessage,
) (context.Context, trace.Span) {
	links := make([]trace.Link, 0, len(msgs))
	for _, msg := range msgs {
		sc := trace.SpanContextFromContext(ExtractTraceContext(ctx, msg))
		if sc.IsValid() {
			links = append(links, trace.Link{SpanContext: sc})
		}
	}

	first, last := msgs[0], msgs[len(msgs)-1]
	return tracer.Start(ctx, "kafka.consume_batch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithLinks(links...),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(first.Topic),
			semconv.MessagingOperationReceive,
			semconv.MessagingBatchMessageCount(len(msgs)),
			semconv.MessagingKafkaDestinationPartition(int(first.Partition)),
			semconv.MessagingKafkaMessageOffset(int(last.Offset)),
		),
	)
}
