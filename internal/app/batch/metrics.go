package batch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/streambatch/internal/domain/stream"
)

// Metrics defines the measurements taken by a Handler.
type Metrics interface {
	ObserveBatch(ctx context.Context, size int, duration time.Duration)
	IncRecordsSucceeded(ctx context.Context)
	IncRecordFailed(ctx context.Context, stage stream.FailureStage)
	IncBatchFatal(ctx context.Context)
}

type noopMetrics struct{}

func (noopMetrics) ObserveBatch(context.Context, int, time.Duration)     {}
func (noopMetrics) IncRecordsSucceeded(context.Context)                  {}
func (noopMetrics) IncRecordFailed(context.Context, stream.FailureStage) {}
func (noopMetrics) IncBatchFatal(context.Context)                        {}

// handlerMetrics implements Metrics with OpenTelemetry instruments.
type handlerMetrics struct {
	recordsSucceeded metric.Int64Counter
	recordsFailed    metric.Int64Counter
	batchesFatal     metric.Int64Counter
	batchSize        metric.Int64Histogram
	batchDuration    metric.Float64Histogram
}

const namespace = "batch_handler"

// NewMetrics creates the handler's OpenTelemetry instruments.
func NewMetrics(mp metric.MeterProvider) (*handlerMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(handlerMetrics)
	var err error

	if m.recordsSucceeded, err = meter.Int64Counter(
		"records_succeeded_total",
		metric.WithDescription("Total number of records validated and processed successfully"),
	); err != nil {
		return nil, err
	}

	if m.recordsFailed, err = meter.Int64Counter(
		"records_failed_total",
		metric.WithDescription("Total number of records reported back for redelivery"),
	); err != nil {
		return nil, err
	}

	if m.batchesFatal, err = meter.Int64Counter(
		"batches_fatal_total",
		metric.WithDescription("Total number of invocations aborted by a batch-fatal error"),
	); err != nil {
		return nil, err
	}

	if m.batchSize, err = meter.Int64Histogram(
		"batch_size",
		metric.WithDescription("Number of records per invocation"),
	); err != nil {
		return nil, err
	}

	if m.batchDuration, err = meter.Float64Histogram(
		"batch_duration_seconds",
		metric.WithDescription("Time taken to handle one batch"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *handlerMetrics) ObserveBatch(ctx context.Context, size int, duration time.Duration) {
	m.batchSize.Record(ctx, int64(size))
	m.batchDuration.Record(ctx, duration.Seconds())
}

func (m *handlerMetrics) IncRecordsSucceeded(ctx context.Context) { m.recordsSucceeded.Add(ctx, 1) }

func (m *handlerMetrics) IncRecordFailed(ctx context.Context, stage stream.FailureStage) {
	m.recordsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
}

func (m *handlerMetrics) IncBatchFatal(ctx context.Context) { m.batchesFatal.Add(ctx, 1) }
