package batch

import (
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/streambatch/pkg/common/logger"
)

// Option configures a Handler.
type Option func(*options)

type options struct {
	concurrency int
	logger      *logger.Logger
	tracer      trace.Tracer
	metrics     Metrics
}

func defaultOptions() options {
	return options{
		concurrency: 1,
		logger:      logger.Noop(),
		tracer:      noop.NewTracerProvider().Tracer("batch"),
		metrics:     noopMetrics{},
	}
}

// WithConcurrency sets how many records of a batch are handled at once.
// Values of 0 or 1 handle records sequentially in arrival order, larger
// values bound the parallelism, and negative values remove the bound.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n == 0 {
			n = 1
		}
		o.concurrency = n
	}
}

// WithLogger sets the logger used for per-batch and per-failure records.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used for invocation and record spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
