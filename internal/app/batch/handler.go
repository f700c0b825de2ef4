// Package batch implements the partial batch failure handler. A Handler
// decodes, validates and processes every record of a batch independently and
// reports the identifiers of the records that failed so the stream runtime
// can redeliver only those.
package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/streambatch/internal/domain/stream"
	"github.com/ahrav/streambatch/pkg/common/logger"
)

var _ stream.BatchHandler = (*Handler[struct{}])(nil)

// Handler processes batches of records of type T.
//
// Failures attributable to a single record (decode errors, rejected
// validation, processing errors) are contained to that record and reported in
// the BatchResult. Anything else (a validator that cannot run, a panic in a
// collaborator, malformed identifiers) aborts the invocation with a
// *stream.FatalError so the runtime redelivers the batch as a whole.
type Handler[T any] struct {
	codec     stream.Codec[T]
	validator stream.Validator[T]
	processor stream.Processor[T]

	concurrency int

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics Metrics
}

// NewHandler creates a Handler from its three collaborators.
func NewHandler[T any](
	codec stream.Codec[T],
	validator stream.Validator[T],
	processor stream.Processor[T],
	opts ...Option,
) *Handler[T] {
	if codec == nil {
		panic("batch: nil Codec")
	}
	if validator == nil {
		panic("batch: nil Validator")
	}
	if processor == nil {
		panic("batch: nil Processor")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Handler[T]{
		codec:       codec,
		validator:   validator,
		processor:   processor,
		concurrency: o.concurrency,
		logger:      o.logger.With("component", "batch_handler"),
		tracer:      o.tracer,
		metrics:     o.metrics,
	}
}

// Handle runs one invocation over b. It returns only after every record has
// reached a terminal state. The returned error is non-nil only for
// batch-fatal conditions, in which case the BatchResult must be ignored.
func (h *Handler[T]) Handle(ctx context.Context, b stream.Batch) (stream.BatchResult, error) {
	start := time.Now()

	inv, ok := stream.InvocationFromContext(ctx)
	if !ok {
		inv = stream.NewInvocation()
		ctx = stream.WithInvocation(ctx, inv)
	}

	ctx, span := h.tracer.Start(ctx, "batch_handler.handle",
		trace.WithAttributes(
			attribute.String("invocation_id", inv.ID),
			attribute.Int("attempt", inv.Attempt),
			attribute.Int("batch_size", b.Len()),
		))
	defer span.End()
	defer func() { h.metrics.ObserveBatch(ctx, b.Len(), time.Since(start)) }()

	logr := logger.NewLoggerContext(h.logger.With(
		"invocation_id", inv.ID,
		"attempt", inv.Attempt,
		"batch_size", b.Len(),
	))

	if err := b.CheckIdentifiers(); err != nil {
		return h.abort(ctx, span, logr, &stream.FatalError{Err: err})
	}

	collector := newFailureCollector(b.Len())

	var (
		g       errgroup.Group
		aborted atomic.Bool
	)
	g.SetLimit(h.concurrency)

	for pos, raw := range b.Records {
		if aborted.Load() {
			break
		}

		g.Go(func() error {
			// Go may have blocked on the limit while an earlier record aborted.
			if aborted.Load() {
				return nil
			}

			failure, err := h.handleRecord(ctx, raw)
			if err != nil {
				aborted.Store(true)
				return err
			}

			if failure == nil {
				h.metrics.IncRecordsSucceeded(ctx)
				return nil
			}

			if collector.record(pos, *failure) {
				h.metrics.IncRecordFailed(ctx, failure.Stage)
				logr.Warn(ctx, "Record failed",
					"sequence_id", failure.ItemIdentifier,
					"stage", failure.Stage,
					"reason", failure.Reason,
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return h.abort(ctx, span, logr, err)
	}

	result := collector.result()
	failed := len(result.BatchItemFailures)
	span.SetAttributes(attribute.Int("failed_records", failed))
	logr.Add("failed_records", failed, "duration", time.Since(start))

	if failed > 0 {
		span.SetStatus(codes.Error, "partial batch failure")
		logr.Info(ctx, "Batch handled with partial failures")
		return result, nil
	}

	span.SetStatus(codes.Ok, "batch handled")
	logr.Debug(ctx, "Batch handled")

	return result, nil
}

// handleRecord drives a single record to its terminal state. It returns a
// failure for record-attributable problems and an error only when the whole
// invocation must be aborted.
func (h *Handler[T]) handleRecord(ctx context.Context, raw stream.RawRecord) (failure *stream.BatchItemFailure, err error) {
	ctx, span := h.tracer.Start(ctx, "batch_handler.handle_record",
		trace.WithAttributes(attribute.String("sequence_id", raw.SequenceID)))
	defer span.End()

	stage := stream.StageDecode
	defer func() {
		if r := recover(); r != nil {
			failure = nil
			err = &stream.FatalError{
				RecordID: raw.SequenceID,
				Stage:    stage,
				Err:      fmt.Errorf("%w: %v", stream.ErrCollaboratorPanic, r),
			}
		}

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, "batch-fatal error")
		case failure != nil:
			span.SetAttributes(attribute.String("failure_stage", string(failure.Stage)))
			span.SetStatus(codes.Error, failure.Reason)
		}
	}()

	rec, decErr := h.codec.Decode(raw)
	if decErr != nil {
		de := &stream.DecodeError{SequenceID: raw.SequenceID, Err: decErr}
		return newFailure(raw, stream.StageDecode, de.Error()), nil
	}

	stage = stream.StageValidate
	verdict, valErr := h.validator.Validate(ctx, rec)
	if valErr != nil {
		if ve, ok := stream.AsValidationError(valErr); ok {
			return newFailure(raw, stream.StageValidate, ve.Error()), nil
		}
		return nil, &stream.FatalError{RecordID: raw.SequenceID, Stage: stage, Err: valErr}
	}
	if !verdict.IsValid() {
		return newFailure(raw, stream.StageValidate, verdict.Reason()), nil
	}

	stage = stream.StageProcess
	if procErr := h.processor.Process(ctx, rec); procErr != nil {
		return newFailure(raw, stream.StageProcess, procErr.Error()), nil
	}

	return nil, nil
}

func newFailure(raw stream.RawRecord, stage stream.FailureStage, reason string) *stream.BatchItemFailure {
	return &stream.BatchItemFailure{ItemIdentifier: raw.SequenceID, Stage: stage, Reason: reason}
}

func (h *Handler[T]) abort(
	ctx context.Context,
	span trace.Span,
	logr *logger.LoggerContext,
	err error,
) (stream.BatchResult, error) {
	h.metrics.IncBatchFatal(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, "batch aborted")
	logr.Error(ctx, "Batch aborted", "error", err)

	return stream.BatchResult{}, err
}
