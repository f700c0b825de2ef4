package stream

import "context"

// Codec turns a raw record into a typed domain record. Implementations must
// be deterministic; the record's identifier is read from the RawRecord, so a
// failed decode can still be reported.
type Codec[T any] interface {
	Decode(raw RawRecord) (T, error)
}

// CodecFunc adapts a function to the Codec interface.
type CodecFunc[T any] func(raw RawRecord) (T, error)

// Decode calls f(raw).
func (f CodecFunc[T]) Decode(raw RawRecord) (T, error) { return f(raw) }

// Validator decides whether a decoded record may be processed. A rejected
// record is reported through an Invalid verdict or a *ValidationError; any
// other error means validation itself could not run and aborts the batch.
type Validator[T any] interface {
	Validate(ctx context.Context, rec T) (Verdict, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc[T any] func(ctx context.Context, rec T) (Verdict, error)

// Validate calls f(ctx, rec).
func (f ValidatorFunc[T]) Validate(ctx context.Context, rec T) (Verdict, error) { return f(ctx, rec) }

// PredicateValidator adapts a boolean validation function. A false result
// becomes an Invalid verdict.
type PredicateValidator[T any] func(ctx context.Context, rec T) (bool, error)

// Validate calls f(ctx, rec) and converts the result to a Verdict.
func (f PredicateValidator[T]) Validate(ctx context.Context, rec T) (Verdict, error) {
	ok, err := f(ctx, rec)
	if err != nil {
		return Verdict{}, err
	}
	if !ok {
		return Invalid("rejected by validator"), nil
	}
	return Valid(), nil
}

// Processor performs the side-effecting action for a valid record. Any
// returned error fails only that record.
type Processor[T any] interface {
	Process(ctx context.Context, rec T) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc[T any] func(ctx context.Context, rec T) error

// Process calls f(ctx, rec).
func (f ProcessorFunc[T]) Process(ctx context.Context, rec T) error { return f(ctx, rec) }

// BatchHandler is the entry point a stream runtime invokes once per batch.
type BatchHandler interface {
	Handle(ctx context.Context, batch Batch) (BatchResult, error)
}

// BatchHandlerFunc adapts a function to the BatchHandler interface.
type BatchHandlerFunc func(ctx context.Context, batch Batch) (BatchResult, error)

// Handle calls f(ctx, batch).
func (f BatchHandlerFunc) Handle(ctx context.Context, batch Batch) (BatchResult, error) {
	return f(ctx, batch)
}
