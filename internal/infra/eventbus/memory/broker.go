// Package memory provides an in-process stream runtime. It delivers
// published records to a stream.BatchHandler in batches and honours the
// partial batch failure contract: reported records are redelivered in a
// later invocation, a batch-fatal error redelivers the whole batch, and
// records that exhaust their attempts are dead-lettered. It suits local
// replay and tests where no broker is available.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ahrav/streambatch/internal/domain/stream"
	"github.com/ahrav/streambatch/pkg/common/logger"
)

// ErrBatchNotRecoverable is returned by Drain when a batch-fatal error occurs
// and no attempt limit is configured, so redelivering would never end.
var ErrBatchNotRecoverable = errors.New("batch-fatal error with unlimited attempts")

// Config controls batching and redelivery.
type Config struct {
	// MaxBatchSize caps how many records one invocation receives.
	MaxBatchSize int
	// MaxAttempts is how many invocations a record may take part in before
	// it is dead-lettered. Zero means unlimited.
	MaxAttempts int
}

// delivery is a record waiting in the queue.
type delivery struct {
	record  stream.RawRecord
	attempt int
}

// DeadLetter is a record that exhausted its attempts.
type DeadLetter struct {
	Record   stream.RawRecord
	Attempts int
	Reason   string
}

// InvocationReport describes one handler invocation made by Drain.
type InvocationReport struct {
	Invocation  stream.Invocation
	SequenceIDs []string
	Result      stream.BatchResult
	Err         error
}

// Stats counts what Drain did.
type Stats struct {
	Invocations  int
	Succeeded    int
	Redelivered  int
	DeadLettered int
	FatalBatches int
}

// Broker queues records and hands them to a handler.
type Broker struct {
	cfg    Config
	logger *logger.Logger

	mu          sync.Mutex
	queue       []delivery
	deadLetters []DeadLetter
	stats       Stats
}

// NewBroker creates an empty Broker.
func NewBroker(cfg Config, log *logger.Logger) *Broker {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 10
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Broker{cfg: cfg, logger: log.With("component", "memory_broker")}
}

// Publish appends records to the queue for their first attempt.
func (b *Broker) Publish(ctx context.Context, records ...stream.RawRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range records {
		b.queue = append(b.queue, delivery{record: r, attempt: 1})
	}
	return nil
}

// Pending returns the number of queued records.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// DeadLetters returns the records that exhausted their attempts.
func (b *Broker) DeadLetters() []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DeadLetter, len(b.deadLetters))
	copy(out, b.deadLetters)
	return out
}

// Stats returns the totals accumulated so far.
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Drain invokes h until the queue is empty or ctx is done. observe, when
// non-nil, is called after every invocation.
func (b *Broker) Drain(ctx context.Context, h stream.BatchHandler, observe func(InvocationReport)) (Stats, error) {
	for {
		if err := ctx.Err(); err != nil {
			return b.Stats(), err
		}

		deliveries := b.next()
		if len(deliveries) == 0 {
			return b.Stats(), nil
		}

		report, err := b.invoke(ctx, h, deliveries)
		if observe != nil {
			observe(report)
		}
		if err != nil {
			return b.Stats(), err
		}
	}
}

// next removes and returns the next batch from the head of the queue.
func (b *Broker) next() []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(len(b.queue), b.cfg.MaxBatchSize)
	batch := make([]delivery, n)
	copy(batch, b.queue[:n])
	b.queue = b.queue[n:]
	return batch
}

func (b *Broker) invoke(ctx context.Context, h stream.BatchHandler, deliveries []delivery) (InvocationReport, error) {
	records := make([]stream.RawRecord, 0, len(deliveries))
	attempt := 1
	for _, d := range deliveries {
		records = append(records, d.record)
		attempt = max(attempt, d.attempt)
	}
	batch := stream.NewBatch(records...)

	inv := stream.Invocation{ID: uuid.NewString(), Attempt: attempt}
	report := InvocationReport{Invocation: inv, SequenceIDs: batch.SequenceIDs()}

	result, err := h.Handle(stream.WithInvocation(ctx, inv), batch)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Invocations++

	if err != nil {
		report.Err = err
		b.stats.FatalBatches++
		b.logger.Warn(ctx, "Batch failed as a whole", "invocation_id", inv.ID, "error", err)

		if b.cfg.MaxAttempts == 0 {
			// Put the batch back so nothing is lost if the caller retries.
			b.queue = append(append([]delivery(nil), deliveries...), b.queue...)
			return report, fmt.Errorf("%w: %w", ErrBatchNotRecoverable, err)
		}

		// The whole batch is retried ahead of newer records, as a stream
		// runtime would retry the same shard position.
		retry := make([]delivery, 0, len(deliveries))
		for _, d := range deliveries {
			if next, ok := b.redeliverLocked(d, err.Error()); ok {
				retry = append(retry, next)
			}
		}
		b.queue = append(retry, b.queue...)
		return report, nil
	}

	report.Result = result

	byID := make(map[string]delivery, len(deliveries))
	for _, d := range deliveries {
		byID[d.record.SequenceID] = d
	}

	failed := make(map[string]struct{}, len(result.BatchItemFailures))
	for _, f := range result.BatchItemFailures {
		d, ok := byID[f.ItemIdentifier]
		if !ok {
			b.logger.Warn(ctx, "Ignoring failure for unknown record", "sequence_id", f.ItemIdentifier)
			continue
		}
		if _, dup := failed[f.ItemIdentifier]; dup {
			continue
		}
		failed[f.ItemIdentifier] = struct{}{}

		if next, ok := b.redeliverLocked(d, f.Reason); ok {
			b.queue = append(b.queue, next)
		}
	}
	b.stats.Succeeded += len(deliveries) - len(failed)

	return report, nil
}

// redeliverLocked returns d prepared for its next attempt, or dead-letters it
// and reports false when it has no attempts left. b.mu must be held.
func (b *Broker) redeliverLocked(d delivery, reason string) (delivery, bool) {
	if b.cfg.MaxAttempts > 0 && d.attempt >= b.cfg.MaxAttempts {
		b.deadLetters = append(b.deadLetters, DeadLetter{Record: d.record, Attempts: d.attempt, Reason: reason})
		b.stats.DeadLettered++
		return delivery{}, false
	}
	b.stats.Redelivered++
	return delivery{record: d.record, attempt: d.attempt + 1}, true
}
