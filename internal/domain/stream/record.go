// Package stream models the contract between a stream runtime and a batch
// handler: the raw records delivered in one invocation, the collaborators a
// handler needs to turn them into typed records, and the partial batch
// failure response the runtime uses to decide what to redeliver.
package stream

import (
	"errors"
	"fmt"
	"time"
)

// RawRecord is a record exactly as the stream delivered it. SequenceID is
// assigned by the stream, is unique within a batch and is the only handle
// the runtime understands when deciding what to redeliver.
type RawRecord struct {
	SequenceID   string
	PartitionKey string
	Data         []byte
	Attributes   map[string]string
	ArrivedAt    time.Time
}

// Batch is the ordered set of records delivered to a single invocation.
type Batch struct {
	Records []RawRecord
}

// NewBatch creates a Batch from the provided records, preserving their order.
func NewBatch(records ...RawRecord) Batch { return Batch{Records: records} }

// Len returns the number of records in the batch.
func (b Batch) Len() int { return len(b.Records) }

// SequenceIDs returns the identifiers of every record in arrival order.
func (b Batch) SequenceIDs() []string {
	ids := make([]string, 0, len(b.Records))
	for _, r := range b.Records {
		ids = append(ids, r.SequenceID)
	}
	return ids
}

var (
	// ErrMissingSequenceID indicates a record arrived without a sequence
	// identifier and so could never be reported back to the runtime.
	ErrMissingSequenceID = errors.New("record has no sequence identifier")
	// ErrDuplicateSequenceID indicates two records in the same batch share an
	// identifier, which makes failure reporting ambiguous.
	ErrDuplicateSequenceID = errors.New("duplicate sequence identifier in batch")
)

// CheckIdentifiers verifies every record carries a non-empty identifier that
// is unique within the batch.
func (b Batch) CheckIdentifiers() error {
	seen := make(map[string]int, len(b.Records))
	for i, r := range b.Records {
		if r.SequenceID == "" {
			return fmt.Errorf("record at position %d: %w", i, ErrMissingSequenceID)
		}
		if prev, ok := seen[r.SequenceID]; ok {
			return fmt.Errorf("records at positions %d and %d share %q: %w",
				prev, i, r.SequenceID, ErrDuplicateSequenceID)
		}
		seen[r.SequenceID] = i
	}
	return nil
}
