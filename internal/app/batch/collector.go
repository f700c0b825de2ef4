package batch

import (
	"sort"
	"sync"

	"github.com/ahrav/streambatch/internal/domain/stream"
)

// failureCollector aggregates per-record failures. It is keyed by sequence
// identifier so concurrent writers can neither lose nor duplicate entries.
type failureCollector struct {
	mu       sync.Mutex
	failures map[string]indexedFailure
}

type indexedFailure struct {
	position int
	failure  stream.BatchItemFailure
}

func newFailureCollector(sizeHint int) *failureCollector {
	return &failureCollector{failures: make(map[string]indexedFailure, sizeHint)}
}

// record stores a failure for the record at position. A second failure for
// the same identifier is ignored and record reports false.
func (c *failureCollector) record(position int, f stream.BatchItemFailure) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.failures[f.ItemIdentifier]; exists {
		return false
	}
	c.failures[f.ItemIdentifier] = indexedFailure{position: position, failure: f}
	return true
}

func (c *failureCollector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures)
}

// result builds the BatchResult with failures in batch arrival order.
func (c *failureCollector) result() stream.BatchResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	ordered := make([]indexedFailure, 0, len(c.failures))
	for _, f := range c.failures {
		ordered = append(ordered, f)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].position < ordered[j].position })

	failures := make([]stream.BatchItemFailure, 0, len(ordered))
	for _, f := range ordered {
		failures = append(failures, f.failure)
	}
	return stream.BatchResult{BatchItemFailures: failures}
}
