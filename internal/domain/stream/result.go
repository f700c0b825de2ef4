package stream

import "encoding/json"

// FailureStage identifies where in the per-record pipeline a record failed.
type FailureStage string

const (
	StageDecode   FailureStage = "decode"
	StageValidate FailureStage = "validate"
	StageProcess  FailureStage = "process"
)

// BatchItemFailure reports a single record the runtime should redeliver.
// Only ItemIdentifier is part of the wire contract; Stage and Reason are kept
// for logging and metrics.
type BatchItemFailure struct {
	ItemIdentifier string       `json:"itemIdentifier"`
	Stage          FailureStage `json:"-"`
	Reason         string       `json:"-"`
}

// BatchResult is the response of one invocation. An empty failure list tells
// the runtime that the entire batch was consumed.
type BatchResult struct {
	BatchItemFailures []BatchItemFailure `json:"batchItemFailures"`
}

// Succeeded reports whether no records failed.
func (r BatchResult) Succeeded() bool { return len(r.BatchItemFailures) == 0 }

// FailedIDs returns the identifiers of the failed records.
func (r BatchResult) FailedIDs() []string {
	ids := make([]string, 0, len(r.BatchItemFailures))
	for _, f := range r.BatchItemFailures {
		ids = append(ids, f.ItemIdentifier)
	}
	return ids
}

// MarshalJSON always emits a list, never null, so runtimes that treat a
// missing list as "retry everything" see an explicit success.
func (r BatchResult) MarshalJSON() ([]byte, error) {
	type wire BatchResult
	w := wire(r)
	if w.BatchItemFailures == nil {
		w.BatchItemFailures = []BatchItemFailure{}
	}
	return json.Marshal(w)
}
