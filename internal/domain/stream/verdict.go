package stream

// Verdict is the outcome of validating a single decoded record.
type Verdict struct {
	invalid bool
	reason  string
}

// Valid returns a Verdict accepting the record.
func Valid() Verdict { return Verdict{} }

// Invalid returns a Verdict rejecting the record for the given reason.
func Invalid(reason string) Verdict { return Verdict{invalid: true, reason: reason} }

// IsValid reports whether the record may be processed.
func (v Verdict) IsValid() bool { return !v.invalid }

// Reason explains why the record was rejected. Empty for valid records.
func (v Verdict) Reason() string { return v.reason }
