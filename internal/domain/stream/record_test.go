package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchCheckIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		batch   Batch
		wantErr error
	}{
		{name: "empty batch", batch: NewBatch()},
		{
			name:  "unique identifiers",
			batch: NewBatch(RawRecord{SequenceID: "1"}, RawRecord{SequenceID: "2"}),
		},
		{
			name:    "missing identifier",
			batch:   NewBatch(RawRecord{SequenceID: "1"}, RawRecord{}),
			wantErr: ErrMissingSequenceID,
		},
		{
			name:    "duplicate identifier",
			batch:   NewBatch(RawRecord{SequenceID: "1"}, RawRecord{SequenceID: "1"}),
			wantErr: ErrDuplicateSequenceID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.batch.CheckIdentifiers()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBatchResultWireFormat(t *testing.T) {
	t.Run("success serializes an empty list", func(t *testing.T) {
		b, err := json.Marshal(BatchResult{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"batchItemFailures":[]}`, string(b))
	})

	t.Run("only identifiers are on the wire", func(t *testing.T) {
		res := BatchResult{BatchItemFailures: []BatchItemFailure{
			{ItemIdentifier: "seq-2", Stage: StageValidate, Reason: "missing id"},
		}}
		b, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{"batchItemFailures":[{"itemIdentifier":"seq-2"}]}`, string(b))
		assert.Equal(t, []string{"seq-2"}, res.FailedIDs())
		assert.False(t, res.Succeeded())
	})
}

func TestFatalErrorMatching(t *testing.T) {
	cause := errors.New("dependency down")
	err := fmt.Errorf("handling: %w", &FatalError{RecordID: "7", Stage: StageValidate, Err: cause})

	assert.ErrorIs(t, err, ErrBatchFatal)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "record 7 (validate)")

	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "7", fe.RecordID)
}

func TestAsValidationError(t *testing.T) {
	wrapped := fmt.Errorf("checking: %w", NewValidationError("employee_id", "is required"))

	ve, ok := AsValidationError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "employee_id", ve.Field)
	assert.Equal(t, "validation failed for employee_id: is required", ve.Error())

	_, ok = AsValidationError(errors.New("other"))
	assert.False(t, ok)
}

func TestPredicateValidator(t *testing.T) {
	v := PredicateValidator[int](func(_ context.Context, n int) (bool, error) {
		if n < 0 {
			return false, errors.New("cannot evaluate")
		}
		return n%2 == 0, nil
	})

	verdict, err := v.Validate(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, verdict.IsValid())

	verdict, err = v.Validate(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, verdict.IsValid())
	assert.NotEmpty(t, verdict.Reason())

	_, err = v.Validate(context.Background(), -1)
	assert.Error(t, err)
}

func TestInvocationContext(t *testing.T) {
	_, ok := InvocationFromContext(context.Background())
	assert.False(t, ok)

	inv := NewInvocation()
	got, ok := InvocationFromContext(WithInvocation(context.Background(), inv))
	require.True(t, ok)
	assert.Equal(t, inv, got)
	assert.Len(t, inv.ID, 36)
}
