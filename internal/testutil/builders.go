// Package testutil builds employees and stream batches for tests.
package testutil

import (
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/streambatch/internal/domain/employee"
	"github.com/ahrav/streambatch/internal/domain/stream"
)

// EmployeeBuilder creates employees that pass validation unless a field is
// overridden.
type EmployeeBuilder struct{ e employee.Employee }

// NewEmployeeBuilder starts from a valid employee with a random id.
func NewEmployeeBuilder() *EmployeeBuilder {
	id := uuid.NewString()
	return &EmployeeBuilder{e: employee.Employee{
		EmployeeID:    id,
		Email:         fmt.Sprintf("%s@example.com", id[:8]),
		FirstName:     "Ada",
		LastName:      "Lovelace",
		DateOfBirth:   time.Date(1990, time.December, 10, 0, 0, 0, 0, time.UTC),
		DateOfJoining: time.Date(2020, time.March, 2, 0, 0, 0, 0, time.UTC),
	}}
}

// WithEmployeeID overrides the id. An empty id makes the employee invalid.
func (b *EmployeeBuilder) WithEmployeeID(id string) *EmployeeBuilder {
	b.e.EmployeeID = id
	return b
}

// WithEmail overrides the email address.
func (b *EmployeeBuilder) WithEmail(email string) *EmployeeBuilder {
	b.e.Email = email
	return b
}

// WithNames overrides first and last name.
func (b *EmployeeBuilder) WithNames(first, last string) *EmployeeBuilder {
	b.e.FirstName, b.e.LastName = first, last
	return b
}

// WithDates overrides date of birth and date of joining.
func (b *EmployeeBuilder) WithDates(birth, joining time.Time) *EmployeeBuilder {
	b.e.DateOfBirth, b.e.DateOfJoining = birth, joining
	return b
}

// Build returns the employee.
func (b *EmployeeBuilder) Build() employee.Employee { return b.e }

// Employees builds n valid employees.
func Employees(n int) []employee.Employee {
	out := make([]employee.Employee, 0, n)
	for range n {
		out = append(out, NewEmployeeBuilder().Build())
	}
	return out
}

// sequenceBase mimics the width of real stream sequence numbers.
var (
	sequenceBase, _ = new(big.Int).SetString("49590338271490256608559692538361571095921575989136588800", 10)
	sequenceCounter atomic.Int64
)

// NextSequenceID returns a process-wide unique, increasing sequence number.
func NextSequenceID() string {
	n := sequenceCounter.Add(1)
	return new(big.Int).Add(sequenceBase, big.NewInt(n)).String()
}

// BatchBuilder assembles stream batches out of employees or raw payloads.
type BatchBuilder struct {
	partitionKey string
	records      []stream.RawRecord
}

// NewBatchBuilder creates an empty BatchBuilder.
func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{partitionKey: "partition-key"}
}

// WithEmployees appends one record per employee and returns the batch.
func (b *BatchBuilder) WithEmployees(employees ...employee.Employee) stream.Batch {
	for _, e := range employees {
		data, err := employee.Encode(e)
		if err != nil {
			panic(err)
		}
		b.WithPayload(data)
	}
	return b.Build()
}

// WithoutEmployees returns an empty batch.
func (b *BatchBuilder) WithoutEmployees() stream.Batch { return stream.NewBatch() }

// WithPayload appends a record carrying data verbatim.
func (b *BatchBuilder) WithPayload(data []byte) *BatchBuilder {
	b.records = append(b.records, stream.RawRecord{
		SequenceID:   NextSequenceID(),
		PartitionKey: b.partitionKey,
		Data:         data,
		ArrivedAt:    time.Now().UTC(),
	})
	return b
}

// Build returns the batch assembled so far.
func (b *BatchBuilder) Build() stream.Batch {
	records := make([]stream.RawRecord, len(b.records))
	copy(records, b.records)
	return stream.NewBatch(records...)
}
