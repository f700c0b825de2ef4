// Package employee is the record type carried on the employee stream and the
// rules and actions applied to it by the batch handler.
package employee

import (
	"context"
	"errors"
	"time"
)

// Employee is the payload of one stream record.
type Employee struct {
	EmployeeID    string    `json:"employeeId" validate:"required,max=64"`
	Email         string    `json:"email" validate:"required,email"`
	FirstName     string    `json:"firstName" validate:"required,max=100"`
	LastName      string    `json:"lastName" validate:"required,max=100"`
	DateOfBirth   time.Time `json:"dateOfBirth" validate:"required,notfuture"`
	DateOfJoining time.Time `json:"dateOfJoining" validate:"required,notfuture,gtfield=DateOfBirth"`
}

// ErrNotFound is returned by a Repository when no employee has the given id.
var ErrNotFound = errors.New("employee not found")

// Repository persists employees.
type Repository interface {
	// Save inserts the employee or replaces the stored version with the same id.
	Save(ctx context.Context, e Employee) error
	// Get returns the stored employee or ErrNotFound.
	Get(ctx context.Context, employeeID string) (Employee, error)
}
