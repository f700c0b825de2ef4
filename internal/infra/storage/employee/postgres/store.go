// Package postgres persists employees in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/streambatch/internal/domain/employee"
	"github.com/ahrav/streambatch/internal/infra/storage"
)

var _ employee.Repository = (*employeeStore)(nil)

var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

const upsertEmployee = `
INSERT INTO employees (employee_id, email, first_name, last_name, date_of_birth, date_of_joining)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (employee_id) DO UPDATE SET
    email           = EXCLUDED.email,
    first_name      = EXCLUDED.first_name,
    last_name       = EXCLUDED.last_name,
    date_of_birth   = EXCLUDED.date_of_birth,
    date_of_joining = EXCLUDED.date_of_joining,
    updated_at      = NOW()`

const getEmployee = `
SELECT employee_id, email, first_name, last_name, date_of_birth, date_of_joining
FROM employees
WHERE employee_id = $1`

// employeeStore implements employee.Repository on a pgx connection pool.
// Saves are idempotent so a redelivered record overwrites its earlier copy.
type employeeStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewStore creates a PostgreSQL-backed employee repository.
func NewStore(pool *pgxpool.Pool, tracer trace.Tracer) *employeeStore {
	return &employeeStore{pool: pool, tracer: tracer}
}

// Save upserts e.
func (s *employeeStore) Save(ctx context.Context, e employee.Employee) error {
	dbAttrs := append(defaultDBAttributes, attribute.String("employee_id", e.EmployeeID))
	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.save_employee", dbAttrs, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, upsertEmployee,
			e.EmployeeID,
			e.Email,
			e.FirstName,
			e.LastName,
			e.DateOfBirth,
			e.DateOfJoining,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert employee: %w", err)
		}
		return nil
	})
}

// Get loads the employee with the given id.
func (s *employeeStore) Get(ctx context.Context, employeeID string) (employee.Employee, error) {
	var e employee.Employee
	dbAttrs := append(defaultDBAttributes, attribute.String("employee_id", employeeID))
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_employee", dbAttrs, func(ctx context.Context) error {
		err := s.pool.QueryRow(ctx, getEmployee, employeeID).Scan(
			&e.EmployeeID,
			&e.Email,
			&e.FirstName,
			&e.LastName,
			&e.DateOfBirth,
			&e.DateOfJoining,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return employee.ErrNotFound
			}
			return fmt.Errorf("failed to get employee: %w", err)
		}
		return nil
	})
	return e, err
}
