// Package memory keeps employees in process memory for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/ahrav/streambatch/internal/domain/employee"
)

var _ employee.Repository = (*Store)(nil)

// Store is a concurrency-safe in-memory employee.Repository.
type Store struct {
	mu        sync.RWMutex
	employees map[string]employee.Employee
	saves     int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{employees: make(map[string]employee.Employee)}
}

// Save inserts or replaces e.
func (s *Store) Save(_ context.Context, e employee.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.employees[e.EmployeeID] = e
	s.saves++
	return nil
}

// Get returns the employee with the given id or employee.ErrNotFound.
func (s *Store) Get(_ context.Context, employeeID string) (employee.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.employees[employeeID]
	if !ok {
		return employee.Employee{}, employee.ErrNotFound
	}
	return e, nil
}

// Len returns the number of distinct employees stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.employees)
}

// Saves returns how many times Save was called, including overwrites.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
