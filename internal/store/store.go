// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/employees-api/internal/model"
)

// Store errors.
var (
	ErrNotFound      = errors.New("employee not found")
	ErrDuplicateName = errors.New("duplicate name")
)

// Store defines the interface for employee storage operations.
type Store interface {
	// Create validates the input, enforces name uniqueness and inserts a new
	// employee under the next id.
	Create(ctx context.Context, input model.EmployeeInput) (*model.Employee, error)

	// Get retrieves an employee by its ID.
	Get(ctx context.Context, id int64) (*model.Employee, error)

	// Update merges the update over the existing employee and persists it.
	Update(ctx context.Context, id int64, update model.EmployeeUpdate) (*model.Employee, error)

	// Delete removes an employee by its ID.
	Delete(ctx context.Context, id int64) error

	// List returns one page of employees in insertion order.
	List(ctx context.Context, page, limit int) ([]model.Employee, error)

	// FindByIDs splits ids into found employees and unknown ids.
	FindByIDs(ctx context.Context, ids []int64) (*model.FindResult, error)

	// HasByName reports whether a live employee has exactly this name.
	HasByName(ctx context.Context, name string) (bool, error)

	// Len returns the number of live employees.
	Len(ctx context.Context) (int, error)

	// Reset removes every employee; ids are not reused afterwards.
	Reset(ctx context.Context) error
}
