package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/vyrodovalexey/employees-api/internal/model"
)

// MemoryStore implements Store interface with in-memory storage.
// A single mutex covers records, the name index and the id counter, so
// uniqueness checks and the writes that depend on them are atomic.
type MemoryStore struct {
	mu        sync.RWMutex
	employees map[int64]model.Employee
	byName    map[string]int64
	order     []int64
	nextID    int64
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		employees: make(map[int64]model.Employee),
		byName:    make(map[string]int64),
		nextID:    1,
	}
}

// Create validates input, enforces name uniqueness and inserts the employee.
func (s *MemoryStore) Create(ctx context.Context, input model.EmployeeInput) (*model.Employee, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create employee: %w", ctx.Err())
	default:
	}

	if err := model.ValidateNew(input); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[*input.Name]; taken {
		return nil, ErrDuplicateName
	}

	employee := model.Employee{
		ID:       s.nextID,
		Name:     *input.Name,
		Position: *input.Position,
	}
	s.nextID++

	s.employees[employee.ID] = employee
	s.byName[employee.Name] = employee.ID
	s.order = append(s.order, employee.ID)

	return &employee, nil
}

// Get retrieves an employee by its ID.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*model.Employee, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get employee: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, exists := s.employees[id]
	if !exists {
		return nil, ErrNotFound
	}

	return &employee, nil
}

// Update merges update over the stored employee, validates the result and
// persists it. The uniqueness check only runs when the name changes.
func (s *MemoryStore) Update(ctx context.Context, id int64, update model.EmployeeUpdate) (*model.Employee, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("update employee: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.employees[id]
	if !exists {
		return nil, ErrNotFound
	}

	merged := update.Apply(existing)
	if err := model.ValidateUpdate(merged); err != nil {
		return nil, err
	}

	if merged.Name != existing.Name {
		if _, taken := s.byName[merged.Name]; taken {
			return nil, ErrDuplicateName
		}
		delete(s.byName, existing.Name)
		s.byName[merged.Name] = id
	}

	s.employees[id] = merged

	return &merged, nil
}

// Delete removes an employee from the store by its ID.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("delete employee: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	employee, exists := s.employees[id]
	if !exists {
		return ErrNotFound
	}

	delete(s.employees, id)
	delete(s.byName, employee.Name)
	for i, orderedID := range s.order {
		if orderedID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}

// List returns employees in insertion order starting at (page-1)*limit.
// A page past the end yields an empty slice.
func (s *MemoryStore) List(ctx context.Context, page, limit int) ([]model.Employee, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list employees: %w", ctx.Err())
	default:
	}

	if err := model.ValidateID("page", int64(page)); err != nil {
		return nil, err
	}
	if err := model.ValidateID("limit", int64(limit)); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.order)
	// Checked before (page-1)*limit so large pages cannot overflow.
	if page-1 > total/limit {
		return []model.Employee{}, nil
	}

	start := (page - 1) * limit
	if start >= total {
		return []model.Employee{}, nil
	}
	end := start + min(limit, total-start)

	employees := make([]model.Employee, 0, end-start)
	for _, id := range s.order[start:end] {
		employees = append(employees, s.employees[id])
	}

	return employees, nil
}

// FindByIDs partitions ids into found employees and unknown ids, keeping
// the input order of both.
func (s *MemoryStore) FindByIDs(ctx context.Context, ids []int64) (*model.FindResult, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("find employees: %w", ctx.Err())
	default:
	}

	if err := model.ValidateIDs(ids); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := &model.FindResult{
		FoundEmployees: []model.Employee{},
		NotFoundIDs:    []int64{},
	}
	for _, id := range ids {
		if employee, exists := s.employees[id]; exists {
			result.FoundEmployees = append(result.FoundEmployees, employee)
		} else {
			result.NotFoundIDs = append(result.NotFoundIDs, id)
		}
	}

	return result, nil
}

// HasByName reports whether a live employee has exactly this name.
func (s *MemoryStore) HasByName(ctx context.Context, name string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("find employee by name: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.byName[name]
	return exists, nil
}

// Len returns the number of live employees.
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("count employees: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.employees), nil
}

// Reset removes every employee. The id counter keeps counting so ids are
// never handed out twice by one store.
func (s *MemoryStore) Reset(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("reset store: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.employees = make(map[int64]model.Employee)
	s.byName = make(map[string]int64)
	s.order = nil

	return nil
}
