package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vyrodovalexey/employees-api/internal/model"
)

func strPtr(s string) *string { return &s }

func input(name, position string) model.EmployeeInput {
	return model.EmployeeInput{Name: strPtr(name), Position: strPtr(position)}
}

func mustCreate(t *testing.T, s *MemoryStore, name, position string) *model.Employee {
	t.Helper()
	e, err := s.Create(context.Background(), input(name, position))
	if err != nil {
		t.Fatalf("Create(%q) unexpected error: %v", name, err)
	}
	return e
}

func TestNewMemoryStore(t *testing.T) {
	// Act
	store := NewMemoryStore()

	// Assert
	if store == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}
	if store.employees == nil || store.byName == nil {
		t.Error("maps should be initialized")
	}
	if store.nextID != 1 {
		t.Errorf("nextID = %d, want 1", store.nextID)
	}
}

func TestMemoryStore_Create(t *testing.T) {
	tests := []struct {
		name    string
		input   model.EmployeeInput
		wantErr error
	}{
		{
			name:  "valid employee",
			input: input("Asaf Granit", "Chef"),
		},
		{
			name:    "empty name",
			input:   input("", "Chef"),
			wantErr: model.ErrValidation,
		},
		{
			name:    "missing position",
			input:   model.EmployeeInput{Name: strPtr("Asaf Granit")},
			wantErr: model.ErrValidation,
		},
		{
			name:    "short position",
			input:   input("Asaf Granit", "QA"),
			wantErr: model.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			store := NewMemoryStore()
			ctx := context.Background()

			// Act
			created, err := store.Create(ctx, tt.input)

			// Assert
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
				}
				if created != nil {
					t.Error("Create() should return nil on error")
				}
				return
			}

			if err != nil {
				t.Fatalf("Create() unexpected error: %v", err)
			}
			want := &model.Employee{ID: 1, Name: *tt.input.Name, Position: *tt.input.Position}
			if diff := cmp.Diff(want, created); diff != "" {
				t.Errorf("Create() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemoryStore_Create_DuplicateName(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	mustCreate(t, store, "Haim Cohen", "Chef")

	// Act
	_, err := store.Create(context.Background(), input("Haim Cohen", "Executive Chef"))

	// Assert
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Create() error = %v, want %v", err, ErrDuplicateName)
	}

	n, _ := store.Len(context.Background())
	if n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestMemoryStore_Create_NameIsCaseSensitive(t *testing.T) {
	store := NewMemoryStore()
	mustCreate(t, store, "Haim Cohen", "Chef")

	if _, err := store.Create(context.Background(), input("haim cohen", "Chef")); err != nil {
		t.Errorf("Create() with different case error = %v, want nil", err)
	}
}

func TestMemoryStore_Create_IDsMonotonic(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx := context.Background()

	first := mustCreate(t, store, "Asaf Granit", "Chef")
	second := mustCreate(t, store, "Eyal Shani", "Head Chef")

	// Act
	if err := store.Delete(ctx, second.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	third := mustCreate(t, store, "Shani Knafo", "Pastry Chef")

	// Failed creations must not consume an id.
	_, _ = store.Create(ctx, input("", "Chef"))
	_, _ = store.Create(ctx, input("Asaf Granit", "Chef"))
	fourth := mustCreate(t, store, "Meir Adoni", "Sous Chef")

	// Assert
	got := []int64{first.ID, second.ID, third.ID, fourth.ID}
	want := []int64{1, 2, 3, 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStore_Create_ContextCancellation(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	created, err := store.Create(ctx, input("Asaf Granit", "Chef"))

	// Assert
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Create() error = %v, want context.Canceled", err)
	}
	if created != nil {
		t.Error("Create() should return nil for cancelled context")
	}
}

func TestMemoryStore_Get(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx := context.Background()
	created := mustCreate(t, store, "X-ray Tech", "Radiology")

	tests := []struct {
		name    string
		id      int64
		wantErr error
	}{
		{"existing employee", created.ID, nil},
		{"unknown id", 999, ErrNotFound},
		{"zero id", 0, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			got, err := store.Get(ctx, tt.id)

			// Assert
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() unexpected error: %v", err)
			}
			if diff := cmp.Diff(created, got); diff != "" {
				t.Errorf("Get() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemoryStore_Get_ReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	created := mustCreate(t, store, "Roni Kobar", "Chef")

	got, _ := store.Get(context.Background(), created.ID)
	got.Name = "Changed"

	again, _ := store.Get(context.Background(), created.ID)
	if again.Name != "Roni Kobar" {
		t.Errorf("stored name = %q, want %q", again.Name, "Roni Kobar")
	}
}

func TestMemoryStore_Update(t *testing.T) {
	tests := []struct {
		name    string
		update  model.EmployeeUpdate
		want    model.Employee
		wantErr error
	}{
		{
			name:   "name and position",
			update: model.EmployeeUpdate{Name: strPtr("Haim Cohen"), Position: strPtr("Executive Chef")},
			want:   model.Employee{ID: 1, Name: "Haim Cohen", Position: "Executive Chef"},
		},
		{
			name:   "position only keeps name",
			update: model.EmployeeUpdate{Position: strPtr("Executive Chef")},
			want:   model.Employee{ID: 1, Name: "Asaf Granit", Position: "Executive Chef"},
		},
		{
			name:   "same name is not a duplicate of itself",
			update: model.EmployeeUpdate{Name: strPtr("Asaf Granit"), Position: strPtr("Cook")},
			want:   model.Employee{ID: 1, Name: "Asaf Granit", Position: "Cook"},
		},
		{
			name:    "rename onto other employee",
			update:  model.EmployeeUpdate{Name: strPtr("Eyal Shani")},
			wantErr: ErrDuplicateName,
		},
		{
			name:    "invalid merged name",
			update:  model.EmployeeUpdate{Name: strPtr("")},
			wantErr: model.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			store := NewMemoryStore()
			ctx := context.Background()
			mustCreate(t, store, "Asaf Granit", "Chef")
			mustCreate(t, store, "Eyal Shani", "Head Chef")

			// Act
			got, err := store.Update(ctx, 1, tt.update)

			// Assert
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Update() error = %v, want %v", err, tt.wantErr)
				}
				stored, _ := store.Get(ctx, 1)
				if stored.Name != "Asaf Granit" || stored.Position != "Chef" {
					t.Errorf("failed update must not change record, got %+v", stored)
				}
				return
			}
			if err != nil {
				t.Fatalf("Update() unexpected error: %v", err)
			}
			if diff := cmp.Diff(&tt.want, got); diff != "" {
				t.Errorf("Update() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemoryStore_Update_NotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Update(context.Background(), 999, model.EmployeeUpdate{Name: strPtr("Non Existent")})

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want %v", err, ErrNotFound)
	}
}

func TestMemoryStore_Update_RenameFreesOldName(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx := context.Background()
	e := mustCreate(t, store, "Oded Shakarov", "Chef")

	// Act
	if _, err := store.Update(ctx, e.ID, model.EmployeeUpdate{Name: strPtr("Oded S")}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	// Assert
	if has, _ := store.HasByName(ctx, "Oded Shakarov"); has {
		t.Error("old name should be released")
	}
	if has, _ := store.HasByName(ctx, "Oded S"); !has {
		t.Error("new name should be indexed")
	}
	mustCreate(t, store, "Oded Shakarov", "Waiter")
}

func TestMemoryStore_Delete(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx := context.Background()
	e := mustCreate(t, store, "Meir Adoni", "Sous Chef")

	// Act
	err := store.Delete(ctx, e.ID)

	// Assert
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := store.Get(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want %v", err, ErrNotFound)
	}
	if err := store.Delete(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want %v", err, ErrNotFound)
	}
	if has, _ := store.HasByName(ctx, "Meir Adoni"); has {
		t.Error("deleted name should be free")
	}
}

func TestMemoryStore_List(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx := context.Background()
	e1 := mustCreate(t, store, "Employee One", "Chef")
	e2 := mustCreate(t, store, "Employee Two", "Cook")

	tests := []struct {
		name    string
		page    int
		limit   int
		want    []model.Employee
		wantErr bool
	}{
		{"first page holds all", 1, 10, []model.Employee{*e1, *e2}, false},
		{"second page of one", 2, 1, []model.Employee{*e2}, false},
		{"first page of one", 1, 1, []model.Employee{*e1}, false},
		{"past the end", 3, 1, []model.Employee{}, false},
		{"far past the end", 1 << 40, 10, []model.Employee{}, false},
		{"zero page", 0, 10, nil, true},
		{"zero limit", 1, 0, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			got, err := store.List(ctx, tt.page, tt.limit)

			// Assert
			if tt.wantErr {
				if !errors.Is(err, model.ErrValidation) {
					t.Errorf("List() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("List() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("List() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemoryStore_List_InsertionOrderAfterDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := range 5 {
		mustCreate(t, store, fmt.Sprintf("Employee %d", i), "Chef")
	}
	if err := store.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	got, err := store.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}

	ids := make([]int64, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	if diff := cmp.Diff([]int64{1, 3, 4, 5}, ids); diff != "" {
		t.Errorf("List() ids mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStore_FindByIDs(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx := context.Background()
	e1 := mustCreate(t, store, "Ofer Kfir", "Chef")
	e2 := mustCreate(t, store, "Yael Avrahami", "Cook")

	tests := []struct {
		name    string
		ids     []int64
		want    *model.FindResult
		wantErr bool
	}{
		{
			name: "all found",
			ids:  []int64{e2.ID, e1.ID},
			want: &model.FindResult{FoundEmployees: []model.Employee{*e2, *e1}, NotFoundIDs: []int64{}},
		},
		{
			name: "none found keeps order",
			ids:  []int64{999, 1000},
			want: &model.FindResult{FoundEmployees: []model.Employee{}, NotFoundIDs: []int64{999, 1000}},
		},
		{
			name: "mixed",
			ids:  []int64{1000, e1.ID, 999},
			want: &model.FindResult{FoundEmployees: []model.Employee{*e1}, NotFoundIDs: []int64{1000, 999}},
		},
		{name: "empty list", ids: []int64{}, wantErr: true},
		{name: "non-positive id", ids: []int64{1, -2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindByIDs(ctx, tt.ids)

			if tt.wantErr {
				if !errors.Is(err, model.ErrValidation) {
					t.Errorf("FindByIDs() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindByIDs() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindByIDs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemoryStore_Reset(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx := context.Background()
	mustCreate(t, store, "Ruthie Cohen", "Waiter")
	mustCreate(t, store, "Roni Kobar", "Chef")

	// Act
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}

	// Assert
	if n, _ := store.Len(ctx); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
	if has, _ := store.HasByName(ctx, "Roni Kobar"); has {
		t.Error("names should be cleared")
	}
	e := mustCreate(t, store, "Roni Kobar", "Chef")
	if e.ID != 3 {
		t.Errorf("ID after reset = %d, want 3", e.ID)
	}
}

func TestMemoryStore_ContextCancellation(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks := map[string]error{}
	_, checks["Get"] = store.Get(ctx, 1)
	_, checks["Update"] = store.Update(ctx, 1, model.EmployeeUpdate{})
	checks["Delete"] = store.Delete(ctx, 1)
	_, checks["List"] = store.List(ctx, 1, 10)
	_, checks["FindByIDs"] = store.FindByIDs(ctx, []int64{1})
	_, checks["HasByName"] = store.HasByName(ctx, "x")
	_, checks["Len"] = store.Len(ctx)
	checks["Reset"] = store.Reset(ctx)

	for op, err := range checks {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s() error = %v, want context.Canceled", op, err)
		}
	}
}

func TestMemoryStore_ConcurrentCreateSameName(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx := context.Background()
	const workers = 50

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	// Act
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Create(ctx, input("Contended Name", "Chef")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Assert
	if succeeded != 1 {
		t.Errorf("succeeded creates = %d, want 1", succeeded)
	}
	if n, _ := store.Len(ctx); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestMemoryStore_ImplementsStore(_ *testing.T) {
	var _ Store = (*MemoryStore)(nil)
}
