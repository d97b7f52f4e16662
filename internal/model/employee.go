// Package model defines data structures used throughout the application.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Employee represents a staff record held by the store.
type Employee struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position"`
}

// EmployeeInput is the payload of a create request. A nil field means the
// client did not send it.
type EmployeeInput struct {
	Name     *string `json:"name,omitempty"`
	Position *string `json:"position,omitempty"`
}

// EmployeeUpdate is a partial update. Only non-nil fields overwrite the
// existing record.
type EmployeeUpdate struct {
	ID       *int64  `json:"id,omitempty"`
	Name     *string `json:"name,omitempty"`
	Position *string `json:"position,omitempty"`
}

// Apply returns a copy of e with the update's fields laid over it.
// The ID is never taken from the update.
func (u EmployeeUpdate) Apply(e Employee) Employee {
	merged := e
	if u.Name != nil {
		merged.Name = *u.Name
	}
	if u.Position != nil {
		merged.Position = *u.Position
	}
	return merged
}

// IDsRequest is the body of the lookup-by-ids and bulk delete endpoints.
type IDsRequest struct {
	IDs []int64 `json:"ids"`
}

// FindResult partitions a list of ids into found records and unknown ids.
type FindResult struct {
	FoundEmployees []Employee `json:"foundEmployees"`
	NotFoundIDs    []int64    `json:"notFoundIds"`
}

// DecodeEmployeeInput decodes a single create payload. JSON type mismatches
// are reported as validation errors so that a bad item can fail on its own.
func DecodeEmployeeInput(raw json.RawMessage) (EmployeeInput, error) {
	var in EmployeeInput
	if err := decodeItem(raw, &in); err != nil {
		return EmployeeInput{}, err
	}
	return in, nil
}

// DecodeEmployeeUpdate decodes a single update payload.
func DecodeEmployeeUpdate(raw json.RawMessage) (EmployeeUpdate, error) {
	var upd EmployeeUpdate
	if err := decodeItem(raw, &upd); err != nil {
		return EmployeeUpdate{}, err
	}
	return upd, nil
}

func decodeItem(raw json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return newValidationError("value", "must be of type object")
	}

	if err := rejectNulls(trimmed); err != nil {
		return err
	}

	if err := json.Unmarshal(trimmed, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return newValidationError(typeErr.Field, "must be "+jsonKind(typeErr.Type.Kind().String()))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	return nil
}

// nullableFields lists, in reporting order, the payload fields whose
// explicit null is rejected. A null is not the same as an absent field.
var nullableFields = []struct{ name, kind string }{
	{"id", "int64"},
	{"name", "string"},
	{"position", "string"},
}

func rejectNulls(object []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(object, &fields); err != nil {
		// Reported by the typed decode that follows.
		return nil
	}
	for _, f := range nullableFields {
		if raw, ok := fields[f.name]; ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return newValidationError(f.name, "must be "+jsonKind(f.kind))
		}
	}
	return nil
}

func jsonKind(goKind string) string {
	switch goKind {
	case "string":
		return "a string"
	case "int64":
		return "a number"
	default:
		return "of type " + goKind
	}
}
