package model

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// MinFieldLength is the minimum number of characters of name and position.
const MinFieldLength = 3

// ErrValidation is matched by every validation failure.
var ErrValidation = errors.New("validation failed")

// ValidationError describes which field failed and why.
type ValidationError struct {
	Field   string
	Message string
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error formats the failure the way clients see it, e.g.
// `"name" is not allowed to be empty`.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%q %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ValidateNew checks the payload of a create request.
func ValidateNew(in EmployeeInput) error {
	if err := validateText("name", in.Name); err != nil {
		return err
	}
	return validateText("position", in.Position)
}

// ValidateUpdate checks a merged record before it is persisted.
func ValidateUpdate(candidate Employee) error {
	if err := validateText("name", &candidate.Name); err != nil {
		return err
	}
	if err := validateText("position", &candidate.Position); err != nil {
		return err
	}
	return ValidateID("id", candidate.ID)
}

// ValidateID checks that id is a positive integer.
func ValidateID(field string, id int64) error {
	if id <= 0 {
		return newValidationError(field, "must be a positive number")
	}
	return nil
}

// ValidateIDs requires a non-empty list of positive ids.
func ValidateIDs(ids []int64) error {
	if len(ids) == 0 {
		return newValidationError("ids", "must contain at least 1 items")
	}
	for i, id := range ids {
		if err := ValidateID(fmt.Sprintf("ids[%d]", i), id); err != nil {
			return err
		}
	}
	return nil
}

// ValidateNonEmptyBatch requires at least one item.
func ValidateNonEmptyBatch[T any](items []T) error {
	if len(items) == 0 {
		return newValidationError("value", "must contain at least 1 items")
	}
	return nil
}

func validateText(field string, value *string) error {
	switch {
	case value == nil:
		return newValidationError(field, "is required")
	case *value == "":
		return newValidationError(field, "is not allowed to be empty")
	case utf8.RuneCountInString(*value) < MinFieldLength:
		return newValidationError(field, fmt.Sprintf("length must be at least %d characters long", MinFieldLength))
	}
	return nil
}
