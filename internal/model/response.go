package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// User-facing messages.
const (
	MsgEmployeeNotFound    = "Employee not found"
	MsgDuplicateName       = "Duplicate name"
	MsgValidationError     = "Validation error occurred"
	MsgInvalidRequestBody  = "invalid request body"
	MsgInternalServerError = "Internal server error"

	MsgEmployeeCreated   = "Employee created successfully"
	MsgEmployeeUpdated   = "Employee updated successfully"
	MsgEmployeeDeleted   = "Employee deleted successfully"
	MsgEmployeeRetrieved = "Employee retrieved successfully"
	MsgEmployeesCreated  = "Employees created successfully"
	MsgEmployeesUpdated  = "Employees updated successfully"
	MsgEmployeesDeleted  = "Employees deleted successfully"

	MsgFailedCreateEmployees = "Failed to create employees"
	MsgFailedUpdateEmployees = "Failed to update employees"
	MsgFailedDeleteEmployees = "Failed to delete employees"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BulkResponse is returned when at least one batch item succeeded.
type BulkResponse[T any] struct {
	Data   []T          `json:"data"`
	Failed []FailedItem `json:"failed"`
}

// BulkErrorResponse is returned when every batch item failed.
type BulkErrorResponse struct {
	Error  string       `json:"error"`
	Failed []FailedItem `json:"failed"`
}

// FailedItem is the client's original batch payload with an "error" field
// added to it. BatchIndex is not serialized.
type FailedItem struct {
	BatchIndex int
	Payload    json.RawMessage
	Err        string
}

// NewFailedItem annotates the payload at position index with an error message.
func NewFailedItem(index int, payload json.RawMessage, message string) FailedItem {
	return FailedItem{BatchIndex: index, Payload: payload, Err: message}
}

// FailedID builds the failed entry of an id-only batch, e.g. bulk delete.
func FailedID(index int, id int64, message string) FailedItem {
	return FailedItem{
		BatchIndex: index,
		Payload:    json.RawMessage(`{"id":` + strconv.FormatInt(id, 10) + `}`),
		Err:        message,
	}
}

// ID returns the "id" carried by the payload, if it is a number.
func (f FailedItem) ID() (int64, bool) {
	fields := f.fields()
	raw, ok := fields["id"]
	if !ok {
		return 0, false
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, false
	}
	return id, true
}

// MarshalJSON merges the payload's fields with the error. Payloads that are
// not JSON objects are nested under "item".
func (f FailedItem) MarshalJSON() ([]byte, error) {
	fields := f.fields()
	if fields == nil {
		fields = make(map[string]json.RawMessage, 2)
		if len(bytes.TrimSpace(f.Payload)) > 0 && json.Valid(f.Payload) {
			fields["item"] = f.Payload
		}
	}

	msg, err := json.Marshal(f.Err)
	if err != nil {
		return nil, err
	}
	fields["error"] = msg

	return json.Marshal(fields)
}

// UnmarshalJSON splits a failed entry back into payload and error.
func (f *FailedItem) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["error"]; ok {
		if err := json.Unmarshal(raw, &f.Err); err != nil {
			return err
		}
		delete(fields, "error")
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	f.Payload = payload
	return nil
}

func (f FailedItem) fields() map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(f.Payload, &fields); err != nil {
		return nil
	}
	return fields
}

// Change event types published on the events feed.
const (
	EventEmployeeCreated = "employee.created"
	EventEmployeeUpdated = "employee.updated"
	EventEmployeeDeleted = "employee.deleted"
)

// EmployeeEvent describes one committed mutation.
type EmployeeEvent struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id"`
	Employee  *Employee `json:"employee,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEmployeeEvent creates an event stamped with the current time.
func NewEmployeeEvent(eventType string, id int64, e *Employee) EmployeeEvent {
	return EmployeeEvent{
		Type:      eventType,
		ID:        id,
		Employee:  e,
		Timestamp: time.Now().UTC(),
	}
}
