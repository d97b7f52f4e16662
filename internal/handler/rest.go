package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/employees-api/internal/model"
	"github.com/vyrodovalexey/employees-api/internal/store"
)

// APIVersion selects the error vocabulary and logging of an EmployeeHandler.
type APIVersion string

// Supported API versions.
const (
	V1 APIVersion = "v1"
	V2 APIVersion = "v2"
)

const msgBodyTooLarge = "request body too large"

// EventPublisher receives an event for every committed mutation.
type EventPublisher interface {
	Publish(event model.EmployeeEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(model.EmployeeEvent) {}

// Options holds request limits of an EmployeeHandler.
type Options struct {
	PageLimit    int
	MaxPageLimit int
	MaxBulkItems int
	MaxBodyBytes int64
}

// EmployeeHandler handles the employee endpoints of one API version.
type EmployeeHandler struct {
	version APIVersion
	store   store.Store
	logger  *zap.Logger
	opts    Options
	events  EventPublisher
}

// NewEmployeeHandler creates a new EmployeeHandler. A nil publisher drops
// events.
func NewEmployeeHandler(
	version APIVersion,
	s store.Store,
	logger *zap.Logger,
	opts Options,
	events EventPublisher,
) *EmployeeHandler {
	if events == nil {
		events = noopPublisher{}
	}
	return &EmployeeHandler{
		version: version,
		store:   s,
		logger:  logger.Named("api." + string(version)),
		opts:    opts,
		events:  events,
	}
}

// RegisterRoutes registers the employee routes under /api/{version}.
// Fixed segments are registered before /employees/{id} so they win the match.
func (h *EmployeeHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/" + string(h.version)).Subrouter()

	api.HandleFunc("/employees/bulk", h.BulkCreateEmployees).Methods(http.MethodPost)
	api.HandleFunc("/employees/bulk", h.BulkUpdateEmployees).Methods(http.MethodPut)
	api.HandleFunc("/employees/bulk", h.BulkDeleteEmployees).Methods(http.MethodDelete)
	api.HandleFunc("/employees/ids", h.FindEmployees).Methods(http.MethodPost)

	api.HandleFunc("/employees", h.ListEmployees).Methods(http.MethodGet)
	api.HandleFunc("/employees", h.CreateEmployee).Methods(http.MethodPost)
	api.HandleFunc("/employees/{id}", h.GetEmployee).Methods(http.MethodGet)
	api.HandleFunc("/employees/{id}", h.UpdateEmployee).Methods(http.MethodPut)
	api.HandleFunc("/employees/{id}", h.DeleteEmployee).Methods(http.MethodDelete)
}

// CreateEmployee handles POST /employees requests.
func (h *EmployeeHandler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}

	input, err := model.DecodeEmployeeInput(raw)
	if err != nil {
		h.writeStoreError(w, err, "create employee")
		return
	}

	employee, err := h.store.Create(r.Context(), input)
	if err != nil {
		h.writeStoreError(w, err, "create employee")
		return
	}

	h.events.Publish(model.NewEmployeeEvent(model.EventEmployeeCreated, employee.ID, employee))
	h.logSuccess(model.MsgEmployeeCreated, zap.Int64("id", employee.ID))
	writeJSON(h.logger, w, http.StatusCreated, employee)
}

// ListEmployees handles GET /employees?page=&limit= requests.
func (h *EmployeeHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.writeStoreError(w, err, "list employees")
		return
	}

	limit, err := queryInt(r, "limit", h.opts.PageLimit)
	if err != nil {
		h.writeStoreError(w, err, "list employees")
		return
	}

	if limit > h.opts.MaxPageLimit {
		err := &model.ValidationError{
			Field:   "limit",
			Message: fmt.Sprintf("must be less than or equal to %d", h.opts.MaxPageLimit),
		}
		h.writeStoreError(w, err, "list employees")
		return
	}

	employees, err := h.store.List(r.Context(), page, limit)
	if err != nil {
		h.writeStoreError(w, err, "list employees")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, employees)
}

// GetEmployee handles GET /employees/{id} requests.
func (h *EmployeeHandler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeStoreError(w, err, "get employee")
		return
	}

	employee, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "get employee")
		return
	}

	h.logSuccess(model.MsgEmployeeRetrieved, zap.Int64("id", id))
	writeJSON(h.logger, w, http.StatusOK, employee)
}

// FindEmployees handles POST /employees/ids requests.
func (h *EmployeeHandler) FindEmployees(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.readIDs(w, r, "find employees")
	if !ok {
		return
	}

	result, err := h.store.FindByIDs(r.Context(), ids)
	if err != nil {
		h.writeStoreError(w, err, "find employees")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, result)
}

// UpdateEmployee handles PUT /employees/{id} requests. Absent fields keep
// their stored values.
func (h *EmployeeHandler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeStoreError(w, err, "update employee")
		return
	}

	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}

	update, err := model.DecodeEmployeeUpdate(raw)
	if err != nil {
		h.writeStoreError(w, err, "update employee")
		return
	}

	employee, err := h.store.Update(r.Context(), id, update)
	if err != nil {
		h.writeStoreError(w, err, "update employee")
		return
	}

	h.events.Publish(model.NewEmployeeEvent(model.EventEmployeeUpdated, employee.ID, employee))
	h.logSuccess(model.MsgEmployeeUpdated, zap.Int64("id", employee.ID))
	writeJSON(h.logger, w, http.StatusOK, employee)
}

// DeleteEmployee handles DELETE /employees/{id} requests.
func (h *EmployeeHandler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeStoreError(w, err, "delete employee")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "delete employee")
		return
	}

	h.events.Publish(model.NewEmployeeEvent(model.EventEmployeeDeleted, id, nil))
	h.logSuccess(model.MsgEmployeeDeleted, zap.Int64("id", id))
	writeJSON(h.logger, w, http.StatusNoContent, nil)
}

// classify maps an error to a status code and the message shown to clients
// of a single-item request. v2 folds every client error into one message.
func (h *EmployeeHandler) classify(err error) (int, string) {
	status, message := describe(err)
	if h.version == V2 && status == http.StatusBadRequest {
		return status, model.MsgValidationError
	}
	return status, message
}

// describe maps an error to a status code and its detailed message. Failed
// bulk items carry this message in every API version.
func describe(err error) (int, string) {
	var verr *model.ValidationError

	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, model.MsgEmployeeNotFound
	case errors.Is(err, store.ErrDuplicateName):
		return http.StatusBadRequest, model.MsgDuplicateName
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, model.MsgInternalServerError
	}
}

// writeStoreError writes the response for a failed operation.
func (h *EmployeeHandler) writeStoreError(w http.ResponseWriter, err error, operation string) {
	status, message := h.classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
	} else {
		h.logger.Warn(message, zap.String("operation", operation), zap.Error(err))
	}
	writeError(h.logger, w, status, message)
}

// logSuccess logs a success message. Only v2 logs successful outcomes.
func (h *EmployeeHandler) logSuccess(message string, fields ...zap.Field) {
	if h.version == V2 {
		h.logger.Info(message, fields...)
	}
}

// readBody reads the request body as raw JSON, answering 400 or 413 itself
// when the body is malformed or over the size limit.
func (h *EmployeeHandler) readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body := http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)

	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn(msgBodyTooLarge, zap.Int64("limit", tooLarge.Limit))
			writeError(h.logger, w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return nil, false
		}
		h.logger.Warn(model.MsgInvalidRequestBody, zap.Error(err))
		writeError(h.logger, w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return nil, false
	}

	return raw, true
}

// readIDs reads an {"ids": [...]} body and checks its shape.
func (h *EmployeeHandler) readIDs(w http.ResponseWriter, r *http.Request, operation string) ([]int64, bool) {
	raw, ok := h.readBody(w, r)
	if !ok {
		return nil, false
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		h.writeStoreError(w, &model.ValidationError{Field: "value", Message: "must be of type object"}, operation)
		return nil, false
	}

	var req model.IDsRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		h.writeStoreError(w, &model.ValidationError{Field: "ids", Message: "must be an array of numbers"}, operation)
		return nil, false
	}

	if err := model.ValidateIDs(req.IDs); err != nil {
		h.writeStoreError(w, err, operation)
		return nil, false
	}

	if err := h.checkBatchSize(len(req.IDs), "ids"); err != nil {
		h.writeStoreError(w, err, operation)
		return nil, false
	}

	return req.IDs, true
}

func (h *EmployeeHandler) checkBatchSize(n int, field string) error {
	if n > h.opts.MaxBulkItems {
		return &model.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must contain less than or equal to %d items", h.opts.MaxBulkItems),
		}
	}
	return nil
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, &model.ValidationError{Field: "id", Message: "must be a number"}
	}
	if err := model.ValidateID("id", id); err != nil {
		return 0, err
	}
	return id, nil
}

// queryInt parses a numeric query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return def, nil
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, &model.ValidationError{Field: name, Message: "must be a number"}
	}
	if err := model.ValidateID(name, int64(n)); err != nil {
		return 0, err
	}
	return n, nil
}
