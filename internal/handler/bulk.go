package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/employees-api/internal/bulk"
	"github.com/vyrodovalexey/employees-api/internal/model"
	"github.com/vyrodovalexey/employees-api/internal/store"
)

var bulkItemsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "employees_bulk_items_total",
		Help: "Total number of bulk batch items by operation and result",
	},
	[]string{"version", "operation", "result"},
)

var (
	createVocabulary = bulk.Vocabulary{
		Success: model.MsgEmployeesCreated,
		Failure: model.MsgFailedCreateEmployees,
	}
	updateVocabulary = bulk.Vocabulary{
		Success: model.MsgEmployeesUpdated,
		Failure: model.MsgFailedUpdateEmployees,
	}
	deleteVocabulary = bulk.Vocabulary{
		Success: model.MsgEmployeesDeleted,
		Failure: model.MsgFailedDeleteEmployees,
	}
)

// BulkCreateEmployees handles POST /employees/bulk requests. Every item is
// attempted; invalid or duplicate items are reported in "failed".
func (h *EmployeeHandler) BulkCreateEmployees(w http.ResponseWriter, r *http.Request) {
	items, ok := h.readBatch(w, r, "create employees")
	if !ok {
		return
	}

	result := bulk.Run(context.WithoutCancel(r.Context()), items, h.createItem)

	for i := range result.Succeeded {
		e := &result.Succeeded[i]
		h.events.Publish(model.NewEmployeeEvent(model.EventEmployeeCreated, e.ID, e))
	}

	failed := h.failedPayloads(result.Failed, "create employees")
	h.writeBulk(w, "create", employeeIDs(result.Succeeded), len(failed), bulk.Shape(result.Succeeded, failed, createVocabulary))
}

// BulkUpdateEmployees handles PUT /employees/bulk requests. Each item must
// carry the id of the employee it updates.
func (h *EmployeeHandler) BulkUpdateEmployees(w http.ResponseWriter, r *http.Request) {
	items, ok := h.readBatch(w, r, "update employees")
	if !ok {
		return
	}

	result := bulk.Run(context.WithoutCancel(r.Context()), items, h.updateItem)

	for i := range result.Succeeded {
		e := &result.Succeeded[i]
		h.events.Publish(model.NewEmployeeEvent(model.EventEmployeeUpdated, e.ID, e))
	}

	failed := h.failedPayloads(result.Failed, "update employees")
	h.writeBulk(w, "update", employeeIDs(result.Succeeded), len(failed), bulk.Shape(result.Succeeded, failed, updateVocabulary))
}

// BulkDeleteEmployees handles DELETE /employees/bulk requests with an
// {"ids": [...]} body. Data lists the deleted ids.
func (h *EmployeeHandler) BulkDeleteEmployees(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.readIDs(w, r, "delete employees")
	if !ok {
		return
	}

	result := bulk.Run(context.WithoutCancel(r.Context()), ids, h.deleteItem)

	for _, id := range result.Succeeded {
		h.events.Publish(model.NewEmployeeEvent(model.EventEmployeeDeleted, id, nil))
	}

	failed := make([]model.FailedItem, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, model.FailedID(f.Index, f.Item, h.itemMessage(f.Err, "delete employees")))
	}

	h.writeBulk(w, "delete", result.Succeeded, len(failed), bulk.Shape(result.Succeeded, failed, deleteVocabulary))
}

// createItem decodes and stores one bulk create item.
func (h *EmployeeHandler) createItem(ctx context.Context, _ int, raw json.RawMessage) (model.Employee, error) {
	input, err := model.DecodeEmployeeInput(raw)
	if err != nil {
		return model.Employee{}, err
	}

	employee, err := h.store.Create(ctx, input)
	if err != nil {
		return model.Employee{}, err
	}
	return *employee, nil
}

// updateItem applies one bulk update item. An item without an id matches
// no employee.
func (h *EmployeeHandler) updateItem(ctx context.Context, _ int, raw json.RawMessage) (model.Employee, error) {
	update, err := model.DecodeEmployeeUpdate(raw)
	if err != nil {
		return model.Employee{}, err
	}

	if update.ID == nil {
		return model.Employee{}, store.ErrNotFound
	}
	if err := model.ValidateID("id", *update.ID); err != nil {
		return model.Employee{}, err
	}

	employee, err := h.store.Update(ctx, *update.ID, update)
	if err != nil {
		return model.Employee{}, err
	}
	return *employee, nil
}

// deleteItem removes one employee of a bulk delete.
func (h *EmployeeHandler) deleteItem(ctx context.Context, _ int, id int64) (int64, error) {
	if err := h.store.Delete(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}

// readBatch reads a JSON array body, rejecting non-arrays, empty arrays and
// arrays over the configured size.
func (h *EmployeeHandler) readBatch(w http.ResponseWriter, r *http.Request, operation string) ([]json.RawMessage, bool) {
	raw, ok := h.readBody(w, r)
	if !ok {
		return nil, false
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		h.writeStoreError(w, &model.ValidationError{Field: "value", Message: "must be an array"}, operation)
		return nil, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		h.logger.Warn(model.MsgInvalidRequestBody, zap.Error(err))
		writeError(h.logger, w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return nil, false
	}

	if err := model.ValidateNonEmptyBatch(items); err != nil {
		h.writeStoreError(w, err, operation)
		return nil, false
	}

	if err := h.checkBatchSize(len(items), "value"); err != nil {
		h.writeStoreError(w, err, operation)
		return nil, false
	}

	return items, true
}

// failedPayloads turns failures of a raw-item batch into failed entries.
func (h *EmployeeHandler) failedPayloads(failures []bulk.Failure[json.RawMessage], operation string) []model.FailedItem {
	failed := make([]model.FailedItem, 0, len(failures))
	for _, f := range failures {
		failed = append(failed, model.NewFailedItem(f.Index, f.Item, h.itemMessage(f.Err, operation)))
	}
	return failed
}

// itemMessage returns the detailed message of one item's failure.
func (h *EmployeeHandler) itemMessage(err error, operation string) string {
	status, message := describe(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("bulk item failed", zap.String("operation", operation), zap.Error(err))
	}
	return message
}

// writeBulk records metrics, logs the outcome and writes the shaped response.
func (h *EmployeeHandler) writeBulk(
	w http.ResponseWriter,
	operation string,
	succeededIDs []int64,
	failedCount int,
	resp bulk.Response,
) {
	bulkItemsTotal.WithLabelValues(string(h.version), operation, "succeeded").Add(float64(len(succeededIDs)))
	bulkItemsTotal.WithLabelValues(string(h.version), operation, "failed").Add(float64(failedCount))

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("outcome", string(resp.Outcome)),
	}

	switch resp.Outcome {
	case bulk.OutcomeSuccess:
		if h.version == V2 {
			h.logger.Info(resp.Message+" - IDs: "+joinIDs(succeededIDs), fields...)
		}
	case bulk.OutcomePartial, bulk.OutcomeFailure:
		h.logger.Warn(resp.Message, fields...)
	default:
		h.logger.Error(resp.Message, fields...)
	}

	writeJSON(h.logger, w, resp.Status, resp.Body)
}

func employeeIDs(employees []model.Employee) []int64 {
	ids := make([]int64, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
	}
	return ids
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ", ")
}
