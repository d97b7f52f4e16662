package bulk

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/employees-api/internal/model"
)

// Outcome classifies a shaped batch response.
type Outcome string

// Possible outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
	OutcomeEmpty   Outcome = "empty"
)

// Vocabulary holds the messages of one bulk operation.
type Vocabulary struct {
	Success string
	Failure string
}

// Response is the HTTP rendering of a batch outcome. Message is meant for
// logs; Body is written as JSON.
type Response struct {
	Outcome Outcome
	Status  int
	Message string
	Body    any
}

// Shape picks one of four response shapes from the succeeded and failed
// lists.
func Shape[T any](succeeded []T, failed []model.FailedItem, vocab Vocabulary) Response {
	if succeeded == nil {
		succeeded = []T{}
	}
	if failed == nil {
		failed = []model.FailedItem{}
	}

	switch {
	case len(succeeded) > 0 && len(failed) > 0:
		return Response{
			Outcome: OutcomePartial,
			Status:  http.StatusOK,
			Message: vocab.Success + " - Failed IDs: " + FailedIDs(failed),
			Body:    model.BulkResponse[T]{Data: succeeded, Failed: failed},
		}
	case len(succeeded) > 0:
		return Response{
			Outcome: OutcomeSuccess,
			Status:  http.StatusOK,
			Message: vocab.Success,
			Body:    model.BulkResponse[T]{Data: succeeded, Failed: failed},
		}
	case len(failed) > 0:
		msg := vocab.Failure + " - Failed IDs: " + FailedIDs(failed)
		return Response{
			Outcome: OutcomeFailure,
			Status:  http.StatusBadRequest,
			Message: msg,
			Body:    model.BulkErrorResponse{Error: msg, Failed: failed},
		}
	default:
		return Response{
			Outcome: OutcomeEmpty,
			Status:  http.StatusInternalServerError,
			Message: model.MsgInternalServerError,
			Body:    model.ErrorResponse{Error: model.MsgInternalServerError},
		}
	}
}

// FailedIDs joins the ids of failed items. Items without an id are named
// by their batch position, e.g. "#2".
func FailedIDs(failed []model.FailedItem) string {
	ids := make([]string, 0, len(failed))
	for _, f := range failed {
		if id, ok := f.ID(); ok {
			ids = append(ids, strconv.FormatInt(id, 10))
			continue
		}
		ids = append(ids, "#"+strconv.Itoa(f.BatchIndex))
	}
	return strings.Join(ids, ", ")
}
