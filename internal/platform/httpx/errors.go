// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, shared.ErrJournalNotFound), errors.Is(err, shared.ErrPeriodNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation),
		errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrTooFewLines),
		errors.Is(err, shared.ErrInvalidLine),
		errors.Is(err, shared.ErrInvalidHeader),
		errors.Is(err, shared.ErrInvalidAccount):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrPeriodClosed), errors.Is(err, shared.ErrNoOpenPeriod):
		Problem(w, http.StatusConflict, "Period Unavailable", err.Error())
	case errors.Is(err, shared.ErrSourceAlreadyLinked), errors.Is(err, shared.ErrInvalidStatus),
		errors.Is(err, shared.ErrPeriodBusy), errors.Is(err, shared.ErrPeriodNotClosed), errors.Is(err, shared.ErrInvalidRollover):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrMappingNotFound):
		Problem(w, http.StatusFailedDependency, "Missing Account Mapping", err.Error())
	case errors.Is(err, shared.ErrPostingFailed):
		Problem(w, http.StatusServiceUnavailable, "Posting Failed", "transient failures exhausted, retry later")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
