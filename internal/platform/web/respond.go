// internal/platform/web/respond.go
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"lendhall/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

// RespondJSON writes v as a JSON response with the given status.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// RespondError maps domain failure kinds to HTTP status codes:
// validation -> 400, not-found -> 404, state conflict -> 409, anything else -> 500.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	RespondJSON(w, status, errorBody{Error: err.Error()})
}
