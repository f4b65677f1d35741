package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fnndsc/pfbuild/models"
)

// apiError is the body of every non-2xx response. It must carry an "error"
// tag and a "message".
type apiError struct {
	Tag     string `json:"error"`
	Message string `json:"message"`
}

func (e apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Tag, e.Message)
	}
	return e.Tag
}

func newAPIError(tag string, err error) apiError {
	return apiError{Tag: tag, Message: err.Error()}
}

var (
	notFoundError     = apiError{Tag: "NotFound", Message: "no such resource"}
	queueFullError    = apiError{Tag: "Unavailable", Message: "pipeline queue is full"}
	sessionsFullError = apiError{Tag: "Unavailable", Message: "too many running sessions"}
)

// classify maps err onto a response status and tag.
func classify(err error) (apiError, int) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return newAPIError("Validation", err), http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidState):
		return newAPIError("InvalidState", err), http.StatusConflict
	default:
		return newAPIError("Generic", err), http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, e apiError, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(e)
}

func writeErr(w http.ResponseWriter, err error) {
	e, status := classify(err)
	writeError(w, e, status)
}

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
