// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors handlers wrap to pick a response status.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("service unavailable")
)

type problemKind struct {
	sentinel error
	status   int
	title    string
	slug     string
}

var problemKinds = []problemKind{
	{ErrNotFound, http.StatusNotFound, "Not Found", "not-found"},
	{ErrValidation, http.StatusBadRequest, "Validation Failed", "validation"},
	{ErrConflict, http.StatusConflict, "Conflict", "conflict"},
	{ErrUnavailable, http.StatusServiceUnavailable, "Unavailable", "unavailable"},
}

// RespondError maps wrapped sentinels to RFC7807 responses. Anything else is a 500 with no
// detail so internal errors never leak to clients.
func RespondError(w http.ResponseWriter, err error) {
	for _, kind := range problemKinds {
		if errors.Is(err, kind.sentinel) {
			write(w, ProblemDetail{
				Type:   problemTypeBase + kind.slug,
				Title:  kind.title,
				Status: kind.status,
				Detail: err.Error(),
			})
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
