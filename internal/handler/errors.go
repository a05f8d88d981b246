package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/schema"
)

// Error codes carried in ErrorResponse.
const (
	codeValidation      = "validation_error"
	codeInvariant       = "invariant_violation"
	codeNotFound        = "not_found"
	codeConflict        = "conflict"
	codeProvider        = "provider_error"
	codePayloadTooLarge = "payload_too_large"
	codeInternal        = "internal_error"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the error envelope {"error":{...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// badRequest returns a validation error for input rejected before reaching
// the service layer (e.g. missing or malformed body).
func badRequest(message string) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, message)
}

// writeError maps err to a status code and error envelope. Server-side
// failures are logged; client errors are not.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func errorBody(err error) (int, ErrorResponse) {
	var (
		maxErr    *http.MaxBytesError
		schemaErr *schema.ValidationError
	)
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, envelope(codePayloadTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), nil)
	case errors.Is(err, domain.ErrProvider):
		return http.StatusInternalServerError, envelope(codeProvider, "itinerary generation failed",
			unwrapMessage(err, domain.ErrProvider))
	case errors.As(err, &schemaErr):
		return http.StatusBadRequest, envelope(codeValidation, schemaErr.Error(),
			map[string]string{"path": schemaErr.Path})
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, envelope(codeValidation, unwrapMessage(err, domain.ErrValidation), nil)
	case errors.Is(err, domain.ErrInvariant):
		return http.StatusBadRequest, envelope(codeInvariant, unwrapMessage(err, domain.ErrInvariant), nil)
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, envelope(codeNotFound, notFoundMessage(err), nil)
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, envelope(codeConflict,
			"itinerary was changed by another request; reload and retry", nil)
	default:
		return http.StatusInternalServerError, envelope(codeInternal, "internal server error", nil)
	}
}

func envelope(code, message string, details any) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Details: details}}
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.ItineraryService.DeleteStop: day 2 must keep at least one stop: invariant violation"
// becomes "day 2 must keep at least one stop".
func unwrapMessage(err, sentinel error) string {
	msg := err.Error()
	for {
		op, rest, ok := strings.Cut(msg, ": ")
		if !ok || !isOperation(op) {
			break
		}
		msg = rest
	}
	msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	msg = strings.TrimSuffix(msg, ": "+sentinel.Error())
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

// isOperation reports whether s looks like a "pkg.Type.Method" error prefix.
func isOperation(s string) bool {
	return strings.Contains(s, ".") && !strings.ContainsAny(s, " \t")
}

func notFoundMessage(err error) string {
	msg := unwrapMessage(err, domain.ErrNotFound)
	if msg == domain.ErrNotFound.Error() {
		return "itinerary not found"
	}
	return msg + " not found"
}
