package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tripplanner/backend/internal/domain"
	"github.com/tripplanner/backend/internal/generation"
)

// APIError is a non-2xx response. It unwraps to the domain sentinel that
// matches its code, so callers can use errors.Is(err, domain.ErrConflict).
type APIError struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "validation_error":
		return domain.ErrValidation
	case "invariant_violation":
		return domain.ErrInvariant
	case "not_found":
		return domain.ErrNotFound
	case "conflict":
		return domain.ErrConflict
	case "provider_error":
		return domain.ErrProvider
	default:
		return nil
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: "http_error", Message: http.StatusText(resp.StatusCode)}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}
	var env struct {
		Error struct {
			Code    string          `json:"code"`
			Message string          `json:"message"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

// StreamError is a terminal error event received on a generation stream.
type StreamError struct {
	Message string
	Details string
}

func (e *StreamError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

func (e *StreamError) Unwrap() error {
	switch e.Message {
	case generation.MsgValidationFailed, generation.MsgGenerationFailed:
		return domain.ErrProvider
	case generation.MsgPersistenceFailed:
		return domain.ErrPersistence
	default:
		return nil
	}
}
