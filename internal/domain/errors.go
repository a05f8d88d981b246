package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// itinerary, day, or stop does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails validation: a malformed request
// body, or generated output that does not match the itinerary schema.
// Handlers should map this to HTTP 400.
var ErrValidation = errors.New("validation error")

// ErrInvariant is returned when a mutation would break an itinerary
// invariant, e.g. deleting the last remaining stop of a day.
// Handlers should map this to HTTP 400 with code "invariant_violation".
var ErrInvariant = errors.New("invariant violation")

// ErrConflict is returned when a mutation was computed against a stale
// version of the itinerary.
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrProvider is returned when the generation provider fails or returns an
// empty completion.
var ErrProvider = errors.New("provider error")

// ErrPersistence is returned when the underlying store cannot be reached.
var ErrPersistence = errors.New("persistence error")
